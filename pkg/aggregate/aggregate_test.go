// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aggregate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/discovery"
	"github.com/kadirpekel/orgrouter/pkg/routing"
)

var both = routing.Decision{Target: routing.TargetBoth, Source: routing.SourceKeyword}

func TestAggregate_SinglePassesThroughVerbatim(t *testing.T) {
	text := "  EMP0001 has 12 vacation days left.\n"
	resp := Aggregate(routing.Decision{Target: routing.TargetHR}, []Result{{Label: routing.TargetHR, Text: text}})

	assert.Equal(t, text, resp.Text())
	assert.True(t, resp.Succeeded())
}

func TestAggregate_SingleFailure(t *testing.T) {
	resp := Aggregate(routing.Decision{Target: routing.TargetFinance}, []Result{{
		Label: routing.TargetFinance,
		Err:   &a2a.DownstreamError{Agent: "Finance Agent", Status: http.StatusBadGateway},
	}})

	assert.Equal(t, "The Finance agent is unavailable right now (HTTP 502).", resp.Text())
	assert.False(t, resp.Succeeded())
}

func TestAggregate_BothOrdersHRFirst(t *testing.T) {
	resp := Aggregate(both, []Result{
		{Label: routing.TargetFinance, Text: "Salary: 85,000"},
		{Label: routing.TargetHR, Text: "EMP0002 is Jane Doe"},
	})

	require.Len(t, resp.Results, 2)
	assert.Equal(t, routing.TargetHR, resp.Results[0].Label)
	assert.Equal(t, routing.TargetFinance, resp.Results[1].Label)
	assert.Equal(t, "HR Agent:\nEMP0002 is Jane Doe\n\nFinance Agent:\nSalary: 85,000", resp.Text())
}

func TestAggregate_BothKeepsSuccessfulHalf(t *testing.T) {
	resp := Aggregate(both, []Result{
		{Label: routing.TargetHR, Err: &a2a.DownstreamError{Agent: "HR Agent", Status: http.StatusInternalServerError}},
		{Label: routing.TargetFinance, Text: "Salary: 85,000"},
	})

	text := resp.Text()
	assert.Contains(t, text, "Salary: 85,000")
	assert.Contains(t, text, "The HR agent is unavailable right now (HTTP 500).")
	assert.True(t, resp.Succeeded())
	require.Len(t, resp.Failed(), 1)
	assert.Equal(t, routing.TargetHR, resp.Failed()[0].Label)
}

func TestAggregate_MissingResultIsAFailure(t *testing.T) {
	resp := Aggregate(both, []Result{{Label: routing.TargetHR, Text: "ok"}})

	require.Len(t, resp.Results, 2)
	assert.False(t, resp.Results[1].OK())
}

func TestFailureNotice(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", &a2a.AuthError{Status: 401}, "The HR agent rejected our credentials (HTTP 401)."},
		{"forbidden", &a2a.AuthError{Status: 403}, "The HR agent rejected our credentials (HTTP 403)."},
		{"timeout", &a2a.TimeoutError{After: 2 * time.Minute}, "The HR agent timed out after 2m0s."},
		{"http", &a2a.DownstreamError{Status: 503}, "The HR agent is unavailable right now (HTTP 503)."},
		{"unreachable", &a2a.DownstreamError{Err: errors.New("connection refused")}, "The HR agent could not be reached."},
		{"cancelled", &a2a.DownstreamError{Err: context.Canceled}, "The request to the HR agent was cancelled."},
		{"discovery", &discovery.DiscoveryError{URL: "http://hr", Err: errors.New("404")}, "The HR agent is not available right now (its agent card could not be loaded)."},
		{"other", errors.New("boom"), "The HR agent could not answer this request."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureNotice(routing.TargetHR, tt.err))
		})
	}
}

func TestDispatch_RunsConcurrentlyAndOrdersResults(t *testing.T) {
	var inFlight, maxInFlight int32
	call := func(ctx context.Context, label routing.Target, query string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		defer atomic.AddInt32(&inFlight, -1)

		// HR is slower, so FINANCE completes first.
		if label == routing.TargetHR {
			time.Sleep(80 * time.Millisecond)
		} else {
			time.Sleep(20 * time.Millisecond)
		}
		return string(label) + " answer to " + query, nil
	}

	start := time.Now()
	resp := New().Dispatch(context.Background(), both, "Who is EMP0002 and what do they earn?", call)
	elapsed := time.Since(start)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, routing.TargetHR, resp.Results[0].Label)
	assert.Equal(t, routing.TargetFinance, resp.Results[1].Label)
	assert.True(t, strings.Index(resp.Text(), "HR answer") < strings.Index(resp.Text(), "FINANCE answer"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&maxInFlight), "calls must overlap")
	assert.Less(t, elapsed, time.Second)
}

func TestDispatch_FailureDoesNotCancelSibling(t *testing.T) {
	call := func(ctx context.Context, label routing.Target, query string) (string, error) {
		if label == routing.TargetHR {
			return "", &a2a.DownstreamError{Agent: "HR Agent", Status: http.StatusInternalServerError}
		}
		select {
		case <-time.After(30 * time.Millisecond):
			return "Salary: 85,000", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	resp := New().Dispatch(context.Background(), both, "q", call)

	assert.True(t, resp.Results[1].OK())
	assert.Contains(t, resp.Text(), "Salary: 85,000")
	assert.Contains(t, resp.Text(), "HTTP 500")
}

func TestDispatch_CancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	call := func(ctx context.Context, label routing.Target, query string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	start := time.Now()
	resp := New().Dispatch(ctx, both, "q", call)

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, resp.Succeeded())
	assert.Len(t, resp.Failed(), 2)
}

func TestDispatch_SingleTargetMakesOneCall(t *testing.T) {
	var calls int32
	call := func(ctx context.Context, label routing.Target, query string) (string, error) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, routing.TargetFinance, label)
		return "ok", nil
	}

	resp := New().Dispatch(context.Background(), routing.Decision{Target: routing.TargetFinance}, "q", call)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "ok", resp.Text())
}
