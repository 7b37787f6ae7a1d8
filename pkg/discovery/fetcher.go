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

// Package discovery fetches and caches the agent cards of the downstream
// agents the router delegates to.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/httpclient"
)

const (
	DefaultFetchTimeout = 30 * time.Second

	maxCardBytes = 1 << 20
)

// DiscoveryError reports that the card at URL could not be obtained.
type DiscoveryError struct {
	URL string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("agent card discovery failed for %s: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves agent cards from <baseURL>/.well-known/agent.json.
type Fetcher struct {
	http    *httpclient.Client
	timeout time.Duration
	cache   Cache
	group   singleflight.Group
}

type FetcherOption func(*Fetcher)

func WithCache(cache Cache) FetcherOption {
	return func(f *Fetcher) {
		if cache != nil {
			f.cache = cache
		}
	}
}

func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithHTTPClient sets the transport and the number of retries on
// retryable statuses (429, 502, 503, 504).
func WithHTTPClient(hc *http.Client, retries int) FetcherOption {
	return func(f *Fetcher) {
		f.http = httpclient.New(
			httpclient.WithHTTPClient(hc),
			httpclient.WithMaxRetries(retries),
			httpclient.WithBaseDelay(200*time.Millisecond),
		)
	}
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		http:    httpclient.New(httpclient.WithHTTPClient(&http.Client{}), httpclient.WithMaxRetries(0)),
		timeout: DefaultFetchTimeout,
		cache:   NewMemoryCache(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CardURL returns the well-known card location for baseURL.
func CardURL(baseURL string) string {
	return strings.TrimSuffix(strings.TrimSpace(baseURL), "/") + a2a.LegacyAgentCardPath
}

// Fetch performs one uncached fetch. A card that omits its URL gets baseURL.
func (f *Fetcher) Fetch(ctx context.Context, baseURL string) (*a2a.AgentCard, error) {
	url := CardURL(baseURL)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DiscoveryError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, &DiscoveryError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCardBytes))
	if err != nil {
		return nil, &DiscoveryError{URL: url, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &DiscoveryError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var card a2a.AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, &DiscoveryError{URL: url, Err: fmt.Errorf("malformed agent card: %w", err)}
	}
	if strings.TrimSpace(card.Name) == "" {
		return nil, &DiscoveryError{URL: url, Err: errors.New("agent card has no name")}
	}
	if card.URL == "" {
		card.URL = strings.TrimSuffix(baseURL, "/")
	}

	slog.Info("Fetched agent card", "agent", card.Name, "url", url, "skills", len(card.Skills))
	return &card, nil
}

// Get returns the cached card for baseURL, fetching it on a miss. Concurrent
// misses for the same URL share one fetch, which runs detached from any one
// caller's cancellation and is bounded by the fetch timeout alone. A caller
// whose ctx ends stops waiting without failing the others. Failures are not
// cached.
func (f *Fetcher) Get(ctx context.Context, baseURL string) (*a2a.AgentCard, error) {
	if card, ok := f.cache.Get(baseURL); ok {
		return card, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(baseURL, func() (any, error) {
		if card, ok := f.cache.Get(baseURL); ok {
			return card, nil
		}
		card, err := f.Fetch(shared, baseURL)
		if err != nil {
			return nil, err
		}
		f.cache.Put(baseURL, card)
		return card, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*a2a.AgentCard), nil
	case <-ctx.Done():
		return nil, &DiscoveryError{URL: CardURL(baseURL), Err: ctx.Err()}
	}
}

// Invalidate drops the cached card for baseURL.
func (f *Fetcher) Invalidate(baseURL string) {
	f.cache.Invalidate(baseURL)
}
