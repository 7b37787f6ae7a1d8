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

package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/orgrouter/pkg/httpclient"
)

const (
	DefaultCallTimeout = 120 * time.Second

	maxResponseBytes = 4 << 20
)

// AgentResponse is the outcome of a successful message/send call.
type AgentResponse struct {
	Agent  string
	Text   string
	Result *Result
}

// Client sends message/send calls to downstream agents. It never retries;
// retry decisions (such as refreshing a token after an AuthError) belong to
// the caller.
type Client struct {
	http    *httpclient.Client
	timeout time.Duration
}

type ClientOption func(*Client)

// WithHTTPClient sets the transport, e.g. one built by httpclient.NewHTTPClient
// with custom TLS settings.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = httpclient.New(httpclient.WithHTTPClient(hc), httpclient.WithMaxRetries(0))
	}
}

// WithCallTimeout bounds each call. Non-positive values keep the default.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{}),
			httpclient.WithMaxRetries(0),
		),
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Send posts msg to the agent described by card. The bearer header is set
// only when token is non-empty.
func (c *Client) Send(ctx context.Context, card *AgentCard, msg Message, token string) (*AgentResponse, error) {
	if card == nil {
		return nil, &DownstreamError{Agent: "unknown", Err: errors.New("no agent card")}
	}
	agent := card.Name
	endpoint := strings.TrimSpace(card.URL)
	if endpoint == "" {
		return nil, &DownstreamError{Agent: agent, Err: errors.New("agent card has no URL")}
	}

	body, err := newSendRequest(msg)
	if err != nil {
		return nil, &DownstreamError{Agent: agent, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &DownstreamError{Agent: agent, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	slog.Debug("Sending message to agent", "agent", agent, "url", endpoint, "message_id", msg.MessageID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, callCtx, agent, start, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.transportError(ctx, callCtx, agent, start, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Agent: agent, Status: resp.StatusCode, Body: string(raw)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &DownstreamError{Agent: agent, Status: resp.StatusCode, Body: string(raw)}
	}

	var envelope Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &DownstreamError{Agent: agent, Status: resp.StatusCode, Body: string(raw),
			Err: fmt.Errorf("malformed response envelope: %w", err)}
	}
	if envelope.Error != nil {
		return nil, &DownstreamError{Agent: agent, Status: resp.StatusCode, Body: envelope.Error.Message, Err: envelope.Error}
	}

	var result Result
	if len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, &result); err != nil {
			return nil, &DownstreamError{Agent: agent, Status: resp.StatusCode, Body: string(raw),
				Err: fmt.Errorf("malformed result: %w", err)}
		}
	}

	slog.Debug("Agent replied", "agent", agent, "duration", time.Since(start))

	return &AgentResponse{
		Agent:  agent,
		Text:   ExtractText(&result),
		Result: &result,
	}, nil
}

// transportError classifies a failure that produced no usable response.
func (c *Client) transportError(parent, callCtx context.Context, agent string, start time.Time, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		after := c.timeout
		if parent.Err() != nil {
			after = time.Since(start).Round(time.Millisecond)
		}
		return &TimeoutError{Agent: agent, After: after, Err: err}
	}
	return &DownstreamError{Agent: agent, Err: err}
}

func newSendRequest(msg Message) ([]byte, error) {
	params, err := json.Marshal(SendParams{
		Task: &Task{
			ID: uuid.NewString(),
			Status: TaskStatus{
				State:     TaskStateSubmitted,
				Timestamp: Timestamp(time.Now()),
			},
		},
		Message: msg,
	})
	if err != nil {
		return nil, err
	}

	id, err := json.Marshal(uuid.NewString())
	if err != nil {
		return nil, err
	}

	return json.Marshal(Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  MethodMessageSend,
		Params:  params,
	})
}
