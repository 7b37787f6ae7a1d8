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

// Package a2a implements the agent-to-agent message envelope the router
// speaks to its callers and to the downstream HR and Finance agents.
//
// Agent cards are the a2a-go types; the message/send envelope is the
// lightweight JSON-RPC shape the organisation's agents exchange.
package a2a

import (
	"encoding/json"
	"time"

	a2asdk "github.com/a2aproject/a2a-go/a2a"
)

// ============================================================================
// AGENT CARDS
// ============================================================================

type (
	AgentCard  = a2asdk.AgentCard
	AgentSkill = a2asdk.AgentSkill
)

// LegacyAgentCardPath is where the HR and Finance agents publish their card.
const LegacyAgentCardPath = "/.well-known/agent.json"

// ============================================================================
// JSON-RPC ENVELOPE
// ============================================================================

const (
	JSONRPCVersion    = "2.0"
	MethodMessageSend = "message/send"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

const (
	TaskStateSubmitted = "submitted"
	TaskStateWorking   = "working"
	TaskStateCompleted = "completed"
	TaskStateFailed    = "failed"
)

const PartTypeText = "text"

type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// SendParams are the params of a message/send call.
type SendParams struct {
	Task    *Task   `json:"task,omitempty"`
	Message Message `json:"message"`
}

type Task struct {
	ID     string         `json:"id"`
	Name   string         `json:"name,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	Status TaskStatus     `json:"status"`
}

type TaskStatus struct {
	State     string   `json:"state"`
	Timestamp string   `json:"timestamp,omitempty"`
	Message   *Message `json:"message,omitempty"`
}

// UnmarshalJSON accepts both the object form and a bare state string,
// since some callers send "status": "submitted".
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var state string
	if err := json.Unmarshal(data, &state); err == nil {
		*s = TaskStatus{State: state}
		return nil
	}

	type plain TaskStatus
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = TaskStatus(p)
	return nil
}

type Message struct {
	Kind      string `json:"kind,omitempty"`
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
	ContextID string `json:"contextId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Part is a content part. Older agents tag parts with "type", newer ones
// with "kind"; outbound parts carry both.
type Part struct {
	Type string `json:"type,omitempty"`
	Kind string `json:"kind,omitempty"`
	Text string `json:"text,omitempty"`
}

func (p Part) IsText() bool {
	switch {
	case p.Type == PartTypeText || p.Kind == PartTypeText:
		return true
	case p.Type == "" && p.Kind == "":
		return p.Text != ""
	default:
		return false
	}
}

type Artifact struct {
	ArtifactID string `json:"artifactId,omitempty"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// Result is the body of a message/send result. Agents answer either with a
// message (parts at the top level) or with a task (status and artifacts);
// the router's own replies fill both so every client finds the text.
type Result struct {
	Kind      string      `json:"kind,omitempty"`
	ID        string      `json:"id,omitempty"`
	MessageID string      `json:"messageId,omitempty"`
	Role      string      `json:"role,omitempty"`
	Parts     []Part      `json:"parts,omitempty"`
	ContextID string      `json:"contextId,omitempty"`
	TaskID    string      `json:"taskId,omitempty"`
	Status    *TaskStatus `json:"status,omitempty"`
	Artifacts []Artifact  `json:"artifacts,omitempty"`
	Response  string      `json:"response,omitempty"`
}

// Timestamp formats t the way the envelope carries timestamps.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
