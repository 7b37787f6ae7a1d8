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
	"strings"
	"time"

	"github.com/google/uuid"
)

// TextPart returns a text part tagged for both old and new agents.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Kind: PartTypeText, Text: text}
}

// NewTextMessage builds a single-part text message with a fresh message ID.
func NewTextMessage(role, text string) Message {
	return Message{
		Kind:      "message",
		MessageID: uuid.NewString(),
		Role:      role,
		Parts:     []Part{TextPart(text)},
		Timestamp: Timestamp(time.Now()),
	}
}

// FirstText returns the first non-empty text part of parts.
func FirstText(parts []Part) string {
	for _, p := range parts {
		if p.IsText() && strings.TrimSpace(p.Text) != "" {
			return p.Text
		}
	}
	return ""
}

// Text returns the message's first text part.
func (m Message) Text() string {
	return FirstText(m.Parts)
}

// ExtractText pulls the reply text out of a result, looking at the message
// parts, then the first artifact, then the status message, then the legacy
// "response" field.
func ExtractText(r *Result) string {
	if r == nil {
		return ""
	}
	if text := FirstText(r.Parts); text != "" {
		return text
	}
	for _, artifact := range r.Artifacts {
		if text := FirstText(artifact.Parts); text != "" {
			return text
		}
	}
	if r.Status != nil && r.Status.Message != nil {
		if text := r.Status.Message.Text(); text != "" {
			return text
		}
	}
	return r.Response
}

// NewReply wraps text into a completed result addressed back to the task
// the caller sent.
func NewReply(taskID, contextID, text string) *Result {
	msg := NewTextMessage(RoleAgent, text)
	msg.TaskID = taskID
	msg.ContextID = contextID

	return &Result{
		Kind:      "message",
		ID:        taskID,
		MessageID: msg.MessageID,
		Role:      RoleAgent,
		Parts:     msg.Parts,
		ContextID: contextID,
		TaskID:    taskID,
		Status: &TaskStatus{
			State:     TaskStateCompleted,
			Timestamp: msg.Timestamp,
			Message:   &msg,
		},
		Artifacts: []Artifact{{Name: "response", Parts: msg.Parts}},
	}
}
