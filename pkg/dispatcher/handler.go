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

package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/auth"
)

// Handle answers one raw JSON-RPC request body. It always returns a
// JSON-RPC response; protocol problems become error objects.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) []byte {
	var req a2a.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return encodeError(nil, a2a.CodeParseError, "parse error: "+err.Error())
	}

	if req.Method != a2a.MethodMessageSend {
		return encodeError(req.ID, a2a.CodeMethodNotFound, "method not found: "+req.Method)
	}
	if len(req.Params) == 0 {
		return encodeError(req.ID, a2a.CodeInvalidParams, "params are required")
	}

	var params a2a.SendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return encodeError(req.ID, a2a.CodeInvalidParams, "invalid params: "+err.Error())
	}

	text := strings.TrimSpace(params.Message.Text())
	if text == "" {
		return encodeError(req.ID, a2a.CodeInvalidParams, "message has no text part")
	}

	q := Query{
		Text:      text,
		TaskID:    params.Message.TaskID,
		ContextID: params.Message.ContextID,
	}
	if params.Task != nil && params.Task.ID != "" {
		q.TaskID = params.Task.ID
	}
	q.Caller = auth.ClaimsFromContext(ctx).Caller()

	reply, err := d.Route(ctx, q)
	if err != nil {
		return encodeError(req.ID, a2a.CodeInvalidParams, err.Error())
	}

	taskID := q.TaskID
	if taskID == "" {
		taskID = reply.CorrelationID
	}
	result, err := json.Marshal(a2a.NewReply(taskID, q.ContextID, reply.Text))
	if err != nil {
		return encodeError(req.ID, a2a.CodeInternalError, "failed to encode result")
	}

	return encode(a2a.Response{JSONRPC: a2a.JSONRPCVersion, ID: req.ID, Result: result})
}

func encodeError(id json.RawMessage, code int, message string) []byte {
	return encode(a2a.Response{
		JSONRPC: a2a.JSONRPCVersion,
		ID:      id,
		Error:   &a2a.RPCError{Code: code, Message: message},
	})
}

func encode(resp a2a.Response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to encode JSON-RPC response", "error", err)
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return out
}
