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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orgrouter/pkg/a2a"
	"github.com/kadirpekel/orgrouter/pkg/auth"
	"github.com/kadirpekel/orgrouter/pkg/audit"
)

func decodeResponse(t *testing.T, raw []byte) a2a.Response {
	t.Helper()
	var resp a2a.Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, a2a.JSONRPCVersion, resp.JSONRPC)
	return resp
}

func TestHandle_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"method":`, a2a.CodeParseError},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{}}`, a2a.CodeMethodNotFound},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"message/send"}`, a2a.CodeInvalidParams},
		{"no text part", `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"messageId":"m","role":"user","parts":[{"kind":"file"}]}}}`, a2a.CodeInvalidParams},
		{"blank text", `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"messageId":"m","role":"user","parts":[{"kind":"text","text":"  "}]}}}`, a2a.CodeInvalidParams},
	}

	d := newTestDispatcher(t, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeResponse(t, d.Handle(context.Background(), []byte(tt.body)))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Empty(t, resp.Result)
		})
	}
}

func TestHandle_ParseErrorHasNullID(t *testing.T) {
	d := newTestDispatcher(t, nil, nil)
	raw := d.Handle(context.Background(), []byte(`not json`))

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "id")
	assert.Nil(t, generic["id"])
}

func TestHandle_UIEnvelope(t *testing.T) {
	hr := newFakeAgent(t, "HR Agent", "EMP0001 has 12 vacation days.")
	finance := newFakeAgent(t, "Finance Agent", "Annual salary is $95,000.")
	d := newTestDispatcher(t, hr, finance)

	body := `{
		"jsonrpc": "2.0",
		"id": "req-7",
		"method": "message/send",
		"params": {
			"task": {"id": "task-42", "name": "User Query", "params": {}, "status": {"state": "submitted", "timestamp": "2025-01-01T00:00:00"}},
			"message": {"messageId": "m-1", "role": "user", "contextId": "ctx-1", "parts": [{"type": "text", "text": "` + bothQuery + `"}]}
		}
	}`

	resp := decodeResponse(t, d.Handle(context.Background(), []byte(body)))
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `"req-7"`, string(resp.ID))

	var result a2a.Result
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	text := a2a.FirstText(result.Parts)
	assert.Contains(t, text, "EMP0001 has 12 vacation days.")
	assert.Contains(t, text, "Annual salary is $95,000.")
	assert.Equal(t, "task-42", result.TaskID)
	assert.Equal(t, "ctx-1", result.ContextID)
	require.NotNil(t, result.Status)
	assert.Equal(t, a2a.TaskStateCompleted, result.Status.State)
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, text, a2a.FirstText(result.Artifacts[0].Parts))
	assert.Equal(t, text, result.Status.Message.Text())
}

func TestHandle_UsesAuthenticatedCaller(t *testing.T) {
	hr := newFakeAgent(t, "HR Agent", "EMP0001 has 12 vacation days.")
	store := audit.NewMemoryStore(10)
	d := newTestDispatcher(t, hr, nil, WithAuditStore(store))

	ctx := auth.ContextWithClaims(context.Background(), &auth.Claims{Subject: "0oa-ui-client"})
	body := `{"jsonrpc":"2.0","id":3,"method":"message/send","params":{"message":{"messageId":"m","role":"user","parts":[{"kind":"text","text":"` + vacationQuery + `"}]}}}`

	resp := decodeResponse(t, d.Handle(ctx, []byte(body)))
	require.Nil(t, resp.Error)

	records, err := store.List(context.Background(), audit.Filter{Caller: "0oa-ui-client"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
