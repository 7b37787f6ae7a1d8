package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orgrouter/pkg/model"
)

func fakeMessagesAPI(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Generate(t *testing.T) {
	var sent map[string]any
	server := fakeMessagesAPI(t, http.StatusOK, `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-haiku-latest",
		"content": [{"type": "text", "text": "BOTH"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 120, "output_tokens": 2}
	}`, &sent)

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), &model.Request{
		SystemInstruction: "You are a router.",
		Prompt:            "salary and vacation for EMP0003",
		Config:            &model.GenerateConfig{Temperature: model.Float64(0), MaxTokens: model.Int(10)},
	})
	require.NoError(t, err)

	assert.Equal(t, "BOTH", resp.Text)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 122, resp.Usage.TotalTokens)

	assert.Equal(t, "claude-3-5-haiku-latest", sent["model"])
	assert.EqualValues(t, 10, sent["max_tokens"])
	assert.EqualValues(t, 0, sent["temperature"])
	assert.NotNil(t, sent["system"])
}

func TestClient_Generate_APIError(t *testing.T) {
	server := fakeMessagesAPI(t, http.StatusInternalServerError,
		`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`, nil)

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), &model.Request{Prompt: "hi"})

	var providerErr *model.ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, model.ProviderAnthropic, providerErr.Provider)
}

func TestClient_Generate_EmptyContent(t *testing.T) {
	server := fakeMessagesAPI(t, http.StatusOK, `{
		"id": "msg_02", "type": "message", "role": "assistant", "model": "m",
		"content": [], "stop_reason": "end_turn", "usage": {"input_tokens": 1, "output_tokens": 0}
	}`, nil)

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), &model.Request{Prompt: "hi"})
	assert.ErrorIs(t, err, model.ErrEmptyResponse)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
