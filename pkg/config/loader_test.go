package config

import (
	"context"
	"sync"
	"testing"

	"github.com/kadirpekel/orgrouter/pkg/config/provider"
)

func TestLookupEnv(t *testing.T) {
	t.Setenv("ORGROUTER_TEST_SET", "value")
	t.Setenv("ORGROUTER_TEST_EMPTY", "")

	tests := []struct {
		ref  string
		want string
	}{
		{"ORGROUTER_TEST_SET", "value"},
		{"ORGROUTER_TEST_EMPTY", ""},
		{"ORGROUTER_TEST_SET:-fallback", "value"},
		{"ORGROUTER_TEST_EMPTY:-fallback", "fallback"},
		{"ORGROUTER_TEST_UNSET:-http://hr:8000", "http://hr:8000"},
		{"1", "$1"},
		{"$", "$$"},
	}

	for _, tt := range tests {
		if got := lookupEnv(tt.ref); got != tt.want {
			t.Errorf("lookupEnv(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestExpandTree(t *testing.T) {
	t.Setenv("ORGROUTER_TEST_HOST", "hr.internal")

	doc := map[string]any{
		"agents": map[string]any{
			"hr": map[string]any{"host": "${ORGROUTER_TEST_HOST}"},
		},
		"list":     []any{"$ORGROUTER_TEST_HOST", 8},
		"password": "pa$$word",
	}

	out := expandTree(doc)
	hr := out["agents"].(map[string]any)["hr"].(map[string]any)
	if hr["host"] != "hr.internal" {
		t.Errorf("host = %v", hr["host"])
	}
	list := out["list"].([]any)
	if list[0] != "hr.internal" || list[1] != 8 {
		t.Errorf("list = %v", list)
	}
	if out["password"] != "pa$$word" {
		t.Errorf("password = %v, want it untouched", out["password"])
	}
}

// scriptedProvider serves a sequence of documents and signals on demand.
type scriptedProvider struct {
	mu      sync.Mutex
	doc     []byte
	changes chan struct{}
}

func (p *scriptedProvider) Type() provider.Type { return "scripted" }

func (p *scriptedProvider) Load(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc, nil
}

func (p *scriptedProvider) Watch(context.Context) (<-chan struct{}, error) {
	return p.changes, nil
}

func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) set(doc string) {
	p.mu.Lock()
	p.doc = []byte(doc)
	p.mu.Unlock()
	p.changes <- struct{}{}
}

func TestLoader_ReloadSkipsUnchangedAndInvalid(t *testing.T) {
	clearEnv(t)
	p := &scriptedProvider{doc: []byte("llm:\n  provider: none\n"), changes: make(chan struct{})}

	var mu sync.Mutex
	var calls []*Config
	loader := NewLoader(p, WithOnChange(func(c *Config) {
		mu.Lock()
		calls = append(calls, c)
		mu.Unlock()
	}))

	first, err := loader.Load(t.Context())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = loader.Watch(ctx)
		close(done)
	}()

	p.set("llm:\n  provider: none\n")
	p.set("server:\n  port: -1\n")
	p.set("llm:\n  provider: none\nserver:\n  port: 9090\n")
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("onChange called %d times, want 1", len(calls))
	}
	if calls[0].Server.Port != 9090 {
		t.Errorf("reloaded port = %d, want 9090", calls[0].Server.Port)
	}
	if loader.Current() != calls[0] {
		t.Error("Current() should be the reloaded config")
	}
	if first.Server.Port == 9090 {
		t.Error("first config must not be mutated")
	}
}
