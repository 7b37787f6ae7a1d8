// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/orgrouter/pkg/config/provider"
)

// Loader reads Config from a Provider and re-reads it on change.
type Loader struct {
	provider provider.Provider
	onChange func(*Config)
	current  atomic.Pointer[Config]
}

type LoaderOption func(*Loader)

// WithOnChange registers fn for every successful reload that yields a
// config different from the current one.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) {
		l.onChange = fn
	}
}

func NewLoader(p provider.Provider, opts ...LoaderOption) *Loader {
	l := &Loader{provider: p}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and parses the config and makes it current.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := l.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", l.provider.Type(), err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	l.current.Store(cfg)
	return cfg, nil
}

// Current returns the last successfully loaded config, or nil.
func (l *Loader) Current() *Config {
	return l.current.Load()
}

// Watch reloads on every provider signal until ctx is done. A reload that
// fails to parse or validate keeps the current config.
func (l *Loader) Watch(ctx context.Context) error {
	changes, err := l.provider.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}
	if changes == nil {
		slog.Info("Config provider does not support watching", "type", l.provider.Type())
		<-ctx.Done()
		return ctx.Err()
	}

	slog.Info("Watching config for changes", "type", l.provider.Type())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			l.reload(ctx)
		}
	}
}

func (l *Loader) reload(ctx context.Context) {
	prev := l.Current()
	cfg, err := l.Load(ctx)
	if err != nil {
		slog.Error("Config reload rejected, keeping current config", "error", err)
		return
	}
	if prev != nil && reflect.DeepEqual(prev, cfg) {
		slog.Debug("Config reload produced no changes")
		return
	}
	slog.Info("Configuration reloaded")
	if l.onChange != nil {
		l.onChange(cfg)
	}
}

func (l *Loader) Close() error {
	return l.provider.Close()
}

func (l *Loader) Provider() provider.Provider {
	return l.provider
}

// Parse decodes a YAML or JSON document, expands ${VAR} references,
// applies environment overrides and defaults, and validates.
func Parse(data []byte) (*Config, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := &Config{}
	if err := decodeInto(expandTree(doc), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return finish(cfg)
}

// FromEnv builds the zero-config configuration: defaults plus
// environment overrides.
func FromEnv() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// decodeDocument accepts YAML and, for inputs YAML rejects, JSON. Blank
// input is an empty document.
func decodeDocument(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	yamlErr := yaml.Unmarshal(data, &doc)
	if yamlErr == nil {
		if doc == nil {
			doc = map[string]any{}
		}
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("neither YAML (%v) nor JSON (%w)", yamlErr, err)
	}
	return doc, nil
}

func decodeInto(doc map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(doc)
}

// expandTree returns a copy of v with ${VAR}, ${VAR:-default} and $VAR
// expanded in every string.
func expandTree(v any) map[string]any {
	out, _ := expandAny(v).(map[string]any)
	return out
}

func expandAny(v any) any {
	switch t := v.(type) {
	case string:
		return os.Expand(t, lookupEnv)
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, item := range t {
			m[k] = expandAny(item)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, item := range t {
			s[i] = expandAny(item)
		}
		return s
	default:
		return v
	}
}

// lookupEnv resolves one os.Expand reference. "NAME:-fallback" yields the
// fallback when NAME is unset or empty. References that are not variable
// names (e.g. "$1" in a password) are left as written.
func lookupEnv(ref string) string {
	name, fallback, hasFallback := strings.Cut(ref, ":-")
	if !isEnvName(name) {
		return "$" + ref
	}
	if v := os.Getenv(name); v != "" || !hasFallback {
		return v
	}
	return fallback
}

func isEnvName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// LoadConfig creates a provider from opts and loads the config through a
// new Loader. The caller owns the Loader and must Close it.
func LoadConfig(ctx context.Context, opts provider.ProviderConfig, loaderOpts ...LoaderOption) (*Config, *Loader, error) {
	p, err := provider.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	loader := NewLoader(p, loaderOpts...)
	cfg, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return cfg, loader, nil
}

// LoadConfigFile loads from a local file.
func LoadConfigFile(ctx context.Context, path string, loaderOpts ...LoaderOption) (*Config, *Loader, error) {
	return LoadConfig(ctx, provider.ProviderConfig{Type: provider.TypeFile, Path: path}, loaderOpts...)
}
