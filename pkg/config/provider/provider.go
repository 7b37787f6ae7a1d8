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

// Package provider loads raw config documents from a file or a remote KV
// store and signals when they change.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Type names a config source.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

var typeNames = map[string]Type{
	"":          TypeFile,
	"file":      TypeFile,
	"consul":    TypeConsul,
	"etcd":      TypeEtcd,
	"zookeeper": TypeZookeeper,
	"zk":        TypeZookeeper,
}

// ParseType accepts the --config-type values, case-insensitively. An empty
// string means file.
func ParseType(s string) (Type, error) {
	if t, ok := typeNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown provider type: %s", s)
}

// Remote reports whether the source is a KV store reached over the network.
func (t Type) Remote() bool {
	return t != TypeFile && t != ""
}

// Provider is a config source. Implementations are safe for concurrent use.
type Provider interface {
	Type() Type
	Load(ctx context.Context) ([]byte, error)
	// Watch signals on the returned channel after the document changes,
	// until ctx is cancelled. A nil channel means watching is unsupported.
	Watch(ctx context.Context) (<-chan struct{}, error)
	Close() error
}

// ProviderConfig selects and addresses a source. Path is a file path, a KV
// key or a znode, depending on Type.
type ProviderConfig struct {
	Type      Type
	Path      string
	Endpoints []string
}

var constructors = map[Type]func(ProviderConfig) (Provider, error){
	TypeFile: func(c ProviderConfig) (Provider, error) { return NewFileProvider(c.Path) },
	TypeConsul: func(c ProviderConfig) (Provider, error) {
		return NewConsulProvider(c.Endpoints, c.Path)
	},
	TypeEtcd: func(c ProviderConfig) (Provider, error) {
		return NewEtcdProvider(c.Endpoints, c.Path)
	},
	TypeZookeeper: func(c ProviderConfig) (Provider, error) {
		return NewZookeeperProvider(c.Endpoints, c.Path)
	},
}

func New(cfg ProviderConfig) (Provider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if cfg.Type == "" {
		cfg.Type = TypeFile
	}
	newProvider, ok := constructors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	p, err := newProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", cfg.Type, err)
	}
	return p, nil
}

// signal never blocks; a pending signal already covers the change.
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// sleepContext reports false if ctx ended before d elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
