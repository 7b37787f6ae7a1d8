package observability

import (
	"context"
	"fmt"
	"sync"
)

// Manager owns the tracer and metrics for the process lifetime.
type Manager struct {
	config Config

	mu      sync.RWMutex
	tracer  *Tracer
	metrics *Metrics
}

func NewManager(cfg Config) *Manager {
	cfg.SetDefaults()
	return &Manager{config: cfg}
}

// Initialize creates the tracer and metrics enabled in the config.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	tracer, err := NewTracer(ctx, &m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracer = tracer
	m.metrics = NewMetrics(&m.config.Metrics)
	return nil
}

func (m *Manager) Tracer() *Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracer
}

func (m *Manager) Metrics() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// MetricsPath is where the server mounts the metrics handler.
func (m *Manager) MetricsPath() string {
	return m.config.Metrics.Endpoint
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracer.Shutdown(ctx)
}
