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

package observability

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Trace exporters.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

const defaultExportTimeout = 10 * time.Second

var exporters = []string{ExporterOTLP, ExporterStdout}

// Config is the observability section: tracing and Prometheus metrics, both
// off unless enabled.
//
//	observability:
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	  metrics:
//	    enabled: true
type Config struct {
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

type TracingConfig struct {
	Enabled        bool              `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Exporter       string            `yaml:"exporter,omitempty" json:"exporter,omitempty" jsonschema:"enum=otlp,enum=stdout,default=otlp"`
	Endpoint       string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"description=OTLP gRPC collector address,default=localhost:4317"`
	SamplingRate   float64           `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"minimum=0,maximum=1,default=1"`
	ServiceName    string            `yaml:"service_name,omitempty" json:"service_name,omitempty"`
	ServiceVersion string            `yaml:"service_version,omitempty" json:"service_version,omitempty"`
	Insecure       *bool             `yaml:"insecure,omitempty" json:"insecure,omitempty" jsonschema:"description=Plaintext gRPC to the collector,default=true"`
	Headers        map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Timeout        time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

type MetricsConfig struct {
	Enabled     bool              `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Endpoint    string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"default=/metrics"`
	Namespace   string            `yaml:"namespace,omitempty" json:"namespace,omitempty" jsonschema:"default=orgrouter"`
	ConstLabels map[string]string `yaml:"const_labels,omitempty" json:"const_labels,omitempty"`
}

func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func (c *TracingConfig) SetDefaults() {
	c.ServiceName = cmp.Or(c.ServiceName, DefaultServiceName)
	c.SamplingRate = cmp.Or(c.SamplingRate, DefaultSamplingRate)
	c.Exporter = cmp.Or(c.Exporter, ExporterOTLP)
	c.Endpoint = cmp.Or(c.Endpoint, DefaultOTLPEndpoint)
	c.Timeout = cmp.Or(c.Timeout, defaultExportTimeout)
	if c.Insecure == nil {
		insecure := true
		c.Insecure = &insecure
	}
}

// Validate is a no-op while tracing is disabled.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !slices.Contains(exporters, c.Exporter) {
		return fmt.Errorf("invalid exporter %q (valid: %v)", c.Exporter, exporters)
	}
	if c.Exporter == ExporterOTLP && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required for the otlp exporter")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be within [0, 1], got %g", c.SamplingRate)
	}
	return nil
}

// IsInsecure defaults to true.
func (c *TracingConfig) IsInsecure() bool {
	return c.Insecure == nil || *c.Insecure
}

func (c *MetricsConfig) SetDefaults() {
	c.Endpoint = cmp.Or(c.Endpoint, DefaultMetricsPath)
	c.Namespace = cmp.Or(c.Namespace, DefaultServiceName)
}

func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when metrics are enabled")
	}
	return nil
}
