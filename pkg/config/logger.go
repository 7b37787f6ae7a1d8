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
	"cmp"
	"fmt"
	"slices"

	"github.com/kadirpekel/orgrouter/pkg/logger"
)

var logFormats = []string{"simple", "verbose", "text", "json"}

// LoggerConfig is the logger section. LOG_LEVEL, LOG_FILE and LOG_FORMAT
// override it, and the matching CLI flags override those.
//
//	logger:
//	  level: debug
//	  format: json
//	  file: /var/log/orgrouter.log
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	File   string `yaml:"file,omitempty" json:"file,omitempty" jsonschema:"description=Log file path; stderr when empty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=simple,enum=verbose,enum=text,enum=json,default=simple"`
}

func (c *LoggerConfig) SetDefaults() {
	c.Level = cmp.Or(c.Level, "info")
	c.Format = cmp.Or(c.Format, "simple")
}

func (c *LoggerConfig) Validate() error {
	if _, err := logger.ParseLevel(c.Level); err != nil {
		return err
	}
	if c.Format != "" && !slices.Contains(logFormats, c.Format) {
		return fmt.Errorf("invalid log format %q (valid: %v)", c.Format, logFormats)
	}
	return nil
}
