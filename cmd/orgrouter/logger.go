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

package main

import (
	"fmt"
	"os"

	"github.com/kadirpekel/orgrouter/pkg/config"
	"github.com/kadirpekel/orgrouter/pkg/logger"
)

const (
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFileEnvVar   = "LOG_FILE"
	LogFormatEnvVar = "LOG_FORMAT"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "simple"
)

// logSettings resolves level, file and format.
// Priority: CLI flag > config > env var > default. A loaded config has
// already absorbed the env vars.
func logSettings(cli *CLI, cfg *config.LoggerConfig) (level, file, format string) {
	pick := func(flag, env, fromCfg, def string) string {
		switch {
		case flag != "":
			return flag
		case fromCfg != "":
			return fromCfg
		case env != "":
			return env
		default:
			return def
		}
	}

	var cfgLevel, cfgFile, cfgFormat string
	if cfg != nil {
		cfgLevel, cfgFile, cfgFormat = cfg.Level, cfg.File, cfg.Format
	}

	level = pick(cli.LogLevel, os.Getenv(LogLevelEnvVar), cfgLevel, DefaultLogLevel)
	file = pick(cli.LogFile, os.Getenv(LogFileEnvVar), cfgFile, "")
	format = pick(cli.LogFormat, os.Getenv(LogFormatEnvVar), cfgFormat, DefaultLogFormat)
	return level, file, format
}

// initLogger installs the default slog logger. The returned cleanup closes
// the log file, if one was opened.
func initLogger(cli *CLI, cfg *config.LoggerConfig) (func(), error) {
	levelStr, file, format := logSettings(cli, cfg)

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	if file == "" {
		logger.Init(level, os.Stderr, format)
		return nil, nil
	}

	out, cleanup, err := logger.OpenLogFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.Init(level, out, format)
	return cleanup, nil
}
