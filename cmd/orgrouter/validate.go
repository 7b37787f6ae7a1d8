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
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/orgrouter/pkg/config"
)

// ValidateCmd validates the configuration selected by the global config
// flags.
type ValidateCmd struct {
	Format      string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (with defaults applied and env vars resolved)."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	source := cli.Config
	if source == "" {
		source = "(environment)"
		if fileExists(defaultConfigFile) {
			source = defaultConfigFile
		}
	}

	cfg, loader, err := loadConfig(context.Background(), cli)
	if err != nil {
		return printLoadError(c.Format, source, err)
	}
	if loader != nil {
		defer loader.Close()
	}

	if c.PrintConfig {
		return printExpandedConfig(c.Format, source, cfg)
	}

	printSuccess(c.Format, source)
	return nil
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func printLoadError(format, source string, err error) error {
	switch format {
	case "json":
		printJSONResult(false, source, []ValidationError{{Type: "load", Message: err.Error()}})
	case "verbose":
		fmt.Fprintf(os.Stderr, "Configuration Load Error\n")
		fmt.Fprintf(os.Stderr, "========================\n\n")
		fmt.Fprintf(os.Stderr, "Source:  %s\n", source)
		fmt.Fprintf(os.Stderr, "Error:   %s\n", err.Error())
	default: // compact
		fmt.Fprintf(os.Stderr, "%s: load error: %s\n", source, err.Error())
	}
	return fmt.Errorf("config load failed")
}

func printSuccess(format, source string) {
	switch format {
	case "json":
		printJSONResult(true, source, nil)
	case "verbose":
		fmt.Fprintf(stdout, "Configuration Validation Successful\n")
		fmt.Fprintf(stdout, "===================================\n\n")
		fmt.Fprintf(stdout, "Source: %s\n", source)
		fmt.Fprintf(stdout, "Status: OK Valid\n")
	default: // compact
		fmt.Fprintf(stdout, "%s: valid\n", source)
	}
}

func printExpandedConfig(format, source string, cfg *config.Config) error {
	if format == "json" {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
		return nil
	}

	fmt.Fprintf(stdout, "# Expanded configuration from: %s\n", source)
	fmt.Fprintf(stdout, "# (defaults applied, env vars resolved)\n\n")

	encoder := yaml.NewEncoder(stdout)
	encoder.SetIndent(2)
	defer encoder.Close()
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config as YAML: %w", err)
	}
	return nil
}

type jsonOutput struct {
	Valid  bool              `json:"valid"`
	Source string            `json:"source"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func printJSONResult(valid bool, source string, errors []ValidationError) {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(jsonOutput{Valid: valid, Source: source, Errors: errors}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}
