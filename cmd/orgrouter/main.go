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

// Command orgrouter runs the Admin agent: an A2A router that sends employee
// questions to the HR agent, the Finance agent or both.
//
// Usage:
//
//	orgrouter serve
//	orgrouter serve --config orgrouter.yaml --watch
//	orgrouter serve --config-type consul --config-endpoints consul:8500 --config orgrouter/config
//	orgrouter classify "What is the salary of EMP0003?"
//	orgrouter card hr
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/orgrouter"
	"github.com/kadirpekel/orgrouter/pkg/config"
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the Admin agent server."`
	Classify ClassifyCmd `cmd:"" help:"Classify a query and optionally route it."`
	Card     CardCmd     `cmd:"" help:"Fetch and print an agent card."`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration."`
	Schema   SchemaCmd   `cmd:"" help:"Print the JSON Schema of the configuration."`

	Config          string   `short:"c" help:"Config path: a file, or the key/znode for remote providers." env:"ORGROUTER_CONFIG"`
	ConfigType      string   `name:"config-type" help:"Config provider (file, consul, etcd, zookeeper)." default:"file" enum:"file,consul,etcd,zookeeper"`
	ConfigEndpoints []string `name:"config-endpoints" help:"Endpoints of the remote config provider." sep:","`

	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, text, json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintln(stdout, orgrouter.GetVersion())
	return nil
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("orgrouter"),
		kong.Description("Admin agent: routes employee questions to the HR and Finance A2A agents."),
		kong.UsageOnError(),
	)

	// Bootstrap logger from CLI flags and environment; it is re-initialised
	// once the config is loaded.
	cleanup, err := initLogger(&cli, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err = ctx.Run(&cli)
	if cleanup != nil {
		cleanup()
	}
	ctx.FatalIfErrorf(err)
}
