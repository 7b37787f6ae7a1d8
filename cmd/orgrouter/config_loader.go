package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kadirpekel/orgrouter/pkg/config"
	"github.com/kadirpekel/orgrouter/pkg/config/provider"
)

// defaultConfigFile is picked up when present and no --config is given.
const defaultConfigFile = "orgrouter.yaml"

// loadConfig is the single config entry point for all commands.
//
//  1. --config (any provider type)
//  2. ./orgrouter.yaml if it exists
//  3. zero-config: defaults plus environment overrides
//
// The returned loader is nil in zero-config mode.
func loadConfig(ctx context.Context, cli *CLI, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	typ, err := provider.ParseType(cli.ConfigType)
	if err != nil {
		return nil, nil, err
	}

	path := cli.Config
	if path == "" && typ == provider.TypeFile && fileExists(defaultConfigFile) {
		path = defaultConfigFile
	}

	if path == "" {
		if typ.Remote() {
			return nil, nil, fmt.Errorf("--config is required for the %s provider", typ)
		}
		cfg, err := config.FromEnv()
		if err != nil {
			return nil, nil, fmt.Errorf("invalid zero-config: %w", err)
		}
		return cfg, nil, nil
	}

	cfg, loader, err := config.LoadConfig(ctx, provider.ProviderConfig{
		Type:      typ,
		Path:      path,
		Endpoints: cli.ConfigEndpoints,
	}, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return cfg, loader, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
