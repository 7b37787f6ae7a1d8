package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kadirpekel/orgrouter/pkg/config"
	"github.com/kadirpekel/orgrouter/pkg/runtime"
)

// ServeCmd starts the Admin agent server.
type ServeCmd struct {
	Host  string `help:"Host to bind to (overrides config)."`
	Port  int    `short:"p" help:"Port to listen on (overrides config)."`
	Watch bool   `short:"w" help:"Watch the config source and hot-reload agent endpoints, timeouts and log level."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rt *runtime.Runtime
	reload := func(cfg *config.Config) {
		if rt != nil {
			rt.Reload(cfg)
		}
	}

	cfg, loader, err := loadConfig(ctx, cli, config.WithOnChange(reload))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	cleanup, err := initLogger(cli, &cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	rt, err = runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Warn("Runtime close error", "error", err)
		}
	}()

	if c.Watch {
		if loader == nil {
			slog.Warn("--watch ignored: no config source to watch")
		} else {
			go func() {
				if err := loader.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("Config watcher stopped", "error", err)
				}
			}()
		}
	}

	srv := rt.Server()
	printStartup(cfg)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

func printStartup(cfg *config.Config) {
	base := strings.TrimSuffix(cfg.Server.URL(), "/")
	fmt.Printf("%s listening on %s\n", cfg.Name, cfg.Server.Address())
	fmt.Printf("  Agent card: %s/.well-known/agent.json\n", base)
	fmt.Printf("  JSON-RPC:   %s/\n", base)
	fmt.Printf("  Health:     %s/health\n", base)
	fmt.Printf("  Ready:      %s/ready\n", base)
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("  Metrics:    %s%s\n", base, cfg.Observability.Metrics.Endpoint)
	}
	fmt.Printf("  HR:         %s\n", cfg.Agents.HR.BaseURL())
	fmt.Printf("  Finance:    %s\n", cfg.Agents.Finance.BaseURL())
}
