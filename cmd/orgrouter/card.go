package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/orgrouter/pkg/discovery"
	"github.com/kadirpekel/orgrouter/pkg/runtime"
	"github.com/kadirpekel/orgrouter/pkg/server"
)

// CardCmd prints an agent card: the router's own, or one fetched from a
// downstream agent.
type CardCmd struct {
	Agent string `arg:"" optional:"" help:"Which card: admin, hr or finance." enum:"admin,hr,finance" default:"admin"`
	URL   string `help:"Fetch from this base URL instead of the configured endpoint."`
}

func (c *CardCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := loadConfig(ctx, cli)
	if err != nil {
		return err
	}
	if loader != nil {
		loader.Close()
	}

	var card any
	switch c.Agent {
	case "admin":
		card = server.NewAdminCard(cfg)
	default:
		baseURL := c.URL
		if baseURL == "" {
			baseURL = cfg.Agents.HR.BaseURL()
			if c.Agent == "finance" {
				baseURL = cfg.Agents.Finance.BaseURL()
			}
		}

		hc, err := runtime.NewAgentHTTPClient(&cfg.Agents)
		if err != nil {
			return err
		}
		fetcher := discovery.NewFetcher(
			discovery.WithHTTPClient(hc, cfg.Agents.CardRetries),
			discovery.WithFetchTimeout(cfg.Agents.CardTimeout),
		)
		fetched, err := fetcher.Fetch(ctx, baseURL)
		if err != nil {
			return fmt.Errorf("%s agent: %w", strings.ToUpper(c.Agent), err)
		}
		card = fetched
	}

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(card)
}
