package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kadirpekel/orgrouter/pkg/dispatcher"
	"github.com/kadirpekel/orgrouter/pkg/routing"
	"github.com/kadirpekel/orgrouter/pkg/runtime"
)

// ClassifyCmd classifies a query against the live agent cards, and with
// --route sends it through the full dispatch path.
type ClassifyCmd struct {
	Query []string `arg:"" help:"The employee question."`
	Route bool     `short:"r" help:"Route the query to the selected agents and print the joined reply."`
	JSON  bool     `help:"Print the result as JSON."`
}

type classifyOutput struct {
	Query         string `json:"query"`
	Target        string `json:"target"`
	Source        string `json:"source"`
	Reason        string `json:"reason,omitempty"`
	KeywordTarget string `json:"keyword_target,omitempty"`
	Disagrees     bool   `json:"disagrees,omitempty"`
	Reply         string `json:"reply,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	DurationMS    int64  `json:"duration_ms,omitempty"`
}

func (c *ClassifyCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	query := strings.TrimSpace(strings.Join(c.Query, " "))
	if query == "" {
		return fmt.Errorf("query is empty")
	}

	cfg, loader, err := loadConfig(ctx, cli)
	if err != nil {
		return err
	}
	if loader != nil {
		loader.Close()
	}

	cleanup, err := initLogger(cli, &cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	rt, err := runtime.New(ctx, cfg, runtime.WithoutInboundAuth())
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer rt.Close()

	out := classifyOutput{Query: query}

	if c.Route {
		reply, err := rt.Dispatcher().Route(ctx, dispatcher.Query{Text: query, Caller: "cli"})
		if err != nil {
			return err
		}
		out.setDecision(reply.Decision)
		out.Reply = reply.Text
		out.CorrelationID = reply.CorrelationID
		out.DurationMS = reply.Duration.Milliseconds()
	} else {
		agents := make(routing.Agents)
		for _, e := range rt.Registry().Cards(ctx) {
			if e.Available() {
				agents[routing.Target(e.Agent.Name)] = e.Card
			}
		}
		decision, err := rt.Classifier().Classify(ctx, query, agents)
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}
		out.setDecision(decision)
	}

	if c.JSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	fmt.Fprintf(stdout, "Target: %s\n", out.Target)
	fmt.Fprintf(stdout, "Source: %s\n", out.Source)
	if out.Reason != "" {
		fmt.Fprintf(stdout, "Reason: %s\n", out.Reason)
	}
	if out.Disagrees {
		fmt.Fprintf(stdout, "Keyword cross-check suggests %s\n", out.KeywordTarget)
	}
	if c.Route {
		fmt.Fprintf(stdout, "\n%s\n", out.Reply)
	}
	return nil
}

func (o *classifyOutput) setDecision(d routing.Decision) {
	o.Target = string(d.Target)
	o.Source = string(d.Source)
	o.Reason = d.Reason
	o.Disagrees = d.Disagrees
	if d.KeywordTarget != "" {
		o.KeywordTarget = string(d.KeywordTarget)
	}
}
