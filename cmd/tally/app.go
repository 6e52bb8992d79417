package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rahul/tally/internal/agent"
	"github.com/rahul/tally/internal/gateway"
	"github.com/rahul/tally/internal/governance"
	"github.com/rahul/tally/internal/observability"
	"github.com/rahul/tally/internal/oracle"
	"github.com/rahul/tally/internal/store"
	"github.com/rahul/tally/internal/tools"
	"github.com/rahul/tally/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"
)

const heartbeatInterval = 30 * time.Second

type app struct {
	cfg          *config.Config
	logger       *observability.Logger
	history      *store.HistoryStore
	orchestrator *agent.Orchestrator
}

func newApp(cfg *config.Config, llm llms.Model, modelName string) (*app, error) {
	logger := observability.NewLogger(observability.NewTermWriter(), cfg.Logging.LLMLogPath)

	gov := governance.NewDefaultPolicyEngine()
	for _, pattern := range cfg.Policy.DenyPatterns {
		if err := gov.DenyQueries(pattern); err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", pattern, err)
		}
	}
	gov.MaxQueryLength = cfg.Policy.MaxQueryLength
	gov.MaxSubQueries = cfg.Policy.MaxSubQueries

	client := oracle.New(llm,
		oracle.WithTimeout(cfg.OracleTimeout()),
		oracle.WithLogger(logger),
		oracle.WithModelName(modelName),
	)

	orch := agent.NewOrchestrator(client, tools.NewArithmeticRegistry(), agent.NewPromptManager(cfg.Pipeline.PromptsDir), logger)
	orch.Policy = gov
	orch.Concurrency = cfg.Pipeline.Concurrency
	orch.FailFast = cfg.ShouldFailFast()

	a := &app{cfg: cfg, logger: logger, orchestrator: orch}
	if cfg.Memory.Path != "" {
		history, err := store.NewHistoryStore(cfg.Memory.Path)
		if err != nil {
			return nil, err
		}
		a.history = history
		orch.History = history
		if cfg.Pipeline.CachePlans {
			orch.Cache = history
		}
	}
	return a, nil
}

func (a *app) Close() error {
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}

func (a *app) answer(ctx context.Context, query string, w io.Writer) error {
	answer, err := a.orchestrator.Process(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, answer)
	return nil
}

func (a *app) answerPlanFile(ctx context.Context, path, query string, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	env, err := agent.DecodeEnvelope(data)
	if err != nil {
		return err
	}
	if query != "" {
		env.Query = query
	}

	answer, err := a.orchestrator.ProcessEnvelope(ctx, env)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, answer)
	return nil
}

// answerLines answers one query per input line until r is exhausted or ctx
// is done. A failed query is reported and does not stop the loop. Lines are
// read on their own goroutine so ctx ends the loop even while r blocks.
func (a *app) answerLines(ctx context.Context, r io.Reader, w io.Writer, prompt string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if prompt != "" {
			fmt.Fprint(w, prompt)
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/status":
			fmt.Fprintln(w, observability.StatusLine())
			continue
		case "/quit", "/exit":
			return nil
		}

		answer, err := a.orchestrator.Process(ctx, line)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(w, "%s\n\n", answer)
	}
}

func (a *app) messengers() ([]gateway.Messenger, error) {
	var out []gateway.Messenger
	if tgCfg, ok := a.cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, a.orchestrator)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		if a.history != nil {
			tg.Responder.History = a.history
		}
		out = append(out, tg)
	}
	if dcCfg, ok := a.cfg.GetDiscordConfig(); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, a.orchestrator)
		if err != nil {
			return nil, fmt.Errorf("discord: %w", err)
		}
		if a.history != nil {
			dc.Responder.History = a.history
		}
		out = append(out, dc)
	}
	return out, nil
}

func (a *app) hasGateways() bool {
	_, tg := a.cfg.GetTelegramConfig()
	_, dc := a.cfg.GetDiscordConfig()
	return tg || dc
}

// serveGateways runs every enabled gateway until ctx is done or one fails.
func (a *app) serveGateways(ctx context.Context) error {
	messengers, err := a.messengers()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range messengers {
		g.Go(func() error {
			defer m.Stop()
			return m.Start(gctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				observability.Heartbeat()
				a.logger.LogHeartbeat()
			}
		}
	})

	log.Printf("%s is listening on %d gateway(s)", a.cfg.App.Name, len(messengers))
	err = g.Wait()
	log.Println("Gateways stopped")
	return err
}
