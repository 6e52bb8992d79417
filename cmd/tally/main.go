package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rahul/tally/internal/observability"
	"github.com/rahul/tally/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ConfigPath string
	PlanPath   string
	Version    bool
}

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("tally", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigPath, "config", "config.json", "path to the JSON or YAML config file")
	fs.StringVar(&flags.PlanPath, "plan", "", "answer from a saved plan file instead of calling the planner")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	// Route all log output through the terminal mutex so it never
	// interrupts the REPL prompt.
	log.SetOutput(observability.NewTermWriter())

	cfg, err := config.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}

	llm, modelName, err := newModel(cfg)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, llm, modelName)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	query := strings.Join(fs.Args(), " ")
	switch {
	case flags.PlanPath != "":
		return a.answerPlanFile(ctx, flags.PlanPath, query, os.Stdout)
	case query != "":
		return a.answer(ctx, query, os.Stdout)
	case a.hasGateways():
		return a.serveGateways(ctx)
	case observability.IsInteractive():
		observability.PrintBanner()
		return a.answerLines(ctx, os.Stdin, os.Stdout, "> ")
	default:
		return a.answerLines(ctx, os.Stdin, os.Stdout, "")
	}
}

// newModel builds the language model of the first enabled provider.
func newModel(cfg *config.Config) (llms.Model, string, error) {
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		return nil, "", fmt.Errorf("no enabled provider found in config")
	}

	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, "", err
		}
		return llm, pCfg.Model, nil
	default:
		return nil, "", fmt.Errorf("provider %s not yet implemented", pName)
	}
}
