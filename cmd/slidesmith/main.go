package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"slidesmith-backend/internal/analyzer"
	"slidesmith-backend/internal/config"
	"slidesmith-backend/internal/content"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/pipeline"
	"slidesmith-backend/internal/prompts"
	"slidesmith-backend/internal/render"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slidesmith",
	Short: "Generate slide decks from a prompt with a streaming LLM",
	Long: `slidesmith drives the deck generation pipeline from the command line.

Examples:
  slidesmith analyze "A 5 slide pitch for our new CRM"
  slidesmith generate --topic "Q3 results" --slides 6 --audience executives
  slidesmith run --topic "Onboarding" --provider anthropic --out deck.html`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(runCmd)

	rootCmd.PersistentFlags().StringP("provider", "p", "", "Model provider (openai, gemini, anthropic); defaults to DEFAULT_PROVIDER")
	rootCmd.PersistentFlags().String("log-level", "", "Override LOG_LEVEL")
}

// app is the wired generation stack for one CLI invocation.
type app struct {
	cfg      config.Config
	log      logger.Logger
	provider llm.ProviderID
	analyzer *analyzer.Analyzer
	content  *content.Generator
	pipeline *pipeline.Pipeline
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg := config.Load()
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	// CLI output goes to stdout, keep logs readable on stderr
	lg := logger.NewStructured(cfg.LogLevel, "console")

	raw, _ := cmd.Flags().GetString("provider")
	if raw == "" {
		raw = cfg.DefaultProvider
	}
	provider, err := llm.ParseProviderID(raw)
	if err != nil {
		return nil, err
	}
	mode, err := deck.ParseMode(cfg.ParserMode)
	if err != nil {
		return nil, err
	}
	set, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}

	reg := llm.NewRegistry(cfg, lg)
	a := analyzer.New(reg, set.Analyzer, mode, provider, lg)
	c := content.New(reg, set, mode, provider, lg)
	r := render.New(reg, set.Slide, cfg.MaxParallelSlides, lg)
	return &app{
		cfg:      cfg,
		log:      lg,
		provider: provider,
		analyzer: a,
		content:  c,
		pipeline: pipeline.New(a, c, r, lg),
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
