package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/research"
)

var (
	topic         string
	language      string
	provider      string
	model         string
	searchBackend string
	iterations    int
	maxResults    int
	parallel      bool
	requirement   string
	detailLevel   string
	reportStyle   string
	mockMode      bool
	timeout       time.Duration
	outputFile    string
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "An iterative web research agent",
		Long: `deep-research researches a topic by repeatedly generating search queries, searching the web,
distilling the results into findings and deciding whether to dig deeper, then writes a final report.`,
		RunE: run,
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&topic, "topic", "t", "", "The research topic")
	flags.StringVarP(&language, "language", "l", "English", "Language of the report")
	flags.StringVarP(&provider, "provider", "p", "", "LLM provider: google, openai, anthropic or mock (default from DEFAULT_PROVIDER)")
	flags.StringVarP(&model, "model", "m", "", "Model name override")
	flags.StringVarP(&searchBackend, "search", "s", "", "Search backend: tavily, brave, arxiv or mock (default from SEARCH_BACKEND)")
	flags.IntVarP(&iterations, "iterations", "i", 3, "Maximum number of research rounds")
	flags.IntVar(&maxResults, "max-results", 5, "Search results per query")
	flags.BoolVar(&parallel, "parallel", false, "Search and synthesize queries concurrently")
	flags.StringVar(&requirement, "requirement", "", "Additional requirement for the research")
	flags.StringVar(&detailLevel, "detail", "", "Level of detail for the report")
	flags.StringVar(&reportStyle, "style", "", "Style hint for the report")
	flags.BoolVar(&mockMode, "mock", false, "Use deterministic mock providers and search")
	flags.DurationVar(&timeout, "timeout", 0, "Overall research deadline (default from SESSION_TIMEOUT)")
	flags.StringVarP(&outputFile, "output", "o", "", "Write the report to this file")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if mockMode {
		cfg.MockMode = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if !cmd.Flags().Changed("topic") {
		// Interactive Mode
		reader := bufio.NewReader(os.Stdin)

		fmt.Fprint(os.Stderr, "Enter research topic: ")
		input, _ := reader.ReadString('\n')
		topic = strings.TrimSpace(input)
	}
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("topic cannot be empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting research", "topic", topic, "iterations", iterations, "mock", cfg.MockMode)

	report := research.RunResearch(ctx, cfg, research.Request{
		Topic:         topic,
		Language:      language,
		Provider:      provider,
		Model:         model,
		SearchBackend: searchBackend,
		MaxIterations: iterations,
		Options: research.Options{
			MaxResultsPerQuery: maxResults,
			Requirement:        requirement,
			DetailLevel:        detailLevel,
			ReportStyleHint:    reportStyle,
			Parallel:           parallel,
			Timeout:            timeout,
		},
	})

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(report), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		slog.Info("Saved report", "filename", outputFile)
		return nil
	}

	fmt.Println(report)
	return nil
}
