// Package main provides the mathcheck binary entry point.
// Mathcheck grades free-form mathematical answers for equivalence:
// numerically, symbolically, and under fermionic operator algebra.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	// Register LLM providers via init()
	_ "github.com/c360studio/mathcheck/llm/providers"

	"github.com/spf13/cobra"

	"github.com/c360studio/mathcheck/config"
	"github.com/c360studio/mathcheck/grader"
	"github.com/c360studio/mathcheck/llm"
	"github.com/c360studio/mathcheck/render"
	"github.com/c360studio/mathcheck/server"
	"github.com/c360studio/mathcheck/storage"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "mathcheck"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Mathematical answer grading service",
		Long: `Mathcheck grades free-form mathematical answers for equivalence.

It extracts boxed answers from LaTeX-like markup, normalizes the notation,
parses it into expression trees, and compares answer against solution:
numerically for plain and parameterized answers, symbolically when declared
functions are involved, and by normal ordering for fermionic creation and
annihilation operators.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(&configPath, &logLevel))
	cmd.AddCommand(parseCmd(&logLevel))
	cmd.AddCommand(evalCmd(&logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func serveCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the grading HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve(*configPath, *logLevel)
		},
	}
}

func parseCmd(logLevel *string) *cobra.Command {
	var (
		parameters string
		functions  string
	)

	cmd := &cobra.Command{
		Use:   "parse <answer>",
		Short: "Run one answer through the grading pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			setupLogging(*logLevel)
			ev := grader.New().Evaluate(grader.Request{
				Answer:     args[0],
				Parameters: parameters,
				Functions:  functions,
			})
			return printJSON(ev)
		},
	}

	cmd.Flags().StringVarP(&parameters, "parameters", "p", "", "Parameter declaration, e.g. \"$a; b$\"")
	cmd.Flags().StringVarP(&functions, "functions", "f", "", "Function declaration, e.g. \"$f(x)$\"")
	return cmd
}

func evalCmd(logLevel *string) *cobra.Command {
	var (
		parameters string
		functions  string
		literals   bool
	)

	cmd := &cobra.Command{
		Use:   "eval <answer> <solution>",
		Short: "Grade an answer against a ground-truth solution",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			setupLogging(*logLevel)
			g := grader.New()
			if literals {
				return printJSON(g.CompareLiterals(args[0], args[1]))
			}
			return printJSON(g.Compare(args[0], args[1], parameters, functions))
		},
	}

	cmd.Flags().StringVarP(&parameters, "parameters", "p", "", "Parameter declaration, e.g. \"$a; b$\"")
	cmd.Flags().StringVarP(&functions, "functions", "f", "", "Function declaration, e.g. \"$f(x)$\"")
	cmd.Flags().BoolVar(&literals, "literals", false, "Compare boxed numeric literals without parsing expressions")
	return cmd
}

func serve(configPath, logLevel string) error {
	logger := setupLogging(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := []server.Option{server.WithLogger(logger)}

	store, err := storage.NewLocal(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("open storage root: %w", err)
	}
	opts = append(opts, server.WithStore(store))

	renderer := render.New(render.Config{
		PDFLaTeX: cfg.Render.PDFLaTeX,
		PDFToPPM: cfg.Render.PDFToPPM,
		WorkDir:  cfg.Render.WorkDir,
		Timeout:  cfg.Render.Timeout,
	}, store, render.WithLogger(logger))
	opts = append(opts, server.WithRenderer(renderer))

	if len(cfg.Models.Endpoints) > 0 {
		registry, err := cfg.Registry()
		if err != nil {
			return fmt.Errorf("build model registry: %w", err)
		}
		client := llm.NewClient(registry, llm.WithLogger(logger))
		opts = append(opts, server.WithLLM(client, registry))
		logger.Info("llm endpoints configured", "models", registry.Names(), "default", registry.Default())
	} else {
		logger.Info("no llm endpoints configured, answer generation disabled")
	}

	if cfg.Prompt.SuffixFile != "" {
		suffix, err := config.NewPromptSuffix(cfg.Prompt.SuffixFile, logger)
		if err != nil {
			return fmt.Errorf("watch prompt suffix: %w", err)
		}
		defer suffix.Close()
		opts = append(opts, server.WithPromptSuffix(suffix))
	}

	srv := server.New(grader.New(grader.WithLogger(logger)), opts...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("mathcheck ready", "version", Version, "addr", cfg.Server.Addr)
	return srv.Start(ctx, cfg.Server)
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.NewLoader(logger).Load()
}

func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
