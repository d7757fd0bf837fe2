// Package main provides the tripgen binary entry point.
// Tripgen turns trip requests into day-by-day itineraries by coordinating
// one or two generative text providers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/tripgen/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "tripgen"
)

// shutdownTimeout bounds draining metrics on exit.
const shutdownTimeout = 10 * time.Second

func main() {
	// Add panic recovery
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

// globalOptions are the flags every command shares.
type globalOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Multi-provider itinerary generator",
		Long: `Tripgen generates day-by-day travel itineraries.

It provides:
- Outline then per-day detail generation, split into concurrent chunks
- Single, race, pipeline and cross-review coordination of two providers
- Transit continuity between cities and optional self-correction
- An HTTP API with Prometheus metrics

Configuration is layered: defaults, ~/.config/tripgen/config.yaml,
tripgen.yaml in the working tree, then TRIPGEN_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		generateCmd(opts),
		regenerateCmd(opts),
		serveCmd(opts),
		providersCmd(opts),
		initCmd(opts),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func initCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default user config if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.NewLoader(opts.logger()).EnsureUserConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// logger builds the stderr text logger at the configured level.
func (o *globalOptions) logger() *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(o.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func (o *globalOptions) loader(logger *slog.Logger) *config.Loader {
	var loaderOpts []config.LoaderOption
	if o.configPath != "" {
		loaderOpts = append(loaderOpts, config.WithFile(o.configPath))
	}
	return config.NewLoader(logger, loaderOpts...)
}

// load reads configuration through the layered loader.
func (o *globalOptions) load(logger *slog.Logger) (*config.Config, *config.Loader, error) {
	loader := o.loader(logger)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, loader, nil
}

// withApp loads config, wires an App and runs fn with a signal-aware
// context. Pending metrics are drained afterwards.
func (o *globalOptions) withApp(fn func(ctx context.Context, app *App, loader *config.Loader) error) error {
	logger := o.logger()
	cfg, loader, err := o.load(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	runErr := fn(ctx, app, loader)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics shutdown incomplete", "error", err)
	}
	return runErr
}
