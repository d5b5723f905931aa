package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pydocgen/internal/config"
	"git.home.luguber.info/inful/pydocgen/internal/daemon"
	"git.home.luguber.info/inful/pydocgen/internal/eventstore"
	"git.home.luguber.info/inful/pydocgen/internal/manifest"
	"git.home.luguber.info/inful/pydocgen/internal/metrics"
	"git.home.luguber.info/inful/pydocgen/internal/pipeline"
	"git.home.luguber.info/inful/pydocgen/internal/scan"
	"git.home.luguber.info/inful/pydocgen/internal/version"
)

// Exit codes: 0 all markdown generated, 1 at least one generation or index
// failure, 2 configuration or scan error.
const (
	exitOK          = 0
	exitBuildFailed = 1
	exitConfigError = 2
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"pydocgen.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Build struct {
		Source     string `short:"s" help:"Override the configured source root"`
		Output     string `short:"o" help:"Override the configured output directory"`
		Jobs       int    `short:"j" help:"Concurrent generation workers" default:"1"`
		NoDiagrams bool   `help:"Skip UML diagram generation"`
		Full       bool   `help:"Discard the manifest and regenerate everything"`
	} `cmd:"" help:"Generate documentation for changed source files"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Watch struct {
		MetricsAddr string `help:"Serve Prometheus metrics on this address, e.g. :9090"`
	} `cmd:"" help:"Rebuild continuously on source changes"`

	History struct {
		Limit int  `short:"n" help:"Number of runs to show" default:"10"`
		JSON  bool `help:"Emit run history as JSON"`
	} `cmd:"" help:"Show recent documentation runs"`
}

func main() {
	kctx := kong.Parse(&CLI, kong.Vars{"version": "pydocgen " + version.Version})

	switch kctx.Command() {
	case "build":
		os.Exit(runBuild())
	case "init":
		os.Exit(runInit())
	case "watch":
		os.Exit(runWatch())
	case "history":
		os.Exit(runHistory())
	default:
		kctx.Fatalf("unknown command %q", kctx.Command())
	}
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist. Malformed configuration is a hard error.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(CLI.Config); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(CLI.Config)
}

func setupLogger(cfg *config.Config) *slog.Logger {
	logger := config.NewLogger(cfg.Logging, CLI.Verbose)
	slog.SetDefault(logger)
	return logger
}

func runBuild() int {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return exitConfigError
	}
	if CLI.Build.Source != "" {
		cfg.Source.Root = CLI.Build.Source
	}
	if CLI.Build.Output != "" {
		cfg.Output.Directory = CLI.Build.Output
	}
	logger := setupLogger(cfg)

	if CLI.Build.Full {
		manifestPath := filepath.Join(cfg.Output.Directory, manifest.FileName)
		if err := os.Remove(manifestPath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to discard manifest", "path", manifestPath, "error", err)
			return exitBuildFailed
		}
	}

	events := openEvents(cfg, logger)
	if events != nil {
		defer events.Close()
	}

	pipe := pipeline.New(cfg, pipeline.Options{
		Jobs:            CLI.Build.Jobs,
		DisableDiagrams: CLI.Build.NoDiagrams,
		Events:          events,
		Logger:          logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := pipe.Run(ctx)
	if err != nil {
		logger.Error("Build failed", "error", err)
		if isConfigError(err) {
			return exitConfigError
		}
		return exitBuildFailed
	}
	if !sum.Ok() {
		return exitBuildFailed
	}
	return exitOK
}

func runInit() int {
	logger := setupLogger(config.Default())
	if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
		logger.Error("Init failed", "error", err)
		return exitConfigError
	}
	logger.Info("Configuration file written", "path", CLI.Config)
	return exitOK
}

func runWatch() int {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return exitConfigError
	}
	if CLI.Watch.MetricsAddr != "" {
		cfg.Watch.MetricsAddr = CLI.Watch.MetricsAddr
	}
	logger := setupLogger(cfg)

	events := openEvents(cfg, logger)
	if events != nil {
		defer events.Close()
	}

	registry := prom.NewRegistry()
	pipe := pipeline.New(cfg, pipeline.Options{
		Recorder: metrics.NewPrometheusRecorder(registry),
		Events:   events,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := daemon.New(cfg, pipe, daemon.Options{MetricsRegistry: registry, Logger: logger})
	if err := d.Run(ctx); err != nil {
		logger.Error("Watch mode failed", "error", err)
		if isConfigError(err) {
			return exitConfigError
		}
		return exitBuildFailed
	}
	return exitOK
}

func runHistory() int {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return exitConfigError
	}
	logger := setupLogger(cfg)

	store, err := eventstore.Open(filepath.Join(cfg.Output.Directory, eventstore.FileName))
	if err != nil {
		logger.Error("Failed to open run history", "error", err)
		return exitBuildFailed
	}
	defer store.Close()

	runs, err := store.RecentRuns(context.Background(), CLI.History.Limit)
	if err != nil {
		logger.Error("Failed to read run history", "error", err)
		return exitBuildFailed
	}

	if CLI.History.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runs); err != nil {
			logger.Error("Failed to encode run history", "error", err)
			return exitBuildFailed
		}
		return exitOK
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return exitOK
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tGENERATED\tSKIPPED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			shortID(r.RunID),
			r.Generated, r.Skipped, r.Failed)
	}
	_ = w.Flush()
	return exitOK
}

// openEvents opens the run-history store under the output directory. History
// is best effort; a failure disables it for the run.
func openEvents(cfg *config.Config, logger *slog.Logger) *eventstore.Store {
	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		logger.Warn("Failed to create output directory for run history", "error", err)
		return nil
	}
	store, err := eventstore.Open(filepath.Join(cfg.Output.Directory, eventstore.FileName))
	if err != nil {
		logger.Warn("Run history disabled", "error", err)
		return nil
	}
	return store
}

func isConfigError(err error) bool {
	return errors.Is(err, scan.ErrRootNotFound)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
