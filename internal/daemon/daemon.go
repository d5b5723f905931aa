// Package daemon implements watch mode: a filesystem watcher feeding a
// debounced build loop, with an optional periodic full rebuild and an
// optional Prometheus metrics endpoint.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pydocgen/internal/config"
	"git.home.luguber.info/inful/pydocgen/internal/logfields"
	"git.home.luguber.info/inful/pydocgen/internal/pipeline"
)

// Options adjusts daemon construction.
type Options struct {
	// MetricsRegistry is served on Watch.MetricsAddr when both are set.
	MetricsRegistry *prom.Registry
	Logger          *slog.Logger
}

// Daemon runs documentation builds continuously until its context is
// cancelled. Build failures are logged and the loop keeps running; only
// setup errors abort.
type Daemon struct {
	cfg    *config.Config
	pipe   *pipeline.Pipeline
	reg    *prom.Registry
	logger *slog.Logger
}

// New wires a daemon around an already-constructed pipeline.
func New(cfg *config.Config, pipe *pipeline.Pipeline, opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{cfg: cfg, pipe: pipe, reg: opts.MetricsRegistry, logger: logger}
}

// Run blocks until ctx is cancelled. The first build happens immediately;
// afterwards builds are triggered by debounced file changes and, when
// configured, a periodic rebuild interval.
func (d *Daemon) Run(ctx context.Context) error {
	watcher, err := NewSourceWatcher(d.cfg.Source.Root, d.logger)
	if err != nil {
		return fmt.Errorf("watch source root: %w", err)
	}
	defer watcher.Close()

	debouncer := NewDebouncer(d.cfg.Watch.DebounceDuration(), 0)
	go debouncer.Run(ctx)
	go watcher.Watch(func(string) { debouncer.Notify() })
	go d.logWatchErrors(ctx, watcher)

	scheduler, err := d.startScheduler(debouncer)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() {
			if err := scheduler.Shutdown(); err != nil {
				d.logger.Warn("Scheduler shutdown failed", "error", err)
			}
		}()
	}

	metricsDone := d.serveMetrics(ctx)

	d.logger.Info("Watch mode started",
		"root", d.cfg.Source.Root,
		"debounce", d.cfg.Watch.DebounceDuration(),
		"interval", d.cfg.Watch.IntervalDuration())

	d.build(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Watch mode stopping")
			if metricsDone != nil {
				<-metricsDone
			}
			return nil
		case n := <-debouncer.Triggers():
			d.logger.Info("Rebuild triggered", "coalesced_events", n)
			d.build(ctx, "change")
		}
	}
}

// build runs one pipeline pass; failures do not stop the daemon.
func (d *Daemon) build(ctx context.Context, reason string) {
	start := time.Now()
	sum, err := d.pipe.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("Build failed", "reason", reason, logfields.Error(err))
		}
		return
	}
	d.logger.Info("Build finished",
		"reason", reason,
		logfields.RunID(sum.RunID),
		"generated", sum.Generated,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		logfields.Duration(time.Since(start)))
}

// startScheduler registers the periodic rebuild job when an interval is
// configured. A nil scheduler means no interval was set.
func (d *Daemon) startScheduler(debouncer *Debouncer) (gocron.Scheduler, error) {
	interval := d.cfg.Watch.IntervalDuration()
	if interval <= 0 {
		return nil, nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			d.logger.Debug("Periodic rebuild tick")
			debouncer.Notify()
		}),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("schedule periodic rebuild: %w", err)
	}
	scheduler.Start()
	return scheduler, nil
}

func (d *Daemon) logWatchErrors(ctx context.Context, watcher *SourceWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-watcher.Errors():
			if !ok {
				return
			}
			d.logger.Warn("File watcher error", "error", err)
		}
	}
}
