// Package pipeline sequences the documentation build: scan, detect changes,
// generate artifacts for stale files, rebuild the index, persist the
// manifest. Failures below the pipeline are captured per file; only scan and
// index failures abort a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pydocgen/internal/config"
	"git.home.luguber.info/inful/pydocgen/internal/detect"
	"git.home.luguber.info/inful/pydocgen/internal/eventstore"
	"git.home.luguber.info/inful/pydocgen/internal/extract"
	"git.home.luguber.info/inful/pydocgen/internal/generate"
	"git.home.luguber.info/inful/pydocgen/internal/gitinfo"
	"git.home.luguber.info/inful/pydocgen/internal/index"
	"git.home.luguber.info/inful/pydocgen/internal/logfields"
	"git.home.luguber.info/inful/pydocgen/internal/manifest"
	"git.home.luguber.info/inful/pydocgen/internal/metrics"
	"git.home.luguber.info/inful/pydocgen/internal/render"
	"git.home.luguber.info/inful/pydocgen/internal/scan"
	"git.home.luguber.info/inful/pydocgen/internal/version"
)

// Options adjusts pipeline construction beyond what the config file carries.
type Options struct {
	// Jobs is the number of concurrent generation workers; values below 2
	// mean sequential execution.
	Jobs int
	// DisableDiagrams overrides the config (CLI --no-diagrams).
	DisableDiagrams bool
	// Recorder receives metrics; nil means no metrics.
	Recorder metrics.Recorder
	// Events receives run events; nil disables history.
	Events *eventstore.Store
	// Extractor and Renderer override the external-tool implementations
	// (tests substitute doubles here).
	Extractor extract.Extractor
	Renderer  render.Renderer
	Logger    *slog.Logger
}

// Summary aggregates one run's results.
type Summary struct {
	RunID           string
	Generated       int
	Skipped         int
	Failed          int
	Deleted         int
	DiagramWarnings int
	FailedFiles     []string
	FullRebuild     bool
	Duration        time.Duration
}

// Ok reports whether every markdown generation succeeded. Diagram failures
// alone do not fail a run.
func (s *Summary) Ok() bool { return s.Failed == 0 }

// Pipeline is the orchestrator.
type Pipeline struct {
	cfg       *config.Config
	scanner   *scan.Scanner
	detector  *detect.Detector
	generator *generate.Generator
	indexer   *index.Builder
	recorder  metrics.Recorder
	events    *eventstore.Store
	jobs      int
	logger    *slog.Logger
}

// New wires a pipeline from configuration.
func New(cfg *config.Config, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	extractor := opts.Extractor
	if extractor == nil {
		extractor = extract.NewPydocMarkdown(cfg.Tools.PydocMarkdown, cfg.Source.Root, cfg.Tools.TimeoutDuration()).
			WithLogger(logger)
	}

	var renderer render.Renderer
	if !cfg.Diagrams.Disabled && !opts.DisableDiagrams {
		renderer = opts.Renderer
		if renderer == nil {
			renderer = render.NewPyreverse(cfg.Tools.Pyreverse, cfg.Tools.TimeoutDuration()).
				WithLogger(logger)
		}
	}

	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	out := cfg.Output.Directory
	return &Pipeline{
		cfg:       cfg,
		scanner:   scan.NewScanner(cfg.Source.Root, cfg.Source.Include, cfg.Source.Exclude).WithLogger(logger),
		detector:  detect.NewDetector(out).WithLogger(logger),
		generator: generate.NewGenerator(extractor, renderer, out, cfg.Diagrams.Directory).WithLogger(logger),
		indexer:   index.NewBuilder(out, cfg.Output.Title).WithLogger(logger),
		recorder:  recorder,
		events:    opts.Events,
		jobs:      jobs,
		logger:    logger,
	}
}

// Run executes one documentation build. The returned Summary is valid
// whenever err is nil; callers map Summary.Failed to the process exit code.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	sum := &Summary{RunID: runID}

	files, err := p.scanner.Scan()
	if err != nil {
		p.recorder.IncRunOutcome(metrics.RunFailed)
		return nil, err
	}

	manifestPath := filepath.Join(p.cfg.Output.Directory, manifest.FileName)
	prior, err := manifest.Load(manifestPath)
	if err != nil {
		if !errors.Is(err, manifest.ErrCorrupt) {
			p.recorder.IncRunOutcome(metrics.RunFailed)
			return nil, err
		}
		// Corrupt manifest: recover with a full rebuild instead of aborting.
		p.logger.Warn("Manifest unreadable, forcing full rebuild", logfields.Path(manifestPath), logfields.Error(err))
		sum.FullRebuild = true
	}

	part := p.detector.Partition(files, prior)
	p.logger.Info("Change detection completed",
		"total", len(files),
		"stale", len(part.Stale),
		"unchanged", len(part.Unchanged),
		"deleted", len(part.Deleted))

	p.appendEvent(ctx, runID, eventstore.EventRunStarted, map[string]int{
		"total": len(files),
		"stale": len(part.Stale),
	})

	results := p.generateAll(ctx, part.Stale)
	if ctx.Err() != nil {
		// Interrupted: leave the previous manifest untouched so the next
		// run retries in-flight files.
		p.recorder.IncRunOutcome(metrics.RunFailed)
		return nil, ctx.Err()
	}

	next := prior
	next.RunID = runID
	next.GeneratedAt = time.Now()
	next.ToolVersion = version.Version
	next.SourceCommit = gitinfo.HeadCommit(p.cfg.Source.Root)

	docs := make([]index.Doc, 0, len(results)+len(part.Unchanged))
	var diagrams []string

	for _, art := range results {
		p.reportFile(ctx, runID, art, sum)
		if art.MarkdownPath != "" {
			docs = append(docs, index.Doc{SourceRel: art.Source.RelPath, Path: art.MarkdownPath})
		}
		if art.DiagramPath != "" {
			diagrams = append(diagrams, art.DiagramPath)
		}
		if art.Status == generate.StatusGenerated {
			// Failed files keep their previous entry (or none), so they
			// stay stale and are retried next run.
			next.Record(art.Source.RelPath, art.Source.Hash, art.Source.ModTime, art.Paths())
		}
	}

	for _, f := range part.Unchanged {
		sum.Skipped++
		p.recorder.IncFileResult(metrics.FileSkipped)
		p.logger.Info("File status", logfields.Source(f.RelPath), logfields.Status("skipped"))
		if entry, ok := next.Entries[f.RelPath]; ok {
			docs = append(docs, index.Doc{SourceRel: f.RelPath, Path: generate.MarkdownRel(f.RelPath)})
			diagrams = append(diagrams, diagramPaths(entry, p.cfg.Diagrams.Directory)...)
		}
	}

	keep := make(map[string]struct{}, len(files))
	for _, f := range files {
		keep[f.RelPath] = struct{}{}
	}
	sum.Deleted = len(next.Prune(keep))

	if err := p.indexer.Build(docs, diagrams); err != nil {
		p.recorder.IncRunOutcome(metrics.RunFailed)
		return nil, fmt.Errorf("index build: %w", err)
	}

	if err := next.Save(manifestPath); err != nil {
		p.recorder.IncRunOutcome(metrics.RunFailed)
		return nil, fmt.Errorf("persist manifest: %w", err)
	}

	sum.Duration = time.Since(start)
	p.recorder.ObserveRunDuration(sum.Duration)
	if sum.Ok() {
		p.recorder.IncRunOutcome(metrics.RunSuccess)
	} else {
		p.recorder.IncRunOutcome(metrics.RunFailed)
	}

	p.appendEvent(ctx, runID, eventstore.EventRunCompleted, map[string]int{
		"generated": sum.Generated,
		"skipped":   sum.Skipped,
		"failed":    sum.Failed,
	})

	p.logger.Info("Run completed",
		logfields.RunID(runID),
		slog.Int("generated", sum.Generated),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
		slog.Int("deleted", sum.Deleted),
		logfields.Duration(sum.Duration))
	for _, name := range sum.FailedFiles {
		p.logger.Error("Generation failed", logfields.Source(name))
	}

	return sum, nil
}

// generateAll runs the generator over the stale set, sequentially or with a
// bounded worker pool. Workers write to disjoint output paths, so the only
// coordination point is the results slice indexed per file.
func (p *Pipeline) generateAll(ctx context.Context, stale []detect.StaleFile) []generate.Artifact {
	results := make([]generate.Artifact, len(stale))

	if p.jobs <= 1 {
		for i, sf := range stale {
			if ctx.Err() != nil {
				return results[:i]
			}
			results[i] = p.generator.Generate(ctx, sf.File)
		}
		return results
	}

	sem := make(chan struct{}, p.jobs)
	var wg sync.WaitGroup
	for i, sf := range stale {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sf detect.StaleFile) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.generator.Generate(ctx, sf.File)
		}(i, sf)
	}
	// Index building and manifest updates happen only after every worker
	// has reported.
	wg.Wait()
	return results
}

func (p *Pipeline) reportFile(ctx context.Context, runID string, art generate.Artifact, sum *Summary) {
	for range art.Warnings {
		sum.DiagramWarnings++
		p.recorder.IncDiagramWarning()
	}

	if art.Status == generate.StatusGenerated {
		sum.Generated++
		p.recorder.IncFileResult(metrics.FileGenerated)
		p.logger.Info("File status",
			logfields.Source(art.Source.RelPath),
			logfields.Status("generated"),
			slog.Bool("diagram", art.DiagramPath != ""))
		p.appendEvent(ctx, runID, eventstore.EventFileGenerated, map[string]string{"source": art.Source.RelPath})
		return
	}

	sum.Failed++
	sum.FailedFiles = append(sum.FailedFiles, art.Source.RelPath)
	p.recorder.IncFileResult(metrics.FileFailed)
	p.logger.Warn("File status",
		logfields.Source(art.Source.RelPath),
		logfields.Status("failed"),
		slog.Bool("fallback_written", art.MarkdownPath != ""),
		logfields.Error(art.Err))
	p.appendEvent(ctx, runID, eventstore.EventFileFailed, map[string]string{
		"source": art.Source.RelPath,
		"error":  fmt.Sprint(art.Err),
	})
}

func (p *Pipeline) appendEvent(ctx context.Context, runID, eventType string, payload any) {
	if p.events == nil {
		return
	}
	if err := p.events.Append(ctx, runID, eventType, payload); err != nil {
		p.logger.Warn("Failed to append run event", "type", eventType, "error", err)
	}
}

// diagramPaths extracts the diagram entries from a manifest record. Diagrams
// are recognized by living under the diagram directory.
func diagramPaths(entry manifest.Entry, diagramDir string) []string {
	var out []string
	for _, rel := range entry.Artifacts {
		if path.Dir(rel) == diagramDir {
			out = append(out, rel)
		}
	}
	return out
}
