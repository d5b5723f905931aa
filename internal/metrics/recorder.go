package metrics

import "time"

// FileResult labels per-file generation outcomes.
type FileResult string

const (
	FileGenerated FileResult = "generated"
	FileSkipped   FileResult = "skipped"
	FileFailed    FileResult = "failed"
)

// RunOutcome labels whole-run outcomes.
type RunOutcome string

const (
	RunSuccess RunOutcome = "success"
	RunFailed  RunOutcome = "failed"
)

// Recorder receives pipeline metrics. Implementations must tolerate nil
// receivers so callers never need guards.
type Recorder interface {
	ObserveRunDuration(d time.Duration)
	IncFileResult(result FileResult)
	IncRunOutcome(outcome RunOutcome)
	IncDiagramWarning()
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) ObserveRunDuration(time.Duration) {}
func (Noop) IncFileResult(FileResult)         {}
func (Noop) IncRunOutcome(RunOutcome)         {}
func (Noop) IncDiagramWarning()               {}
