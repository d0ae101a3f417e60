package metrics

import "time"

// OutcomeLabel enumerates build outcomes for counters.
type OutcomeLabel string

const (
	// OutcomeSuccess is a command that exited 0, or a meta target.
	OutcomeSuccess OutcomeLabel = "success"
	// OutcomeFailed is a command that exited non-zero.
	OutcomeFailed OutcomeLabel = "failed"
	// OutcomeError is a build that stopped on an error before or instead of running a command.
	OutcomeError OutcomeLabel = "error"
	// OutcomePrinted is a print-only build.
	OutcomePrinted OutcomeLabel = "printed"
	// OutcomeNoCommand is a build whose command was empty.
	OutcomeNoCommand OutcomeLabel = "no_command"
)

// Recorder defines observability hooks for builds. Implementations must be
// safe to call on every build.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(target string, d time.Duration)
	IncBuildOutcome(target string, outcome OutcomeLabel)
	AddMeldWarnings(target string, n int)
	AddLoopIterations(target string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)  {}
func (NoopRecorder) ObserveBuildDuration(string, time.Duration)  {}
func (NoopRecorder) IncBuildOutcome(string, OutcomeLabel)        {}
func (NoopRecorder) AddMeldWarnings(string, int)                 {}
func (NoopRecorder) AddLoopIterations(string, int)               {}
