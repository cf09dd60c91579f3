package tally

import "log/slog"

// ProgressStage identifies the kind of progress event.
type ProgressStage uint8

const (
	// StageDiscovered fires once per directory level after child
	// enumeration completes; Total carries the item count.
	StageDiscovered ProgressStage = iota

	// StageItemCompleted fires once per finished child.
	StageItemCompleted
)

// ProgressEvent reports traversal progress for one directory level.
type ProgressEvent struct {
	Stage     ProgressStage
	Path      string
	Completed int
	Total     int
}

// ProgressFunc receives progress events on the indexing call stack.
// It must not block; callers that feed a UI should hand events to a
// queue rather than touching shared state directly. A callback that
// panics is caught and logged, never fatal.
type ProgressFunc func(ProgressEvent)

// Stats summarizes one orchestration invocation. A run with Skipped
// greater than zero completed, but produced no record for the skipped
// items; callers surface that distinctly from a fatal failure.
type Stats struct {
	Indexed   int
	Skipped   int
	Sidecars  int
	Generated int
	Bytes     uint64
}

// indexConfig holds per-invocation orchestration settings.
type indexConfig struct {
	logger    *slog.Logger
	progress  ProgressFunc
	queue     *DeleteQueue
	recursive bool
	inPlace   bool
	runner    RunnerFunc
}

// IndexOption configures one orchestration invocation.
type IndexOption func(*indexConfig)

// IndexWithLogger sets the logger for diagnostics and warnings.
// Nil discards all output.
func IndexWithLogger(logger *slog.Logger) IndexOption {
	return func(c *indexConfig) {
		c.logger = logger
	}
}

// IndexWithProgress registers a progress callback.
func IndexWithProgress(fn ProgressFunc) IndexOption {
	return func(c *indexConfig) {
		c.progress = fn
	}
}

// IndexWithDeleteQueue supplies the accumulator for absorbed sidecar
// paths. The queue must be owned by exactly this invocation.
func IndexWithDeleteQueue(q *DeleteQueue) IndexOption {
	return func(c *indexConfig) {
		c.queue = q
	}
}

// IndexShallow builds a single level of children without descending
// into subdirectories; their entries carry null children lists.
func IndexShallow() IndexOption {
	return func(c *indexConfig) {
		c.recursive = false
	}
}

// IndexInPlace writes a per-item artifact next to each completed item
// during traversal, using the double-suffix naming convention.
func IndexInPlace() IndexOption {
	return func(c *indexConfig) {
		c.inPlace = true
	}
}

// IndexWithRunner overrides the external-tool exec boundary.
// Intended for tests and alternate tool wrappers.
func IndexWithRunner(run RunnerFunc) IndexOption {
	return func(c *indexConfig) {
		c.runner = run
	}
}
