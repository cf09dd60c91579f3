package tally

import "errors"

// Sentinel errors for the fatal tier. Item-level and field-level
// failures are reduced to data (skipped items, null fields) inside the
// component that detects them and never surface as errors.
var (
	// ErrTargetNotFound is returned when the indexing target does not
	// exist or cannot be accessed at all.
	ErrTargetNotFound = errors.New("tally: target does not exist")

	// ErrInvalidConfig is returned when an unvalidated or inconsistent
	// configuration reaches the engine.
	ErrInvalidConfig = errors.New("tally: invalid configuration")

	// ErrCancelled is returned when a directory build is abandoned due
	// to cooperative cancellation. No partial tree accompanies it.
	ErrCancelled = errors.New("tally: indexing cancelled")
)
