package tally

import core "github.com/tallyfs/tally/core"

// Re-export progress types from core.
type (
	// ProgressEvent reports traversal progress for one directory level.
	ProgressEvent = core.ProgressEvent

	// ProgressStage identifies the kind of progress event.
	ProgressStage = core.ProgressStage

	// ProgressFunc receives progress events on the indexing call stack.
	ProgressFunc = core.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageDiscovered fires once per directory level after child
	// enumeration completes.
	StageDiscovered = core.StageDiscovered

	// StageItemCompleted fires once per finished child.
	StageItemCompleted = core.StageItemCompleted
)
