package tally

import core "github.com/tallyfs/tally/core"

// --- Re-exports from core ---

type (
	// CatalogEntry is one assembled record for a file or directory.
	CatalogEntry = core.CatalogEntry

	// MetadataRecord is one unit of metadata attached to an entry.
	MetadataRecord = core.MetadataRecord

	// Payload is the tagged union of metadata payload shapes.
	Payload = core.Payload

	// DigestSet holds the rendered digests of one input.
	DigestSet = core.DigestSet

	// Algorithm names a digest algorithm the engine can compute.
	Algorithm = core.Algorithm

	// Config is the fully resolved, immutable engine configuration.
	Config = core.Config

	// SidecarRule binds a classification kind to filename patterns.
	SidecarRule = core.SidecarRule

	// DeleteQueue accumulates absorbed sidecar paths for cleanup.
	DeleteQueue = core.DeleteQueue

	// Stats summarizes one orchestration invocation.
	Stats = core.Stats

	// IndexOption configures one orchestration invocation.
	IndexOption = core.IndexOption

	// Manifest wraps a record tree for serialization.
	Manifest = core.Manifest
)

// Entry type discriminators.
const (
	EntryTypeFile      = core.EntryTypeFile
	EntryTypeDirectory = core.EntryTypeDirectory
)

// Digest algorithms.
const (
	AlgorithmMD5    = core.AlgorithmMD5
	AlgorithmSHA256 = core.AlgorithmSHA256
	AlgorithmSHA512 = core.AlgorithmSHA512
)

// Metadata origins.
const (
	OriginGenerated = core.OriginGenerated
	OriginSidecar   = core.OriginSidecar
)

// DefaultConfig returns the stock engine configuration.
var DefaultConfig = core.DefaultConfig

// Option constructors re-exported from core.
var (
	IndexWithLogger      = core.IndexWithLogger
	IndexWithProgress    = core.IndexWithProgress
	IndexWithDeleteQueue = core.IndexWithDeleteQueue
	IndexShallow         = core.IndexShallow
	IndexInPlace         = core.IndexInPlace
)

// Sentinel errors re-exported from core.
var (
	// ErrTargetNotFound is returned when the target does not exist or
	// is inaccessible.
	ErrTargetNotFound = core.ErrTargetNotFound

	// ErrInvalidConfig is returned when an invalid configuration
	// reaches the engine.
	ErrInvalidConfig = core.ErrInvalidConfig

	// ErrCancelled is returned when indexing is cancelled before the
	// tree completes.
	ErrCancelled = core.ErrCancelled
)
