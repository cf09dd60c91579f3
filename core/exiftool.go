package tally

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"sync"
)

// KindExiftool classifies generated metadata records produced by the
// exiftool boundary.
const KindExiftool = "exiftool"

// RunnerFunc invokes an external command and returns its stdout.
// Injectable so tests can stub the tool boundary.
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// operationalKeys are tool bookkeeping fields stripped from exiftool
// output before it is wrapped as metadata. They describe the
// invocation, not the file's embedded content.
var operationalKeys = map[string]bool{
	"SourceFile":          true,
	"ExifToolVersion":     true,
	"FileName":            true,
	"Directory":           true,
	"FilePermissions":     true,
	"FileModifyDate":      true,
	"FileAccessDate":      true,
	"FileInodeChangeDate": true,
	"FileCreateDate":      true,
}

// defaultProbe caches the availability of the real exiftool binary for
// the lifetime of the process.
var defaultProbe struct {
	once sync.Once
	ok   bool
}

// Extractor is the embedded-metadata extraction boundary. It owns only
// the invocation contract: availability probing, exclusion gating, and
// filtering of the returned mapping. The tool's behavior is opaque.
type Extractor struct {
	Config *Config
	Logger *slog.Logger

	// Runner overrides the exec boundary. Nil uses the real exiftool
	// binary with a process-wide availability cache.
	Runner RunnerFunc

	probeOnce sync.Once
	available bool
}

func (e *Extractor) log() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// Available probes the tool once and caches the result. The probe for
// the real binary is cached per process, not per invocation.
func (e *Extractor) Available(ctx context.Context) bool {
	if e.Runner != nil {
		e.probeOnce.Do(func() { e.available = e.probe(ctx, e.Runner) })
		return e.available
	}
	defaultProbe.once.Do(func() { defaultProbe.ok = e.probe(ctx, runCommand) })
	return defaultProbe.ok
}

func (e *Extractor) probe(ctx context.Context, run RunnerFunc) bool {
	out, err := run(ctx, "exiftool", "-ver")
	if err != nil {
		e.log().Debug("exiftool unavailable", "error", err)
		return false
	}
	e.log().Debug("exiftool available", "version", strings.TrimSpace(string(out)))
	return true
}

// Extract invokes the tool for one file and wraps the surviving
// key/value pairs as a generated metadata record. It returns nil when
// extraction is disabled, gated off for this file, or fails —
// extraction problems are field-level and never abort the item.
func (e *Extractor) Extract(ctx context.Context, filePath string, ext *string, isSymlink bool) *MetadataRecord {
	cfg := e.Config
	if !cfg.Metadata.Enabled || isSymlink {
		return nil
	}
	if e.gatedOff(ext) {
		return nil
	}
	if !e.Available(ctx) {
		return nil
	}

	fields, err := e.invoke(ctx, filePath)
	if err != nil {
		e.log().Warn("metadata extraction failed", "path", filePath, "error", err)
		return nil
	}
	if len(fields) == 0 {
		return nil
	}

	// Canonical JSON of the filtered mapping (object keys sorted by
	// encoding/json) keeps generated identities deterministic for
	// identical tool output.
	canonical, err := json.Marshal(fields)
	if err != nil {
		e.log().Warn("metadata not serializable", "path", filePath, "error", err)
		return nil
	}

	algos := cfg.Algorithms()
	hashes := HashBytes(canonical, algos)
	id, err := SelectIdentity(hashes, cfg.IdentityAlgorithm, PrefixGenerated)
	if err != nil {
		return nil
	}

	return &MetadataRecord{
		ID:         id,
		Origin:     OriginGenerated,
		Hashes:     &hashes,
		Kind:       KindExiftool,
		Format:     FormatStructured,
		Transforms: []string{},
		Payload:    StructuredPayload(fields),
	}
}

// gatedOff applies the extension exclusion set and the extension-group
// allowlist.
func (e *Extractor) gatedOff(ext *string) bool {
	cfg := e.Config
	if ext == nil {
		return len(cfg.Metadata.Groups) > 0
	}
	lower := strings.ToLower(*ext)
	for _, excluded := range cfg.Metadata.ExcludeExtensions {
		if strings.ToLower(excluded) == lower {
			return true
		}
	}
	if len(cfg.Metadata.Groups) > 0 {
		group := cfg.ExtensionGroup(lower)
		if !slices.Contains(cfg.Metadata.Groups, group) {
			return true
		}
	}
	return false
}

// invoke runs the tool under the configured timeout and parses its
// structured output.
func (e *Extractor) invoke(ctx context.Context, filePath string) (map[string]any, error) {
	if cfg := e.Config; cfg.Metadata.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Metadata.Timeout)
		defer cancel()
	}

	run := e.Runner
	if run == nil {
		run = runCommand
	}
	args := append([]string{"-j", "-n"}, e.Config.Metadata.ExtraArgs...)
	args = append(args, filePath)
	out, err := run(ctx, "exiftool", args...)
	if err != nil {
		return nil, err
	}

	var docs []map[string]any
	if err := json.Unmarshal(out, &docs); err != nil {
		return nil, fmt.Errorf("parse exiftool output: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	fields := make(map[string]any, len(docs[0]))
	for k, v := range docs[0] {
		if operationalKeys[k] {
			continue
		}
		fields[k] = v
	}
	return fields, nil
}
