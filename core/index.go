package tally

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/tallyfs/tally/core/internal/platform"
)

// indexer holds the state of one orchestration invocation. It is the
// only place where components meet: traversal, hashing, timestamps,
// metadata extraction, and sidecar classification are all driven from
// here and never call each other.
type indexer struct {
	cfg        *Config
	opt        indexConfig
	algos      []Algorithm
	extPattern *regexp.Regexp
	scanner    *SidecarScanner
	extractor  *Extractor
	stats      Stats
}

func newIndexer(cfg *Config, opts []IndexOption) (*indexer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opt := indexConfig{recursive: true}
	for _, o := range opts {
		o(&opt)
	}

	extPattern, err := regexp.Compile(cfg.ExtensionPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: extension_pattern: %v", ErrInvalidConfig, err)
	}

	ix := &indexer{
		cfg:        cfg,
		opt:        opt,
		algos:      cfg.Algorithms(),
		extPattern: extPattern,
	}
	ix.scanner = &SidecarScanner{
		Config:     cfg,
		Logger:     opt.logger,
		Queue:      opt.queue,
		ExtPattern: extPattern,
	}
	ix.extractor = &Extractor{Config: cfg, Logger: opt.logger, Runner: opt.runner}
	return ix, nil
}

func (ix *indexer) log() *slog.Logger {
	if ix.opt.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return ix.opt.logger
}

// emit delivers a progress event, absorbing callback panics so a
// misbehaving sink cannot abort the traversal.
func (ix *indexer) emit(ev ProgressEvent) {
	if ix.opt.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ix.log().Error("progress callback panicked", "panic", r)
		}
	}()
	ix.opt.progress(ev)
}

// IndexPath classifies the target and dispatches to the file or
// directory build. It is the engine's entry point: the returned tree
// is complete and immutable, and Stats reports how the run went. A
// Stats.Skipped greater than zero means some items were dropped while
// the rest of the catalog is usable.
func IndexPath(ctx context.Context, target string, cfg *Config, opts ...IndexOption) (*CatalogEntry, Stats, error) {
	ix, err := newIndexer(cfg, opts)
	if err != nil {
		return nil, Stats{}, err
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %s: %v", ErrTargetNotFound, target, err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %s: %v", ErrTargetNotFound, target, err)
	}

	name := filepath.Base(abs)
	var entry *CatalogEntry
	if info.IsDir() {
		entry, err = ix.buildDirectory(ctx, abs, name, name, "", nil, ix.rootSiblings(abs, name), true)
		if err != nil {
			return nil, ix.stats, err
		}
	} else {
		var ok bool
		entry, ok = ix.buildFile(ctx, abs, name, name, nil, ix.rootSiblings(abs, name))
		if !ok {
			return nil, ix.stats, fmt.Errorf("%w: %s", ErrTargetNotFound, target)
		}
	}

	if ix.opt.inPlace {
		ix.writeArtifact(abs, entry)
	}
	return entry, ix.stats, nil
}

// BuildFileEntry assembles the record for a single file target.
func BuildFileEntry(ctx context.Context, target string, cfg *Config, opts ...IndexOption) (*CatalogEntry, error) {
	ix, err := newIndexer(cfg, opts)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTargetNotFound, target, err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTargetNotFound, target, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrTargetNotFound, target)
	}
	name := filepath.Base(abs)
	entry, ok := ix.buildFile(ctx, abs, name, name, nil, ix.rootSiblings(abs, name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}
	return entry, nil
}

// BuildDirectoryEntry assembles the record tree for a directory
// target. When recursive is false one level of children is built
// without descending further.
func BuildDirectoryEntry(ctx context.Context, target string, cfg *Config, recursive bool, opts ...IndexOption) (*CatalogEntry, Stats, error) {
	if !recursive {
		opts = append(opts, IndexShallow())
	}
	entry, stats, err := IndexPath(ctx, target, cfg, opts...)
	if err != nil {
		return nil, stats, err
	}
	if entry.Type != EntryTypeDirectory {
		return nil, stats, fmt.Errorf("%w: %s is not a directory", ErrTargetNotFound, target)
	}
	return entry, stats, nil
}

// rootSiblings lists the target's siblings for sidecar discovery when
// the target is indexed standalone. Enumeration problems here are not
// fatal; the target simply has no discoverable sidecars.
func (ix *indexer) rootSiblings(abs, name string) []string {
	if !ix.cfg.Sidecars.Enabled {
		return nil
	}
	files, _, err := ListChildren(filepath.Dir(abs), ix.cfg, ix.opt.logger)
	if err != nil {
		return nil
	}
	siblings := files[:0:0]
	for _, f := range files {
		if f != name {
			siblings = append(siblings, f)
		}
	}
	return siblings
}

// buildFile runs the per-item state machine for a file or symlink.
// Anticipated failures (unreadable item) are reduced to a skip; the
// second return value reports whether an entry was produced.
func (ix *indexer) buildFile(ctx context.Context, absPath, relPath, name string, parent *ParentRef, sidecars []string) (*CatalogEntry, bool) {
	info, err := os.Lstat(absPath)
	if err != nil {
		ix.skip(relPath, err)
		return nil, false
	}
	symlink := info.Mode()&fs.ModeSymlink != 0

	// Symlink content is never hashed; the link's own name string
	// stands in for it.
	var hashes DigestSet
	if symlink {
		hashes = HashString(name, ix.algos)
	} else {
		f, openErr := platform.OpenFileNoFollow(absPath)
		if openErr != nil {
			ix.skip(relPath, openErr)
			return nil, false
		}
		hashes, err = HashReader(f, ix.algos)
		f.Close()
		if err != nil {
			ix.skip(relPath, err)
			return nil, false
		}
	}

	id, err := SelectIdentity(hashes, ix.cfg.IdentityAlgorithm, PrefixFile)
	if err != nil {
		ix.skip(relPath, err)
		return nil, false
	}

	_, ext := SplitName(name, ix.extPattern)
	nameInfo := NameInfo{Text: name, Hashes: HashString(name, ix.algos)}
	size := NewSize(uint64(max(info.Size(), 0)))
	times := ExtractTimestamps(info, ix.opt.logger)

	var records []*MetadataRecord
	if generated := ix.extractor.Extract(ctx, absPath, ext, symlink); generated != nil {
		records = append(records, generated)
		ix.stats.Generated++
	}
	if ix.cfg.Sidecars.Enabled && len(sidecars) > 0 {
		side := ix.scanner.ClassifyAndParse(absPath, name, sidecars, path.Dir(relPath))
		records = append(records, side...)
		ix.stats.Sidecars += len(side)
	}

	ix.stats.Indexed++
	ix.stats.Bytes += size.Bytes
	return &CatalogEntry{
		Type:        EntryTypeFile,
		ID:          id,
		IDAlgorithm: ix.cfg.IdentityAlgorithm,
		Name:        &nameInfo,
		Extension:   ext,
		Size:        size,
		Hashes:      &hashes,
		Path:        relPath,
		Parent:      parent,
		Times:       times,
		Symlink:     symlink,
		StorageName: StorageName(id, ext),
		Metadata:    records,
	}, true
}

// buildDirectory runs the per-item state machine for a directory and,
// when descend is set, builds every child before completing. The entry
// is not complete until all children are.
func (ix *indexer) buildDirectory(ctx context.Context, absPath, relPath, name, parentName string, parent *ParentRef, sidecars []string, descend bool) (*CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, err
	}

	idSet := DirectoryIdentity(name, parentName, ix.algos)
	id, err := SelectIdentity(idSet, ix.cfg.IdentityAlgorithm, PrefixDirectory)
	if err != nil {
		return nil, err
	}
	nameInfo := NameInfo{Text: name, Hashes: HashString(name, ix.algos)}
	times := ExtractTimestamps(info, ix.opt.logger)

	entry := &CatalogEntry{
		Type:        EntryTypeDirectory,
		ID:          id,
		IDAlgorithm: ix.cfg.IdentityAlgorithm,
		Name:        &nameInfo,
		Size:        NewSize(0),
		Path:        relPath,
		Parent:      parent,
		Times:       times,
		StorageName: id,
	}

	if ix.cfg.Sidecars.Enabled && len(sidecars) > 0 {
		side := ix.scanner.ClassifyAndParse(absPath, name, sidecars, path.Dir(relPath))
		entry.Metadata = side
		ix.stats.Sidecars += len(side)
	}

	if !descend {
		ix.stats.Indexed++
		return entry, nil
	}

	files, dirs, err := ListChildren(absPath, ix.cfg, ix.opt.logger)
	if err != nil {
		return nil, err
	}
	total := len(files) + len(dirs)
	ix.emit(ProgressEvent{Stage: StageDiscovered, Path: relPath, Total: total})

	plan := ix.planSidecars(files, dirs)
	selfRef := &ParentRef{ID: id, Name: name}
	children := make([]*CatalogEntry, 0, total)
	var bytes uint64
	completed := 0

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		completed++
		childRel := JoinRel(relPath, f)
		if plan.consumed[f] {
			ix.emit(ProgressEvent{Stage: StageItemCompleted, Path: childRel, Completed: completed, Total: total})
			continue
		}
		child, ok := ix.buildFile(ctx, filepath.Join(absPath, f), childRel, f, selfRef, plan.assigned[f])
		if ok {
			children = append(children, child)
			bytes += child.Size.Bytes
			if ix.opt.inPlace {
				ix.writeArtifact(filepath.Join(absPath, f), child)
			}
		}
		ix.emit(ProgressEvent{Stage: StageItemCompleted, Path: childRel, Completed: completed, Total: total})
	}

	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		completed++
		childRel := JoinRel(relPath, d)
		child, childErr := ix.buildDirectory(ctx, filepath.Join(absPath, d), childRel, d, name, selfRef, plan.assigned[d], ix.opt.recursive)
		if childErr != nil {
			if ctx.Err() != nil {
				return nil, childErr
			}
			// Unreadable subdirectory: item-level, traversal continues.
			ix.skip(childRel, childErr)
			ix.emit(ProgressEvent{Stage: StageItemCompleted, Path: childRel, Completed: completed, Total: total})
			continue
		}
		children = append(children, child)
		bytes += child.Size.Bytes
		if ix.opt.inPlace {
			ix.writeArtifact(filepath.Join(absPath, d), child)
		}
		ix.emit(ProgressEvent{Stage: StageItemCompleted, Path: childRel, Completed: completed, Total: total})
	}

	// Directory size is the sum of descendant file sizes, known only
	// after every child completes.
	entry.Size = NewSize(bytes)
	entry.Children = children
	ix.stats.Indexed++
	return entry, nil
}

// sidecarPlan records which children are absorbed as sidecars and
// which sidecar names belong to which item.
type sidecarPlan struct {
	consumed map[string]bool
	assigned map[string][]string
}

// planSidecars pre-classifies a directory level so absorbed sidecars
// are not also indexed as standalone items, and so every sidecar is
// assigned to exactly one claiming item. Items claim in processing
// order (files then directories, sorted); a file already claimed as a
// sidecar cannot claim others.
//
// A claimer can itself be claimed by a later item (zz.lrc claims
// zz.lrc.log, then zz.mp3 claims zz.lrc). The build loop never parses
// the assignments of a consumed item, so the release pass below
// returns such orphaned claims to standalone status: every file ends
// the plan as either a child entry or someone's metadata record.
func (ix *indexer) planSidecars(files, dirs []string) sidecarPlan {
	plan := sidecarPlan{consumed: map[string]bool{}, assigned: map[string][]string{}}
	if !ix.cfg.Sidecars.Enabled {
		return plan
	}

	items := make([]string, 0, len(files)+len(dirs))
	items = append(items, files...)
	items = append(items, dirs...)

	for _, item := range items {
		if plan.consumed[item] {
			continue
		}
		for _, f := range files {
			if f == item || plan.consumed[f] {
				continue
			}
			rule, _ := ix.scanner.Match(f, item)
			if rule == nil {
				continue
			}
			// Matched-but-excluded sidecars stay assigned so the
			// exclusion diagnostic fires during the build, but they
			// remain standalone items.
			plan.assigned[item] = append(plan.assigned[item], f)
			if _, excluded := ix.scanner.excluded(f, item); !excluded {
				plan.consumed[f] = true
			}
		}
	}

	// Release pass: a claimer consumed by a later item surrenders its
	// own claims. Iterated in item order until stable so chained
	// claims resolve deterministically.
	for changed := true; changed; {
		changed = false
		for _, item := range items {
			claimed, ok := plan.assigned[item]
			if !ok || !plan.consumed[item] {
				continue
			}
			delete(plan.assigned, item)
			for _, f := range claimed {
				delete(plan.consumed, f)
			}
			changed = true
		}
	}
	return plan
}

// skip records an item-level failure: the item is dropped, traversal
// continues, and the run completes with a distinct status.
func (ix *indexer) skip(relPath string, err error) {
	ix.stats.Skipped++
	ix.log().Warn("skipping item", "path", relPath, "error", err)
}

// writeArtifact writes the in-place per-item output file. Failures
// are field-level: logged, never fatal to the run.
func (ix *indexer) writeArtifact(absPath string, entry *CatalogEntry) {
	target := filepath.Join(filepath.Dir(absPath), ArtifactName(entry.Name.Text, entry.Type == EntryTypeDirectory))
	if err := WriteManifest(target, entry); err != nil {
		ix.log().Warn("in-place artifact not written", "path", target, "error", err)
	}
}
