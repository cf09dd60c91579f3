package tally

import (
	"context"

	core "github.com/tallyfs/tally/core"
)

// IndexPath catalogs target (file or directory) and returns the
// assembled record tree. A nil cfg uses DefaultConfig.
//
// Stats.Skipped > 0 means the run completed but some items were
// dropped; callers should surface that distinctly from err != nil.
func IndexPath(ctx context.Context, target string, cfg *Config, opts ...IndexOption) (*CatalogEntry, Stats, error) {
	return core.IndexPath(ctx, target, cfg, opts...)
}

// IndexTree catalogs a directory target and writes the serialized
// manifest to outPath. It is the common end-to-end path: traverse,
// assemble, serialize, atomic write.
func IndexTree(ctx context.Context, target, outPath string, cfg *Config, opts ...IndexOption) (*CatalogEntry, Stats, error) {
	entry, stats, err := core.IndexPath(ctx, target, cfg, opts...)
	if err != nil {
		return nil, stats, err
	}
	if err := core.WriteManifest(outPath, entry); err != nil {
		return nil, stats, err
	}
	return entry, stats, nil
}

// Serialize renders a record tree as canonical structured text.
func Serialize(entry *CatalogEntry) ([]byte, error) {
	return core.Serialize(entry)
}
