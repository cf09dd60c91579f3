package tally

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestVersion is the current catalog output format version. The
// discriminator is always the first field of serialized output so
// consumers can dispatch before reading anything else.
const ManifestVersion = 2

// Manifest wraps a record tree for serialization.
type Manifest struct {
	Version int           `json:"version"`
	Entry   *CatalogEntry `json:"entry"`
}

// Serialize renders a record tree as canonical structured text.
//
// Field order follows declaration order in the record types; required
// fields appear explicitly as null when absent, while the opt-in
// sha512 digest is omitted entirely when not computed. Sidecar
// provenance fields appear only on sidecar-origin records.
func Serialize(entry *CatalogEntry) ([]byte, error) {
	if entry == nil {
		return nil, fmt.Errorf("serialize: nil entry")
	}
	data, err := json.MarshalIndent(Manifest{Version: ManifestVersion, Entry: entry}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteManifest serializes entry and writes it to target atomically.
// Parent directories are created as needed.
func WriteManifest(target string, entry *CatalogEntry) error {
	data, err := Serialize(entry)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := writeFileAtomic(target, data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file then renames to target,
// ensuring atomic replacement of the target file.
func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".tally-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
