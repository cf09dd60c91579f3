package tally

import (
	"io/fs"
	"log/slog"
	"sync"

	"github.com/tallyfs/tally/core/internal/platform"
)

// birthFallbackOnce gates the creation-time fallback diagnostic to a
// single emission per process run, not per item.
var birthFallbackOnce sync.Once

// ExtractTimestamps converts raw stat metadata into the three
// timestamp pairs a CatalogEntry carries.
//
// Creation time prefers the platform's true birth-time field; when the
// platform or filesystem does not record one, the inode change time is
// used instead. The fallback is decided per stat value, so mixed
// filesystems behave correctly within one run.
//
// For symlinks the caller must pass Lstat results; this function is
// target-agnostic and reads whatever stat value it is handed.
func ExtractTimestamps(info fs.FileInfo, logger *slog.Logger) Timestamps {
	t := platform.FileTimes(info)

	created := t.Birth
	if !t.HasBirth {
		birthFallbackOnce.Do(func() {
			if logger != nil {
				logger.Warn("birth time unavailable, using inode change time for created")
			}
		})
		created = t.Changed
	}

	return Timestamps{
		Created:  NewTimePair(created),
		Modified: NewTimePair(t.Modified),
		Accessed: NewTimePair(t.Accessed),
	}
}
