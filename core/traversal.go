package tally

import (
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
)

// ListChildren enumerates the immediate children of dir in a single
// shallow pass, classifies them, applies the configured exclusion
// rules, and returns file and directory names each sorted
// case-insensitively. It never recurses and never follows symlinks
// when probing type: a symlink to anything is classified as a file.
//
// Failure to enumerate dir itself propagates. A single child whose
// type cannot be determined is skipped with a warning; the remaining
// children are still returned.
func ListChildren(dir string, cfg *Config, logger *slog.Logger) (files, dirs []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	for _, entry := range entries {
		name := entry.Name()
		if excluded, rule := excludeChild(name, cfg); excluded {
			if logger != nil {
				logger.Debug("excluded by filter", "name", name, "rule", rule)
			}
			continue
		}

		// Info resolves DT_UNKNOWN via lstat and never follows
		// symlinks. A child that cannot be stat'ed is skipped; the
		// rest of the listing survives.
		info, statErr := entry.Info()
		if statErr != nil {
			if logger != nil {
				logger.Warn("skipping unreadable child", "name", name, "error", statErr)
			}
			continue
		}
		mode := info.Mode().Type()

		switch {
		case mode&fs.ModeSymlink != 0:
			files = append(files, name)
		case mode.IsDir():
			dirs = append(dirs, name)
		default:
			files = append(files, name)
		}
	}

	sortNames(files)
	sortNames(dirs)
	return files, dirs, nil
}

// excludeChild reports whether name matches the exact-name set or the
// glob set. Both comparisons are case-insensitive.
func excludeChild(name string, cfg *Config) (bool, string) {
	lower := strings.ToLower(name)
	for _, excluded := range cfg.ExcludeNames {
		if strings.ToLower(excluded) == lower {
			return true, excluded
		}
	}
	for _, pattern := range cfg.ExcludeGlobs {
		if ok, _ := path.Match(strings.ToLower(pattern), lower); ok {
			return true, pattern
		}
	}
	return false, ""
}

// sortNames orders names case-insensitively, falling back to the raw
// bytes so ordering stays deterministic for case-only collisions.
func sortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li != lj {
			return li < lj
		}
		return names[i] < names[j]
	})
}
