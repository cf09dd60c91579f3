package tally

import (
	"regexp"
	"strings"
)

// Artifact naming for per-item output written alongside the source.
// The double suffix keeps file and directory artifacts distinct from
// each other and from the legacy single-suffix ".manifest" convention,
// so both generations can coexist during a transition.
const (
	FileArtifactSuffix      = ".tally.json"
	DirectoryArtifactSuffix = ".tally.dir.json"
)

// JoinRel appends a child name to a catalog-relative path.
//
// Catalog-relative paths always use forward slashes regardless of host
// platform; only absolute local references keep native separators.
func JoinRel(parent, name string) string {
	if parent == "" || parent == "." {
		return name
	}
	return parent + "/" + name
}

// SplitName separates a filename into stem and extension. The segment
// after the last dot counts as an extension only when it matches
// extPattern; otherwise the whole name is the stem and the extension
// is nil. A leading dot alone ("dotfile" names like .gitignore) never
// produces an extension.
func SplitName(name string, extPattern *regexp.Regexp) (stem string, ext *string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name, nil
	}
	candidate := name[i+1:]
	if extPattern != nil && !extPattern.MatchString(candidate) {
		return name, nil
	}
	return name[:i], &candidate
}

// StorageName builds the deterministic content-addressed filename for
// an item: its identity string plus the original extension, when one
// exists.
func StorageName(id string, ext *string) string {
	if ext == nil {
		return id
	}
	return id + "." + *ext
}

// ArtifactName returns the per-item output filename written alongside
// the source in in-place mode.
func ArtifactName(name string, isDir bool) string {
	if isDir {
		return name + DirectoryArtifactSuffix
	}
	return name + FileArtifactSuffix
}
