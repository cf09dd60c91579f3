// Package tally catalogs a filesystem subtree into a deterministic
// record tree: every file and directory receives a content- or
// name-derived identity, timestamps, optional embedded metadata, and
// optional sidecar metadata absorbed from companion files.
//
// The output is suitable for deduplication, archival manifests, and
// downstream search indexing. This package is a thin facade over the
// engine in core; most callers need only IndexPath or IndexTree.
package tally
