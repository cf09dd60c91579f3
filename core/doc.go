// Package tally implements the cataloging engine: it walks a
// filesystem subtree and assembles one deterministic, schema-conformant
// record per file and directory.
//
// Files are identified by content digests, directories by a two-layer
// hash of their own and their parent's names, so identities are
// reproducible across runs and hosts. Items are enriched with
// timestamps, optionally with embedded metadata from an external tool,
// and with "sidecar" companion files discovered alongside them and
// absorbed as metadata records.
//
// The engine is single-threaded and synchronous; callers run it on a
// background goroutine and drive cancellation through the context and
// feedback through the progress callback.
package tally
