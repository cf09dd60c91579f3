package tally

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// EntryType discriminates files from directories in a CatalogEntry.
type EntryType string

const (
	EntryTypeFile      EntryType = "file"
	EntryTypeDirectory EntryType = "directory"
)

// Origin identifies how a MetadataRecord came to exist.
type Origin string

const (
	// OriginGenerated marks metadata produced by a tool invocation.
	// Generated records never existed as standalone files.
	OriginGenerated Origin = "generated"

	// OriginSidecar marks metadata absorbed from a companion file
	// discovered next to the cataloged item.
	OriginSidecar Origin = "sidecar"
)

// PayloadFormat tags the shape of a metadata payload.
type PayloadFormat string

const (
	FormatStructured PayloadFormat = "structured"
	FormatText       PayloadFormat = "text"
	FormatLines      PayloadFormat = "lines"
	FormatBinary     PayloadFormat = "binary"
)

// NameInfo pairs a name with the digests of its UTF-8 bytes.
// The pair is indivisible: an entry either carries both or neither.
type NameInfo struct {
	Text   string    `json:"text"`
	Hashes DigestSet `json:"hashes"`
}

// SizeInfo pairs a human-readable size with the exact byte count.
type SizeInfo struct {
	Text  string `json:"text"`
	Bytes uint64 `json:"bytes"`
}

// NewSize builds a SizeInfo from a byte count.
func NewSize(bytes uint64) SizeInfo {
	return SizeInfo{Text: humanize.Bytes(bytes), Bytes: bytes}
}

// TimePair holds one instant in both renderings the catalog carries:
// an offset-aware RFC 3339 string and the epoch-millisecond integer.
type TimePair struct {
	Text   string `json:"text"`
	Millis int64  `json:"millis"`
}

// NewTimePair builds both renderings from a single instant.
// The millisecond value is taken from the instant directly, never
// round-tripped through the string form.
func NewTimePair(t time.Time) TimePair {
	return TimePair{
		Text:   t.Format("2006-01-02T15:04:05.000-07:00"),
		Millis: t.UnixMilli(),
	}
}

// Timestamps carries the three instants recorded per item.
type Timestamps struct {
	Created  TimePair `json:"created"`
	Modified TimePair `json:"modified"`
	Accessed TimePair `json:"accessed"`
}

// ParentRef points at the identity and name of an entry's parent.
type ParentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatalogEntry is one assembled record for a file or directory.
//
// Entries are immutable once returned by the orchestrator. Field order
// here is the canonical serialization order; required fields marshal
// explicitly (null when absent) rather than being omitted.
type CatalogEntry struct {
	Type        EntryType         `json:"type"`
	ID          string            `json:"id"`
	IDAlgorithm Algorithm         `json:"id_algorithm"`
	Name        *NameInfo         `json:"name"`
	Extension   *string           `json:"extension"`
	Size        SizeInfo          `json:"size"`
	Hashes      *DigestSet        `json:"hashes"`
	Path        string            `json:"path"`
	Parent      *ParentRef        `json:"parent"`
	Times       Timestamps        `json:"times"`
	Symlink     bool              `json:"symlink"`
	StorageName string            `json:"storage_name"`
	Children    []*CatalogEntry   `json:"children"`
	Metadata    []*MetadataRecord `json:"metadata"`
}

// MetadataRecord is one unit of metadata attached to a CatalogEntry.
//
// Sidecar-origin records carry full provenance (path, size, times);
// generated records never do.
type MetadataRecord struct {
	ID         string        `json:"id"`
	Origin     Origin        `json:"origin"`
	Name       *NameInfo     `json:"name"`
	Hashes     *DigestSet    `json:"hashes"`
	Kind       string        `json:"kind"`
	Format     PayloadFormat `json:"format"`
	Transforms []string      `json:"transforms"`
	Payload    *Payload      `json:"payload"`

	// Sidecar provenance. Present only when Origin is OriginSidecar.
	Path  string      `json:"sidecar_path,omitempty"`
	Size  *SizeInfo   `json:"sidecar_size,omitempty"`
	Times *Timestamps `json:"sidecar_times,omitempty"`
}

// Payload is the tagged union of metadata payload shapes. Exactly the
// member matching Format is populated; consumers switch on Format
// rather than probing members.
type Payload struct {
	Format     PayloadFormat
	Structured any
	Text       string
	Lines      []string
	Binary     string
}

// StructuredPayload wraps an already-parsed structured document.
func StructuredPayload(v any) *Payload {
	return &Payload{Format: FormatStructured, Structured: v}
}

// TextPayload wraps a decoded text document.
func TextPayload(s string) *Payload {
	return &Payload{Format: FormatText, Text: s}
}

// LinesPayload wraps a line-oriented document.
func LinesPayload(lines []string) *Payload {
	return &Payload{Format: FormatLines, Lines: lines}
}

// BinaryPayload wraps an encoded binary document. The encoding steps
// are recorded in the owning record's Transforms list.
func BinaryPayload(encoded string) *Payload {
	return &Payload{Format: FormatBinary, Binary: encoded}
}

// MarshalJSON renders only the member selected by Format, so the
// serialized shape is keyed entirely by the record's format tag.
func (p *Payload) MarshalJSON() ([]byte, error) {
	switch p.Format {
	case FormatStructured:
		return json.Marshal(p.Structured)
	case FormatText:
		return json.Marshal(p.Text)
	case FormatLines:
		if p.Lines == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(p.Lines)
	case FormatBinary:
		return json.Marshal(p.Binary)
	default:
		return nil, fmt.Errorf("payload: unknown format %q", p.Format)
	}
}
