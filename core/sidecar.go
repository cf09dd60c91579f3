package tally

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// KindError classifies a sidecar that failed every applicable read
// strategy. Such sidecars are recorded, never silently dropped.
const KindError = "error"

// Reversible transform tags recorded in MetadataRecord.Transforms.
// The original bytes of a binary payload are reconstructible by
// undoing the listed transforms in reverse order.
const (
	TransformZstd   = "zstd"
	TransformBase64 = "base64"
)

// SidecarScanner classifies sibling files against the configured
// ordered rule table and parses matches into metadata records.
//
// A scanner is owned by one orchestration invocation; the optional
// Queue collects successfully absorbed sidecar paths for a later,
// caller-owned cleanup step. The scanner never deletes anything.
type SidecarScanner struct {
	Config *Config
	Logger *slog.Logger
	Queue  *DeleteQueue

	// ExtPattern is the compiled Config.ExtensionPattern, shared with
	// the orchestrator so stems are derived identically everywhere.
	ExtPattern *regexp.Regexp

	enc *zstd.Encoder
}

func (s *SidecarScanner) log() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Match reports the first rule whose patterns match sibling as a
// companion of the item named itemName, along with every kind that
// matched. When more than one kind matches, declaration order wins.
func (s *SidecarScanner) Match(sibling, itemName string) (*SidecarRule, []string) {
	stem, _ := SplitName(itemName, s.ExtPattern)

	var first *SidecarRule
	var kinds []string
	for i := range s.Config.Sidecars.Rules {
		rule := &s.Config.Sidecars.Rules[i]
		if matchAny(rule.Patterns, sibling, itemName, stem) {
			if first == nil {
				first = rule
			}
			kinds = append(kinds, rule.Kind)
		}
	}
	return first, kinds
}

// ClassifyAndParse examines every sibling of the item at itemPath and
// returns the metadata records for those classified as sidecars.
// relDir is the catalog-relative path of the containing directory.
//
// One sidecar's failure never aborts classification of its siblings.
func (s *SidecarScanner) ClassifyAndParse(itemPath, itemName string, siblings []string, relDir string) []*MetadataRecord {
	dir := filepath.Dir(itemPath)
	var records []*MetadataRecord

	for _, sibling := range siblings {
		if sibling == itemName {
			continue
		}
		rule, kinds := s.Match(sibling, itemName)
		if rule == nil {
			continue
		}
		if len(kinds) > 1 {
			s.log().Warn("sidecar matches multiple kinds, first declared wins",
				"sidecar", sibling, "kinds", strings.Join(kinds, ","), "chosen", rule.Kind)
		}
		if pattern, excluded := s.excluded(sibling, itemName); excluded {
			s.log().Debug("sidecar excluded by rule", "sidecar", sibling, "pattern", pattern)
			continue
		}

		record := s.parse(filepath.Join(dir, sibling), sibling, rule, relDir)
		records = append(records, record)
	}
	return records
}

// excluded tests the sidecar-exclude pattern list.
func (s *SidecarScanner) excluded(sibling, itemName string) (string, bool) {
	stem, _ := SplitName(itemName, s.ExtPattern)
	for _, pattern := range s.Config.Sidecars.ExcludePatterns {
		if matchAny([]string{pattern}, sibling, itemName, stem) {
			return pattern, true
		}
	}
	return "", false
}

// parse reads one classified sidecar through its rule's strategy chain
// and assembles the record. Read or parse failure across the whole
// chain yields an error-kind record with a null payload.
func (s *SidecarScanner) parse(sidecarPath, name string, rule *SidecarRule, relDir string) *MetadataRecord {
	algos := s.Config.Algorithms()

	record := &MetadataRecord{
		Origin:     OriginSidecar,
		Kind:       rule.Kind,
		Format:     formatForStrategy(rule.Strategy),
		Transforms: []string{},
		Name:       &NameInfo{Text: name, Hashes: HashString(name, algos)},
		Path:       JoinRel(relDir, name),
	}

	info, err := os.Lstat(sidecarPath)
	if err == nil {
		size := NewSize(uint64(max(info.Size(), 0)))
		times := ExtractTimestamps(info, s.Logger)
		record.Size = &size
		record.Times = &times
	}

	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		s.log().Warn("sidecar unreadable", "sidecar", name, "error", err)
		record.Kind = KindError
		record.ID, _ = SelectIdentity(record.Name.Hashes, s.Config.IdentityAlgorithm, PrefixFile)
		return record
	}

	hashes := HashBytes(data, algos)
	record.Hashes = &hashes
	record.ID, err = SelectIdentity(hashes, s.Config.IdentityAlgorithm, PrefixFile)
	if err != nil {
		record.Kind = KindError
		return record
	}

	payload, transforms, ok := s.decode(data, rule.Strategy)
	if !ok {
		s.log().Warn("sidecar failed every read strategy", "sidecar", name, "strategy", rule.Strategy)
		record.Kind = KindError
		return record
	}
	record.Format = payload.Format
	record.Payload = payload
	record.Transforms = transforms

	if s.Queue != nil {
		abs, absErr := filepath.Abs(sidecarPath)
		if absErr != nil {
			abs = sidecarPath
		}
		s.Queue.Add(abs)
	}
	return record
}

// decode runs the fallback chain for the declared strategy: structured
// parse, then plain-text decode, then binary with reversible encoding.
// Binary-only strategies attempt just the binary path. The first
// success wins.
func (s *SidecarScanner) decode(data []byte, strategy ReadStrategy) (*Payload, []string, bool) {
	switch strategy {
	case StrategyStructured:
		if v, ok := parseStructured(data); ok {
			return StructuredPayload(v), []string{}, true
		}
		if text, ok := decodeText(data); ok {
			return TextPayload(text), []string{}, true
		}
	case StrategyText:
		if text, ok := decodeText(data); ok {
			return TextPayload(text), []string{}, true
		}
	case StrategyLines:
		if text, ok := decodeText(data); ok {
			return LinesPayload(splitLines(text)), []string{}, true
		}
	case StrategyBinary:
		// fall through to the total binary fallback below
	default:
		return nil, nil, false
	}

	encoded, transforms, err := s.encodeBinary(data)
	if err != nil {
		return nil, nil, false
	}
	return BinaryPayload(encoded), transforms, true
}

// encodeBinary applies the reversible transform chain: zstd
// compression followed by base64.
func (s *SidecarScanner) encodeBinary(data []byte) (string, []string, error) {
	if s.enc == nil {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
		if err != nil {
			return "", nil, err
		}
		s.enc = enc
	}
	compressed := s.enc.EncodeAll(data, nil)
	return base64.StdEncoding.EncodeToString(compressed),
		[]string{TransformZstd, TransformBase64}, nil
}

// parseStructured attempts JSON first, then YAML. JSON is tried first
// because a document that fails strict JSON may still parse as YAML,
// never the reverse.
func parseStructured(data []byte) (any, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v, true
	}
	if err := yaml.Unmarshal(trimmed, &v); err == nil {
		// yaml accepts bare scalars; only structured documents count.
		switch v.(type) {
		case map[string]any, []any:
			return v, true
		}
	}
	return nil, false
}

// decodeText accepts data that is valid UTF-8 and free of NUL bytes.
func decodeText(data []byte) (string, bool) {
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", false
	}
	return string(data), true
}

// splitLines breaks text on newlines, tolerating CRLF and a trailing
// newline.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{}
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// formatForStrategy maps a read strategy to the payload format it
// produces on the non-fallback path.
func formatForStrategy(strategy ReadStrategy) PayloadFormat {
	switch strategy {
	case StrategyStructured:
		return FormatStructured
	case StrategyText:
		return FormatText
	case StrategyLines:
		return FormatLines
	default:
		return FormatBinary
	}
}

// matchAny expands placeholders and glob-matches each pattern against
// sibling, case-insensitively.
func matchAny(patterns []string, sibling, itemName, stem string) bool {
	lower := strings.ToLower(sibling)
	for _, pattern := range patterns {
		expanded := strings.NewReplacer("{name}", itemName, "{stem}", stem).Replace(pattern)
		if ok, _ := path.Match(strings.ToLower(expanded), lower); ok {
			return true
		}
	}
	return false
}
