package tally

import (
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// ReadStrategy declares how a sidecar kind prefers to be read.
//
// Strategies other than StrategyBinary fall through the remainder of
// the chain (structured → text → lines → binary) until one succeeds;
// StrategyBinary attempts only the binary path.
type ReadStrategy string

const (
	StrategyStructured ReadStrategy = "structured"
	StrategyText       ReadStrategy = "text"
	StrategyLines      ReadStrategy = "lines"
	StrategyBinary     ReadStrategy = "binary"
)

// SidecarRule binds a classification kind to the filename patterns
// that select it and the read strategy used to parse it.
//
// Patterns are matched case-insensitively against sibling filenames
// and may use glob syntax plus two placeholders: {name} expands to the
// item's full name, {stem} to the name without its extension.
type SidecarRule struct {
	Kind     string       `mapstructure:"kind" validate:"required"`
	Patterns []string     `mapstructure:"patterns" validate:"required,min=1"`
	Strategy ReadStrategy `mapstructure:"strategy" validate:"required,oneof=structured text lines binary"`
}

// MetadataConfig controls the embedded-metadata extraction boundary.
type MetadataConfig struct {
	// Enabled turns tool invocation on. When false no generated
	// records are produced.
	Enabled bool `mapstructure:"enabled"`

	// ExcludeExtensions lists extensions (without dot, lowercase)
	// never handed to the tool.
	ExcludeExtensions []string `mapstructure:"exclude_extensions"`

	// Groups restricts extraction to files whose extension belongs to
	// one of the named extension groups. Empty means all files.
	Groups []string `mapstructure:"groups"`

	// ExtraArgs are appended to the tool invocation.
	ExtraArgs []string `mapstructure:"extra_args"`

	// Timeout bounds a single tool invocation.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// SidecarConfig controls sidecar discovery and classification.
type SidecarConfig struct {
	// Enabled turns sidecar discovery on.
	Enabled bool `mapstructure:"enabled"`

	// Rules is the ordered classification table. Order is meaningful:
	// the first kind with a matching pattern wins.
	Rules []SidecarRule `mapstructure:"rules" validate:"dive"`

	// ExcludePatterns drops an otherwise-matching sidecar. Same
	// pattern syntax as rule patterns.
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
}

// Config is the fully resolved, immutable engine configuration.
//
// The engine performs no file I/O or environment lookups to obtain
// configuration and never mutates this value, so one Config may be
// shared across any number of concurrent engine invocations.
type Config struct {
	// IdentityAlgorithm selects which digest becomes an item's
	// identity.
	IdentityAlgorithm Algorithm `mapstructure:"identity_algorithm" validate:"required,oneof=md5 sha256 sha512"`

	// EnableSHA512 opts in to the high-strength digest. When false the
	// sha512 field is absent from output entirely.
	EnableSHA512 bool `mapstructure:"enable_sha512"`

	// ExcludeNames are exact child names skipped during traversal,
	// compared case-insensitively.
	ExcludeNames []string `mapstructure:"exclude_names"`

	// ExcludeGlobs are glob patterns for child names skipped during
	// traversal.
	ExcludeGlobs []string `mapstructure:"exclude_globs"`

	// ExtensionPattern is the regular expression a trailing name
	// segment must match to count as an extension.
	ExtensionPattern string `mapstructure:"extension_pattern" validate:"required"`

	// ExtensionGroups maps a group name to the extensions it covers
	// (without dot, lowercase).
	ExtensionGroups map[string][]string `mapstructure:"extension_groups"`

	Metadata MetadataConfig `mapstructure:"metadata"`
	Sidecars SidecarConfig  `mapstructure:"sidecars"`
}

// Algorithms returns the digest algorithms this configuration computes,
// in canonical order.
func (c *Config) Algorithms() []Algorithm {
	algos := []Algorithm{AlgorithmMD5, AlgorithmSHA256}
	if c.EnableSHA512 {
		algos = append(algos, AlgorithmSHA512)
	}
	return algos
}

// ExtensionGroup returns the group a file extension belongs to, or ""
// when the extension is unmapped.
func (c *Config) ExtensionGroup(ext string) string {
	for group, exts := range c.ExtensionGroups {
		for _, e := range exts {
			if e == ext {
				return group
			}
		}
	}
	return ""
}

// DefaultConfig returns the configuration used when the caller supplies
// nothing: sha256 identities, cross-platform system-artifact exclusions,
// and the standard ten-kind sidecar classification table.
func DefaultConfig() *Config {
	return &Config{
		IdentityAlgorithm: AlgorithmSHA256,
		ExcludeNames: []string{
			".DS_Store", "Thumbs.db", "desktop.ini", ".localized",
			"$RECYCLE.BIN", "System Volume Information", ".Trashes",
			".Spotlight-V100", ".fseventsd",
		},
		ExcludeGlobs: []string{
			"._*", "~$*", "*.swp", "*.part", "*.crdownload",
			// Never re-index our own in-place artifacts or the
			// temp files behind their atomic writes.
			"*" + FileArtifactSuffix, "*" + DirectoryArtifactSuffix,
			".tally-*",
		},
		ExtensionPattern: `^[A-Za-z0-9][A-Za-z0-9_~-]{0,14}$`,
		ExtensionGroups: map[string][]string{
			"image":    {"jpg", "jpeg", "png", "gif", "webp", "tiff", "heic", "bmp"},
			"video":    {"mp4", "mkv", "mov", "avi", "webm", "m4v"},
			"audio":    {"mp3", "flac", "wav", "m4a", "ogg", "opus"},
			"document": {"pdf", "doc", "docx", "odt", "rtf", "epub"},
		},
		Metadata: MetadataConfig{
			Enabled:           false,
			ExcludeExtensions: []string{"txt", "json", "yaml", "yml", "md", "log"},
			Timeout:           30 * time.Second,
		},
		Sidecars: SidecarConfig{
			Enabled: false,
			Rules:   defaultSidecarRules(),
		},
	}
}

func defaultSidecarRules() []SidecarRule {
	return []SidecarRule{
		{Kind: "info", Patterns: []string{"{name}_meta.json", "{name}.json", "{stem}.info.json"}, Strategy: StrategyStructured},
		{Kind: "notes", Patterns: []string{"{name}.yaml", "{name}.yml", "{stem}.notes.yaml"}, Strategy: StrategyStructured},
		{Kind: "description", Patterns: []string{"{name}.description", "{stem}.desc", "{name}.about"}, Strategy: StrategyText},
		{Kind: "subtitle", Patterns: []string{"{stem}.srt", "{stem}.vtt", "{stem}.sub"}, Strategy: StrategyText},
		{Kind: "lyrics", Patterns: []string{"{stem}.lrc", "{name}.lyrics"}, Strategy: StrategyText},
		{Kind: "checksum", Patterns: []string{"{name}.md5", "{name}.sha1", "{name}.sha256", "{stem}.sfv"}, Strategy: StrategyLines},
		{Kind: "playlist", Patterns: []string{"{stem}.m3u", "{stem}.m3u8", "{stem}.cue"}, Strategy: StrategyLines},
		{Kind: "log", Patterns: []string{"{name}.log", "{stem}.report.txt"}, Strategy: StrategyLines},
		{Kind: "thumbnail", Patterns: []string{"{stem}.jpg", "{stem}.jpeg", "{stem}.png", "{stem}.webp"}, Strategy: StrategyBinary},
		{Kind: "signature", Patterns: []string{"{name}.sig", "{name}.asc", "{name}.torrent"}, Strategy: StrategyBinary},
	}
}

// validate is the singleton validator instance.
var validate = validator.New()

// Validate checks the configuration with struct tags plus the rules
// that cannot be expressed declaratively. It must pass before the
// Config reaches the engine; the engine treats an invalid Config as a
// fatal error, not something to repair.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.IdentityAlgorithm == AlgorithmSHA512 && !c.EnableSHA512 {
		return fmt.Errorf("%w: identity algorithm sha512 requires enable_sha512", ErrInvalidConfig)
	}

	if _, err := regexp.Compile(c.ExtensionPattern); err != nil {
		return fmt.Errorf("%w: extension_pattern: %v", ErrInvalidConfig, err)
	}

	for _, g := range c.ExcludeGlobs {
		if _, err := path.Match(g, "probe"); err != nil {
			return fmt.Errorf("%w: exclude_globs %q: %v", ErrInvalidConfig, g, err)
		}
	}

	kinds := make(map[string]bool, len(c.Sidecars.Rules))
	for i, rule := range c.Sidecars.Rules {
		if kinds[rule.Kind] {
			return fmt.Errorf("%w: sidecars.rules[%d]: duplicate kind %q", ErrInvalidConfig, i, rule.Kind)
		}
		kinds[rule.Kind] = true
	}

	return nil
}
