package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AlgorithmSHA256, cfg.IdentityAlgorithm)
	assert.Len(t, cfg.Sidecars.Rules, 10)
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown identity algorithm", func(c *Config) { c.IdentityAlgorithm = "crc32" }},
		{"sha512 identity without opt-in", func(c *Config) { c.IdentityAlgorithm = AlgorithmSHA512 }},
		{"empty extension pattern", func(c *Config) { c.ExtensionPattern = "" }},
		{"broken extension pattern", func(c *Config) { c.ExtensionPattern = "[" }},
		{"broken exclude glob", func(c *Config) { c.ExcludeGlobs = append(c.ExcludeGlobs, "[") }},
		{"duplicate sidecar kind", func(c *Config) {
			c.Sidecars.Rules = append(c.Sidecars.Rules, SidecarRule{
				Kind: "info", Patterns: []string{"{name}.dup"}, Strategy: StrategyText,
			})
		}},
		{"rule without patterns", func(c *Config) {
			c.Sidecars.Rules = append(c.Sidecars.Rules, SidecarRule{Kind: "bare", Strategy: StrategyText})
		}},
		{"rule with unknown strategy", func(c *Config) {
			c.Sidecars.Rules = append(c.Sidecars.Rules, SidecarRule{
				Kind: "odd", Patterns: []string{"x"}, Strategy: "xml",
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfigValidateSHA512Identity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdentityAlgorithm = AlgorithmSHA512
	cfg.EnableSHA512 = true
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []Algorithm{AlgorithmMD5, AlgorithmSHA256, AlgorithmSHA512}, cfg.Algorithms())
}

func TestExtensionGroup(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "image", cfg.ExtensionGroup("jpg"))
	assert.Equal(t, "audio", cfg.ExtensionGroup("flac"))
	assert.Equal(t, "", cfg.ExtensionGroup("xyz"))
}
