package tally

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timePairLayout = "2006-01-02T15:04:05.000-07:00"

func TestNewTimePair(t *testing.T) {
	instant := time.Date(2024, 3, 15, 10, 30, 45, 123_000_000, time.FixedZone("CET", 3600))
	pair := NewTimePair(instant)

	assert.Equal(t, "2024-03-15T10:30:45.123+01:00", pair.Text)
	assert.Equal(t, instant.UnixMilli(), pair.Millis)

	// The string form must round-trip to the same instant.
	parsed, err := time.Parse(timePairLayout, pair.Text)
	require.NoError(t, err)
	assert.Equal(t, pair.Millis, parsed.UnixMilli())
}

func TestExtractTimestamps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	modTime := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, modTime, modTime))

	info, err := os.Lstat(path)
	require.NoError(t, err)

	ts := ExtractTimestamps(info, nil)
	assert.Equal(t, modTime.UnixMilli(), ts.Modified.Millis)

	for _, pair := range []TimePair{ts.Created, ts.Modified, ts.Accessed} {
		parsed, parseErr := time.Parse(timePairLayout, pair.Text)
		require.NoError(t, parseErr)
		assert.Equal(t, pair.Millis, parsed.UnixMilli(), "text and millis must agree")
	}
}

func TestExtractTimestampsNeverUsesTarget(t *testing.T) {
	// The extractor is target-agnostic: handed Lstat results for a
	// symlink, it reports the link's own times, not the target's.
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(target, old, old))

	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	linkInfo, err := os.Lstat(link)
	require.NoError(t, err)
	ts := ExtractTimestamps(linkInfo, nil)
	assert.NotEqual(t, old.UnixMilli(), ts.Modified.Millis)
}
