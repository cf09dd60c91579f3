package tally

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexZeroByteFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(target, nil, 0o644))

	entry, err := BuildFileEntry(context.Background(), target, nil)
	require.NoError(t, err)

	assert.Equal(t, EntryTypeFile, entry.Type)
	assert.Equal(t, uint64(0), entry.Size.Bytes)
	require.NotNil(t, entry.Hashes)

	// Digests of empty input, not absent digests.
	assert.Equal(t, "D41D8CD98F00B204E9800998ECF8427E", entry.Hashes.MD5)
	assert.Equal(t, "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855", entry.Hashes.SHA256)
	assert.Equal(t, "F"+entry.Hashes.SHA256, entry.ID)
	assert.Equal(t, entry.ID+".bin", entry.StorageName)
	require.NotNil(t, entry.Extension)
	assert.Equal(t, "bin", *entry.Extension)
	assert.Nil(t, entry.Parent)
	assert.Nil(t, entry.Children)
}

func TestIndexShallowDirectory(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "library")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeFiles(t, root, "a.txt", "b.txt", "c.txt")
	nested := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))
	writeFiles(t, nested, "inner.txt")

	entry, stats, err := IndexPath(context.Background(), root, nil, IndexShallow())
	require.NoError(t, err)

	require.Len(t, entry.Children, 4)
	assert.Equal(t, EntryTypeFile, entry.Children[0].Type)

	sub := entry.Children[3]
	assert.Equal(t, EntryTypeDirectory, sub.Type)
	assert.Nil(t, sub.Children)
	assert.Equal(t, uint64(0), sub.Size.Bytes)

	// Root, three files, and the undescended subdirectory.
	assert.Equal(t, 5, stats.Indexed)
	assert.Zero(t, stats.Skipped)
}

func TestIndexRecursiveTree(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "mid.txt"), []byte("123"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "deep", "leaf.txt"), []byte("1"), 0o644))

	entry, stats, err := IndexPath(context.Background(), root, nil)
	require.NoError(t, err)

	// Directory sizes aggregate descendant file bytes.
	assert.Equal(t, uint64(9), entry.Size.Bytes)
	require.Len(t, entry.Children, 2)

	nested := entry.Children[1]
	require.Equal(t, EntryTypeDirectory, nested.Type)
	assert.Equal(t, uint64(4), nested.Size.Bytes)

	// Catalog paths are forward-slash relative to the root's parent.
	assert.Equal(t, "library", entry.Path)
	assert.Equal(t, "library/top.txt", entry.Children[0].Path)
	assert.Equal(t, "library/nested/deep/leaf.txt", nested.Children[1].Children[0].Path)
	assert.NotContains(t, nested.Children[1].Children[0].Path, "\\")

	// Parent references point at the containing directory.
	assert.Nil(t, entry.Parent)
	require.NotNil(t, entry.Children[0].Parent)
	assert.Equal(t, entry.ID, entry.Children[0].Parent.ID)
	assert.Equal(t, "library", entry.Children[0].Parent.Name)
	assert.Equal(t, nested.ID, nested.Children[0].Parent.ID)

	assert.Equal(t, 6, stats.Indexed)
	assert.Equal(t, uint64(9), stats.Bytes)
}

func TestIndexDirectoryIdentityIsStable(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "photos")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeFiles(t, root, "a.txt")

	first, _, err := IndexPath(context.Background(), root, nil)
	require.NoError(t, err)
	second, _, err := IndexPath(context.Background(), root, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	// Name-addressed: the root has no parent, so its identity layers
	// over the null-digest constant.
	want := DirectoryIdentity("photos", "", []Algorithm{AlgorithmSHA256})
	assert.Equal(t, "D"+want.SHA256, first.ID)
	assert.Equal(t, first.ID, first.StorageName)
}

func TestIndexCancellationMidTraversal(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "library")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeFiles(t, root, "a.txt", "b.txt", "c.txt", "d.txt")

	ctx, cancel := context.WithCancel(context.Background())
	entry, _, err := IndexPath(ctx, root, nil, IndexWithProgress(func(ev ProgressEvent) {
		if ev.Stage == StageItemCompleted {
			cancel()
		}
	}))

	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, entry)
}

func TestIndexSymlinkHashesLinkName(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "library")
	require.NoError(t, os.Mkdir(root, 0o755))
	target := filepath.Join(root, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("content"), 0o644))
	if err := os.Symlink(target, filepath.Join(root, "shortcut.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	entry, _, err := IndexPath(context.Background(), root, nil)
	require.NoError(t, err)
	require.Len(t, entry.Children, 2)

	link := entry.Children[1]
	require.Equal(t, "shortcut.txt", link.Name.Text)
	assert.True(t, link.Symlink)

	// Symlink identity comes from the link's own name, never from the
	// target's content.
	want := HashString("shortcut.txt", []Algorithm{AlgorithmMD5, AlgorithmSHA256})
	assert.Equal(t, want, *link.Hashes)
	assert.NotEqual(t, entry.Children[0].Hashes.SHA256, link.Hashes.SHA256)
}

func TestIndexSidecarAbsorption(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "docs")
	require.NoError(t, os.Mkdir(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "report.pdf"), []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "report.pdf_meta.json"),
		[]byte(`{"title":"Q3"}`), 0o644))

	cfg := DefaultConfig()
	cfg.Sidecars.Enabled = true
	queue := &DeleteQueue{}

	entry, stats, err := IndexPath(context.Background(), root, cfg, IndexWithDeleteQueue(queue))
	require.NoError(t, err)

	// The absorbed sidecar is not a standalone child.
	require.Len(t, entry.Children, 1)
	file := entry.Children[0]
	assert.Equal(t, "report.pdf", file.Name.Text)

	require.Len(t, file.Metadata, 1)
	rec := file.Metadata[0]
	assert.Equal(t, OriginSidecar, rec.Origin)
	assert.Equal(t, "info", rec.Kind)
	assert.Equal(t, "docs/report.pdf_meta.json", rec.Path)

	assert.Equal(t, 1, stats.Sidecars)
	assert.Equal(t, 2, stats.Indexed)

	require.Equal(t, 1, queue.Len())
	assert.Equal(t, filepath.Join(root, "report.pdf_meta.json"), queue.Paths()[0])
}

func TestIndexAbsorbedClaimerReleasesItsOwnClaims(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "music")
	require.NoError(t, os.Mkdir(root, 0o755))
	// zz.lrc claims zz.lrc.log, then zz.mp3 claims zz.lrc. The log
	// file's claimer is absorbed, so the log must fall back to being
	// a standalone child rather than vanish.
	require.NoError(t, os.WriteFile(filepath.Join(root, "zz.mp3"), []byte("audio"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "zz.lrc"), []byte("[00:01] la"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "zz.lrc.log"), []byte("ok\n"), 0o644))

	cfg := DefaultConfig()
	cfg.Sidecars.Enabled = true

	entry, stats, err := IndexPath(context.Background(), root, cfg)
	require.NoError(t, err)

	names := make([]string, len(entry.Children))
	for i, c := range entry.Children {
		names[i] = c.Name.Text
	}
	assert.Equal(t, []string{"zz.lrc.log", "zz.mp3"}, names)

	song := entry.Children[1]
	require.Len(t, song.Metadata, 1)
	assert.Equal(t, "lyrics", song.Metadata[0].Kind)
	assert.Equal(t, "music/zz.lrc", song.Metadata[0].Path)

	assert.Equal(t, 1, stats.Sidecars)
	assert.Zero(t, stats.Skipped)
}

func TestIndexStandaloneFileFindsSidecars(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(target, []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf_meta.json"), []byte(`{}`), 0o644))

	cfg := DefaultConfig()
	cfg.Sidecars.Enabled = true

	entry, err := BuildFileEntry(context.Background(), target, cfg)
	require.NoError(t, err)
	require.Len(t, entry.Metadata, 1)
	assert.Equal(t, "info", entry.Metadata[0].Kind)
}

func TestIndexProgressOrdering(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "library")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeFiles(t, root, "a.txt", "b.txt")

	var events []ProgressEvent
	_, _, err := IndexPath(context.Background(), root, nil, IndexWithProgress(func(ev ProgressEvent) {
		events = append(events, ev)
	}))
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, StageDiscovered, events[0].Stage)
	assert.Equal(t, 2, events[0].Total)
	assert.Equal(t, "library", events[0].Path)

	for i, ev := range events[1:] {
		assert.Equal(t, StageItemCompleted, ev.Stage)
		assert.Equal(t, i+1, ev.Completed)
		assert.Equal(t, 2, ev.Total)
		assert.True(t, strings.HasPrefix(ev.Path, "library/"))
	}
}

func TestIndexProgressPanicIsAbsorbed(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "library")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeFiles(t, root, "a.txt")

	entry, _, err := IndexPath(context.Background(), root, nil, IndexWithProgress(func(ProgressEvent) {
		panic("misbehaving sink")
	}))
	require.NoError(t, err)
	require.Len(t, entry.Children, 1)
}

func TestIndexTargetNotFound(t *testing.T) {
	_, _, err := IndexPath(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestIndexInvalidConfigIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdentityAlgorithm = "crc32"
	_, _, err := IndexPath(context.Background(), t.TempDir(), cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBuildFileEntryRejectsDirectory(t *testing.T) {
	_, err := BuildFileEntry(context.Background(), t.TempDir(), nil)
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestBuildDirectoryEntryRejectsFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	_, _, err := BuildDirectoryEntry(context.Background(), target, nil, true)
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestIndexInPlaceArtifacts(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "photos")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeFiles(t, root, "a.txt")

	_, _, err := IndexPath(context.Background(), root, nil, IndexInPlace())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "a.txt.tally.json"))
	assert.FileExists(t, filepath.Join(dir, "photos.tally.dir.json"))

	// A second run ignores the artifacts it wrote.
	entry, _, err := IndexPath(context.Background(), root, nil)
	require.NoError(t, err)
	require.Len(t, entry.Children, 1)
	assert.Equal(t, "a.txt", entry.Children[0].Name.Text)
}
