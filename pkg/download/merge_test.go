package download

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/stacgrab/pkg/fsutil"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

func TestMergeBatches(t *testing.T) {
	dir := t.TempDir()

	// Offsets must sort numerically: 10 comes after 2, not between 0 and 2.
	batches := map[int][]string{
		0:  {"a", "b"},
		2:  {"c", "d"},
		10: {"e"},
	}
	for offset, ids := range batches {
		coll := dlCollection(ids...)
		require.NoError(t, stac.WriteItemCollection(filepath.Join(dir, BatchArtifactName(offset)), coll))
	}

	merged, err := MergeBatches(dir)
	require.NoError(t, err)

	var ids []string
	for _, item := range merged.Items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)

	// The batch artifacts are superseded by the canonical one.
	for offset := range batches {
		assert.NoFileExists(t, filepath.Join(dir, BatchArtifactName(offset)))
	}
	persisted, err := stac.ReadItemCollection(filepath.Join(dir, stac.ItemCollectionFile))
	require.NoError(t, err)
	assert.Equal(t, 5, persisted.Len())
}

func TestMergeBatchesIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, stac.WriteItemCollection(filepath.Join(dir, BatchArtifactName(0)), dlCollection("a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), fsutil.FileModeDefault))
	require.NoError(t, fsutil.EnsureDir(filepath.Join(dir, "a")))

	merged, err := MergeBatches(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, merged.Len())
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestCleanEmpty(t *testing.T) {
	dir := t.TempDir()

	// Item "a" materialized, item "b" ended up with an empty directory.
	require.NoError(t, fsutil.EnsureDir(filepath.Join(dir, "a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "a.tif"), []byte("payload"), fsutil.FileModeDefault))
	require.NoError(t, fsutil.EnsureDir(filepath.Join(dir, "b")))

	collPath := filepath.Join(dir, stac.ItemCollectionFile)
	require.NoError(t, stac.WriteItemCollection(collPath, dlCollection("a", "b")))

	require.NoError(t, CleanEmpty(dir))

	assert.NoDirExists(t, filepath.Join(dir, "b"))
	coll, err := stac.ReadItemCollection(collPath)
	require.NoError(t, err)
	require.Equal(t, 1, coll.Len())
	assert.Equal(t, "a", coll.Items[0].ID)
}

func TestCleanEmptyNothingToDo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, fsutil.EnsureDir(filepath.Join(dir, "a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "a.tif"), []byte("payload"), fsutil.FileModeDefault))

	// No empty directories, so the artifact is never touched.
	assert.NoError(t, CleanEmpty(dir))
}
