package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/stacgrab/pkg/fsutil"
)

func TestBundleRoundTrip(t *testing.T) {
	tempDir := t.TempDir()

	// A downloaded catalog tree in miniature.
	files := map[string]string{
		"catalog.json":                        `{"type": "Catalog"}`,
		"sentinel-2-l2a/collection.json":      `{"type": "Collection"}`,
		"sentinel-2-l2a/item-a.json":          `{"type": "Feature"}`,
		"sentinel-2-l2a/item-a/data.tif":      "binary payload",
		"sentinel-2-l2a/item-a/thumbnail.png": "more payload",
	}
	srcDir := filepath.Join(tempDir, "data_20230601_120000")
	for name, content := range files {
		path := filepath.Join(srcDir, name)
		require.NoError(t, fsutil.EnsureFileDir(path))
		require.NoError(t, os.WriteFile(path, []byte(content), fsutil.FileModeDefault))
	}

	ctx := context.Background()
	archivePath := filepath.Join(tempDir, "data_20230601_120000"+Suffix)
	require.NoError(t, Create(ctx, srcDir, archivePath))
	require.FileExists(t, archivePath)

	extractDir := filepath.Join(tempDir, "extracted")
	require.NoError(t, Extract(ctx, archivePath, extractDir))

	for name, expected := range files {
		content, err := os.ReadFile(filepath.Join(extractDir, name))
		require.NoError(t, err, "file %s missing from extracted bundle", name)
		assert.Equal(t, expected, string(content))
	}
}

func TestExtractMissingArchive(t *testing.T) {
	err := Extract(context.Background(), filepath.Join(t.TempDir(), "absent.tar.gz"), t.TempDir())
	assert.Error(t, err)
}
