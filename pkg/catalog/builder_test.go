package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fsutil"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

func writeItemCollection(t *testing.T, dir string, ids ...string) {
	t.Helper()
	require.NoError(t, fsutil.EnsureDir(dir))
	var features []string
	for _, id := range ids {
		features = append(features, fmt.Sprintf(`{
			"type": "Feature",
			"stac_version": "1.0.0",
			"id": %q,
			"geometry": {"type": "Point", "coordinates": [5.0, 50.0]},
			"properties": {"datetime": "2023-06-01T12:00:00Z"},
			"links": [{"rel": "self", "href": "https://search.example.com/items/%s"}],
			"assets": {"data": {"href": "./%s/data.tif"}}
		}`, id, id, id))
	}
	doc := `{"type": "FeatureCollection", "features": [` + strings.Join(features, ",") + `]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, stac.ItemCollectionFile), []byte(doc), fsutil.FileModeDefault))
}

// assertRelativeHrefs fails if any link href in the artifact leaves the
// catalog tree: absolute paths and remote URLs make the tree non-portable.
func assertRelativeHrefs(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Links []stac.Link `json:"links"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.NotEmpty(t, doc.Links, "artifact %s should carry links", path)
	for _, link := range doc.Links {
		assert.True(t, strings.HasPrefix(link.Href, "./") || strings.HasPrefix(link.Href, "../"),
			"href %q in %s is not relative", link.Href, path)
	}
}

func TestBuildGroupedTree(t *testing.T) {
	root := t.TempDir()
	writeItemCollection(t, filepath.Join(root, "sentinel-2-l2a"), "s2-a", "s2-b")
	writeItemCollection(t, filepath.Join(root, "landsat-c2-l2"), "ls-a")

	cat, err := NewBuilder().Build(root)
	require.NoError(t, err)
	assert.Equal(t, "root_catalog", cat.ID)

	var children []string
	for _, link := range cat.Links {
		if link.Rel == stac.RelChild {
			children = append(children, link.Href)
		}
	}
	assert.ElementsMatch(t, []string{
		"./sentinel-2-l2a/" + CollectionFile,
		"./landsat-c2-l2/" + CollectionFile,
	}, children)

	// Every artifact of the assembled tree exists and links relatively.
	assertRelativeHrefs(t, filepath.Join(root, CatalogFile))
	for dir, ids := range map[string][]string{
		"sentinel-2-l2a": {"s2-a", "s2-b"},
		"landsat-c2-l2":  {"ls-a"},
	} {
		assertRelativeHrefs(t, filepath.Join(root, dir, CollectionFile))
		for _, id := range ids {
			assertRelativeHrefs(t, filepath.Join(root, dir, id+".json"))
		}
		// The raw artifact is superseded by the assembled collection.
		assert.NoFileExists(t, filepath.Join(root, dir, stac.ItemCollectionFile))
	}

	// The collection carries the derived extent.
	data, err := os.ReadFile(filepath.Join(root, "sentinel-2-l2a", CollectionFile))
	require.NoError(t, err)
	var coll stac.Collection
	require.NoError(t, json.Unmarshal(data, &coll))
	require.NotNil(t, coll.Extent)
	assert.Equal(t, []float64{5, 50, 5, 50}, coll.Extent.Spatial.Bbox[0])
}

func TestBuildRootCollection(t *testing.T) {
	root := t.TempDir()
	writeItemCollection(t, root, "a", "b")

	cat, err := NewBuilder().Build(root)
	require.NoError(t, err)

	var childHref string
	for _, link := range cat.Links {
		if link.Rel == stac.RelChild {
			childHref = link.Href
		}
	}
	assert.Equal(t, "./"+CollectionFile, childHref)
	assert.FileExists(t, filepath.Join(root, CatalogFile))
	assert.FileExists(t, filepath.Join(root, CollectionFile))
	assert.FileExists(t, filepath.Join(root, "a.json"))

	// Items in the root collection point at the catalog next to them.
	data, err := os.ReadFile(filepath.Join(root, "a.json"))
	require.NoError(t, err)
	var item stac.Item
	require.NoError(t, json.Unmarshal(data, &item))
	for _, link := range item.Links {
		if link.Rel == stac.RelRoot {
			assert.Equal(t, "./"+CatalogFile, link.Href)
		}
	}
}

func TestBuildIsolatesMalformedSiblings(t *testing.T) {
	root := t.TempDir()
	writeItemCollection(t, filepath.Join(root, "good"), "a")
	badDir := filepath.Join(root, "broken")
	require.NoError(t, fsutil.EnsureDir(badDir))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, stac.ItemCollectionFile), []byte("{"), fsutil.FileModeDefault))

	cat, err := NewBuilder().Build(root)
	require.NoError(t, err, "a malformed sibling must not fail the whole build")

	var children []string
	for _, link := range cat.Links {
		if link.Rel == stac.RelChild {
			children = append(children, link.Href)
		}
	}
	assert.Equal(t, []string{"./good/" + CollectionFile}, children)
	assert.NoFileExists(t, filepath.Join(badDir, CollectionFile))
}

func TestBuildErrors(t *testing.T) {
	t.Run("no collections at all", func(t *testing.T) {
		_, err := NewBuilder().Build(t.TempDir())
		assert.ErrorIs(t, err, errors.ErrMissingCollection)
	})

	t.Run("all collections malformed", func(t *testing.T) {
		root := t.TempDir()
		badDir := filepath.Join(root, "broken")
		require.NoError(t, fsutil.EnsureDir(badDir))
		require.NoError(t, os.WriteFile(filepath.Join(badDir, stac.ItemCollectionFile), []byte("{"), fsutil.FileModeDefault))

		_, err := NewBuilder().Build(root)
		assert.Error(t, err)
	})
}
