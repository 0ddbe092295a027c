// Package catalog assembles the hierarchical, portable metadata catalog from
// the item-collection artifacts a finished download left on disk.
package catalog

import (
	"os"
	"path/filepath"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

// Artifact file names of the assembled tree.
const (
	CatalogFile    = "catalog.json"
	CollectionFile = "collection.json"
)

// Builder assembles a self-contained catalog below an output root. It runs
// once, after the retry loop terminated: a root-level item-collection
// artifact becomes one collection named after the root directory; every
// immediate child directory holding one becomes a collection named after the
// directory.
type Builder struct {
	// ID and Description go into the root catalog.
	ID          string
	Description string
}

// NewBuilder creates a Builder with the default catalog identity.
func NewBuilder() *Builder {
	return &Builder{
		ID:          "root_catalog",
		Description: "Root catalog containing multiple collections.",
	}
}

// Build assembles and persists the catalog tree under root. Every href in
// the persisted tree is relative; hrefs are computed in a single pass over
// the assembled tree, never per item against a growing catalog. A malformed
// artifact fails that directory's collection only; siblings still assemble.
// The raw item-collection files are deleted once superseded.
func (b *Builder) Build(root string) (*stac.Catalog, error) {
	dirs, err := b.collectionDirs(root)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, errors.Wrap(errors.ErrMissingCollection, root)
	}

	cat := stac.NewCatalog(b.ID, b.Description)
	cat.AddLink(stac.RelRoot, "./"+CatalogFile, stac.MediaTypeJSON, "")

	built := 0
	var lastErr error
	for _, dir := range dirs {
		if err := b.buildCollection(root, dir, cat); err != nil {
			logger.Error("failed to assemble collection", logger.Fields{"dir": dir, "error": err.Error()})
			lastErr = err
			continue
		}
		built++
	}
	if built == 0 {
		return nil, lastErr
	}

	if err := stac.WriteArtifact(filepath.Join(root, CatalogFile), cat); err != nil {
		return nil, errors.Wrap(err, "failed to write catalog")
	}
	return cat, nil
}

// collectionDirs returns the directories holding an item-collection
// artifact: the root itself and/or its immediate children.
func (b *Builder) collectionDirs(root string) ([]string, error) {
	var dirs []string
	if _, err := os.Stat(filepath.Join(root, stac.ItemCollectionFile)); err == nil {
		dirs = append(dirs, root)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", root)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, stac.ItemCollectionFile)); err == nil {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// buildCollection turns one directory's item-collection artifact into a
// persisted collection with extent, per-item metadata files and relative
// links, then removes the superseded artifact.
func (b *Builder) buildCollection(root, dir string, cat *stac.Catalog) error {
	artifact := filepath.Join(dir, stac.ItemCollectionFile)
	coll, err := stac.ReadItemCollection(artifact)
	if err != nil {
		return err
	}
	extent, err := stac.ComputeExtent(coll.Items)
	if err != nil {
		return err
	}

	id := filepath.Base(dir)
	collection := stac.NewCollection(id, "Collection for "+id, extent)

	// Hrefs relative to this collection's directory. The root catalog sits
	// one level up unless the collection lives in the root itself.
	rootHref := "../" + CatalogFile
	if dir == root {
		rootHref = "./" + CatalogFile
	}
	collection.AddLink(stac.RelRoot, rootHref, stac.MediaTypeJSON, "")
	collection.AddLink(stac.RelParent, rootHref, stac.MediaTypeJSON, "")

	for _, item := range coll.Items {
		// Replace the search backend's links: the persisted tree must not
		// depend on anything outside the catalog root.
		item.Links = []stac.Link{
			{Rel: stac.RelRoot, Href: rootHref, Type: stac.MediaTypeJSON},
			{Rel: stac.RelParent, Href: "./" + CollectionFile, Type: stac.MediaTypeJSON},
			{Rel: "collection", Href: "./" + CollectionFile, Type: stac.MediaTypeJSON},
		}
		itemPath := filepath.Join(dir, item.ID+".json")
		if err := stac.WriteArtifact(itemPath, item); err != nil {
			return errors.Wrapf(err, "write item %s", item.ID)
		}
		collection.AddLink(stac.RelItem, "./"+item.ID+".json", stac.MediaTypeJSON, "")
	}

	if err := stac.WriteArtifact(filepath.Join(dir, CollectionFile), collection); err != nil {
		return errors.Wrapf(err, "write collection %s", id)
	}

	childHref := "./" + CollectionFile
	if dir != root {
		childHref = "./" + filepath.Base(dir) + "/" + CollectionFile
	}
	cat.AddLink(stac.RelChild, childHref, stac.MediaTypeJSON, id)

	if err := os.Remove(artifact); err != nil {
		return errors.Wrapf(err, "remove superseded artifact %s", artifact)
	}
	return nil
}
