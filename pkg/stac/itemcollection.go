package stac

import (
	"encoding/json"
	"os"

	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fsutil"
)

// ItemCollectionFile is the artifact name item collections are persisted
// under at every directory level of an output tree.
const ItemCollectionFile = "item-collection.json"

// ItemCollection is an ordered sequence of items. Order is preserved through
// batching and merging but carries no meaning beyond determinism.
type ItemCollection struct {
	Items []*Item

	// Extra holds top-level FeatureCollection fields preserved verbatim.
	Extra map[string]json.RawMessage
}

var itemCollectionKnownKeys = map[string]bool{"type": true, "features": true}

// UnmarshalJSON decodes a GeoJSON FeatureCollection.
func (c *ItemCollection) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(errors.ErrStructural, err.Error())
	}
	if err := unmarshalKey(raw, "features", &c.Items); err != nil {
		return err
	}
	c.Extra = nil
	for k, v := range raw {
		if itemCollectionKnownKeys[k] {
			continue
		}
		if c.Extra == nil {
			c.Extra = map[string]json.RawMessage{}
		}
		c.Extra[k] = v
	}
	return nil
}

// MarshalJSON encodes the collection as a GeoJSON FeatureCollection.
func (c *ItemCollection) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.field("type", "FeatureCollection")
	items := c.Items
	if items == nil {
		items = []*Item{}
	}
	w.field("features", items)
	w.extras(c.Extra)
	return w.finish()
}

// Len returns the number of items.
func (c *ItemCollection) Len() int { return len(c.Items) }

// Clone deep-copies the collection.
func (c *ItemCollection) Clone() (*ItemCollection, error) {
	out := &ItemCollection{Extra: c.Extra}
	for _, item := range c.Items {
		clone, err := item.Clone()
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, clone)
	}
	return out, nil
}

// Batches partitions the collection into contiguous, non-overlapping slices
// of at most size items. Size <= 0 yields the whole collection as one batch.
// The batches cover the collection exactly: no gaps, no overlaps.
func (c *ItemCollection) Batches(size int) []*ItemCollection {
	if size <= 0 || size >= len(c.Items) {
		return []*ItemCollection{c}
	}
	var batches []*ItemCollection
	for i := 0; i < len(c.Items); i += size {
		end := i + size
		if end > len(c.Items) {
			end = len(c.Items)
		}
		batches = append(batches, &ItemCollection{Items: c.Items[i:end], Extra: c.Extra})
	}
	return batches
}

// GroupByCollection splits the items by source-collection label, preserving
// item order within each group and the order of first appearance of labels.
func (c *ItemCollection) GroupByCollection() ([]string, map[string]*ItemCollection) {
	var labels []string
	groups := make(map[string]*ItemCollection)
	for _, item := range c.Items {
		group, ok := groups[item.Collection]
		if !ok {
			group = &ItemCollection{Extra: c.Extra}
			groups[item.Collection] = group
			labels = append(labels, item.Collection)
		}
		group.Items = append(group.Items, item)
	}
	return labels, groups
}

// ReadItemCollection loads an item-collection artifact from disk. A missing
// or malformed file is a structural error.
func ReadItemCollection(path string) (*ItemCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrMissingCollection, path)
		}
		return nil, errors.Wrapf(errors.ErrStructural, "read %s: %v", path, err)
	}
	coll := &ItemCollection{}
	if err := json.Unmarshal(data, coll); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	for _, item := range coll.Items {
		if err := CheckVersion(item.StacVersion); err != nil {
			return nil, errors.Wrapf(err, "item %s in %s", item.ID, path)
		}
	}
	return coll, nil
}

// WriteItemCollection persists an item-collection artifact.
func WriteItemCollection(path string, coll *ItemCollection) error {
	data, err := marshalArtifact(coll)
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := fsutil.EnsureFileDir(path); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, data, fsutil.FileModeDefault); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
