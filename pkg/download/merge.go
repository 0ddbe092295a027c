package download

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fsutil"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

const batchArtifactPrefix = "item-collection-batch-"

// MergeBatches concatenates the per-batch partial artifacts in dir in batch
// order into the canonical item-collection.json, then deletes the superseded
// batch files. Batches partition the collection by construction, so no
// deduplication happens here.
func MergeBatches(dir string) (*stac.ItemCollection, error) {
	offsets, err := batchOffsets(dir)
	if err != nil {
		return nil, err
	}

	merged := &stac.ItemCollection{}
	for _, offset := range offsets {
		path := filepath.Join(dir, BatchArtifactName(offset))
		coll, err := stac.ReadItemCollection(path)
		if err != nil {
			return nil, err
		}
		merged.Items = append(merged.Items, coll.Items...)
		if merged.Extra == nil {
			merged.Extra = coll.Extra
		}
		if err := os.Remove(path); err != nil {
			return nil, errors.Wrapf(err, "remove batch artifact %s", path)
		}
	}

	target := filepath.Join(dir, stac.ItemCollectionFile)
	if err := stac.WriteItemCollection(target, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// batchOffsets lists the batch artifacts in dir sorted by their item offset.
func batchOffsets(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}
	var offsets []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, batchArtifactPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		offset, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, batchArtifactPrefix), ".json"))
		if err != nil {
			return nil, errors.Wrapf(errors.ErrStructural, "unexpected batch artifact name %s", name)
		}
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)
	return offsets, nil
}

// CleanEmpty removes item directories that ended up with zero files and
// prunes the corresponding entries from dir's item-collection artifact, so
// the persisted collection reflects exactly the items whose asset directory
// is non-empty. It runs after the preview download and after every attempt.
func CleanEmpty(dir string) error {
	empty, err := fsutil.EmptySubdirs(dir)
	if err != nil {
		return errors.Wrapf(err, "scan %s for empty item directories", dir)
	}
	if len(empty) == 0 {
		return nil
	}

	removed := make(map[string]bool, len(empty))
	for _, path := range empty {
		if err := os.RemoveAll(path); err != nil {
			return errors.Wrapf(err, "remove empty item directory %s", path)
		}
		removed[filepath.Base(path)] = true
	}
	logger.Debug("removed empty item directories", logger.Fields{"count": len(empty)})

	collPath := filepath.Join(dir, stac.ItemCollectionFile)
	coll, err := stac.ReadItemCollection(collPath)
	if err != nil {
		return err
	}
	kept := make([]*stac.Item, 0, len(coll.Items))
	for _, item := range coll.Items {
		if !removed[item.ID] {
			kept = append(kept, item)
		}
	}
	coll.Items = kept
	return stac.WriteItemCollection(collPath, coll)
}
