package download

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fetch"
	"github.com/glorpus-work/stacgrab/pkg/sign"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

// DefaultBatchSize is the re-signing interval: how many items are fetched
// under one signing cycle.
const DefaultBatchSize = 1000

// Orchestrator downloads a given sub-collection into a given directory. It is
// the one primitive shared by full attempts and the size preview: sequential
// signed batches, concurrent fetches within a batch, keep-only-downloaded
// per-batch partial artifacts, progress events on the session channel.
type Orchestrator struct {
	// Clients are tried in order for every asset href; the first match wins.
	Clients []fetch.Client

	// Signer refreshes expiring asset credentials per batch.
	Signer *sign.BatchSigner

	// BatchSize is the re-signing interval. <= 0 disables periodic
	// re-signing: the whole collection becomes one batch, signed once.
	BatchSize int

	// AssetKeys restricts the download to these asset keys. Empty means all.
	AssetKeys []string
}

// Download fetches the collection's assets into dir batch by batch. Batches
// run strictly sequentially so credentials can be refreshed between them;
// batch n+1 is not signed before batch n finished fetching. Fetch failures
// are absorbed as missing assets. Progress events go to session; the session
// channel is closed when all batches are done.
func (o *Orchestrator) Download(ctx context.Context, coll *stac.ItemCollection, dir string, session *Session) error {
	defer session.Close()

	allowed := o.allowedKeys()
	offset := 0
	for _, batch := range coll.Batches(o.BatchSize) {
		signed, err := o.Signer.SignBatch(ctx, batch)
		if err != nil {
			return err
		}
		kept, err := o.fetchBatch(ctx, signed, dir, allowed, session)
		if err != nil {
			return err
		}
		artifact := filepath.Join(dir, BatchArtifactName(offset))
		if err := stac.WriteItemCollection(artifact, &stac.ItemCollection{Items: kept, Extra: coll.Extra}); err != nil {
			return err
		}
		offset += batch.Len()
	}
	return nil
}

// fetchBatch downloads all assets of one signed batch concurrently and
// returns the items for which at least one asset materialized, in batch
// order and with their failed assets removed.
func (o *Orchestrator) fetchBatch(ctx context.Context, batch *stac.ItemCollection, dir string, allowed map[string]bool, session *Session) ([]*stac.Item, error) {
	results := make([]*stac.Item, len(batch.Items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range batch.Items {
		g.Go(func() error {
			kept, err := o.fetchItem(gctx, item, dir, allowed, session)
			if err != nil {
				return err
			}
			results[i] = kept
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	kept := make([]*stac.Item, 0, len(results))
	for _, item := range results {
		if item != nil {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

// fetchItem downloads one item's allowed assets into dir/<item-id>/ and
// rewrites each fetched asset href to a path relative to the item's own
// directory. It returns nil when no asset materialized; the only errors it
// returns are cancellations.
func (o *Orchestrator) fetchItem(ctx context.Context, item *stac.Item, dir string, allowed map[string]bool, session *Session) (*stac.Item, error) {
	fetched := 0
	for _, key := range item.AssetKeys() {
		if allowed != nil && !allowed[key] {
			delete(item.Assets, key)
			continue
		}
		asset := item.Assets[key]
		client := fetch.For(o.Clients, asset.Href)
		if client == nil {
			logger.Debug("no fetch client for asset", logger.Fields{"item": item.ID, "asset": key, "error": errors.ErrNoClient.Error()})
			delete(item.Assets, key)
			continue
		}
		filename := assetFilename(key, asset.Href)
		dest := filepath.Join(dir, item.ID, filename)
		if err := client.Fetch(ctx, asset.Href, dest); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// The client already retried; from here on this is just a
			// missing asset.
			logger.Warn("asset not retrieved", logger.Fields{"item": item.ID, "asset": key, "error": err.Error()})
			delete(item.Assets, key)
			continue
		}
		asset.Href = "./" + path.Join(item.ID, filename)
		fetched++
		session.Emit(Event{Phase: PhaseFile, ItemID: item.ID, Path: dest})
	}
	if fetched == 0 {
		return nil, nil
	}
	session.Emit(Event{Phase: PhaseItem, ItemID: item.ID})
	return item, nil
}

func (o *Orchestrator) allowedKeys() map[string]bool {
	if len(o.AssetKeys) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(o.AssetKeys))
	for _, key := range o.AssetKeys {
		allowed[key] = true
	}
	return allowed
}

// BatchArtifactName returns the partial artifact name for the batch starting
// at the given item offset.
func BatchArtifactName(offset int) string {
	return fmt.Sprintf("item-collection-batch-%d.json", offset)
}

// assetFilename derives a local filename for an asset from its href,
// falling back to the asset key when the href has no usable final segment.
func assetFilename(key, href string) string {
	candidate := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		candidate = u.Path
	}
	name := path.Base(candidate)
	if name == "" || name == "." || name == "/" {
		return key
	}
	return name
}
