package sign

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

// DefaultBackoff is the fixed wait between signing attempts.
const DefaultBackoff = time.Second

// BatchSigner signs one batch at a time, waiting out transient signing
// failures indefinitely. A streak of failures logs a single "paused" line on
// entry and a single "resumed" line once signing succeeds again.
type BatchSigner struct {
	signer  Signer
	backoff time.Duration
}

// NewBatchSigner creates a BatchSigner around signer. backoff <= 0 falls back
// to DefaultBackoff.
func NewBatchSigner(signer Signer, backoff time.Duration) *BatchSigner {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &BatchSigner{signer: signer, backoff: backoff}
}

// SignBatch returns a signed deep copy of batch. The input is never mutated,
// so concurrent retry attempts cannot share signed state. Transient signing
// errors block and retry with fixed backoff until the context is cancelled;
// non-transient errors propagate.
func (b *BatchSigner) SignBatch(ctx context.Context, batch *stac.ItemCollection) (*stac.ItemCollection, error) {
	work, err := batch.Clone()
	if err != nil {
		return nil, err
	}

	paused := false
	for {
		signed, err := b.signer.Sign(ctx, work.Items)
		if err == nil {
			if paused {
				logger.Info("download resumed, signing succeeded")
			}
			return &stac.ItemCollection{Items: signed, Extra: work.Extra}, nil
		}
		if !stderrors.Is(err, errors.ErrSigningTransient) {
			return nil, errors.Wrap(err, "signing failed")
		}
		if !paused {
			logger.Warn("download paused due to signing failure", logger.Fields{"error": err.Error()})
			paused = true
		}
		timer := time.NewTimer(b.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
