package download

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

// DefaultMaxAttempts is the whole-collection retry budget.
const DefaultMaxAttempts = 3

// State is the retry loop's phase.
type State string

// Retry loop states.
const (
	StateAttempting State = "attempting"
	StateVerifying  State = "verifying"
	StateRetrying   State = "retrying"
	StateComplete   State = "complete"
	StateExhausted  State = "exhausted"
)

// Result summarizes a finished retry loop. Exhausted is a non-fatal partial
// success: the run completed; the ratio says how much of it.
type Result struct {
	State     State
	Attempts  int
	Requested int
	Retrieved int
	Ratio     float64
}

// Retryer wraps whole-collection download attempts in a bounded retry loop
// keyed on the item-completion ratio.
type Retryer struct {
	Orchestrator *Orchestrator

	// MaxAttempts is the attempt budget. <= 0 falls back to
	// DefaultMaxAttempts.
	MaxAttempts int

	// Interval is the progress cadence forwarded to the session monitor.
	Interval time.Duration

	// ProgressOut receives the progress lines; nil means stdout.
	ProgressOut io.Writer
}

// Run drives attempts over coll into dir until every item is retrieved or
// the budget is exhausted. Every retry operates on the full original
// collection, overwriting already fetched assets, not only on the items
// still missing.
func (r *Retryer) Run(ctx context.Context, coll *stac.ItemCollection, dir string) (*Result, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	result := &Result{Requested: coll.Len()}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.State = StateAttempting
		result.Attempts = attempt
		logger.Infof("download attempt %d/%d", attempt, maxAttempts)

		retrieved, err := r.attempt(ctx, coll, dir)
		if err != nil {
			return nil, err
		}

		result.State = StateVerifying
		result.Retrieved = retrieved
		result.Ratio = ratio(retrieved, coll.Len())
		if result.Ratio == 1.0 {
			result.State = StateComplete
			return result, nil
		}
		if attempt < maxAttempts {
			result.State = StateRetrying
			logger.Infof("retrying download to get all items (%d/%d retrieved)", retrieved, coll.Len())
		}
	}

	result.State = StateExhausted
	logger.Warnf("not all items retrieved after %d attempts: %d/%d", maxAttempts, result.Retrieved, result.Requested)
	return result, nil
}

// attempt runs one full batched download plus its verification pass and
// returns the number of items left in the attempt's collection artifact.
func (r *Retryer) attempt(ctx context.Context, coll *stac.ItemCollection, dir string) (int, error) {
	session := NewSession(dir)
	monitor := NewMonitor(session, r.Interval, r.ProgressOut)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitor.Run(ctx)
	}()

	err := r.Orchestrator.Download(ctx, coll, dir, session)
	<-monitorDone
	if err != nil {
		return 0, err
	}

	if _, err := MergeBatches(dir); err != nil {
		return 0, err
	}
	if err := CleanEmpty(dir); err != nil {
		return 0, err
	}
	merged, err := stac.ReadItemCollection(filepath.Join(dir, stac.ItemCollectionFile))
	if err != nil {
		return 0, err
	}
	return merged.Len(), nil
}

func ratio(retrieved, requested int) float64 {
	if requested == 0 {
		return 1.0
	}
	return float64(retrieved) / float64(requested)
}
