package download

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/fsutil"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

// Runner drives whole downloads: an advisory size preview, then the retry
// loop per item group, grouped by source collection or into one flat
// directory.
type Runner struct {
	Orchestrator *Orchestrator

	// MaxAttempts is the whole-collection retry budget per group.
	MaxAttempts int

	// Grouped selects per-source-collection subdirectories; false downloads
	// everything into one flat directory.
	Grouped bool

	// SkipPreview disables the size estimate.
	SkipPreview bool

	// Preview tuning, forwarded to the Estimator.
	SampleSize int
	Threshold  int
	Seed       int64

	// Interval and ProgressOut configure progress reporting.
	Interval    time.Duration
	ProgressOut io.Writer
}

// Summary aggregates the per-group results of a run.
type Summary struct {
	Requested int
	Retrieved int
	Results   map[string]*Result
}

// Ratio is the overall item-completion ratio.
func (s *Summary) Ratio() float64 {
	return ratio(s.Retrieved, s.Requested)
}

// Run downloads coll into outDir and returns the aggregated summary. A
// preview failure is logged and skipped; the download itself proceeds.
func (r *Runner) Run(ctx context.Context, coll *stac.ItemCollection, outDir string) (*Summary, error) {
	if err := fsutil.EnsureDir(outDir); err != nil {
		return nil, err
	}

	if !r.SkipPreview {
		estimator := &Estimator{
			Orchestrator: r.Orchestrator,
			SampleSize:   r.SampleSize,
			Threshold:    r.Threshold,
			Seed:         r.Seed,
			Interval:     r.Interval,
			ProgressOut:  r.ProgressOut,
		}
		if _, err := estimator.Estimate(ctx, coll, outDir); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("size preview failed, continuing without estimate", logger.Fields{"error": err.Error()})
		}
	}

	labels, groups := r.split(coll)
	retryer := &Retryer{
		Orchestrator: r.Orchestrator,
		MaxAttempts:  r.MaxAttempts,
		Interval:     r.Interval,
		ProgressOut:  r.ProgressOut,
	}

	summary := &Summary{Requested: coll.Len(), Results: make(map[string]*Result, len(labels))}
	for i, label := range labels {
		group := groups[label]
		dir := outDir
		if label != "" {
			dir = filepath.Join(outDir, label)
			logger.Infof("%s (collection %d/%d)", label, i+1, len(labels))
		}
		result, err := retryer.Run(ctx, group, dir)
		if err != nil {
			return nil, err
		}
		summary.Results[label] = result
		summary.Retrieved += result.Retrieved
	}

	logger.Infof("downloaded items: %d/%d", summary.Retrieved, summary.Requested)
	logger.Infof("success rate: %.2f%%", summary.Ratio()*100)
	return summary, nil
}

// split partitions the input by source-collection label when grouping is on;
// otherwise everything becomes one unnamed group.
func (r *Runner) split(coll *stac.ItemCollection) ([]string, map[string]*stac.ItemCollection) {
	if r.Grouped {
		return coll.GroupByCollection()
	}
	return []string{""}, map[string]*stac.ItemCollection{"": coll}
}
