package download

import (
	"context"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/glorpus-work/stacgrab/internal/logger"
	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fsutil"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

// Estimator defaults.
const (
	DefaultSampleSize = 10
	DefaultThreshold  = 10
	DefaultSeed       = 42
)

// Estimate is the projected total download size.
type Estimate struct {
	// Skipped is set when the collection is too small for a preview run.
	Skipped bool

	// SampleCount is the number of sampled items that materialized.
	SampleCount int

	// Mean is the projected total size in bytes; CI95 the half-width of its
	// 95% confidence interval.
	Mean float64
	CI95 float64
}

// Estimator projects the total download size from a preview download of a
// deterministic random subsample, run through the same batching and signing
// path as the real download.
type Estimator struct {
	Orchestrator *Orchestrator

	// SampleSize items are previewed when the collection holds at least
	// Threshold items. Zero values fall back to the defaults.
	SampleSize int
	Threshold  int

	// Seed fixes the sample; the same collection always previews the same
	// items.
	Seed int64

	// Interval and ProgressOut configure the preview's progress monitor.
	Interval    time.Duration
	ProgressOut io.Writer
}

// Estimate previews a subsample of coll into a scratch directory, which is
// deleted afterwards regardless of outcome, and projects the total size.
// destDir is only consulted for the free-space warning.
func (e *Estimator) Estimate(ctx context.Context, coll *stac.ItemCollection, destDir string) (*Estimate, error) {
	sampleSize := e.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	threshold := e.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if coll.Len() < threshold {
		logger.Info("not enough items to estimate size, skipping preview run")
		return &Estimate{Skipped: true}, nil
	}

	logger.Info("estimating size of download")
	scratch, err := os.MkdirTemp("", "stacgrab-preview-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create preview directory")
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	sample := e.sample(coll, sampleSize)
	session := NewSession(scratch)
	monitor := NewMonitor(session, e.Interval, e.ProgressOut)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitor.Run(ctx)
	}()
	err = e.Orchestrator.Download(ctx, sample, scratch, session)
	<-monitorDone
	if err != nil {
		return nil, err
	}
	if _, err := MergeBatches(scratch); err != nil {
		return nil, err
	}
	if err := CleanEmpty(scratch); err != nil {
		return nil, err
	}

	var sizes []int64
	for _, item := range sample.Items {
		itemDir := filepath.Join(scratch, item.ID)
		if _, err := os.Stat(itemDir); err != nil {
			continue
		}
		sizes = append(sizes, fsutil.DirSize(itemDir))
	}
	if len(sizes) == 0 {
		return nil, errors.Wrap(errors.ErrFetchFailed, "preview run retrieved no items")
	}

	mean, ci := ProjectSize(sizes, coll.Len())
	logger.Infof("estimated total size: %s ± %s (95%% confidence interval)",
		FormatBytes(mean), FormatBytes(ci))
	e.checkFreeSpace(destDir, mean+ci)

	return &Estimate{SampleCount: len(sizes), Mean: mean, CI95: ci}, nil
}

// sample draws a deterministic fixed-seed random subsample of size n without
// replacement.
func (e *Estimator) sample(coll *stac.ItemCollection, n int) *stac.ItemCollection {
	seed := e.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	if n > coll.Len() {
		n = coll.Len()
	}
	rnd := rand.New(rand.NewSource(seed))
	sample := &stac.ItemCollection{Extra: coll.Extra}
	for _, idx := range rnd.Perm(coll.Len())[:n] {
		sample.Items = append(sample.Items, coll.Items[idx])
	}
	return sample
}

// ProjectSize extrapolates sampled per-item directory sizes to the full
// population: the mean item size scaled by the total item count, and the
// 95% confidence half-width 1.96 * stddev / sqrt(n-1) scaled the same way.
func ProjectSize(sizes []int64, totalItems int) (mean, ci95 float64) {
	n := float64(len(sizes))
	var sum float64
	for _, s := range sizes {
		sum += float64(s)
	}
	mean = sum / n * float64(totalItems)

	if len(sizes) < 2 {
		return mean, 0
	}
	sampleMean := sum / n
	var sq float64
	for _, s := range sizes {
		d := float64(s) - sampleMean
		sq += d * d
	}
	stddev := math.Sqrt(sq / n)
	ci95 = 1.96 * stddev / math.Sqrt(n-1) * float64(totalItems)
	return mean, ci95
}

// checkFreeSpace warns when the projected upper bound does not fit the
// destination filesystem.
func (e *Estimator) checkFreeSpace(destDir string, projected float64) {
	usage, err := disk.Usage(destDir)
	if err != nil {
		logger.Debug("could not determine free disk space", logger.Fields{"dir": destDir, "error": err.Error()})
		return
	}
	if projected > float64(usage.Free) {
		logger.Warn("projected download size exceeds free disk space", logger.Fields{
			"projected": FormatBytes(projected),
			"free":      FormatBytes(float64(usage.Free)),
			"dir":       destDir,
		})
	}
}
