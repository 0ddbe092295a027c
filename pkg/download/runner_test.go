package download

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/stacgrab/pkg/stac"
)

func testRunner(t *testing.T, grouped bool) *Runner {
	t.Helper()
	orch, _ := testOrchestrator(t, 0)
	return &Runner{
		Orchestrator: orch,
		MaxAttempts:  2,
		Grouped:      grouped,
		SkipPreview:  true,
		Interval:     time.Millisecond,
		ProgressOut:  io.Discard,
	}
}

func TestRunnerGroupedRun(t *testing.T) {
	coll := dlCollection("a", "b", "c")
	coll.Items[0].Collection = "sentinel-2-l2a"
	coll.Items[1].Collection = "sentinel-2-l2a"
	coll.Items[2].Collection = "landsat-c2-l2"
	outDir := t.TempDir()

	summary, err := testRunner(t, true).Run(context.Background(), coll, outDir)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Requested)
	assert.Equal(t, 3, summary.Retrieved)
	assert.Equal(t, 1.0, summary.Ratio())
	require.Len(t, summary.Results, 2)
	assert.Equal(t, StateComplete, summary.Results["sentinel-2-l2a"].State)
	assert.Equal(t, StateComplete, summary.Results["landsat-c2-l2"].State)

	s2, err := stac.ReadItemCollection(filepath.Join(outDir, "sentinel-2-l2a", stac.ItemCollectionFile))
	require.NoError(t, err)
	assert.Equal(t, 2, s2.Len())
	ls, err := stac.ReadItemCollection(filepath.Join(outDir, "landsat-c2-l2", stac.ItemCollectionFile))
	require.NoError(t, err)
	assert.Equal(t, 1, ls.Len())
}

func TestRunnerFlatRun(t *testing.T) {
	coll := dlCollection("a", "b", "c")
	coll.Items[2].Collection = "landsat-c2-l2"
	outDir := t.TempDir()

	summary, err := testRunner(t, false).Run(context.Background(), coll, outDir)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Retrieved)

	// Everything lands in one flat directory regardless of source collection.
	merged, err := stac.ReadItemCollection(filepath.Join(outDir, stac.ItemCollectionFile))
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Len())
}

func TestRunnerPreviewFailureIsNonFatal(t *testing.T) {
	// Every fetch fails: the preview cannot materialize a single sample item,
	// and the real download exhausts its budget with nothing retrieved.
	coll := &stac.ItemCollection{}
	for i := 0; i < 10; i++ {
		coll.Items = append(coll.Items, dlItem(fmt.Sprintf("bad-%d", i), map[string]string{
			"data": fmt.Sprintf("https://example.com/bad-%d.tif", i),
		}))
	}

	runner := testRunner(t, false)
	runner.SkipPreview = false
	runner.MaxAttempts = 1
	runner.Threshold = 10
	runner.SampleSize = 3

	summary, err := runner.Run(context.Background(), coll, t.TempDir())
	require.NoError(t, err, "a failed preview must not abort the download")
	assert.Equal(t, 10, summary.Requested)
	assert.Equal(t, 0, summary.Retrieved)
	assert.Equal(t, StateExhausted, summary.Results[""].State)
}
