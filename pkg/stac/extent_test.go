package stac

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/stacgrab/pkg/errors"
)

func polygonItem(t *testing.T, id, datetime string, minX, minY, maxX, maxY float64) *Item {
	t.Helper()
	doc := fmt.Sprintf(`{
		"type": "Feature",
		"stac_version": "1.0.0",
		"id": %q,
		"geometry": {"type": "Polygon", "coordinates": [[
			[%[3]f, %[4]f], [%[5]f, %[4]f], [%[5]f, %[6]f], [%[3]f, %[6]f], [%[3]f, %[4]f]
		]]},
		"properties": {"datetime": %[2]q}
	}`, id, datetime, minX, minY, maxX, maxY)
	return mustItem(t, doc)
}

func TestComputeExtent(t *testing.T) {
	items := []*Item{
		polygonItem(t, "a", "2023-06-01T00:00:00Z", 0, 0, 1, 1),
		polygonItem(t, "b", "2023-08-15T00:00:00Z", 1, 1, 2, 2),
	}

	extent, err := ComputeExtent(items)
	require.NoError(t, err)

	require.Len(t, extent.Spatial.Bbox, 1)
	assert.Equal(t, []float64{0, 0, 2, 2}, extent.Spatial.Bbox[0])

	require.Len(t, extent.Temporal.Interval, 1)
	interval := extent.Temporal.Interval[0]
	require.NotNil(t, interval[0])
	require.NotNil(t, interval[1])
	assert.Equal(t, "2023-06-01T00:00:00Z", *interval[0])
	assert.Equal(t, "2023-08-15T00:00:00Z", *interval[1])
}

func TestComputeExtentSingleItem(t *testing.T) {
	items := []*Item{polygonItem(t, "a", "2023-06-01T00:00:00Z", 0, 0, 1, 1)}

	extent, err := ComputeExtent(items)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1}, extent.Spatial.Bbox[0])
	assert.Equal(t, *extent.Temporal.Interval[0][0], *extent.Temporal.Interval[0][1])
}

func TestComputeExtentErrors(t *testing.T) {
	_, err := ComputeExtent(nil)
	assert.ErrorIs(t, err, errors.ErrEmptyCollection)

	noGeometry := mustItem(t, `{"type": "Feature", "id": "a", "geometry": null, "properties": {}}`)
	_, err = ComputeExtent([]*Item{noGeometry})
	assert.ErrorIs(t, err, errors.ErrStructural)
}
