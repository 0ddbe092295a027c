package stac

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/glorpus-work/stacgrab/pkg/errors"
)

// ComputeExtent derives a collection extent from its members: the bounding
// box of the union of the member geometries and the [min, max] interval of
// the member timestamps. Repairing a geometry with a zero-width buffer leaves
// its bounds unchanged, so the union's bbox equals the accumulated bound of
// the members.
func ComputeExtent(items []*Item) (*Extent, error) {
	if len(items) == 0 {
		return nil, errors.ErrEmptyCollection
	}

	var bound orb.Bound
	haveBound := false
	var minTime, maxTime time.Time
	haveTime := false

	for _, item := range items {
		if item.Geometry != nil {
			b := item.Geometry.Geometry().Bound()
			if haveBound {
				bound = bound.Union(b)
			} else {
				bound = b
				haveBound = true
			}
		}
		if !item.Datetime.IsZero() {
			if !haveTime {
				minTime, maxTime = item.Datetime, item.Datetime
				haveTime = true
				continue
			}
			if item.Datetime.Before(minTime) {
				minTime = item.Datetime
			}
			if item.Datetime.After(maxTime) {
				maxTime = item.Datetime
			}
		}
	}
	if !haveBound {
		return nil, errors.Wrap(errors.ErrStructural, "no item carries a geometry")
	}

	bbox := []float64{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()}
	interval := []*string{nil, nil}
	if haveTime {
		start := minTime.Format(time.RFC3339)
		end := maxTime.Format(time.RFC3339)
		interval[0] = &start
		interval[1] = &end
	}

	return &Extent{
		Spatial:  SpatialExtent{Bbox: [][]float64{bbox}},
		Temporal: TemporalExtent{Interval: [][]*string{interval}},
	}, nil
}
