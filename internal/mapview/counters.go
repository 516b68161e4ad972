package mapview

import (
	"slices"

	"github.com/paulmach/orb/geojson"
)

// Properties set on ranked counters and read by the counters layer.
const (
	PropCircleSortKey     = "circleSortKey"
	PropCircleRadius      = "circleRadius"
	PropCircleStrokeWidth = "circleStrokeWidth"
)

// DefaultTopCounters is how many counters get the emphasised style.
const DefaultTopCounters = 10

// RankCounters orders counters by their most recent count, highest first,
// keeping the input order among equal counts. The first top counters are
// drawn larger and above the others. The input slice is not modified.
func RankCounters(counters []*geojson.Feature, top int) []*geojson.Feature {
	ranked := make([]*geojson.Feature, len(counters))
	for i, f := range counters {
		ranked[i] = cloneFeature(f)
		if ranked[i].Properties == nil {
			ranked[i].Properties = geojson.Properties{}
		}
	}
	slices.SortStableFunc(ranked, func(a, b *geojson.Feature) int {
		ca, cb := LatestCount(a), LatestCount(b)
		switch {
		case ca > cb:
			return -1
		case ca < cb:
			return 1
		}
		return 0
	})

	for i, f := range ranked {
		if i < top {
			f.Properties[PropCircleSortKey] = 1
			f.Properties[PropCircleRadius] = 10
			f.Properties[PropCircleStrokeWidth] = 3
		} else {
			f.Properties[PropCircleSortKey] = 0
			f.Properties[PropCircleRadius] = 7
			f.Properties[PropCircleStrokeWidth] = 0
		}
	}
	return ranked
}
