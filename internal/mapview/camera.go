package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CameraPadding is the screen padding, in pixels, kept around fitted bounds.
const CameraPadding = 20

// FitCamera frames the given features. A lone point is flown to; anything
// else is fitted to the bounds of every line and point coordinate. It
// reports whether the camera moved.
func FitCamera(s Surface, features []*geojson.Feature) bool {
	var (
		bound orb.Bound
		count int
	)
	extend := func(p orb.Point) {
		if count == 0 {
			bound = p.Bound()
		} else {
			bound = bound.Extend(p)
		}
		count++
	}

	var points []orb.Point
	for _, f := range features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			for _, p := range g {
				extend(p)
			}
		case orb.Point:
			points = append(points, g)
		}
	}
	for _, p := range points {
		extend(p)
	}
	if count == 0 {
		return false
	}

	if len(features) == 1 && len(points) == 1 {
		s.FlyTo(points[0])
		return true
	}
	s.FitBounds(bound, CameraPadding)
	return true
}
