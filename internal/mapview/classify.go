package mapview

import (
	"slices"

	"github.com/paulmach/orb/geojson"
)

// ColorAssigner maps a route number to a display color. Implementations must
// be stable: the same line always yields the same color.
type ColorAssigner interface {
	LineColor(line int) string
}

// Palette assigns colors by route number, 1-based, wrapping around.
type Palette []string

// DefaultPalette is used when no palette is configured.
var DefaultPalette = Palette{
	"#60A75B", "#D53C3D", "#4B8ACB", "#F3A032", "#8E58A0",
	"#E7C029", "#59B9C5", "#E36FA4", "#8B5A2B", "#152B68",
}

// LineColor implements ColorAssigner.
func (p Palette) LineColor(line int) string {
	if len(p) == 0 {
		return DefaultPalette.LineColor(line)
	}
	i := (line - 1) % len(p)
	if i < 0 {
		i += len(p)
	}
	return p[i]
}

// DefaultPriority declares route 1 as the most important line.
var DefaultPriority = []int{1, 2}

// Classifier partitions a feature collection into rendering buckets.
type Classifier struct {
	// Priority lists route numbers from most to least important. More
	// important lines are drawn later so they sit on top.
	Priority []int
	Colors   ColorAssigner
}

// Buckets is the classified view of one feature collection. Line features
// appear in All and in exactly one status bucket; Unsatisfactory overlaps
// both. Every feature is a copy carrying its computed color.
type Buckets struct {
	All            []*geojson.Feature
	Unsatisfactory []*geojson.Feature
	ByStatus       map[Status][]*geojson.Feature

	Counters   []*geojson.Feature
	Hazards    []*geojson.Feature
	Viewpoints []*geojson.Feature
}

// Status returns the rendered bucket for s (tested sections live in wip).
func (b *Buckets) Status(s Status) []*geojson.Feature {
	return b.ByStatus[s.Rendered()]
}

// Classify sorts, colors and buckets fc.
func (c Classifier) Classify(fc *geojson.FeatureCollection) *Buckets {
	b := &Buckets{ByStatus: make(map[Status][]*geojson.Feature)}
	if fc == nil {
		return b
	}

	var lines []*geojson.Feature
	for _, f := range fc.Features {
		if IsLineString(f) {
			lines = append(lines, f)
			continue
		}
		kind, ok := KindOf(f)
		if !ok {
			continue
		}
		switch kind {
		case KindCounter:
			b.Counters = append(b.Counters, cloneFeature(f))
		case KindHazard:
			b.Hazards = append(b.Hazards, cloneFeature(f))
		case KindViewpoint:
			b.Viewpoints = append(b.Viewpoints, c.withColor(f))
		}
	}

	c.sortByLine(lines)
	for _, f := range lines {
		colored := c.withColor(f)
		b.All = append(b.All, colored)

		status := StatusOf(colored)
		if status.Valid() {
			b.ByStatus[status.Rendered()] = append(b.ByStatus[status.Rendered()], colored)
		}
		if colored.Properties.MustString(PropQuality, "") == QualityUnsatisfactory && status != StatusPostponed {
			b.Unsatisfactory = append(b.Unsatisfactory, colored)
		}
	}
	return b
}

// sortByLine orders sections so the first declared priority is drawn last.
// Undeclared lines keep their relative order and are drawn first.
func (c Classifier) sortByLine(lines []*geojson.Feature) {
	priority := c.Priority
	if priority == nil {
		priority = DefaultPriority
	}
	rank := func(f *geojson.Feature) int {
		i := slices.Index(priority, LineOf(f))
		if i < 0 {
			return -1
		}
		return len(priority) - 1 - i
	}
	slices.SortStableFunc(lines, func(a, b *geojson.Feature) int {
		return rank(a) - rank(b)
	})
}

// withColor copies f and sets its color from the route number unless the
// source data already carries one.
func (c Classifier) withColor(f *geojson.Feature) *geojson.Feature {
	colored := cloneFeature(f)
	if colored.Properties == nil {
		colored.Properties = geojson.Properties{}
	}
	if _, ok := colored.Properties[PropColor]; !ok {
		colored.Properties[PropColor] = c.colors().LineColor(LineOf(f))
	}
	return colored
}

func (c Classifier) colors() ColorAssigner {
	if c.Colors == nil {
		return DefaultPalette
	}
	return c.Colors
}

// groupByColor splits features by their color, keeping first-seen order.
func groupByColor(features []*geojson.Feature) ([]string, map[string][]*geojson.Feature) {
	var order []string
	groups := make(map[string][]*geojson.Feature)
	for _, f := range features {
		color := f.Properties.MustString(PropColor, "")
		if _, ok := groups[color]; !ok {
			order = append(order, color)
		}
		groups[color] = append(groups[color], f)
	}
	return order, groups
}
