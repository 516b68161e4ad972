package mapview

import (
	"slices"

	"github.com/paulmach/orb/geojson"
)

type viewpointKey struct {
	line   int
	imgURL string
}

type sectionKey struct {
	line int
	name string
}

// Index resolves rendered features back to the source features they were
// drawn from. It is rebuilt on every plot; the first feature wins when
// several share a key.
type Index struct {
	hazards    map[string]*geojson.Feature
	viewpoints map[viewpointKey]*geojson.Feature
	sections   map[sectionKey]*geojson.Feature
	counters   map[string]*geojson.Feature
	groupLines map[string][]int
}

// NewIndex builds the lookup tables for a classified collection.
func NewIndex(b *Buckets) *Index {
	idx := &Index{
		hazards:    make(map[string]*geojson.Feature),
		viewpoints: make(map[viewpointKey]*geojson.Feature),
		sections:   make(map[sectionKey]*geojson.Feature),
		counters:   make(map[string]*geojson.Feature),
		groupLines: make(map[string][]int),
	}
	if b == nil {
		return idx
	}

	for _, f := range b.Hazards {
		putFirst(idx.hazards, f.Properties.MustString(PropName, ""), f)
	}
	for _, f := range b.Viewpoints {
		putFirst(idx.viewpoints, viewpointKeyOf(f), f)
	}
	for _, f := range b.Counters {
		if key, ok := IDPdcOf(f); ok {
			putFirst(idx.counters, key, f)
		}
	}
	for _, f := range b.All {
		putFirst(idx.sections, sectionKeyOf(f), f)
		group, ok := GroupOf(f)
		if !ok {
			continue
		}
		line := LineOf(f)
		if !slices.Contains(idx.groupLines[group], line) {
			idx.groupLines[group] = append(idx.groupLines[group], line)
		}
	}
	return idx
}

func putFirst[K comparable](m map[K]*geojson.Feature, k K, f *geojson.Feature) {
	if _, ok := m[k]; !ok {
		m[k] = f
	}
}

func viewpointKeyOf(f *geojson.Feature) viewpointKey {
	return viewpointKey{line: LineOf(f), imgURL: f.Properties.MustString(PropImgURL, "")}
}

func sectionKeyOf(f *geojson.Feature) sectionKey {
	return sectionKey{line: LineOf(f), name: f.Properties.MustString(PropName, "")}
}

// Hazard resolves a rendered hazard by name.
func (idx *Index) Hazard(rendered *geojson.Feature) (*geojson.Feature, bool) {
	f, ok := idx.hazards[rendered.Properties.MustString(PropName, "")]
	return f, ok
}

// Viewpoint resolves a rendered viewpoint by line and image.
func (idx *Index) Viewpoint(rendered *geojson.Feature) (*geojson.Feature, bool) {
	f, ok := idx.viewpoints[viewpointKeyOf(rendered)]
	return f, ok
}

// Section resolves a rendered section by line and name.
func (idx *Index) Section(rendered *geojson.Feature) (*geojson.Feature, bool) {
	f, ok := idx.sections[sectionKeyOf(rendered)]
	return f, ok
}

// Counter resolves a rendered counter by idPdc.
func (idx *Index) Counter(rendered *geojson.Feature) (*geojson.Feature, bool) {
	key, ok := IDPdcOf(rendered)
	if !ok {
		return nil, false
	}
	f, ok := idx.counters[key]
	return f, ok
}

// CounterByID looks a counter up by its idPdc key.
func (idx *Index) CounterByID(key string) (*geojson.Feature, bool) {
	f, ok := idx.counters[key]
	return f, ok
}

// LinesOf returns the distinct route numbers sharing f's group, in first
// seen order. A section without a group only belongs to its own line.
func (idx *Index) LinesOf(f *geojson.Feature) []int {
	group, ok := GroupOf(f)
	if !ok {
		return []int{LineOf(f)}
	}
	lines := idx.groupLines[group]
	if len(lines) == 0 {
		return []int{LineOf(f)}
	}
	return append([]int(nil), lines...)
}
