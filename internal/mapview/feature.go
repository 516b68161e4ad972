// Package mapview classifies a cycling-network feature collection into
// status categories and composes them onto a rendering surface as named
// sources and styled layers, with hover and click interactions.
package mapview

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Status is the construction state of a line section.
type Status string

const (
	StatusDone              Status = "done"
	StatusWIP               Status = "wip"
	StatusTested            Status = "tested"
	StatusPlanned           Status = "planned"
	StatusVariante          Status = "variante"
	StatusVariantePostponed Status = "variante-postponed"
	StatusUnknown           Status = "unknown"
	StatusPostponed         Status = "postponed"
)

// Statuses lists every known status.
var Statuses = []Status{
	StatusDone, StatusWIP, StatusTested, StatusPlanned,
	StatusVariante, StatusVariantePostponed, StatusUnknown, StatusPostponed,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Rendered returns the status a section is drawn as. Tested sections are
// drawn as work in progress.
func (s Status) Rendered() Status {
	if s == StatusTested {
		return StatusWIP
	}
	return s
}

// PointKind discriminates point features.
type PointKind string

const (
	KindCounter   PointKind = "counter"
	KindHazard    PointKind = "hazard"
	KindViewpoint PointKind = "viewpoint"
)

// kindAliases maps the content pipeline's historical type names.
var kindAliases = map[string]PointKind{
	"counter":          KindCounter,
	"compteur-velo":    KindCounter,
	"compteur-voiture": KindCounter,
	"hazard":           KindHazard,
	"danger":           KindHazard,
	"viewpoint":        KindViewpoint,
	"perspective":      KindViewpoint,
}

// ParsePointKind resolves a point type discriminator, including aliases.
func ParsePointKind(s string) (PointKind, bool) {
	k, ok := kindAliases[s]
	return k, ok
}

// Feature property keys.
const (
	PropLine     = "line"
	PropStatus   = "status"
	PropQuality  = "quality"
	PropGroup    = "id"
	PropColor    = "color"
	PropName     = "name"
	PropType     = "type"
	PropIDPdc    = "idPdc"
	PropNeighbor = "neighbor"
	PropCounts   = "counts"
	PropImgURL   = "imgUrl"
	PropLink     = "link"
)

// QualityUnsatisfactory flags a section whose build quality is disputed.
const QualityUnsatisfactory = "unsatisfactory"

// Count is one sample of a counter time series.
type Count struct {
	Timestamp string  `json:"timestamp" yaml:"timestamp"`
	Count     float64 `json:"count" yaml:"count"`
}

// IsLineString reports whether f is a line section.
func IsLineString(f *geojson.Feature) bool {
	if f == nil {
		return false
	}
	_, ok := f.Geometry.(orb.LineString)
	return ok
}

// IsPoint reports whether f has point geometry.
func IsPoint(f *geojson.Feature) bool {
	if f == nil {
		return false
	}
	_, ok := f.Geometry.(orb.Point)
	return ok
}

// KindOf returns the point kind of f. Non-point features have no kind.
func KindOf(f *geojson.Feature) (PointKind, bool) {
	if !IsPoint(f) {
		return "", false
	}
	return ParsePointKind(f.Properties.MustString(PropType, ""))
}

// LineOf returns the route number of a section or viewpoint.
func LineOf(f *geojson.Feature) int {
	return f.Properties.MustInt(PropLine, 0)
}

// StatusOf returns the raw status of a section.
func StatusOf(f *geojson.Feature) Status {
	return Status(f.Properties.MustString(PropStatus, ""))
}

// HasStatus reports whether the status attribute is present at all.
func HasStatus(f *geojson.Feature) bool {
	_, ok := f.Properties[PropStatus]
	return ok
}

// GroupOf returns the key grouping multi-segment sections of one route.
func GroupOf(f *geojson.Feature) (string, bool) {
	return propKey(f, PropGroup)
}

// IDPdcOf returns the counter identifier as a comparable key.
func IDPdcOf(f *geojson.Feature) (string, bool) {
	return propKey(f, PropIDPdc)
}

// NeighborOf returns the counter identifier of the paired counter.
func NeighborOf(f *geojson.Feature) (string, bool) {
	return propKey(f, PropNeighbor)
}

// propKey normalises scalar identifiers so 12, 12.0 and "12" compare equal.
func propKey(f *geojson.Feature, key string) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return "", false
	}
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n)), true
		}
	case string:
		if n == "" {
			return "", false
		}
	}
	return fmt.Sprint(v), true
}

// CountsOf returns the counter time series of f. It accepts both decoded
// JSON ([]any of objects) and typed []Count properties.
func CountsOf(f *geojson.Feature) []Count {
	switch v := f.Properties[PropCounts].(type) {
	case []Count:
		return v
	case []any:
		counts := make([]Count, 0, len(v))
		for _, raw := range v {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			c := Count{}
			if ts, ok := m["timestamp"].(string); ok {
				c.Timestamp = ts
			} else if ts, ok := m["month"].(string); ok {
				c.Timestamp = ts
			}
			switch n := m["count"].(type) {
			case float64:
				c.Count = n
			case int:
				c.Count = float64(n)
			}
			counts = append(counts, c)
		}
		return counts
	}
	return nil
}

// LatestCount returns the most recent count of a counter, or 0.
func LatestCount(f *geojson.Feature) float64 {
	counts := CountsOf(f)
	if len(counts) == 0 {
		return 0
	}
	return counts[len(counts)-1].Count
}

// cloneFeature copies f with its own property map so callers can annotate
// it without touching the caller's collection.
func cloneFeature(f *geojson.Feature) *geojson.Feature {
	return &geojson.Feature{
		ID:         f.ID,
		Type:       f.Type,
		BBox:       f.BBox,
		Geometry:   f.Geometry,
		Properties: f.Properties.Clone(),
	}
}

func collection(features []*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, features...)
	return fc
}
