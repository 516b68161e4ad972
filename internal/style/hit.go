package style

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = 111_320.0

// QueryFeatures returns features drawn under at by layers visible at the
// current zoom, topmost layer first. A feature drawn by several layers is
// returned once per layer.
func (d *Document) QueryFeatures(at orb.Point, q mapview.Query) []*geojson.Feature {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*geojson.Feature
	for _, l := range d.hitLayers(at) {
		if len(q.Layers) > 0 && !slices.Contains(q.Layers, l.layer) {
			continue
		}
		for _, f := range l.features {
			if q.Filter == nil || q.Filter(f) {
				out = append(out, f)
			}
		}
	}
	return out
}

type layerHit struct {
	layer    string
	features []*geojson.Feature
}

// hitLayers hit-tests every visible layer, topmost first. d.mu must be held.
func (d *Document) hitLayers(at orb.Point) []layerHit {
	radius := d.tolerance * metersPerPixel(at.Lat(), d.camera.Zoom)

	var hits []layerHit
	for i := len(d.layers) - 1; i >= 0; i-- {
		l := d.layers[i]
		if l.MinZoom > d.camera.Zoom {
			continue
		}
		src := d.sources[l.Source]
		if src == nil {
			continue
		}
		var features []*geojson.Feature
		for _, f := range src.Features {
			if within(f.Geometry, at, radius) {
				features = append(features, f)
			}
		}
		if len(features) > 0 {
			hits = append(hits, layerHit{layer: l.ID, features: features})
		}
	}
	return hits
}

// within reports whether g passes within radius meters of p.
func within(g orb.Geometry, p orb.Point, radius float64) bool {
	switch g := g.(type) {
	case orb.Point:
		return geo.Distance(g, p) <= radius
	case orb.LineString:
		// Equirectangular projection around p is accurate enough at
		// pointer scale.
		scale := math.Cos(p.Lat() * math.Pi / 180)
		local := make(orb.LineString, len(g))
		for i, q := range g {
			local[i] = orb.Point{q.Lon() * scale, q.Lat()}
		}
		return planar.DistanceFrom(local, orb.Point{p.Lon() * scale, p.Lat()})*metersPerDegree <= radius
	case orb.MultiLineString:
		for _, ls := range g {
			if within(ls, p, radius) {
				return true
			}
		}
	}
	return false
}

// Dispatch delivers a pointer event. Mouse moves also produce enter and
// leave events for layers the pointer crosses into or out of, and a map
// leave ends every layer hover. Clicks close a popup opened with
// close-on-click before listeners run.
func (d *Document) Dispatch(ev mapview.Event) {
	var calls []func()
	queue := func(t mapview.EventType, layer string, at orb.Point) {
		for _, h := range d.handlers[handlerKey{event: t, layer: layer}] {
			e := mapview.Event{Type: t, LngLat: at, Layer: layer}
			calls = append(calls, func() { h(e) })
		}
	}

	closePopup := false
	d.mu.Lock()
	switch ev.Type {
	case mapview.EventMouseMove:
		under := make(map[string]bool)
		for _, h := range d.hitLayers(ev.LngLat) {
			under[h.layer] = true
		}
		for _, l := range d.layers {
			switch {
			case under[l.ID] && !d.entered[l.ID]:
				queue(mapview.EventMouseEnter, l.ID, ev.LngLat)
			case !under[l.ID] && d.entered[l.ID]:
				queue(mapview.EventMouseLeave, l.ID, ev.LngLat)
			}
		}
		for _, l := range d.layers {
			if under[l.ID] {
				queue(mapview.EventMouseMove, l.ID, ev.LngLat)
			}
		}
		queue(mapview.EventMouseMove, "", ev.LngLat)
		d.entered = under

	case mapview.EventMouseLeave:
		for _, l := range d.layers {
			if d.entered[l.ID] {
				queue(mapview.EventMouseLeave, l.ID, ev.LngLat)
			}
		}
		d.entered = make(map[string]bool)

	case mapview.EventClick:
		if d.popup != nil && d.popup.closeOnClick {
			d.popup = nil
			d.version++
			closePopup = true
		}
		for _, h := range d.hitLayers(ev.LngLat) {
			queue(mapview.EventClick, h.layer, ev.LngLat)
		}
		queue(mapview.EventClick, "", ev.LngLat)
	}
	d.mu.Unlock()

	if closePopup {
		d.notify(Change{Kind: ChangePopup})
	}
	for _, call := range calls {
		call()
	}
}

// Move, Leave and Click are shorthands for Dispatch.
func (d *Document) Move(at orb.Point) {
	d.Dispatch(mapview.Event{Type: mapview.EventMouseMove, LngLat: at})
}

func (d *Document) Leave() {
	d.Dispatch(mapview.Event{Type: mapview.EventMouseLeave})
}

func (d *Document) Click(at orb.Point) {
	d.Dispatch(mapview.Event{Type: mapview.EventClick, LngLat: at})
}
