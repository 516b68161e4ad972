package style

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

// StyleJSON is the MapLibre style document served to map clients.
type StyleJSON struct {
	Version  int                   `json:"version" yaml:"version"`
	Name     string                `json:"name,omitempty" yaml:"name,omitempty"`
	Center   []float64             `json:"center" yaml:"center"`
	Zoom     float64               `json:"zoom" yaml:"zoom"`
	Sources  map[string]SourceJSON `json:"sources" yaml:"sources"`
	Layers   []mapview.Layer       `json:"layers" yaml:"layers"`
	Metadata map[string]any        `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SourceJSON is an inline GeoJSON source.
type SourceJSON struct {
	Type string                     `json:"type" yaml:"type"`
	Data *geojson.FeatureCollection `json:"data" yaml:"-"`
}

// Style snapshots the document. Icons and the cursor are reported under
// metadata since MapLibre styles reference icons through a sprite.
func (d *Document) Style() StyleJSON {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sources := make(map[string]SourceJSON, len(d.sources))
	for id, fc := range d.sources {
		sources[id] = SourceJSON{Type: "geojson", Data: fc}
	}
	layers := make([]mapview.Layer, len(d.layers))
	for i, l := range d.layers {
		l.Layout = maps.Clone(l.Layout)
		l.Paint = maps.Clone(l.Paint)
		layers[i] = l
	}
	meta := map[string]any{
		"velo:images": maps.Clone(d.images),
		"velo:cursor": d.cursor,
	}
	if len(d.state) > 0 {
		state := make(map[string]map[string]map[string]any, len(d.state))
		for src, ids := range d.state {
			state[src] = make(map[string]map[string]any, len(ids))
			for id, s := range ids {
				state[src][id] = maps.Clone(s)
			}
		}
		meta["velo:feature-state"] = state
	}
	return StyleJSON{
		Version:  8,
		Name:     d.name,
		Center:   []float64{d.camera.Center.Lon(), d.camera.Center.Lat()},
		Zoom:     d.camera.Zoom,
		Sources:  sources,
		Layers:   layers,
		Metadata: meta,
	}
}

// SourceIDs returns source ids in creation order.
func (d *Document) SourceIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.sourceOrder)
}

// ETag fingerprints the current style for conditional requests.
func (d *Document) ETag() (string, error) {
	st := d.Style()
	h, err := hashstructure.Hash(st, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("hashing style: %w", err)
	}
	return fmt.Sprintf(`"%x"`, h), nil
}
