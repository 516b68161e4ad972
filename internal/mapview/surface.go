package mapview

import (
	"errors"
	"image"
	"maps"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrSourceExists  = errors.New("source already exists")
	ErrUnknownSource = errors.New("unknown source")
	ErrLayerExists   = errors.New("layer already exists")
	ErrUnknownLayer  = errors.New("unknown layer")
	ErrImageExists   = errors.New("image already exists")
)

// Surface is the rendering surface the composer drives. It is owned by a
// single composer; implementations may still be shared with readers.
type Surface interface {
	HasSource(id string) bool
	AddSource(id string, fc *geojson.FeatureCollection) error
	SetSourceData(id string, fc *geojson.FeatureCollection) error

	HasLayer(id string) bool
	AddLayer(layer Layer) error
	SetPaintProperty(layerID, name string, value any) error

	// AddImage registers an icon. SDF images are alpha masks recolored by
	// icon-color.
	AddImage(name string, img image.Image, opts ImageOptions) error
	HasImage(name string) bool

	// QueryFeatures returns the rendered features under a geographic point,
	// topmost layer first.
	QueryFeatures(at orb.Point, q Query) []*geojson.Feature

	// On subscribes h to events of type t on a layer, or on the whole map
	// when layerID is empty.
	On(t EventType, layerID string, h Handler)

	SetFeatureState(source string, id any, state map[string]any)
	SetCursor(cursor string)

	FitBounds(b orb.Bound, padding float64)
	FlyTo(center orb.Point)

	OpenPopup(at orb.Point, opts PopupOptions) Popup
}

// LayerType is the MapLibre layer type.
type LayerType string

const (
	LayerLine   LayerType = "line"
	LayerSymbol LayerType = "symbol"
	LayerCircle LayerType = "circle"
)

// Layer is a styled rendering instruction bound to a source. Paint and
// layout values follow the MapLibre style specification, expressions
// included.
type Layer struct {
	ID      string         `json:"id" yaml:"id"`
	Type    LayerType      `json:"type" yaml:"type"`
	Source  string         `json:"source" yaml:"source"`
	MinZoom float64        `json:"minzoom,omitempty" yaml:"minzoom,omitempty"`
	Layout  map[string]any `json:"layout,omitempty" yaml:"layout,omitempty"`
	Paint   map[string]any `json:"paint,omitempty" yaml:"paint,omitempty"`
}

// LayerOverride replaces individual style entries of a built-in layer.
type LayerOverride struct {
	MinZoom *float64       `json:"minzoom,omitempty" yaml:"minzoom,omitempty" doc:"Minimum zoom level"`
	Layout  map[string]any `json:"layout,omitempty" yaml:"layout,omitempty" doc:"Layout properties to replace"`
	Paint   map[string]any `json:"paint,omitempty" yaml:"paint,omitempty" doc:"Paint properties to replace"`
}

// With returns a copy of l with o applied.
func (l Layer) With(o LayerOverride) Layer {
	out := l
	out.Layout = maps.Clone(l.Layout)
	out.Paint = maps.Clone(l.Paint)
	if o.MinZoom != nil {
		out.MinZoom = *o.MinZoom
	}
	if len(o.Layout) > 0 && out.Layout == nil {
		out.Layout = map[string]any{}
	}
	maps.Copy(out.Layout, o.Layout)
	if len(o.Paint) > 0 && out.Paint == nil {
		out.Paint = map[string]any{}
	}
	maps.Copy(out.Paint, o.Paint)
	return out
}

// ImageOptions configures a registered icon.
type ImageOptions struct {
	SDF bool `json:"sdf"`
}

// Query narrows QueryFeatures. With no layers every rendered layer is
// searched.
type Query struct {
	Layers []string
	Filter func(*geojson.Feature) bool
}

// EventType names a pointer event.
type EventType string

const (
	EventMouseMove  EventType = "mousemove"
	EventMouseEnter EventType = "mouseenter"
	EventMouseLeave EventType = "mouseleave"
	EventClick      EventType = "click"
)

// Event is a pointer event at a geographic position.
type Event struct {
	Type   EventType
	LngLat orb.Point
	Layer  string
}

// Handler receives pointer events.
type Handler func(Event)

// PopupOptions describes the container a tooltip is mounted into.
type PopupOptions struct {
	ContainerID  string
	MinHeight    string
	Placeholder  string
	CloseButton  bool
	CloseOnClick bool
}

// Popup is an open popup whose content can be filled once ready.
type Popup interface {
	SetContent(html string)
}
