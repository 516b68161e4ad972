// Package style provides Document, an in-memory MapLibre style that acts as
// the rendering surface for a map session. It keeps sources, ordered layers,
// icons, feature-state, listeners, the camera and the open popup, and can
// hit-test pointer positions against its rendered features.
package style

import (
	"fmt"
	"image"
	"maps"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

// Change kinds reported to OnChange listeners.
const (
	ChangeSource       = "source"
	ChangeLayer        = "layer"
	ChangePaint        = "paint"
	ChangeImage        = "image"
	ChangeFeatureState = "feature-state"
	ChangeCursor       = "cursor"
	ChangeCamera       = "camera"
	ChangePopup        = "popup"
)

// Change describes one mutation of a Document.
type Change struct {
	Kind  string `json:"kind"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Image is the metadata of a registered icon.
type Image struct {
	Width  int  `json:"width"`
	Height int  `json:"height"`
	SDF    bool `json:"sdf"`
}

// Options configures a Document.
type Options struct {
	Name string

	// HitTolerance is the pointer radius in screen pixels.
	HitTolerance float64

	// Viewport is the screen size used to fit bounds.
	Width, Height float64

	Center orb.Point
	Zoom   float64
}

// Document is a concurrency-safe rendering surface. Listener callbacks are
// always invoked without the document lock held, so they may call back
// into the document.
type Document struct {
	mu sync.RWMutex

	name      string
	tolerance float64
	width     float64
	height    float64

	sources     map[string]*geojson.FeatureCollection
	sourceOrder []string
	layers      []mapview.Layer
	images      map[string]Image
	imageData   map[string]image.Image
	state       map[string]map[string]map[string]any
	handlers    map[handlerKey][]mapview.Handler
	cursor      string
	camera      Camera
	popup       *Popup
	entered     map[string]bool
	version     uint64

	listeners []func(Change)
}

type handlerKey struct {
	event mapview.EventType
	layer string
}

var _ mapview.Surface = (*Document)(nil)

// New returns an empty document.
func New(opts Options) *Document {
	if opts.HitTolerance <= 0 {
		opts.HitTolerance = 5
	}
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Height <= 0 {
		opts.Height = 768
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 12
	}
	return &Document{
		name:      opts.Name,
		tolerance: opts.HitTolerance,
		width:     opts.Width,
		height:    opts.Height,
		sources:   make(map[string]*geojson.FeatureCollection),
		images:    make(map[string]Image),
		imageData: make(map[string]image.Image),
		state:     make(map[string]map[string]map[string]any),
		handlers:  make(map[handlerKey][]mapview.Handler),
		camera:    Camera{Center: opts.Center, Zoom: opts.Zoom},
		entered:   make(map[string]bool),
	}
}

// OnChange registers fn to be called after every mutation.
func (d *Document) OnChange(fn func(Change)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// notify runs listeners for c. It must be called without d.mu held.
func (d *Document) notify(c Change) {
	d.mu.RLock()
	listeners := slices.Clone(d.listeners)
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn(c)
	}
}

// Version increases on every mutation.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

func (d *Document) HasSource(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.sources[id]
	return ok
}

func (d *Document) AddSource(id string, fc *geojson.FeatureCollection) error {
	d.mu.Lock()
	if _, ok := d.sources[id]; ok {
		d.mu.Unlock()
		return fmt.Errorf("source %q: %w", id, mapview.ErrSourceExists)
	}
	d.sources[id] = fc
	d.sourceOrder = append(d.sourceOrder, id)
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangeSource, ID: id, Value: len(fc.Features)})
	return nil
}

func (d *Document) SetSourceData(id string, fc *geojson.FeatureCollection) error {
	d.mu.Lock()
	if _, ok := d.sources[id]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("source %q: %w", id, mapview.ErrUnknownSource)
	}
	d.sources[id] = fc
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangeSource, ID: id, Value: len(fc.Features)})
	return nil
}

// Source returns the data of a source.
func (d *Document) Source(id string) (*geojson.FeatureCollection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fc, ok := d.sources[id]
	return fc, ok
}

func (d *Document) HasLayer(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.layerIndex(id) >= 0
}

func (d *Document) layerIndex(id string) int {
	return slices.IndexFunc(d.layers, func(l mapview.Layer) bool { return l.ID == id })
}

// AddLayer appends l on top of the existing layers.
func (d *Document) AddLayer(l mapview.Layer) error {
	d.mu.Lock()
	if d.layerIndex(l.ID) >= 0 {
		d.mu.Unlock()
		return fmt.Errorf("layer %q: %w", l.ID, mapview.ErrLayerExists)
	}
	if _, ok := d.sources[l.Source]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("layer %q source %q: %w", l.ID, l.Source, mapview.ErrUnknownSource)
	}
	l.Layout = maps.Clone(l.Layout)
	l.Paint = maps.Clone(l.Paint)
	d.layers = append(d.layers, l)
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangeLayer, ID: l.ID})
	return nil
}

// Layers returns the layers in paint order, bottom first.
func (d *Document) Layers() []mapview.Layer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.layers)
}

// Layer returns a layer by id.
func (d *Document) Layer(id string) (mapview.Layer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.layerIndex(id)
	if i < 0 {
		return mapview.Layer{}, false
	}
	return d.layers[i], true
}

func (d *Document) SetPaintProperty(layerID, name string, value any) error {
	d.mu.Lock()
	i := d.layerIndex(layerID)
	if i < 0 {
		d.mu.Unlock()
		return fmt.Errorf("layer %q: %w", layerID, mapview.ErrUnknownLayer)
	}
	paint := maps.Clone(d.layers[i].Paint)
	if paint == nil {
		paint = make(map[string]any)
	}
	paint[name] = value
	d.layers[i].Paint = paint
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangePaint, ID: layerID, Name: name, Value: value})
	return nil
}

func (d *Document) AddImage(name string, img image.Image, opts mapview.ImageOptions) error {
	b := img.Bounds()
	d.mu.Lock()
	if _, ok := d.images[name]; ok {
		d.mu.Unlock()
		return fmt.Errorf("image %q: %w", name, mapview.ErrImageExists)
	}
	d.images[name] = Image{Width: b.Dx(), Height: b.Dy(), SDF: opts.SDF}
	d.imageData[name] = img
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangeImage, ID: name})
	return nil
}

func (d *Document) HasImage(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.images[name]
	return ok
}

// Image returns a registered icon.
func (d *Document) Image(name string) (image.Image, Image, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	img, ok := d.imageData[name]
	return img, d.images[name], ok
}

func (d *Document) SetFeatureState(source string, id any, state map[string]any) {
	key := fmt.Sprint(id)
	d.mu.Lock()
	if d.state[source] == nil {
		d.state[source] = make(map[string]map[string]any)
	}
	if d.state[source][key] == nil {
		d.state[source][key] = make(map[string]any)
	}
	maps.Copy(d.state[source][key], state)
	d.mu.Unlock()

	d.notify(Change{Kind: ChangeFeatureState, ID: source, Name: key, Value: maps.Clone(state)})
}

// FeatureState returns the transient state of a feature.
func (d *Document) FeatureState(source string, id any) map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.state[source][fmt.Sprint(id)])
}

func (d *Document) SetCursor(cursor string) {
	d.mu.Lock()
	changed := d.cursor != cursor
	d.cursor = cursor
	d.mu.Unlock()

	if changed {
		d.notify(Change{Kind: ChangeCursor, Value: cursor})
	}
}

// Cursor returns the current pointer cursor.
func (d *Document) Cursor() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor
}

func (d *Document) On(t mapview.EventType, layerID string, h mapview.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := handlerKey{event: t, layer: layerID}
	d.handlers[k] = append(d.handlers[k], h)
}

// Listeners returns how many handlers are attached for an event on a layer.
func (d *Document) Listeners(t mapview.EventType, layerID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[handlerKey{event: t, layer: layerID}])
}
