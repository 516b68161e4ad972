package mapview

import (
	"context"
	"errors"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// fakeSurface records every mutation. QueryFeatures answers from hits,
// which tests fill per layer.
type fakeSurface struct {
	mu sync.Mutex

	sources   map[string]*geojson.FeatureCollection
	layers    []Layer
	images    map[string]ImageOptions
	imageSeq  []string
	paint     map[string]map[string]any
	state     map[any]map[string]any
	handlers  map[string][]Handler
	cursor    string
	mutations int

	hits map[string][]*geojson.Feature

	// failImage makes AddImage fail that many times per image name.
	failImage map[string]int

	flyTo   *orb.Point
	fitted  *orb.Bound
	padding float64
	popups  []*fakePopup
}

type fakePopup struct {
	at      orb.Point
	opts    PopupOptions
	content string
}

func (p *fakePopup) SetContent(html string) { p.content = html }

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		sources:  make(map[string]*geojson.FeatureCollection),
		images:   make(map[string]ImageOptions),
		paint:    make(map[string]map[string]any),
		state:    make(map[any]map[string]any),
		handlers: make(map[string][]Handler),
		hits:     make(map[string][]*geojson.Feature),
	}
}

func handlerKey(t EventType, layer string) string { return string(t) + "/" + layer }

func (s *fakeSurface) HasSource(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sources[id]
	return ok
}

func (s *fakeSurface) AddSource(id string, fc *geojson.FeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; ok {
		return ErrSourceExists
	}
	s.sources[id] = fc
	s.mutations++
	return nil
}

func (s *fakeSurface) SetSourceData(id string, fc *geojson.FeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return ErrUnknownSource
	}
	s.sources[id] = fc
	s.mutations++
	return nil
}

func (s *fakeSurface) HasLayer(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layerLocked(id) >= 0
}

func (s *fakeSurface) layerLocked(id string) int {
	return slices.IndexFunc(s.layers, func(l Layer) bool { return l.ID == id })
}

func (s *fakeSurface) AddLayer(l Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layerLocked(l.ID) >= 0 {
		return ErrLayerExists
	}
	if _, ok := s.sources[l.Source]; !ok {
		return ErrUnknownSource
	}
	s.layers = append(s.layers, l)
	s.mutations++
	return nil
}

func (s *fakeSurface) SetPaintProperty(layerID, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layerLocked(layerID) < 0 {
		return ErrUnknownLayer
	}
	if s.paint[layerID] == nil {
		s.paint[layerID] = make(map[string]any)
	}
	s.paint[layerID][name] = value
	s.mutations++
	return nil
}

func (s *fakeSurface) AddImage(name string, _ image.Image, opts ImageOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[name]; ok {
		return ErrImageExists
	}
	if s.failImage[name] > 0 {
		s.failImage[name]--
		return errors.New("image upload failed")
	}
	s.images[name] = opts
	s.imageSeq = append(s.imageSeq, name)
	return nil
}

func (s *fakeSurface) HasImage(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.images[name]
	return ok
}

func (s *fakeSurface) QueryFeatures(_ orb.Point, q Query) []*geojson.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*geojson.Feature
	for i := len(s.layers) - 1; i >= 0; i-- {
		id := s.layers[i].ID
		if len(q.Layers) > 0 && !slices.Contains(q.Layers, id) {
			continue
		}
		for _, f := range s.hits[id] {
			if q.Filter == nil || q.Filter(f) {
				out = append(out, f)
			}
		}
	}
	return out
}

func (s *fakeSurface) On(t EventType, layerID string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := handlerKey(t, layerID)
	s.handlers[k] = append(s.handlers[k], h)
}

func (s *fakeSurface) fire(ev Event) {
	s.mu.Lock()
	hs := slices.Clone(s.handlers[handlerKey(ev.Type, ev.Layer)])
	s.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (s *fakeSurface) listeners(t EventType, layer string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers[handlerKey(t, layer)])
}

func (s *fakeSurface) SetFeatureState(_ string, id any, state map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state[id] == nil {
		s.state[id] = make(map[string]any)
	}
	for k, v := range state {
		s.state[id][k] = v
	}
}

func (s *fakeSurface) hovered() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []any
	for id, st := range s.state {
		if st["hover"] == true {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *fakeSurface) SetCursor(cursor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
}

func (s *fakeSurface) FitBounds(b orb.Bound, padding float64) {
	s.fitted, s.padding = &b, padding
}

func (s *fakeSurface) FlyTo(center orb.Point) { s.flyTo = &center }

func (s *fakeSurface) OpenPopup(at orb.Point, opts PopupOptions) Popup {
	p := &fakePopup{at: at, opts: opts, content: opts.Placeholder}
	s.popups = append(s.popups, p)
	return p
}

func (s *fakeSurface) layerIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.layers))
	for i, l := range s.layers {
		ids[i] = l.ID
	}
	return ids
}

func (s *fakeSurface) source(id string) *geojson.FeatureCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[id]
}

// manualClock fires frames only when advanced.
type manualClock struct {
	mu      sync.Mutex
	now     time.Duration
	next    FrameID
	pending map[FrameID]func(time.Duration)
}

func newManualClock() *manualClock {
	return &manualClock{pending: make(map[FrameID]func(time.Duration))}
}

func (c *manualClock) RequestFrame(fn func(time.Duration)) FrameID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.pending[c.next] = fn
	return c.next
}

func (c *manualClock) CancelFrame(id FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Advance moves time forward by d and runs the frames scheduled so far.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	now := c.now
	fns := make([]func(time.Duration), 0, len(c.pending))
	for id, fn := range c.pending {
		fns = append(fns, fn)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(now)
	}
}

func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// stubIcons serves a blank image for every file except the failing ones.
type stubIcons struct {
	fail map[string]bool
}

func (l stubIcons) LoadIcon(_ context.Context, file string) (image.Image, error) {
	if l.fail[file] {
		return nil, errors.New("no canvas")
	}
	return image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil
}

type stubTooltips struct {
	got []Tooltip
}

func (r *stubTooltips) RenderTooltip(_ context.Context, t Tooltip) (string, error) {
	r.got = append(r.got, t)
	return "<p>" + string(t.Kind) + "</p>", nil
}

func section(line int, status Status, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(orb.LineString{{2.35, 48.85}, {2.36, 48.86}})
	f.Properties[PropLine] = line
	f.Properties[PropStatus] = string(status)
	f.Properties[PropName] = "section"
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func point(kind string, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{2.35, 48.85})
	f.Properties[PropType] = kind
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func counter(id string, counts ...float64) *geojson.Feature {
	series := make([]Count, len(counts))
	for i, c := range counts {
		series[i] = Count{Timestamp: "2024-01-01T00:00:00Z", Count: c}
	}
	return point("counter", geojson.Properties{PropIDPdc: id, PropName: id, PropCounts: series})
}

func fc(features ...*geojson.Feature) *geojson.FeatureCollection {
	return collection(features)
}
