package mapview

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/paulmach/orb/geojson"
)

// ErrClosed is returned when plotting on a closed composer.
var ErrClosed = errors.New("composer closed")

// Options configures a Composer. The zero value is usable.
type Options struct {
	Classifier Classifier

	// Categories is the rendering table. Defaults to DefaultCategories.
	Categories []Category

	// Overrides replace style entries of built-in layers, keyed by layer id.
	Overrides map[string]LayerOverride

	Tooltips TooltipRenderer

	// Clock drives the dash animation. Defaults to a 16ms TickerClock.
	Clock FrameClock

	Icons     IconLoader
	IconSpecs []IconSpec

	// TopCounters is how many counters get the emphasised style.
	TopCounters int

	Logger *slog.Logger
}

// Composer plots feature collections onto a Surface and handles pointer
// interaction for the layers it created. Sources are created once and then
// only have their data replaced, so repeated plots never duplicate layers.
type Composer struct {
	surface    Surface
	classifier Classifier
	categories []Category
	overrides  map[string]LayerOverride
	tooltips   TooltipRenderer
	clock      FrameClock
	icons      IconLoader
	iconSpecs  []IconSpec
	top        int
	logger     *slog.Logger

	// plotMu serializes Setup, Plot and Close.
	plotMu     sync.Mutex
	iconsReady bool
	mapWired   bool
	closed     bool
	colorKeys  map[string][]string
	animators  map[string]*DashAnimator

	// mu guards interaction state read by event handlers.
	mu       sync.Mutex
	index    *Index
	colors   ColorAssigner
	hovered  any
	hovering bool
}

// NewComposer returns a composer drawing on s.
func NewComposer(s Surface, opts Options) *Composer {
	c := &Composer{
		surface:    s,
		classifier: opts.Classifier,
		categories: opts.Categories,
		overrides:  opts.Overrides,
		tooltips:   opts.Tooltips,
		clock:      opts.Clock,
		icons:      opts.Icons,
		iconSpecs:  opts.IconSpecs,
		top:        opts.TopCounters,
		logger:     opts.Logger,
		colorKeys:  make(map[string][]string),
		animators:  make(map[string]*DashAnimator),
	}
	if c.categories == nil {
		c.categories = DefaultCategories()
	}
	if c.clock == nil {
		c.clock = NewTickerClock(0)
	}
	if c.iconSpecs == nil {
		c.iconSpecs = DefaultIcons
	}
	if c.top <= 0 {
		c.top = DefaultTopCounters
	}
	if c.logger == nil {
		c.logger = slog.With("svc", "mapview")
	}
	return c
}

// Setup registers the map icons. It runs once; Plot calls it so icons are
// always in place before a layer that uses them is added.
func (c *Composer) Setup(ctx context.Context) error {
	c.plotMu.Lock()
	defer c.plotMu.Unlock()
	return c.setupLocked(ctx)
}

func (c *Composer) setupLocked(ctx context.Context) error {
	if c.iconsReady {
		return nil
	}
	if err := LoadIcons(ctx, c.surface, c.icons, c.iconSpecs, c.logger); err != nil {
		return fmt.Errorf("loading icons: %w", err)
	}
	c.iconsReady = true
	return nil
}

// Plot classifies fc and brings every category source up to date, creating
// sources, layers and listeners the first time they are needed.
func (c *Composer) Plot(ctx context.Context, fc *geojson.FeatureCollection) error {
	c.plotMu.Lock()
	defer c.plotMu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.setupLocked(ctx); err != nil {
		return err
	}

	// Ids are positional, so the hovered id may name another section now.
	c.clearHover()

	b := c.classifier.Classify(fc)
	b.Counters = RankCounters(b.Counters, c.top)
	for i, f := range b.All {
		f.ID = i
	}

	for _, cat := range c.categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.upsertCategory(cat, b); err != nil {
			return fmt.Errorf("plotting %s: %w", cat.Name, err)
		}
	}

	if !c.mapWired {
		c.surface.On(EventClick, "", func(ev Event) {
			c.HandleClick(context.Background(), ev)
		})
		c.mapWired = true
	}

	idx := NewIndex(b)
	c.mu.Lock()
	c.index, c.colors = idx, c.classifier.colors()
	c.mu.Unlock()

	for _, cat := range c.categories {
		if cat.Animate != "" && c.surface.HasLayer(cat.Animate) {
			c.animator(cat.Animate).Start()
		}
	}

	c.logger.Debug("Plotted features",
		"sections", len(b.All),
		"counters", len(b.Counters),
		"hazards", len(b.Hazards),
		"viewpoints", len(b.Viewpoints))
	return nil
}

// Restyle replaces the classifier, the number of top counters and the layer
// overrides. Paint overrides that were added or removed are applied to the
// layers already on the surface; colors and paint order change on the next
// Plot.
func (c *Composer) Restyle(opts Options) error {
	c.plotMu.Lock()
	defer c.plotMu.Unlock()
	if c.closed {
		return ErrClosed
	}

	previous := c.overrides
	c.classifier = opts.Classifier
	c.overrides = opts.Overrides
	c.top = cmp.Or(max(opts.TopCounters, 0), DefaultTopCounters)

	for _, cat := range c.categories {
		keys := []string{""}
		if cat.PerColor {
			keys = c.colorKeys[cat.Name]
		}
		for _, key := range keys {
			for _, l := range cat.Layers(key) {
				if err := c.repaint(l, previous[l.ID]); err != nil {
					return fmt.Errorf("restyling %s: %w", l.ID, err)
				}
			}
		}
	}
	return nil
}

// repaint brings the paint of an existing layer in line with its current
// override, given the override it was painted with.
func (c *Composer) repaint(base Layer, previous LayerOverride) error {
	if !c.surface.HasLayer(base.ID) {
		return nil
	}
	current := c.overrides[base.ID]
	styled := base.With(current)
	for _, name := range slices.Sorted(maps.Keys(previous.Paint)) {
		if _, ok := current.Paint[name]; ok {
			continue
		}
		if v, ok := styled.Paint[name]; ok {
			if err := c.surface.SetPaintProperty(base.ID, name, v); err != nil {
				return err
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(current.Paint)) {
		if err := c.surface.SetPaintProperty(base.ID, name, current.Paint[name]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composer) animator(layer string) *DashAnimator {
	a, ok := c.animators[layer]
	if !ok {
		a = NewDashAnimator(c.clock, c.surface, layer, c.logger)
		c.animators[layer] = a
	}
	return a
}

// Animating reports whether the dash animation on layer is running.
func (c *Composer) Animating(layer string) bool {
	c.plotMu.Lock()
	defer c.plotMu.Unlock()
	a, ok := c.animators[layer]
	return ok && a.Running()
}

func (c *Composer) upsertCategory(cat Category, b *Buckets) error {
	features := cat.Select(b)
	if !cat.PerColor {
		return c.upsertSource(cat, "", features)
	}

	order, groups := groupByColor(features)
	for _, key := range c.colorKeys[cat.Name] {
		if _, ok := groups[key]; ok {
			continue
		}
		if err := c.surface.SetSourceData(cat.SourceID(key), collection(nil)); err != nil {
			return err
		}
	}
	for _, key := range order {
		if err := c.upsertSource(cat, key, groups[key]); err != nil {
			return err
		}
		if !slices.Contains(c.colorKeys[cat.Name], key) {
			c.colorKeys[cat.Name] = append(c.colorKeys[cat.Name], key)
		}
	}
	return nil
}

func (c *Composer) upsertSource(cat Category, key string, features []*geojson.Feature) error {
	id := cat.SourceID(key)
	exists := c.surface.HasSource(id)
	if len(features) == 0 && !exists {
		return nil
	}

	fc := collection(features)
	if exists {
		return c.surface.SetSourceData(id, fc)
	}
	if err := c.surface.AddSource(id, fc); err != nil {
		return err
	}
	for _, l := range cat.Layers(key) {
		if o, ok := c.overrides[l.ID]; ok {
			l = l.With(o)
		}
		if err := c.surface.AddLayer(l); err != nil {
			return err
		}
	}
	c.wire(cat, key)
	return nil
}

// wire attaches the listeners of a freshly created source's layers.
func (c *Composer) wire(cat Category, key string) {
	if cat.Cursor != nil {
		for _, layer := range cat.Cursor(key) {
			c.pointerCursor(layer)
		}
	}
	if cat.Hover {
		c.surface.On(EventMouseMove, LayerHighlight, c.onHighlightMove)
		c.surface.On(EventMouseLeave, LayerHighlight, c.onHighlightLeave)
	}
}

// Close stops every animation. Plotting afterwards fails with ErrClosed.
func (c *Composer) Close() {
	c.plotMu.Lock()
	defer c.plotMu.Unlock()
	for _, a := range c.animators {
		a.Stop()
	}
	c.closed = true
}
