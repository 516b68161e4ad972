package mapview

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

// TooltipKind names the tooltip view to mount.
type TooltipKind string

const (
	TooltipHazard    TooltipKind = "hazard"
	TooltipViewpoint TooltipKind = "viewpoint"
	TooltipLine      TooltipKind = "line"
	TooltipCounter   TooltipKind = "counter"
)

// Tooltip is a resolved click: the source feature plus the extra data its
// view needs.
type Tooltip struct {
	Kind    TooltipKind
	Feature *geojson.Feature

	// Lines holds every route sharing the section's group (line tooltips).
	Lines []int

	// Neighbor is the paired counter, if any (counter tooltips).
	Neighbor *geojson.Feature

	// Colors is the color assigner of the plot the feature comes from.
	Colors ColorAssigner
}

// TooltipRenderer renders a tooltip view to HTML.
type TooltipRenderer interface {
	RenderTooltip(ctx context.Context, t Tooltip) (string, error)
}

// LoadingPlaceholder is shown in a popup until its tooltip is rendered.
const LoadingPlaceholder = "Chargement..."

// clickGroup is one candidate in the click priority list.
type clickGroup struct {
	id        string
	minHeight string
	hit       func(ev Event) (*geojson.Feature, bool)
	resolve   func(rendered *geojson.Feature) (Tooltip, bool)
}

// Click group ids, in priority order.
const (
	GroupHazards      = "hazards"
	GroupViewpoints   = "viewpoints"
	GroupLineSections = "linestring"
	GroupCounters     = "counters"
)

// clickGroups lists the clickable groups. The first group with a feature
// under the pointer wins, so hazards shadow viewpoints, which shadow
// sections, which shadow counters.
func (c *Composer) clickGroups(idx *Index, colors ColorAssigner) []clickGroup {
	return []clickGroup{
		{
			id:        GroupHazards,
			minHeight: "50px",
			hit:       c.hitLayer(LayerHazards),
			resolve: func(r *geojson.Feature) (Tooltip, bool) {
				f, ok := idx.Hazard(r)
				return Tooltip{Kind: TooltipHazard, Feature: f}, ok
			},
		},
		{
			id:        GroupViewpoints,
			minHeight: "50px",
			hit:       c.hitLayer(LayerViewpoints),
			resolve: func(r *geojson.Feature) (Tooltip, bool) {
				f, ok := idx.Viewpoint(r)
				return Tooltip{Kind: TooltipViewpoint, Feature: f}, ok
			},
		},
		{
			id:        GroupLineSections,
			minHeight: "313px",
			hit: func(ev Event) (*geojson.Feature, bool) {
				found := c.surface.QueryFeatures(ev.LngLat, Query{Filter: func(f *geojson.Feature) bool {
					return IsLineString(f) && HasStatus(f)
				}})
				if len(found) == 0 {
					return nil, false
				}
				return found[0], true
			},
			resolve: func(r *geojson.Feature) (Tooltip, bool) {
				f, ok := idx.Section(r)
				if !ok {
					return Tooltip{}, false
				}
				return Tooltip{Kind: TooltipLine, Feature: f, Lines: idx.LinesOf(f), Colors: colors}, true
			},
		},
		{
			id:        GroupCounters,
			minHeight: "123px",
			hit:       c.hitLayer(LayerCounters),
			resolve: func(r *geojson.Feature) (Tooltip, bool) {
				f, ok := idx.Counter(r)
				if !ok {
					return Tooltip{}, false
				}
				t := Tooltip{Kind: TooltipCounter, Feature: f}
				if key, ok := NeighborOf(f); ok {
					if n, ok := idx.CounterByID(key); ok {
						t.Neighbor = n
					}
				}
				return t, true
			},
		},
	}
}

// hitLayer checks one layer, treating a layer that does not exist yet as a
// miss.
func (c *Composer) hitLayer(layer string) func(Event) (*geojson.Feature, bool) {
	return func(ev Event) (*geojson.Feature, bool) {
		if !c.surface.HasLayer(layer) {
			return nil, false
		}
		found := c.surface.QueryFeatures(ev.LngLat, Query{Layers: []string{layer}})
		if len(found) == 0 {
			return nil, false
		}
		return found[0], true
	}
}

// Resolve finds the tooltip for a click without opening a popup. The
// returned group id is empty when nothing clickable is under the pointer.
func (c *Composer) Resolve(ev Event) (string, Tooltip, bool) {
	g, t, ok := c.resolve(ev)
	return g.id, t, ok
}

func (c *Composer) resolve(ev Event) (clickGroup, Tooltip, bool) {
	c.mu.Lock()
	idx, colors := c.index, c.colors
	c.mu.Unlock()
	if idx == nil {
		return clickGroup{}, Tooltip{}, false
	}

	for _, g := range c.clickGroups(idx, colors) {
		rendered, ok := g.hit(ev)
		if !ok {
			continue
		}
		t, ok := g.resolve(rendered)
		if !ok {
			c.logger.Error("Clicked feature has no source feature", "group", g.id, "properties", rendered.Properties)
			return g, Tooltip{}, false
		}
		return g, t, true
	}
	return clickGroup{}, Tooltip{}, false
}

// HandleClick resolves a click and, on a match, opens a popup at the click
// position and mounts the tooltip into it. It reports whether a popup was
// opened.
func (c *Composer) HandleClick(ctx context.Context, ev Event) bool {
	g, t, ok := c.resolve(ev)
	if !ok {
		return false
	}

	popup := c.surface.OpenPopup(ev.LngLat, PopupOptions{
		ContainerID:  g.id + "-tooltip-content",
		MinHeight:    g.minHeight,
		Placeholder:  LoadingPlaceholder,
		CloseOnClick: true,
	})
	c.logger.Debug("Tooltip opened", "group", g.id, "kind", t.Kind)

	if c.tooltips == nil {
		return true
	}
	html, err := c.tooltips.RenderTooltip(ctx, t)
	if err != nil {
		c.logger.Error("Tooltip render failed", "group", g.id, "error", err)
		return true
	}
	popup.SetContent(html)
	return true
}

// HoveredID returns the id of the section currently hovered.
func (c *Composer) HoveredID() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hovered, c.hovering
}

// onHighlightMove moves the hover state to the section under the pointer.
func (c *Composer) onHighlightMove(ev Event) {
	c.surface.SetCursor("pointer")
	found := c.surface.QueryFeatures(ev.LngLat, Query{Layers: []string{LayerHighlight}})
	if len(found) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hovering {
		c.surface.SetFeatureState(SourceAllSections, c.hovered, map[string]any{"hover": false})
		c.hovering = false
	}
	if id := found[0].ID; id != nil {
		c.hovered, c.hovering = id, true
		c.surface.SetFeatureState(SourceAllSections, id, map[string]any{"hover": true})
	}
}

// onHighlightLeave clears the hover state.
func (c *Composer) onHighlightLeave(Event) {
	c.surface.SetCursor("")
	c.clearHover()
}

func (c *Composer) clearHover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hovering {
		c.surface.SetFeatureState(SourceAllSections, c.hovered, map[string]any{"hover": false})
	}
	c.hovered, c.hovering = nil, false
}

func (c *Composer) pointerCursor(layer string) {
	c.surface.On(EventMouseEnter, layer, func(Event) { c.surface.SetCursor("pointer") })
	c.surface.On(EventMouseLeave, layer, func(Event) { c.surface.SetCursor("") })
}
