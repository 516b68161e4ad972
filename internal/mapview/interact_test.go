package mapview

import (
	"context"
	"slices"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var here = orb.Point{2.35, 48.85}

func click(s *fakeSurface) {
	s.fire(Event{Type: EventClick, LngLat: here})
}

// rendered mimics what a renderer hands back: a trimmed copy.
func rendered(f *geojson.Feature, keys ...string) *geojson.Feature {
	out := geojson.NewFeature(f.Geometry)
	out.ID = f.ID
	for _, k := range keys {
		out.Properties[k] = f.Properties[k]
	}
	return out
}

func TestClickPriority(t *testing.T) {
	tips := &stubTooltips{}
	c, s, _ := newTestComposer(t, Options{Tooltips: tips})

	hazard := point("hazard", geojson.Properties{PropName: "pothole"})
	ctr := counter("42", 10)
	if err := c.Plot(context.Background(), fc(hazard, ctr)); err != nil {
		t.Fatal(err)
	}
	s.hits[LayerHazards] = []*geojson.Feature{rendered(hazard, PropName)}
	s.hits[LayerCounters] = []*geojson.Feature{rendered(ctr, PropIDPdc)}

	click(s)

	if len(s.popups) != 1 {
		t.Fatalf("popups=%d, want 1", len(s.popups))
	}
	p := s.popups[0]
	if p.opts.ContainerID != "hazards-tooltip-content" || p.opts.MinHeight != "50px" {
		t.Errorf("popup opts=%+v", p.opts)
	}
	if !p.opts.CloseOnClick || p.opts.CloseButton {
		t.Errorf("popup should close on click without a button: %+v", p.opts)
	}
	if p.content != "<p>hazard</p>" {
		t.Errorf("content=%q", p.content)
	}
	if len(tips.got) != 1 || tips.got[0].Kind != TooltipHazard {
		t.Fatalf("rendered tooltips=%+v", tips.got)
	}
}

func TestClickLineSection(t *testing.T) {
	tips := &stubTooltips{}
	c, s, _ := newTestComposer(t, Options{Tooltips: tips})

	a := section(1, StatusDone, geojson.Properties{PropGroup: 7, PropName: "quai"})
	b := section(4, StatusWIP, geojson.Properties{PropGroup: 7, PropName: "pont"})
	other := section(2, StatusDone, geojson.Properties{PropGroup: 8, PropName: "rue"})
	if err := c.Plot(context.Background(), fc(a, b, other)); err != nil {
		t.Fatal(err)
	}
	s.hits["done-sections"] = []*geojson.Feature{rendered(a, PropLine, PropName, PropStatus)}

	click(s)

	if len(tips.got) != 1 {
		t.Fatalf("rendered tooltips=%d, want 1", len(tips.got))
	}
	got := tips.got[0]
	if got.Kind != TooltipLine || got.Feature.Properties.MustString(PropName, "") != "quai" {
		t.Fatalf("tooltip=%+v", got)
	}
	lines := slices.Clone(got.Lines)
	slices.Sort(lines)
	if !slices.Equal(lines, []int{1, 4}) {
		t.Errorf("lines=%v, want {1,4}", got.Lines)
	}
	if s.popups[0].opts.MinHeight != "313px" {
		t.Errorf("min-height=%q", s.popups[0].opts.MinHeight)
	}
}

func TestClickCounterNeighbor(t *testing.T) {
	tips := &stubTooltips{}
	c, s, _ := newTestComposer(t, Options{Tooltips: tips})

	north := counter("100", 5)
	north.Properties[PropNeighbor] = 200.0
	south := counter("200", 8)
	if err := c.Plot(context.Background(), fc(north, south)); err != nil {
		t.Fatal(err)
	}
	s.hits[LayerCounters] = []*geojson.Feature{rendered(north, PropIDPdc)}

	click(s)

	if len(tips.got) != 1 {
		t.Fatalf("rendered tooltips=%d, want 1", len(tips.got))
	}
	n := tips.got[0].Neighbor
	if n == nil {
		t.Fatal("neighbor not resolved")
	}
	if id, _ := IDPdcOf(n); id != "200" {
		t.Errorf("neighbor=%q, want 200", id)
	}
}

func TestClickNoMatch(t *testing.T) {
	tips := &stubTooltips{}
	c, s, _ := newTestComposer(t, Options{Tooltips: tips})

	if err := c.Plot(context.Background(), fc(point("hazard", geojson.Properties{PropName: "known"}))); err != nil {
		t.Fatal(err)
	}

	click(s)
	if len(s.popups) != 0 {
		t.Fatal("popup opened on empty space")
	}

	// A rendered shape whose source feature is gone.
	s.hits[LayerHazards] = []*geojson.Feature{point("hazard", geojson.Properties{PropName: "ghost"})}
	click(s)
	if len(s.popups) != 0 || len(tips.got) != 0 {
		t.Fatal("popup opened for an unresolved feature")
	}
}

func TestClickMissingLayer(t *testing.T) {
	c, s, _ := newTestComposer(t, Options{})
	if err := c.Plot(context.Background(), fc(section(1, StatusDone, nil))); err != nil {
		t.Fatal(err)
	}

	// Queried before the layer exists: a miss, not a failure.
	s.hits[LayerViewpoints] = []*geojson.Feature{point("viewpoint", nil)}
	if group, _, ok := c.Resolve(Event{Type: EventClick, LngLat: here}); ok || group != "" {
		t.Fatalf("resolved %q for a layer that does not exist", group)
	}
}

func TestHoverTransitions(t *testing.T) {
	c, s, _ := newTestComposer(t, Options{})
	if err := c.Plot(context.Background(), fc(section(1, StatusDone, nil), section(2, StatusDone, nil))); err != nil {
		t.Fatal(err)
	}
	all := s.source(SourceAllSections).Features
	move := Event{Type: EventMouseMove, LngLat: here, Layer: LayerHighlight}

	s.hits[LayerHighlight] = []*geojson.Feature{all[0]}
	s.fire(move)
	if id, ok := c.HoveredID(); !ok || id != all[0].ID {
		t.Fatalf("hovered=%v,%v, want %v", id, ok, all[0].ID)
	}
	if s.cursor != "pointer" {
		t.Errorf("cursor=%q, want pointer", s.cursor)
	}

	s.hits[LayerHighlight] = []*geojson.Feature{all[1]}
	s.fire(move)
	if got := s.hovered(); len(got) != 1 || got[0] != all[1].ID {
		t.Fatalf("hover state=%v, want only %v", got, all[1].ID)
	}

	s.fire(Event{Type: EventMouseLeave, LngLat: here, Layer: LayerHighlight})
	if _, ok := c.HoveredID(); ok {
		t.Fatal("still hovering after leave")
	}
	if got := s.hovered(); len(got) != 0 {
		t.Fatalf("hover state=%v after leave", got)
	}
	if s.cursor != "" {
		t.Errorf("cursor=%q after leave", s.cursor)
	}
}

func TestHoverIsPerComposer(t *testing.T) {
	a, sa, _ := newTestComposer(t, Options{})
	b, _, _ := newTestComposer(t, Options{})
	in := fc(section(1, StatusDone, nil))
	for _, c := range []*Composer{a, b} {
		if err := c.Plot(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}

	sa.hits[LayerHighlight] = sa.source(SourceAllSections).Features
	sa.fire(Event{Type: EventMouseMove, LngLat: here, Layer: LayerHighlight})

	if _, ok := a.HoveredID(); !ok {
		t.Fatal("first map not hovering")
	}
	if _, ok := b.HoveredID(); ok {
		t.Fatal("hover leaked into the second map")
	}
}

func TestLineTooltipColorsFollowPlot(t *testing.T) {
	c, s, _ := newTestComposer(t, Options{Classifier: Classifier{Colors: Palette{"#aaaaaa"}}})
	a := section(1, StatusDone, geojson.Properties{PropName: "quai"})
	in := fc(a)
	if err := c.Plot(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	s.hits["done-sections"] = []*geojson.Feature{rendered(a, PropLine, PropName, PropStatus)}

	tooltipColor := func() string {
		t.Helper()
		_, tip, ok := c.Resolve(Event{Type: EventClick, LngLat: here})
		if !ok || tip.Colors == nil {
			t.Fatalf("tooltip=%+v ok=%v", tip, ok)
		}
		return tip.Colors.LineColor(1)
	}
	mapColor := func() string {
		return s.source("done-sections").Features[0].Properties.MustString(PropColor, "")
	}

	if tc, mc := tooltipColor(), mapColor(); tc != "#aaaaaa" || tc != mc {
		t.Fatalf("tooltip=%s map=%s, want both #aaaaaa", tc, mc)
	}

	if err := c.Restyle(Options{Classifier: Classifier{Colors: Palette{"#000000"}}}); err != nil {
		t.Fatal(err)
	}
	if tc, mc := tooltipColor(), mapColor(); tc != mc {
		t.Fatalf("tooltip=%s map=%s before replot", tc, mc)
	}

	if err := c.Plot(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if tc, mc := tooltipColor(), mapColor(); tc != "#000000" || tc != mc {
		t.Fatalf("tooltip=%s map=%s, want both #000000", tc, mc)
	}
}

func TestPlotClearsHover(t *testing.T) {
	c, s, _ := newTestComposer(t, Options{})
	first := section(1, StatusDone, geojson.Properties{PropName: "quai"})
	second := section(2, StatusDone, geojson.Properties{PropName: "pont"})
	if err := c.Plot(context.Background(), fc(first, second)); err != nil {
		t.Fatal(err)
	}
	all := s.source(SourceAllSections).Features
	s.hits[LayerHighlight] = []*geojson.Feature{all[1]}
	s.fire(Event{Type: EventMouseMove, LngLat: here, Layer: LayerHighlight})
	if got := s.hovered(); len(got) != 1 {
		t.Fatalf("hover state=%v, want one section", got)
	}

	// Only the hovered section is left, and it takes over id 0.
	if err := c.Plot(context.Background(), fc(second)); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.HoveredID(); ok {
		t.Fatal("still hovering after replot")
	}
	if got := s.hovered(); len(got) != 0 {
		t.Fatalf("hover state=%v after replot, want none", got)
	}
}
