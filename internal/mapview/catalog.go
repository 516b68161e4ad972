package mapview

import (
	"github.com/paulmach/orb/geojson"
)

// Layer and source identifiers that other components refer to.
const (
	SourceAllSections = "all-sections"
	LayerHighlight    = "highlight"
	LayerWIP          = "wip-sections"
	LayerCounters     = "counters"
	LayerHazards      = "hazards"
	LayerViewpoints   = "viewpoints"
	postponedSource   = "postponed-sections"
	labelFont         = "Open Sans Regular"
)

// Category is one row of the rendering table: which features it takes, the
// source they go to and the layers created the first time that source
// appears.
type Category struct {
	Name string

	// Source is the source id, or the id prefix when PerColor is set.
	Source string

	// PerColor splits the bucket by feature color into one source per color.
	PerColor bool

	Select func(*Buckets) []*geojson.Feature

	// Layers builds the style for a source. key is the color for PerColor
	// categories and empty otherwise.
	Layers func(key string) []Layer

	// Cursor lists layers that show a pointer cursor while hovered.
	Cursor func(key string) []string

	// Hover wires feature-state hover tracking on the highlight layer.
	Hover bool

	// Animate names a layer whose dash pattern is animated.
	Animate string
}

// SourceID returns the source id for a bucket key.
func (c Category) SourceID(key string) string {
	if c.PerColor {
		return c.Source + "-" + key
	}
	return c.Source
}

func byStatus(s Status) func(*Buckets) []*geojson.Feature {
	return func(b *Buckets) []*geojson.Feature { return b.Status(s) }
}

func colorExpr() []any { return []any{"get", "color"} }

func cursorOn(ids ...string) func(string) []string {
	return func(string) []string { return ids }
}

func sectionLine(id, source string, paint map[string]any) Layer {
	base := map[string]any{
		"line-width": 4,
		"line-color": colorExpr(),
	}
	for k, v := range paint {
		base[k] = v
	}
	return Layer{ID: id, Type: LayerLine, Source: source, Paint: base}
}

func lineLabel(id, source string, text any, spacing float64, halo float64) Layer {
	return Layer{
		ID:     id,
		Type:   LayerSymbol,
		Source: source,
		Paint: map[string]any{
			"text-halo-color": "#fff",
			"text-halo-width": halo,
		},
		Layout: map[string]any{
			"symbol-placement": "line",
			"symbol-spacing":   spacing,
			"text-font":        []any{labelFont},
			"text-field":       text,
			"text-size":        14,
		},
	}
}

// DefaultCategories is the rendering table in paint order: earlier rows sit
// under later ones.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:   "all",
			Source: SourceAllSections,
			Select: func(b *Buckets) []*geojson.Feature { return b.All },
			Layers: func(string) []Layer {
				return []Layer{
					{
						ID: LayerHighlight, Type: LayerLine, Source: SourceAllSections,
						Layout: map[string]any{"line-cap": "round"},
						Paint: map[string]any{
							"line-gap-width": 5,
							"line-width":     4,
							"line-color": []any{"case",
								[]any{"boolean", []any{"feature-state", "hover"}, false},
								"#9ca3af", "#FFFFFF"},
						},
					},
					{
						ID: "contour", Type: LayerLine, Source: SourceAllSections,
						Layout: map[string]any{"line-cap": "round"},
						Paint: map[string]any{
							"line-gap-width": 4,
							"line-width":     1,
							"line-color":     "#6b7280",
						},
					},
					{
						ID: "underline", Type: LayerLine, Source: SourceAllSections,
						Paint: map[string]any{
							"line-width": 4,
							"line-color": "#ffffff",
						},
					},
				}
			},
			Hover: true,
		},
		{
			Name:   "unsatisfactory",
			Source: "unsatisfactory-sections",
			Select: func(b *Buckets) []*geojson.Feature { return b.Unsatisfactory },
			Layers: func(string) []Layer {
				return []Layer{{
					ID: "unsatisfactory-sections", Type: LayerLine, Source: "unsatisfactory-sections",
					MinZoom: 14,
					Paint: map[string]any{
						"line-gap-width": 5,
						"line-width":     4,
						"line-color":     "#c84271",
						"line-dasharray": []any{0.8, 0.8},
					},
				}}
			},
		},
		{
			Name:   string(StatusDone),
			Source: "done-sections",
			Select: byStatus(StatusDone),
			Layers: func(string) []Layer {
				return []Layer{sectionLine("done-sections", "done-sections", nil)}
			},
		},
		{
			Name:   string(StatusPlanned),
			Source: "planned-sections",
			Select: byStatus(StatusPlanned),
			Layers: func(string) []Layer {
				return []Layer{sectionLine("planned-sections", "planned-sections", map[string]any{
					"line-dasharray": []any{2, 2},
				})}
			},
		},
		{
			Name:   string(StatusVariante),
			Source: "variante-sections",
			Select: byStatus(StatusVariante),
			Layers: func(string) []Layer {
				return []Layer{
					sectionLine("variante-sections", "variante-sections", map[string]any{
						"line-dasharray": []any{2, 2},
						"line-opacity":   0.5,
					}),
					lineLabel("variante-symbols", "variante-sections",
						[]any{"coalesce", []any{"get", "text"}, "variante"}, 120, 4),
				}
			},
			Cursor: cursorOn("variante-sections"),
		},
		{
			Name:   string(StatusVariantePostponed),
			Source: "variante-postponed-sections",
			Select: byStatus(StatusVariantePostponed),
			Layers: func(string) []Layer {
				return []Layer{
					sectionLine("variante-postponed-sections", "variante-postponed-sections", map[string]any{
						"line-dasharray": []any{2, 2},
						"line-opacity":   0.5,
					}),
					lineLabel("variante-postponed-symbols", "variante-postponed-sections",
						[]any{"coalesce", []any{"get", "text"}, "variante reportée"}, 120, 4),
				}
			},
			Cursor: cursorOn("variante-postponed-sections"),
		},
		{
			Name:   string(StatusWIP),
			Source: LayerWIP,
			Select: byStatus(StatusWIP),
			Layers: func(string) []Layer {
				return []Layer{sectionLine(LayerWIP, LayerWIP, map[string]any{
					"line-dasharray": DashSequence[0],
				})}
			},
			Animate: LayerWIP,
		},
		{
			Name:   string(StatusUnknown),
			Source: "unknown-sections",
			Select: byStatus(StatusUnknown),
			Layers: func(string) []Layer {
				return []Layer{
					{
						ID: "unknown-sections", Type: LayerLine, Source: "unknown-sections",
						Layout: map[string]any{"line-cap": "round"},
						Paint: map[string]any{
							"line-width":   []any{"interpolate", []any{"linear"}, []any{"zoom"}, 11, 4, 14, 25},
							"line-color":   colorExpr(),
							"line-opacity": []any{"interpolate", []any{"linear"}, []any{"zoom"}, 11, 0.5, 14, 0.35},
						},
					},
					lineLabel("unknown-symbols", "unknown-sections", "tracé à définir", 120, 3),
				}
			},
			Cursor: cursorOn("unknown-sections"),
		},
		{
			Name:     string(StatusPostponed),
			Source:   postponedSource,
			PerColor: true,
			Select:   byStatus(StatusPostponed),
			Layers: func(color string) []Layer {
				source := postponedSource + "-" + color
				return []Layer{
					{
						ID: "postponed-symbols-" + color, Type: LayerSymbol, Source: source,
						Layout: map[string]any{
							"symbol-placement": "line",
							"symbol-spacing":   1,
							"icon-image":       IconCross,
							"icon-size":        1.2,
						},
						Paint: map[string]any{"icon-color": color},
					},
					lineLabel("postponed-text-"+color, source, "reporté", 150, 3),
				}
			},
			Cursor: func(color string) []string { return []string{"postponed-symbols-" + color} },
		},
		{
			Name:   "counters",
			Source: LayerCounters,
			Select: func(b *Buckets) []*geojson.Feature { return b.Counters },
			Layers: func(string) []Layer {
				return []Layer{{
					ID: LayerCounters, Type: LayerCircle, Source: LayerCounters,
					Layout: map[string]any{"circle-sort-key": []any{"get", PropCircleSortKey}},
					Paint: map[string]any{
						"circle-color":        "#152B68",
						"circle-stroke-color": "#fff",
						"circle-stroke-width": []any{"get", PropCircleStrokeWidth},
						"circle-radius":       []any{"get", PropCircleRadius},
					},
				}}
			},
			Cursor: cursorOn(LayerCounters),
		},
		{
			Name:   "hazards",
			Source: LayerHazards,
			Select: func(b *Buckets) []*geojson.Feature { return b.Hazards },
			Layers: func(string) []Layer {
				return []Layer{{
					ID: LayerHazards, Type: LayerSymbol, Source: LayerHazards, MinZoom: 14,
					Layout: map[string]any{"icon-image": IconHazard, "icon-size": 0.7},
				}}
			},
			Cursor: cursorOn(LayerHazards),
		},
		{
			Name:   "viewpoints",
			Source: LayerViewpoints,
			Select: func(b *Buckets) []*geojson.Feature { return b.Viewpoints },
			Layers: func(string) []Layer {
				return []Layer{{
					ID: LayerViewpoints, Type: LayerSymbol, Source: LayerViewpoints, MinZoom: 14,
					Layout: map[string]any{
						"icon-image":  IconCamera,
						"icon-size":   0.5,
						"icon-offset": []any{-25, -25},
					},
					Paint: map[string]any{"icon-color": colorExpr()},
				}}
			},
			Cursor: cursorOn(LayerViewpoints),
		},
	}
}
