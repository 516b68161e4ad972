package templates

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

// statusLabels are the captions shown for each section status.
var statusLabels = map[mapview.Status]string{
	mapview.StatusDone:              "Réalisé",
	mapview.StatusWIP:               "En travaux",
	mapview.StatusTested:            "En test",
	mapview.StatusPlanned:           "Prévu",
	mapview.StatusVariante:          "Variante",
	mapview.StatusVariantePostponed: "Variante reportée",
	mapview.StatusUnknown:           "Tracé à définir",
	mapview.StatusPostponed:         "Reporté",
}

// LineBadge is one route number with its color.
type LineBadge struct {
	Line  int
	Color string
}

// CounterView is the template data of a counter.
type CounterView struct {
	Name      string
	IDPdc     string
	Count     float64
	Timestamp string
	HasCounts bool
}

// TooltipView is the data every tooltip fragment receives.
type TooltipView struct {
	Kind        mapview.TooltipKind
	Name        string
	Description string
	Link        string

	// Sections.
	Line        int
	Color       string
	Status      string
	StatusLabel string
	Length      float64
	Lines       []LineBadge

	// Viewpoints.
	ImgURL string

	// Counters.
	Counter  *CounterView
	Neighbor *CounterView
}

// Tooltips renders mapview tooltips with the fragment templates. Line
// badges take their colors from the tooltip, so they match the map that
// produced it.
type Tooltips struct {
	Renderer *Renderer
}

var _ mapview.TooltipRenderer = (*Tooltips)(nil)

// RenderTooltip implements mapview.TooltipRenderer.
func (t *Tooltips) RenderTooltip(ctx context.Context, tip mapview.Tooltip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if tip.Feature == nil {
		return t.Renderer.Render("tooltip-empty", nil)
	}
	return t.Renderer.Render("tooltip-"+string(tip.Kind), t.View(tip))
}

// View builds the template data for tip.
func (t *Tooltips) View(tip mapview.Tooltip) TooltipView {
	f := tip.Feature
	v := TooltipView{
		Kind:        tip.Kind,
		Name:        f.Properties.MustString(mapview.PropName, ""),
		Description: f.Properties.MustString("description", ""),
		Link:        f.Properties.MustString(mapview.PropLink, ""),
		Line:        mapview.LineOf(f),
		Color:       f.Properties.MustString(mapview.PropColor, ""),
		ImgURL:      f.Properties.MustString(mapview.PropImgURL, ""),
	}

	switch tip.Kind {
	case mapview.TooltipLine:
		status := mapview.StatusOf(f)
		v.Status = string(status)
		v.StatusLabel = statusLabels[status]
		if ls, ok := f.Geometry.(orb.LineString); ok {
			v.Length = geo.Length(ls)
		}
		for _, line := range tip.Lines {
			v.Lines = append(v.Lines, LineBadge{Line: line, Color: colors(tip).LineColor(line)})
		}
	case mapview.TooltipCounter:
		v.Counter = counterView(f)
		if tip.Neighbor != nil {
			v.Neighbor = counterView(tip.Neighbor)
		}
	}
	return v
}

func colors(tip mapview.Tooltip) mapview.ColorAssigner {
	if tip.Colors == nil {
		return mapview.DefaultPalette
	}
	return tip.Colors
}

func counterView(f *geojson.Feature) *CounterView {
	id, _ := mapview.IDPdcOf(f)
	c := &CounterView{
		Name:  f.Properties.MustString(mapview.PropName, fmt.Sprintf("Compteur %s", id)),
		IDPdc: id,
	}
	if counts := mapview.CountsOf(f); len(counts) > 0 {
		last := counts[len(counts)-1]
		c.Count, c.Timestamp, c.HasCounts = last.Count, last.Timestamp, true
	}
	return c
}
