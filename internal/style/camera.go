package style

import (
	"fmt"
	"html"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

const (
	tileSize = 256
	maxZoom  = 22

	// mercatorWorld is the width of the web mercator plane in meters.
	mercatorWorld = 2 * 20037508.342789244
)

// Camera is the map viewport.
type Camera struct {
	Center  orb.Point  `json:"center"`
	Zoom    float64    `json:"zoom"`
	Bounds  *orb.Bound `json:"bounds,omitempty"`
	Padding float64    `json:"padding,omitempty"`
}

// Camera returns the current viewport.
func (d *Document) Camera() Camera {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.camera
}

// SetZoom moves the camera to zoom z.
func (d *Document) SetZoom(z float64) {
	d.mu.Lock()
	d.camera.Zoom = math.Max(0, math.Min(maxZoom, z))
	cam := d.camera
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangeCamera, Value: cam})
}

func (d *Document) FitBounds(b orb.Bound, padding float64) {
	d.mu.Lock()
	d.camera = Camera{
		Center:  b.Center(),
		Zoom:    fitZoom(b, d.width, d.height, padding),
		Bounds:  &b,
		Padding: padding,
	}
	cam := d.camera
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangeCamera, Value: cam})
}

func (d *Document) FlyTo(center orb.Point) {
	d.mu.Lock()
	d.camera.Center = center
	d.camera.Bounds = nil
	d.camera.Padding = 0
	cam := d.camera
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangeCamera, Value: cam})
}

// fitZoom is the largest zoom at which b fits the viewport minus padding.
func fitZoom(b orb.Bound, width, height, padding float64) float64 {
	lo := project.Point(b.Min, project.WGS84.ToMercator)
	hi := project.Point(b.Max, project.WGS84.ToMercator)
	dx := math.Abs(hi.X()-lo.X()) / mercatorWorld * tileSize
	dy := math.Abs(hi.Y()-lo.Y()) / mercatorWorld * tileSize

	w, h := width-2*padding, height-2*padding
	if w <= 0 || h <= 0 {
		return 0
	}
	z := float64(maxZoom)
	if dx > 0 {
		z = math.Min(z, math.Log2(w/dx))
	}
	if dy > 0 {
		z = math.Min(z, math.Log2(h/dy))
	}
	return math.Max(0, z)
}

// metersPerPixel is the ground resolution at latitude lat and zoom z.
func metersPerPixel(lat, z float64) float64 {
	return mercatorWorld / tileSize * math.Cos(lat*math.Pi/180) / math.Exp2(z)
}

// Popup is an open popup anchored at a geographic position.
type Popup struct {
	doc *Document

	LngLat      orb.Point `json:"lngLat"`
	ContainerID string    `json:"containerId"`
	MinHeight   string    `json:"minHeight,omitempty"`
	Content     string    `json:"content"`

	closeOnClick bool
}

// SetContent replaces the popup body.
func (p *Popup) SetContent(content string) {
	d := p.doc
	d.mu.Lock()
	if d.popup != p {
		// Closed before the tooltip finished rendering.
		d.mu.Unlock()
		return
	}
	p.Content = content
	snapshot := *p
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangePopup, ID: snapshot.ContainerID, Value: snapshot.HTML()})
}

// HTML renders the popup container with its content.
func (p Popup) HTML() string {
	style := ""
	if p.MinHeight != "" {
		style = fmt.Sprintf(` style="min-height: %s"`, html.EscapeString(p.MinHeight))
	}
	return fmt.Sprintf(`<div id="%s"%s>%s</div>`, html.EscapeString(p.ContainerID), style, p.Content)
}

func (d *Document) OpenPopup(at orb.Point, opts mapview.PopupOptions) mapview.Popup {
	p := &Popup{
		doc:          d,
		LngLat:       at,
		ContainerID:  opts.ContainerID,
		MinHeight:    opts.MinHeight,
		Content:      opts.Placeholder,
		closeOnClick: opts.CloseOnClick,
	}
	d.mu.Lock()
	d.popup = p
	d.version++
	d.mu.Unlock()

	d.notify(Change{Kind: ChangePopup, ID: p.ContainerID, Value: p.HTML()})
	return p
}

// OpenedPopup returns a copy of the open popup.
func (d *Document) OpenedPopup() (Popup, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.popup == nil {
		return Popup{}, false
	}
	return *d.popup, true
}

// ClosePopup closes the open popup, if any.
func (d *Document) ClosePopup() {
	d.mu.Lock()
	open := d.popup != nil
	d.popup = nil
	if open {
		d.version++
	}
	d.mu.Unlock()

	if open {
		d.notify(Change{Kind: ChangePopup})
	}
}
