// Package humastar lets Huma operations answer with Datastar server-sent
// events: HTML fragments patched into the page and signal updates. It also
// carries the hypermedia helpers shared by the REST routes (Link discovery,
// pagination and actions).
//
//	func (h *LiveHandler) Click(ctx context.Context, in *ClickInput) (*huma.StreamResponse, error) {
//	    signals, err := in.Signals()
//	    if err != nil {
//	        return nil, err
//	    }
//	    sess.Click(signals.Point("lng", "lat"))
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Replace(h.Render("popup", view), "#map-popup")
//	    }), nil
//	}
package humastar

import (
	"encoding/json"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-velo/internal/templates"
)

// Handler is embedded by Huma handlers that stream Datastar events built
// from template fragments.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn in a Huma StreamResponse.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// Render renders a named fragment. A failure is logged and renders nothing,
// so the stream stays open.
func (h *Handler) Render(name string, data any) string {
	html, err := h.Renderer.Render(name, data)
	if err != nil {
		slog.Error("Fragment render failed", "svc", "humastar", "template", name, "error", err)
		return ""
	}
	return html
}

// SSE is a Datastar event writer on a Huma stream. The stream must come from
// the humago adapter.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts a Datastar event stream on the response of ctx.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Replace swaps the element matching selector for html.
func (s SSE) Replace(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeOuter(),
		datastar.WithViewTransitions(),
	)
}

// Signals merges signals into the page's signal store.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Signals is the flat JSON object of signals Datastar posts with an action.
type Signals map[string]any

// Float returns a numeric signal, or 0.
func (s Signals) Float(key string) float64 {
	f, _ := s[key].(float64)
	return f
}

// Bool returns a boolean signal, or false.
func (s Signals) Bool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

// Point reads a geographic position from two numeric signals.
func (s Signals) Point(lngKey, latKey string) orb.Point {
	return orb.Point{s.Float(lngKey), s.Float(latKey)}
}

// SignalsInput is embedded by inputs of Datastar actions.
type SignalsInput struct {
	RawBody []byte
}

// Signals decodes the request body. A malformed body is a 400.
func (i *SignalsInput) Signals() (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(i.RawBody, &signals); err != nil {
		return nil, huma.Error400BadRequest("invalid signals: " + err.Error())
	}
	return signals, nil
}
