// Package live streams map session changes to the browser with Datastar.
package live

import (
	"context"
	"errors"
	"html/template"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-velo/internal/humastar"
	"github.com/joeblew999/plat-velo/internal/service"
	"github.com/joeblew999/plat-velo/internal/style"
	"github.com/joeblew999/plat-velo/internal/templates"
)

const popupSelector = "#map-popup"

// Handler streams session changes and accepts pointer input as Datastar
// signals.
type Handler struct {
	humastar.Handler
	sessions *service.SessionService
	logger   *slog.Logger
}

// NewHandler creates a live handler.
func NewHandler(sessions *service.SessionService, renderer *templates.Renderer) *Handler {
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		logger:   slog.With("svc", "live"),
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/live/sessions/{id}/stream", h.StreamSession, huma.OperationTags("live"))
	huma.Post(api, "/api/v1/live/sessions/{id}/click", h.Click, huma.OperationTags("live"))
	huma.Post(api, "/api/v1/live/sessions/{id}/pointer", h.Pointer, huma.OperationTags("live"))
}

type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type SignalsInput struct {
	SessionInput
	humastar.SignalsInput
}

// PopupView is the data of the popup fragment.
type PopupView struct {
	LngLat orb.Point
	HTML   template.HTML
}

func (h *Handler) session(id string) (*service.Session, error) {
	sess, err := h.sessions.Get(id)
	if errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error404NotFound(err.Error())
	}
	return sess, err
}

// popup renders the open popup of a session, or the closed placeholder.
func (h *Handler) popup(sess *service.Session) string {
	p, ok := sess.Doc.OpenedPopup()
	if !ok {
		return h.Render("popup-closed", nil)
	}
	// Tooltip HTML is produced by our own escaped templates.
	return h.Render("popup", PopupView{LngLat: p.LngLat, HTML: template.HTML(p.HTML())})
}

func pointerSignals(sess *service.Session) map[string]any {
	hovered, _ := sess.Composer.HoveredID()
	return map[string]any{
		"cursor":  sess.Doc.Cursor(),
		"hovered": hovered,
	}
}

// StreamSession pushes every change of a session until the client goes away
// or the session closes.
func (h *Handler) StreamSession(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		ch := sess.Bus.Subscribe()
		defer sess.Bus.Unsubscribe(ch)
		h.logger.Debug("Stream opened", "session", sess.ID)
		defer h.logger.Debug("Stream closed", "session", sess.ID)

		sse.Replace(h.popup(sess), popupSelector)
		sse.Signals(pointerSignals(sess))

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					sse.Signals(map[string]any{"closed": true})
					return
				}
				h.push(sse, sess, ev)
			}
		}
	}), nil
}

func (h *Handler) push(sse humastar.SSE, sess *service.Session, ev service.Event) {
	c, ok := ev.Data.(style.Change)
	if !ok {
		return
	}
	switch c.Kind {
	case style.ChangePopup:
		sse.Replace(h.popup(sess), popupSelector)
	case style.ChangeCursor, style.ChangeFeatureState:
		sse.Signals(pointerSignals(sess))
	case style.ChangePaint:
		sse.DispatchCustomEvent("velo-paint", map[string]any{
			"layer": c.ID, "name": c.Name, "value": c.Value,
		})
	default:
		sse.DispatchCustomEvent("velo-style", map[string]any{
			"kind": c.Kind, "id": c.ID, "version": sess.Doc.Version(),
		})
	}
}

// Click clicks at the lng/lat signals and patches the popup.
func (h *Handler) Click(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.Signals()
	if err != nil {
		return nil, err
	}

	sess.Click(signals.Point("lng", "lat"))
	return h.Stream(func(sse humastar.SSE) {
		sse.Replace(h.popup(sess), popupSelector)
	}), nil
}

// Pointer moves the pointer to the lng/lat signals, or off the map when the
// leave signal is set, and returns the cursor and hovered section.
func (h *Handler) Pointer(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.Signals()
	if err != nil {
		return nil, err
	}

	if signals.Bool("leave") {
		sess.Leave()
	} else {
		sess.Pointer(signals.Point("lng", "lat"))
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(pointerSignals(sess))
	}), nil
}
