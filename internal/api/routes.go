// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-velo/internal/humastar"
	"github.com/joeblew999/plat-velo/internal/mapview"
	"github.com/joeblew999/plat-velo/internal/service"
	"github.com/joeblew999/plat-velo/internal/style"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Features *service.FeatureService
	Sources  *service.SourceService
	Styles   *service.StyleService
	Sessions *service.SessionService
}

// RegisterRoutes registers every REST route of the handler.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"done-sections"`
}

type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type FeaturesInput struct {
	service.FeatureFilter
}

type CountersInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Index of the first counter"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
}

// CounterItem is one ranked counter.
type CounterItem struct {
	IDPdc       string     `json:"idPdc" doc:"Counter identifier" example:"725"`
	Name        string     `json:"name" doc:"Counter name"`
	Latest      float64    `json:"latest" doc:"Most recent count"`
	Top         bool       `json:"top" doc:"Whether the counter is drawn emphasised"`
	Neighbor    string     `json:"neighbor,omitempty" doc:"Counter of the opposite direction"`
	Link        string     `json:"link,omitempty" doc:"Counter page"`
	Coordinates [2]float64 `json:"coordinates" doc:"Longitude and latitude"`
}

// SessionBody is a session with its state-dependent actions.
type SessionBody struct {
	service.SessionInfo
}

// Actions implements humastar.Actor.
func (b SessionBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, sessionActions)
}

type StyleOutput struct {
	ETag string `header:"ETag"`
	Body style.StyleJSON
}

type StyleInput struct {
	SessionIDInput
	IfNoneMatch string `header:"If-None-Match" doc:"ETag of a style already held"`
}

// Position is a map position.
type Position struct {
	Lng float64 `json:"lng" minimum:"-180" maximum:"180" doc:"Longitude" example:"-1.5536"`
	Lat float64 `json:"lat" minimum:"-90" maximum:"90" doc:"Latitude" example:"47.2184"`
}

func (p Position) point() orb.Point { return orb.Point{p.Lng, p.Lat} }

type PointerBody struct {
	Lng   float64 `json:"lng,omitempty" minimum:"-180" maximum:"180" doc:"Longitude"`
	Lat   float64 `json:"lat,omitempty" minimum:"-90" maximum:"90" doc:"Latitude"`
	Leave bool    `json:"leave,omitempty" doc:"The pointer left the map"`
}

type PointerResult struct {
	Hovered any    `json:"hovered,omitempty" doc:"Feature id of the highlighted section"`
	Cursor  string `json:"cursor" doc:"Cursor shown over the map"`
}

type ClickResult struct {
	Opened      bool   `json:"opened" doc:"Whether a popup opened"`
	ContainerID string `json:"containerId,omitempty" doc:"Popup content element id" example:"hazards-tooltip-content"`
	MinHeight   string `json:"minHeight,omitempty" doc:"Minimum popup height" example:"50px"`
	HTML        string `json:"html,omitempty" doc:"Popup HTML"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

func created(o *huma.Operation) { o.DefaultStatus = http.StatusCreated }

func noContent(o *huma.Operation) { o.DefaultStatus = http.StatusNoContent }

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterFeatures registers the feature and counter routes.
func (h *APIHandler) RegisterFeatures(api huma.API) {
	huma.Get(api, "/api/v1/features", h.GetFeatures, huma.OperationTags("features"))
	huma.Get(api, "/api/v1/counters", h.GetCounters, huma.OperationTags("features"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// RegisterStyles registers layer style override routes.
func (h *APIHandler) RegisterStyles(api huma.API) {
	huma.Get(api, "/api/v1/styles", h.GetStyles, huma.OperationTags("styles"))
	huma.Get(api, "/api/v1/styles/lines", h.GetLines, huma.OperationTags("styles"))
	huma.Put(api, "/api/v1/styles/lines", h.PutLines, huma.OperationTags("styles"))
	huma.Get(api, "/api/v1/styles/{id}", h.GetStyle, huma.OperationTags("styles"))
	huma.Put(api, "/api/v1/styles/{id}", h.PutStyle, huma.OperationTags("styles"))
	huma.Delete(api, "/api/v1/styles/{id}", h.DeleteStyle, huma.OperationTags("styles"))
}

// RegisterSessions registers map session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Get(api, "/api/v1/sessions", h.GetSessions, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions", h.CreateSession, huma.OperationTags("sessions"), created)
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}", h.DeleteSession, huma.OperationTags("sessions"), noContent)
	huma.Get(api, "/api/v1/sessions/{id}/style", h.GetSessionStyle, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{id}/plot", h.PlotSession, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions/{id}/pointer", h.MovePointer, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions/{id}/click", h.ClickSession, huma.OperationTags("sessions"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *FeaturesInput) (*struct{ Body *geojson.FeatureCollection }, error) {
	if h.svc == nil || h.svc.Features == nil {
		return nil, huma.Error503ServiceUnavailable("features not loaded")
	}
	return &struct{ Body *geojson.FeatureCollection }{Body: h.svc.Features.Collection(input.FeatureFilter)}, nil
}

func (h *APIHandler) GetCounters(ctx context.Context, input *CountersInput) (*struct {
	Body humastar.PageBody[CounterItem]
}, error) {
	if h.svc == nil || h.svc.Features == nil {
		return nil, huma.Error503ServiceUnavailable("features not loaded")
	}
	top := mapview.DefaultTopCounters
	if h.svc.Styles != nil {
		top = h.svc.Styles.Config().Counters.Top
	}
	ranked := h.svc.Features.Counters(top)
	return &struct {
		Body humastar.PageBody[CounterItem]
	}{Body: humastar.Paginate(ranked, input.Offset, input.Limit, counterItem)}, nil
}

func counterItem(f *geojson.Feature) CounterItem {
	id, _ := mapview.IDPdcOf(f)
	neighbor, _ := mapview.NeighborOf(f)
	item := CounterItem{
		IDPdc:    id,
		Name:     f.Properties.MustString(mapview.PropName, ""),
		Latest:   mapview.LatestCount(f),
		Top:      f.Properties.MustInt(mapview.PropCircleSortKey, 0) == 1,
		Neighbor: neighbor,
		Link:     f.Properties.MustString(mapview.PropLink, ""),
	}
	if p, ok := f.Geometry.(orb.Point); ok {
		item.Coordinates = [2]float64{p.Lon(), p.Lat()}
	}
	return item
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc == nil || h.svc.Sources == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	var counts map[string]int
	if h.svc.Features != nil {
		counts = h.svc.Features.FileCounts()
	}
	sources, err := h.svc.Sources.List(counts)
	if err != nil || sources == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

func (h *APIHandler) GetStyles(ctx context.Context, input *struct{}) (*struct{ Body map[string]service.LayerStyle }, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return &struct{ Body map[string]service.LayerStyle }{Body: map[string]service.LayerStyle{}}, nil
	}
	return &struct{ Body map[string]service.LayerStyle }{Body: h.svc.Styles.List()}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *IDInput) (*struct{ Body service.LayerStyle }, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	l, ok := h.svc.Styles.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer style not found")
	}
	return &struct{ Body service.LayerStyle }{Body: l}, nil
}

func (h *APIHandler) PutStyle(ctx context.Context, input *struct {
	IDInput
	Body service.LayerStyle
}) (*struct{ Body service.LayerStyle }, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return nil, huma.Error400BadRequest("service not available")
	}
	l, err := h.svc.Styles.Put(input.ID, input.Body)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	return &struct{ Body service.LayerStyle }{Body: l}, nil
}

// GetLines returns the route palette and paint priority.
func (h *APIHandler) GetLines(ctx context.Context, input *struct{}) (*struct{ Body service.LinesConfig }, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return nil, huma.Error503ServiceUnavailable("styles not available")
	}
	return &struct{ Body service.LinesConfig }{Body: h.svc.Styles.Config().Lines}, nil
}

// PutLines replaces the route palette and paint priority. Live sessions are
// restyled once the change reaches them over the bus.
func (h *APIHandler) PutLines(ctx context.Context, input *struct {
	Body service.LinesConfig
}) (*struct{ Body service.LinesConfig }, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return nil, huma.Error503ServiceUnavailable("styles not available")
	}
	if err := h.svc.Styles.SetLines(input.Body); err != nil {
		return nil, huma.Error500InternalServerError("saving styles", err)
	}
	return &struct{ Body service.LinesConfig }{Body: h.svc.Styles.Config().Lines}, nil
}

func (h *APIHandler) DeleteStyle(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if h.svc == nil || h.svc.Styles == nil {
		return nil, huma.Error400BadRequest("service not available")
	}
	if err := h.svc.Styles.Delete(input.ID); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Layer style deleted"}}, nil
}

func (h *APIHandler) session(id string) (*service.Session, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("sessions not available")
	}
	sess, err := h.svc.Sessions.Get(id)
	if errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error404NotFound(err.Error())
	}
	return sess, err
}

func (h *APIHandler) GetSessions(ctx context.Context, input *struct{}) (*struct{ Body []service.SessionInfo }, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return &struct{ Body []service.SessionInfo }{Body: []service.SessionInfo{}}, nil
	}
	list := h.svc.Sessions.List()
	if list == nil {
		list = []service.SessionInfo{}
	}
	return &struct{ Body []service.SessionInfo }{Body: list}, nil
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct {
	Body service.FeatureFilter
}) (*struct{ Body SessionBody }, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("sessions not available")
	}
	sess, err := h.svc.Sessions.Create(ctx, input.Body)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to create session", err)
	}
	return &struct{ Body SessionBody }{Body: SessionBody{sess.Info()}}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionIDInput) (*struct{ Body SessionBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return &struct{ Body SessionBody }{Body: SessionBody{sess.Info()}}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *SessionIDInput) (*struct{}, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("sessions not available")
	}
	if err := h.svc.Sessions.Delete(input.ID); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &struct{}{}, nil
}

func (h *APIHandler) GetSessionStyle(ctx context.Context, input *StyleInput) (*StyleOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	etag, err := sess.Doc.ETag()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to fingerprint style", err)
	}
	if input.IfNoneMatch == etag {
		return nil, huma.Status304NotModified()
	}
	return &StyleOutput{ETag: etag, Body: sess.Doc.Style()}, nil
}

func (h *APIHandler) PlotSession(ctx context.Context, input *struct {
	SessionIDInput
	Body service.FeatureFilter
}) (*struct{ Body SessionBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.Plot(ctx, h.svc.Features, input.Body); err != nil {
		if errors.Is(err, mapview.ErrClosed) {
			return nil, huma.Error404NotFound("session closed")
		}
		return nil, huma.Error500InternalServerError("Plot failed", err)
	}
	return &struct{ Body SessionBody }{Body: SessionBody{sess.Info()}}, nil
}

func (h *APIHandler) MovePointer(ctx context.Context, input *struct {
	SessionIDInput
	Body PointerBody
}) (*struct{ Body PointerResult }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if input.Body.Leave {
		sess.Leave()
	} else {
		sess.Pointer(orb.Point{input.Body.Lng, input.Body.Lat})
	}
	hovered, _ := sess.Composer.HoveredID()
	return &struct{ Body PointerResult }{Body: PointerResult{
		Hovered: hovered,
		Cursor:  sess.Doc.Cursor(),
	}}, nil
}

func (h *APIHandler) ClickSession(ctx context.Context, input *struct {
	SessionIDInput
	Body Position
}) (*struct{ Body ClickResult }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	popup, ok := sess.Click(input.Body.point())
	if !ok {
		return &struct{ Body ClickResult }{Body: ClickResult{}}, nil
	}
	return &struct{ Body ClickResult }{Body: ClickResult{
		Opened:      true,
		ContainerID: popup.ContainerID,
		MinHeight:   popup.MinHeight,
		HTML:        popup.HTML(),
	}}, nil
}
