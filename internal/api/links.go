package api

import (
	"net/http"

	"github.com/joeblew999/plat-velo/internal/humastar"
)

// sessionActions are the Link header actions of a live session. They let
// restish and the browser client discover the interaction endpoints with
// `restish links <url>`.
var sessionActions = []humastar.ActionDef{
	{Rel: "style", Pattern: "/api/v1/sessions/%s/style", Method: http.MethodGet, Title: "Composed map style"},
	{Rel: "plot", Pattern: "/api/v1/sessions/%s/plot", Method: http.MethodPut, Title: "Plot a filtered network", Schema: "/schemas/FeatureFilter.json"},
	{Rel: "pointer", Pattern: "/api/v1/sessions/%s/pointer", Method: http.MethodPost, Title: "Move the pointer", Schema: "/schemas/PointerBody.json"},
	{Rel: "click", Pattern: "/api/v1/sessions/%s/click", Method: http.MethodPost, Title: "Click the map", Schema: "/schemas/Position.json"},
	{Rel: "stream", Pattern: "/api/v1/live/sessions/%s/stream", Method: http.MethodGet, Title: "Live map changes"},
	{Rel: "delete", Pattern: "/api/v1/sessions/%s", Method: http.MethodDelete, Title: "Close the session"},
}
