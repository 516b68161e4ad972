package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// InfoHandler reports what the server has loaded.
type InfoHandler struct {
	dataDir string
	dbOK    bool
	svc     *Services
}

func NewInfoHandler(dataDir string, dbOK bool, svc *Services) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether the DuckDB mirror is available"`
	Sections int      `json:"sections" doc:"Loaded line sections"`
	Counters int      `json:"counters" doc:"Loaded counters"`
	Sessions int      `json:"sessions" doc:"Open map sessions"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-velo",
		Version:  "0.1.0",
		DataDir:  h.dataDir,
		DB:       h.dbOK,
		Features: []string{"sections", "counters", "sessions", "live"},
	}
	if h.dbOK {
		body.Features = append(body.Features, "duckdb")
	}
	if h.svc != nil && h.svc.Features != nil {
		body.Sections = len(h.svc.Features.Sections())
		body.Counters = len(h.svc.Features.Records())
	}
	if h.svc != nil && h.svc.Sessions != nil {
		body.Sessions = len(h.svc.Sessions.List())
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
