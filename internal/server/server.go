package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-velo/internal/api"
	"github.com/joeblew999/plat-velo/internal/api/live"
	"github.com/joeblew999/plat-velo/internal/db"
	"github.com/joeblew999/plat-velo/internal/humastar"
	"github.com/joeblew999/plat-velo/internal/mapview"
	"github.com/joeblew999/plat-velo/internal/service"
	"github.com/joeblew999/plat-velo/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files, icons and templates

	SessionTTL    time.Duration
	FrameInterval time.Duration
	HitTolerance  float64
	Center        orb.Point
	Zoom          float64
}

// Server is the velo HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	bus      *service.EventBus
	services *api.Services
	renderer *templates.Renderer
	links    *humastar.Links
	logger   *slog.Logger
}

// New creates a new velo server. It fails when the network data cannot be
// loaded; a missing database only disables the SQL routes.
func New(cfg Config) (*Server, error) {
	mux := http.NewServeMux()
	logger := slog.With("svc", "server")

	humaConfig := huma.DefaultConfig("plat-velo API", "1.0.0")
	humaConfig.Info.Description = "Cycling network map API: composed map styles, live map sessions, counters and network statistics."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	links := humastar.NewLinks()
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	features, err := service.NewFeatureService(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("loading network: %w", err)
	}
	bus := service.NewEventBus()
	styles := service.NewStyleService(cfg.DataDir, bus)

	renderer, err := templates.New()
	if err != nil {
		return nil, err
	}
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if _, err := os.Stat(fragmentsDir); err == nil {
			if err := renderer.Reload(fragmentsDir); err != nil {
				return nil, fmt.Errorf("loading fragments: %w", err)
			}
			fmt.Printf("Loaded fragment templates from %s\n", fragmentsDir)
		}
	}

	var icons mapview.IconLoader
	if cfg.WebDir != "" {
		icons = mapview.FSIconLoader{FS: os.DirFS(filepath.Join(cfg.WebDir, "icons"))}
	}

	sessions := service.NewSessionService(features, styles, service.SessionOptions{
		TTL:           cfg.SessionTTL,
		FrameInterval: cfg.FrameInterval,
		HitTolerance:  cfg.HitTolerance,
		Center:        cfg.Center,
		Zoom:          cfg.Zoom,
		Icons:         icons,
		Tooltips:      &templates.Tooltips{Renderer: renderer},
	}, bus)

	go sessions.Watch(context.Background(), bus.Subscribe())

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		bus:     bus,
		services: &api.Services{
			Features: features,
			Sources:  service.NewSourceService(cfg.DataDir),
			Styles:   styles,
			Sessions: sessions,
		},
		renderer: renderer,
		links:    links,
		logger:   logger,
	}

	conn, err := db.Get(db.Config{
		DataDir: cfg.DataDir,
		DBName:  "velo",
	})
	if err != nil {
		logger.Error("DuckDB unavailable", "error", err)
	} else if err := db.Mirror(context.Background(), conn, features.Sections(), features.Counters(0)); err != nil {
		logger.Error("Mirroring network failed", "error", err)
	} else {
		s.db = conn
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI document of the registered routes.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services returns the services behind the API.
func (s *Server) Services() *api.Services {
	return s.services
}

// Close closes server resources.
func (s *Server) Close() error {
	s.services.Sessions.Stop()
	s.bus.Close()
	return db.Close()
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.services).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)
	live.NewHandler(s.services.Sessions, s.renderer).RegisterRoutes(s.humaAPI)

	s.links.Discover(s.humaAPI)

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		s.mux.HandleFunc("/viewer", s.handleViewer)
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-velo",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	http.ServeFile(w, r, templatePath)
}
