package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/tidwall/gjson"

	"github.com/joeblew999/plat-velo/internal/humastar"
	"github.com/joeblew999/plat-velo/internal/service"
)

const network = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "properties": {"line": 1, "status": "done", "name": "Quai"},
   "geometry": {"type": "LineString", "coordinates": [[-1.5540, 47.2130], [-1.5520, 47.2130]]}},
  {"type": "Feature", "properties": {"line": 2, "status": "wip", "name": "Pont"},
   "geometry": {"type": "LineString", "coordinates": [[-1.5540, 47.2200], [-1.5520, 47.2200]]}},
  {"type": "Feature", "properties": {"type": "danger", "name": "Trémie"},
   "geometry": {"type": "Point", "coordinates": [-1.5450, 47.2150]}}
]}`

func counterFile(id, count string) string {
	return `{"name": "Compteur", "idPdc": ` + id + `, "coordinates": [-1.53, 47.21],
	  "counts": [{"timestamp": "2024-06-01", "count": ` + count + `}]}`
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestAPI(t *testing.T) (humatest.TestAPI, *Services) {
	t.Helper()
	dir := t.TempDir()
	write(t, filepath.Join(dir, "sources", "network.geojson"), network)
	write(t, filepath.Join(dir, "counters", "a.json"), counterFile("1", "50"))
	write(t, filepath.Join(dir, "counters", "b.json"), counterFile("2", "900"))

	features, err := service.NewFeatureService(dir)
	if err != nil {
		t.Fatal(err)
	}
	styles := service.NewStyleService(dir, nil)
	sessions := service.NewSessionService(features, styles, service.SessionOptions{
		TTL:           time.Minute,
		FrameInterval: time.Hour,
		Zoom:          15,
	}, nil)
	t.Cleanup(sessions.Stop)

	svc := &Services{
		Features: features,
		Sources:  service.NewSourceService(dir),
		Styles:   styles,
		Sessions: sessions,
	}

	cfg := huma.DefaultConfig("plat-velo test", "1.0.0")
	links := humastar.NewLinks()
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	_, tapi := humatest.New(t, cfg)
	RegisterRoutes(tapi, svc)
	NewDBHandler(nil).RegisterRoutes(tapi)
	links.Discover(tapi)
	return tapi, svc
}

func linkHeader(resp http.Header) string {
	return strings.Join(resp.Values("Link"), ", ")
}

func TestHealth(t *testing.T) {
	tapi, _ := newTestAPI(t)
	resp := tapi.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("code=%d", resp.Code)
	}
	if got := gjson.Get(resp.Body.String(), "status").String(); got != "ok" {
		t.Fatalf("status=%q, want ok", got)
	}
}

func TestFeaturesFilter(t *testing.T) {
	tapi, _ := newTestAPI(t)

	all := tapi.Get("/api/v1/features")
	if n := gjson.Get(all.Body.String(), "features.#").Int(); n != 5 {
		t.Fatalf("features=%d, want 5", n)
	}

	done := tapi.Get("/api/v1/features?status=done")
	body := done.Body.String()
	if n := gjson.Get(body, `features.#(geometry.type=="LineString")#`).Array(); len(n) != 1 {
		t.Fatalf("done sections=%d, want 1", len(n))
	}
}

func TestCountersPaginated(t *testing.T) {
	tapi, _ := newTestAPI(t)

	resp := tapi.Get("/api/v1/counters?limit=1")
	if resp.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	if got := gjson.Get(body, "total").Int(); got != 2 {
		t.Fatalf("total=%d, want 2", got)
	}
	if got := gjson.Get(body, "data.0.idPdc").String(); got != "2" {
		t.Errorf("first counter=%q, want the busiest one", got)
	}
	if !gjson.Get(body, "data.0.top").Bool() {
		t.Error("busiest counter not marked top")
	}
	if l := linkHeader(resp.Header()); !strings.Contains(l, `rel="next"`) || strings.Contains(l, `rel="prev"`) {
		t.Errorf("links=%s", l)
	}

	last := tapi.Get("/api/v1/counters?offset=1&limit=1")
	if got := gjson.Get(last.Body.String(), "data.0.idPdc").String(); got != "1" {
		t.Errorf("second page=%q", got)
	}
}

func TestSources(t *testing.T) {
	tapi, _ := newTestAPI(t)
	body := tapi.Get("/api/v1/sources").Body.String()
	if n := gjson.Get(body, "#").Int(); n != 3 {
		t.Fatalf("sources=%d, want 3", n)
	}
	if got := gjson.Get(body, `#(name=="sources/network.geojson").features`).Int(); got != 3 {
		t.Errorf("network features=%d, want 3", got)
	}
}

func TestStylesCRUD(t *testing.T) {
	tapi, _ := newTestAPI(t)

	put := tapi.Put("/api/v1/styles/done-sections", map[string]any{
		"paint": map[string]any{"line-width": 6},
	})
	if put.Code != http.StatusOK {
		t.Fatalf("put code=%d body=%s", put.Code, put.Body.String())
	}

	got := tapi.Get("/api/v1/styles/done-sections").Body.String()
	if w := gjson.Get(got, "paint.line-width").Int(); w != 6 {
		t.Fatalf("line-width=%d, want 6", w)
	}
	if n := gjson.Get(tapi.Get("/api/v1/styles").Body.String(), "@keys.#").Int(); n != 1 {
		t.Errorf("styles=%d, want 1", n)
	}

	if del := tapi.Delete("/api/v1/styles/done-sections"); del.Code != http.StatusOK {
		t.Fatalf("delete code=%d", del.Code)
	}
	if missing := tapi.Get("/api/v1/styles/done-sections"); missing.Code != http.StatusNotFound {
		t.Fatalf("get after delete code=%d", missing.Code)
	}
}

func TestLinesRoute(t *testing.T) {
	tapi, svc := newTestAPI(t)

	if n := gjson.Get(tapi.Get("/api/v1/styles/lines").Body.String(), "colors.#").Int(); n == 0 {
		t.Fatal("no default palette")
	}
	put := tapi.Put("/api/v1/styles/lines", map[string]any{
		"colors":   []string{"#000000", "#111111"},
		"priority": []int{2, 1},
	})
	if put.Code != http.StatusOK {
		t.Fatalf("put code=%d body=%s", put.Code, put.Body.String())
	}
	if got := gjson.Get(put.Body.String(), "colors.1").String(); got != "#111111" {
		t.Errorf("colors.1=%q", got)
	}
	if lines := svc.Styles.Config().Lines; lines.Colors[0] != "#000000" || lines.Priority[0] != 2 {
		t.Fatalf("lines=%+v", lines)
	}
}

func TestSessionRoutes(t *testing.T) {
	tapi, svc := newTestAPI(t)

	created := tapi.Post("/api/v1/sessions", map[string]any{})
	if created.Code != http.StatusCreated {
		t.Fatalf("create code=%d body=%s", created.Code, created.Body.String())
	}
	id := gjson.Get(created.Body.String(), "id").String()
	if id == "" {
		t.Fatal("no session id")
	}
	if l := linkHeader(created.Header()); !strings.Contains(l, "/api/v1/sessions/"+id+`/click>; rel="click"; method="POST"`) {
		t.Errorf("links=%s", l)
	}

	style := tapi.Get("/api/v1/sessions/" + id + "/style")
	etag := style.Header().Get("ETag")
	if style.Code != http.StatusOK || etag == "" {
		t.Fatalf("style code=%d etag=%q", style.Code, etag)
	}
	if v := gjson.Get(style.Body.String(), "version").Int(); v != 8 {
		t.Errorf("style version=%d, want 8", v)
	}
	if cached := tapi.Get("/api/v1/sessions/"+id+"/style", "If-None-Match: "+etag); cached.Code != http.StatusNotModified {
		t.Errorf("conditional code=%d, want 304", cached.Code)
	}

	sess, err := svc.Sessions.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	sess.Doc.SetZoom(16)

	click := tapi.Post("/api/v1/sessions/"+id+"/click", map[string]any{"lng": -1.5450, "lat": 47.2150})
	body := click.Body.String()
	if !gjson.Get(body, "opened").Bool() || gjson.Get(body, "containerId").String() != "hazards-tooltip-content" {
		t.Fatalf("click=%s", body)
	}
	if h := gjson.Get(body, "minHeight").String(); h != "50px" {
		t.Errorf("minHeight=%q", h)
	}

	miss := tapi.Post("/api/v1/sessions/"+id+"/click", map[string]any{"lng": 2.35, "lat": 48.85})
	if gjson.Get(miss.Body.String(), "opened").Bool() {
		t.Error("click far away opened a popup")
	}

	pointer := tapi.Post("/api/v1/sessions/"+id+"/pointer", map[string]any{"lng": -1.5530, "lat": 47.2130})
	if c := gjson.Get(pointer.Body.String(), "cursor").String(); c != "pointer" {
		t.Errorf("cursor=%q, want pointer", c)
	}
	if !gjson.Get(pointer.Body.String(), "hovered").Exists() {
		t.Errorf("nothing hovered: %s", pointer.Body.String())
	}
	left := tapi.Post("/api/v1/sessions/"+id+"/pointer", map[string]any{"leave": true})
	if gjson.Get(left.Body.String(), "hovered").Exists() {
		t.Errorf("hover kept after leave: %s", left.Body.String())
	}

	plot := tapi.Put("/api/v1/sessions/"+id+"/plot", map[string]any{"status": []string{"done"}})
	if got := gjson.Get(plot.Body.String(), "filter.status.0").String(); got != "done" {
		t.Errorf("plot filter=%q", got)
	}

	if del := tapi.Delete("/api/v1/sessions/" + id); del.Code != http.StatusNoContent {
		t.Fatalf("delete code=%d", del.Code)
	}
	if gone := tapi.Get("/api/v1/sessions/" + id); gone.Code != http.StatusNotFound {
		t.Fatalf("get after delete code=%d", gone.Code)
	}
}

func TestDBUnavailable(t *testing.T) {
	tapi, _ := newTestAPI(t)
	if resp := tapi.Get("/api/v1/tables"); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d, want 503", resp.Code)
	}
}
