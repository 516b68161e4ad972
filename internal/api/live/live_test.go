package live

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-velo/internal/service"
	"github.com/joeblew999/plat-velo/internal/templates"
)

const network = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "properties": {"line": 1, "status": "done", "name": "Quai"},
   "geometry": {"type": "LineString", "coordinates": [[-1.5540, 47.2130], [-1.5520, 47.2130]]}},
  {"type": "Feature", "properties": {"type": "danger", "name": "Trémie"},
   "geometry": {"type": "Point", "coordinates": [-1.5450, 47.2150]}}
]}`

func setup(t *testing.T) (http.Handler, *service.SessionService, *service.Session) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sources", "network.geojson")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(network), 0644); err != nil {
		t.Fatal(err)
	}

	features, err := service.NewFeatureService(dir)
	if err != nil {
		t.Fatal(err)
	}
	renderer, err := templates.New()
	if err != nil {
		t.Fatal(err)
	}
	styles := service.NewStyleService(dir, nil)
	sessions := service.NewSessionService(features, styles, service.SessionOptions{
		TTL:           time.Minute,
		FrameInterval: time.Hour,
		Tooltips:      &templates.Tooltips{Renderer: renderer},
	}, nil)
	t.Cleanup(sessions.Stop)

	sess, err := sessions.Create(t.Context(), service.FeatureFilter{})
	if err != nil {
		t.Fatal(err)
	}
	sess.Doc.SetZoom(16)

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("live test", "1.0.0"))
	NewHandler(sessions, renderer).RegisterRoutes(api)
	return mux, sessions, sess
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestClickPatchesPopup(t *testing.T) {
	h, _, sess := setup(t)

	w := post(h, "/api/v1/live/sessions/"+sess.ID+"/click", `{"lng": -1.5450, "lat": 47.2150}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"datastar-patch-elements", `id="map-popup"`, `id="hazards-tooltip-content"`, "Trémie"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	w = post(h, "/api/v1/live/sessions/"+sess.ID+"/click", `{"lng": 2.35, "lat": 48.85}`)
	if body := w.Body.String(); !strings.Contains(body, `<div id="map-popup"></div>`) {
		t.Errorf("popup not closed:\n%s", body)
	}
}

func TestPointerSignals(t *testing.T) {
	h, _, sess := setup(t)

	w := post(h, "/api/v1/live/sessions/"+sess.ID+"/pointer", `{"lng": -1.5530, "lat": 47.2130}`)
	body := w.Body.String()
	if !strings.Contains(body, "datastar-patch-signals") || !strings.Contains(body, `"cursor":"pointer"`) {
		t.Fatalf("body=%s", body)
	}

	w = post(h, "/api/v1/live/sessions/"+sess.ID+"/pointer", `{"leave": true}`)
	if body := w.Body.String(); !strings.Contains(body, `"cursor":""`) || !strings.Contains(body, `"hovered":null`) {
		t.Fatalf("after leave body=%s", body)
	}
}

func TestUnknownSession(t *testing.T) {
	h, _, _ := setup(t)
	if w := post(h, "/api/v1/live/sessions/nope/click", `{}`); w.Code != http.StatusNotFound {
		t.Fatalf("code=%d, want 404", w.Code)
	}
}

func TestStreamEndsWhenSessionCloses(t *testing.T) {
	h, sessions, sess := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/live/sessions/"+sess.ID+"/stream", nil)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sess.Bus.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := sessions.Delete(sess.ID); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after the session closed")
	}
	body := w.Body.String()
	if !strings.Contains(body, `<div id="map-popup"></div>`) || !strings.Contains(body, `"closed":true`) {
		t.Fatalf("body=%s", body)
	}
}
