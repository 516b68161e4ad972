package humastar

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
)

type idInput struct {
	ID string `path:"id"`
}

type sessionBody struct {
	ID string `json:"id"`
}

func (b sessionBody) Actions() []Action {
	return []Action{{Rel: "delete", Href: "/api/v1/sessions/" + b.ID, Method: "DELETE"}}
}

func TestLinks(t *testing.T) {
	links := NewLinks()
	cfg := huma.DefaultConfig("links test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	_, api := humatest.New(t, cfg)

	empty := func(ctx context.Context, _ *struct{}) (*struct{}, error) { return &struct{}{}, nil }
	item := func(ctx context.Context, in *idInput) (*struct{ Body sessionBody }, error) {
		return &struct{ Body sessionBody }{Body: sessionBody{ID: in.ID}}, nil
	}
	huma.Get(api, "/health", empty, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/sessions", empty, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions", empty, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}", item, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}/style", item, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/live/sessions/{id}/stream", item, huma.OperationTags("live"))
	links.Discover(api)

	root := links.Root()
	for _, want := range []string{
		`</api/v1/sessions>; rel="sessions"`,
		`</openapi.json>; rel="service-desc"`,
	} {
		if !slices.Contains(root, want) {
			t.Errorf("root=%v, missing %s", root, want)
		}
	}
	for _, l := range root {
		if strings.Contains(l, "/live/") {
			t.Errorf("live endpoint linked: %s", l)
		}
	}

	itemLinks := links.For("/api/v1/sessions/{id}")
	for _, want := range []string{
		`</api/v1/sessions>; rel="collection"`,
		`</api/v1/sessions/{id}/style>; rel="style"`,
	} {
		if !slices.Contains(itemLinks, want) {
			t.Errorf("item=%v, missing %s", itemLinks, want)
		}
	}
	if coll := links.For("/api/v1/sessions"); !slices.Contains(coll, `</api/v1/sessions>; rel="create-form"`) {
		t.Errorf("collection=%v", coll)
	}

	resp := api.Get("/api/v1/sessions/abc")
	header := strings.Join(resp.Header().Values("Link"), ", ")
	for _, want := range []string{`</api/v1/sessions/abc>; rel="self"`, `rel="delete"; method="DELETE"`} {
		if !strings.Contains(header, want) {
			t.Errorf("Link=%s, missing %s", header, want)
		}
	}
}

func TestParseLinkHeader(t *testing.T) {
	rel, href := parseLinkHeader(`</api/v1/sessions>; rel="collection"`)
	if rel != "collection" || href != "/api/v1/sessions" {
		t.Fatalf("rel=%q href=%q", rel, href)
	}
	if rel, _ := parseLinkHeader("garbage"); rel != "" {
		t.Fatalf("rel=%q, want empty", rel)
	}
}
