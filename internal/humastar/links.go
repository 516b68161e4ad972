package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 link headers discovered from the OpenAPI spec, keyed
// by operation path. Its transformer must be installed in the huma.Config
// before the API is created; Discover runs once every route is registered.
type Links struct {
	mu    sync.RWMutex
	paths map[string][]string
}

// NewLinks returns an empty link set.
func NewLinks() *Links {
	return &Links{paths: map[string][]string{}}
}

type pathInfo struct {
	path string
	tags []string
}

// Discover walks the OpenAPI spec and generates hypermedia links. Paths
// tagged "live" (Datastar SSE endpoints) are left out.
func (l *Links) Discover(api huma.API) {
	oapi := api.OpenAPI()
	found := map[string][]string{}
	add := func(from, to, rel string) {
		val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		if !slices.Contains(found[from], val) {
			found[from] = append(found[from], val)
		}
	}

	var collections, items []pathInfo
	for p, pi := range oapi.Paths {
		tags := primaryTags(pi)
		if slices.Contains(tags, "live") {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, pathInfo{p, tags})
		} else {
			collections = append(collections, pathInfo{p, tags})
		}
	}
	// Map iteration is random; keep headers stable.
	byPath := func(a, b pathInfo) int { return strings.Compare(a.path, b.path) }
	slices.SortFunc(collections, byPath)
	slices.SortFunc(items, byPath)

	for _, item := range items {
		parent := path.Dir(item.path)
		if _, ok := oapi.Paths[parent]; ok {
			add(item.path, parent, "collection")
			add(item.path, parent, "up")
		}
		// Nested resources such as /sessions/{id}/style.
		for _, sub := range items {
			if path.Dir(sub.path) == item.path {
				add(item.path, sub.path, lastSegment(sub.path))
			}
		}
		if pi := oapi.Paths[item.path]; pi.Put != nil || pi.Patch != nil {
			add(item.path, item.path, "edit")
		}
	}

	_, hasQuery := oapi.Paths["/api/v1/query"]
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item.path) == coll.path {
				add(coll.path, item.path, "item")
			}
		}
		if coll.path != "/health" {
			add(coll.path, "/health", "up")
		}
		if oapi.Paths[coll.path].Post != nil {
			add(coll.path, coll.path, "create-form")
		}
		for _, other := range collections {
			if other.path != coll.path && sharedTag(coll.tags, other.tags) {
				add(coll.path, other.path, lastSegment(other.path))
			}
		}
	}

	// /health is the entry point: every collection plus discovery rels.
	for _, coll := range collections {
		if coll.path != "/health" {
			add("/health", coll.path, lastSegment(coll.path))
		}
	}
	add("/health", "/openapi.json", "describedby")
	add("/health", "/openapi.json", "service-desc")
	add("/health", "/docs", "service-doc")
	if hasQuery {
		add("/health", "/api/v1/query", "search")
	}

	for p, headers := range found {
		for _, op := range operationsOf(oapi.Paths[p]) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}

	l.mu.Lock()
	l.paths = found
	l.mu.Unlock()
}

// For returns the discovered link headers of an operation path.
func (l *Links) For(opPath string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.paths[opPath])
}

// Root returns the entry point links, for use by non-Huma handlers.
func (l *Links) Root() []string {
	return l.For("/health")
}

// Transformer returns a Huma Transformer that writes the discovered links,
// a self link for item endpoints, and the pagination and action links of
// response bodies implementing Pager or Actor.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	if pi == nil {
		return nil
	}
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func sharedTag(a, b []string) bool {
	for _, t := range a {
		if slices.Contains(b, t) {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}

// injectResponseLinks documents the links on the operation's success
// response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

// parseLinkHeader splits `<url>; rel="name"`.
func parseLinkHeader(h string) (rel, href string) {
	target, params, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	params = strings.TrimSpace(params)
	if v, ok := strings.CutPrefix(params, "rel="); ok {
		rel = strings.Trim(v, `"`)
	}
	return rel, href
}
