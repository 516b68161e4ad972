package humastar

import "fmt"

// Pager is implemented by response bodies that carry pagination metadata.
// The Links transformer turns them into first/prev/next/last Link headers.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is an offset/limit page of a ranked list.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Offset of the first item"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items of this page"`
}

// Paginate cuts one page out of items and maps it through fn. Data is never
// nil, so an out-of-range page encodes as an empty list.
func Paginate[S, T any](items []S, offset, limit int, fn func(S) T) PageBody[T] {
	page := PageBody[T]{Total: len(items), Offset: offset, Limit: limit, Data: []T{}}
	if offset < 0 || limit <= 0 {
		return page
	}
	for _, item := range items[min(offset, len(items)):min(offset+limit, len(items))] {
		page.Data = append(page.Data, fn(item))
	}
	return page
}

// PaginationLinks returns the RFC 8288 values for the first, prev, next and
// last pages. prev and next are left out at the edges.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	if p.Limit <= 0 {
		return nil
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, basePath, offset, p.Limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if next := p.Offset + p.Limit; next < p.Total {
		links = append(links, link(next, "next"))
	}
	last := max((p.Total-1)/p.Limit*p.Limit, 0)
	return append(links, link(last, "last"))
}
