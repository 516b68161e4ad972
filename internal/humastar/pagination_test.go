package humastar

import (
	"slices"
	"strings"
	"testing"
)

func TestPaginationLinks(t *testing.T) {
	tests := []struct {
		name   string
		page   PageBody[int]
		want   []string
		absent []string
	}{
		{
			name: "first page",
			page: PageBody[int]{Total: 25, Offset: 0, Limit: 10},
			want: []string{
				`</c?offset=0&limit=10>; rel="first"`,
				`</c?offset=10&limit=10>; rel="next"`,
				`</c?offset=20&limit=10>; rel="last"`,
			},
			absent: []string{"prev"},
		},
		{
			name: "last page",
			page: PageBody[int]{Total: 25, Offset: 20, Limit: 10},
			want: []string{
				`</c?offset=10&limit=10>; rel="prev"`,
				`</c?offset=20&limit=10>; rel="last"`,
			},
			absent: []string{"next"},
		},
		{
			name: "empty",
			page: PageBody[int]{Total: 0, Offset: 0, Limit: 10},
			want: []string{`</c?offset=0&limit=10>; rel="last"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := tt.page.PaginationLinks("/c")
			for _, w := range tt.want {
				if !slices.Contains(links, w) {
					t.Errorf("links=%v, missing %s", links, w)
				}
			}
			for _, rel := range tt.absent {
				for _, l := range links {
					if strings.HasSuffix(l, `rel="`+rel+`"`) {
						t.Errorf("unexpected %s link: %s", rel, l)
					}
				}
			}
		})
	}
}

func TestActionsFor(t *testing.T) {
	actions := ActionsFor("s1", []ActionDef{
		{Rel: "click", Pattern: "/api/v1/sessions/%s/click", Method: "POST", Title: "Click the map"},
	})
	want := `</api/v1/sessions/s1/click>; rel="click"; method="POST"; title="Click the map"`
	if len(actions) != 1 || actions[0].LinkHeader() != want {
		t.Fatalf("actions=%+v, want %s", actions, want)
	}
}

func TestPaginate(t *testing.T) {
	double := func(n int) int { return n * 2 }
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, 3, 10, double)
	if page.Total != 5 || !slices.Equal(page.Data, []int{8, 10}) {
		t.Fatalf("page=%+v, want total 5 and [8 10]", page)
	}
	past := Paginate(items, 9, 2, double)
	if past.Data == nil || len(past.Data) != 0 {
		t.Fatalf("data=%v, want empty non-nil", past.Data)
	}
	if links := (PageBody[int]{Total: 5}).PaginationLinks("/c"); links != nil {
		t.Fatalf("links=%v for zero limit", links)
	}
}
