package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   Params
	}{
		{"defaults", "/", Params{Limit: DefaultLimit, Offset: 0}},
		{"custom values", "/?limit=50&offset=10", Params{Limit: 50, Offset: 10}},
		{"max limit", "/?limit=500", Params{Limit: MaxLimit, Offset: 0}},
		{"negative offset", "/?offset=-5", Params{Limit: DefaultLimit, Offset: 0}},
		{"garbage limit", "/?limit=abc", Params{Limit: DefaultLimit, Offset: 0}},
		{"page", "/?page=3&limit=10", Params{Limit: 10, Offset: 20}},
		{"first page", "/?page=1", Params{Limit: DefaultLimit, Offset: 0}},
		{"offset wins over page", "/?page=3&offset=4&limit=10", Params{Limit: 10, Offset: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := paramsFor(tt.target); got != tt.want {
				t.Errorf("FromContext(%s) = %+v, want %+v", tt.target, got, tt.want)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b", "c"}
	r := NewResponse(data, 10, Params{Limit: 3, Offset: 0})

	if r.Total != 10 {
		t.Errorf("expected total 10, got %d", r.Total)
	}
	if !r.HasMore {
		t.Error("expected hasMore to be true when offset+limit < total")
	}

	r2 := NewResponse(data, 3, Params{Limit: 3, Offset: 0})
	if r2.HasMore {
		t.Error("expected hasMore to be false when offset+limit >= total")
	}
}

func TestNewResponse_NilDataIsEmptyArray(t *testing.T) {
	var data []int
	b, err := json.Marshal(NewResponse(data, 0, Params{Limit: 20}))
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	arr, ok := out["data"].([]any)
	if !ok || len(arr) != 0 {
		t.Errorf("expected data to be [], got %s", b)
	}
	if _, ok := out["next"]; ok {
		t.Error("next should be omitted")
	}
}

func TestResponse_WithLinks(t *testing.T) {
	u, _ := url.Parse("/api/patients?search=ann&page=2&limit=10")

	r := NewResponse([]int{1}, 25, Params{Limit: 10, Offset: 10}).WithLinks(u)
	if r.Next != "/api/patients?limit=10&offset=20&search=ann" {
		t.Errorf("unexpected next %q", r.Next)
	}
	if r.Prev != "/api/patients?limit=10&offset=0&search=ann" {
		t.Errorf("unexpected prev %q", r.Prev)
	}

	last := NewResponse([]int{1}, 25, Params{Limit: 10, Offset: 20}).WithLinks(u)
	if last.Next != "" {
		t.Errorf("expected no next link on last page, got %q", last.Next)
	}

	first := NewResponse([]int{1}, 25, Params{Limit: 10}).WithLinks(u)
	if first.Prev != "" {
		t.Errorf("expected no prev link on first page, got %q", first.Prev)
	}
}

func TestParams_HasNext(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   bool
	}{
		{"more results", Params{Limit: 10, Offset: 0}, 25, true},
		{"exact end", Params{Limit: 10, Offset: 15}, 25, false},
		{"past end", Params{Limit: 10, Offset: 30}, 25, false},
		{"no results", Params{Limit: 10, Offset: 0}, 0, false},
		{"last partial page", Params{Limit: 10, Offset: 20}, 25, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.HasNext(tt.total); got != tt.want {
				t.Errorf("HasNext(%d) = %v, want %v", tt.total, got, tt.want)
			}
		})
	}
}

func TestParams_PreviousOffset(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   int
	}{
		{"normal", Params{Limit: 10, Offset: 20}, 10},
		{"clamp to zero", Params{Limit: 10, Offset: 5}, 0},
		{"exact", Params{Limit: 10, Offset: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.PreviousOffset(); got != tt.want {
				t.Errorf("PreviousOffset() = %d, want %d", got, tt.want)
			}
		})
	}
}
