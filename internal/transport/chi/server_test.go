package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchkit"
	"github.com/kailas-cloud/searchkit/internal/db"
	"github.com/kailas-cloud/searchkit/internal/db/embedded"
	healthuc "github.com/kailas-cloud/searchkit/internal/usecase/health"
)

type fixture struct {
	id, title, status, tag string
}

func newTestRouter(t *testing.T, debug bool) http.Handler {
	t.Helper()
	store, err := embedded.Open(embedded.Config{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	posts := []fixture{
		{"1", "Learning Rust the hard way", "published", "rust"},
		{"2", "Go concurrency patterns", "published", "go"},
		{"3", "Rust and Go compared", "draft", "go"},
	}
	for _, p := range posts {
		src := db.NewSource()
		src.Set("id", p.id)
		src.Set("title", p.title)
		src.Set("status", p.status)
		src.Set("tag", p.tag)
		if err := store.Index(context.Background(), "blog", "post", p.id, src); err != nil {
			t.Fatalf("index %s: %v", p.id, err)
		}
	}

	client := searchkit.New(
		searchkit.WithFactory(store.Factory()),
		searchkit.WithDefaultIndexes("blog"),
		searchkit.WithDebug(debug),
	)
	srv := NewServer(client, healthuc.New(store, nil), zap.NewNop(), debug)

	r := chi.NewRouter()
	r.Use(QueryLogMiddleware)
	srv.Register(r)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSearch_Dicts(t *testing.T) {
	h := newTestRouter(t, false)
	rr := post(t, h, "/search", `{
		"query": {"title__text": "rust"},
		"filter": {"status": "published"},
		"mode": "dict",
		"fields": ["title"]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	item := resp.Items[0]
	if item.ID != "1" || item.Fields["title"] != "Learning Rust the hard way" {
		t.Errorf("item = %+v", item)
	}
	if item.Score == nil || item.DocType == nil || *item.DocType != "post" {
		t.Errorf("metadata = %+v", item)
	}
	if resp.Debug != nil {
		t.Errorf("debug panel without debug: %+v", resp.Debug)
	}
}

func TestSearch_TuplesFacetsAndPanel(t *testing.T) {
	h := newTestRouter(t, true)
	rr := post(t, h, "/search", `{
		"mode": "list",
		"fields": ["tag"],
		"order_by": ["id"],
		"facets": [{"fields": ["tag"]}]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 3 || resp.Items[0].Values[0] != "rust" {
		t.Errorf("items = %+v", resp.Items)
	}
	tags, ok := resp.Facets["tag"]
	if !ok || len(tags.Terms) != 2 || tags.Terms[0].Count != 2 {
		t.Errorf("facets = %+v", resp.Facets)
	}
	if resp.Debug == nil || len(resp.Debug.Queries) != 1 {
		t.Fatalf("debug = %+v", resp.Debug)
	}
	if !strings.HasPrefix(resp.Debug.Summary, "1 query in ") {
		t.Errorf("summary = %q", resp.Debug.Summary)
	}
}

func TestCompile(t *testing.T) {
	h := newTestRouter(t, false)
	rr := post(t, h, "/search/compile", `{"filter": {"status": "published"}, "size": 5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var doc map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["size"] != float64(5) {
		t.Errorf("size = %v", doc["size"])
	}
	if _, ok := doc["filter"]; !ok {
		t.Errorf("doc = %v", doc)
	}
}

func TestCount(t *testing.T) {
	h := newTestRouter(t, false)
	rr := post(t, h, "/search/count", `{"filter": {"tag": "go"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var body struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d", body.Count)
	}
}

func TestSearch_Errors(t *testing.T) {
	h := newTestRouter(t, false)
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"bad json", `{`, http.StatusBadRequest, CodeBadRequest},
		{"bad mode", `{"mode": "tuple"}`, http.StatusBadRequest, CodeBadRequest},
		{"bad action", `{"query": {"title__nope": "x"}}`, http.StatusBadRequest, CodeValidationFailed},
		{"unknown index", `{"indexes": ["missing"]}`, http.StatusNotFound, CodeIndexNotFound},
		{"no lookup", `{"target": "post"}`, http.StatusBadRequest, CodeValidationFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, h, "/search", tc.body)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rr.Code, tc.wantCode, rr.Body)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if errResp.Code != tc.wantErr {
				t.Errorf("code = %s, want %s", errResp.Code, tc.wantErr)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestRouter(t, false)
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}
