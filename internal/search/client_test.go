package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
)

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	search   string
	status   int
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	key := r.Method + " " + r.URL.Path
	f.requests = append(f.requests, key)
	f.bodies[key] = string(body)
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"name":"test","cluster_name":"test","version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, `{"error":"boom"}`)
			return
		}
		_, _ = io.WriteString(w, f.search)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	default:
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	}
}

func newClient(t *testing.T, f *fakeES) *Client {
	t.Helper()
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{URL: srv.URL, Index: "books"})
	require.NoError(t, err)
	return c
}

func TestSearch_ParsesIdsAndTotal(t *testing.T) {
	f := &fakeES{search: `{"hits":{"total":{"value":42},"hits":[{"_source":{"id":7}},{"_source":{"id":3}}]}}`}
	c := newClient(t, f)

	cat := uint(2)
	minPrice := int64(100)
	total, ids, err := c.Search(context.Background(), domain.BookFilter{Query: "dune", CategoryID: &cat, MinPrice: &minPrice}, 10, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 42, total)
	assert.Equal(t, []uint{7, 3}, ids)

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.bodies["POST /books/_search"]), &sent))
	assert.EqualValues(t, 10, sent["from"])
	assert.EqualValues(t, 5, sent["size"])

	raw := f.bodies["POST /books/_search"]
	assert.Contains(t, raw, `"multi_match"`)
	assert.Contains(t, raw, `"title^2"`)
	assert.Contains(t, raw, `"category_id":2`)
	assert.Contains(t, raw, `"gte":100`)
	assert.NotContains(t, raw, `"lte"`)
}

func TestSearch_ErrorStatus(t *testing.T) {
	f := &fakeES{status: http.StatusServiceUnavailable}
	c := newClient(t, f)

	_, _, err := c.Search(context.Background(), domain.BookFilter{Query: "x"}, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestIndexAndDelete(t *testing.T) {
	f := &fakeES{}
	c := newClient(t, f)
	isbn := "9780441013593"

	require.NoError(t, c.IndexBook(context.Background(), models.Book{ID: 5, Title: "Dune", ISBN: &isbn, IsActive: true}))
	require.NoError(t, c.DeleteBook(context.Background(), 5), "missing documents are fine")

	assert.Contains(t, f.requests, "PUT /books/_doc/5")
	assert.Contains(t, f.requests, "DELETE /books/_doc/5")
	assert.Contains(t, f.bodies["PUT /books/_doc/5"], `"isbn":"9780441013593"`)
}

func TestBuildQuery_MatchAllWithoutTerm(t *testing.T) {
	q := buildQuery(domain.BookFilter{Author: "Herbert"}, 0, 10)
	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"match_all"`)
	assert.Contains(t, string(raw), `"author":"Herbert"`)
	assert.Contains(t, string(raw), `"is_active":true`)
}
