package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/imgindex/internal/api/handlers"
	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/internal/search"
	"github.com/your-org/imgindex/internal/storage"
	"github.com/your-org/imgindex/pkg/dto"
)

type brokenSearcher struct{}

func (brokenSearcher) Search(context.Context, string) ([]models.ImageRecord, error) {
	return nil, errors.New("scan: table not found")
}

func seededSearch(t *testing.T) *search.Service {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.PutImage(context.Background(), &models.ImageRecord{
		ImageID:         "cat.jpg",
		URL:             "https://photos.s3.us-east-1.amazonaws.com/cat.jpg",
		SearchableTerms: "cat dog",
		Status:          models.StatusProcessed,
	}))
	return search.New(store, storage.S3URLs{Region: "us-east-1"}, "photos")
}

func do(r http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearchEndpoint(t *testing.T) {
	r := NewRouter(RouterConfig{Searcher: seededSearch(t)})

	w := do(r, http.MethodGet, "/v1/images/search?q=dog", map[string]string{"Origin": "https://gallery.example"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var body dto.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Images, 1)
	assert.Equal(t, "cat.jpg", body.Images[0].ImageID)
}

func TestSearchEndpointNoMatch(t *testing.T) {
	r := NewRouter(RouterConfig{Searcher: seededSearch(t)})

	w := do(r, http.MethodGet, "/v1/images/search?q=zebra", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"images":[]}`, w.Body.String())
}

func TestSearchEndpointFailure(t *testing.T) {
	r := NewRouter(RouterConfig{Searcher: brokenSearcher{}})

	w := do(r, http.MethodGet, "/v1/images/search?q=cat", map[string]string{"Origin": "https://gallery.example"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"error":"scan: table not found"}`, w.Body.String())
}

func TestSearchEndpointRequiresKey(t *testing.T) {
	r := NewRouter(RouterConfig{APIKey: "secret", Searcher: seededSearch(t)})

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/v1/images/search?q=cat", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/v1/images/search?q=cat", map[string]string{"X-API-Key": "secret"}).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", nil).Code)
}

func TestReadyz(t *testing.T) {
	ok := handlers.Check{Name: "store", Ping: func(context.Context) error { return nil }}
	down := handlers.Check{Name: "nats", Ping: func(context.Context) error { return errors.New("nats not connected") }}

	r := NewRouter(RouterConfig{Searcher: seededSearch(t), Checks: []handlers.Check{ok}})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/readyz", nil).Code)

	r = NewRouter(RouterConfig{Searcher: seededSearch(t), Checks: []handlers.Check{ok, down}})
	w := do(r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "nats not connected")
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewRouter(RouterConfig{Searcher: seededSearch(t)})
	do(r, http.MethodGet, "/v1/images/search?q=cat", nil)

	w := do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "imgindex_http_request_duration_seconds")
}
