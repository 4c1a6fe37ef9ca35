package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvartyra/estate-crawler/internal/currency"
	"github.com/kvartyra/estate-crawler/internal/geo"
	"github.com/kvartyra/estate-crawler/internal/listing"
	"github.com/kvartyra/estate-crawler/internal/orchestrator"
	"github.com/kvartyra/estate-crawler/internal/reconcile"
	"github.com/kvartyra/estate-crawler/internal/source"
	"github.com/kvartyra/estate-crawler/internal/store"
)

type stubRates struct{}

func (stubRates) FetchRates(_ context.Context) (map[string]float64, error) {
	return map[string]float64{"USD": 41.0}, nil
}

type nilGeocoder struct{}

func (nilGeocoder) Lookup(_ context.Context, _ string) (*listing.GeoResult, error) {
	return nil, nil
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if strings.Contains(url, "/catalog/") {
		return []byte("https://fake.ua/flat/1"), nil
	}
	return []byte("Світла квартира з видом на парк"), nil
}

type fakeAdapter struct{}

func (fakeAdapter) Name() string { return "fake" }

func (fakeAdapter) CatalogURL(page int) string {
	return fmt.Sprintf("https://fake.ua/catalog/%d", page)
}

func (fakeAdapter) ParseCatalog(body []byte) ([]string, error) {
	return []string{string(body)}, nil
}

func (fakeAdapter) ParseListing(_ context.Context, body []byte, url string) (*listing.Raw, error) {
	return &listing.Raw{
		SourceURL: url,
		Title:     string(body),
		Price:     60000,
		Currency:  "USD",
		Address:   "Київ",
	}, nil
}

func newTestServer() *Server {
	gaz := geo.NewGazetteer()
	engine := reconcile.NewEngine(
		store.NewMemory(),
		geo.NewResolver(gaz, geo.NewNormalizer(gaz), nilGeocoder{}, nil),
		currency.NewConverter(stubRates{}, nil),
		nil)
	registry := source.NewRegistry(fakeAdapter{})
	orch := orchestrator.New(registry, fakeFetcher{}, engine, orchestrator.Config{
		PageDelay:  time.Millisecond,
		FetchDelay: time.Millisecond,
		URLTimeout: 5 * time.Second,
	}, nil)
	return NewServer(orch, registry, nil)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = doRequest(s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListSources(t *testing.T) {
	t.Parallel()
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/v1/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, []string{"fake"}, payload["sources"])
}

func TestStartRunValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/v1/runs", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/v1/runs", `{"source":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRunAndPollStatus(t *testing.T) {
	t.Parallel()
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/v1/runs", `{"source":"fake","pages":1,"workers":1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	runID := started["run_id"]
	require.NotEmpty(t, runID)

	var state struct {
		Source string `json:"source"`
		Status string `json:"status"`
		Stats  *struct {
			New int `json:"new"`
		} `json:"stats"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = doRequest(s, http.MethodGet, "/v1/runs/"+runID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		if state.Status != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s still running", runID)
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, "done", state.Status)
	assert.Equal(t, "fake", state.Source)
	require.NotNil(t, state.Stats)
	assert.Equal(t, 1, state.Stats.New)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/v1/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
