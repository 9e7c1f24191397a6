package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/sectional/internal/airports"
	"github.com/yegors/sectional/internal/config"
	"github.com/yegors/sectional/internal/display"
	"github.com/yegors/sectional/internal/metar"
	"github.com/yegors/sectional/internal/websocket"
	"github.com/yegors/sectional/pkg/logger"
)

// cannedFetcher serves fixed raw reports.
type cannedFetcher struct {
	reports map[string]string
}

func (f *cannedFetcher) Fetch(ctx context.Context, ids []string) map[string]metar.FetchResult {
	out := make(map[string]metar.FetchResult, len(ids))
	for _, id := range ids {
		if inner, ok := f.reports[id]; ok {
			out[id] = metar.FetchResult{Report: &metar.RawReport{
				Airport: id,
				Payload: []byte(`<METAR><station_id>` + id + `</station_id>` + inner + `</METAR>`),
			}}
		} else {
			out[id] = metar.FetchResult{Err: metar.ErrNoData}
		}
	}
	return out
}

type testFixture struct {
	handler *Handler
	service *metar.Service
	router  http.Handler
}

func newTestFixture(t *testing.T, start bool) *testFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Airports.IDs = []string{"KBOS", "NULL", "KPVD"}

	catalog := airports.NewCatalog(cfg.Airports.IDs)
	palette := display.NewPalette(cfg.Display)
	log := logger.NewNop()

	fetcher := &cannedFetcher{reports: map[string]string{
		"KBOS": `<visibility_statute_mi>10</visibility_statute_mi>`,
	}}
	pipeline := metar.NewPipeline(fetcher, catalog.Fetchable(), metar.Policy{}, nil, log)
	service := metar.NewService(metar.ServiceConfig{
		RefreshInterval: time.Hour,
		CycleTimeout:    time.Second,
	}, pipeline, log)

	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	handler := NewHandler(service, catalog, palette, cfg, log, wsServer)
	router := NewRouter(handler, cfg, log, wsServer)

	if start {
		require.NoError(t, service.Start())
		t.Cleanup(func() { service.Stop() })
		require.NotNil(t, service.Latest())
	}

	return &testFixture{handler: handler, service: service, router: router}
}

func TestGetRatings(t *testing.T) {
	fx := newTestFixture(t, true)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ratings", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RatingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Placeholders are not rated; both real airports are.
	require.Len(t, resp.Ratings, 2)
	assert.Equal(t, "KBOS", resp.Ratings[0].Airport)
	assert.Equal(t, "VFR", resp.Ratings[0].Category)
	assert.Equal(t, display.Color{R: 0, G: 255, B: 0}, resp.Ratings[0].Color)

	assert.Equal(t, "KPVD", resp.Ratings[1].Airport)
	assert.Equal(t, "NOWX", resp.Ratings[1].Category)

	assert.Equal(t, 1, resp.Counts["VFR"])
	assert.Equal(t, 1, resp.Counts["NOWX"])
	assert.False(t, resp.Restored)
	require.NotNil(t, resp.UpdatedAt)
}

func TestGetRatingSingle(t *testing.T) {
	fx := newTestFixture(t, true)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ratings/KBOS", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entry RatingEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "KBOS", entry.Airport)
	assert.Equal(t, "VFR", entry.Category)
	assert.Equal(t, "CALCULATED", entry.Source)
}

func TestGetRatingNotFound(t *testing.T) {
	fx := newTestFixture(t, true)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ratings/KZZZ", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetColors(t *testing.T) {
	fx := newTestFixture(t, false)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/colors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var colors map[string]display.Color
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &colors))
	assert.Equal(t, display.Color{R: 255, G: 0, B: 0}, colors["IFR"])
}

func TestGetStatus(t *testing.T) {
	fx := newTestFixture(t, true)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["started"])
	assert.Contains(t, status, "last_cycle")
}

func TestPostRefresh(t *testing.T) {
	fx := newTestFixture(t, true)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRestoredSnapshotServedBeforeFirstCycle(t *testing.T) {
	fx := newTestFixture(t, false)

	restoredAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fx.handler.SetRestoredSnapshot(map[string]metar.RatingRecord{
		"KBOS": {Airport: "KBOS", Category: metar.CategoryMVFR, Source: metar.SourceAPI},
	}, restoredAt)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ratings", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RatingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Restored)
	assert.Equal(t, "MVFR", resp.Ratings[0].Category)
	// Airports missing from the snapshot fall back to NOWX.
	assert.Equal(t, "NOWX", resp.Ratings[1].Category)
}
