package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/modules/normalization"
	"github.com/aristath/advisor/internal/modules/statistics"
	"github.com/aristath/advisor/internal/modules/universe"
)

type stubRegistry struct {
	base     string
	assets   []domain.Asset
	coverage []universe.Coverage
	err      error
}

func (s *stubRegistry) BaseCurrency() string { return s.base }

func (s *stubRegistry) AllAssets() ([]domain.Asset, error) {
	return s.assets, s.err
}

func (s *stubRegistry) AssetBySymbol(symbol string) (*domain.Asset, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, a := range s.assets {
		if a.Symbol == symbol {
			asset := a
			return &asset, nil
		}
	}
	return nil, nil
}

func (s *stubRegistry) Coverage() ([]universe.Coverage, error) {
	return s.coverage, nil
}

type stubStats struct {
	stats      *statistics.Statistics
	normalized *normalization.Result
	err        error
}

func (s *stubStats) UniverseStatistics(_ context.Context) (*statistics.Statistics, *normalization.Result, error) {
	return s.stats, s.normalized, s.err
}

func newFixture() (*stubRegistry, *stubStats) {
	registry := &stubRegistry{
		base: "ILS",
		assets: []domain.Asset{
			{Symbol: "TA35", Name: "TA-35 Index", Class: domain.ClassEquity, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
			{Symbol: "GOVBOND", Name: "Government Bonds", Class: domain.ClassBond, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
			{Symbol: "THIN", Name: "Thin Series", Class: domain.ClassEquity, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
		},
		coverage: []universe.Coverage{
			{Symbol: "TA35", Observations: 36, FirstDate: time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC), LastDate: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
			{Symbol: "GOVBOND", Observations: 36, FirstDate: time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC), LastDate: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
		},
	}

	stats := &stubStats{
		stats: &statistics.Statistics{
			Symbols: []string{"GOVBOND", "TA35"},
			Assets: map[string]statistics.AssetStatistics{
				"TA35":    {Symbol: "TA35", AnnualizedReturn: 0.08, AnnualizedVolatility: 0.18, SharpeRatio: 0.3, SharpeDefined: true, Observations: 36},
				"GOVBOND": {Symbol: "GOVBOND", AnnualizedReturn: 0.03, AnnualizedVolatility: 0.05, SharpeRatio: 0.1, SharpeDefined: true, Observations: 36},
			},
			Months:      36,
			WindowStart: "2021-01",
			WindowEnd:   "2023-12",
		},
		normalized: &normalization.Result{
			Dropped: []normalization.Drop{
				{Symbol: "THIN", Reason: "fewer than two usable observations"},
			},
		},
	}

	return registry, stats
}

func newTestRouter(registry Registry, stats StatsProvider) *chi.Mux {
	h := NewHandler(registry, stats, zerolog.Nop())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func getJSON(t *testing.T, router http.Handler, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHandleListAssets(t *testing.T) {
	registry, stats := newFixture()
	router := newTestRouter(registry, stats)

	var response struct {
		BaseCurrency string      `json:"base_currency"`
		WindowStart  string      `json:"window_start"`
		WindowEnd    string      `json:"window_end"`
		Months       int         `json:"months"`
		StatsError   string      `json:"stats_error"`
		Assets       []AssetView `json:"assets"`
	}
	rec := getJSON(t, router, "/assets", &response)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ILS", response.BaseCurrency)
	assert.Equal(t, "2021-01", response.WindowStart)
	assert.Equal(t, "2023-12", response.WindowEnd)
	assert.Equal(t, 36, response.Months)
	assert.Empty(t, response.StatsError)
	require.Len(t, response.Assets, 3)

	bySymbol := make(map[string]AssetView, len(response.Assets))
	for _, v := range response.Assets {
		bySymbol[v.Symbol] = v
	}

	require.NotNil(t, bySymbol["TA35"].Stats)
	assert.InDelta(t, 0.08, bySymbol["TA35"].Stats.AnnualizedReturn, 1e-9)
	assert.Empty(t, bySymbol["TA35"].DroppedReason)

	assert.Nil(t, bySymbol["THIN"].Stats)
	assert.Equal(t, "fewer than two usable observations", bySymbol["THIN"].DroppedReason)
}

func TestHandleListAssetsDegradesWithoutStats(t *testing.T) {
	registry, _ := newFixture()
	stats := &stubStats{err: errors.New("panel is empty")}
	router := newTestRouter(registry, stats)

	var response struct {
		StatsError string      `json:"stats_error"`
		Assets     []AssetView `json:"assets"`
	}
	rec := getJSON(t, router, "/assets", &response)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, response.StatsError)
	require.Len(t, response.Assets, 3)
	for _, v := range response.Assets {
		assert.Nil(t, v.Stats)
	}
}

func TestHandleGetAsset(t *testing.T) {
	registry, stats := newFixture()
	router := newTestRouter(registry, stats)

	var detail AssetDetail
	rec := getJSON(t, router, "/assets/TA35", &detail)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TA35", detail.Symbol)
	assert.Equal(t, domain.ClassEquity, detail.Class)
	require.NotNil(t, detail.Stats)
	assert.InDelta(t, 0.18, detail.Stats.AnnualizedVolatility, 1e-9)
	require.NotNil(t, detail.Coverage)
	assert.Equal(t, 36, detail.Coverage.Observations)
}

func TestHandleGetAssetNotFound(t *testing.T) {
	registry, stats := newFixture()
	router := newTestRouter(registry, stats)

	rec := getJSON(t, router, "/assets/NOPE", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Asset not found")
}

func TestHandleGetAssetRegistryFailure(t *testing.T) {
	registry, stats := newFixture()
	registry.err = errors.New("database locked")
	router := newTestRouter(registry, stats)

	rec := getJSON(t, router, "/assets/TA35", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
