package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/modules/advice"
	advicehandlers "github.com/aristath/advisor/internal/modules/advice/handlers"
	"github.com/aristath/advisor/internal/modules/normalization"
	"github.com/aristath/advisor/internal/modules/profiling"
	"github.com/aristath/advisor/internal/modules/statistics"
	"github.com/aristath/advisor/internal/modules/universe"
	universehandlers "github.com/aristath/advisor/internal/modules/universe/handlers"
)

type stubAdviser struct{}

func (stubAdviser) Advise(_ context.Context, _ advice.Request) (*advice.Result, error) {
	return &advice.Result{
		Profile:        &profiling.RiskProfile{Category: profiling.Moderate},
		Recommendation: &advice.Recommendation{ID: "rec-1", BaseCurrency: "ILS"},
	}, nil
}

type stubEvaluator struct{}

func (stubEvaluator) Evaluate(_ profiling.KYCResponse) (*profiling.RiskProfile, error) {
	return &profiling.RiskProfile{Category: profiling.Moderate}, nil
}

type stubRegistry struct{}

func (stubRegistry) BaseCurrency() string { return "ILS" }

func (stubRegistry) AllAssets() ([]domain.Asset, error) {
	return []domain.Asset{{Symbol: "TA35", Active: true}}, nil
}

func (stubRegistry) AssetBySymbol(symbol string) (*domain.Asset, error) {
	if symbol == "TA35" {
		return &domain.Asset{Symbol: "TA35", Active: true}, nil
	}
	return nil, nil
}

func (stubRegistry) Coverage() ([]universe.Coverage, error) { return nil, nil }

type stubStatsProvider struct{}

func (stubStatsProvider) UniverseStatistics(_ context.Context) (*statistics.Statistics, *normalization.Result, error) {
	return &statistics.Statistics{
		Symbols: []string{"TA35"},
		Assets: map[string]statistics.AssetStatistics{
			"TA35": {Symbol: "TA35", AnnualizedReturn: 0.07, SharpeDefined: true},
		},
		Months: 24,
	}, &normalization.Result{}, nil
}

func newTestServer() *Server {
	nop := zerolog.Nop()
	return New(Config{
		Log:            nop,
		Port:           0,
		DevMode:        true,
		AdviceHandlers: advicehandlers.NewHandler(stubAdviser{}, stubEvaluator{}, nop),
		AssetHandlers:  universehandlers.NewHandler(stubRegistry{}, stubStatsProvider{}, nop),
		SystemHandlers: NewSystemHandlers(nop, "", &stubMarket{}, &stubCache{}, nil, nil, ""),
	})
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "advisor", body["service"])
}

func TestRouteWiring(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"advice", http.MethodPost, "/api/advice", `{"risk_level": 5, "investment_amount": 1000}`, http.StatusOK},
		{"advice wrong method", http.MethodGet, "/api/advice", "", http.StatusMethodNotAllowed},
		{"profile", http.MethodPost, "/api/profile", `{}`, http.StatusOK},
		{"assets list", http.MethodGet, "/api/assets", "", http.StatusOK},
		{"asset detail", http.MethodGet, "/api/assets/TA35", "", http.StatusOK},
		{"asset missing", http.MethodGet, "/api/assets/NOPE", "", http.StatusNotFound},
		{"system status", http.MethodGet, "/api/system/status", "", http.StatusOK},
		{"system reload unavailable", http.MethodPost, "/api/system/reload", "", http.StatusServiceUnavailable},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}

			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
