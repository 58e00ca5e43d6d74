// Package handlers exposes the asset registry over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/modules/normalization"
	"github.com/aristath/advisor/internal/modules/statistics"
	"github.com/aristath/advisor/internal/modules/universe"
)

// Registry is the slice of the universe service the asset endpoints
// read. *universe.Service satisfies it.
type Registry interface {
	BaseCurrency() string
	AllAssets() ([]domain.Asset, error)
	AssetBySymbol(symbol string) (*domain.Asset, error)
	Coverage() ([]universe.Coverage, error)
}

// StatsProvider computes statistics over the active universe.
// *advice.Service satisfies it.
type StatsProvider interface {
	UniverseStatistics(ctx context.Context) (*statistics.Statistics, *normalization.Result, error)
}

// AssetView is one asset in the listing, annotated with annualized
// figures when the asset made it into the shared statistics window.
type AssetView struct {
	domain.Asset
	Stats         *statistics.AssetStatistics `json:"stats,omitempty"`
	DroppedReason string                      `json:"dropped_reason,omitempty"`
}

// AssetDetail adds stored-price coverage to the view.
type AssetDetail struct {
	AssetView
	Coverage *universe.Coverage `json:"coverage,omitempty"`
}

type listResponse struct {
	BaseCurrency string      `json:"base_currency"`
	WindowStart  string      `json:"window_start,omitempty"`
	WindowEnd    string      `json:"window_end,omitempty"`
	Months       int         `json:"months,omitempty"`
	StatsError   string      `json:"stats_error,omitempty"`
	Assets       []AssetView `json:"assets"`
}

// Handler serves the asset registry endpoints.
type Handler struct {
	registry Registry
	stats    StatsProvider
	log      zerolog.Logger
}

// NewHandler creates the assets handler.
func NewHandler(registry Registry, stats StatsProvider, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		stats:    stats,
		log:      log.With().Str("handler", "assets").Logger(),
	}
}

// RegisterRoutes mounts the asset endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.HandleListAssets)
		r.Get("/{symbol}", h.HandleGetAsset)
	})
}

// HandleListAssets returns every registered asset with its annualized
// summary figures. Assets that were dropped during normalization carry
// the drop reason instead; if statistics cannot be computed at all the
// registry is still served, with the failure spelled out.
// GET /api/assets
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.registry.AllAssets()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load asset registry")
		http.Error(w, "Failed to load asset registry", http.StatusInternalServerError)
		return
	}

	response := listResponse{
		BaseCurrency: h.registry.BaseCurrency(),
		Assets:       make([]AssetView, 0, len(assets)),
	}

	stats, dropped := h.universeStats(r.Context())
	if stats != nil {
		response.WindowStart = stats.WindowStart
		response.WindowEnd = stats.WindowEnd
		response.Months = stats.Months
	} else if len(assets) > 0 {
		response.StatsError = "statistics unavailable for the current universe"
	}

	for _, asset := range assets {
		response.Assets = append(response.Assets, h.assetView(asset, stats, dropped))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response) // Ignore encode error - already committed response
}

// HandleGetAsset returns one asset with its summary figures and the
// stored-price coverage behind them.
// GET /api/assets/{symbol}
func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	asset, err := h.registry.AssetBySymbol(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load asset")
		http.Error(w, "Failed to load asset", http.StatusInternalServerError)
		return
	}
	if asset == nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}

	stats, dropped := h.universeStats(r.Context())
	detail := AssetDetail{AssetView: h.assetView(*asset, stats, dropped)}

	if coverage, err := h.registry.Coverage(); err == nil {
		for i := range coverage {
			if coverage[i].Symbol == symbol {
				detail.Coverage = &coverage[i]
				break
			}
		}
	} else {
		h.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to load price coverage")
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(detail) // Ignore encode error - already committed response
}

// universeStats computes the shared-window statistics, degrading to
// nil when the universe cannot be normalized. The listing must never
// fail just because the figures are not derivable.
func (h *Handler) universeStats(ctx context.Context) (*statistics.Statistics, map[string]string) {
	stats, normalized, err := h.stats.UniverseStatistics(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Asset statistics unavailable")
		return nil, nil
	}

	dropped := make(map[string]string, len(normalized.Dropped))
	for _, d := range normalized.Dropped {
		dropped[d.Symbol] = d.Reason
	}
	return stats, dropped
}

func (h *Handler) assetView(asset domain.Asset, stats *statistics.Statistics, dropped map[string]string) AssetView {
	view := AssetView{Asset: asset}
	if stats != nil {
		if as, ok := stats.Assets[asset.Symbol]; ok {
			view.Stats = &as
		} else if reason, ok := dropped[asset.Symbol]; ok {
			view.DroppedReason = reason
		}
	}
	return view
}
