package universe

import (
	"fmt"
	"time"

	"github.com/aristath/advisor/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultRiskFreeSeries is the rate series used when none is configured:
// the Bank of Israel policy rate.
const DefaultRiskFreeSeries = "BOI"

// Service is the universe module facade: the asset registry plus the raw
// series the normalization pipeline consumes.
type Service struct {
	assets         *AssetRepository
	store          *HistoryStore
	importer       *Importer
	baseCurrency   string
	riskFreeSeries string
	log            zerolog.Logger
}

// ServiceConfig holds universe service configuration.
type ServiceConfig struct {
	BaseCurrency   string
	RiskFreeSeries string // Rate series name, defaults to DefaultRiskFreeSeries
}

// NewService creates the universe service.
func NewService(assets *AssetRepository, store *HistoryStore, cfg ServiceConfig, log zerolog.Logger) *Service {
	riskFree := cfg.RiskFreeSeries
	if riskFree == "" {
		riskFree = DefaultRiskFreeSeries
	}

	return &Service{
		assets:         assets,
		store:          store,
		importer:       NewImporter(store, log),
		baseCurrency:   cfg.BaseCurrency,
		riskFreeSeries: riskFree,
		log:            log.With().Str("component", "universe").Logger(),
	}
}

// BaseCurrency returns the reporting currency of the universe.
func (s *Service) BaseCurrency() string {
	return s.baseCurrency
}

// ActiveAssets returns the investable universe: active assets ordered
// by symbol.
func (s *Service) ActiveAssets() ([]domain.Asset, error) {
	return s.assets.List(true)
}

// AllAssets returns every registered asset ordered by symbol.
func (s *Service) AllAssets() ([]domain.Asset, error) {
	return s.assets.List(false)
}

// AssetBySymbol returns one asset, or nil if unknown.
func (s *Service) AssetBySymbol(symbol string) (*domain.Asset, error) {
	return s.assets.GetBySymbol(symbol)
}

// RawSeriesFor fetches the stored raw price series for an asset.
func (s *Service) RawSeriesFor(asset domain.Asset) (domain.RawSeries, error) {
	points, err := s.store.PriceSeries(asset.Symbol)
	if err != nil {
		return domain.RawSeries{}, err
	}

	return domain.RawSeries{
		Symbol:   asset.Symbol,
		Currency: asset.Currency,
		Kind:     domain.SeriesPrice,
		Points:   points,
	}, nil
}

// FXSeriesFor fetches the fixing series converting the given currency
// into the base currency. The stored pair is named <CCY><BASE>, quoted
// as base-currency units per one unit of the foreign currency.
func (s *Service) FXSeriesFor(currency string) ([]domain.PricePoint, error) {
	if currency == s.baseCurrency {
		return nil, fmt.Errorf("no FX series needed for the base currency %s", s.baseCurrency)
	}

	pair := currency + s.baseCurrency
	points, err := s.store.FXSeries(pair)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no FX data for pair %s", pair)
	}

	return points, nil
}

// RiskFreeRawSeries fetches the configured risk-free rate series as
// annualized percent levels.
func (s *Service) RiskFreeRawSeries() (domain.RawSeries, error) {
	points, err := s.store.RateSeries(s.riskFreeSeries)
	if err != nil {
		return domain.RawSeries{}, err
	}

	return domain.RawSeries{
		Symbol:   s.riskFreeSeries,
		Currency: s.baseCurrency,
		Kind:     domain.SeriesRate,
		Points:   points,
	}, nil
}

// Reload re-imports the raw data directory.
func (s *Service) Reload(dir string) (*ImportResult, error) {
	return s.importer.ImportDir(dir)
}

// LastImportedAt returns the completion time of the latest import, or
// nil when no import has run.
func (s *Service) LastImportedAt() (*time.Time, error) {
	run, err := s.store.LastImportRun()
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}
	t := run.CompletedAt
	return &t, nil
}

// Coverage reports stored price observations per symbol.
func (s *Service) Coverage() ([]Coverage, error) {
	return s.store.PriceCoverage()
}
