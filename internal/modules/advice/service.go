// Package advice orchestrates the full advisory pipeline: profile the
// investor, normalize the selected universe, compute its statistics,
// optimize a portfolio and replay its history. The service is
// stateless across requests; every run works from the injected
// collaborators and the data they read at that moment.
package advice

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/modules/normalization"
	"github.com/aristath/advisor/internal/modules/optimization"
	"github.com/aristath/advisor/internal/modules/performance"
	"github.com/aristath/advisor/internal/modules/profiling"
	"github.com/aristath/advisor/internal/modules/statistics"
)

// MinUniverseSize is the smallest universe worth optimizing: a single
// asset can never satisfy the concentration cap.
const MinUniverseSize = 2

// AssetSource is the slice of the universe registry the advisor reads.
// *universe.Service satisfies it.
type AssetSource interface {
	BaseCurrency() string
	ActiveAssets() ([]domain.Asset, error)
	AssetBySymbol(symbol string) (*domain.Asset, error)
}

// Service runs the advisory pipeline.
type Service struct {
	assets     AssetSource
	normalizer *normalization.Normalizer
	stats      *statistics.Engine
	profiler   *profiling.Profiler
	optimizer  *optimization.Service
	replayer   *performance.Reconstructor
	analyzer   *performance.Analyzer
	log        zerolog.Logger
}

// NewService wires the advisory facade.
func NewService(
	assets AssetSource,
	normalizer *normalization.Normalizer,
	stats *statistics.Engine,
	profiler *profiling.Profiler,
	optimizer *optimization.Service,
	replayer *performance.Reconstructor,
	analyzer *performance.Analyzer,
	log zerolog.Logger,
) *Service {
	return &Service{
		assets:     assets,
		normalizer: normalizer,
		stats:      stats,
		profiler:   profiler,
		optimizer:  optimizer,
		replayer:   replayer,
		analyzer:   analyzer,
		log:        log.With().Str("component", "advice").Logger(),
	}
}

// Advise runs the pipeline for one request. A questionnaire with
// error-severity inconsistencies yields a blocked result, not an
// error: the caller gets the profile and its violations back so the
// client can resolve them.
func (s *Service) Advise(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	profile, err := s.resolveProfile(req)
	if err != nil {
		return nil, err
	}

	if !profile.Eligible() {
		s.log.Warn().
			Str("category", string(profile.Category)).
			Int("violations", len(profile.Errors())).
			Msg("Advisory run blocked by inconsistent questionnaire")
		return &Result{
			Profile:    profile,
			Blocked:    true,
			Violations: profile.Errors(),
		}, nil
	}

	selected, err := s.selectUniverse(req.Symbols)
	if err != nil {
		return nil, err
	}

	normalized, err := s.normalizer.NormalizeUniverse(ctx, selected, normalization.Window{})
	if err != nil {
		return nil, fmt.Errorf("normalize universe: %w", err)
	}
	if len(normalized.Panel.Symbols) < MinUniverseSize {
		return nil, fmt.Errorf("only %d of %d assets survived normalization; need at least %d",
			len(normalized.Panel.Symbols), len(selected), MinUniverseSize)
	}

	stats, err := s.stats.Compute(normalized.Panel, normalized.RiskFree)
	if err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}

	portfolio, err := s.optimizer.Optimize(ctx, optimization.Request{
		Profile:      profile,
		Assets:       selected,
		Stats:        stats,
		HorizonYears: req.HorizonYears,
	})
	if err != nil {
		return nil, fmt.Errorf("optimize portfolio: %w", err)
	}

	weights := portfolio.WeightsBySymbol()

	replay, err := s.replayer.Reconstruct(normalized.Panel, weights)
	if err != nil {
		return nil, fmt.Errorf("reconstruct history: %w", err)
	}

	analytics, err := s.analyzer.Analyze(stats, weights, replay)
	if err != nil {
		return nil, fmt.Errorf("analyze portfolio: %w", err)
	}

	warnings := normalized.Warnings
	if portfolio.Relaxed {
		warnings = append(warnings, "optimizer converged only under relaxed tolerances")
	}

	rec := &Recommendation{
		ID:               uuid.New().String(),
		GeneratedAt:      time.Now().UTC(),
		BaseCurrency:     s.assets.BaseCurrency(),
		InvestmentAmount: req.InvestmentAmount,
		Positions:        positions(selected, portfolio, req.InvestmentAmount),
		Summary: Summary{
			ExpectedReturn: analytics.ExpectedReturn,
			Volatility:     analytics.Volatility,
			SharpeRatio:    analytics.SharpeRatio,
			SharpeDefined:  analytics.SharpeDefined,
		},
		Analytics: analytics,
		History:   replay,
		Dropped:   normalized.Dropped,
		Warnings:  warnings,
	}

	s.log.Info().
		Str("recommendation_id", rec.ID).
		Str("category", string(profile.Category)).
		Int("positions", len(rec.Positions)).
		Float64("amount", req.InvestmentAmount).
		Msg("Advisory recommendation generated")

	return &Result{Profile: profile, Recommendation: rec}, nil
}

// UniverseStatistics normalizes the full active universe and computes
// its statistics. Backs the asset listing endpoints, which annotate
// each instrument with annualized figures from the shared window.
func (s *Service) UniverseStatistics(ctx context.Context) (*statistics.Statistics, *normalization.Result, error) {
	assets, err := s.assets.ActiveAssets()
	if err != nil {
		return nil, nil, fmt.Errorf("load active assets: %w", err)
	}
	normalized, err := s.normalizer.NormalizeUniverse(ctx, assets, normalization.Window{})
	if err != nil {
		return nil, nil, fmt.Errorf("normalize universe: %w", err)
	}
	stats, err := s.stats.Compute(normalized.Panel, normalized.RiskFree)
	if err != nil {
		return nil, nil, fmt.Errorf("compute statistics: %w", err)
	}
	return stats, normalized, nil
}

// resolveProfile turns the request into a risk profile: evaluate the
// questionnaire, or map a pre-resolved level straight to its category.
func (s *Service) resolveProfile(req Request) (*profiling.RiskProfile, error) {
	if req.Response != nil {
		return s.profiler.Evaluate(*req.Response)
	}
	profile, ok := profiling.ProfileForRiskLevel(req.RiskLevel)
	if !ok {
		verr := &domain.ValidationError{}
		verr.Add("risk_level", "risk level must be between 1 and 10, got %d", req.RiskLevel)
		return nil, verr
	}
	return profile, nil
}

// selectUniverse resolves the requested symbols against the registry,
// defaulting to every active asset.
func (s *Service) selectUniverse(symbols []string) ([]domain.Asset, error) {
	if len(symbols) == 0 {
		assets, err := s.assets.ActiveAssets()
		if err != nil {
			return nil, fmt.Errorf("load active assets: %w", err)
		}
		if len(assets) < MinUniverseSize {
			return nil, fmt.Errorf("universe has %d active assets; need at least %d",
				len(assets), MinUniverseSize)
		}
		return assets, nil
	}

	verr := &domain.ValidationError{}
	seen := make(map[string]bool, len(symbols))
	assets := make([]domain.Asset, 0, len(symbols))
	for _, sym := range symbols {
		if seen[sym] {
			continue
		}
		seen[sym] = true

		asset, err := s.assets.AssetBySymbol(sym)
		if err != nil {
			return nil, fmt.Errorf("look up asset %s: %w", sym, err)
		}
		if asset == nil {
			verr.Add("symbols", "unknown asset %s", sym)
			continue
		}
		if !asset.Active {
			verr.Add("symbols", "asset %s is inactive", sym)
			continue
		}
		assets = append(assets, *asset)
	}
	if verr.HasViolations() {
		return nil, verr
	}
	if len(assets) < MinUniverseSize {
		verr.Add("symbols", "selection has %d assets; need at least %d", len(assets), MinUniverseSize)
		return nil, verr
	}
	return assets, nil
}

// positions converts solved weights into sized holdings, largest first.
func positions(assets []domain.Asset, p *optimization.Portfolio, amount float64) []Position {
	meta := make(map[string]domain.Asset, len(assets))
	for _, a := range assets {
		meta[a.Symbol] = a
	}

	out := make([]Position, 0, len(p.Symbols))
	for i, sym := range p.Symbols {
		w := p.Weights[i]
		if w <= 0 {
			continue
		}
		asset := meta[sym]
		out = append(out, Position{
			Symbol: sym,
			Name:   asset.Name,
			Class:  asset.Class,
			Weight: w,
			Amount: w * amount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
