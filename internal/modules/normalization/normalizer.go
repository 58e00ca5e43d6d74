// Package normalization turns raw imported series into an aligned panel
// of monthly base-currency returns, the input every downstream stage
// works from.
//
// Per asset: sanitize raw observations, classify the sampling cadence,
// collapse to month-end, derive simple returns, and convert foreign
// currency returns through the matching FX series. Per-asset work fans
// out concurrently; assembly is deterministic regardless of goroutine
// scheduling.
package normalization

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/pkg/formulas"
)

// Defaults for Config fields left at zero.
const (
	DefaultDailyObsThreshold = 100.0
	DefaultMonthlyObsCeiling = 20.0
	DefaultMinOverlapMonths  = 10
)

// Config tunes the normalization pipeline.
type Config struct {
	// DailyObsThreshold is the observations-per-year rate above which a
	// series is treated as daily and resampled to month-end.
	DailyObsThreshold float64
	// MonthlyObsCeiling is the highest observations-per-year rate still
	// acceptable for a series classified monthly. Anything between the
	// ceiling and the daily threshold has an ambiguous cadence and is
	// rejected rather than mis-annualized.
	MonthlyObsCeiling float64
	// MinOverlapMonths is the minimum asset/FX overlap below which a
	// foreign-currency asset is dropped.
	MinOverlapMonths int
}

func (c Config) withDefaults() Config {
	if c.DailyObsThreshold <= 0 {
		c.DailyObsThreshold = DefaultDailyObsThreshold
	}
	if c.MonthlyObsCeiling <= 0 {
		c.MonthlyObsCeiling = DefaultMonthlyObsCeiling
	}
	if c.MinOverlapMonths <= 0 {
		c.MinOverlapMonths = DefaultMinOverlapMonths
	}
	return c
}

// Window bounds the alignment grid with inclusive canonical month keys.
// An empty bound leaves that side open.
type Window struct {
	FromMonth string
	ToMonth   string
}

// Drop records an asset excluded from the panel and why.
type Drop struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Result is the output of a normalization run: the aligned panel, the
// risk-free rate on the same grid, and everything that fell out on the
// way there.
type Result struct {
	Panel    domain.Panel
	RiskFree domain.ReturnSeries
	Dropped  []Drop
	Warnings []string
}

// SeriesSource is the slice of the universe the normalizer reads.
// *universe.Service satisfies it.
type SeriesSource interface {
	BaseCurrency() string
	RawSeriesFor(asset domain.Asset) (domain.RawSeries, error)
	FXSeriesFor(currency string) ([]domain.PricePoint, error)
	RiskFreeRawSeries() (domain.RawSeries, error)
}

// Normalizer runs the series normalization pipeline.
type Normalizer struct {
	source    SeriesSource
	cfg       Config
	sanitizer *Sanitizer
	log       zerolog.Logger
}

// New creates a normalizer with the default sanitizer rules.
func New(source SeriesSource, cfg Config, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		source:    source,
		cfg:       cfg.withDefaults(),
		sanitizer: NewSanitizer(DefaultRules(), log),
		log:       log.With().Str("component", "normalization").Logger(),
	}
}

// assetOutcome is the per-asset result slot. Exactly one of series or
// drop is set on success-path outcomes.
type assetOutcome struct {
	series   domain.ReturnSeries
	drop     *Drop
	warnings []string
}

// NormalizeUniverse normalizes the given assets onto a shared monthly
// grid. Data defects that concern a single asset drop that asset with a
// warning; defects that poison the whole run (ambiguous cadence, an
// empty alignment window, a risk-free gap) fail it.
func (n *Normalizer) NormalizeUniverse(ctx context.Context, assets []domain.Asset, window Window) (*Result, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("no assets to normalize")
	}

	outcomes := make([]assetOutcome, len(assets))
	g, ctx := errgroup.WithContext(ctx)
	for i, asset := range assets {
		i, asset := i, asset
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := n.normalizeAsset(asset)
			if err != nil {
				return fmt.Errorf("normalize %s: %w", asset.Symbol, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		kept     []domain.ReturnSeries
		dropped  []Drop
		warnings []string
	)
	for _, out := range outcomes {
		warnings = append(warnings, out.warnings...)
		if out.drop != nil {
			dropped = append(dropped, *out.drop)
			continue
		}
		kept = append(kept, out.series)
	}

	kept, coverageDrops := applyWindow(kept, window)
	for _, d := range coverageDrops {
		dropped = append(dropped, d)
		warnings = append(warnings, fmt.Sprintf("%s: dropped (%s)", d.Symbol, d.Reason))
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("no assets survived normalization (%d dropped)", len(dropped))
	}

	grid := intersectionGrid(kept)
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty alignment window: no month is covered by all %d assets", len(kept))
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Symbol < kept[j].Symbol })

	panel := domain.Panel{
		Months:  grid,
		Symbols: make([]string, 0, len(kept)),
		Returns: make(map[string][]float64, len(kept)),
	}
	for _, s := range kept {
		byMonth := make(map[string]float64, len(s.Months))
		for i, m := range s.Months {
			byMonth[m] = s.Returns[i]
		}
		col := make([]float64, len(grid))
		for i, m := range grid {
			col[i] = byMonth[m]
		}
		panel.Symbols = append(panel.Symbols, s.Symbol)
		panel.Returns[s.Symbol] = col
	}

	riskFree, err := n.riskFreeOnGrid(grid)
	if err != nil {
		return nil, err
	}

	n.log.Info().
		Int("assets_in", len(assets)).
		Int("assets_kept", len(panel.Symbols)).
		Int("dropped", len(dropped)).
		Int("months", len(grid)).
		Msg("Normalized universe")

	return &Result{
		Panel:    panel,
		RiskFree: riskFree,
		Dropped:  dropped,
		Warnings: warnings,
	}, nil
}

// normalizeAsset runs the single-asset pipeline: sanitize, classify,
// collapse to month-end, derive returns, convert currency.
func (n *Normalizer) normalizeAsset(asset domain.Asset) (assetOutcome, error) {
	raw, err := n.source.RawSeriesFor(asset)
	if err != nil {
		return assetOutcome{}, fmt.Errorf("load series: %w", err)
	}

	clean, droppedPoints := n.sanitizer.Clean(asset.Symbol, raw.Points)

	var warnings []string
	if droppedPoints > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: dropped %d defective observations", asset.Symbol, droppedPoints))
	}

	if len(clean) < 2 {
		reason := "fewer than two usable observations"
		return assetOutcome{
			drop:     &Drop{Symbol: asset.Symbol, Reason: reason},
			warnings: append(warnings, fmt.Sprintf("%s: dropped (%s)", asset.Symbol, reason)),
		}, nil
	}

	obsPerYear := observationsPerYear(clean)
	if obsPerYear <= n.cfg.DailyObsThreshold && obsPerYear > n.cfg.MonthlyObsCeiling {
		return assetOutcome{}, fmt.Errorf(
			"ambiguous cadence: %.1f observations/year is neither daily (>%.0f) nor monthly (<=%.0f)",
			obsPerYear, n.cfg.DailyObsThreshold, n.cfg.MonthlyObsCeiling)
	}

	// Collapsing an already-monthly series just deduplicates months.
	monthly := resampleMonthEnd(clean)
	months, returns := monthEndReturns(monthly)
	series := domain.ReturnSeries{Symbol: asset.Symbol, Months: months, Returns: returns}

	if asset.RequiresFX(n.source.BaseCurrency()) {
		converted, drop, err := n.convertToBase(asset, series)
		if err != nil {
			return assetOutcome{}, err
		}
		if drop != nil {
			return assetOutcome{
				drop:     drop,
				warnings: append(warnings, fmt.Sprintf("%s: dropped (%s)", drop.Symbol, drop.Reason)),
			}, nil
		}
		series = converted
	}

	n.log.Debug().
		Str("symbol", asset.Symbol).
		Float64("obs_per_year", obsPerYear).
		Int("months", len(series.Months)).
		Msg("Normalized series")

	return assetOutcome{series: series, warnings: warnings}, nil
}

// convertToBase compounds an asset's monthly returns with the FX return
// of its currency over the same months. Missing FX data or too little
// overlap excludes the asset rather than failing the run.
func (n *Normalizer) convertToBase(asset domain.Asset, series domain.ReturnSeries) (domain.ReturnSeries, *Drop, error) {
	fxPoints, err := n.source.FXSeriesFor(asset.Currency)
	if err != nil {
		return domain.ReturnSeries{}, &Drop{
			Symbol: asset.Symbol,
			Reason: fmt.Sprintf("no usable FX series for %s: %v", asset.Currency, err),
		}, nil
	}

	fxMonths, fxReturns := monthEndReturns(resampleMonthEnd(fxPoints))
	fxByMonth := make(map[string]float64, len(fxMonths))
	for i, m := range fxMonths {
		fxByMonth[m] = fxReturns[i]
	}

	out := domain.ReturnSeries{Symbol: series.Symbol}
	for i, m := range series.Months {
		fx, ok := fxByMonth[m]
		if !ok {
			continue
		}
		out.Months = append(out.Months, m)
		out.Returns = append(out.Returns, formulas.CombineWithFX(series.Returns[i], fx))
	}

	if len(out.Months) < n.cfg.MinOverlapMonths {
		return domain.ReturnSeries{}, &Drop{
			Symbol: asset.Symbol,
			Reason: fmt.Sprintf("only %d months overlap with %s FX data, need %d",
				len(out.Months), asset.Currency, n.cfg.MinOverlapMonths),
		}, nil
	}

	return out, nil, nil
}

// applyWindow slices every series to the requested window and drops the
// ones that do not cover it.
func applyWindow(series []domain.ReturnSeries, window Window) ([]domain.ReturnSeries, []Drop) {
	if window.FromMonth == "" && window.ToMonth == "" {
		return series, nil
	}

	var (
		kept  []domain.ReturnSeries
		drops []Drop
	)
	for _, s := range series {
		if len(s.Months) == 0 {
			drops = append(drops, Drop{Symbol: s.Symbol, Reason: "no data in requested window"})
			continue
		}
		if window.FromMonth != "" && s.Months[0] > window.FromMonth {
			drops = append(drops, Drop{
				Symbol: s.Symbol,
				Reason: fmt.Sprintf("history starts %s, after requested window start %s", s.Months[0], window.FromMonth),
			})
			continue
		}
		if window.ToMonth != "" && s.Months[len(s.Months)-1] < window.ToMonth {
			drops = append(drops, Drop{
				Symbol: s.Symbol,
				Reason: fmt.Sprintf("history ends %s, before requested window end %s", s.Months[len(s.Months)-1], window.ToMonth),
			})
			continue
		}

		windowed := s.Window(window.FromMonth, window.ToMonth)
		if len(windowed.Months) == 0 {
			drops = append(drops, Drop{Symbol: s.Symbol, Reason: "no data in requested window"})
			continue
		}
		kept = append(kept, windowed)
	}

	return kept, drops
}

// intersectionGrid returns the sorted months present in every series.
func intersectionGrid(series []domain.ReturnSeries) []string {
	counts := make(map[string]int)
	for _, s := range series {
		for _, m := range s.Months {
			counts[m]++
		}
	}

	grid := make([]string, 0, len(counts))
	for m, c := range counts {
		if c == len(series) {
			grid = append(grid, m)
		}
	}
	sort.Strings(grid)

	return grid
}

// riskFreeOnGrid loads the risk-free series and forward-fills its
// decision levels onto the panel grid as monthly rates.
func (n *Normalizer) riskFreeOnGrid(grid []string) (domain.ReturnSeries, error) {
	raw, err := n.source.RiskFreeRawSeries()
	if err != nil {
		return domain.ReturnSeries{}, fmt.Errorf("load risk-free series: %w", err)
	}

	rates, err := forwardFillMonthlyRates(raw.Points, grid)
	if err != nil {
		return domain.ReturnSeries{}, fmt.Errorf("risk-free series %s: %w", raw.Symbol, err)
	}

	return domain.ReturnSeries{Symbol: raw.Symbol, Months: grid, Returns: rates}, nil
}
