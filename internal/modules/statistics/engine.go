// Package statistics derives the annualized per-asset figures and the
// covariance matrix the optimizer consumes, behind a read-through
// msgpack cache so repeated requests over an unchanged universe skip
// the math.
package statistics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/pkg/formulas"
)

// Engine computes Statistics from aligned monthly panels.
type Engine struct {
	cache        *CacheRepository
	baseCurrency string
	ttl          time.Duration
	log          zerolog.Logger
}

// NewEngine creates a statistics engine. A nil cache disables caching.
func NewEngine(cache *CacheRepository, baseCurrency string, ttl time.Duration, log zerolog.Logger) *Engine {
	return &Engine{
		cache:        cache,
		baseCurrency: baseCurrency,
		ttl:          ttl,
		log:          log.With().Str("component", "statistics").Logger(),
	}
}

// Compute derives the statistics for an aligned panel, reading through
// the cache when one is attached. The risk-free series must sit on the
// panel's month grid.
func (e *Engine) Compute(panel domain.Panel, riskFree domain.ReturnSeries) (*Statistics, error) {
	if panel.IsEmpty() {
		return nil, fmt.Errorf("cannot compute statistics for an empty panel")
	}
	if panel.NumMonths() < 2 {
		return nil, fmt.Errorf("need at least two months of aligned returns, have %d", panel.NumMonths())
	}
	if len(riskFree.Returns) != panel.NumMonths() {
		return nil, fmt.Errorf("risk-free series covers %d months, panel has %d",
			len(riskFree.Returns), panel.NumMonths())
	}

	key := e.cacheKey(panel)
	if e.cache != nil {
		cached, err := e.cache.GetIfFresh(key)
		if err != nil {
			e.log.Warn().Err(err).Msg("Statistics cache read failed, recomputing")
		} else if cached != nil {
			e.log.Debug().Str("key", key[:12]).Msg("Statistics cache hit")
			return cached, nil
		}
	}

	stats, err := e.compute(panel, riskFree)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Store(key, stats, e.ttl); err != nil {
			e.log.Warn().Err(err).Msg("Failed to cache statistics")
		}
	}

	e.log.Info().
		Int("assets", len(stats.Symbols)).
		Int("months", stats.Months).
		Str("window", stats.WindowStart+".."+stats.WindowEnd).
		Msg("Computed universe statistics")

	return stats, nil
}

func (e *Engine) compute(panel domain.Panel, riskFree domain.ReturnSeries) (*Statistics, error) {
	rfAnnual := formulas.AnnualizedReturn(riskFree.Returns)

	assets := make(map[string]AssetStatistics, len(panel.Symbols))
	for _, sym := range panel.Symbols {
		col, _ := panel.Column(sym)
		annRet := formulas.AnnualizedReturn(col)
		annVol := formulas.AnnualizedVolatility(col)
		sharpe, defined := formulas.SharpeRatio(annRet, rfAnnual, annVol)

		assets[sym] = AssetStatistics{
			Symbol:               sym,
			AnnualizedReturn:     annRet,
			AnnualizedVolatility: annVol,
			SharpeRatio:          sharpe,
			SharpeDefined:        defined,
			Observations:         len(col),
		}
	}

	n := len(panel.Symbols)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		ci, _ := panel.Column(panel.Symbols[i])
		for j := i; j < n; j++ {
			cj, _ := panel.Column(panel.Symbols[j])
			v := formulas.Covariance(ci, cj) * formulas.MonthsPerYear
			cov[i][j], cov[j][i] = v, v
			sym.SetSym(i, j, v)
		}
	}

	ok, minEig, err := formulas.IsPositiveSemiDefinite(sym)
	if err != nil {
		return nil, fmt.Errorf("covariance check failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("covariance matrix is not positive semi-definite (min eigenvalue %.3e)", minEig)
	}

	return &Statistics{
		Symbols:        append([]string(nil), panel.Symbols...),
		Assets:         assets,
		Covariance:     cov,
		RiskFreeAnnual: rfAnnual,
		Months:         panel.NumMonths(),
		WindowStart:    panel.Months[0],
		WindowEnd:      panel.Months[len(panel.Months)-1],
	}, nil
}

// cacheKey fingerprints a panel: the same symbols over the same window
// in the same base currency yield the same statistics until a reload
// invalidates the cache.
func (e *Engine) cacheKey(panel domain.Panel) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d",
		e.baseCurrency,
		strings.Join(panel.Symbols, ","),
		panel.Months[0],
		panel.Months[len(panel.Months)-1],
		panel.NumMonths(),
	)
	return hex.EncodeToString(h.Sum(nil))
}
