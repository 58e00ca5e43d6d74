package performance

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/modules/statistics"
	"github.com/aristath/advisor/pkg/formulas"
)

// Analytics tuning.
const (
	// RollingWindowMonths is the window for the rolling return and
	// volatility series.
	RollingWindowMonths = 12
	// CVaRConfidence is the confidence level for the historical
	// conditional value at risk.
	CVaRConfidence = 0.95
)

// Analytics summarizes the risk structure of an optimized portfolio.
type Analytics struct {
	ExpectedReturn    float64            `json:"expected_return"`
	Volatility        float64            `json:"volatility"`
	SharpeRatio       float64            `json:"sharpe_ratio"`
	SharpeDefined     bool               `json:"sharpe_defined"`
	HHI               float64            `json:"hhi"`
	EffectiveAssets   float64            `json:"effective_assets"`
	CVaR95            float64            `json:"cvar_95"`
	RiskContributions map[string]float64 `json:"risk_contributions"`
	RollingReturn     []ChartDataPoint   `json:"rolling_return"`
	RollingVolatility []ChartDataPoint   `json:"rolling_volatility"`
}

// Analyzer derives portfolio-level analytics from asset statistics and
// a reconstructed history.
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log.With().Str("component", "analytics").Logger()}
}

// Analyze computes analytics for the weights over the statistics window.
// The replay supplies the realized return series for CVaR and the
// rolling charts; weights missing from the statistics default to zero.
func (a *Analyzer) Analyze(stats *statistics.Statistics, weights map[string]float64, replay *Replay) (*Analytics, error) {
	if stats == nil || len(stats.Symbols) == 0 {
		return nil, fmt.Errorf("analytics require asset statistics")
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("analytics require portfolio weights")
	}
	if replay == nil {
		return nil, fmt.Errorf("analytics require a reconstructed history")
	}

	w := make([]float64, len(stats.Symbols))
	for i, symbol := range stats.Symbols {
		w[i] = weights[symbol]
	}

	expectedReturn := 0.0
	for i, symbol := range stats.Symbols {
		expectedReturn += w[i] * stats.Assets[symbol].AnnualizedReturn
	}

	variance := formulas.PortfolioVariance(w, stats.Covariance)
	volatility := math.Sqrt(max(variance, 0))
	sharpe, sharpeDefined := formulas.SharpeRatio(expectedReturn, stats.RiskFreeAnnual, volatility)

	hhi := formulas.HerfindahlIndex(w)
	effective := 0.0
	if hhi > 0 {
		effective = 1.0 / hhi
	}

	monthlyCVaR := formulas.HistoricalCVaR(replay.Returns, CVaRConfidence)

	analytics := &Analytics{
		ExpectedReturn:    expectedReturn,
		Volatility:        volatility,
		SharpeRatio:       sharpe,
		SharpeDefined:     sharpeDefined,
		HHI:               hhi,
		EffectiveAssets:   effective,
		CVaR95:            monthlyCVaR * formulas.MonthsPerYear,
		RiskContributions: riskContributions(stats, w, variance),
		RollingReturn:     rollingPoints(replay.Months, formulas.RollingCompoundReturn(replay.Returns, RollingWindowMonths)),
		RollingVolatility: rollingPoints(replay.Months, formulas.RollingVolatility(replay.Returns, RollingWindowMonths)),
	}

	a.log.Debug().
		Float64("expected_return", expectedReturn).
		Float64("volatility", volatility).
		Float64("hhi", hhi).
		Msg("Computed portfolio analytics")
	return analytics, nil
}

// riskContributions splits the portfolio variance across the held
// assets: w_i*(Sigma*w)_i / variance, which sums to 1 for a fully
// invested portfolio. A zero-variance portfolio has no meaningful
// decomposition and yields an empty map.
func riskContributions(stats *statistics.Statistics, w []float64, variance float64) map[string]float64 {
	out := make(map[string]float64)
	if variance <= 0 {
		return out
	}
	for i, symbol := range stats.Symbols {
		if w[i] == 0 {
			continue
		}
		marginal := 0.0
		for j := range stats.Symbols {
			marginal += stats.Covariance[i][j] * w[j]
		}
		out[symbol] = w[i] * marginal / variance
	}
	return out
}

// rollingPoints aligns a rolling-window series onto chart points, each
// stamped with the month that closes its window.
func rollingPoints(months []string, series []float64) []ChartDataPoint {
	points := make([]ChartDataPoint, len(series))
	offset := len(months) - len(series)
	for i, v := range series {
		points[i] = ChartDataPoint{Time: months[i+offset], Value: v}
	}
	return points
}
