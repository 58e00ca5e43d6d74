// Package performance reconstructs how a fixed-weight portfolio would
// have behaved over the normalized history and derives risk analytics
// from the result.
package performance

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/pkg/formulas"
)

// DefaultBaseValue indexes the reconstructed curve to 100.
const DefaultBaseValue = 100.0

// ChartDataPoint is a single point on a performance chart.
type ChartDataPoint struct {
	Time  string  `json:"time"` // canonical YYYY-MM month key
	Value float64 `json:"value"`
}

// Replay is the reconstructed history of a fixed-weight portfolio.
// Months, Returns and CumulativeValues are parallel slices.
type Replay struct {
	Months           []string  `json:"months"`
	Returns          []float64 `json:"returns"`
	CumulativeValues []float64 `json:"cumulative_values"`
	BaseValue        float64   `json:"base_value"`
	FinalValue       float64   `json:"final_value"`
	TotalReturn      float64   `json:"total_return"`
	MaxDrawdown      float64   `json:"max_drawdown"`
}

// ChartPoints returns the cumulative value curve in chart shape.
func (r *Replay) ChartPoints() []ChartDataPoint {
	points := make([]ChartDataPoint, len(r.Months))
	for i, m := range r.Months {
		points[i] = ChartDataPoint{Time: m, Value: r.CumulativeValues[i]}
	}
	return points
}

// Reconstructor replays fixed weights over an aligned return panel.
// The replay is pure: the same panel and weights always produce the
// same result, and weights are never re-balanced along the way.
type Reconstructor struct {
	baseValue float64
	log       zerolog.Logger
}

// NewReconstructor creates a reconstructor indexing curves to
// DefaultBaseValue.
func NewReconstructor(log zerolog.Logger) *Reconstructor {
	return &Reconstructor{
		baseValue: DefaultBaseValue,
		log:       log.With().Str("component", "reconstructor").Logger(),
	}
}

// Reconstruct replays the weights over every month of the panel. Every
// weighted symbol must be a panel column, and the weights must sum to 1
// within tolerance; symbols the weights leave out simply contribute
// nothing.
func (r *Reconstructor) Reconstruct(panel domain.Panel, weights map[string]float64) (*Replay, error) {
	if panel.IsEmpty() {
		return nil, fmt.Errorf("cannot reconstruct performance over an empty panel")
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("cannot reconstruct performance without weights")
	}

	sum := 0.0
	for symbol, w := range weights {
		if _, ok := panel.Column(symbol); !ok {
			return nil, fmt.Errorf("weighted symbol %s is not in the normalized panel", symbol)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return nil, fmt.Errorf("weights sum to %.6f, want 1", sum)
	}

	// Accumulate in sorted symbol order so the float sums are
	// reproducible run to run.
	n := panel.NumMonths()
	returns := make([]float64, n)
	for _, symbol := range panel.Symbols {
		w, ok := weights[symbol]
		if !ok || w == 0 {
			continue
		}
		col, _ := panel.Column(symbol)
		for t := 0; t < n; t++ {
			returns[t] += w * col[t]
		}
	}

	values := formulas.CumulativeValues(r.baseValue, returns)
	replay := &Replay{
		Months:           panel.Months,
		Returns:          returns,
		CumulativeValues: values,
		BaseValue:        r.baseValue,
		FinalValue:       values[n-1],
		TotalReturn:      formulas.TotalReturn(returns),
		MaxDrawdown:      formulas.MaxDrawdownFromReturns(returns),
	}

	r.log.Debug().
		Int("months", n).
		Int("positions", len(weights)).
		Float64("total_return", replay.TotalReturn).
		Float64("max_drawdown", replay.MaxDrawdown).
		Msg("Reconstructed portfolio history")
	return replay, nil
}
