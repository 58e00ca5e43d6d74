package normalization

import (
	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/pkg/formulas"
)

const daysPerYear = 365.25

// observationsPerYear estimates the sampling cadence of a date-ordered
// raw series. Series too short to span any time report zero.
func observationsPerYear(points []domain.PricePoint) float64 {
	if len(points) < 2 {
		return 0
	}

	span := points[len(points)-1].Date.Sub(points[0].Date)
	years := span.Hours() / 24 / daysPerYear
	if years <= 0 {
		return 0
	}

	return float64(len(points)) / years
}

// resampleMonthEnd collapses a date-ordered series to one observation
// per calendar month: the last observation in each month. Intra-month
// observations are discarded.
func resampleMonthEnd(points []domain.PricePoint) []domain.PricePoint {
	if len(points) == 0 {
		return nil
	}

	out := make([]domain.PricePoint, 0, len(points)/20+1)
	for i, p := range points {
		if i+1 < len(points) && domain.MonthOf(points[i+1].Date) == domain.MonthOf(p.Date) {
			continue
		}
		out = append(out, p)
	}

	return out
}

// monthEndReturns converts month-end observations to simple monthly
// returns, each keyed by the month of the later observation.
func monthEndReturns(points []domain.PricePoint) ([]string, []float64) {
	if len(points) < 2 {
		return nil, nil
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	returns := formulas.SimpleReturns(values)
	months := make([]string, len(returns))
	for i := 1; i < len(points); i++ {
		months[i-1] = domain.MonthOf(points[i].Date)
	}

	return months, returns
}
