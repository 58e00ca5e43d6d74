package normalization

import (
	"fmt"
	"time"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/pkg/formulas"
)

// forwardFillMonthlyRates projects irregular annual rate decisions onto
// a month grid. Each month takes the latest decision on or before its
// end; decisions are never interpolated and never applied backwards in
// time, so a grid month before the first decision is an error. Levels
// arrive as annual percent and come back as monthly decimal rates.
func forwardFillMonthlyRates(levels []domain.PricePoint, months []string) ([]float64, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("rate series is empty")
	}

	rates := make([]float64, len(months))
	idx := 0
	for i, month := range months {
		end, err := monthEndInstant(month)
		if err != nil {
			return nil, err
		}

		for idx+1 < len(levels) && !levels[idx+1].Date.After(end) {
			idx++
		}
		if levels[idx].Date.After(end) {
			return nil, fmt.Errorf("rate series starts %s, after grid month %s: refusing to back-fill",
				levels[0].Date.Format("2006-01-02"), month)
		}

		annual := levels[idx].Value / 100
		rates[i] = formulas.MonthlyRate(annual)
	}

	return rates, nil
}

func monthEndInstant(month string) (time.Time, error) {
	start, err := domain.ParseMonth(month)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 1, 0).Add(-time.Nanosecond), nil
}
