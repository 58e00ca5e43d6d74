package domain

import (
	"fmt"
	"time"
)

// MonthLayout is the canonical month key format ("2006-01").
// Keys in this layout sort chronologically as plain strings.
const MonthLayout = "2006-01"

// MonthOf returns the canonical month key for a point in time.
func MonthOf(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// ParseMonth parses a canonical month key into the first instant of
// that month in UTC.
func ParseMonth(ym string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, ym)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month key %q: %w", ym, err)
	}
	return t, nil
}

// PricePoint is a single dated observation of a raw series.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// RawSeries is an unprocessed observation series for one symbol, as
// imported: daily or monthly prices, FX fixings, or rate levels.
type RawSeries struct {
	Symbol   string       `json:"symbol"`
	Currency string       `json:"currency"`
	Kind     SeriesKind   `json:"kind"`
	Points   []PricePoint `json:"points"`
}

// ReturnSeries is a monthly simple-return series on the canonical
// month-end grid. Months and Returns are parallel slices.
type ReturnSeries struct {
	Symbol  string    `json:"symbol"`
	Months  []string  `json:"months"`
	Returns []float64 `json:"returns"`
}

// Window returns the sub-series covering [from, to] inclusive, using
// canonical month keys. An empty bound leaves that side open.
func (s ReturnSeries) Window(from, to string) ReturnSeries {
	out := ReturnSeries{Symbol: s.Symbol}
	for i, m := range s.Months {
		if from != "" && m < from {
			continue
		}
		if to != "" && m > to {
			continue
		}
		out.Months = append(out.Months, m)
		out.Returns = append(out.Returns, s.Returns[i])
	}
	return out
}

// Panel is a set of return series aligned onto a shared month grid.
// Every column has exactly len(Months) entries and Symbols is sorted,
// so iteration order is deterministic.
type Panel struct {
	Months  []string             `json:"months"`
	Symbols []string             `json:"symbols"`
	Returns map[string][]float64 `json:"returns"`
}

// Column returns the aligned return column for a symbol.
func (p Panel) Column(symbol string) ([]float64, bool) {
	col, ok := p.Returns[symbol]
	return col, ok
}

// NumMonths returns the length of the shared month grid.
func (p Panel) NumMonths() int {
	return len(p.Months)
}

// IsEmpty reports whether the panel has no overlapping months or no
// symbols at all.
func (p Panel) IsEmpty() bool {
	return len(p.Months) == 0 || len(p.Symbols) == 0
}
