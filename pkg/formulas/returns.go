package formulas

import "math"

// SimpleReturns converts a price series to simple percentage returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
//
// A zero price yields a zero return at that step rather than an Inf,
// matching how the normalizer treats broken price points.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// CumulativeValues compounds a return series onto a base value.
// The result has one entry per return: base×(1+r1), base×(1+r1)(1+r2), ...
func CumulativeValues(base float64, returns []float64) []float64 {
	values := make([]float64, len(returns))
	acc := base
	for i, r := range returns {
		acc *= 1 + r
		values[i] = acc
	}
	return values
}

// TotalReturn calculates the compound total return of a series.
//
// Formula: (1+r1)×(1+r2)×...×(1+rN) - 1
func TotalReturn(returns []float64) float64 {
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}
	return cumulative - 1
}

// CompoundAnnualReturn calculates the compound annual growth rate from
// monthly returns.
//
// Formula: ((1+r1)×...×(1+rN))^(12/N) - 1
func CompoundAnnualReturn(monthlyReturns []float64) float64 {
	if len(monthlyReturns) == 0 {
		return 0
	}

	cumulative := 1.0
	for _, r := range monthlyReturns {
		cumulative *= 1 + r
	}

	years := float64(len(monthlyReturns)) / MonthsPerYear
	if years <= 0 || cumulative <= 0 {
		return cumulative - 1
	}
	return math.Pow(cumulative, 1.0/years) - 1
}

// MonthlyRate de-annualizes an annual rate level into its monthly
// compound equivalent.
//
// Formula: (1+annual)^(1/12) - 1
func MonthlyRate(annualRate float64) float64 {
	return math.Pow(1+annualRate, 1.0/MonthsPerYear) - 1
}

// CombineWithFX converts a local-currency return into base currency by
// compounding with the FX return over the same period.
//
// Formula: (1+rAsset)×(1+rFX) - 1
func CombineWithFX(assetReturn, fxReturn float64) float64 {
	return (1+assetReturn)*(1+fxReturn) - 1
}
