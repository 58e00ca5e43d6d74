package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RollingCompoundReturn calculates the compound return over a sliding
// window of monthly returns. Entry i of the result covers
// returns[i : i+window], so the result has len(returns)-window+1 entries.
//
// Computed as a rolling sum of log growth factors, then exponentiated:
//
//	exp(Σ log(1+r)) - 1
func RollingCompoundReturn(returns []float64, window int) []float64 {
	if window <= 0 || len(returns) < window {
		return []float64{}
	}

	logs := make([]float64, len(returns))
	for i, r := range returns {
		logs[i] = math.Log1p(r)
	}

	sums := talib.Sum(logs, window)

	out := make([]float64, len(returns)-window+1)
	for i := window - 1; i < len(sums); i++ {
		out[i-window+1] = math.Expm1(sums[i])
	}
	return out
}

// RollingVolatility calculates the annualized volatility over a sliding
// window of monthly returns. Entry i covers returns[i : i+window].
//
// TA-Lib computes the population standard deviation, so short windows
// read slightly lower than the sample figure used for full-window
// statistics.
func RollingVolatility(returns []float64, window int) []float64 {
	if window <= 0 || len(returns) < window {
		return []float64{}
	}

	stddevs := talib.StdDev(returns, window, 1.0)

	out := make([]float64, len(returns)-window+1)
	for i := window - 1; i < len(stddevs); i++ {
		out[i-window+1] = stddevs[i] * math.Sqrt(MonthsPerYear)
	}
	return out
}

// RollingMean calculates the simple moving average over a sliding
// window. Entry i covers returns[i : i+window].
func RollingMean(returns []float64, window int) []float64 {
	if window <= 0 || len(returns) < window {
		return []float64{}
	}

	smas := talib.Sma(returns, window)

	out := make([]float64, len(returns)-window+1)
	for i := window - 1; i < len(smas); i++ {
		out[i-window+1] = smas[i]
	}
	return out
}
