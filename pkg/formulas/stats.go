// Package formulas provides the quantitative primitives shared by the
// statistics, optimization and performance modules. All series handled
// here are monthly simple returns unless a function says otherwise.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MonthsPerYear is the annualization base for monthly series.
const MonthsPerYear = 12

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Correlation calculates the Pearson correlation coefficient between two datasets
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// AnnualizedReturn scales a mean monthly return to an annual figure.
//
// Formula: mean(monthly returns) × 12
func AnnualizedReturn(monthlyReturns []float64) float64 {
	if len(monthlyReturns) == 0 {
		return 0
	}
	return Mean(monthlyReturns) * MonthsPerYear
}

// AnnualizedVolatility calculates annualized volatility from monthly returns
//
// Formula: StdDev of monthly returns × sqrt(12)
func AnnualizedVolatility(monthlyReturns []float64) float64 {
	if len(monthlyReturns) == 0 {
		return 0
	}
	return StdDev(monthlyReturns) * math.Sqrt(MonthsPerYear)
}

// SharpeRatio calculates the annualized Sharpe ratio from an annualized
// return, an annualized risk-free rate and an annualized volatility.
// Returns (0, false) when volatility is effectively zero - the ratio is
// undefined for a constant series and callers must surface that rather
// than divide by a denominator of zero.
func SharpeRatio(annualReturn, annualRiskFree, annualVolatility float64) (float64, bool) {
	if annualVolatility < 1e-12 {
		return 0, false
	}
	return (annualReturn - annualRiskFree) / annualVolatility, true
}

// PortfolioVariance calculates w' * Σ * w for a weight vector and a
// covariance matrix given as rows.
func PortfolioVariance(weights []float64, cov [][]float64) float64 {
	variance := 0.0
	for i := range weights {
		for j := range weights {
			variance += weights[i] * weights[j] * cov[i][j]
		}
	}
	return variance
}

// HerfindahlIndex calculates the Herfindahl-Hirschman concentration index
// of a weight vector: sum of squared weights. 1/n for an equal-weight
// portfolio of n assets, 1.0 for a single-asset portfolio.
func HerfindahlIndex(weights []float64) float64 {
	hhi := 0.0
	for _, w := range weights {
		hhi += w * w
	}
	return hhi
}
