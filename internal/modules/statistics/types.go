package statistics

import (
	"gonum.org/v1/gonum/mat"
)

// AssetStatistics summarizes one asset's monthly return series on an
// annualized basis.
type AssetStatistics struct {
	Symbol               string  `json:"symbol" msgpack:"symbol"`
	AnnualizedReturn     float64 `json:"annualized_return" msgpack:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility" msgpack:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio" msgpack:"sharpe_ratio"`
	// SharpeDefined is false for a constant series, whose ratio has no
	// meaning. Callers must check it instead of trusting a zero.
	SharpeDefined bool `json:"sharpe_defined" msgpack:"sharpe_defined"`
	Observations  int  `json:"observations" msgpack:"observations"`
}

// Statistics is the full statistical picture of a normalized universe:
// per-asset figures plus the annualized covariance between all of them.
// The struct round-trips through msgpack for the cache.
type Statistics struct {
	Symbols        []string                   `json:"symbols" msgpack:"symbols"`
	Assets         map[string]AssetStatistics `json:"assets" msgpack:"assets"`
	Covariance     [][]float64                `json:"covariance" msgpack:"covariance"`
	RiskFreeAnnual float64                    `json:"risk_free_annual" msgpack:"risk_free_annual"`
	Months         int                        `json:"months" msgpack:"months"`
	WindowStart    string                     `json:"window_start" msgpack:"window_start"`
	WindowEnd      string                     `json:"window_end" msgpack:"window_end"`
}

// CovarianceMatrix returns the annualized covariance as a symmetric
// matrix in Symbols order.
func (s *Statistics) CovarianceMatrix() *mat.SymDense {
	n := len(s.Symbols)
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.SetSym(i, j, s.Covariance[i][j])
		}
	}
	return m
}

// ExpectedReturns returns the annualized expected return vector in
// Symbols order.
func (s *Statistics) ExpectedReturns() []float64 {
	mu := make([]float64, len(s.Symbols))
	for i, sym := range s.Symbols {
		mu[i] = s.Assets[sym].AnnualizedReturn
	}
	return mu
}

// Volatilities returns the annualized volatility vector in Symbols order.
func (s *Statistics) Volatilities() []float64 {
	vols := make([]float64, len(s.Symbols))
	for i, sym := range s.Symbols {
		vols[i] = s.Assets[sym].AnnualizedVolatility
	}
	return vols
}
