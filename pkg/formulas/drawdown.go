package formulas

// MaxDrawdown calculates the maximum peak-to-trough decline of a value
// curve as a non-negative fraction. 0.25 means a 25% drop from the
// running high.
//
// Formula: max over t of (peak_t - value_t) / peak_t
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// MaxDrawdownFromReturns compounds a return series from a base of 1.0
// and calculates the maximum drawdown of the resulting curve. The base
// itself counts as the initial peak, so a first-month loss already
// registers as a drawdown.
func MaxDrawdownFromReturns(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	curve := make([]float64, 0, len(returns)+1)
	curve = append(curve, 1.0)
	curve = append(curve, CumulativeValues(1.0, returns)...)
	return MaxDrawdown(curve)
}
