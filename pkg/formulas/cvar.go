package formulas

import (
	"math"
	"sort"
)

// HistoricalCVaR calculates Conditional Value at Risk at the specified
// confidence level from a historical return series. CVaR is the expected
// return given that the return falls in the worst (1-confidence) tail.
//
// Args:
//   - returns: Historical returns (negative values are losses)
//   - confidence: Confidence level (e.g., 0.95 for 95%)
//
// Returns:
//   - Average of the tail returns (negative when the tail is a loss)
func HistoricalCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	if len(returns) == 1 {
		return returns[0]
	}

	// Sort ascending so the worst outcomes come first
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	tailProbability := 1.0 - confidence
	tailCount := int(math.Ceil(float64(len(sorted)) * tailProbability))
	if tailCount == 0 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	sum := 0.0
	for _, r := range sorted[:tailCount] {
		sum += r
	}

	return sum / float64(tailCount)
}
