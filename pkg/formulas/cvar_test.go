package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoricalCVaR(t *testing.T) {
	// Ten observations at 95%: tail holds the single worst return
	returns := []float64{0.02, -0.08, 0.01, 0.03, -0.02, 0.0, 0.015, -0.01, 0.025, 0.005}
	cvar := HistoricalCVaR(returns, 0.95)
	assert.InDelta(t, -0.08, cvar, 1e-12)
}

func TestHistoricalCVaRWiderTail(t *testing.T) {
	// Ten observations at 80%: tail is the two worst returns averaged
	returns := []float64{0.02, -0.08, 0.01, 0.03, -0.02, 0.0, 0.015, -0.01, 0.025, 0.005}
	cvar := HistoricalCVaR(returns, 0.80)
	assert.InDelta(t, (-0.08-0.02)/2, cvar, 1e-12)
}

func TestHistoricalCVaREdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, HistoricalCVaR(nil, 0.95))
	assert.Equal(t, -0.05, HistoricalCVaR([]float64{-0.05}, 0.95))
}
