package profiling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintsForScoreBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Category
	}{
		{0, UltraConservative},
		{25.9, UltraConservative},
		{26, Conservative},
		{45.9, Conservative},
		{46, Moderate},
		{65.9, Moderate},
		{66, Aggressive},
		{85.9, Aggressive},
		{86, VeryAggressive},
		{100, VeryAggressive},
	}
	for _, tt := range tests {
		got := ConstraintsForScore(tt.score)
		assert.Equal(t, tt.want, got.Category, "score %.1f", tt.score)
	}
}

func TestCategoryTableValues(t *testing.T) {
	moderate, ok := ConstraintsForCategory(Moderate)
	require.True(t, ok)
	assert.Equal(t, 0.12, moderate.TargetVolatility)
	assert.Equal(t, 0.15, moderate.MaxDrawdown)
	assert.Equal(t, 24, moderate.RecoveryMonths)
	assert.Equal(t, 0.30, moderate.MinEquity)
	assert.Equal(t, 0.65, moderate.MaxEquity)
	assert.Equal(t, 0.40, moderate.InternationalMax)
	assert.Equal(t, 0.10, moderate.AlternativesMax)

	ultra, ok := ConstraintsForCategory(UltraConservative)
	require.True(t, ok)
	assert.Equal(t, 0.04, ultra.TargetVolatility)
	assert.Equal(t, 0.02, ultra.AlternativesMax)

	very, ok := ConstraintsForCategory(VeryAggressive)
	require.True(t, ok)
	assert.Equal(t, 0.22, very.TargetVolatility)
	assert.Equal(t, 0.95, very.MaxEquity)
	assert.Equal(t, 48, very.RecoveryMonths)

	_, ok = ConstraintsForCategory(Category("nonsense"))
	assert.False(t, ok)
}

func TestCategoriesOrderedByRisk(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 5)
	for i := 1; i < len(cats); i++ {
		assert.Greater(t, cats[i].TargetVolatility, cats[i-1].TargetVolatility)
		assert.Greater(t, cats[i].MaxEquity, cats[i-1].MaxEquity)
	}
}

func TestConstraintsForRiskLevel(t *testing.T) {
	tests := []struct {
		level int
		want  Category
	}{
		{1, UltraConservative},
		{2, UltraConservative},
		{3, Conservative},
		{4, Conservative},
		{5, Moderate},
		{6, Moderate},
		{7, Aggressive},
		{8, Aggressive},
		{9, VeryAggressive},
		{10, VeryAggressive},
	}
	for _, tt := range tests {
		got, ok := ConstraintsForRiskLevel(tt.level)
		require.True(t, ok, "level %d", tt.level)
		assert.Equal(t, tt.want, got.Category, "level %d", tt.level)
	}

	_, ok := ConstraintsForRiskLevel(0)
	assert.False(t, ok)
	_, ok = ConstraintsForRiskLevel(11)
	assert.False(t, ok)
}

func TestProfileForRiskLevel(t *testing.T) {
	profile, ok := ProfileForRiskLevel(5)
	require.True(t, ok)
	assert.Equal(t, Moderate, profile.Category)
	assert.Equal(t, 5, profile.RiskLevel)
	assert.Equal(t, 56.0, profile.CompositeScore) // midpoint of [46, 66)
	assert.Equal(t, 1.0, profile.Confidence)
	assert.Empty(t, profile.Inconsistencies)
	assert.True(t, profile.Eligible())
	// Response scores are pinned to the midpoint too, so consumers that
	// read individual scores (the short-horizon equity rule reads the
	// horizon score) see level-consistent values instead of zeros.
	assert.Equal(t, 56, profile.Response.HorizonScore)
	assert.Equal(t, 56, profile.Response.LossTolerance)

	// The pinned score must land back in the same category.
	for level := 1; level <= 10; level++ {
		p, ok := ProfileForRiskLevel(level)
		require.True(t, ok, "level %d", level)
		assert.Equal(t, p.Category, ConstraintsForScore(p.CompositeScore).Category, "level %d", level)
	}

	_, ok = ProfileForRiskLevel(0)
	assert.False(t, ok)
	_, ok = ProfileForRiskLevel(11)
	assert.False(t, ok)
}
