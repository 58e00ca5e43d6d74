package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/advisor/internal/domain"
)

func testAsset(symbol string, class domain.AssetClass, region domain.Region) domain.Asset {
	return domain.Asset{
		Symbol:   symbol,
		Name:     symbol,
		Class:    class,
		Region:   region,
		Currency: "ILS",
		Active:   true,
	}
}

func TestBuildConstraintsGroups(t *testing.T) {
	assets := []domain.Asset{
		testAsset("TA35", domain.ClassEquity, domain.RegionDomestic),
		testAsset("SPY", domain.ClassEquity, domain.RegionInternational),
		testAsset("GOVBOND", domain.ClassBond, domain.RegionDomestic),
		testAsset("GOLD", domain.ClassCommodity, domain.RegionInternational),
	}
	params := Params{
		MaxSingle:        0.295,
		MinEquity:        0.30,
		MaxEquity:        0.65,
		InternationalMax: 0.40,
		AlternativesMax:  0.10,
	}

	bounds, groups, err := NewConstraintsBuilder(zerolog.Nop()).Build(assets, params)

	require.NoError(t, err)
	require.Len(t, bounds.Upper, 4)
	for i := range bounds.Upper {
		assert.Zero(t, bounds.Lower[i])
		assert.InDelta(t, 0.295, bounds.Upper[i], 1e-9)
	}

	require.Len(t, groups, 3)
	assert.Equal(t, GroupEquity, groups[0].Name)
	assert.Equal(t, []int{0, 1}, groups[0].Indexes)
	assert.InDelta(t, 0.30, groups[0].Lower, 1e-9)
	assert.InDelta(t, 0.65, groups[0].Upper, 1e-9)
	assert.Equal(t, GroupInternational, groups[1].Name)
	assert.Equal(t, []int{1, 3}, groups[1].Indexes)
	assert.InDelta(t, 0.40, groups[1].Upper, 1e-9)
	assert.Equal(t, GroupAlternatives, groups[2].Name)
	assert.Equal(t, []int{3}, groups[2].Indexes)
	assert.InDelta(t, 0.10, groups[2].Upper, 1e-9)
}

func TestBuildConstraintsSkipsVacuousGroups(t *testing.T) {
	assets := []domain.Asset{
		testAsset("TA35", domain.ClassEquity, domain.RegionDomestic),
		testAsset("GOVBOND", domain.ClassBond, domain.RegionDomestic),
	}
	params := Params{MaxSingle: 0.80, MinEquity: 0.15, MaxEquity: 0.40, InternationalMax: 0.25, AlternativesMax: 0.05}

	_, groups, err := NewConstraintsBuilder(zerolog.Nop()).Build(assets, params)

	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, GroupEquity, groups[0].Name)
}

func TestBuildConstraintsRequiresEquityForMinimum(t *testing.T) {
	assets := []domain.Asset{
		testAsset("GOVBOND", domain.ClassBond, domain.RegionDomestic),
		testAsset("MAKAM", domain.ClassCash, domain.RegionDomestic),
	}
	params := Params{MaxSingle: 0.80, MinEquity: 0.30, MaxEquity: 0.65}

	_, _, err := NewConstraintsBuilder(zerolog.Nop()).Build(assets, params)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no equity assets")
}

func validProblem() Problem {
	return Problem{
		Symbols: []string{"TA35", "GOVBOND", "SPY"},
		Mu:      []float64{0.08, 0.03, 0.07},
		Sigma: mat.NewSymDense(3, []float64{
			0.04, 0.001, 0.01,
			0.001, 0.0025, 0.0005,
			0.01, 0.0005, 0.03,
		}),
		Lambda: 4.6667,
		Bounds: Bounds{Lower: []float64{0, 0, 0}, Upper: []float64{0.5, 0.5, 0.5}},
		Groups: []GroupLimit{
			{Name: GroupEquity, Indexes: []int{0, 2}, Lower: 0.30, Upper: 0.65},
		},
	}
}

func TestProblemValidateAcceptsFeasible(t *testing.T) {
	require.NoError(t, validProblem().Validate())
}

func TestProblemValidateRejectsDimensionMismatch(t *testing.T) {
	p := validProblem()
	p.Mu = []float64{0.08, 0.03}

	require.Error(t, p.Validate())
}

func TestProblemValidateRejectsIndefiniteCovariance(t *testing.T) {
	p := validProblem()
	p.Sigma = mat.NewSymDense(3, []float64{
		0.01, 0.05, 0,
		0.05, 0.01, 0,
		0, 0, 0.01,
	})

	err := p.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive semi-definite")
}

func TestProblemValidateRejectsNonPositiveLambda(t *testing.T) {
	p := validProblem()
	p.Lambda = 0

	require.Error(t, p.Validate())
}

func TestProblemValidateRejectsUnreachableBudget(t *testing.T) {
	p := validProblem()
	p.Bounds.Upper = []float64{0.3, 0.3, 0.3}

	err := p.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach 100%")
}

func TestProblemValidateRejectsGroupBeyondMemberCapacity(t *testing.T) {
	p := validProblem()
	p.Bounds.Upper = []float64{0.3, 1.0, 0.3}
	p.Groups[0].Lower = 0.8
	p.Groups[0].Upper = 0.9

	err := p.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "member capacity")
}

func TestProblemValidateRejectsGroupStarvingRest(t *testing.T) {
	p := validProblem()
	// Equity capped at 20% leaves 80% for GOVBOND alone, which is
	// itself capped at 50%.
	p.Groups[0].Lower = 0
	p.Groups[0].Upper = 0.2

	err := p.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rest of the universe")
}
