package optimization

import (
	"github.com/aristath/advisor/internal/modules/profiling"
)

// Profile-to-parameter mapping constants.
const (
	LambdaMax      = 8.0  // risk aversion at the 4% volatility target
	LambdaMin      = 0.5  // risk aversion at the 22% volatility target
	lambdaVolFloor = 0.04 // most conservative category target volatility
	lambdaVolCeil  = 0.22 // most aggressive category target volatility

	DefaultMaxConcentration = 0.40 // hard per-asset cap regardless of profile
	BaseConcentration       = 0.15 // per-asset cap at composite score 0
	ConcentrationSlope      = 0.25 // cap widening per full composite score

	ShortHorizonEquityCeiling = 0.50 // equity band ceiling for short horizons
	ShortHorizonYears         = 3    // requested horizons under this are short
	ShortHorizonScore         = 30   // KYC horizon scores under this are short
)

// Params are the profile-derived solver inputs.
type Params struct {
	Lambda           float64 `json:"lambda"`
	MaxSingle        float64 `json:"max_single"`
	MinEquity        float64 `json:"min_equity"`
	MaxEquity        float64 `json:"max_equity"`
	InternationalMax float64 `json:"international_max"`
	AlternativesMax  float64 `json:"alternatives_max"`
	ShortHorizon     bool    `json:"short_horizon"`
}

// LambdaForTargetVolatility maps a category's target volatility onto the
// risk-aversion coefficient, linearly between the anchors and clamped
// outside them. Lower volatility targets mean higher risk aversion.
func LambdaForTargetVolatility(targetVol float64) float64 {
	slope := (LambdaMax - LambdaMin) / (lambdaVolCeil - lambdaVolFloor)
	lambda := LambdaMax - (targetVol-lambdaVolFloor)*slope
	return min(max(lambda, LambdaMin), LambdaMax)
}

// DeriveParams maps a risk profile and the requested investment horizon
// (in years, zero when unspecified) onto solver parameters. The
// per-asset cap narrows for conservative profiles; a short horizon caps
// the equity band at half the portfolio, pulling the band floor down
// with it when the two would cross.
func DeriveParams(profile *profiling.RiskProfile, horizonYears int) Params {
	c := profile.Constraints
	shortHorizon := (horizonYears > 0 && horizonYears < ShortHorizonYears) ||
		profile.Response.HorizonScore < ShortHorizonScore

	p := Params{
		Lambda:           LambdaForTargetVolatility(c.TargetVolatility),
		MaxSingle:        min(DefaultMaxConcentration, BaseConcentration+profile.CompositeScore/100.0*ConcentrationSlope),
		MinEquity:        c.MinEquity,
		MaxEquity:        c.MaxEquity,
		InternationalMax: c.InternationalMax,
		AlternativesMax:  c.AlternativesMax,
		ShortHorizon:     shortHorizon,
	}
	if p.ShortHorizon {
		p.MaxEquity = min(p.MaxEquity, ShortHorizonEquityCeiling)
		p.MinEquity = min(p.MinEquity, p.MaxEquity)
	}
	return p
}
