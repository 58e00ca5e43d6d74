// Package profiling resolves a KYC questionnaire into a risk profile:
// a weighted composite score with consistency adjustments, bucketed
// into one of five categories that carry the portfolio constraints.
package profiling

import (
	"fmt"

	"github.com/rs/zerolog"
)

// adjustment is what a triggered rule does to the running score.
type adjustment int

const (
	reduceRiskScore adjustment = iota
	capAtModerate
	reduceToConservative
	useConservativeScore
)

type consistencyRule struct {
	code      string
	condition func(KYCResponse) bool
	message   string
	action    adjustment
	severity  Severity
}

// consistencyRules run in this order on every assessment, and their
// adjustments apply to the running score in the same order.
var consistencyRules = []consistencyRule{
	{
		code:      "short_horizon_high_risk",
		condition: func(r KYCResponse) bool { return r.HorizonScore < 30 && r.LossTolerance > 70 },
		message:   "Short-term investment with high risk tolerance - consider a more conservative approach",
		action:    reduceRiskScore,
		severity:  SeverityWarning,
	},
	{
		code:      "inexperienced_aggressive",
		condition: func(r KYCResponse) bool { return r.ExperienceScore < 30 && r.GoalScore > 80 },
		message:   "Inexperienced with aggressive growth goals - recommend starting with moderate approach",
		action:    capAtModerate,
		severity:  SeverityWarning,
	},
	{
		code:      "low_capacity_high_appetite",
		condition: func(r KYCResponse) bool { return r.FinancialScore < 40 && r.LossTolerance > 60 },
		message:   "Low financial capacity with high risk appetite - important to start conservatively",
		action:    reduceToConservative,
		severity:  SeverityError,
	},
	{
		code:      "sleep_loss_mismatch",
		condition: func(r KYCResponse) bool { return abs(r.SleepScore-r.LossTolerance) > 40 },
		message:   "Contradiction between stated and practical loss tolerance - using the more conservative limit",
		action:    useConservativeScore,
		severity:  SeverityWarning,
	},
}

func actionName(a adjustment) string {
	switch a {
	case reduceRiskScore:
		return "reduce_risk_score"
	case capAtModerate:
		return "cap_at_moderate"
	case reduceToConservative:
		return "reduce_to_conservative"
	default:
		return "use_conservative_score"
	}
}

// Profiler turns questionnaire responses into risk profiles. It holds
// no state between assessments.
type Profiler struct {
	log zerolog.Logger
}

// New creates a profiler.
func New(log zerolog.Logger) *Profiler {
	return &Profiler{log: log.With().Str("component", "profiling").Logger()}
}

// Evaluate resolves a questionnaire response into a RiskProfile.
// Identical responses always yield identical profiles.
func (p *Profiler) Evaluate(response KYCResponse) (*RiskProfile, error) {
	if err := response.Validate(); err != nil {
		return nil, fmt.Errorf("invalid KYC response: %w", err)
	}

	inconsistencies := detect(response)
	score := clampScore(adjustScore(compositeScore(response), response, inconsistencies))
	constraints := ConstraintsForScore(score)

	profile := &RiskProfile{
		CompositeScore:  score,
		RiskLevel:       riskLevel(score),
		Category:        constraints.Category,
		Constraints:     constraints,
		Confidence:      confidence(inconsistencies),
		Inconsistencies: inconsistencies,
		Response:        response,
	}

	p.log.Info().
		Float64("composite_score", profile.CompositeScore).
		Str("category", string(profile.Category)).
		Int("risk_level", profile.RiskLevel).
		Int("inconsistencies", len(inconsistencies)).
		Bool("eligible", profile.Eligible()).
		Msg("Resolved risk profile")

	return profile, nil
}

// detect runs every consistency rule, in order.
func detect(response KYCResponse) []Inconsistency {
	var out []Inconsistency
	for _, rule := range consistencyRules {
		if rule.condition(response) {
			out = append(out, Inconsistency{
				Code:            rule.code,
				Message:         rule.message,
				SuggestedAction: actionName(rule.action),
				Severity:        rule.severity,
			})
		}
	}
	return out
}

// compositeScore is the weighted sum of the five scoring questions.
func compositeScore(response KYCResponse) float64 {
	return float64(response.HorizonScore)*WeightHorizon +
		float64(response.LossTolerance)*WeightLossTolerance +
		float64(response.ExperienceScore)*WeightExperience +
		float64(response.FinancialScore)*WeightFinancial +
		float64(response.GoalScore)*WeightGoal
}

// adjustScore applies each triggered rule's adjustment to the running
// score. A sleep/loss mismatch recomputes the composite from scratch
// with the more conservative of the two values standing in for loss
// tolerance, replacing whatever the earlier rules did.
func adjustScore(score float64, response KYCResponse, inconsistencies []Inconsistency) float64 {
	for _, inc := range inconsistencies {
		switch inc.SuggestedAction {
		case "reduce_risk_score":
			score *= 0.8
		case "cap_at_moderate":
			score = min(score, 65)
		case "reduce_to_conservative":
			score = min(score, 45)
		case "use_conservative_score":
			conservative := min(float64(response.SleepScore), float64(response.LossTolerance))
			score = float64(response.HorizonScore)*WeightHorizon +
				conservative*WeightLossTolerance +
				float64(response.ExperienceScore)*WeightExperience +
				float64(response.FinancialScore)*WeightFinancial +
				float64(response.GoalScore)*WeightGoal
		}
	}
	return score
}

func clampScore(score float64) float64 {
	return max(0, min(100, score))
}

// riskLevel spreads the composite onto a 1-10 scale, two levels per
// score band.
func riskLevel(score float64) int {
	switch {
	case score <= 25:
		return clampInt(int(1+(score/25)*2), 1, 3)
	case score <= 45:
		return clampInt(int(3+((score-25)/20)*2), 3, 5)
	case score <= 65:
		return clampInt(int(5+((score-45)/20)*2), 5, 7)
	case score <= 85:
		return clampInt(int(7+((score-65)/20)*2), 7, 9)
	default:
		return clampInt(int(9+(score-85)/15), 9, 10)
	}
}

// confidence shrinks by 10% per warning, floored at 50%. Errors block
// optimization outright, so they do not also dilute confidence.
func confidence(inconsistencies []Inconsistency) float64 {
	warnings := 0
	for _, inc := range inconsistencies {
		if inc.Severity == SeverityWarning {
			warnings++
		}
	}
	return max(0.5, 1.0-0.1*float64(warnings))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
