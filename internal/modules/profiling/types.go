package profiling

import (
	"github.com/aristath/advisor/internal/domain"
)

// KYCResponse holds the six questionnaire scores, each on a 0-100
// scale. The sleep score is validation-only and never enters the
// composite directly.
type KYCResponse struct {
	HorizonScore    int `json:"horizon_score"`
	LossTolerance   int `json:"loss_tolerance"`
	ExperienceScore int `json:"experience_score"`
	FinancialScore  int `json:"financial_score"`
	GoalScore       int `json:"goal_score"`
	SleepScore      int `json:"sleep_score"`
}

// Validate checks every score against its 0-100 bounds and returns a
// *domain.ValidationError naming each offending field.
func (r KYCResponse) Validate() error {
	verr := &domain.ValidationError{}

	check := func(field string, value int) {
		if value < 0 || value > 100 {
			verr.Add(field, "score %d is outside [0, 100]", value)
		}
	}
	check("horizon_score", r.HorizonScore)
	check("loss_tolerance", r.LossTolerance)
	check("experience_score", r.ExperienceScore)
	check("financial_score", r.FinancialScore)
	check("goal_score", r.GoalScore)
	check("sleep_score", r.SleepScore)

	if verr.HasViolations() {
		return verr
	}
	return nil
}

// Severity grades an inconsistency. Errors make the profile ineligible
// for optimization; warnings only lower its confidence.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Inconsistency is one triggered consistency rule, in evaluation order.
type Inconsistency struct {
	Code            string   `json:"code"`
	Message         string   `json:"message"`
	SuggestedAction string   `json:"suggested_action"`
	Severity        Severity `json:"severity"`
}

// RiskProfile is the resolved output of the questionnaire: the adjusted
// composite score, its category with constraints, and every triggered
// rule. It is a pure function of the KYCResponse.
type RiskProfile struct {
	CompositeScore  float64             `json:"composite_score"`
	RiskLevel       int                 `json:"risk_level"`
	Category        Category            `json:"category"`
	Constraints     CategoryConstraints `json:"constraints"`
	Confidence      float64             `json:"confidence"`
	Inconsistencies []Inconsistency     `json:"inconsistencies,omitempty"`
	Response        KYCResponse         `json:"response"`
}

// Eligible reports whether the profile may feed the optimizer: no
// error-severity inconsistency present.
func (p *RiskProfile) Eligible() bool {
	for _, inc := range p.Inconsistencies {
		if inc.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Warnings returns the warning-severity inconsistencies.
func (p *RiskProfile) Warnings() []Inconsistency {
	var out []Inconsistency
	for _, inc := range p.Inconsistencies {
		if inc.Severity == SeverityWarning {
			out = append(out, inc)
		}
	}
	return out
}

// Errors returns the error-severity inconsistencies.
func (p *RiskProfile) Errors() []Inconsistency {
	var out []Inconsistency
	for _, inc := range p.Inconsistencies {
		if inc.Severity == SeverityError {
			out = append(out, inc)
		}
	}
	return out
}
