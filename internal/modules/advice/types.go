package advice

import (
	"time"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/modules/normalization"
	"github.com/aristath/advisor/internal/modules/performance"
	"github.com/aristath/advisor/internal/modules/profiling"
)

// Request asks for one advisory run.
type Request struct {
	// Response is the raw questionnaire. Exactly one of Response and
	// RiskLevel must be set.
	Response *profiling.KYCResponse `json:"response,omitempty"`
	// RiskLevel is a pre-resolved 1-10 risk level for clients profiled
	// elsewhere. It maps onto its category without consistency checks.
	RiskLevel int `json:"risk_level,omitempty"`
	// Symbols restricts the universe. Empty selects all active assets.
	Symbols []string `json:"symbols,omitempty"`
	// InvestmentAmount is the sum to allocate, in base currency.
	InvestmentAmount float64 `json:"investment_amount"`
	// HorizonYears is the intended holding period. Zero means unknown.
	HorizonYears int `json:"horizon_years"`
}

// Validate checks the request shape before any data is touched.
func (r Request) Validate() error {
	verr := &domain.ValidationError{}
	if r.Response == nil && r.RiskLevel == 0 {
		verr.Add("response", "a questionnaire response or a risk level is required")
	}
	if r.Response != nil && r.RiskLevel != 0 {
		verr.Add("risk_level", "provide either a questionnaire response or a risk level, not both")
	}
	if r.InvestmentAmount <= 0 {
		verr.Add("investment_amount", "investment amount must be positive, got %.2f", r.InvestmentAmount)
	}
	if r.HorizonYears < 0 {
		verr.Add("horizon_years", "horizon cannot be negative, got %d", r.HorizonYears)
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}

// Position is one recommended holding, sized against the investment.
type Position struct {
	Symbol string            `json:"symbol"`
	Name   string            `json:"name"`
	Class  domain.AssetClass `json:"class"`
	Weight float64           `json:"weight"`
	Amount float64           `json:"amount"`
}

// Summary carries the headline figures of the recommended portfolio.
type Summary struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SharpeDefined  bool    `json:"sharpe_defined"`
}

// Recommendation is a complete advisory answer: the sized positions,
// the portfolio's headline figures and full analytics, and the
// replayed history the figures were derived from.
type Recommendation struct {
	ID               string                 `json:"id"`
	GeneratedAt      time.Time              `json:"generated_at"`
	BaseCurrency     string                 `json:"base_currency"`
	InvestmentAmount float64                `json:"investment_amount"`
	Positions        []Position             `json:"positions"`
	Summary          Summary                `json:"summary"`
	Analytics        *performance.Analytics `json:"analytics"`
	History          *performance.Replay    `json:"history"`
	Dropped          []normalization.Drop   `json:"dropped,omitempty"`
	Warnings         []string               `json:"warnings,omitempty"`
}

// Result is the outcome of an advisory run. A questionnaire whose
// answers contradict each other at error severity blocks the pipeline:
// the result then carries the violations and no recommendation.
type Result struct {
	Profile        *profiling.RiskProfile    `json:"profile"`
	Blocked        bool                      `json:"blocked"`
	Violations     []profiling.Inconsistency `json:"violations,omitempty"`
	Recommendation *Recommendation           `json:"recommendation,omitempty"`
}
