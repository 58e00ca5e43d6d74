package normalization

import (
	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
)

// Rule is an asset-scoped data-quality rule applied to raw price
// observations before resampling. Rules exist for series with known
// defective points that would otherwise poison the return calculation.
type Rule struct {
	Symbol   string
	MaxValue float64 // observations strictly above this are dropped
	Reason   string
}

// DefaultRules covers the known defects in the shipped universe. The
// short-term bill series carries occasional mispriced ticks far above
// its quoted ceiling.
func DefaultRules() []Rule {
	return []Rule{
		{Symbol: "MAKAM", MaxValue: 30, Reason: "tick above series ceiling"},
	}
}

// Sanitizer drops defective raw price observations: asset-scoped rules
// plus baseline hygiene (non-positive prices). Rate series are not
// sanitized; zero and negative rate levels are legitimate.
type Sanitizer struct {
	rules map[string][]Rule
	log   zerolog.Logger
}

// NewSanitizer creates a sanitizer from a rule set.
func NewSanitizer(rules []Rule, log zerolog.Logger) *Sanitizer {
	bySymbol := make(map[string][]Rule, len(rules))
	for _, r := range rules {
		bySymbol[r.Symbol] = append(bySymbol[r.Symbol], r)
	}

	return &Sanitizer{
		rules: bySymbol,
		log:   log.With().Str("component", "sanitizer").Logger(),
	}
}

// Clean returns the surviving observations for a symbol along with the
// number dropped. The input slice is never mutated.
func (s *Sanitizer) Clean(symbol string, points []domain.PricePoint) ([]domain.PricePoint, int) {
	rules := s.rules[symbol]

	clean := make([]domain.PricePoint, 0, len(points))
	dropped := 0
	for _, p := range points {
		if p.Value <= 0 || violatesRule(rules, p.Value) {
			dropped++
			continue
		}
		clean = append(clean, p)
	}

	if dropped > 0 {
		s.log.Warn().
			Str("symbol", symbol).
			Int("dropped", dropped).
			Int("kept", len(clean)).
			Msg("Dropped defective raw observations")
	}

	return clean, dropped
}

func violatesRule(rules []Rule, value float64) bool {
	for _, r := range rules {
		if value > r.MaxValue {
			return true
		}
	}
	return false
}
