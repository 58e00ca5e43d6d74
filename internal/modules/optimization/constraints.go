// Package optimization turns asset statistics and a risk profile into
// portfolio weights via constrained mean-variance optimization.
package optimization

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
)

// Group names used in diagnostics and validation errors.
const (
	GroupEquity        = "equity"
	GroupInternational = "international"
	GroupAlternatives  = "alternatives"
)

// ConstraintsBuilder translates a risk profile's parameters into
// per-asset bounds and aggregate group limits over a concrete universe.
type ConstraintsBuilder struct {
	log zerolog.Logger
}

// NewConstraintsBuilder creates a constraints builder.
func NewConstraintsBuilder(log zerolog.Logger) *ConstraintsBuilder {
	return &ConstraintsBuilder{
		log: log.With().Str("component", "constraints").Logger(),
	}
}

// Build derives bounds and group limits for the given parameters. The
// asset slice fixes the problem order. Aggregate caps over an empty set
// are vacuous and skipped; an equity minimum with no equity assets in
// the universe is an error.
func (cb *ConstraintsBuilder) Build(assets []domain.Asset, params Params) (Bounds, []GroupLimit, error) {
	n := len(assets)
	bounds := Bounds{Lower: make([]float64, n), Upper: make([]float64, n)}

	var equity, international, alternatives []int
	for i, asset := range assets {
		bounds.Upper[i] = params.MaxSingle
		if asset.Class == domain.ClassEquity {
			equity = append(equity, i)
		}
		if asset.Region == domain.RegionInternational {
			international = append(international, i)
		}
		if asset.Class.IsAlternative() {
			alternatives = append(alternatives, i)
		}
	}

	if len(equity) == 0 && params.MinEquity > 0 {
		return Bounds{}, nil, fmt.Errorf("profile requires at least %.0f%% equity but the universe has no equity assets",
			params.MinEquity*100)
	}

	var groups []GroupLimit
	if len(equity) > 0 {
		groups = append(groups, GroupLimit{
			Name:    GroupEquity,
			Indexes: equity,
			Lower:   params.MinEquity,
			Upper:   params.MaxEquity,
		})
	}
	if len(international) > 0 {
		groups = append(groups, GroupLimit{
			Name:    GroupInternational,
			Indexes: international,
			Upper:   params.InternationalMax,
		})
	}
	if len(alternatives) > 0 {
		groups = append(groups, GroupLimit{
			Name:    GroupAlternatives,
			Indexes: alternatives,
			Upper:   params.AlternativesMax,
		})
	}

	cb.log.Debug().
		Int("num_assets", n).
		Float64("max_single", params.MaxSingle).
		Int("equity_assets", len(equity)).
		Int("international_assets", len(international)).
		Int("alternative_assets", len(alternatives)).
		Bool("short_horizon", params.ShortHorizon).
		Msg("Built optimization constraints")

	return bounds, groups, nil
}
