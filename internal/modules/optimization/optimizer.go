package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/modules/profiling"
	"github.com/aristath/advisor/internal/modules/statistics"
)

// Defaults for Config.
const (
	DefaultMinWeight     = 0.005 // allocations under 0.5% are dusted away
	DefaultSolverTimeout = 10 * time.Second
)

// Config controls post-processing and the default solver.
type Config struct {
	MinWeight        float64       // dust floor; weights below it are zeroed
	MaxConcentration float64       // operator cap clamping the profile-derived per-asset cap
	SolverTimeout    time.Duration // per-attempt budget for the default solver
}

func (c Config) withDefaults() Config {
	if c.MinWeight == 0 {
		c.MinWeight = DefaultMinWeight
	}
	if c.MaxConcentration == 0 {
		c.MaxConcentration = DefaultMaxConcentration
	}
	if c.SolverTimeout == 0 {
		c.SolverTimeout = DefaultSolverTimeout
	}
	return c
}

// Request is a fully resolved optimization request. Assets supplies
// class and region metadata for every statistics symbol; order does not
// matter, symbols do.
type Request struct {
	Profile      *profiling.RiskProfile
	Assets       []domain.Asset
	Stats        *statistics.Statistics
	HorizonYears int // 0 when the request did not specify a horizon
}

// Service derives constraints from a risk profile and runs the solver.
type Service struct {
	builder *ConstraintsBuilder
	solver  Solver
	cfg     Config
	log     zerolog.Logger
}

// NewService creates the optimizer service. A nil solver selects the
// gonum penalty solver.
func NewService(solver Solver, cfg Config, log zerolog.Logger) *Service {
	cfg = cfg.withDefaults()
	if solver == nil {
		solver = NewGonumSolver(cfg.SolverTimeout, log)
	}
	return &Service{
		builder: NewConstraintsBuilder(log),
		solver:  solver,
		cfg:     cfg,
		log:     log.With().Str("component", "optimizer").Logger(),
	}
}

// Optimize allocates the statistics universe according to the risk
// profile. Profiles carrying error-severity inconsistencies are refused.
func (s *Service) Optimize(ctx context.Context, req Request) (*Portfolio, error) {
	if req.Profile == nil {
		return nil, fmt.Errorf("optimization requires a risk profile")
	}
	if !req.Profile.Eligible() {
		return nil, fmt.Errorf("risk profile has error-severity inconsistencies; optimization is blocked")
	}
	if req.Stats == nil || len(req.Stats.Symbols) == 0 {
		return nil, fmt.Errorf("optimization requires asset statistics")
	}

	assets, err := orderAssets(req.Stats.Symbols, req.Assets)
	if err != nil {
		return nil, err
	}

	params := DeriveParams(req.Profile, req.HorizonYears)
	params.MaxSingle = min(params.MaxSingle, s.cfg.MaxConcentration)
	bounds, groups, err := s.builder.Build(assets, params)
	if err != nil {
		return nil, err
	}

	problem := Problem{
		Symbols: req.Stats.Symbols,
		Mu:      req.Stats.ExpectedReturns(),
		Sigma:   req.Stats.CovarianceMatrix(),
		Lambda:  params.Lambda,
		Bounds:  bounds,
		Groups:  groups,
	}

	portfolio, err := s.OptimizeProblem(ctx, problem)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("category", string(req.Profile.Category)).
		Float64("lambda", params.Lambda).
		Bool("short_horizon", params.ShortHorizon).
		Bool("relaxed", portfolio.Relaxed).
		Int("positions", len(portfolio.WeightsBySymbol())).
		Msg("Portfolio optimized")
	return portfolio, nil
}

// OptimizeProblem validates and solves an explicit Problem, applying
// the dust floor, the equity band repair and the final feasibility
// check. On a failed or infeasible solve it retries exactly once with
// relaxed tolerances; a second failure is fatal.
func (s *Service) OptimizeProblem(ctx context.Context, p Problem) (*Portfolio, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("constraint validation failed: %w", err)
	}

	weights, err := s.attempt(ctx, p, false)
	if err == nil {
		return &Portfolio{Symbols: p.Symbols, Weights: weights, Lambda: p.Lambda}, nil
	}
	if !retryable(err) {
		return nil, err
	}

	s.log.Warn().Err(err).Msg("Solve attempt failed - retrying once with relaxed tolerances")
	weights, retryErr := s.attempt(ctx, p, true)
	if retryErr != nil {
		return nil, fmt.Errorf("optimization failed after relaxed retry: %w", retryErr)
	}
	return &Portfolio{Symbols: p.Symbols, Weights: weights, Lambda: p.Lambda, Relaxed: true}, nil
}

func (s *Service) attempt(ctx context.Context, p Problem, relaxed bool) ([]float64, error) {
	raw, err := s.solver.Solve(ctx, p, relaxed)
	if err != nil {
		return nil, err
	}
	weights := s.postProcess(raw, p)
	if err := checkSolution(weights, p); err != nil {
		return nil, err
	}
	return weights, nil
}

// retryable reports whether a failure warrants the single relaxed
// retry. Context cancellation and input errors are not retried.
func retryable(err error) bool {
	var solveErr *SolveFailedError
	var residualErr *ResidualError
	return errors.As(err, &solveErr) || errors.As(err, &residualErr)
}

// postProcess turns raw solver output into final weights: project and
// renormalize, zero dust positions, then rescale the equity group onto
// its band so the band holds exactly.
func (s *Service) postProcess(raw []float64, p Problem) []float64 {
	weights := projectToBounds(raw, p.Bounds)
	normalizeWeights(weights)
	s.applyDustFloor(weights)
	repairEquityBand(weights, p.Groups)
	return weights
}

// applyDustFloor zeroes weights under the configured floor and
// renormalizes the survivors.
func (s *Service) applyDustFloor(weights []float64) {
	dusted := 0
	for i, w := range weights {
		if w > 0 && w < s.cfg.MinWeight {
			weights[i] = 0
			dusted++
		}
	}
	if dusted == 0 {
		return
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum > 0 {
		for i := range weights {
			weights[i] /= sum
		}
	}
	s.log.Debug().Int("dusted", dusted).Msg("Removed dust positions")
}

// repairEquityBand rescales the equity group onto its allowed band. The
// penalty solver gets close; the rescale makes the band exact, which
// matters when the band has collapsed to a single point.
func repairEquityBand(weights []float64, groups []GroupLimit) {
	for _, g := range groups {
		if g.Name != GroupEquity {
			continue
		}
		member := make([]bool, len(weights))
		total := 0.0
		for _, idx := range g.Indexes {
			member[idx] = true
			total += weights[idx]
		}
		target := min(max(total, g.Lower), g.Upper)
		if target == total || total <= 1e-12 || 1.0-total <= 1e-12 {
			return
		}
		equityScale := target / total
		restScale := (1.0 - target) / (1.0 - total)
		for i := range weights {
			if member[i] {
				weights[i] *= equityScale
			} else {
				weights[i] *= restScale
			}
		}
		return
	}
}

// checkSolution verifies the final weights against the problem: the
// budget to SumTolerance, bounds and group limits to
// ConstraintTolerance.
func checkSolution(weights []float64, p Problem) error {
	sum := 0.0
	for i, w := range weights {
		if w < -1e-9 {
			return &ResidualError{Constraint: p.Symbols[i] + " non-negativity", Violation: -w}
		}
		if w > p.Bounds.Upper[i]+ConstraintTolerance {
			return &ResidualError{Constraint: p.Symbols[i] + " upper bound", Violation: w - p.Bounds.Upper[i]}
		}
		if w < p.Bounds.Lower[i]-ConstraintTolerance {
			return &ResidualError{Constraint: p.Symbols[i] + " lower bound", Violation: p.Bounds.Lower[i] - w}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > SumTolerance {
		return &ResidualError{Constraint: "budget", Violation: math.Abs(sum - 1.0)}
	}

	for _, g := range p.Groups {
		total := 0.0
		for _, idx := range g.Indexes {
			total += weights[idx]
		}
		if total < g.Lower-ConstraintTolerance {
			return &ResidualError{Constraint: g.Name + " minimum", Violation: g.Lower - total}
		}
		if total > g.Upper+ConstraintTolerance {
			return &ResidualError{Constraint: g.Name + " maximum", Violation: total - g.Upper}
		}
	}
	return nil
}

// orderAssets arranges asset metadata into statistics symbol order.
func orderAssets(symbols []string, assets []domain.Asset) ([]domain.Asset, error) {
	bySymbol := make(map[string]domain.Asset, len(assets))
	for _, a := range assets {
		bySymbol[a.Symbol] = a
	}
	ordered := make([]domain.Asset, len(symbols))
	for i, sym := range symbols {
		asset, ok := bySymbol[sym]
		if !ok {
			return nil, fmt.Errorf("no asset metadata for statistics symbol %s", sym)
		}
		ordered[i] = asset
	}
	return ordered, nil
}
