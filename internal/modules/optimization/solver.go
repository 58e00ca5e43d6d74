package optimization

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
)

// Penalty solver tuning.
const (
	penaltyWeight      = 1000.0 // quadratic penalty on budget and group violations
	relaxedGradientTol = 1e-6
	relaxedFunctionTol = 1e-8
)

// successStatuses are the gonum termination statuses accepted as a
// converged solve.
var successStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
}

// GonumSolver solves allocation problems with gonum/optimize using a
// quadratic penalty formulation: per-asset bounds by projection inside
// the objective, the budget and group constraints as penalty terms.
// BFGS runs first on the analytic gradient; Nelder-Mead is the
// derivative-free fallback for when the projection kinks trip the line
// search.
type GonumSolver struct {
	timeout time.Duration
	log     zerolog.Logger
}

// NewGonumSolver creates the default solver. A zero timeout leaves the
// solve bounded only by the caller's context.
func NewGonumSolver(timeout time.Duration, log zerolog.Logger) *GonumSolver {
	return &GonumSolver{
		timeout: timeout,
		log:     log.With().Str("component", "solver").Logger(),
	}
}

// Solve implements Solver. The returned weights are projected into the
// problem's bounds and normalized to sum to 1.
func (s *GonumSolver) Solve(ctx context.Context, p Problem, relaxed bool) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 { return objective(p, x) },
		Grad: func(grad, x []float64) { gradient(p, grad, x) },
	}

	n := len(p.Mu)
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	settings := &optimize.Settings{}
	runtime := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, context.DeadlineExceeded
		}
		if runtime == 0 || remaining < runtime {
			runtime = remaining
		}
	}
	if runtime > 0 {
		settings.Runtime = runtime
	}
	if relaxed {
		settings.GradientThreshold = relaxedGradientTol
		settings.Converger = &optimize.FunctionConverge{
			Absolute:   relaxedFunctionTol,
			Iterations: 20,
		}
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err != nil || result == nil || !successStatuses[result.Status] {
		status := "no result"
		if result != nil {
			status = result.Status.String()
		}
		s.log.Warn().
			Err(err).
			Str("status", status).
			Bool("relaxed", relaxed).
			Msg("BFGS did not converge - falling back to Nelder-Mead")
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	}
	if err != nil || result == nil {
		return nil, &SolveFailedError{Status: fmt.Sprintf("error: %v", err)}
	}
	if !successStatuses[result.Status] {
		return nil, &SolveFailedError{
			Status:  result.Status.String(),
			Timeout: result.Status == optimize.RuntimeLimit,
		}
	}

	weights := projectToBounds(result.X, p.Bounds)
	normalizeWeights(weights)

	s.log.Debug().
		Str("status", result.Status.String()).
		Float64("objective", result.F).
		Bool("relaxed", relaxed).
		Msg("Solve converged")
	return weights, nil
}

// objective is the negated mean-variance utility plus the quadratic
// penalties, evaluated on the bound-projected point.
func objective(p Problem, x []float64) float64 {
	w := projectToBounds(x, p.Bounds)
	n := len(w)

	portfolioReturn := 0.0
	sum := 0.0
	for i := 0; i < n; i++ {
		portfolioReturn += p.Mu[i] * w[i]
		sum += w[i]
	}

	portfolioVariance := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			portfolioVariance += w[i] * w[j] * p.Sigma.At(i, j)
		}
	}

	obj := -(portfolioReturn - 0.5*p.Lambda*portfolioVariance)
	obj += penaltyWeight * math.Pow(sum-1.0, 2)
	for _, g := range p.Groups {
		obj += groupPenalty(g, w)
	}
	return obj
}

// gradient fills grad with the analytic gradient of objective.
func gradient(p Problem, grad, x []float64) {
	w := projectToBounds(x, p.Bounds)
	n := len(w)

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += w[i]
	}

	for i := 0; i < n; i++ {
		sigmaRow := 0.0
		for j := 0; j < n; j++ {
			sigmaRow += p.Sigma.At(i, j) * w[j]
		}
		grad[i] = -p.Mu[i] + p.Lambda*sigmaRow + 2.0*penaltyWeight*(sum-1.0)
	}

	for _, g := range p.Groups {
		addGroupPenaltyGradient(g, w, grad)
	}
}

// groupPenalty is the one-sided quadratic penalty for an aggregate limit.
func groupPenalty(g GroupLimit, w []float64) float64 {
	total := 0.0
	for _, idx := range g.Indexes {
		total += w[idx]
	}
	if total < g.Lower {
		v := g.Lower - total
		return penaltyWeight * v * v
	}
	if total > g.Upper {
		v := total - g.Upper
		return penaltyWeight * v * v
	}
	return 0
}

func addGroupPenaltyGradient(g GroupLimit, w, grad []float64) {
	total := 0.0
	for _, idx := range g.Indexes {
		total += w[idx]
	}
	if total < g.Lower {
		v := g.Lower - total
		for _, idx := range g.Indexes {
			grad[idx] -= 2.0 * penaltyWeight * v
		}
	} else if total > g.Upper {
		v := total - g.Upper
		for _, idx := range g.Indexes {
			grad[idx] += 2.0 * penaltyWeight * v
		}
	}
}

// projectToBounds clamps x into the per-asset bounds, returning a copy.
func projectToBounds(x []float64, b Bounds) []float64 {
	w := make([]float64, len(x))
	for i := range x {
		w[i] = min(max(x[i], b.Lower[i]), b.Upper[i])
	}
	return w
}

// normalizeWeights scales w in place to sum to 1, flooring at zero.
func normalizeWeights(w []float64) {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		sum = 1e-10
	}
	for i := range w {
		w[i] = max(0, w[i]/sum)
	}
	sum = 0.0
	for _, v := range w {
		sum += v
	}
	if sum > 0 {
		for i := range w {
			w[i] /= sum
		}
	}
}
