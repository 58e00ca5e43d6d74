package optimization

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/advisor/pkg/formulas"
)

// Numerical tolerances for feasibility and solution checks.
const (
	// SumTolerance bounds the deviation of total weight from 1.
	SumTolerance = 1e-6
	// ConstraintTolerance bounds residual per-asset and group violations
	// in the final solution; dust removal shifts survivors slightly, so
	// this is looser than the budget check.
	ConstraintTolerance = 1e-2
)

// Bounds are per-asset weight intervals, parallel to Problem.Symbols.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// GroupLimit bounds the aggregate weight of a set of assets, identified
// by their indexes into Problem.Symbols.
type GroupLimit struct {
	Name    string
	Indexes []int
	Lower   float64
	Upper   float64
}

// Problem is a fully specified mean-variance allocation problem.
// Mu and Sigma are annualized. Lambda is the risk-aversion coefficient
// in the objective mu'w - (lambda/2)*w'*Sigma*w.
type Problem struct {
	Symbols []string
	Mu      []float64
	Sigma   *mat.SymDense
	Lambda  float64
	Bounds  Bounds
	Groups  []GroupLimit
}

// Validate checks dimensions, the covariance matrix and constraint
// feasibility. An error here is fatal: an infeasible problem is never
// solved best-effort.
func (p Problem) Validate() error {
	n := len(p.Mu)
	if n == 0 {
		return fmt.Errorf("no assets to optimize")
	}
	if len(p.Symbols) != n {
		return fmt.Errorf("symbol count %d does not match return count %d", len(p.Symbols), n)
	}
	if p.Sigma == nil {
		return fmt.Errorf("covariance matrix is missing")
	}
	if r, c := p.Sigma.Dims(); r != n || c != n {
		return fmt.Errorf("covariance matrix is %dx%d, want %dx%d", r, c, n, n)
	}
	if len(p.Bounds.Lower) != n || len(p.Bounds.Upper) != n {
		return fmt.Errorf("bounds do not match asset count %d", n)
	}
	if p.Lambda <= 0 {
		return fmt.Errorf("risk aversion lambda must be positive, got %.4f", p.Lambda)
	}

	ok, minEigen, err := formulas.IsPositiveSemiDefinite(p.Sigma)
	if err != nil {
		return fmt.Errorf("covariance eigendecomposition: %w", err)
	}
	if !ok {
		return fmt.Errorf("covariance matrix is not positive semi-definite (min eigenvalue %.3e)", minEigen)
	}

	lowerSum := 0.0
	upperSum := 0.0
	for i := 0; i < n; i++ {
		lo, hi := p.Bounds.Lower[i], p.Bounds.Upper[i]
		if lo < 0 {
			return fmt.Errorf("%s has negative lower bound %.4f; the portfolio is long-only", p.Symbols[i], lo)
		}
		if lo > hi {
			return fmt.Errorf("%s has invalid bounds: lower=%.4f > upper=%.4f", p.Symbols[i], lo, hi)
		}
		lowerSum += lo
		upperSum += hi
	}
	if lowerSum > 1.0+SumTolerance {
		return fmt.Errorf("total minimum weights %.2f%% exceed 100%%", lowerSum*100)
	}
	if upperSum < 1.0-SumTolerance {
		return fmt.Errorf("total maximum weights %.2f%% cannot reach 100%%", upperSum*100)
	}

	for _, g := range p.Groups {
		if err := p.validateGroup(g, n); err != nil {
			return err
		}
	}
	return nil
}

func (p Problem) validateGroup(g GroupLimit, n int) error {
	if g.Lower < 0 || g.Upper < g.Lower {
		return fmt.Errorf("group %s has invalid limits [%.4f, %.4f]", g.Name, g.Lower, g.Upper)
	}
	if g.Lower > 0 && len(g.Indexes) == 0 {
		return fmt.Errorf("group %s requires at least %.2f%% but has no members", g.Name, g.Lower*100)
	}

	member := make([]bool, n)
	memberLower := 0.0
	memberUpper := 0.0
	for _, idx := range g.Indexes {
		if idx < 0 || idx >= n {
			return fmt.Errorf("group %s references asset index %d outside universe of %d", g.Name, idx, n)
		}
		if member[idx] {
			return fmt.Errorf("group %s references asset index %d twice", g.Name, idx)
		}
		member[idx] = true
		memberLower += p.Bounds.Lower[idx]
		memberUpper += p.Bounds.Upper[idx]
	}
	if memberUpper < g.Lower-SumTolerance {
		return fmt.Errorf("group %s minimum %.2f%% exceeds member capacity %.2f%%", g.Name, g.Lower*100, memberUpper*100)
	}
	if memberLower > g.Upper+SumTolerance {
		return fmt.Errorf("group %s maximum %.2f%% is below member minimums %.2f%%", g.Name, g.Upper*100, memberLower*100)
	}

	restUpper := 0.0
	for i := 0; i < n; i++ {
		if !member[i] {
			restUpper += p.Bounds.Upper[i]
		}
	}
	if restUpper < 1.0-g.Upper-SumTolerance {
		return fmt.Errorf("group %s maximum %.2f%% leaves %.2f%% for the rest of the universe, but its capacity is only %.2f%%",
			g.Name, g.Upper*100, (1.0-g.Upper)*100, restUpper*100)
	}
	return nil
}

// Solver turns a Problem into raw portfolio weights. Implementations
// must be deterministic for identical inputs. The relaxed flag loosens
// convergence tolerances; it is set for the single retry after a failed
// first attempt.
type Solver interface {
	Solve(ctx context.Context, p Problem, relaxed bool) ([]float64, error)
}

// SolveFailedError reports a solve that did not reach a usable optimum.
type SolveFailedError struct {
	Status  string
	Timeout bool
}

func (e *SolveFailedError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("solver exceeded its time budget (status %s)", e.Status)
	}
	return fmt.Sprintf("solver did not converge (status %s)", e.Status)
}

// ResidualError reports a post-processed solution that still violates a
// constraint beyond tolerance.
type ResidualError struct {
	Constraint string
	Violation  float64
}

func (e *ResidualError) Error() string {
	return fmt.Sprintf("solution violates the %s constraint by %.4f", e.Constraint, e.Violation)
}

// Portfolio is an optimized allocation over the statistics universe.
// Weights are parallel to Symbols and sum to 1.
type Portfolio struct {
	Symbols []string  `json:"symbols"`
	Weights []float64 `json:"weights"`
	Lambda  float64   `json:"lambda"`
	Relaxed bool      `json:"relaxed"`
}

// WeightsBySymbol returns the non-zero weights keyed by symbol.
func (p *Portfolio) WeightsBySymbol() map[string]float64 {
	out := make(map[string]float64, len(p.Symbols))
	for i, sym := range p.Symbols {
		if p.Weights[i] > 0 {
			out[sym] = p.Weights[i]
		}
	}
	return out
}
