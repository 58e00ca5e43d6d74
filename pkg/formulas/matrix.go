package formulas

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PSDTolerance is how far below zero the smallest eigenvalue of a
// covariance matrix may sit before the matrix is rejected. A sample
// covariance is positive semi-definite in exact arithmetic; anything
// worse than this is bad input, not float noise.
const PSDTolerance = 1e-8

// MinEigenvalue returns the smallest eigenvalue of a symmetric matrix.
func MinEigenvalue(m *mat.SymDense) (float64, error) {
	var eig mat.EigenSym
	if !eig.Factorize(m, false) {
		return 0, fmt.Errorf("eigendecomposition failed")
	}

	values := eig.Values(nil)
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min, nil
}

// IsPositiveSemiDefinite reports whether a symmetric matrix is positive
// semi-definite within PSDTolerance, along with its smallest eigenvalue.
func IsPositiveSemiDefinite(m *mat.SymDense) (bool, float64, error) {
	min, err := MinEigenvalue(m)
	if err != nil {
		return false, 0, err
	}
	return min >= -PSDTolerance, min, nil
}
