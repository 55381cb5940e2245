// Package gradcheck compares analytic gradients against central finite
// differences.
package gradcheck

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

// DefaultStep is the finite-difference step used when step <= 0.
const DefaultStep = 1e-5

// Numeric estimates the gradient of f with respect to the values in x.
//
// x is the live storage f reads from (for example a parameter's backing
// slice); it is perturbed in place during evaluation and restored before
// Numeric returns.
func Numeric(f func() float64, x []float64, step float64) []float64 {
	if step <= 0 {
		step = DefaultStep
	}
	orig := slices.Clone(x)
	grad := fd.Gradient(nil, func(p []float64) float64 {
		copy(x, p)
		return f()
	}, orig, &fd.Settings{Formula: fd.Central, Step: step})
	copy(x, orig)
	return grad
}

// NumericArray estimates the gradient of the vector function f with respect
// to x, contracted with the upstream gradient dout: ∂(Σ f(x)·dout)/∂x.
func NumericArray(f func() []float64, x, dout []float64, step float64) []float64 {
	return Numeric(func() float64 {
		return floats.Dot(f(), dout)
	}, x, step)
}

// RelError returns max_i |a_i - b_i| / max(1e-8, |a_i| + |b_i|).
func RelError(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("gradcheck: length mismatch")
	}
	if len(a) == 0 {
		return 0
	}
	errs := make([]float64, len(a))
	for i := range a {
		errs[i] = math.Abs(a[i]-b[i]) / math.Max(1e-8, math.Abs(a[i])+math.Abs(b[i]))
	}
	return floats.Max(errs)
}
