// Package layers implements the stateless layer primitives the classifiers
// are assembled from.
//
// Every forward function returns its output together with a cache holding
// what the matching backward function needs:
//
//	out, cache := layers.AffineForward(x, w, b)
//	dx, dw, db := layers.AffineBackward(dout, cache)
//
// Shape mismatches are programming errors and panic. Functions that take
// labels or user-supplied hyperparameters return errors instead.
package layers

import (
	"fmt"

	"github.com/born-ml/fcnet/internal/tensor"
)

// AffineCache holds the inputs of an affine forward pass.
type AffineCache[T tensor.Float] struct {
	X *tensor.Dense[T] // original input, shape (N, d1, ..., dk)
	W *tensor.Dense[T] // (D, M)
	B *tensor.Dense[T] // (M)
}

// AffineForward computes out = x·w + b.
//
// The input x has shape (N, d1, ..., dk) and is treated as N rows of
// D = d1*...*dk features. w has shape (D, M) and b has shape (M).
// Returns out of shape (N, M).
func AffineForward[T tensor.Float](x, w, b *tensor.Dense[T]) (*tensor.Dense[T], *AffineCache[T]) {
	x2 := x.Rows2D()
	if len(w.Shape()) != 2 || x2.Dim(1) != w.Dim(0) {
		panic(fmt.Sprintf("AffineForward: input %v incompatible with weight %v", x.Shape(), w.Shape()))
	}
	if b.NumElements() != w.Dim(1) {
		panic(fmt.Sprintf("AffineForward: bias %v incompatible with weight %v", b.Shape(), w.Shape()))
	}

	out := tensor.MatMul(x2, w, false, false)
	tensor.AddRowVector(out, b)

	return out, &AffineCache[T]{X: x, W: w, B: b}
}

// AffineBackward computes the gradients of an affine layer.
//
// Given dout of shape (N, M) it returns dx with x's original shape,
// dw = xᵀ·dout of shape (D, M) and db = Σ_rows dout of shape (M).
func AffineBackward[T tensor.Float](dout *tensor.Dense[T], cache *AffineCache[T]) (dx, dw, db *tensor.Dense[T]) {
	x2 := cache.X.Rows2D()
	if len(dout.Shape()) != 2 || dout.Dim(0) != x2.Dim(0) || dout.Dim(1) != cache.W.Dim(1) {
		panic(fmt.Sprintf("AffineBackward: upstream gradient %v does not match output (%d, %d)",
			dout.Shape(), x2.Dim(0), cache.W.Dim(1)))
	}

	dx2 := tensor.MatMul(dout, cache.W, false, true)
	dx, err := dx2.Reshape(cache.X.Shape()...)
	if err != nil {
		panic(fmt.Sprintf("AffineBackward: %v", err))
	}
	dw = tensor.MatMul(x2, dout, true, false)
	db = tensor.SumRows(dout)

	return dx, dw, db
}
