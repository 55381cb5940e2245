package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// MatMul performs matrix multiplication of 2-D tensors.
//
// With transA/transB the corresponding operand is used transposed, so
// MatMul(x, dout, true, false) computes xᵀ·dout without materializing xᵀ.
// The product is computed by gonum's BLAS Gemm for the element type.
func MatMul[T Float](a, b *Dense[T], transA, transB bool) *Dense[T] {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %v and %v", a.shape, b.shape))
	}

	m, k := a.shape[0], a.shape[1]
	if transA {
		m, k = k, m
	}
	kAlt, n := b.shape[0], b.shape[1]
	if transB {
		kAlt, n = n, kAlt
	}
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch %v (trans=%t) @ %v (trans=%t)", a.shape, transA, b.shape, transB))
	}

	c := Zeros[T](m, n)
	tA, tB := blas.NoTrans, blas.NoTrans
	if transA {
		tA = blas.Trans
	}
	if transB {
		tB = blas.Trans
	}

	switch cData := any(c.data).(type) {
	case []float32:
		blas32.Gemm(tA, tB, 1,
			general32(a.shape, any(a.data).([]float32)),
			general32(b.shape, any(b.data).([]float32)),
			0, general32(c.shape, cData))
	case []float64:
		blas64.Gemm(tA, tB, 1,
			general64(a.shape, any(a.data).([]float64)),
			general64(b.shape, any(b.data).([]float64)),
			0, general64(c.shape, cData))
	}
	return c
}

func general32(s Shape, data []float32) blas32.General {
	return blas32.General{Rows: s[0], Cols: s[1], Stride: s[1], Data: data}
}

func general64(s Shape, data []float64) blas64.General {
	return blas64.General{Rows: s[0], Cols: s[1], Stride: s[1], Data: data}
}

// AddRowVector adds v (shape [M]) to every row of x (shape [N, M]) in place.
func AddRowVector[T Float](x, v *Dense[T]) {
	if len(x.shape) != 2 || v.NumElements() != x.shape[1] {
		panic(fmt.Sprintf("AddRowVector: cannot broadcast %v over %v", v.shape, x.shape))
	}
	cols := x.shape[1]
	for i := 0; i < x.shape[0]; i++ {
		row := x.data[i*cols : (i+1)*cols]
		for j := range row {
			row[j] += v.data[j]
		}
	}
}

// SumRows sums a [N, M] tensor over its rows, returning shape [M].
func SumRows[T Float](x *Dense[T]) *Dense[T] {
	if len(x.shape) != 2 {
		panic(fmt.Sprintf("SumRows: expected 2D tensor, got shape %v", x.shape))
	}
	cols := x.shape[1]
	out := Zeros[T](cols)
	for i := 0; i < x.shape[0]; i++ {
		row := x.data[i*cols : (i+1)*cols]
		for j, v := range row {
			out.data[j] += v
		}
	}
	return out
}

// Scale multiplies every element by alpha in place.
func Scale[T Float](x *Dense[T], alpha T) {
	for i := range x.data {
		x.data[i] *= alpha
	}
}

// AddScaled computes y += alpha*x in place. Shapes must match.
func AddScaled[T Float](y *Dense[T], alpha T, x *Dense[T]) {
	if !y.shape.Equal(x.shape) {
		panic(fmt.Sprintf("AddScaled: shape mismatch %v vs %v", y.shape, x.shape))
	}
	for i, v := range x.data {
		y.data[i] += alpha * v
	}
}

// SumSquares returns Σ x², accumulated in float64.
func SumSquares[T Float](x *Dense[T]) float64 {
	var sum float64
	for _, v := range x.data {
		f := float64(v)
		sum += f * f
	}
	return sum
}

// ArgMaxRows returns the column index of the largest value in each row.
// Ties resolve to the lowest index.
func ArgMaxRows[T Float](x *Dense[T]) []int {
	if len(x.shape) != 2 {
		panic(fmt.Sprintf("ArgMaxRows: expected 2D tensor, got shape %v", x.shape))
	}
	out := make([]int, x.shape[0])
	cols := x.shape[1]
	for i := range out {
		row := x.data[i*cols : (i+1)*cols]
		best := 0
		for j := 1; j < cols; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}
