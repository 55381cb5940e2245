// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the dense arrays used by the
// fcnet classifiers.
//
// A Dense[T] is a contiguous row-major block of float32 or float64 values.
// Precision is selected with the type parameter:
//
//	x := tensor.Zeros[float32](64, 3, 32, 32)
//	w := tensor.Normal[float64](rand.NewSource(0), 0, 1e-2, 3072, 100)
package tensor

import (
	"golang.org/x/exp/rand"

	"github.com/born-ml/fcnet/internal/tensor"
)

// Float is the constraint for tensor element types: float32 or float64.
type Float = tensor.Float

// DataType is the runtime tag of an element type.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// Shape is the size of every dimension of a tensor.
type Shape = tensor.Shape

// Dense is a contiguous row-major tensor.
type Dense[T Float] = tensor.Dense[T]

// ParseDataType maps "float32" / "float64" to a DataType.
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// Zeros creates a tensor filled with zeros. Panics if a dimension is not positive.
func Zeros[T Float](shape ...int) *Dense[T] {
	return tensor.Zeros[T](shape...)
}

// Full creates a tensor filled with value.
func Full[T Float](value T, shape ...int) *Dense[T] {
	return tensor.Full(value, shape...)
}

// FromSlice creates a tensor holding a copy of data.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
func FromSlice[T Float](data []T, shape ...int) (*Dense[T], error) {
	return tensor.FromSlice(data, shape...)
}

// Normal creates a tensor with values drawn from N(mu, sigma²) using src.
func Normal[T Float](src rand.Source, mu, sigma float64, shape ...int) *Dense[T] {
	return tensor.Normal[T](src, mu, sigma, shape...)
}

// Cast converts a tensor to element type U.
func Cast[U, T Float](src *Dense[T]) *Dense[U] {
	return tensor.Cast[U](src)
}
