package tensor

import (
	"fmt"
)

// Dense is a contiguous row-major tensor of float32 or float64 values.
//
// Example:
//
//	x := tensor.Zeros[float32](4, 3072)
//	w := tensor.Normal[float32](src, 0, 1e-3, 3072, 100)
//	h := tensor.MatMul(x, w, false, false) // (4, 100)
type Dense[T Float] struct {
	data  []T
	shape Shape
}

// Zeros creates a tensor filled with zeros.
// Panics if any dimension is not positive.
func Zeros[T Float](shape ...int) *Dense[T] {
	s := Shape(shape)
	if err := s.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.Zeros: %v", err))
	}
	return &Dense[T]{
		data:  make([]T, s.NumElements()),
		shape: s.Clone(),
	}
}

// Full creates a tensor filled with a specific value.
func Full[T Float](value T, shape ...int) *Dense[T] {
	t := Zeros[T](shape...)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T Float](data []T, shape ...int) (*Dense[T], error) {
	s := Shape(shape)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", s, s.NumElements(), len(data))
	}
	t := &Dense[T]{
		data:  make([]T, len(data)),
		shape: s.Clone(),
	}
	copy(t.data, data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Dense[T]) Shape() Shape {
	return t.shape
}

// Dim returns the size of dimension i.
func (t *Dense[T]) Dim(i int) int {
	return t.shape[i]
}

// DType returns the tensor's data type.
func (t *Dense[T]) DType() DataType {
	return DataTypeOf[T]()
}

// NumElements returns the total number of elements.
func (t *Dense[T]) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Dense[T]) Data() []T {
	return t.data
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Dense[T]) At(indices ...int) T {
	return t.data[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Dense[T]) Set(value T, indices ...int) {
	t.data[t.offset(indices)] = value
}

func (t *Dense[T]) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(t.shape), len(indices)))
	}
	offset := 0
	strides := t.shape.ComputeStrides()
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		offset += idx * strides[i]
	}
	return offset
}

// Clone creates a deep copy of the tensor.
func (t *Dense[T]) Clone() *Dense[T] {
	c := &Dense[T]{
		data:  make([]T, len(t.data)),
		shape: t.shape.Clone(),
	}
	copy(c.data, t.data)
	return c
}

// Reshape returns a view with a new shape sharing the same data.
func (t *Dense[T]) Reshape(shape ...int) (*Dense[T], error) {
	s := Shape(shape)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.NumElements() != len(t.data) {
		return nil, fmt.Errorf("cannot reshape %v into %v", t.shape, s)
	}
	return &Dense[T]{data: t.data, shape: s.Clone()}, nil
}

// Rows2D returns a (N, D) view where N is the first dimension and D is the
// product of the remaining ones. The data is shared.
func (t *Dense[T]) Rows2D() *Dense[T] {
	n, d := t.shape.Flat2D()
	if len(t.shape) == 2 {
		return t
	}
	return &Dense[T]{data: t.data, shape: Shape{n, d}}
}

// Row returns row i of a 2-D tensor as a slice view.
func (t *Dense[T]) Row(i int) []T {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("Row: expected 2D tensor, got shape %v", t.shape))
	}
	cols := t.shape[1]
	return t.data[i*cols : (i+1)*cols]
}

// CopyFrom copies src's values into t. Shapes must match.
func (t *Dense[T]) CopyFrom(src *Dense[T]) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("shape mismatch: %v vs %v", t.shape, src.shape)
	}
	copy(t.data, src.data)
	return nil
}

// String returns a human-readable representation of the tensor.
func (t *Dense[T]) String() string {
	return fmt.Sprintf("Dense[%s]%v", t.DType(), t.shape)
}

// Cast converts a tensor to another precision.
func Cast[U, T Float](src *Dense[T]) *Dense[U] {
	out := &Dense[U]{
		data:  make([]U, len(src.data)),
		shape: src.shape.Clone(),
	}
	for i, v := range src.data {
		out.data[i] = U(v)
	}
	return out
}
