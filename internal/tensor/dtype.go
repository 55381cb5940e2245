// Package tensor provides the dense arrays used by the fcnet classifiers.
//
// A Dense[T] is a contiguous row-major block of float32 or float64 values
// with a shape. Matrix products go through gonum's BLAS implementation;
// everything else is plain loops over the backing slice.
package tensor

import "fmt"

// Float is the constraint for tensor element types.
// Precision is selected at compile time through the type parameter.
type Float interface {
	float32 | float64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// ParseDataType maps "float32" / "float64" to a DataType.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q (want float32 or float64)", s)
	}
}

// DataTypeOf returns the runtime tag for T.
func DataTypeOf[T Float]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	default:
		return Float64
	}
}
