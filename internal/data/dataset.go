package data

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/fcnet/internal/tensor"
)

// ErrInvalidSplit is returned when a split asks for more samples than exist.
var ErrInvalidSplit = errors.New("invalid dataset split")

// Split selects the train/validation/test subsets Prepare builds.
type Split struct {
	NumTraining   int  // Leading training samples used for training (default: 49000)
	NumValidation int  // Training samples following them, used for validation (default: 1000)
	NumTest       int  // Leading test samples (default: 1000)
	SubtractMean  bool // Subtract the mean training image from every split (default: true)
}

// DefaultSplit returns the standard CIFAR-10 split.
func DefaultSplit() Split {
	return Split{
		NumTraining:   49000,
		NumValidation: 1000,
		NumTest:       1000,
		SubtractMean:  true,
	}
}

// Dataset holds prepared splits in precision T.
type Dataset[T tensor.Float] struct {
	XTrain *tensor.Dense[T]
	YTrain []int
	XVal   *tensor.Dense[T]
	YVal   []int
	XTest  *tensor.Dense[T]
	YTest  []int

	// Mean is the mean training image that was subtracted, or nil.
	Mean []float64
}

// Prepare slices train into training and validation sets, takes the test
// set from test, optionally subtracts the mean training image and casts
// everything to T.
func Prepare[T tensor.Float](train, test *Raw, s Split) (*Dataset[T], error) {
	if s.NumTraining <= 0 || s.NumValidation < 0 || s.NumTest < 0 {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidSplit, s)
	}
	if s.NumTraining+s.NumValidation > train.Len() {
		return nil, fmt.Errorf("%w: %d training + %d validation samples requested, %d available",
			ErrInvalidSplit, s.NumTraining, s.NumValidation, train.Len())
	}
	if s.NumTest > 0 && (test == nil || s.NumTest > test.Len()) {
		available := 0
		if test != nil {
			available = test.Len()
		}
		return nil, fmt.Errorf("%w: %d test samples requested, %d available", ErrInvalidSplit, s.NumTest, available)
	}

	xTrain, yTrain := slice(train, 0, s.NumTraining)
	xVal, yVal := slice(train, s.NumTraining, s.NumTraining+s.NumValidation)
	var xTest *tensor.Dense[float64]
	var yTest []int
	if s.NumTest > 0 {
		xTest, yTest = slice(test, 0, s.NumTest)
	}

	ds := &Dataset[T]{YTrain: yTrain, YVal: yVal, YTest: yTest}
	if s.SubtractMean {
		ds.Mean = MeanRow(xTrain)
		for _, x := range []*tensor.Dense[float64]{xTrain, xVal, xTest} {
			subtractRow(x, ds.Mean)
		}
	}

	ds.XTrain = tensor.Cast[T](xTrain)
	if xVal != nil {
		ds.XVal = tensor.Cast[T](xVal)
	}
	if xTest != nil {
		ds.XTest = tensor.Cast[T](xTest)
	}
	return ds, nil
}

// slice copies samples [lo, hi) of r. It returns nil for an empty range.
func slice(r *Raw, lo, hi int) (*tensor.Dense[float64], []int) {
	if hi <= lo {
		return nil, nil
	}
	idx := make([]int, hi-lo)
	for i := range idx {
		idx[i] = lo + i
	}
	return Batch(r.X, r.Y, idx)
}

// MeanRow returns the mean over samples of x, flattened to one row.
func MeanRow(x *tensor.Dense[float64]) []float64 {
	n, d := x.Shape().Flat2D()
	mean := make([]float64, d)
	data := x.Data()
	for i := range n {
		floats.Add(mean, data[i*d:(i+1)*d])
	}
	floats.Scale(1/float64(n), mean)
	return mean
}

func subtractRow(x *tensor.Dense[float64], row []float64) {
	if x == nil {
		return
	}
	n, d := x.Shape().Flat2D()
	data := x.Data()
	for i := range n {
		floats.Sub(data[i*d:(i+1)*d], row)
	}
}

// Batch gathers the samples at idx into a new tensor of shape
// (len(idx), d1, ..., dk) and their labels.
func Batch[T tensor.Float](x *tensor.Dense[T], y []int, idx []int) (*tensor.Dense[T], []int) {
	n, d := x.Shape().Flat2D()
	shape := append([]int{len(idx)}, x.Shape()[1:]...)
	out := tensor.Zeros[T](shape...)
	labels := make([]int, len(idx))

	src, dst := x.Data(), out.Data()
	for i, j := range idx {
		if j < 0 || j >= n {
			panic(fmt.Sprintf("data: sample index %d out of range [0, %d)", j, n))
		}
		copy(dst[i*d:(i+1)*d], src[j*d:(j+1)*d])
		labels[i] = y[j]
	}
	return out, labels
}
