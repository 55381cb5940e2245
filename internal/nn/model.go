// Package nn implements the fully-connected softmax classifiers.
//
// Two models are provided:
//   - ThreeLayerNet: affine - leakyrelu - affine - leakyrelu - affine - softmax
//   - FullyConnectedNet: {affine - leakyrelu - [dropout]} x (L - 1) - affine - softmax
//
// Both compute gradients with hand-written backward passes built from the
// layers package and add L2 regularization with a factor of 0.5, so the
// gradient contribution of a weight matrix W is reg*W.
//
// Models do not update their own parameters. A driver such as the solver
// package calls Loss, then applies an update rule to Params() using the
// returned gradients.
package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/fcnet/internal/layers"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Data loss functions selectable by name.
const (
	LossSoftmax = "softmax"
	LossSVM     = "svm"
)

type lossFunc[T tensor.Float] func(scores *tensor.Dense[T], y []int) (float64, *tensor.Dense[T], error)

// dataLoss returns the loss registered under name. An empty name selects
// the softmax loss.
func dataLoss[T tensor.Float](name string) (lossFunc[T], error) {
	switch name {
	case "", LossSoftmax:
		return layers.SoftmaxLoss[T], nil
	case LossSVM:
		return layers.SVMLoss[T], nil
	default:
		return nil, fmt.Errorf("%w: unknown loss %q (want %s or %s)", ErrInvalidConfig, name, LossSoftmax, LossSVM)
	}
}

// Common errors.
var (
	ErrInvalidConfig   = errors.New("invalid model configuration")
	ErrShapeMismatch   = errors.New("input shape mismatch")
	ErrLabelOutOfRange = errors.New("label out of range")
)

// Model is the loss/gradient interface a training driver consumes.
type Model[T tensor.Float] interface {
	// Params returns the learnable parameters. Updates to the returned
	// tensors change the model.
	Params() *ParamSet[T]

	// Scores runs a test-time forward pass over x of shape (N, d1, ..., dk)
	// and returns class scores of shape (N, C).
	Scores(x *tensor.Dense[T]) (*tensor.Dense[T], error)

	// Loss runs a training-time forward and backward pass and returns the
	// regularized loss and the gradient of every parameter, keyed like Params.
	Loss(x *tensor.Dense[T], y []int) (float64, *ParamSet[T], error)
}

// Predict returns the argmax class of every row of x.
func Predict[T tensor.Float](m Model[T], x *tensor.Dense[T]) ([]int, error) {
	scores, err := m.Scores(x)
	if err != nil {
		return nil, err
	}
	return tensor.ArgMaxRows(scores), nil
}

// checkInput validates that x holds rows of inputDim features.
func checkInput[T tensor.Float](x *tensor.Dense[T], inputDim int) error {
	if x == nil || len(x.Shape()) < 2 {
		var shape tensor.Shape
		if x != nil {
			shape = x.Shape()
		}
		return fmt.Errorf("%w: want (N, d1, ..., dk), got %v", ErrShapeMismatch, shape)
	}
	if _, d := x.Shape().Flat2D(); d != inputDim {
		return fmt.Errorf("%w: %v has %d features per sample, want %d", ErrShapeMismatch, x.Shape(), d, inputDim)
	}
	return nil
}

// checkLabels validates y against the batch size and class count.
func checkLabels(n, classes int, y []int) error {
	if len(y) != n {
		return fmt.Errorf("%w: %d labels for %d samples", ErrShapeMismatch, len(y), n)
	}
	for i, label := range y {
		if label < 0 || label >= classes {
			return fmt.Errorf("%w: y[%d] = %d, want [0, %d)", ErrLabelOutOfRange, i, label, classes)
		}
	}
	return nil
}

// l2 adds the 0.5*reg*Σ‖W‖² penalty for the given weights to loss and
// reg*W to their gradients.
func l2[T tensor.Float](loss float64, reg float64, params, grads *ParamSet[T], weights []string) float64 {
	if reg == 0 {
		return loss
	}
	var penalty float64
	for _, name := range weights {
		w := params.Get(name)
		penalty += tensor.SumSquares(w)
		tensor.AddScaled(grads.Get(name), T(reg), w)
	}
	return loss + 0.5*reg*penalty
}
