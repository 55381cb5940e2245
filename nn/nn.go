// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Common errors.
var (
	ErrInvalidConfig   = nn.ErrInvalidConfig
	ErrShapeMismatch   = nn.ErrShapeMismatch
	ErrLabelOutOfRange = nn.ErrLabelOutOfRange
)

// Data losses for the Loss field of the model configurations.
const (
	LossSoftmax = nn.LossSoftmax
	LossSVM     = nn.LossSVM
)

// Model is the loss/gradient interface a training driver consumes.
type Model[T tensor.Float] = nn.Model[T]

// ParamSet is an ordered collection of named tensors.
type ParamSet[T tensor.Float] = nn.ParamSet[T]

// NewParamSet creates an empty parameter set.
func NewParamSet[T tensor.Float]() *ParamSet[T] {
	return nn.NewParamSet[T]()
}

// Predict returns the argmax class of every row of x.
func Predict[T tensor.Float](m Model[T], x *tensor.Dense[T]) ([]int, error) {
	return nn.Predict(m, x)
}

// ThreeLayerNet

// ThreeLayerNet is a three-layer fully-connected classifier.
type ThreeLayerNet[T tensor.Float] = nn.ThreeLayerNet[T]

// ThreeLayerConfig configures a ThreeLayerNet.
type ThreeLayerConfig = nn.ThreeLayerConfig

// DefaultThreeLayerConfig returns the default ThreeLayerNet configuration:
// 3072 inputs, hidden layers of 64 and 32 units, 10 classes, weight scale
// 1e-3 and Leaky ReLU slope 1e-3.
func DefaultThreeLayerConfig() ThreeLayerConfig {
	return nn.DefaultThreeLayerConfig()
}

// NewThreeLayerNet creates a ThreeLayerNet.
//
// Example:
//
//	cfg := nn.DefaultThreeLayerConfig()
//	cfg.Reg = 1e-3
//	net, err := nn.NewThreeLayerNet[float64](cfg)
func NewThreeLayerNet[T tensor.Float](cfg ThreeLayerConfig) (*ThreeLayerNet[T], error) {
	return nn.NewThreeLayerNet[T](cfg)
}

// FullyConnectedNet

// FullyConnectedNet is a fully-connected classifier with any number of
// hidden layers and optional dropout.
type FullyConnectedNet[T tensor.Float] = nn.FullyConnectedNet[T]

// FullyConnectedConfig configures a FullyConnectedNet.
type FullyConnectedConfig = nn.FullyConnectedConfig

// DefaultFullyConnectedConfig returns the default configuration for the
// given hidden layer sizes.
func DefaultFullyConnectedConfig(hiddenDims ...int) FullyConnectedConfig {
	return nn.DefaultFullyConnectedConfig(hiddenDims...)
}

// NewFullyConnectedNet creates a FullyConnectedNet.
//
// Example:
//
//	cfg := nn.DefaultFullyConnectedConfig(100, 100, 100)
//	cfg.Dropout = 0.5
//	net, err := nn.NewFullyConnectedNet[float32](cfg)
func NewFullyConnectedNet[T tensor.Float](cfg FullyConnectedConfig) (*FullyConnectedNet[T], error) {
	return nn.NewFullyConnectedNet[T](cfg)
}
