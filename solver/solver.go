// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package solver provides the minibatch training driver and the dataset
// helpers it consumes.
//
// Example:
//
//	train, test := solver.Synthetic(solver.SyntheticConfig{
//	    NumTrain: 1000, NumTest: 100, Dim: 20, NumClasses: 5,
//	})
//	ds, err := solver.Prepare[float32](train, test, solver.Split{
//	    NumTraining: 900, NumValidation: 100, NumTest: 100,
//	})
//	if err != nil {
//	    return err
//	}
//	s, err := solver.New(net, ds, solver.Options{UpdateRule: optim.RuleAdam})
//	if err != nil {
//	    return err
//	}
//	err = s.Train(ctx)
package solver

import (
	"github.com/born-ml/fcnet/internal/data"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/serialization"
	"github.com/born-ml/fcnet/internal/solver"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Solver performs minibatch training of a model.
type Solver[T tensor.Float] = solver.Solver[T]

// Options configures a Solver.
type Options = solver.Options

// Errors reported by the solver.
var (
	ErrInvalidOptions = solver.ErrInvalidOptions
	ErrDiverged       = solver.ErrDiverged
)

// New creates a solver for model on ds.
func New[T tensor.Float](model nn.Model[T], ds *Dataset[T], opts Options) (*Solver[T], error) {
	return solver.New(model, ds, opts)
}

// Datasets

// Raw is an unprepared set of float64 samples and labels.
type Raw = data.Raw

// Dataset holds prepared train, validation and test splits.
type Dataset[T tensor.Float] = data.Dataset[T]

// Split selects the subsets Prepare builds.
type Split = data.Split

// SyntheticConfig describes a Gaussian blob classification problem.
type SyntheticConfig = data.SyntheticConfig

// LoadCIFAR10 reads the CIFAR-10 binary version from dir.
func LoadCIFAR10(dir string) (*data.CIFAR10, error) {
	return data.LoadCIFAR10(dir)
}

// Synthetic generates Gaussian blob train and test sets.
func Synthetic(cfg SyntheticConfig) (train, test *Raw) {
	return data.Synthetic(cfg)
}

// Prepare builds the splits, optionally subtracts the mean training image
// and casts to T.
func Prepare[T tensor.Float](train, test *Raw, s Split) (*Dataset[T], error) {
	return data.Prepare[T](train, test, s)
}

// Checkpoints

// SaveParams writes parameters to a SafeTensors file.
func SaveParams[T tensor.Float](path string, params *nn.ParamSet[T], metadata map[string]string) error {
	return serialization.Save(path, params, metadata)
}

// LoadParams reads parameters from a SafeTensors file.
func LoadParams[T tensor.Float](path string) (*nn.ParamSet[T], map[string]string, error) {
	return serialization.Load[T](path)
}
