// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the update rules used to train the classifiers.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent, optionally with momentum
//   - RMSProp: Moving average of squared gradients
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface shared by all rules
//
// # Basic Usage
//
//	opt, err := optim.New[float32](optim.RuleAdam, optim.Config{LR: 1e-3})
//	if err != nil {
//	    return err
//	}
//	loss, grads, err := net.Loss(xBatch, yBatch)
//	if err != nil {
//	    return err
//	}
//	err = opt.Step(net.Params(), grads)
package optim

import (
	"github.com/born-ml/fcnet/internal/optim"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Update rule names accepted by New.
const (
	RuleSGD         = optim.RuleSGD
	RuleSGDMomentum = optim.RuleSGDMomentum
	RuleRMSProp     = optim.RuleRMSProp
	RuleAdam        = optim.RuleAdam
)

// ErrUnknownRule is returned by New for an unsupported rule name.
var ErrUnknownRule = optim.ErrUnknownRule

// Optimizer is the interface shared by all update rules.
type Optimizer[T tensor.Float] = optim.Optimizer[T]

// Config holds the hyperparameters of all update rules.
type Config = optim.Config

// New creates the optimizer registered under name.
func New[T tensor.Float](name string, cfg Config) (Optimizer[T], error) {
	return optim.New[T](name, cfg)
}

// SGD represents the SGD optimizer with optional momentum.
type SGD[T tensor.Float] = optim.SGD[T]

// NewSGD creates a new SGD optimizer.
func NewSGD[T tensor.Float](cfg Config) *SGD[T] {
	return optim.NewSGD[T](cfg)
}

// RMSProp represents the RMSProp optimizer.
type RMSProp[T tensor.Float] = optim.RMSProp[T]

// NewRMSProp creates a new RMSProp optimizer.
func NewRMSProp[T tensor.Float](cfg Config) *RMSProp[T] {
	return optim.NewRMSProp[T](cfg)
}

// Adam represents the Adam optimizer.
type Adam[T tensor.Float] = optim.Adam[T]

// NewAdam creates a new Adam optimizer.
//
// Example:
//
//	adam := optim.NewAdam[float64](optim.Config{LR: 1e-3, Beta1: 0.9, Beta2: 0.999})
func NewAdam[T tensor.Float](cfg Config) *Adam[T] {
	return optim.NewAdam[T](cfg)
}
