// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the fully-connected softmax classifiers.
//
// # Overview
//
// This package contains:
//   - ThreeLayerNet: affine - leakyrelu - affine - leakyrelu - affine - softmax
//   - FullyConnectedNet: {affine - leakyrelu - [dropout]} x (L - 1) - affine - softmax
//   - Model: the loss/gradient interface both networks implement
//   - ParamSet: ordered named parameters and gradients
//
// # Basic Usage
//
//	net, err := nn.NewFullyConnectedNet[float32](nn.DefaultFullyConnectedConfig(100, 100))
//	if err != nil {
//	    return err
//	}
//
//	// Training-time loss and gradients
//	loss, grads, err := net.Loss(xBatch, yBatch)
//
//	// Test-time class scores and predictions
//	scores, err := net.Scores(xTest)
//	pred, err := nn.Predict[float32](net, xTest)
//
// Both networks add 0.5*reg*Σ‖W‖² to the loss, so the regularization
// gradient of a weight matrix is reg*W. Biases are not regularized.
package nn
