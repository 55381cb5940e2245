package nn

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/fcnet/internal/layers"
	"github.com/born-ml/fcnet/internal/tensor"
)

// ThreeLayerConfig configures a ThreeLayerNet.
type ThreeLayerConfig struct {
	InputDim    int     // Size of a flattened input sample (default: 3*32*32)
	HiddenDims  [2]int  // Sizes of the first and second hidden layer (default: 64, 32)
	NumClasses  int     // Number of classes (default: 10)
	WeightScale float64 // Std of the Gaussian weight init (default: 1e-3)
	Reg         float64 // L2 regularization strength (default: 0)
	Alpha       float64 // Negative slope of the Leaky ReLU layers (default: 1e-3)
	Loss        string  // Data loss: softmax or svm (default: softmax)
	Seed        uint64  // Seed of the weight initialization
}

// DefaultThreeLayerConfig returns the default configuration.
func DefaultThreeLayerConfig() ThreeLayerConfig {
	return ThreeLayerConfig{
		InputDim:    3 * 32 * 32,
		HiddenDims:  [2]int{64, 32},
		NumClasses:  10,
		WeightScale: 1e-3,
		Reg:         0,
		Alpha:       1e-3,
		Loss:        LossSoftmax,
	}
}

// Validate checks the configuration.
func (c ThreeLayerConfig) Validate() error {
	switch {
	case c.InputDim <= 0:
		return fmt.Errorf("%w: input dim %d", ErrInvalidConfig, c.InputDim)
	case c.HiddenDims[0] <= 0 || c.HiddenDims[1] <= 0:
		return fmt.Errorf("%w: hidden dims %v", ErrInvalidConfig, c.HiddenDims)
	case c.NumClasses <= 0:
		return fmt.Errorf("%w: num classes %d", ErrInvalidConfig, c.NumClasses)
	case c.WeightScale < 0:
		return fmt.Errorf("%w: weight scale %v", ErrInvalidConfig, c.WeightScale)
	case c.Reg < 0:
		return fmt.Errorf("%w: reg %v", ErrInvalidConfig, c.Reg)
	}
	_, err := dataLoss[float64](c.Loss)
	return err
}

// ThreeLayerNet is a three-layer fully-connected classifier:
//
//	affine - leakyrelu - affine - leakyrelu - affine - softmax
//
// Parameters are stored under W1, b1, W2, b2, W3 and b3 with shapes
// (D, H1), (H1), (H1, H2), (H2), (H2, C) and (C).
type ThreeLayerNet[T tensor.Float] struct {
	cfg    ThreeLayerConfig
	params *ParamSet[T]
	loss   lossFunc[T]
}

// NewThreeLayerNet creates a network with Gaussian weights and zero biases.
func NewThreeLayerNet[T tensor.Float](cfg ThreeLayerConfig) (*ThreeLayerNet[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loss, err := dataLoss[T](cfg.Loss)
	if err != nil {
		return nil, err
	}

	src := rand.NewSource(cfg.Seed)
	params := NewParamSet[T]()
	h1, h2 := cfg.HiddenDims[0], cfg.HiddenDims[1]
	initLayer(params, src, 1, cfg.InputDim, h1, cfg.WeightScale)
	initLayer(params, src, 2, h1, h2, cfg.WeightScale)
	initLayer(params, src, 3, h2, cfg.NumClasses, cfg.WeightScale)

	return &ThreeLayerNet[T]{cfg: cfg, params: params, loss: loss}, nil
}

// Config returns the network configuration.
func (n *ThreeLayerNet[T]) Config() ThreeLayerConfig {
	return n.cfg
}

// Params returns the learnable parameters.
func (n *ThreeLayerNet[T]) Params() *ParamSet[T] {
	return n.params
}

type threeLayerCaches[T tensor.Float] struct {
	h1, h2 *layers.AffineLReLUCache[T]
	h3     *layers.AffineCache[T]
}

func (n *ThreeLayerNet[T]) forward(x *tensor.Dense[T]) (*tensor.Dense[T], threeLayerCaches[T]) {
	p, alpha := n.params, T(n.cfg.Alpha)

	h1, c1 := layers.AffineLReLUForward(x, p.Get("W1"), p.Get("b1"), alpha)
	h2, c2 := layers.AffineLReLUForward(h1, p.Get("W2"), p.Get("b2"), alpha)
	scores, c3 := layers.AffineForward(h2, p.Get("W3"), p.Get("b3"))

	return scores, threeLayerCaches[T]{h1: c1, h2: c2, h3: c3}
}

// Scores computes class scores of shape (N, C) for x of shape (N, d1, ..., dk).
func (n *ThreeLayerNet[T]) Scores(x *tensor.Dense[T]) (*tensor.Dense[T], error) {
	if err := checkInput(x, n.cfg.InputDim); err != nil {
		return nil, err
	}
	scores, _ := n.forward(x)
	return scores, nil
}

// Loss computes the data loss (softmax unless configured otherwise) with L2
// regularization and the gradients of all parameters.
func (n *ThreeLayerNet[T]) Loss(x *tensor.Dense[T], y []int) (float64, *ParamSet[T], error) {
	if err := checkInput(x, n.cfg.InputDim); err != nil {
		return 0, nil, err
	}
	if err := checkLabels(x.Dim(0), n.cfg.NumClasses, y); err != nil {
		return 0, nil, err
	}

	scores, c := n.forward(x)

	loss, dout, err := n.loss(scores, y)
	if err != nil {
		return 0, nil, fmt.Errorf("data loss: %w", err)
	}
	dx3, dw3, db3 := layers.AffineBackward(dout, c.h3)
	dx2, dw2, db2 := layers.AffineLReLUBackward(dx3, c.h2)
	_, dw1, db1 := layers.AffineLReLUBackward(dx2, c.h1)

	grads := NewParamSet[T]()
	grads.Set("W1", dw1)
	grads.Set("b1", db1)
	grads.Set("W2", dw2)
	grads.Set("b2", db2)
	grads.Set("W3", dw3)
	grads.Set("b3", db3)

	loss = l2(loss, n.cfg.Reg, n.params, grads, []string{"W1", "W2", "W3"})
	return loss, grads, nil
}
