package nn

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"github.com/born-ml/fcnet/internal/layers"
	"github.com/born-ml/fcnet/internal/tensor"
)

// FullyConnectedConfig configures a FullyConnectedNet.
type FullyConnectedConfig struct {
	HiddenDims  []int   // Size of each hidden layer
	InputDim    int     // Size of a flattened input sample (default: 3*32*32)
	NumClasses  int     // Number of classes (default: 10)
	Dropout     float64 // Keep probability in (0, 1]; 1 disables dropout (default: 1)
	Reg         float64 // L2 regularization strength (default: 0)
	Alpha       float64 // Negative slope of the Leaky ReLU layers (default: 1e-2)
	WeightScale float64 // Std of the Gaussian weight init (default: 1e-2)
	Loss        string  // Data loss: softmax or svm (default: softmax)
	InitSeed    uint64  // Seed of the weight initialization

	// Seed, when set, makes every dropout layer draw the same deterministic
	// mask on each call so the model can be gradient checked.
	Seed *uint64
}

// DefaultFullyConnectedConfig returns the default configuration for the
// given hidden layer sizes.
func DefaultFullyConnectedConfig(hiddenDims ...int) FullyConnectedConfig {
	return FullyConnectedConfig{
		HiddenDims:  hiddenDims,
		InputDim:    3 * 32 * 32,
		NumClasses:  10,
		Dropout:     1,
		Reg:         0,
		Alpha:       1e-2,
		WeightScale: 1e-2,
		Loss:        LossSoftmax,
	}
}

// Validate checks the configuration.
func (c FullyConnectedConfig) Validate() error {
	for i, h := range c.HiddenDims {
		if h <= 0 {
			return fmt.Errorf("%w: hidden dim %d is %d", ErrInvalidConfig, i, h)
		}
	}
	switch {
	case c.InputDim <= 0:
		return fmt.Errorf("%w: input dim %d", ErrInvalidConfig, c.InputDim)
	case c.NumClasses <= 0:
		return fmt.Errorf("%w: num classes %d", ErrInvalidConfig, c.NumClasses)
	case !(c.Dropout > 0 && c.Dropout <= 1):
		return fmt.Errorf("%w: dropout %v must be in (0, 1]", ErrInvalidConfig, c.Dropout)
	case c.WeightScale < 0:
		return fmt.Errorf("%w: weight scale %v", ErrInvalidConfig, c.WeightScale)
	case c.Reg < 0:
		return fmt.Errorf("%w: reg %v", ErrInvalidConfig, c.Reg)
	}
	_, err := dataLoss[float64](c.Loss)
	return err
}

// FullyConnectedNet is a fully-connected classifier with L = len(HiddenDims)+1
// affine layers:
//
//	{affine - leakyrelu - [dropout]} x (L - 1) - affine - softmax
//
// Weights and biases of layer i are stored under W<i> and b<i>. All
// computation runs in precision T. A FullyConnectedNet is not safe for
// concurrent use because dropout layers share one random source.
type FullyConnectedNet[T tensor.Float] struct {
	cfg          FullyConnectedConfig
	numLayers    int
	params       *ParamSet[T]
	loss         lossFunc[T]
	dropoutParam layers.DropoutParam
	dropoutSrc   rand.Source
	weights      []string
}

// NewFullyConnectedNet creates a network with Gaussian weights and zero biases.
func NewFullyConnectedNet[T tensor.Float](cfg FullyConnectedConfig) (*FullyConnectedNet[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loss, err := dataLoss[T](cfg.Loss)
	if err != nil {
		return nil, err
	}
	cfg.HiddenDims = append([]int(nil), cfg.HiddenDims...)

	n := &FullyConnectedNet[T]{
		cfg:       cfg,
		numLayers: len(cfg.HiddenDims) + 1,
		params:    NewParamSet[T](),
		loss:      loss,
	}

	src := rand.NewSource(cfg.InitSeed)
	dims := append(append([]int{cfg.InputDim}, cfg.HiddenDims...), cfg.NumClasses)
	for i := 1; i <= n.numLayers; i++ {
		initLayer(n.params, src, i, dims[i-1], dims[i], cfg.WeightScale)
		n.weights = append(n.weights, WeightName(i))
	}

	if n.UseDropout() {
		n.dropoutParam = layers.DropoutParam{Mode: layers.ModeTrain, P: cfg.Dropout, Seed: cfg.Seed}
		n.dropoutSrc = rand.NewSource(uint64(time.Now().UnixNano()))
	}

	return n, nil
}

// Config returns the network configuration.
func (n *FullyConnectedNet[T]) Config() FullyConnectedConfig {
	return n.cfg
}

// NumLayers returns the number of affine layers.
func (n *FullyConnectedNet[T]) NumLayers() int {
	return n.numLayers
}

// UseDropout reports whether dropout layers are active.
func (n *FullyConnectedNet[T]) UseDropout() bool {
	return n.cfg.Dropout != 1
}

// DType returns the precision the network computes in.
func (n *FullyConnectedNet[T]) DType() tensor.DataType {
	return tensor.DataTypeOf[T]()
}

// Params returns the learnable parameters.
func (n *FullyConnectedNet[T]) Params() *ParamSet[T] {
	return n.params
}

type fcCaches[T tensor.Float] struct {
	hidden  []*layers.AffineLReLUCache[T]
	dropout []*layers.DropoutCache[T]
	out     *layers.AffineCache[T]
}

func (n *FullyConnectedNet[T]) forward(x *tensor.Dense[T], mode layers.Mode) (*tensor.Dense[T], *fcCaches[T], error) {
	alpha := T(n.cfg.Alpha)
	dp := n.dropoutParam
	dp.Mode = mode

	c := &fcCaches[T]{
		hidden:  make([]*layers.AffineLReLUCache[T], n.numLayers-1),
		dropout: make([]*layers.DropoutCache[T], n.numLayers-1),
	}

	h := x
	for i := 1; i < n.numLayers; i++ {
		var hc *layers.AffineLReLUCache[T]
		h, hc = layers.AffineLReLUForward(h, n.params.Get(WeightName(i)), n.params.Get(BiasName(i)), alpha)
		c.hidden[i-1] = hc

		if n.UseDropout() {
			var dc *layers.DropoutCache[T]
			var err error
			h, dc, err = layers.DropoutForward(h, dp, n.dropoutSrc)
			if err != nil {
				return nil, nil, fmt.Errorf("layer %d dropout: %w", i, err)
			}
			c.dropout[i-1] = dc
		}
	}

	last := n.numLayers
	scores, oc := layers.AffineForward(h, n.params.Get(WeightName(last)), n.params.Get(BiasName(last)))
	c.out = oc
	return scores, c, nil
}

// Scores computes test-time class scores of shape (N, C). Dropout is disabled.
func (n *FullyConnectedNet[T]) Scores(x *tensor.Dense[T]) (*tensor.Dense[T], error) {
	if err := checkInput(x, n.cfg.InputDim); err != nil {
		return nil, err
	}
	scores, _, err := n.forward(x, layers.ModeTest)
	return scores, err
}

// Loss computes the training-time data loss (softmax unless configured
// otherwise) with L2 regularization and the gradients of all parameters.
func (n *FullyConnectedNet[T]) Loss(x *tensor.Dense[T], y []int) (float64, *ParamSet[T], error) {
	if err := checkInput(x, n.cfg.InputDim); err != nil {
		return 0, nil, err
	}
	if err := checkLabels(x.Dim(0), n.cfg.NumClasses, y); err != nil {
		return 0, nil, err
	}

	scores, c, err := n.forward(x, layers.ModeTrain)
	if err != nil {
		return 0, nil, err
	}

	loss, dout, err := n.loss(scores, y)
	if err != nil {
		return 0, nil, fmt.Errorf("data loss: %w", err)
	}

	last := n.numLayers
	dw := make([]*tensor.Dense[T], last+1)
	db := make([]*tensor.Dense[T], last+1)
	dout, dw[last], db[last] = layers.AffineBackward(dout, c.out)

	for i := last - 1; i >= 1; i-- {
		if n.UseDropout() {
			dout = layers.DropoutBackward(dout, c.dropout[i-1])
		}
		dout, dw[i], db[i] = layers.AffineLReLUBackward(dout, c.hidden[i-1])
	}

	grads := NewParamSet[T]()
	for i := 1; i <= last; i++ {
		grads.Set(WeightName(i), dw[i])
		grads.Set(BiasName(i), db[i])
	}

	loss = l2(loss, n.cfg.Reg, n.params, grads, n.weights)
	return loss, grads, nil
}
