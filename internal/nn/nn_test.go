package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/born-ml/fcnet/internal/gradcheck"
	"github.com/born-ml/fcnet/internal/tensor"
)

// checkGradients compares every analytic gradient of m against central
// differences and returns the worst relative error per parameter.
func checkGradients(t *testing.T, m Model[float64], x *tensor.Dense[float64], y []int) map[string]float64 {
	t.Helper()

	_, grads, err := m.Loss(x, y)
	require.NoError(t, err)

	errs := make(map[string]float64)
	params := m.Params()
	for _, name := range params.Names() {
		p := params.Get(name)
		g := grads.Get(name)
		require.NotNil(t, g, "missing gradient for %s", name)
		require.True(t, g.Shape().Equal(p.Shape()), "gradient shape for %s", name)

		num := gradcheck.Numeric(func() float64 {
			l, _, err := m.Loss(x, y)
			require.NoError(t, err)
			return l
		}, p.Data(), gradcheck.DefaultStep)
		errs[name] = gradcheck.RelError(g.Data(), num)
	}
	return errs
}

func smallBatch(seed uint64, n, d, classes int) (*tensor.Dense[float64], []int) {
	x := tensor.Normal[float64](rand.NewSource(seed), 0, 1, n, d)
	r := rand.New(rand.NewSource(seed + 1))
	y := make([]int, n)
	for i := range y {
		y[i] = r.Intn(classes)
	}
	return x, y
}

func TestParamSet(t *testing.T) {
	p := NewParamSet[float64]()
	p.Set("W1", tensor.Zeros[float64](2, 3))
	p.Set("b1", tensor.Zeros[float64](3))
	p.Set("W1", tensor.Full[float64](1, 2, 3))

	assert.Equal(t, []string{"W1", "b1"}, p.Names())
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 9, p.NumElements())
	assert.True(t, p.Has("b1"))
	assert.Nil(t, p.Get("W2"))

	c := p.Clone()
	c.Get("W1").Data()[0] = 5
	assert.Equal(t, 1.0, p.Get("W1").Data()[0])

	require.NoError(t, p.Load(c))
	assert.Equal(t, 5.0, p.Get("W1").Data()[0])

	bad := NewParamSet[float64]()
	bad.Set("W1", tensor.Zeros[float64](3, 2))
	bad.Set("b1", tensor.Zeros[float64](3))
	assert.Error(t, p.Load(bad))
	assert.Error(t, p.Load(NewParamSet[float64]()))

	assert.Equal(t, "W12", WeightName(12))
	assert.Equal(t, "b3", BiasName(3))
}

func TestThreeLayerNet_Init(t *testing.T) {
	cfg := DefaultThreeLayerConfig()
	net, err := NewThreeLayerNet[float64](cfg)
	require.NoError(t, err)

	p := net.Params()
	assert.Equal(t, []string{"W1", "b1", "W2", "b2", "W3", "b3"}, p.Names())
	assert.True(t, p.Get("W1").Shape().Equal(tensor.Shape{3072, 64}))
	assert.True(t, p.Get("W2").Shape().Equal(tensor.Shape{64, 32}))
	assert.True(t, p.Get("W3").Shape().Equal(tensor.Shape{32, 10}))
	assert.True(t, p.Get("b3").Shape().Equal(tensor.Shape{10}))

	assert.Equal(t, 0.0, tensor.SumSquares(p.Get("b1")))
	std := math.Sqrt(tensor.SumSquares(p.Get("W1")) / float64(p.Get("W1").NumElements()))
	assert.InDelta(t, cfg.WeightScale, std, cfg.WeightScale*0.05)
}

func TestThreeLayerNet_InvalidConfig(t *testing.T) {
	cfg := DefaultThreeLayerConfig()
	cfg.HiddenDims = [2]int{10, 0}
	_, err := NewThreeLayerNet[float32](cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultThreeLayerConfig()
	cfg.Reg = -1
	_, err = NewThreeLayerNet[float32](cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestThreeLayerNet_ScoresShape(t *testing.T) {
	cfg := ThreeLayerConfig{InputDim: 12, HiddenDims: [2]int{8, 6}, NumClasses: 4, WeightScale: 0.1, Alpha: 0.01}
	net, err := NewThreeLayerNet[float32](cfg)
	require.NoError(t, err)

	x := tensor.Normal[float32](rand.NewSource(3), 0, 1, 5, 3, 2, 2)
	scores, err := net.Scores(x)
	require.NoError(t, err)
	assert.True(t, scores.Shape().Equal(tensor.Shape{5, 4}))

	preds, err := Predict[float32](net, x)
	require.NoError(t, err)
	assert.Len(t, preds, 5)

	_, err = net.Scores(tensor.Zeros[float32](5, 11))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestThreeLayerNet_ZeroWeightsGiveUniformLoss(t *testing.T) {
	cfg := ThreeLayerConfig{InputDim: 6, HiddenDims: [2]int{5, 4}, NumClasses: 7, WeightScale: 0, Alpha: 1e-3}
	net, err := NewThreeLayerNet[float64](cfg)
	require.NoError(t, err)

	x, y := smallBatch(4, 3, 6, 7)
	loss, _, err := net.Loss(x, y)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(7), loss, 1e-12)
}

func TestThreeLayerNet_GradientCheck(t *testing.T) {
	for _, reg := range []float64{0, 0.7} {
		cfg := ThreeLayerConfig{InputDim: 15, HiddenDims: [2]int{20, 30}, NumClasses: 7, WeightScale: 5e-2, Reg: reg, Alpha: 0.1, Seed: 5}
		net, err := NewThreeLayerNet[float64](cfg)
		require.NoError(t, err)

		x, y := smallBatch(6, 2, 15, 7)
		for name, relErr := range checkGradients(t, net, x, y) {
			assert.Less(t, relErr, 1e-4, "reg=%v %s", reg, name)
		}
	}
}

func TestThreeLayerNet_Regularization(t *testing.T) {
	cfg := ThreeLayerConfig{InputDim: 10, HiddenDims: [2]int{6, 5}, NumClasses: 3, WeightScale: 0.1, Alpha: 0.01, Seed: 9}
	plain, err := NewThreeLayerNet[float64](cfg)
	require.NoError(t, err)
	cfg.Reg = 0.3
	reg, err := NewThreeLayerNet[float64](cfg)
	require.NoError(t, err)

	x, y := smallBatch(10, 4, 10, 3)
	l0, g0, err := plain.Loss(x, y)
	require.NoError(t, err)
	l1, g1, err := reg.Loss(x, y)
	require.NoError(t, err)

	p := reg.Params()
	var sq float64
	for _, name := range []string{"W1", "W2", "W3"} {
		sq += tensor.SumSquares(p.Get(name))
	}
	assert.InDelta(t, 0.5*0.3*sq, l1-l0, 1e-12)

	// Biases are not regularized; weights gain reg*W.
	assert.Equal(t, g0.Get("b2").Data(), g1.Get("b2").Data())
	w := p.Get("W3").Data()
	for i, v := range g1.Get("W3").Data() {
		assert.InDelta(t, g0.Get("W3").Data()[i]+0.3*w[i], v, 1e-12)
	}
}

func TestThreeLayerNet_LabelErrors(t *testing.T) {
	cfg := ThreeLayerConfig{InputDim: 4, HiddenDims: [2]int{3, 3}, NumClasses: 2, WeightScale: 0.1, Alpha: 0.01}
	net, err := NewThreeLayerNet[float64](cfg)
	require.NoError(t, err)

	x := tensor.Zeros[float64](2, 4)
	_, _, err = net.Loss(x, []int{0})
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, _, err = net.Loss(x, []int{0, 2})
	assert.ErrorIs(t, err, ErrLabelOutOfRange)
}

func TestFullyConnectedNet_Init(t *testing.T) {
	cfg := DefaultFullyConnectedConfig(100, 50, 25)
	net, err := NewFullyConnectedNet[float32](cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, net.NumLayers())
	assert.False(t, net.UseDropout())
	assert.Equal(t, tensor.Float32, net.DType())

	p := net.Params()
	assert.Equal(t, []string{"W1", "b1", "W2", "b2", "W3", "b3", "W4", "b4"}, p.Names())
	assert.True(t, p.Get("W1").Shape().Equal(tensor.Shape{3072, 100}))
	assert.True(t, p.Get("W2").Shape().Equal(tensor.Shape{100, 50}))
	assert.True(t, p.Get("W3").Shape().Equal(tensor.Shape{50, 25}))
	assert.True(t, p.Get("W4").Shape().Equal(tensor.Shape{25, 10}))
	assert.True(t, p.Get("b4").Shape().Equal(tensor.Shape{10}))
	assert.Equal(t, tensor.Float32, p.Get("W2").DType())

	std := math.Sqrt(tensor.SumSquares(p.Get("W1")) / float64(p.Get("W1").NumElements()))
	assert.InDelta(t, 1e-2, std, 1e-3)
}

func TestFullyConnectedNet_InitIsSeeded(t *testing.T) {
	cfg := DefaultFullyConnectedConfig(10)
	cfg.InputDim = 8
	cfg.InitSeed = 77

	a, err := NewFullyConnectedNet[float64](cfg)
	require.NoError(t, err)
	b, err := NewFullyConnectedNet[float64](cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Params().Get("W1").Data(), b.Params().Get("W1").Data())

	cfg.InitSeed = 78
	c, err := NewFullyConnectedNet[float64](cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Params().Get("W1").Data(), c.Params().Get("W1").Data())
}

func TestFullyConnectedNet_InvalidConfig(t *testing.T) {
	for _, cfg := range []FullyConnectedConfig{
		{HiddenDims: []int{10, -1}, InputDim: 5, NumClasses: 3, Dropout: 1},
		{HiddenDims: []int{10}, InputDim: 0, NumClasses: 3, Dropout: 1},
		{HiddenDims: []int{10}, InputDim: 5, NumClasses: 3, Dropout: 0},
		{HiddenDims: []int{10}, InputDim: 5, NumClasses: 3, Dropout: 1.2},
		{HiddenDims: []int{10}, InputDim: 5, NumClasses: 3, Dropout: 1, Loss: "hinge"},
	} {
		_, err := NewFullyConnectedNet[float64](cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", cfg)
	}
}

func TestFullyConnectedNet_GradientCheck(t *testing.T) {
	for _, reg := range []float64{0, 3.14} {
		cfg := FullyConnectedConfig{
			HiddenDims:  []int{20, 30},
			InputDim:    15,
			NumClasses:  10,
			Dropout:     1,
			Reg:         reg,
			Alpha:       0.05,
			WeightScale: 5e-2,
			InitSeed:    11,
		}
		net, err := NewFullyConnectedNet[float64](cfg)
		require.NoError(t, err)

		x, y := smallBatch(12, 2, 15, 10)
		for name, relErr := range checkGradients(t, net, x, y) {
			assert.Less(t, relErr, 1e-4, "reg=%v %s", reg, name)
		}
	}
}

func TestFullyConnectedNet_SVMLoss(t *testing.T) {
	cfg := FullyConnectedConfig{
		HiddenDims:  []int{20, 30},
		InputDim:    15,
		NumClasses:  10,
		Dropout:     1,
		Reg:         0.7,
		Alpha:       0.05,
		WeightScale: 5e-2,
		Loss:        LossSVM,
		InitSeed:    11,
	}
	net, err := NewFullyConnectedNet[float64](cfg)
	require.NoError(t, err)

	x, y := smallBatch(12, 2, 15, 10)
	for name, relErr := range checkGradients(t, net, x, y) {
		assert.Less(t, relErr, 1e-4, name)
	}
}

func TestThreeLayerNet_ZeroWeightsSVMLoss(t *testing.T) {
	cfg := ThreeLayerConfig{InputDim: 6, HiddenDims: [2]int{5, 4}, NumClasses: 7, WeightScale: 0, Alpha: 1e-3, Loss: LossSVM}
	net, err := NewThreeLayerNet[float64](cfg)
	require.NoError(t, err)

	// Every wrong class violates the margin by exactly 1.
	x, y := smallBatch(4, 3, 6, 7)
	loss, _, err := net.Loss(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, loss, 1e-12)
}

func TestFullyConnectedNet_GradientCheckWithDropout(t *testing.T) {
	seed := uint64(123)
	for _, keep := range []float64{0.25, 0.5} {
		cfg := FullyConnectedConfig{
			HiddenDims:  []int{20, 30},
			InputDim:    15,
			NumClasses:  10,
			Dropout:     keep,
			Alpha:       0.01,
			WeightScale: 5e-2,
			InitSeed:    13,
			Seed:        &seed,
		}
		net, err := NewFullyConnectedNet[float64](cfg)
		require.NoError(t, err)
		require.True(t, net.UseDropout())

		x, y := smallBatch(14, 2, 15, 10)
		for name, relErr := range checkGradients(t, net, x, y) {
			assert.Less(t, relErr, 1e-4, "dropout=%v %s", keep, name)
		}
	}
}

func TestFullyConnectedNet_NoHiddenLayers(t *testing.T) {
	cfg := FullyConnectedConfig{InputDim: 6, NumClasses: 4, Dropout: 1, Reg: 0.1, Alpha: 0.01, WeightScale: 0.1, InitSeed: 2}
	net, err := NewFullyConnectedNet[float64](cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, net.NumLayers())
	assert.Equal(t, []string{"W1", "b1"}, net.Params().Names())

	x, y := smallBatch(15, 3, 6, 4)
	for name, relErr := range checkGradients(t, net, x, y) {
		assert.Less(t, relErr, 1e-5, name)
	}
}

func TestFullyConnectedNet_DropoutOnlyInTraining(t *testing.T) {
	cfg := DefaultFullyConnectedConfig(40, 40)
	cfg.InputDim = 10
	cfg.Dropout = 0.5
	cfg.WeightScale = 0.5
	net, err := NewFullyConnectedNet[float64](cfg)
	require.NoError(t, err)

	x, y := smallBatch(16, 8, 10, 10)
	s1, err := net.Scores(x)
	require.NoError(t, err)
	s2, err := net.Scores(x)
	require.NoError(t, err)
	assert.Equal(t, s1.Data(), s2.Data(), "test mode must be deterministic")

	l1, _, err := net.Loss(x, y)
	require.NoError(t, err)
	l2, _, err := net.Loss(x, y)
	require.NoError(t, err)
	assert.NotEqual(t, l1, l2, "unseeded dropout draws new masks")
}

func TestFullyConnectedNet_Float32MatchesFloat64(t *testing.T) {
	cfg := FullyConnectedConfig{HiddenDims: []int{16}, InputDim: 8, NumClasses: 5, Dropout: 1, Reg: 0.05, Alpha: 0.01, WeightScale: 0.1, InitSeed: 21}
	n64, err := NewFullyConnectedNet[float64](cfg)
	require.NoError(t, err)
	n32, err := NewFullyConnectedNet[float32](cfg)
	require.NoError(t, err)

	x64, y := smallBatch(17, 6, 8, 5)
	x32 := tensor.Cast[float32](x64)

	l64, g64, err := n64.Loss(x64, y)
	require.NoError(t, err)
	l32, g32, err := n32.Loss(x32, y)
	require.NoError(t, err)

	assert.InDelta(t, l64, l32, 1e-4)
	assert.Equal(t, tensor.Float32, g32.Get("W1").DType())
	assert.InDelta(t, tensor.SumSquares(g64.Get("W1")), tensor.SumSquares(g32.Get("W1")), 1e-4)
}
