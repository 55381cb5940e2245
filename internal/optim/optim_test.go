package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
	"github.com/born-ml/fcnet/internal/tensor"
)

func single[T tensor.Float](name string, values ...T) *nn.ParamSet[T] {
	p := nn.NewParamSet[T]()
	t, err := tensor.FromSlice(values, len(values))
	if err != nil {
		panic(err)
	}
	p.Set(name, t)
	return p
}

func TestNew(t *testing.T) {
	for _, name := range optim.Rules() {
		opt, err := optim.New[float32](name, optim.Config{LR: 0.5})
		require.NoError(t, err, name)
		assert.Equal(t, 0.5, opt.GetLR(), name)
	}

	_, err := optim.New[float64]("lbfgs", optim.Config{})
	assert.ErrorIs(t, err, optim.ErrUnknownRule)

	adam, err := optim.New[float64](optim.RuleAdam, optim.Config{})
	require.NoError(t, err)
	assert.Equal(t, 1e-3, adam.GetLR())
	adam.SetLR(5e-4)
	assert.Equal(t, 5e-4, adam.GetLR())
}

func TestSGD_SimpleUpdate(t *testing.T) {
	params := single("w", 2.0, -1.0)
	grads := single("w", 1.0, -2.0)

	opt := optim.NewSGD[float64](optim.Config{LR: 0.1})
	require.NoError(t, opt.Step(params, grads))

	assert.InDeltaSlice(t, []float64{1.9, -0.8}, params.Get("w").Data(), 1e-12)
	assert.Empty(t, opt.StateDict())
}

func TestSGD_WithMomentum(t *testing.T) {
	params := single[float32]("w", 1.0)
	grads := single[float32]("w", 1.0)

	opt, err := optim.New[float32](optim.RuleSGDMomentum, optim.Config{LR: 0.1})
	require.NoError(t, err)

	// v1 = -0.1, w = 0.9; v2 = 0.9*-0.1 - 0.1 = -0.19, w = 0.71
	require.NoError(t, opt.Step(params, grads))
	assert.InDelta(t, 0.9, params.Get("w").Data()[0], 1e-6)
	require.NoError(t, opt.Step(params, grads))
	assert.InDelta(t, 0.71, params.Get("w").Data()[0], 1e-6)

	state := opt.StateDict()
	require.Contains(t, state, "velocity.w")
	assert.InDelta(t, -0.19, state["velocity.w"].Data()[0], 1e-6)
}

func TestRMSProp_Update(t *testing.T) {
	params := single("w", 1.0)
	grads := single("w", 2.0)

	opt := optim.NewRMSProp[float64](optim.Config{LR: 0.01})
	require.NoError(t, opt.Step(params, grads))

	cache := 0.01 * 4.0
	want := 1.0 - 0.01*2.0/(math.Sqrt(cache)+1e-8)
	assert.InDelta(t, want, params.Get("w").Data()[0], 1e-12)
	assert.InDelta(t, cache, opt.StateDict()["cache.w"].Data()[0], 1e-12)
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	// With bias correction the first update is lr * sign(dw).
	params := single("w", 1.0, 1.0)
	grads := single("w", 3.0, -0.5)

	opt := optim.NewAdam[float64](optim.Config{LR: 0.01})
	require.NoError(t, opt.Step(params, grads))

	assert.InDeltaSlice(t, []float64{0.99, 1.01}, params.Get("w").Data(), 1e-7)
	state := opt.StateDict()
	assert.Equal(t, 1.0, state["t.w"].Data()[0])
	assert.InDelta(t, 0.3, state["m.w"].Data()[0], 1e-12)
}

func TestOptimizers_MinimizeQuadratic(t *testing.T) {
	// f(w) = 0.5 * ||w - 3||², df/dw = w - 3.
	for _, name := range optim.Rules() {
		t.Run(name, func(t *testing.T) {
			opt, err := optim.New[float64](name, optim.Config{LR: 0.01})
			require.NoError(t, err)

			params := single("w", 0.0, 10.0)
			for range 5000 {
				w := params.Get("w").Data()
				grads := single("w", w[0]-3, w[1]-3)
				require.NoError(t, opt.Step(params, grads))
			}
			assert.InDeltaSlice(t, []float64{3, 3}, params.Get("w").Data(), 0.05)
		})
	}
}

func TestStep_GradientErrors(t *testing.T) {
	opt := optim.NewAdam[float64](optim.Config{})
	params := single("w", 1.0, 2.0)

	err := opt.Step(params, single("b", 1.0, 2.0))
	assert.ErrorIs(t, err, optim.ErrMissingGrad)

	err = opt.Step(params, single("w", 1.0))
	assert.ErrorIs(t, err, optim.ErrGradShape)
}

func TestLoadStateDict(t *testing.T) {
	params := single("w", 1.0, 2.0)
	grads := single("w", 0.5, 0.5)

	a := optim.NewAdam[float64](optim.Config{})
	require.NoError(t, a.Step(params, grads))
	require.NoError(t, a.Step(params, grads))

	b := optim.NewAdam[float64](optim.Config{})
	require.NoError(t, b.LoadStateDict(a.StateDict()))

	pa, pb := params.Clone(), params.Clone()
	require.NoError(t, a.Step(pa, grads))
	require.NoError(t, b.Step(pb, grads))
	assert.Equal(t, pa.Get("w").Data(), pb.Get("w").Data())

	err := b.LoadStateDict(map[string]*tensor.Dense[float64]{"velocity.w": tensor.Zeros[float64](2)})
	assert.ErrorIs(t, err, optim.ErrStateMismatch)

	sgd := optim.NewSGD[float64](optim.Config{Momentum: 0.9})
	require.NoError(t, sgd.LoadStateDict(map[string]*tensor.Dense[float64]{"velocity.w": tensor.Zeros[float64](3)}))
	assert.ErrorIs(t, sgd.Step(params, grads), optim.ErrStateMismatch)
}
