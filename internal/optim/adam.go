package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m = beta1 * m + (1-beta1) * dw
//	v = beta2 * v + (1-beta2) * dw²
//	m_hat = m / (1 - beta1^t)
//	v_hat = v / (1 - beta2^t)
//	w = w - lr * m_hat / (sqrt(v_hat) + eps)
//
// The step count t is tracked per parameter, so parameters first seen
// late in training still get full bias correction.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[T tensor.Float] struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     map[string]int
	m     map[string]*tensor.Dense[T]
	v     map[string]*tensor.Dense[T]
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 1e-3
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam[T tensor.Float](cfg Config) *Adam[T] {
	if cfg.LR == 0 {
		cfg.LR = 1e-3
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-8
	}
	return &Adam[T]{
		lr:    cfg.LR,
		beta1: cfg.Beta1,
		beta2: cfg.Beta2,
		eps:   cfg.Eps,
		t:     make(map[string]int),
		m:     make(map[string]*tensor.Dense[T]),
		v:     make(map[string]*tensor.Dense[T]),
	}
}

// Step performs a single optimization step.
func (a *Adam[T]) Step(params, grads *nn.ParamSet[T]) error {
	for _, name := range params.Names() {
		w := params.Get(name)
		dw, err := gradFor(name, w, grads)
		if err != nil {
			return err
		}
		m := buffer(a.m, name, w.Shape())
		v := buffer(a.v, name, w.Shape())
		if !m.Shape().Equal(w.Shape()) || !v.Shape().Equal(w.Shape()) {
			return fmt.Errorf("%w: moments of %s do not match %v", ErrStateMismatch, name, w.Shape())
		}

		a.t[name]++
		t := float64(a.t[name])
		bc1 := 1 - math.Pow(a.beta1, t)
		bc2 := 1 - math.Pow(a.beta2, t)

		wd, gd, md, vd := w.Data(), dw.Data(), m.Data(), v.Data()
		for i := range wd {
			g := float64(gd[i])
			mi := a.beta1*float64(md[i]) + (1-a.beta1)*g
			vi := a.beta2*float64(vd[i]) + (1-a.beta2)*g*g
			md[i], vd[i] = T(mi), T(vi)
			wd[i] -= T(a.lr * (mi / bc1) / (math.Sqrt(vi/bc2) + a.eps))
		}
	}
	return nil
}

// GetLR returns the current learning rate.
func (a *Adam[T]) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[T]) SetLR(lr float64) {
	a.lr = lr
}

// StateDict returns the moment estimates and step counts.
//
// State keys:
//   - "m.{param}": first moment
//   - "v.{param}": second moment
//   - "t.{param}": scalar step count
func (a *Adam[T]) StateDict() map[string]*tensor.Dense[T] {
	state := make(map[string]*tensor.Dense[T])
	exportState(state, "m", a.m)
	exportState(state, "v", a.v)
	for name, t := range a.t {
		state["t."+name] = tensor.Full(T(t), 1)
	}
	return state
}

// LoadStateDict restores the moment estimates and step counts.
func (a *Adam[T]) LoadStateDict(state map[string]*tensor.Dense[T]) error {
	if err := checkStateKeys(state, "m", "v", "t"); err != nil {
		return err
	}
	steps := make(map[string]int)
	for name, t := range importState(state, "t") {
		if t.NumElements() != 1 {
			return fmt.Errorf("%w: step count of %s has shape %v", ErrStateMismatch, name, t.Shape())
		}
		steps[name] = int(t.Data()[0])
	}
	a.m = importState(state, "m")
	a.v = importState(state, "v")
	a.t = steps
	return nil
}
