package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/tensor"
)

// RMSProp scales the learning rate of every weight by a moving average of
// its squared gradients.
//
// Update rule:
//
//	cache = decay * cache + (1 - decay) * dw²
//	w = w - lr * dw / (sqrt(cache) + eps)
type RMSProp[T tensor.Float] struct {
	lr     float64
	decay  float64
	eps    float64
	caches map[string]*tensor.Dense[T]
}

// NewRMSProp creates a new RMSProp optimizer.
//
// Default hyperparameters:
//   - LR: 1e-2
//   - DecayRate: 0.99
//   - Eps: 1e-8
func NewRMSProp[T tensor.Float](cfg Config) *RMSProp[T] {
	if cfg.LR == 0 {
		cfg.LR = 1e-2
	}
	if cfg.DecayRate == 0 {
		cfg.DecayRate = 0.99
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-8
	}
	return &RMSProp[T]{
		lr:     cfg.LR,
		decay:  cfg.DecayRate,
		eps:    cfg.Eps,
		caches: make(map[string]*tensor.Dense[T]),
	}
}

// Step performs a single optimization step.
func (r *RMSProp[T]) Step(params, grads *nn.ParamSet[T]) error {
	for _, name := range params.Names() {
		w := params.Get(name)
		dw, err := gradFor(name, w, grads)
		if err != nil {
			return err
		}
		c := buffer(r.caches, name, w.Shape())
		if !c.Shape().Equal(w.Shape()) {
			return fmt.Errorf("%w: cache of %s is %v, want %v", ErrStateMismatch, name, c.Shape(), w.Shape())
		}

		wd, gd, cd := w.Data(), dw.Data(), c.Data()
		for i := range wd {
			g := float64(gd[i])
			cache := r.decay*float64(cd[i]) + (1-r.decay)*g*g
			cd[i] = T(cache)
			wd[i] -= T(r.lr * g / (math.Sqrt(cache) + r.eps))
		}
	}
	return nil
}

// GetLR returns the current learning rate.
func (r *RMSProp[T]) GetLR() float64 {
	return r.lr
}

// SetLR updates the learning rate.
func (r *RMSProp[T]) SetLR(lr float64) {
	r.lr = lr
}

// StateDict returns the squared gradient caches keyed as "cache.{param}".
func (r *RMSProp[T]) StateDict() map[string]*tensor.Dense[T] {
	state := make(map[string]*tensor.Dense[T])
	exportState(state, "cache", r.caches)
	return state
}

// LoadStateDict restores the squared gradient caches.
func (r *RMSProp[T]) LoadStateDict(state map[string]*tensor.Dense[T]) error {
	if err := checkStateKeys(state, "cache"); err != nil {
		return err
	}
	r.caches = importState(state, "cache")
	return nil
}
