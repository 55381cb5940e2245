package optim

import (
	"fmt"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	w = w - lr * dw
//
// Update rule with momentum:
//
//	v = momentum * v - lr * dw
//	w = w + v
//
// Example:
//
//	sgd := optim.NewSGD[float32](optim.Config{LR: 1e-2, Momentum: 0.9})
type SGD[T tensor.Float] struct {
	lr         float64
	momentum   float64
	velocities map[string]*tensor.Dense[T]
}

// NewSGD creates a new SGD optimizer. Momentum 0 selects vanilla SGD.
func NewSGD[T tensor.Float](cfg Config) *SGD[T] {
	if cfg.LR == 0 {
		cfg.LR = 1e-2
	}
	return &SGD[T]{
		lr:         cfg.LR,
		momentum:   cfg.Momentum,
		velocities: make(map[string]*tensor.Dense[T]),
	}
}

// Step performs a single optimization step.
func (s *SGD[T]) Step(params, grads *nn.ParamSet[T]) error {
	lr, mu := T(s.lr), T(s.momentum)
	for _, name := range params.Names() {
		w := params.Get(name)
		dw, err := gradFor(name, w, grads)
		if err != nil {
			return err
		}

		if s.momentum == 0 {
			tensor.AddScaled(w, -lr, dw)
			continue
		}

		v := buffer(s.velocities, name, w.Shape())
		if !v.Shape().Equal(w.Shape()) {
			return fmt.Errorf("%w: velocity of %s is %v, want %v", ErrStateMismatch, name, v.Shape(), w.Shape())
		}
		wd, gd, vd := w.Data(), dw.Data(), v.Data()
		for i := range wd {
			vd[i] = mu*vd[i] - lr*gd[i]
			wd[i] += vd[i]
		}
	}
	return nil
}

// GetLR returns the current learning rate.
func (s *SGD[T]) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[T]) SetLR(lr float64) {
	s.lr = lr
}

// StateDict returns the velocity buffers. Without momentum it is empty.
//
// State keys: "velocity.{param}" -> velocity tensor.
func (s *SGD[T]) StateDict() map[string]*tensor.Dense[T] {
	state := make(map[string]*tensor.Dense[T])
	if s.momentum == 0 {
		return state
	}
	exportState(state, "velocity", s.velocities)
	return state
}

// LoadStateDict restores the velocity buffers.
func (s *SGD[T]) LoadStateDict(state map[string]*tensor.Dense[T]) error {
	if err := checkStateKeys(state, "velocity"); err != nil {
		return err
	}
	if s.momentum == 0 {
		return nil
	}
	s.velocities = importState(state, "velocity")
	return nil
}
