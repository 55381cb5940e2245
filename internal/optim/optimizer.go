// Package optim implements first-order update rules for training the
// classifiers in package nn.
//
// This package provides:
//   - Optimizer interface: Base interface for all update rules
//   - SGD: Vanilla stochastic gradient descent, optionally with momentum
//   - RMSProp: Per-parameter learning rates from a moving average of squared gradients
//   - Adam: Adaptive Moment Estimation with bias correction
//
// Optimizers keep their state per parameter name, so one optimizer can
// drive every parameter of a model.
//
// Example usage:
//
//	opt, err := optim.New[float64]("adam", optim.Config{LR: 1e-3})
//	if err != nil {
//	    return err
//	}
//
//	for it := range iterations {
//	    loss, grads, err := model.Loss(xBatch, yBatch)
//	    if err != nil {
//	        return err
//	    }
//	    if err := opt.Step(model.Params(), grads); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Common errors.
var (
	ErrUnknownRule   = errors.New("unknown update rule")
	ErrMissingGrad   = errors.New("missing gradient")
	ErrGradShape     = errors.New("gradient shape mismatch")
	ErrStateMismatch = errors.New("optimizer state mismatch")
)

// Update rule names accepted by New.
const (
	RuleSGD         = "sgd"
	RuleSGDMomentum = "sgd_momentum"
	RuleRMSProp     = "rmsprop"
	RuleAdam        = "adam"
)

// Rules returns the names of all supported update rules.
func Rules() []string {
	return []string{RuleSGD, RuleSGDMomentum, RuleRMSProp, RuleAdam}
}

// Optimizer is the base interface for all update rules.
type Optimizer[T tensor.Float] interface {
	// Step updates every parameter in params in place using the gradient
	// stored under the same name in grads.
	Step(params, grads *nn.ParamSet[T]) error

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR updates the learning rate. Used for learning rate decay.
	SetLR(lr float64)

	// StateDict returns the per-parameter optimizer state keyed as
	// "<buffer>.<param>", for example "velocity.W1".
	StateDict() map[string]*tensor.Dense[T]

	// LoadStateDict restores state produced by StateDict.
	LoadStateDict(state map[string]*tensor.Dense[T]) error
}

// Config holds the hyperparameters of all update rules. Zero values select
// the defaults of the chosen rule.
type Config struct {
	LR        float64 // Learning rate (default: 1e-2, Adam 1e-3)
	Momentum  float64 // SGD momentum (default for sgd_momentum: 0.9)
	DecayRate float64 // RMSProp moving average decay (default: 0.99)
	Beta1     float64 // Adam first moment decay (default: 0.9)
	Beta2     float64 // Adam second moment decay (default: 0.999)
	Eps       float64 // Term for numerical stability (default: 1e-8)
}

// New creates the optimizer registered under name.
func New[T tensor.Float](name string, cfg Config) (Optimizer[T], error) {
	switch name {
	case RuleSGD:
		cfg.Momentum = 0
		return NewSGD[T](cfg), nil
	case RuleSGDMomentum:
		if cfg.Momentum == 0 {
			cfg.Momentum = 0.9
		}
		return NewSGD[T](cfg), nil
	case RuleRMSProp:
		return NewRMSProp[T](cfg), nil
	case RuleAdam:
		return NewAdam[T](cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownRule, name, Rules())
	}
}

// gradFor returns the gradient of the named parameter after validating it.
func gradFor[T tensor.Float](name string, w *tensor.Dense[T], grads *nn.ParamSet[T]) (*tensor.Dense[T], error) {
	dw := grads.Get(name)
	if dw == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingGrad, name)
	}
	if !dw.Shape().Equal(w.Shape()) {
		return nil, fmt.Errorf("%w: %s is %v, gradient is %v", ErrGradShape, name, w.Shape(), dw.Shape())
	}
	return dw, nil
}

// buffer returns the state tensor for name, creating it with zeros.
func buffer[T tensor.Float](bufs map[string]*tensor.Dense[T], name string, shape tensor.Shape) *tensor.Dense[T] {
	b, ok := bufs[name]
	if !ok {
		b = tensor.Zeros[T](shape...)
		bufs[name] = b
	}
	return b
}

// exportState adds clones of bufs to state under "<prefix>.<name>".
func exportState[T tensor.Float](state map[string]*tensor.Dense[T], prefix string, bufs map[string]*tensor.Dense[T]) {
	for name, b := range bufs {
		state[prefix+"."+name] = b.Clone()
	}
}

// importState collects every "<prefix>.<name>" entry of state.
func importState[T tensor.Float](state map[string]*tensor.Dense[T], prefix string) map[string]*tensor.Dense[T] {
	bufs := make(map[string]*tensor.Dense[T])
	for key, v := range state {
		if name, ok := strings.CutPrefix(key, prefix+"."); ok && name != "" {
			bufs[name] = v.Clone()
		}
	}
	return bufs
}

// checkStateKeys rejects keys whose buffer prefix is not one of prefixes.
func checkStateKeys[T tensor.Float](state map[string]*tensor.Dense[T], prefixes ...string) error {
	for key := range state {
		known := slices.ContainsFunc(prefixes, func(p string) bool {
			return strings.HasPrefix(key, p+".")
		})
		if !known {
			return fmt.Errorf("%w: unexpected key %q", ErrStateMismatch, key)
		}
	}
	return nil
}
