package layers

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"github.com/born-ml/fcnet/internal/tensor"
)

// ErrInvalidDropout is returned for a keep probability outside (0, 1].
var ErrInvalidDropout = errors.New("dropout probability must be in (0, 1]")

// Mode selects training or test-time behavior.
type Mode int

// Supported modes.
const (
	ModeTrain Mode = iota
	ModeTest
)

// String returns "train" or "test".
func (m Mode) String() string {
	if m == ModeTest {
		return "test"
	}
	return "train"
}

// DropoutParam configures a dropout layer.
//
// P is the probability of keeping each activation. When Seed is set every
// forward call draws its mask from a freshly seeded source, which makes the
// layer deterministic for gradient checking.
type DropoutParam struct {
	Mode Mode
	P    float64
	Seed *uint64
}

// DropoutCache holds the parameters and mask of a dropout forward pass.
type DropoutCache[T tensor.Float] struct {
	Param DropoutParam
	Mask  *tensor.Dense[T] // nil in test mode
}

// DropoutForward applies inverted dropout.
//
// In train mode each element is kept with probability P and scaled by 1/P,
// so no rescaling is needed at test time. In test mode the input is returned
// unchanged. src supplies randomness when param.Seed is nil; a nil src falls
// back to a time-seeded source.
func DropoutForward[T tensor.Float](x *tensor.Dense[T], param DropoutParam, src rand.Source) (*tensor.Dense[T], *DropoutCache[T], error) {
	if !(param.P > 0 && param.P <= 1) {
		return nil, nil, fmt.Errorf("%w: got %v", ErrInvalidDropout, param.P)
	}

	if param.Mode == ModeTest {
		return x, &DropoutCache[T]{Param: param}, nil
	}

	switch {
	case param.Seed != nil:
		src = rand.NewSource(*param.Seed)
	case src == nil:
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	rng := rand.New(src)

	mask := tensor.Zeros[T](x.Shape()...)
	out := tensor.Zeros[T](x.Shape()...)
	scale := T(1 / param.P)
	m, in, o := mask.Data(), x.Data(), out.Data()
	for i := range m {
		if rng.Float64() < param.P {
			m[i] = scale
		}
		o[i] = in[i] * m[i]
	}

	return out, &DropoutCache[T]{Param: param, Mask: mask}, nil
}

// DropoutBackward routes dout through the kept activations.
func DropoutBackward[T tensor.Float](dout *tensor.Dense[T], cache *DropoutCache[T]) *tensor.Dense[T] {
	if cache.Param.Mode == ModeTest {
		return dout
	}
	if !dout.Shape().Equal(cache.Mask.Shape()) {
		panic(fmt.Sprintf("DropoutBackward: gradient %v does not match mask %v", dout.Shape(), cache.Mask.Shape()))
	}

	dx := tensor.Zeros[T](dout.Shape()...)
	g, m, d := dout.Data(), cache.Mask.Data(), dx.Data()
	for i := range d {
		d[i] = g[i] * m[i]
	}
	return dx
}
