package layers

import (
	"fmt"

	"github.com/born-ml/fcnet/internal/parallel"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Parallel controls how elementwise kernels split work across goroutines.
var Parallel = parallel.DefaultConfig()

// LeakyReLUCache holds the input of a Leaky ReLU forward pass.
type LeakyReLUCache[T tensor.Float] struct {
	X     *tensor.Dense[T]
	Alpha T
}

// LeakyReLUForward applies f(x) = x for x > 0, alpha*x otherwise.
func LeakyReLUForward[T tensor.Float](x *tensor.Dense[T], alpha T) (*tensor.Dense[T], *LeakyReLUCache[T]) {
	out := tensor.Zeros[T](x.Shape()...)
	in, o := x.Data(), out.Data()

	parallel.Range(len(in), Parallel, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if v := in[i]; v > 0 {
				o[i] = v
			} else {
				o[i] = alpha * v
			}
		}
	})

	return out, &LeakyReLUCache[T]{X: x, Alpha: alpha}
}

// LeakyReLUBackward passes dout through where x > 0 and scales it by alpha elsewhere.
func LeakyReLUBackward[T tensor.Float](dout *tensor.Dense[T], cache *LeakyReLUCache[T]) *tensor.Dense[T] {
	if !dout.Shape().Equal(cache.X.Shape()) {
		panic(fmt.Sprintf("LeakyReLUBackward: gradient %v does not match input %v", dout.Shape(), cache.X.Shape()))
	}

	dx := tensor.Zeros[T](dout.Shape()...)
	in, g, d := cache.X.Data(), dout.Data(), dx.Data()
	alpha := cache.Alpha

	parallel.Range(len(in), Parallel, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if in[i] > 0 {
				d[i] = g[i]
			} else {
				d[i] = alpha * g[i]
			}
		}
	})

	return dx
}

// AffineLReLUCache joins the caches of an affine layer followed by Leaky ReLU.
type AffineLReLUCache[T tensor.Float] struct {
	Affine *AffineCache[T]
	LReLU  *LeakyReLUCache[T]
}

// AffineLReLUForward performs an affine transform followed by a Leaky ReLU.
func AffineLReLUForward[T tensor.Float](x, w, b *tensor.Dense[T], alpha T) (*tensor.Dense[T], *AffineLReLUCache[T]) {
	a, fc := AffineForward(x, w, b)
	out, rc := LeakyReLUForward(a, alpha)
	return out, &AffineLReLUCache[T]{Affine: fc, LReLU: rc}
}

// AffineLReLUBackward is the backward pass for the affine-lrelu sandwich.
func AffineLReLUBackward[T tensor.Float](dout *tensor.Dense[T], cache *AffineLReLUCache[T]) (dx, dw, db *tensor.Dense[T]) {
	da := LeakyReLUBackward(dout, cache.LReLU)
	return AffineBackward(da, cache.Affine)
}
