package nn

import (
	"golang.org/x/exp/rand"

	"github.com/born-ml/fcnet/internal/tensor"
)

// initLayer adds W<i> ~ N(0, scale²) of shape (in, out) and b<i> = 0 of
// shape (out) to params.
func initLayer[T tensor.Float](params *ParamSet[T], src rand.Source, layer, in, out int, scale float64) {
	params.Set(WeightName(layer), tensor.Normal[T](src, 0, scale, in, out))
	params.Set(BiasName(layer), tensor.Zeros[T](out))
}
