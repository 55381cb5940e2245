package tensor

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Normal creates a tensor with values drawn from N(mu, sigma²).
//
// Samples are drawn from src, so a freshly seeded source always yields the
// same tensor. A nil src uses gonum's global source.
//
// Example:
//
//	w := tensor.Normal[float64](rand.NewSource(0), 0, 1e-2, 3072, 100)
func Normal[T Float](src rand.Source, mu, sigma float64, shape ...int) *Dense[T] {
	t := Zeros[T](shape...)
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: src}
	for i := range t.data {
		t.data[i] = T(dist.Rand())
	}
	return t
}
