package data

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/fcnet/internal/tensor"
)

// SyntheticConfig describes a Gaussian blob classification problem.
type SyntheticConfig struct {
	NumTrain   int     // Samples in the training set
	NumTest    int     // Samples in the test set
	Dim        int     // Features per sample
	NumClasses int     // Number of blobs
	Spread     float64 // Std of the class centers (default: 3)
	Seed       uint64
}

// Synthetic draws one Gaussian center per class and unit-variance samples
// around them. Train and test sets share the centers.
func Synthetic(cfg SyntheticConfig) (train, test *Raw) {
	if cfg.Spread == 0 {
		cfg.Spread = 3
	}
	src := rand.NewSource(cfg.Seed)
	centers := tensor.Normal[float64](src, 0, cfg.Spread, cfg.NumClasses, cfg.Dim)

	train = blobs(src, centers, cfg.NumTrain)
	if cfg.NumTest > 0 {
		test = blobs(src, centers, cfg.NumTest)
	}
	return train, test
}

func blobs(src rand.Source, centers *tensor.Dense[float64], n int) *Raw {
	classes, dim := centers.Dim(0), centers.Dim(1)
	x := tensor.Normal[float64](src, 0, 1, n, dim)
	y := make([]int, n)

	pick := distuv.Uniform{Min: 0, Max: float64(classes), Src: src}
	for i := range n {
		c := min(int(pick.Rand()), classes-1)
		y[i] = c
		floats.Add(x.Row(i), centers.Row(c))
	}
	return &Raw{X: x, Y: y}
}
