package layers

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/fcnet/internal/parallel"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Label validation errors.
var (
	ErrLabelCount      = errors.New("label count does not match batch size")
	ErrLabelOutOfRange = errors.New("label out of range")
)

func checkLabels(n, classes int, y []int) error {
	if len(y) != n {
		return fmt.Errorf("%w: %d labels for %d rows", ErrLabelCount, len(y), n)
	}
	for i, label := range y {
		if label < 0 || label >= classes {
			return fmt.Errorf("%w: y[%d] = %d, want [0, %d)", ErrLabelOutOfRange, i, label, classes)
		}
	}
	return nil
}

// SoftmaxLoss computes the mean cross-entropy of softmax(x) against y and
// its gradient with respect to x.
//
// x has shape (N, C) and holds raw class scores; y[i] in [0, C) is the
// label of row i. Scores are shifted by their row maximum before
// exponentiation. The gradient is (softmax(x) - onehot(y)) / N.
func SoftmaxLoss[T tensor.Float](x *tensor.Dense[T], y []int) (float64, *tensor.Dense[T], error) {
	if len(x.Shape()) != 2 {
		panic(fmt.Sprintf("SoftmaxLoss: expected 2D scores, got shape %v", x.Shape()))
	}
	n, c := x.Dim(0), x.Dim(1)
	if err := checkLabels(n, c, y); err != nil {
		return 0, nil, err
	}

	dx := tensor.Zeros[T](n, c)
	rowLoss := make([]float64, n)
	invN := 1 / float64(n)

	parallel.Range(n, Parallel, func(lo, hi int) {
		probs := make([]float64, c)
		for i := lo; i < hi; i++ {
			row := x.Row(i)
			maxv := float64(row[0])
			for _, v := range row[1:] {
				maxv = math.Max(maxv, float64(v))
			}
			var z float64
			for j, v := range row {
				probs[j] = math.Exp(float64(v) - maxv)
				z += probs[j]
			}
			logZ := math.Log(z)
			rowLoss[i] = -(float64(row[y[i]]) - maxv - logZ)

			d := dx.Row(i)
			for j := range d {
				p := probs[j] / z
				if j == y[i] {
					p--
				}
				d[j] = T(p * invN)
			}
		}
	})

	var loss float64
	for _, l := range rowLoss {
		loss += l
	}
	return loss * invN, dx, nil
}

// SVMLoss computes the mean multiclass hinge loss with margin 1 and its
// gradient with respect to x.
func SVMLoss[T tensor.Float](x *tensor.Dense[T], y []int) (float64, *tensor.Dense[T], error) {
	if len(x.Shape()) != 2 {
		panic(fmt.Sprintf("SVMLoss: expected 2D scores, got shape %v", x.Shape()))
	}
	n, c := x.Dim(0), x.Dim(1)
	if err := checkLabels(n, c, y); err != nil {
		return 0, nil, err
	}

	dx := tensor.Zeros[T](n, c)
	rowLoss := make([]float64, n)
	invN := 1 / float64(n)

	parallel.Range(n, Parallel, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row, d := x.Row(i), dx.Row(i)
			correct := float64(row[y[i]])
			positive := 0
			for j, v := range row {
				if j == y[i] {
					continue
				}
				if margin := float64(v) - correct + 1; margin > 0 {
					rowLoss[i] += margin
					d[j] = T(invN)
					positive++
				}
			}
			d[y[i]] = T(-float64(positive) * invN)
		}
	})

	var loss float64
	for _, l := range rowLoss {
		loss += l
	}
	return loss * invN, dx, nil
}
