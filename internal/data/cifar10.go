// Package data loads and prepares the datasets the classifiers train on.
package data

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/fcnet/internal/tensor"
)

// CIFAR-10 binary layout constants.
const (
	CIFARChannels  = 3
	CIFARHeight    = 32
	CIFARWidth     = 32
	CIFARClasses   = 10
	CIFARImageSize = CIFARChannels * CIFARHeight * CIFARWidth
	cifarRecord    = 1 + CIFARImageSize
	cifarPerBatch  = 10000
	cifarNumBatch  = 5
)

// ErrInvalidRecord is returned for malformed CIFAR-10 records.
var ErrInvalidRecord = errors.New("invalid CIFAR-10 record")

// Raw is an unprepared set of samples: float64 pixel values and labels.
type Raw struct {
	X *tensor.Dense[float64] // (N, d1, ..., dk)
	Y []int                  // (N)
}

// Len returns the number of samples.
func (r *Raw) Len() int {
	return len(r.Y)
}

// CIFAR10 holds the training and test splits of CIFAR-10.
type CIFAR10 struct {
	Train *Raw // 50000 samples of shape (3, 32, 32)
	Test  *Raw // 10000 samples of shape (3, 32, 32)
}

// LoadCIFAR10 reads the CIFAR-10 binary version from dir.
//
// Expected files in dir:
//   - data_batch_1.bin ... data_batch_5.bin
//   - test_batch.bin
//
// Each record is one label byte followed by 3072 pixel bytes stored as
// 1024 red, 1024 green and 1024 blue values in row-major order. Pixels are
// returned unscaled in [0, 255].
//
// Download from: https://www.cs.toronto.edu/~kriz/cifar-10-binary.tar.gz
func LoadCIFAR10(dir string) (*CIFAR10, error) {
	names := make([]string, 0, cifarNumBatch+1)
	for i := 1; i <= cifarNumBatch; i++ {
		names = append(names, fmt.Sprintf("data_batch_%d.bin", i))
	}
	names = append(names, "test_batch.bin")

	pixels := make([][]float64, len(names))
	labels := make([][]int, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			var err error
			pixels[i], labels[i], err = readCIFARFile(filepath.Join(dir, name))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	train, err := concatRaw(pixels[:cifarNumBatch], labels[:cifarNumBatch])
	if err != nil {
		return nil, err
	}
	test, err := concatRaw(pixels[cifarNumBatch:], labels[cifarNumBatch:])
	if err != nil {
		return nil, err
	}
	return &CIFAR10{Train: train, Test: test}, nil
}

func readCIFARFile(path string) ([]float64, []int, error) {
	//nolint:gosec // G304: dataset directory comes from the run configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CIFAR-10 batch: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	pixels, labels, err := ReadCIFARBatch(bufio.NewReader(f), cifarPerBatch)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return pixels, labels, nil
}

// ReadCIFARBatch reads up to limit records from r (limit <= 0 reads until
// EOF). It returns the flattened pixels and the labels.
func ReadCIFARBatch(r io.Reader, limit int) ([]float64, []int, error) {
	var (
		pixels []float64
		labels []int
		record = make([]byte, cifarRecord)
	)
	for limit <= 0 || len(labels) < limit {
		if _, err := io.ReadFull(r, record); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, nil, fmt.Errorf("%w: record %d is short: %w", ErrInvalidRecord, len(labels), err)
			}
			return nil, nil, fmt.Errorf("failed to read record %d: %w", len(labels), err)
		}

		label := int(record[0])
		if label >= CIFARClasses {
			return nil, nil, fmt.Errorf("%w: record %d has label %d", ErrInvalidRecord, len(labels), label)
		}
		labels = append(labels, label)
		for _, b := range record[1:] {
			pixels = append(pixels, float64(b))
		}
	}
	if len(labels) == 0 {
		return nil, nil, fmt.Errorf("%w: no records", ErrInvalidRecord)
	}
	return pixels, labels, nil
}

func concatRaw(pixels [][]float64, labels [][]int) (*Raw, error) {
	var (
		allPixels []float64
		allLabels []int
	)
	for i := range pixels {
		allPixels = append(allPixels, pixels[i]...)
		allLabels = append(allLabels, labels[i]...)
	}
	x, err := tensor.FromSlice(allPixels, len(allLabels), CIFARChannels, CIFARHeight, CIFARWidth)
	if err != nil {
		return nil, err
	}
	return &Raw{X: x, Y: allLabels}, nil
}
