// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/born-ml/fcnet/tensor"
)

func TestPublicAPI(t *testing.T) {
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, x.DType())
	assert.True(t, x.Shape().Equal(tensor.Shape{2, 3}))

	y := tensor.Cast[float64](x)
	assert.Equal(t, tensor.Float64, y.DType())
	assert.Equal(t, 6.0, y.At(1, 2))

	dt, err := tensor.ParseDataType("float64")
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, dt)

	a := tensor.Normal[float64](rand.NewSource(1), 0, 1, 4, 4)
	b := tensor.Normal[float64](rand.NewSource(1), 0, 1, 4, 4)
	assert.Equal(t, a.Data(), b.Data())
}

func ExampleFull() {
	x := tensor.Full[float32](0.5, 2, 2)
	fmt.Println(x.Shape(), x.Data())
	// Output: [2 2] [0.5 0.5 0.5 0.5]
}
