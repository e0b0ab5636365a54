// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/tensor"
)

func TestPublicTensorAPI(t *testing.T) {
	x, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	require.NoError(t, err)

	y, err := tensor.MatMul(x, tensor.Ones(tensor.Shape{2, 1}))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7}, y.Data())

	_, err = tensor.FromSlice([]float64{1, 2, 3}, tensor.Shape{2, 2})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}
