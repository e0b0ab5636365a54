// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand/v2"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Tensor is a dense row-major float64 array.
type Tensor = tensor.Tensor

// Shape lists the size of every dimension.
type Shape = tensor.Shape

// ErrShapeMismatch is returned when tensor shapes are incompatible.
var ErrShapeMismatch = tensor.ErrShapeMismatch

// New returns a zero tensor, or an error for an invalid shape.
func New(shape Shape) (*Tensor, error) {
	return tensor.New(shape)
}

// FromSlice copies data into a tensor of the given shape.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// Zeros returns a tensor filled with 0.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Ones returns a tensor filled with 1.
func Ones(shape Shape) *Tensor {
	return tensor.Ones(shape)
}

// Full returns a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	return tensor.Full(shape, value)
}

// Randn returns a tensor of standard normal samples. A nil rng uses the
// global generator.
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	return tensor.Randn(shape, rng)
}

// MatMul multiplies [m, k] by [k, n].
func MatMul(a, b *Tensor) (*Tensor, error) {
	return tensor.MatMul(a, b)
}

// ConcatLastDim concatenates tensors along the last axis.
func ConcatLastDim(parts ...*Tensor) (*Tensor, error) {
	return tensor.ConcatLastDim(parts...)
}
