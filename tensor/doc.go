// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 tensors used by seq2seq.
//
// # Overview
//
// A Tensor is a row-major array with a Shape. Sequences flowing through the
// model are [batch, positions, d_model]; masks are [batch, positions].
//
// # Basic Usage
//
//	import "github.com/born-ml/seq2seq/tensor"
//
//	x := tensor.Zeros(tensor.Shape{2, 5, 512})
//	y, err := tensor.FromSlice(data, tensor.Shape{2, 5, 512})
//	sum, err := x.Add(y)
//
// Shape errors wrap ErrShapeMismatch; match them with errors.Is.
package tensor
