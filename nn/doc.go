// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the encoder-decoder Transformer.
//
// # Overview
//
// This package contains:
//   - Transformer: Encoder and Decoder stacks of post-norm layers
//   - Attention: AttentionHead, MultiHeadAttention, AttentionMask
//   - Layers: Linear, LayerNorm, Dropout, ReLU, FeedForward
//   - Persistence: Save, Load, LoadModel (.s2s snapshots)
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/seq2seq/nn"
//	    "github.com/born-ml/seq2seq/tensor"
//	)
//
//	func main() {
//	    cfg := nn.DefaultConfig()
//	    model, err := nn.NewTransformer(cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // src [batch, src_len, 512], tgt [batch, tgt_len, 512]
//	    srcMask, _ := nn.PaddingMask([]int{7, 5}, 7)
//	    out, err := model.Forward(src, tgt, srcMask, nil)
//	}
//
// # Masking
//
// Padding masks are [batch, seq] tensors with non-zero for valid positions.
// Decoder self-attention is always causal. A query with no visible key
// produces the zero vector.
//
// # Modes
//
// Models start in evaluation mode (no dropout, deterministic). Train enables
// dropout, Eval disables it again.
//
// # Errors
//
// Invalid configurations return ErrConfiguration; inputs with incompatible
// shapes return ErrShapeMismatch. Both are matched with errors.Is.
package nn
