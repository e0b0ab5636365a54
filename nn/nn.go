// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"log/slog"

	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/tensor"
)

// Errors.
var (
	// ErrShapeMismatch is returned when an input has the wrong rank, width,
	// batch or length.
	ErrShapeMismatch = nn.ErrShapeMismatch

	// ErrConfiguration is returned for invalid hyperparameters and for
	// snapshots that do not fit the target model.
	ErrConfiguration = nn.ErrConfiguration

	// ErrChecksumMismatch is returned when a snapshot's data is corrupted.
	ErrChecksumMismatch = serialization.ErrChecksumMismatch
)

// Storage types for Save.
const (
	DTypeFloat64 = serialization.DTypeFloat64
	DTypeFloat32 = serialization.DTypeFloat32
	DTypeFloat16 = serialization.DTypeFloat16
)

// Module is implemented by every component that owns parameters.
type Module = nn.Module

// Parameter is a named learned tensor.
type Parameter = nn.Parameter

// Config holds the architecture hyperparameters.
type Config = nn.Config

// DefaultConfig returns d_model 512, 8 heads, 6+6 layers, d_ff 2048, dropout 0.3.
func DefaultConfig() Config {
	return nn.DefaultConfig()
}

// Transformer is the encoder-decoder model.
type Transformer = nn.Transformer

// Option configures a Transformer.
type Option = nn.Option

// NewTransformer validates cfg and builds a model in evaluation mode.
func NewTransformer(cfg Config, opts ...Option) (*Transformer, error) {
	return nn.NewTransformer(cfg, opts...)
}

// WithLogHandler routes the debug output of a Transformer to h.
func WithLogHandler(h slog.Handler) Option {
	return nn.WithLogger(logger.New(h))
}

// Encoder, Decoder and their layers.
type (
	Encoder      = nn.Encoder
	Decoder      = nn.Decoder
	EncoderLayer = nn.EncoderLayer
	DecoderLayer = nn.DecoderLayer
)

// Attention.
type (
	AttentionHead      = nn.AttentionHead
	MultiHeadAttention = nn.MultiHeadAttention
	AttentionMask      = nn.AttentionMask
)

// NewMultiHeadAttention creates a standalone attention block.
func NewMultiHeadAttention(dModel, numHeads int, dropout float64, src *Source) (*MultiHeadAttention, error) {
	return nn.NewMultiHeadAttention(dModel, numHeads, dropout, src)
}

// PaddingMask builds a [batch, seqLen] mask from per-item valid lengths.
func PaddingMask(lengths []int, seqLen int) (*tensor.Tensor, error) {
	return nn.PaddingMask(lengths, seqLen)
}

// CausalMask returns the [seqLen, seqLen] lower-triangular mask.
func CausalMask(seqLen int) *tensor.Tensor {
	return nn.CausalMask(seqLen)
}

// Layers.
type (
	Linear      = nn.Linear
	LayerNorm   = nn.LayerNorm
	Normalizer  = nn.Normalizer
	Dropout     = nn.Dropout
	ReLU        = nn.ReLU
	FeedForward = nn.FeedForward
)

// Source is the random source for initialization and dropout.
type Source = nn.Source

// NewSource creates a Source. Seed 0 picks a random seed.
func NewSource(seed uint64) *Source {
	return nn.NewSource(seed)
}

// NewLinear creates a Xavier-initialized linear layer.
func NewLinear(inFeatures, outFeatures int, src *Source) (*Linear, error) {
	return nn.NewLinear(inFeatures, outFeatures, src)
}

// NewLayerNorm creates a layer norm over the last axis.
func NewLayerNorm(size int, eps float64) (*LayerNorm, error) {
	return nn.NewLayerNorm(size, eps)
}

// NewFeedForward creates a position-wise feed-forward block.
func NewFeedForward(dModel, ffnDim int, dropout float64, src *Source) (*FeedForward, error) {
	return nn.NewFeedForward(dModel, ffnDim, dropout, src)
}

// LoadStateDict copies a state dictionary into m, strictly.
func LoadStateDict(m Module, stateDict map[string]*tensor.Tensor) error {
	return nn.LoadStateDict(m, stateDict)
}

// NumParameters counts the scalar parameters of m.
func NumParameters(m Module) int {
	return nn.NumParameters(m)
}

// Persistence.
type (
	SaveOptions = nn.SaveOptions
	LoadOptions = nn.LoadOptions
	Checkpoint  = nn.Checkpoint
)

// Save writes model to path.
//
// Example:
//
//	_, err := nn.Save(model, "model.s2s", nn.SaveOptions{DType: nn.DTypeFloat16})
func Save(model *Transformer, path string, opts SaveOptions) (*Checkpoint, error) {
	return nn.Save(model, path, opts)
}

// Load reads the snapshot at path into an existing model.
func Load(path string, model *Transformer, opts LoadOptions) (*Checkpoint, error) {
	return nn.Load(path, model, opts)
}

// LoadModel builds a model from the snapshot at path.
func LoadModel(path string, opts LoadOptions) (*Transformer, *Checkpoint, error) {
	return nn.LoadModel(path, opts)
}

// ReadCheckpoint describes the snapshot at path without loading tensors.
func ReadCheckpoint(path string, opts LoadOptions) (*Checkpoint, error) {
	return nn.ReadCheckpoint(path, opts)
}
