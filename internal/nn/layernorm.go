package nn

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// DefaultNormEps is the LayerNorm epsilon used when Config.NormEps is zero.
const DefaultNormEps = 1e-5

// Normalizer is the normalization step applied after each residual add.
//
// LayerNorm is the only implementation shipped; the interface lets a layer be
// built around a different normalization (or none) without changing its
// forward pass.
type Normalizer interface {
	Module
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
}

// LayerNorm applies Layer Normalization over an input tensor along the last dimension.
//
// Formula: Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// Where:
//   - gamma is the learnable scale parameter [d_model]
//   - beta is the learnable shift parameter [d_model]
//   - mean and (biased) variance are computed along the last dimension
//   - eps is a small value to avoid division by zero
type LayerNorm struct {
	Gamma   *Parameter // learnable scale [d_model]
	Beta    *Parameter // learnable shift [d_model]
	Epsilon float64    // numerical stability constant
	size    int
}

// NewLayerNorm creates a new LayerNorm layer.
//
// The gamma parameter is initialized to ones, beta to zeros.
func NewLayerNorm(normalizedShape int, epsilon float64) (*LayerNorm, error) {
	if normalizedShape <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "layernorm: size must be positive, got %d", normalizedShape)
	}
	if !(epsilon > 0) || math.IsInf(epsilon, 1) {
		return nil, errors.Wrapf(ErrConfiguration, "layernorm: epsilon must be positive and finite, got %g", epsilon)
	}

	return &LayerNorm{
		Gamma:   NewParameter("gamma", tensor.Ones(tensor.Shape{normalizedShape})),
		Beta:    NewParameter("beta", tensor.Zeros(tensor.Shape{normalizedShape})),
		Epsilon: epsilon,
		size:    normalizedShape,
	}, nil
}

// Forward applies LayerNorm to the input tensor.
//
// Shapes:
//   - input: [..., d_model]
//   - output: [..., d_model]
func (l *LayerNorm) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Shape().Last() != l.size {
		return nil, errors.Wrapf(ErrShapeMismatch, "layernorm: expected %d features, got shape %v",
			l.size, x.Shape())
	}

	out := x.Clone()
	data := out.Data()
	gamma := l.Gamma.Tensor().Data()
	beta := l.Beta.Tensor().Data()
	n := float64(l.size)

	for off := 0; off < len(data); off += l.size {
		row := data[off : off+l.size]

		mean := floats.Sum(row) / n
		floats.AddConst(-mean, row)
		variance := floats.Dot(row, row) / n
		floats.Scale(1/math.Sqrt(variance+l.Epsilon), row)

		floats.Mul(row, gamma)
		floats.Add(row, beta)
	}

	return out, nil
}

// Parameters returns the learnable parameters (gamma and beta).
func (l *LayerNorm) Parameters() []*Parameter {
	return []*Parameter{l.Gamma, l.Beta}
}

// StateDict returns {"gamma", "beta"}.
func (l *LayerNorm) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"gamma": l.Gamma.Tensor(),
		"beta":  l.Beta.Tensor(),
	}
}
