package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Parameter represents a learned tensor of a layer (a weight, a bias, or a
// normalization scale/shift).
//
// The model only reads parameters during a forward pass. They are replaced
// wholesale by LoadStateDict or mutated by an external optimizer through
// Tensor().Data().
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter struct {
	name   string         // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor // The parameter tensor
}

// NewParameter creates a new parameter.
//
// The parameter tensor should be initialized before creating the Parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}
