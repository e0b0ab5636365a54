package nn

import (
	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [..., in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [..., out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
//
// Example:
//
//	layer, err := nn.NewLinear(512, 64, nn.NewSource(1))
//	output, err := layer.Forward(input) // [2, 10, 512] -> [2, 10, 64]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
}

// NewLinear creates a new Linear layer.
//
// Returns ErrConfiguration if either size is not positive.
func NewLinear(inFeatures, outFeatures int, src *Source) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "linear: features must be positive, got in=%d out=%d",
			inFeatures, outFeatures)
	}

	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, src)
	bias := tensor.Zeros(tensor.Shape{outFeatures})

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
	}, nil
}

// Forward computes the output of the linear layer.
//
// The transform is applied independently to every row of the trailing axis,
// so any leading dimensions ([batch, seq] for sequences) pass through.
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inputShape := input.Shape()
	if input.Rank() < 2 {
		return nil, errors.Wrapf(ErrShapeMismatch, "linear: expected input [..., %d], got shape %v",
			l.inFeatures, inputShape)
	}
	if inputShape.Last() != l.inFeatures {
		return nil, errors.Wrapf(ErrShapeMismatch, "linear: expected %d input features, got %d",
			l.inFeatures, inputShape.Last())
	}

	// [..., in] -> [rows, in]
	rows := input.NumElements() / l.inFeatures
	input2D, err := input.Reshape(rows, l.inFeatures)
	if err != nil {
		return nil, err
	}

	// [rows, in] @ [out, in]^T = [rows, out]
	output, err := tensor.MatMulTransB(input2D, l.weight.Tensor())
	if err != nil {
		return nil, err
	}
	output, err = output.AddRowVector(l.bias.Tensor())
	if err != nil {
		return nil, err
	}

	outShape := append(inputShape[:len(inputShape)-1].Clone(), l.outFeatures)
	return output.Reshape(outShape...)
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns {"weight", "bias"}.
func (l *Linear) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight": l.weight.Tensor(),
		"bias":   l.bias.Tensor(),
	}
}
