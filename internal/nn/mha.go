package nn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/parallel"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// MultiHeadAttention implements the multi-head attention mechanism.
//
// Architecture:
//
//	MHA(Q, K, V) = Concat(head_1, ..., head_h) * W_O
//	head_i = AttentionHead_i(Q, K, V)
//
// Each head owns independent projections d_model → d_head with
// d_head = d_model / num_heads. Heads share no state, so they are evaluated
// concurrently; the result does not depend on the order they finish in.
// Head outputs are concatenated along the feature axis, which restores the
// d_model width, and then mixed by the output projection.
//
// Example:
//
//	mha, err := nn.NewMultiHeadAttention(512, 8, 0.1, src)
//	out, err := mha.Forward(x, x, x, nn.AttentionMask{Padding: srcMask})     // Self-attention
//	out, err := mha.Forward(q, mem, mem, nn.AttentionMask{Padding: srcMask}) // Cross-attention
type MultiHeadAttention struct {
	Heads    []*AttentionHead
	Output   *Linear // [d_model → d_model]
	NumHeads int
	HeadDim  int
	DModel   int
	parallel parallel.Config
}

// NewMultiHeadAttention creates a new multi-head attention module.
//
// Returns ErrConfiguration if numHeads is not positive or dModel is not
// divisible by numHeads.
//
// Example:
//
//	mha, err := nn.NewMultiHeadAttention(512, 8, 0.1, src)
//	// dModel=512, numHeads=8 -> headDim=64
func NewMultiHeadAttention(dModel, numHeads int, dropout float64, src *Source) (*MultiHeadAttention, error) {
	if dModel <= 0 || numHeads <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "multi-head attention: d_model (%d) and num_heads (%d) must be positive",
			dModel, numHeads)
	}
	if dModel%numHeads != 0 {
		return nil, errors.Wrapf(ErrConfiguration, "multi-head attention: d_model (%d) must be divisible by num_heads (%d)",
			dModel, numHeads)
	}
	headDim := dModel / numHeads

	heads := make([]*AttentionHead, numHeads)
	for i := range heads {
		head, err := NewAttentionHead(dModel, headDim, dropout, src)
		if err != nil {
			return nil, err
		}
		heads[i] = head
	}
	output, err := NewLinear(dModel, dModel, src)
	if err != nil {
		return nil, err
	}

	return &MultiHeadAttention{
		Heads:    heads,
		Output:   output,
		NumHeads: numHeads,
		HeadDim:  headDim,
		DModel:   dModel,
		parallel: parallel.CoarseConfig(),
	}, nil
}

// Forward computes multi-head attention.
//
// Args:
//   - query: [batch, seq_q, d_model]
//   - key, value: [batch, seq_k, d_model]
//   - mask: padding and/or causal constraints, see AttentionMask
//
// Returns [batch, seq_q, d_model].
func (m *MultiHeadAttention) Forward(query, key, value *tensor.Tensor, mask AttentionMask) (*tensor.Tensor, error) {
	out, _, err := m.forward(query, key, value, mask, false)
	return out, err
}

// ForwardWithWeights is Forward that also returns the per-head attention
// weights [batch, num_heads, seq_q, seq_k] for inspection.
func (m *MultiHeadAttention) ForwardWithWeights(
	query, key, value *tensor.Tensor,
	mask AttentionMask,
) (*tensor.Tensor, *tensor.Tensor, error) {
	return m.forward(query, key, value, mask, true)
}

func (m *MultiHeadAttention) forward(
	query, key, value *tensor.Tensor,
	mask AttentionMask,
	keepWeights bool,
) (*tensor.Tensor, *tensor.Tensor, error) {
	headOut := make([]*tensor.Tensor, m.NumHeads)
	headWeights := make([]*tensor.Tensor, m.NumHeads)

	// 1. Run every head over the shared inputs
	err := parallel.ForErr(m.NumHeads, func(i int) error {
		out, w, err := m.Heads[i].ForwardWithWeights(query, key, value, mask)
		if err != nil {
			return errors.Wrapf(err, "head %d", i)
		}
		headOut[i], headWeights[i] = out, w
		return nil
	}, m.parallel)
	if err != nil {
		return nil, nil, err
	}

	// 2. Concatenate along features: num_heads * [b, seq_q, d_head] -> [b, seq_q, d_model]
	concat, err := tensor.ConcatLastDim(headOut...)
	if err != nil {
		return nil, nil, err
	}
	if concat.Shape().Last() != m.DModel {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "concatenated heads have width %d, expected d_model %d",
			concat.Shape().Last(), m.DModel)
	}

	// 3. Output projection
	output, err := m.Output.Forward(concat)
	if err != nil {
		return nil, nil, err
	}

	if !keepWeights {
		return output, nil, nil
	}
	return output, stackHeadWeights(headWeights), nil
}

// stackHeadWeights turns num_heads * [b, seq_q, seq_k] into [b, num_heads, seq_q, seq_k].
func stackHeadWeights(perHead []*tensor.Tensor) *tensor.Tensor {
	shape := perHead[0].Shape()
	batch, seqQ, seqK := shape[0], shape[1], shape[2]
	stacked := tensor.Zeros(tensor.Shape{batch, len(perHead), seqQ, seqK})
	for b := 0; b < batch; b++ {
		item := stacked.Index(b)
		for h, w := range perHead {
			copy(item.Index(h).Data(), w.Index(b).Data())
		}
	}
	return stacked
}

// Parameters returns the parameters of every head followed by the output projection.
func (m *MultiHeadAttention) Parameters() []*Parameter {
	params := make([]*Parameter, 0, 6*m.NumHeads+2)
	for _, head := range m.Heads {
		params = append(params, head.Parameters()...)
	}
	params = append(params, m.Output.Parameters()...)
	return params
}

// StateDict returns the parameters under "heads.<i>." and "output.".
func (m *MultiHeadAttention) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor, 6*m.NumHeads+2)
	for i, head := range m.Heads {
		mergeStateDict(sd, fmt.Sprintf("heads.%d", i), head.StateDict())
	}
	mergeStateDict(sd, "output", m.Output.StateDict())
	return sd
}

// SetTraining toggles dropout in every head.
func (m *MultiHeadAttention) SetTraining(training bool) {
	for _, head := range m.Heads {
		head.SetTraining(training)
	}
}
