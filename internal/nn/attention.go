package nn

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// AttentionHead computes scaled dot-product attention in one representation
// subspace of width HeadDim.
//
//	head(Q, K, V) = softmax(mask((Q W_q)(K W_k)^T / sqrt(d_head))) (V W_v)
//
// Shapes:
//   - query: [batch, seq_q, d_model]
//   - key, value: [batch, seq_k, d_model]
//   - output: [batch, seq_q, d_head]
//
// The softmax runs over the key axis: for every query position the weights
// over the valid keys sum to 1. Masked pairs get weight exactly 0. A query
// whose keys are all masked gets all-zero weights, so its output row is the
// zero vector.
//
// Dropout (training mode only) is applied to the attention weights.
type AttentionHead struct {
	Query   *Linear // [d_model → d_head]
	Key     *Linear // [d_model → d_head]
	Value   *Linear // [d_model → d_head]
	Dropout *Dropout
	DModel  int
	HeadDim int
}

// NewAttentionHead creates a head with its own query/key/value projections.
func NewAttentionHead(dModel, headDim int, dropout float64, src *Source) (*AttentionHead, error) {
	query, err := NewLinear(dModel, headDim, src)
	if err != nil {
		return nil, err
	}
	key, err := NewLinear(dModel, headDim, src)
	if err != nil {
		return nil, err
	}
	value, err := NewLinear(dModel, headDim, src)
	if err != nil {
		return nil, err
	}
	drop, err := NewDropout(dropout, src)
	if err != nil {
		return nil, err
	}

	return &AttentionHead{
		Query:   query,
		Key:     key,
		Value:   value,
		Dropout: drop,
		DModel:  dModel,
		HeadDim: headDim,
	}, nil
}

// Forward computes the head output [batch, seq_q, d_head].
func (h *AttentionHead) Forward(query, key, value *tensor.Tensor, mask AttentionMask) (*tensor.Tensor, error) {
	out, _, err := h.ForwardWithWeights(query, key, value, mask)
	return out, err
}

// ForwardWithWeights computes the head output and also returns the attention
// weights [batch, seq_q, seq_k] that were applied to the values.
func (h *AttentionHead) ForwardWithWeights(
	query, key, value *tensor.Tensor,
	mask AttentionMask,
) (*tensor.Tensor, *tensor.Tensor, error) {
	batch, seqQ, seqK, err := checkAttentionInputs(query, key, value, h.DModel)
	if err != nil {
		return nil, nil, err
	}
	if err := mask.validate(batch, seqQ, seqK); err != nil {
		return nil, nil, err
	}

	// 1. Project Q, K, V into the head subspace: [batch, seq, d_head]
	q, err := h.Query.Forward(query)
	if err != nil {
		return nil, nil, err
	}
	k, err := h.Key.Forward(key)
	if err != nil {
		return nil, nil, err
	}
	v, err := h.Value.Forward(value)
	if err != nil {
		return nil, nil, err
	}

	scale := 1 / math.Sqrt(float64(h.HeadDim))
	output := tensor.Zeros(tensor.Shape{batch, seqQ, h.HeadDim})
	weights := tensor.Zeros(tensor.Shape{batch, seqQ, seqK})

	for b := 0; b < batch; b++ {
		// 2. scores[i, j] = q_i · k_j / sqrt(d_head)
		scores, err := tensor.MatMulTransB(q.Index(b), k.Index(b))
		if err != nil {
			return nil, nil, err
		}
		scores = scores.Scale(scale)

		// 3. Mask, then normalize over the key axis
		mask.apply(scores, b)
		w := h.Dropout.Forward(scores.Softmax())

		// 4. Weighted sum of values: [seq_q, seq_k] @ [seq_k, d_head]
		out, err := tensor.MatMul(w, v.Index(b))
		if err != nil {
			return nil, nil, err
		}

		copy(output.Index(b).Data(), out.Data())
		copy(weights.Index(b).Data(), w.Data())
	}

	return output, weights, nil
}

// checkAttentionInputs validates ranks, feature sizes and batch/length
// alignment, returning (batch, seq_q, seq_k).
func checkAttentionInputs(query, key, value *tensor.Tensor, dModel int) (int, int, int, error) {
	for _, in := range []struct {
		name string
		t    *tensor.Tensor
	}{{"query", query}, {"key", key}, {"value", value}} {
		if in.t.Rank() != 3 {
			return 0, 0, 0, errors.Wrapf(ErrShapeMismatch, "attention: %s must be [batch, seq, %d], got %v",
				in.name, dModel, in.t.Shape())
		}
		if in.t.Dim(2) != dModel {
			return 0, 0, 0, errors.Wrapf(ErrShapeMismatch, "attention: %s feature size must be %d, got %d",
				in.name, dModel, in.t.Dim(2))
		}
	}

	batch := query.Dim(0)
	if key.Dim(0) != batch || value.Dim(0) != batch {
		return 0, 0, 0, errors.Wrapf(ErrShapeMismatch, "attention: batch sizes differ: query=%d key=%d value=%d",
			batch, key.Dim(0), value.Dim(0))
	}
	if key.Dim(1) != value.Dim(1) {
		return 0, 0, 0, errors.Wrapf(ErrShapeMismatch, "attention: key and value lengths differ: %d vs %d",
			key.Dim(1), value.Dim(1))
	}
	return batch, query.Dim(1), key.Dim(1), nil
}

// Parameters returns the query, key and value projection parameters.
func (h *AttentionHead) Parameters() []*Parameter {
	params := make([]*Parameter, 0, 6)
	params = append(params, h.Query.Parameters()...)
	params = append(params, h.Key.Parameters()...)
	params = append(params, h.Value.Parameters()...)
	return params
}

// StateDict returns the parameters under "query.", "key." and "value.".
func (h *AttentionHead) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor, 6)
	mergeStateDict(sd, "query", h.Query.StateDict())
	mergeStateDict(sd, "key", h.Key.StateDict())
	mergeStateDict(sd, "value", h.Value.StateDict())
	return sd
}

// SetTraining toggles the attention-weight dropout.
func (h *AttentionHead) SetTraining(training bool) {
	h.Dropout.SetTraining(training)
}
