package nn

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// AttentionMask describes which (query, key) pairs an attention head may use.
//
// The two constraints are kept separate and combined with a logical AND
// where the scores are masked:
//   - Padding: nil (every key valid), a [batch, seq_k] 0/1 tensor marking
//     valid key positions for every query, or a [batch, seq_q, seq_k] tensor
//     giving a per-query mask. Non-zero means valid.
//   - Causal: query i may not attend to key j > i.
//
// Encoder self-attention uses padding only, decoder self-attention uses both,
// cross-attention uses the source padding only.
type AttentionMask struct {
	Padding *tensor.Tensor
	Causal  bool
}

// PaddingMask builds a [batch, seqLen] mask from per-item valid lengths:
// positions j < lengths[b] are 1, the rest 0.
func PaddingMask(lengths []int, seqLen int) (*tensor.Tensor, error) {
	if len(lengths) == 0 || seqLen <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "padding mask: batch=%d seq_len=%d", len(lengths), seqLen)
	}
	mask := tensor.Zeros(tensor.Shape{len(lengths), seqLen})
	for b, n := range lengths {
		if n < 0 || n > seqLen {
			return nil, errors.Wrapf(ErrShapeMismatch, "padding mask: length %d of item %d outside [0, %d]",
				n, b, seqLen)
		}
		for j := 0; j < n; j++ {
			mask.Set(1, b, j)
		}
	}
	return mask, nil
}

// CausalMask returns the [seqLen, seqLen] lower-triangular 0/1 mask:
// entry (i, j) is 1 when j <= i.
//
// Example (seqLen=3):
//
//	[[1, 0, 0],
//	 [1, 1, 0],
//	 [1, 1, 1]]
func CausalMask(seqLen int) *tensor.Tensor {
	mask := tensor.Zeros(tensor.Shape{seqLen, seqLen})
	for i := 0; i < seqLen; i++ {
		for j := 0; j < seqLen; j++ {
			if causalAllowed(i, j) {
				mask.Set(1, i, j)
			}
		}
	}
	return mask
}

// causalAllowed reports whether query i may attend to key j.
func causalAllowed(i, j int) bool {
	return j <= i
}

// validate checks the padding tensor against the attention call's dimensions.
func (m AttentionMask) validate(batch, seqQ, seqK int) error {
	if m.Padding == nil {
		return nil
	}
	shape := m.Padding.Shape()
	switch m.Padding.Rank() {
	case 2:
		if shape[0] != batch || shape[1] != seqK {
			return errors.Wrapf(ErrShapeMismatch, "mask: expected [%d, %d], got %v", batch, seqK, shape)
		}
	case 3:
		if shape[0] != batch || shape[1] != seqQ || shape[2] != seqK {
			return errors.Wrapf(ErrShapeMismatch, "mask: expected [%d, %d, %d], got %v", batch, seqQ, seqK, shape)
		}
	default:
		return errors.Wrapf(ErrShapeMismatch, "mask: expected rank 2 or 3, got %v", shape)
	}
	return nil
}

// apply sets the masked entries of scores ([seq_q, seq_k] for batch item b)
// to -Inf so that softmax gives them weight exactly 0.
func (m AttentionMask) apply(scores *tensor.Tensor, b int) {
	seqQ, seqK := scores.Dim(0), scores.Dim(1)
	data := scores.Data()
	negInf := math.Inf(-1)

	var keyValid []float64 // [seq_k] row shared by every query, or nil
	var pairValid []float64
	if m.Padding != nil {
		if m.Padding.Rank() == 2 {
			keyValid = m.Padding.Data()[b*seqK : (b+1)*seqK]
		} else {
			pairValid = m.Padding.Index(b).Data()
		}
	}

	for i := 0; i < seqQ; i++ {
		row := data[i*seqK : (i+1)*seqK]
		for j := range row {
			allowed := !m.Causal || causalAllowed(i, j)
			if keyValid != nil {
				allowed = allowed && keyValid[j] != 0
			}
			if pairValid != nil {
				allowed = allowed && pairValid[i*seqK+j] != 0
			}
			if !allowed {
				row[j] = negInf
			}
		}
	}
}
