package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// FeedForward implements the position-wise feed-forward block.
//
// Architecture:
//
//	FFN(x) = Dropout(Linear2(Dropout(ReLU(Linear1(x)))))
//
// Where:
//   - Linear1: [d_model → d_ff] (expansion)
//   - ReLU: max(0, x)
//   - Linear2: [d_ff → d_model] (projection back)
//
// Each position is transformed independently with the same weights, so the
// block never mixes information across the sequence axis.
//
// Example:
//
//	ffn, err := nn.NewFeedForward(512, 2048, 0.1, src)
//	output, err := ffn.Forward(x)  // [batch, seq, 512] -> [batch, seq, 512]
type FeedForward struct {
	Linear1  *Linear // [d_model → d_ff]
	Linear2  *Linear // [d_ff → d_model]
	ReLU     *ReLU
	Dropout1 *Dropout // after Linear1 + ReLU
	Dropout2 *Dropout // after Linear2
}

// NewFeedForward creates a new feed-forward block.
func NewFeedForward(dModel, ffnDim int, dropout float64, src *Source) (*FeedForward, error) {
	linear1, err := NewLinear(dModel, ffnDim, src)
	if err != nil {
		return nil, err
	}
	linear2, err := NewLinear(ffnDim, dModel, src)
	if err != nil {
		return nil, err
	}
	dropout1, err := NewDropout(dropout, src)
	if err != nil {
		return nil, err
	}
	dropout2, err := NewDropout(dropout, src)
	if err != nil {
		return nil, err
	}

	return &FeedForward{
		Linear1:  linear1,
		Linear2:  linear2,
		ReLU:     NewReLU(),
		Dropout1: dropout1,
		Dropout2: dropout2,
	}, nil
}

// Forward computes the block output. Input and output are [..., d_model].
func (f *FeedForward) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	// 1. Expand: Linear1 [d_model → d_ff]
	h, err := f.Linear1.Forward(x)
	if err != nil {
		return nil, err
	}

	// 2. Activate
	h = f.Dropout1.Forward(f.ReLU.Forward(h))

	// 3. Project: Linear2 [d_ff → d_model]
	out, err := f.Linear2.Forward(h)
	if err != nil {
		return nil, err
	}
	return f.Dropout2.Forward(out), nil
}

// Parameters returns all trainable parameters (Linear1 and Linear2).
func (f *FeedForward) Parameters() []*Parameter {
	params := make([]*Parameter, 0, 4)
	params = append(params, f.Linear1.Parameters()...)
	params = append(params, f.Linear2.Parameters()...)
	return params
}

// StateDict returns the parameters under "linear1." and "linear2.".
func (f *FeedForward) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor, 4)
	mergeStateDict(sd, "linear1", f.Linear1.StateDict())
	mergeStateDict(sd, "linear2", f.Linear2.StateDict())
	return sd
}

// SetTraining toggles both dropout sites.
func (f *FeedForward) SetTraining(training bool) {
	f.Dropout1.SetTraining(training)
	f.Dropout2.SetTraining(training)
}
