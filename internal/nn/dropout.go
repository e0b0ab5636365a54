package nn

import (
	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Dropout zeroes elements with probability P in training mode and scales the
// survivors by 1/(1-P) (inverted dropout). In evaluation mode it is the
// identity and returns its input unchanged.
//
// Every call draws a fresh mask; nothing is cached across calls or shared
// between dropout sites.
type Dropout struct {
	P        float64
	training bool
	src      *Source
}

// NewDropout creates a dropout site in evaluation mode.
//
// Returns ErrConfiguration unless 0 <= p < 1.
func NewDropout(p float64, src *Source) (*Dropout, error) {
	if !(p >= 0 && p < 1) {
		return nil, errors.Wrapf(ErrConfiguration, "dropout: probability must be in [0, 1), got %g", p)
	}
	return &Dropout{P: p, src: src}, nil
}

// Forward applies dropout when training.
func (d *Dropout) Forward(x *tensor.Tensor) *tensor.Tensor {
	if !d.training || d.P == 0 {
		return x
	}

	keep := make([]bool, x.NumElements())
	d.src.bernoulliKeep(keep, d.P)

	out := x.Clone()
	data := out.Data()
	scale := 1 / (1 - d.P)
	for i := range data {
		if keep[i] {
			data[i] *= scale
		} else {
			data[i] = 0
		}
	}
	return out
}

// SetTraining switches between training (true) and evaluation (false) mode.
func (d *Dropout) SetTraining(training bool) {
	d.training = training
}

// Training reports whether dropout is active.
func (d *Dropout) Training() bool {
	return d.training
}
