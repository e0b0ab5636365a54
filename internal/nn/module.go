// Package nn implements the encoder-decoder Transformer.
//
// This package provides the building blocks and their composition:
//   - Linear, LayerNorm, Dropout, ReLU, FeedForward
//   - AttentionHead and MultiHeadAttention with padding and causal masking
//   - EncoderLayer, DecoderLayer, Encoder, Decoder
//   - Transformer: encode the source once, decode the target against it
//   - Save / Load: parameter snapshots in the .s2s format
//
// Layout inspired by PyTorch's nn.Module: every component exposes its
// parameters and a state dictionary keyed by layer and sublayer path.
package nn

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Module is the interface implemented by every component that owns parameters.
//
// Forward signatures differ between components (attention takes three
// sequences and a mask, a layer norm takes one tensor), so Forward is not part
// of the interface.
type Module interface {
	// Parameters returns all learned parameters, including nested modules.
	Parameters() []*Parameter

	// StateDict maps dotted parameter paths to the live parameter tensors.
	//
	// The tensors are not copies: clone them before mutating.
	StateDict() map[string]*tensor.Tensor
}

// trainable is implemented by modules whose behavior depends on the
// training/evaluation mode (anything containing a Dropout).
type trainable interface {
	SetTraining(training bool)
}

// mergeStateDict copies every entry of child into dst under prefix + ".".
func mergeStateDict(dst map[string]*tensor.Tensor, prefix string, child map[string]*tensor.Tensor) {
	for name, t := range child {
		dst[prefix+"."+name] = t
	}
}

// LoadStateDict copies the tensors of stateDict into the parameters of m.
//
// Loading is strict: every parameter of m must be present with an identical
// shape, and stateDict may not contain names m does not own. Nothing is copied
// unless the whole dictionary validates.
func LoadStateDict(m Module, stateDict map[string]*tensor.Tensor) error {
	own := m.StateDict()

	var unexpected []string
	for name := range stateDict {
		if _, ok := own[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return errors.Wrapf(ErrShapeMismatch, "unexpected keys in state dict: %v", unexpected)
	}

	for name, dst := range own {
		src, ok := stateDict[name]
		if !ok {
			return errors.Wrapf(ErrShapeMismatch, "missing %s in state dict", name)
		}
		if !src.Shape().Equal(dst.Shape()) {
			return errors.Wrapf(ErrShapeMismatch, "%s: expected shape %v, got %v",
				name, dst.Shape(), src.Shape())
		}
	}

	for name, dst := range own {
		copy(dst.Data(), stateDict[name].Data())
	}
	return nil
}

// NumParameters counts the scalar parameters of m.
func NumParameters(m Module) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Tensor().NumElements()
	}
	return n
}
