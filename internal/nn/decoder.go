package nn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// DecoderLayer is one post-norm decoder block.
//
// Architecture:
//
//	x → SelfAttn → + → Norm → CrossAttn(·, memory) → + → Norm → FFN → + → Norm → output
//	     ↑_______|               ↑_______________|             ↑___|
//
// Self-attention is causal and honours the target padding mask.
// Cross-attention queries come from the decoder, keys and values from the
// encoder output (memory); it honours the source padding mask and is not
// causal.
type DecoderLayer struct {
	SelfAttn      *MultiHeadAttention
	SelfAttnNorm  Normalizer
	CrossAttn     *MultiHeadAttention
	CrossAttnNorm Normalizer
	FFN           *FeedForward
	FFNNorm       Normalizer
}

// NewDecoderLayer creates a decoder layer with the widths of cfg.
func NewDecoderLayer(cfg Config, src *Source) (*DecoderLayer, error) {
	selfAttn, err := NewMultiHeadAttention(cfg.DModel, cfg.NumHeads, cfg.Dropout, src)
	if err != nil {
		return nil, err
	}
	crossAttn, err := NewMultiHeadAttention(cfg.DModel, cfg.NumHeads, cfg.Dropout, src)
	if err != nil {
		return nil, err
	}
	ffn, err := NewFeedForward(cfg.DModel, cfg.FFNDim, cfg.Dropout, src)
	if err != nil {
		return nil, err
	}

	norms := make([]*LayerNorm, 3)
	for i := range norms {
		if norms[i], err = NewLayerNorm(cfg.DModel, cfg.normEps()); err != nil {
			return nil, err
		}
	}

	return &DecoderLayer{
		SelfAttn:      selfAttn,
		SelfAttnNorm:  norms[0],
		CrossAttn:     crossAttn,
		CrossAttnNorm: norms[1],
		FFN:           ffn,
		FFNNorm:       norms[2],
	}, nil
}

// Forward applies the layer.
//
// Args:
//   - x: [batch, tgt_len, d_model]
//   - memory: encoder output [batch, src_len, d_model]
//   - srcMask: nil or [batch, src_len]
//   - tgtMask: nil or [batch, tgt_len]
//
// Returns [batch, tgt_len, d_model].
func (l *DecoderLayer) Forward(x, memory, srcMask, tgtMask *tensor.Tensor) (*tensor.Tensor, error) {
	// 1. Masked self-attention: target padding AND causal
	attnOut, err := l.SelfAttn.Forward(x, x, x, AttentionMask{Padding: tgtMask, Causal: true})
	if err != nil {
		return nil, errors.Wrap(err, "self-attention")
	}
	x, err = addAndNorm(x, attnOut, l.SelfAttnNorm)
	if err != nil {
		return nil, err
	}

	// 2. Cross-attention over the encoder output: source padding only
	crossOut, err := l.CrossAttn.Forward(x, memory, memory, AttentionMask{Padding: srcMask})
	if err != nil {
		return nil, errors.Wrap(err, "cross-attention")
	}
	x, err = addAndNorm(x, crossOut, l.CrossAttnNorm)
	if err != nil {
		return nil, err
	}

	// 3. FFN block
	ffnOut, err := l.FFN.Forward(x)
	if err != nil {
		return nil, errors.Wrap(err, "feed-forward")
	}
	return addAndNorm(x, ffnOut, l.FFNNorm)
}

// Parameters returns all parameters in forward order.
func (l *DecoderLayer) Parameters() []*Parameter {
	var params []*Parameter
	params = append(params, l.SelfAttn.Parameters()...)
	params = append(params, l.SelfAttnNorm.Parameters()...)
	params = append(params, l.CrossAttn.Parameters()...)
	params = append(params, l.CrossAttnNorm.Parameters()...)
	params = append(params, l.FFN.Parameters()...)
	params = append(params, l.FFNNorm.Parameters()...)
	return params
}

// StateDict returns the parameters under "self_attn.", "self_attn_norm.",
// "cross_attn.", "cross_attn_norm.", "ffn." and "ffn_norm.".
func (l *DecoderLayer) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	mergeStateDict(sd, "self_attn", l.SelfAttn.StateDict())
	mergeStateDict(sd, "self_attn_norm", l.SelfAttnNorm.StateDict())
	mergeStateDict(sd, "cross_attn", l.CrossAttn.StateDict())
	mergeStateDict(sd, "cross_attn_norm", l.CrossAttnNorm.StateDict())
	mergeStateDict(sd, "ffn", l.FFN.StateDict())
	mergeStateDict(sd, "ffn_norm", l.FFNNorm.StateDict())
	return sd
}

// SetTraining toggles every dropout site in the layer.
func (l *DecoderLayer) SetTraining(training bool) {
	l.SelfAttn.SetTraining(training)
	l.CrossAttn.SetTraining(training)
	l.FFN.SetTraining(training)
}

// Decoder is an ordered stack of independent decoder layers. Every layer
// receives the same encoder output and masks.
type Decoder struct {
	Layers []*DecoderLayer
}

// NewDecoder creates cfg.NumDecoderLayers layers with independent parameters.
func NewDecoder(cfg Config, src *Source) (*Decoder, error) {
	if cfg.NumDecoderLayers <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "decoder: num_decoder_layers must be positive, got %d",
			cfg.NumDecoderLayers)
	}
	layers := make([]*DecoderLayer, cfg.NumDecoderLayers)
	for i := range layers {
		layer, err := NewDecoderLayer(cfg, src)
		if err != nil {
			return nil, errors.Wrapf(err, "decoder layer %d", i)
		}
		layers[i] = layer
	}
	return &Decoder{Layers: layers}, nil
}

// Forward runs tgt through every layer in order, attending to memory.
func (d *Decoder) Forward(tgt, memory, srcMask, tgtMask *tensor.Tensor) (*tensor.Tensor, error) {
	x := tgt
	var err error
	for i, layer := range d.Layers {
		x, err = layer.Forward(x, memory, srcMask, tgtMask)
		if err != nil {
			return nil, errors.Wrapf(err, "decoder layer %d", i)
		}
	}
	return x, nil
}

// Parameters returns the parameters of every layer in order.
func (d *Decoder) Parameters() []*Parameter {
	var params []*Parameter
	for _, layer := range d.Layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// StateDict returns the parameters under "layers.<i>.".
func (d *Decoder) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	for i, layer := range d.Layers {
		mergeStateDict(sd, fmt.Sprintf("layers.%d", i), layer.StateDict())
	}
	return sd
}

// SetTraining toggles every layer.
func (d *Decoder) SetTraining(training bool) {
	for _, layer := range d.Layers {
		layer.SetTraining(training)
	}
}
