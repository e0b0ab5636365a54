package nn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// EncoderLayer is one post-norm encoder block.
//
// Architecture:
//
//	x → SelfAttn → + → Norm → FFN → + → Norm → output
//	     ↑_______|             ↑___|
//	   (residual)            (residual)
//
// Self-attention sees every valid source position; padded positions are
// excluded as keys through the source mask.
type EncoderLayer struct {
	SelfAttn     *MultiHeadAttention
	SelfAttnNorm Normalizer
	FFN          *FeedForward
	FFNNorm      Normalizer
}

// NewEncoderLayer creates an encoder layer with the widths of cfg.
func NewEncoderLayer(cfg Config, src *Source) (*EncoderLayer, error) {
	attn, err := NewMultiHeadAttention(cfg.DModel, cfg.NumHeads, cfg.Dropout, src)
	if err != nil {
		return nil, err
	}
	attnNorm, err := NewLayerNorm(cfg.DModel, cfg.normEps())
	if err != nil {
		return nil, err
	}
	ffn, err := NewFeedForward(cfg.DModel, cfg.FFNDim, cfg.Dropout, src)
	if err != nil {
		return nil, err
	}
	ffnNorm, err := NewLayerNorm(cfg.DModel, cfg.normEps())
	if err != nil {
		return nil, err
	}

	return &EncoderLayer{
		SelfAttn:     attn,
		SelfAttnNorm: attnNorm,
		FFN:          ffn,
		FFNNorm:      ffnNorm,
	}, nil
}

// Forward applies the layer to x [batch, src_len, d_model].
//
// srcMask is nil (all positions valid) or [batch, src_len].
func (l *EncoderLayer) Forward(x, srcMask *tensor.Tensor) (*tensor.Tensor, error) {
	// 1. Self-attention block: MHA -> Add residual -> Norm
	attnOut, err := l.SelfAttn.Forward(x, x, x, AttentionMask{Padding: srcMask})
	if err != nil {
		return nil, errors.Wrap(err, "self-attention")
	}
	x, err = addAndNorm(x, attnOut, l.SelfAttnNorm)
	if err != nil {
		return nil, err
	}

	// 2. FFN block: FFN -> Add residual -> Norm
	ffnOut, err := l.FFN.Forward(x)
	if err != nil {
		return nil, errors.Wrap(err, "feed-forward")
	}
	return addAndNorm(x, ffnOut, l.FFNNorm)
}

// addAndNorm computes norm(x + sub).
func addAndNorm(x, sub *tensor.Tensor, norm Normalizer) (*tensor.Tensor, error) {
	sum, err := x.Add(sub)
	if err != nil {
		return nil, err
	}
	return norm.Forward(sum)
}

// Parameters returns all parameters in forward order.
func (l *EncoderLayer) Parameters() []*Parameter {
	var params []*Parameter
	params = append(params, l.SelfAttn.Parameters()...)
	params = append(params, l.SelfAttnNorm.Parameters()...)
	params = append(params, l.FFN.Parameters()...)
	params = append(params, l.FFNNorm.Parameters()...)
	return params
}

// StateDict returns the parameters under "self_attn.", "self_attn_norm.",
// "ffn." and "ffn_norm.".
func (l *EncoderLayer) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	mergeStateDict(sd, "self_attn", l.SelfAttn.StateDict())
	mergeStateDict(sd, "self_attn_norm", l.SelfAttnNorm.StateDict())
	mergeStateDict(sd, "ffn", l.FFN.StateDict())
	mergeStateDict(sd, "ffn_norm", l.FFNNorm.StateDict())
	return sd
}

// SetTraining toggles every dropout site in the layer.
func (l *EncoderLayer) SetTraining(training bool) {
	l.SelfAttn.SetTraining(training)
	l.FFN.SetTraining(training)
}

// Encoder is an ordered stack of independent encoder layers. The output of
// layer i is the input of layer i+1; every layer sees the same source mask.
type Encoder struct {
	Layers []*EncoderLayer
}

// NewEncoder creates cfg.NumEncoderLayers layers with independent parameters.
func NewEncoder(cfg Config, src *Source) (*Encoder, error) {
	if cfg.NumEncoderLayers <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "encoder: num_encoder_layers must be positive, got %d",
			cfg.NumEncoderLayers)
	}
	layers := make([]*EncoderLayer, cfg.NumEncoderLayers)
	for i := range layers {
		layer, err := NewEncoderLayer(cfg, src)
		if err != nil {
			return nil, errors.Wrapf(err, "encoder layer %d", i)
		}
		layers[i] = layer
	}
	return &Encoder{Layers: layers}, nil
}

// Forward runs x [batch, src_len, d_model] through every layer in order.
func (e *Encoder) Forward(x, srcMask *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for i, layer := range e.Layers {
		x, err = layer.Forward(x, srcMask)
		if err != nil {
			return nil, errors.Wrapf(err, "encoder layer %d", i)
		}
	}
	return x, nil
}

// Parameters returns the parameters of every layer in order.
func (e *Encoder) Parameters() []*Parameter {
	var params []*Parameter
	for _, layer := range e.Layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// StateDict returns the parameters under "layers.<i>.".
func (e *Encoder) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	for i, layer := range e.Layers {
		mergeStateDict(sd, fmt.Sprintf("layers.%d", i), layer.StateDict())
	}
	return sd
}

// SetTraining toggles every layer.
func (e *Encoder) SetTraining(training bool) {
	for _, layer := range e.Layers {
		layer.SetTraining(training)
	}
}
