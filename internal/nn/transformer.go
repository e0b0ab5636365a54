package nn

import (
	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Transformer is the encoder-decoder model.
//
// Architecture:
//
//	src → Encoder ─────────────┐ memory
//	tgt → Decoder(·, memory) → output [batch, tgt_len, d_model]
//
// Inputs are already-embedded sequences; token embedding, positional
// encoding and the output vocabulary projection live outside this type.
//
// A new Transformer is in evaluation mode: dropout is off and Forward is
// deterministic. Call Train to enable dropout.
//
// Forward does not mutate parameters, so concurrent Forward calls in
// evaluation mode are safe. Switching mode or loading parameters while a
// Forward is running is not.
type Transformer struct {
	Encoder *Encoder
	Decoder *Decoder

	config   Config
	src      *Source
	training bool
	log      logger.Logger
}

// Option configures a Transformer at construction.
type Option func(*Transformer)

// WithLogger sets the logger used for debug output. The default discards.
func WithLogger(l logger.Logger) Option {
	return func(t *Transformer) {
		t.log = l
	}
}

// NewTransformer validates cfg and builds a model with freshly initialized
// parameters. Two models built from the same non-zero cfg.Seed have
// identical parameters.
//
// Example:
//
//	cfg := nn.DefaultConfig()
//	cfg.Seed = 42
//	model, err := nn.NewTransformer(cfg)
//	out, err := model.Forward(src, tgt, srcMask, tgtMask)
func NewTransformer(cfg Config, opts ...Option) (*Transformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.NormEps == 0 {
		cfg.NormEps = DefaultNormEps
	}

	t := &Transformer{
		config: cfg,
		src:    NewSource(cfg.Seed),
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	var err error
	if t.Encoder, err = NewEncoder(cfg, t.src); err != nil {
		return nil, err
	}
	if t.Decoder, err = NewDecoder(cfg, t.src); err != nil {
		return nil, err
	}

	t.log.Debug("transformer built",
		"d_model", cfg.DModel,
		"num_heads", cfg.NumHeads,
		"encoder_layers", cfg.NumEncoderLayers,
		"decoder_layers", cfg.NumDecoderLayers,
		"d_ff", cfg.FFNDim,
		"parameters", NumParameters(t),
	)
	return t, nil
}

// Config returns a copy of the model configuration.
func (t *Transformer) Config() Config {
	return t.config
}

// Forward encodes src once and decodes tgt against it.
//
// Args:
//   - src: [batch, src_len, d_model]
//   - tgt: [batch, tgt_len, d_model]
//   - srcMask: nil (all valid) or [batch, src_len], non-zero = valid
//   - tgtMask: nil (all valid) or [batch, tgt_len], non-zero = valid
//
// Returns [batch, tgt_len, d_model].
func (t *Transformer) Forward(src, tgt, srcMask, tgtMask *tensor.Tensor) (*tensor.Tensor, error) {
	if err := t.checkSequence("tgt", tgt); err != nil {
		return nil, err
	}
	memory, err := t.Encode(src, srcMask)
	if err != nil {
		return nil, err
	}
	return t.Decode(tgt, memory, srcMask, tgtMask)
}

// Encode runs the encoder stack over src and returns the memory
// [batch, src_len, d_model] consumed by Decode.
func (t *Transformer) Encode(src, srcMask *tensor.Tensor) (*tensor.Tensor, error) {
	if err := t.checkSequence("src", src); err != nil {
		return nil, err
	}
	if err := checkMask("src_mask", srcMask, src); err != nil {
		return nil, err
	}
	return t.Encoder.Forward(src, srcMask)
}

// Decode runs the decoder stack over tgt, attending to memory. The same
// memory may be reused across calls.
func (t *Transformer) Decode(tgt, memory, srcMask, tgtMask *tensor.Tensor) (*tensor.Tensor, error) {
	if err := t.checkSequence("tgt", tgt); err != nil {
		return nil, err
	}
	if err := t.checkSequence("memory", memory); err != nil {
		return nil, err
	}
	if memory.Dim(0) != tgt.Dim(0) {
		return nil, errors.Wrapf(ErrShapeMismatch, "transformer: batch sizes differ: tgt=%d memory=%d",
			tgt.Dim(0), memory.Dim(0))
	}
	if err := checkMask("src_mask", srcMask, memory); err != nil {
		return nil, err
	}
	if err := checkMask("tgt_mask", tgtMask, tgt); err != nil {
		return nil, err
	}
	return t.Decoder.Forward(tgt, memory, srcMask, tgtMask)
}

func (t *Transformer) checkSequence(name string, x *tensor.Tensor) error {
	if x == nil {
		return errors.Wrapf(ErrShapeMismatch, "transformer: %s is nil", name)
	}
	if x.Rank() != 3 || x.Dim(2) != t.config.DModel {
		return errors.Wrapf(ErrShapeMismatch, "transformer: %s must be [batch, seq, %d], got %v",
			name, t.config.DModel, x.Shape())
	}
	return nil
}

// checkMask requires a [batch, seq] mask aligned with x.
func checkMask(name string, mask, x *tensor.Tensor) error {
	if mask == nil {
		return nil
	}
	if mask.Rank() != 2 || mask.Dim(0) != x.Dim(0) || mask.Dim(1) != x.Dim(1) {
		return errors.Wrapf(ErrShapeMismatch, "transformer: %s must be [%d, %d], got %v",
			name, x.Dim(0), x.Dim(1), mask.Shape())
	}
	return nil
}

// Train enables dropout in every layer.
func (t *Transformer) Train() {
	t.SetTraining(true)
}

// Eval disables dropout in every layer.
func (t *Transformer) Eval() {
	t.SetTraining(false)
}

// SetTraining switches the whole model between training and evaluation mode.
func (t *Transformer) SetTraining(training bool) {
	t.training = training
	t.Encoder.SetTraining(training)
	t.Decoder.SetTraining(training)
}

// Training reports whether the model is in training mode.
func (t *Transformer) Training() bool {
	return t.training
}

// Parameters returns the encoder parameters followed by the decoder parameters.
func (t *Transformer) Parameters() []*Parameter {
	params := t.Encoder.Parameters()
	return append(params, t.Decoder.Parameters()...)
}

// StateDict returns every parameter keyed by its dotted path, e.g.
// "encoder.layers.0.self_attn.heads.3.query.weight".
func (t *Transformer) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	mergeStateDict(sd, "encoder", t.Encoder.StateDict())
	mergeStateDict(sd, "decoder", t.Decoder.StateDict())
	return sd
}

// LoadStateDict replaces the model parameters, see the package-level
// LoadStateDict for the validation rules.
func (t *Transformer) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	return LoadStateDict(t, stateDict)
}

var (
	_ Module     = (*Transformer)(nil)
	_ trainable  = (*Transformer)(nil)
	_ trainable  = (*EncoderLayer)(nil)
	_ trainable  = (*DecoderLayer)(nil)
	_ trainable  = (*MultiHeadAttention)(nil)
	_ trainable  = (*FeedForward)(nil)
	_ Normalizer = (*LayerNorm)(nil)
)
