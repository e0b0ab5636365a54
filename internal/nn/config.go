package nn

import (
	"math"

	"github.com/pkg/errors"
)

// Config holds the architecture hyperparameters of a Transformer.
//
// A model copies its Config at construction and never changes it.
type Config struct {
	DModel           int     `json:"d_model"`            // width carried between sublayers
	NumHeads         int     `json:"num_heads"`          // heads per attention block; must divide DModel
	NumEncoderLayers int     `json:"num_encoder_layers"` // encoder stack depth
	NumDecoderLayers int     `json:"num_decoder_layers"` // decoder stack depth
	FFNDim           int     `json:"d_ff"`               // feed-forward hidden size
	Dropout          float64 `json:"dropout"`            // dropout probability, used in training mode only
	NormEps          float64 `json:"norm_eps"`           // LayerNorm epsilon, 0 = DefaultNormEps
	Seed             uint64  `json:"seed"`               // initialisation/dropout seed, 0 = random
}

// DefaultConfig returns the base configuration of the original architecture:
// d_model 512, 8 heads, 6 encoder and 6 decoder layers, d_ff 2048, dropout 0.3.
func DefaultConfig() Config {
	return Config{
		DModel:           512,
		NumHeads:         8,
		NumEncoderLayers: 6,
		NumDecoderLayers: 6,
		FFNDim:           2048,
		Dropout:          0.3,
		NormEps:          DefaultNormEps,
	}
}

// Validate reports the first invalid field, wrapped in ErrConfiguration.
func (c Config) Validate() error {
	switch {
	case c.DModel <= 0:
		return errors.Wrapf(ErrConfiguration, "d_model must be positive, got %d", c.DModel)
	case c.NumHeads <= 0:
		return errors.Wrapf(ErrConfiguration, "num_heads must be positive, got %d", c.NumHeads)
	case c.DModel%c.NumHeads != 0:
		return errors.Wrapf(ErrConfiguration, "d_model (%d) must be divisible by num_heads (%d)", c.DModel, c.NumHeads)
	case c.NumEncoderLayers <= 0:
		return errors.Wrapf(ErrConfiguration, "num_encoder_layers must be positive, got %d", c.NumEncoderLayers)
	case c.NumDecoderLayers <= 0:
		return errors.Wrapf(ErrConfiguration, "num_decoder_layers must be positive, got %d", c.NumDecoderLayers)
	case c.FFNDim <= 0:
		return errors.Wrapf(ErrConfiguration, "d_ff must be positive, got %d", c.FFNDim)
	case !(c.Dropout >= 0 && c.Dropout < 1):
		return errors.Wrapf(ErrConfiguration, "dropout must be in [0, 1), got %g", c.Dropout)
	case !(c.NormEps >= 0) || math.IsInf(c.NormEps, 1):
		return errors.Wrapf(ErrConfiguration, "norm_eps must be finite and not negative, got %g", c.NormEps)
	}
	return nil
}

// HeadDim returns d_model / num_heads.
func (c Config) HeadDim() int {
	return c.DModel / c.NumHeads
}

// SameArchitecture reports whether parameters of a model built from c fit a
// model built from other. Dropout and Seed do not affect parameter shapes.
func (c Config) SameArchitecture(other Config) bool {
	return c.DModel == other.DModel &&
		c.NumHeads == other.NumHeads &&
		c.NumEncoderLayers == other.NumEncoderLayers &&
		c.NumDecoderLayers == other.NumDecoderLayers &&
		c.FFNDim == other.FFNDim
}

func (c Config) normEps() float64 {
	if c.NormEps == 0 {
		return DefaultNormEps
	}
	return c.NormEps
}
