package main

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/seq2seq/internal/nn"
)

// ModelConfig is the YAML model description read by `seq2seq init`.
// All fields are pointers so we can distinguish "not set" from zero values;
// unset fields keep the value of nn.DefaultConfig.
type ModelConfig struct {
	DModel           *int     `yaml:"d_model"`
	NumHeads         *int     `yaml:"num_heads"`
	NumEncoderLayers *int     `yaml:"num_encoder_layers"`
	NumDecoderLayers *int     `yaml:"num_decoder_layers"`
	FFNDim           *int     `yaml:"d_ff"`
	Dropout          *float64 `yaml:"dropout"`
	NormEps          *float64 `yaml:"norm_eps"`
	Seed             *uint64  `yaml:"seed"`
}

// Apply overlays the set fields of mc onto cfg.
func (mc ModelConfig) Apply(cfg nn.Config) nn.Config {
	if mc.DModel != nil {
		cfg.DModel = *mc.DModel
	}
	if mc.NumHeads != nil {
		cfg.NumHeads = *mc.NumHeads
	}
	if mc.NumEncoderLayers != nil {
		cfg.NumEncoderLayers = *mc.NumEncoderLayers
	}
	if mc.NumDecoderLayers != nil {
		cfg.NumDecoderLayers = *mc.NumDecoderLayers
	}
	if mc.FFNDim != nil {
		cfg.FFNDim = *mc.FFNDim
	}
	if mc.Dropout != nil {
		cfg.Dropout = *mc.Dropout
	}
	if mc.NormEps != nil {
		cfg.NormEps = *mc.NormEps
	}
	if mc.Seed != nil {
		cfg.Seed = *mc.Seed
	}
	return cfg
}

// parseModelConfig decodes YAML strictly: unknown keys are errors.
func parseModelConfig(data []byte) (nn.Config, error) {
	var mc ModelConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&mc); err != nil && !errors.Is(err, io.EOF) {
		return nn.Config{}, errors.Wrap(err, "failed to parse model config")
	}

	cfg := mc.Apply(nn.DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return nn.Config{}, err
	}
	return cfg, nil
}

// loadModelConfig reads a YAML model config. An empty path yields the
// default configuration.
func loadModelConfig(path string) (nn.Config, error) {
	if path == "" {
		return nn.DefaultConfig(), nil
	}
	//nolint:gosec // G304: config path is supplied by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nn.Config{}, errors.Wrap(err, "failed to read model config")
	}
	return parseModelConfig(data)
}
