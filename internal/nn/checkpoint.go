package nn

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// ModelType is recorded in the header of every snapshot written by Save.
const ModelType = "Transformer"

// SaveOptions controls Save.
type SaveOptions struct {
	// DType is the storage type: serialization.DTypeFloat64 (default, bit
	// exact), DTypeFloat32 or DTypeFloat16 (both lossy).
	DType    string
	Metadata map[string]string
	Logger   logger.Logger
}

// LoadOptions controls Load and LoadModel.
type LoadOptions struct {
	SkipChecksumValidation bool
	Logger                 logger.Logger
}

// Checkpoint describes a snapshot file: the configuration of the model it
// was taken from and the file header.
type Checkpoint struct {
	Config Config
	Header serialization.Header
}

// Save writes the parameters and configuration of model to path.
//
// Example:
//
//	ckpt, err := nn.Save(model, "model.s2s", nn.SaveOptions{})
//	fmt.Println(ckpt.Header.SnapshotID)
func Save(model *Transformer, path string, opts SaveOptions) (ckpt *Checkpoint, err error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	cfg := model.Config()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}

	if _, err := serialization.DTypeSize(storageDType(opts.DType)); err != nil {
		return nil, err
	}

	writer, err := serialization.NewWriter(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			ckpt, err = nil, closeErr
		}
	}()

	header, err := writer.WriteStateDict(model.StateDict(), serialization.WriteOptions{
		DType:     opts.DType,
		ModelType: ModelType,
		Config:    cfgJSON,
		Metadata:  opts.Metadata,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", path)
	}

	log.Debug("checkpoint saved",
		"path", path,
		"snapshot_id", header.SnapshotID.String(),
		"tensors", len(header.Tensors),
		"bytes", header.TotalBytes(),
	)
	return &Checkpoint{Config: cfg, Header: header}, nil
}

// Load reads a snapshot into model.
//
// The snapshot must come from a model with the same architecture
// (d_model, heads, layer counts, d_ff); otherwise ErrConfiguration is
// returned and model is left untouched. Dropout and seed may differ.
func Load(path string, model *Transformer, opts LoadOptions) (*Checkpoint, error) {
	ckpt, stateDict, err := readCheckpoint(path, opts)
	if err != nil {
		return nil, err
	}
	if !ckpt.Config.SameArchitecture(model.Config()) {
		return nil, errors.Wrapf(ErrConfiguration, "%s: snapshot architecture %+v does not match model %+v",
			path, ckpt.Config, model.Config())
	}
	if err := model.LoadStateDict(stateDict); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	logFor(opts).Debug("checkpoint loaded", "path", path, "snapshot_id", ckpt.Header.SnapshotID.String())
	return ckpt, nil
}

// LoadModel builds a new model from the configuration stored in the
// snapshot and loads its parameters. The model starts in evaluation mode.
func LoadModel(path string, opts LoadOptions) (*Transformer, *Checkpoint, error) {
	ckpt, stateDict, err := readCheckpoint(path, opts)
	if err != nil {
		return nil, nil, err
	}
	model, err := NewTransformer(ckpt.Config, WithLogger(logFor(opts)))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s: stored config", path)
	}
	if err := model.LoadStateDict(stateDict); err != nil {
		return nil, nil, errors.Wrapf(err, "%s", path)
	}

	logFor(opts).Debug("model loaded", "path", path, "snapshot_id", ckpt.Header.SnapshotID.String())
	return model, ckpt, nil
}

// ReadCheckpoint returns the description of a snapshot without loading
// its tensors.
func ReadCheckpoint(path string, opts LoadOptions) (*Checkpoint, error) {
	reader, err := serialization.NewReaderWithOptions(path, serialization.ReaderOptions{
		SkipChecksumValidation: opts.SkipChecksumValidation,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer reader.Close()

	return checkpointFromHeader(path, reader.Header())
}

func readCheckpoint(path string, opts LoadOptions) (*Checkpoint, map[string]*tensor.Tensor, error) {
	reader, err := serialization.NewReaderWithOptions(path, serialization.ReaderOptions{
		SkipChecksumValidation: opts.SkipChecksumValidation,
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer reader.Close()

	ckpt, err := checkpointFromHeader(path, reader.Header())
	if err != nil {
		return nil, nil, err
	}
	stateDict, err := reader.ReadStateDict()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return ckpt, stateDict, nil
}

func checkpointFromHeader(path string, header serialization.Header) (*Checkpoint, error) {
	if header.ModelType != ModelType {
		return nil, errors.Wrapf(ErrConfiguration, "%s: model type %q, expected %q", path, header.ModelType, ModelType)
	}
	if len(header.Config) == 0 {
		return nil, errors.Wrapf(ErrConfiguration, "%s: snapshot has no config", path)
	}
	var cfg Config
	if err := json.Unmarshal(header.Config, &cfg); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to parse config", path)
	}
	return &Checkpoint{Config: cfg, Header: header}, nil
}

func logFor(opts LoadOptions) logger.Logger {
	if opts.Logger == nil {
		return logger.Nop()
	}
	return opts.Logger
}

func storageDType(dtype string) string {
	if dtype == "" {
		return serialization.DTypeFloat64
	}
	return dtype
}
