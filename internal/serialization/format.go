package serialization

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Format constants.
const (
	MagicBytes      = "S2SM"
	FormatVersion   = 1
	HeaderAlignment = 64   // tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // checksum offset in the fixed header
)

// Storage data types.
const (
	DTypeFloat16 = "float16"
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
)

// Flags for the .s2s format.
const (
	FlagHasMetadata      uint32 = 1 << 0 // bit 0: custom metadata included
	FlagHasConfig        uint32 = 1 << 1 // bit 1: model configuration included
	FlagReducedPrecision uint32 = 1 << 2 // bit 2: tensors stored below float64
)

// Header is the JSON header of a .s2s file.
type Header struct {
	FormatVersion int               `json:"format_version"`   // FormatVersion at write time
	WriterVersion string            `json:"writer_version"`   // version of the program that wrote the file
	ModelType     string            `json:"model_type"`       // e.g. "Transformer"
	SnapshotID    uuid.UUID         `json:"snapshot_id"`      // unique per write
	CreatedAt     time.Time         `json:"created_at"`       // UTC
	Config        json.RawMessage   `json:"config,omitempty"` // model configuration, opaque to this package
	Tensors       []TensorMeta      `json:"tensors"`          // in data section order
	Metadata      map[string]string `json:"metadata"`         // free-form key/value pairs
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "encoder.layers.0.ffn.linear1.weight"
	DType  string `json:"dtype"`  // storage type
	Shape  []int  `json:"shape"`  // tensor shape
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // size in bytes
}

// NumElements returns the element count of the tensor.
func (m TensorMeta) NumElements() int64 {
	n := int64(1)
	for _, d := range m.Shape {
		n *= int64(d)
	}
	return n
}

// DTypeSize returns the byte width of a storage type.
func DTypeSize(dtype string) (int, error) {
	switch dtype {
	case DTypeFloat16:
		return 2, nil
	case DTypeFloat32:
		return 4, nil
	case DTypeFloat64:
		return 8, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedDType, "%q", dtype)
	}
}

// TotalBytes returns the size of the data section described by the header.
func (h *Header) TotalBytes() int64 {
	var n int64
	for _, t := range h.Tensors {
		n += t.Size
	}
	return n
}

// alignedDataOffset returns where the data section starts for a JSON header
// of the given size.
func alignedDataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
