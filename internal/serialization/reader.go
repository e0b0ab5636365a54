package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Reader reads tensors from a .s2s file.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [ChecksumSize]byte
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// NewReader opens a .s2s file with strict validation and checksum checking.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{
		ValidationLevel: ValidationStrict,
	})
}

// NewReaderWithOptions opens a .s2s file with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}

	r := &Reader{file: file, opts: opts}
	if err := r.parse(); err != nil {
		_ = file.Close() // best effort close on error
		return nil, err
	}
	return r, nil
}

func (r *Reader) parse() error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return errors.Wrap(err, "failed to read fixed header")
	}
	header, flags, headerSize, dataSize, checksum, err := parseFixedHeader(fixed)
	if err != nil {
		return err
	}
	r.flags, r.checksum = flags, checksum

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return errors.Wrap(err, "failed to read header JSON")
	}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return errors.Wrap(err, "failed to parse header JSON")
	}
	r.header = header

	r.dataOffset = alignedDataOffset(headerSize)
	info, err := r.file.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to stat file")
	}
	if available := info.Size() - r.dataOffset; available < dataSize {
		return &ValidationError{
			Type:    "truncated",
			Details: fmt.Sprintf("data section is %d bytes, header says %d", available, dataSize),
		}
	}
	r.dataSize = dataSize

	if err := ValidateHeader(&r.header, r.dataSize, r.opts.ValidationLevel); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	if !r.opts.SkipChecksumValidation {
		computed, err := ComputeChecksumReader(io.NewSectionReader(r.file, r.dataOffset, r.dataSize))
		if err != nil {
			return errors.Wrap(err, "failed to read tensor data for checksum")
		}
		if err := ValidateChecksum(computed, r.checksum); err != nil {
			return err
		}
	}
	return nil
}

// parseFixedHeader decodes the first FixedHeaderSize bytes of a file.
func parseFixedHeader(fixed []byte) (Header, uint32, int64, int64, [ChecksumSize]byte, error) {
	var checksum [ChecksumSize]byte
	if string(fixed[0:4]) != MagicBytes {
		return Header{}, 0, 0, 0, checksum, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return Header{}, 0, 0, 0, checksum, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", v, FormatVersion)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	copy(checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return Header{}, 0, 0, 0, checksum, ErrHeaderTooLarge
	}
	if dataSize > 1<<62 {
		return Header{}, 0, 0, 0, checksum, &ValidationError{Type: "out_of_bounds", Details: "data size overflows"}
	}
	//nolint:gosec // G115: both sizes are bounded above
	return Header{}, flags, int64(headerSize), int64(dataSize), checksum, nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Flags returns the flag word of the fixed header.
func (r *Reader) Flags() uint32 {
	return r.flags
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in file order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the table entry of a tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			meta := r.header.Tensors[i]
			return &meta, nil
		}
	}
	return nil, errors.Wrapf(ErrTensorNotFound, "%s", name)
}

// ReadTensorData reads the stored bytes of a tensor.
func (r *Reader) ReadTensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, meta.Size)
	if _, err := r.file.ReadAt(data, r.dataOffset+meta.Offset); err != nil {
		return nil, errors.Wrapf(err, "failed to read tensor %s", name)
	}
	return data, nil
}

// LoadTensor reads one tensor, widened to float64.
func (r *Reader) LoadTensor(name string) (*tensor.Tensor, error) {
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}
	return decodeTensor(data, *meta)
}

// ReadStateDict reads every tensor into a state dictionary.
func (r *Reader) ReadStateDict() (map[string]*tensor.Tensor, error) {
	if r.closed {
		return nil, ErrClosed
	}
	stateDict := make(map[string]*tensor.Tensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.LoadTensor(meta.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load tensor %s", meta.Name)
		}
		stateDict[meta.Name] = t
	}
	return stateDict, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
