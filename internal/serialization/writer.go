package serialization

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/version"
)

// WriteOptions controls how a state dictionary is written.
type WriteOptions struct {
	DType     string            // storage type, default DTypeFloat64
	ModelType string            // recorded in the header
	Config    json.RawMessage   // model configuration, stored verbatim
	Metadata  map[string]string // free-form key/value pairs
}

// Writer writes a .s2s file.
//
// Data goes to a temporary file next to path. Close renames it over path
// only if WriteStateDict succeeded, so a failed write never clobbers an
// existing snapshot.
type Writer struct {
	path    string
	file    *os.File
	written bool
	closed  bool
}

// NewWriter prepares a write to path. The file at path is not touched
// until Close.
func NewWriter(path string) (*Writer, error) {
	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file")
	}
	if err := file.Chmod(0o644); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return nil, errors.Wrap(err, "failed to set file mode")
	}
	return &Writer{path: path, file: file}, nil
}

// WriteStateDict writes the whole file and returns the header that was stored.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.Tensor, opts WriteOptions) (Header, error) {
	if w.closed {
		return Header{}, ErrClosed
	}
	bw := bufio.NewWriter(w.file)
	header, err := Encode(bw, stateDict, opts)
	if err != nil {
		return Header{}, err
	}
	if err := bw.Flush(); err != nil {
		return Header{}, errors.Wrap(err, "failed to flush")
	}
	if err := w.file.Sync(); err != nil {
		return Header{}, errors.Wrap(err, "failed to sync")
	}
	w.written = true
	return header, nil
}

// Close moves a completely written file into place, or discards it.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	tmp := w.file.Name()
	if err := w.file.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to close file")
	}
	if !w.written {
		return os.Remove(tmp)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to move file into place")
	}
	return nil
}

// Encode writes a state dictionary to dst in .s2s format. Tensors are laid
// out in name order so equal state dictionaries produce equal data sections.
func Encode(dst io.Writer, stateDict map[string]*tensor.Tensor, opts WriteOptions) (Header, error) {
	dtype := opts.DType
	if dtype == "" {
		dtype = DTypeFloat64
	}
	if _, err := DTypeSize(dtype); err != nil {
		return Header{}, err
	}

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return Header{}, err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersion,
		WriterVersion: version.String(),
		ModelType:     opts.ModelType,
		SnapshotID:    uuid.New(),
		CreatedAt:     time.Now().UTC(),
		Config:        opts.Config,
		Tensors:       make([]TensorMeta, 0, len(names)),
		Metadata:      opts.Metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// 1. Encode tensor data and build the tensor table
	var data []byte
	for _, name := range names {
		t := stateDict[name]
		encoded, err := encodeTensor(t, dtype)
		if err != nil {
			return Header{}, errors.Wrapf(err, "tensor %s", name)
		}
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtype,
			Shape:  []int(t.Shape().Clone()),
			Offset: int64(len(data)),
			Size:   int64(len(encoded)),
		})
		data = append(data, encoded...)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return Header{}, errors.Wrap(err, "failed to marshal header")
	}
	if len(headerJSON) > MaxHeaderSize {
		return Header{}, ErrHeaderTooLarge
	}

	// 2. Fixed header
	var flags uint32
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if len(header.Config) > 0 {
		flags |= FlagHasConfig
	}
	if dtype != DTypeFloat64 {
		flags |= FlagReducedPrecision
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C-0x0F reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	checksum := ComputeChecksum(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	// 3. Fixed header, JSON header, padding, data
	padding := alignedDataOffset(int64(len(headerJSON))) - int64(FixedHeaderSize+len(headerJSON))
	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, padding), data} {
		if _, err := dst.Write(chunk); err != nil {
			return Header{}, errors.Wrap(err, "failed to write")
		}
	}

	return header, nil
}
