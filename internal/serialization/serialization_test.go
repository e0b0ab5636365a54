package serialization

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/tensor"
)

func sampleStateDict(t *testing.T) map[string]*tensor.Tensor {
	t.Helper()
	w, err := tensor.FromSlice([]float64{0.1, -0.2, 0.3, math.Pi, 1e-3, -7.25}, tensor.Shape{2, 3})
	require.NoError(t, err)
	b, err := tensor.FromSlice([]float64{1.5, -2.5}, tensor.Shape{2})
	require.NoError(t, err)
	return map[string]*tensor.Tensor{
		"layer.weight": w,
		"layer.bias":   b,
	}
}

func writeFile(t *testing.T, sd map[string]*tensor.Tensor, opts WriteOptions) (string, Header) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.s2s")
	w, err := NewWriter(path)
	require.NoError(t, err)
	h, err := w.WriteStateDict(sd, opts)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path, h
}

func TestWriteReadFloat64IsBitExact(t *testing.T) {
	sd := sampleStateDict(t)
	path, written := writeFile(t, sd, WriteOptions{
		ModelType: "Transformer",
		Config:    json.RawMessage(`{"d_model":16}`),
		Metadata:  map[string]string{"note": "test"},
	})

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	h := r.Header()
	assert.Equal(t, FormatVersion, h.FormatVersion)
	assert.Equal(t, "Transformer", h.ModelType)
	assert.Equal(t, written.SnapshotID, h.SnapshotID)
	assert.JSONEq(t, `{"d_model":16}`, string(h.Config))
	assert.Equal(t, "test", r.Metadata()["note"])
	assert.Equal(t, []string{"layer.bias", "layer.weight"}, r.TensorNames(), "tensors are stored in name order")
	assert.Equal(t, FlagHasMetadata|FlagHasConfig, r.Flags())

	loaded, err := r.ReadStateDict()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for name, want := range sd {
		assert.True(t, want.Equal(loaded[name]), name)
	}
}

func TestDataSectionIsAligned(t *testing.T) {
	path, h := writeFile(t, sampleStateDict(t), WriteOptions{})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, (info.Size()-h.TotalBytes())%HeaderAlignment)
}

func TestReducedPrecisionRoundTrip(t *testing.T) {
	sd := sampleStateDict(t)

	for _, tt := range []struct {
		dtype string
		tol   float64
	}{
		{DTypeFloat32, 1e-6},
		{DTypeFloat16, 1e-2},
	} {
		t.Run(tt.dtype, func(t *testing.T) {
			path, h := writeFile(t, sd, WriteOptions{DType: tt.dtype})
			for _, meta := range h.Tensors {
				assert.Equal(t, tt.dtype, meta.DType)
			}

			r, err := NewReader(path)
			require.NoError(t, err)
			defer r.Close()
			assert.NotZero(t, r.Flags()&FlagReducedPrecision)

			loaded, err := r.ReadStateDict()
			require.NoError(t, err)
			for name, want := range sd {
				got := loaded[name]
				require.True(t, want.Shape().Equal(got.Shape()))
				for i, v := range want.Data() {
					assert.InDelta(t, v, got.Data()[i], tt.tol*math.Max(1, math.Abs(v)), "%s[%d]", name, i)
				}
			}
		})
	}
}

func TestUnsupportedDType(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, sampleStateDict(t), WriteOptions{DType: "int8"})
	assert.ErrorIs(t, err, ErrUnsupportedDType)
}

func TestEncodeMatchesWriter(t *testing.T) {
	sd := sampleStateDict(t)
	var buf bytes.Buffer
	written, err := Encode(&buf, sd, WriteOptions{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "stream.s2s")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	loaded, err := r.ReadStateDict()
	require.NoError(t, err)
	assert.Equal(t, written.SnapshotID, r.Header().SnapshotID)
	assert.True(t, sd["layer.weight"].Equal(loaded["layer.weight"]))
}

func TestFailedWriteLeavesTargetUntouched(t *testing.T) {
	path, _ := writeFile(t, sampleStateDict(t), WriteOptions{})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	w, err := NewWriter(path)
	require.NoError(t, err)
	_, err = w.WriteStateDict(sampleStateDict(t), WriteOptions{DType: "int8"})
	require.ErrorIs(t, err, ErrUnsupportedDType)
	require.NoError(t, w.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file removed")
}

func TestWriterOnlyCreatesFileOnSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.s2s")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCorruptedDataFailsChecksum(t *testing.T) {
	path, _ := writeFile(t, sampleStateDict(t), WriteOptions{})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = NewReader(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	r, err := NewReaderWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err, "checksum can be skipped explicitly")
	require.NoError(t, r.Close())
}

func TestInvalidMagicAndVersion(t *testing.T) {
	path, _ := writeFile(t, sampleStateDict(t), WriteOptions{})
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	badMagic := bytes.Clone(raw)
	copy(badMagic, "XXXX")
	require.NoError(t, os.WriteFile(path, badMagic, 0o600))
	_, err = NewReader(path)
	assert.ErrorIs(t, err, ErrInvalidMagic)

	badVersion := bytes.Clone(raw)
	badVersion[4] = 99
	require.NoError(t, os.WriteFile(path, badVersion, 0o600))
	_, err = NewReader(path)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestReaderTensorLookup(t *testing.T) {
	path, _ := writeFile(t, sampleStateDict(t), WriteOptions{})
	r, err := NewReader(path)
	require.NoError(t, err)

	bias, err := r.LoadTensor("layer.bias")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2.5}, bias.Data())

	_, err = r.LoadTensor("missing")
	assert.ErrorIs(t, err, ErrTensorNotFound)

	require.NoError(t, r.Close())
	_, err = r.ReadStateDict()
	assert.ErrorIs(t, err, ErrClosed)
}
