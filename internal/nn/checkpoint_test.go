package nn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/serialization"
)

func TestSaveLoadRoundTripIsBitExact(t *testing.T) {
	cfg := testConfig()
	model := newTestTransformer(t, cfg)
	path := filepath.Join(t.TempDir(), "model.s2s")

	saved, err := Save(model, path, SaveOptions{Metadata: map[string]string{"run": "a"}})
	require.NoError(t, err)
	assert.Equal(t, ModelType, saved.Header.ModelType)
	assert.Len(t, saved.Header.Tensors, len(model.StateDict()))

	cfg.Seed = 1234
	restored := newTestTransformer(t, cfg)
	loaded, err := Load(path, restored, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, saved.Header.SnapshotID, loaded.Header.SnapshotID)
	assert.Equal(t, "a", loaded.Header.Metadata["run"])

	src := randn(t, 1, 2, 5, 16)
	tgt := randn(t, 2, 2, 4, 16)
	want, err := model.Forward(src, tgt, nil, nil)
	require.NoError(t, err)
	got, err := restored.Forward(src, tgt, nil, nil)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestFailedSaveKeepsExistingSnapshot(t *testing.T) {
	model := newTestTransformer(t, testConfig())
	dir := t.TempDir()
	path := filepath.Join(dir, "model.s2s")
	_, err := Save(model, path, SaveOptions{})
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Save(model, path, SaveOptions{DType: "bfloat16"})
	require.ErrorIs(t, err, serialization.ErrUnsupportedDType)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, _, err = LoadModel(path, LoadOptions{})
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestLoadModelRestoresConfig(t *testing.T) {
	model := newTestTransformer(t, testConfig())
	path := filepath.Join(t.TempDir(), "model.s2s")
	_, err := Save(model, path, SaveOptions{})
	require.NoError(t, err)

	restored, ckpt, err := LoadModel(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.Config(), restored.Config())
	assert.Equal(t, model.Config(), ckpt.Config)
	assert.False(t, restored.Training())

	info, err := ReadCheckpoint(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, ckpt.Header.SnapshotID, info.Header.SnapshotID)

	src := randn(t, 1, 1, 3, 16)
	tgt := randn(t, 2, 1, 3, 16)
	want, err := model.Forward(src, tgt, nil, nil)
	require.NoError(t, err)
	got, err := restored.Forward(src, tgt, nil, nil)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestSaveFloat16WithinTolerance(t *testing.T) {
	model := newTestTransformer(t, testConfig())
	path := filepath.Join(t.TempDir(), "model-f16.s2s")

	_, err := Save(model, path, SaveOptions{DType: serialization.DTypeFloat16})
	require.NoError(t, err)
	restored, _, err := LoadModel(path, LoadOptions{})
	require.NoError(t, err)

	for name, want := range model.StateDict() {
		assert.True(t, want.AllClose(restored.StateDict()[name], 1e-3), name)
	}

	src := randn(t, 1, 1, 3, 16)
	tgt := randn(t, 2, 1, 3, 16)
	want, err := model.Forward(src, tgt, nil, nil)
	require.NoError(t, err)
	got, err := restored.Forward(src, tgt, nil, nil)
	require.NoError(t, err)
	assert.True(t, want.AllClose(got, 5e-2))
}

func TestLoadRejectsDifferentArchitecture(t *testing.T) {
	model := newTestTransformer(t, testConfig())
	path := filepath.Join(t.TempDir(), "model.s2s")
	_, err := Save(model, path, SaveOptions{})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.FFNDim = 64
	other := newTestTransformer(t, cfg)
	before := other.StateDict()["encoder.layers.0.ffn.linear1.weight"].Clone()

	_, err = Load(path, other, LoadOptions{})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.True(t, before.Equal(other.StateDict()["encoder.layers.0.ffn.linear1.weight"]))
}

func TestLoadCorruptedFile(t *testing.T) {
	model := newTestTransformer(t, testConfig())
	path := filepath.Join(t.TempDir(), "model.s2s")
	_, err := Save(model, path, SaveOptions{})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-3] ^= 0x40
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, _, err = LoadModel(path, LoadOptions{})
	assert.ErrorIs(t, err, serialization.ErrChecksumMismatch)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := LoadModel(filepath.Join(t.TempDir(), "absent.s2s"), LoadOptions{})
	assert.Error(t, err)
}
