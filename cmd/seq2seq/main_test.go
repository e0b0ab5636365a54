package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/nn"
)

func writeSmallConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	cfg := "d_model: 8\nnum_heads: 2\nnum_encoder_layers: 1\nnum_decoder_layers: 1\nd_ff: 16\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestInitInspectForward(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "m.s2s")

	err := newApp().Run(ctx, []string{"seq2seq", "init", "--config", writeSmallConfig(t), "--out", out, "--seed", "3", "--meta", "run=test"})
	require.NoError(t, err)

	ckpt, err := nn.ReadCheckpoint(out, nn.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, ckpt.Config.DModel)
	assert.Equal(t, uint64(3), ckpt.Config.Seed)
	assert.Equal(t, "test", ckpt.Header.Metadata["run"])

	require.NoError(t, newApp().Run(ctx, []string{"seq2seq", "inspect", "--tensors", out}))
	require.NoError(t, newApp().Run(ctx, []string{"seq2seq", "inspect", "--json", out}))
	require.NoError(t, newApp().Run(ctx, []string{"seq2seq", "forward", "--batch", "2", "--src-len", "5", "--tgt-len", "4", "--src-pad", "2", out}))
}

func TestForwardRejectsBadArgs(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "m.s2s")
	require.NoError(t, newApp().Run(ctx, []string{"seq2seq", "init", "--config", writeSmallConfig(t), "--out", out}))

	assert.Error(t, newApp().Run(ctx, []string{"seq2seq", "forward", "--batch", "0", out}))
	assert.Error(t, newApp().Run(ctx, []string{"seq2seq", "forward", "--src-len", "3", "--src-pad", "4", out}))
	assert.Error(t, newApp().Run(ctx, []string{"seq2seq", "forward"}))
	assert.Error(t, newApp().Run(ctx, []string{"seq2seq", "inspect", filepath.Join(t.TempDir(), "missing.s2s")}))
}
