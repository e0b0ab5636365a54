package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/parallel"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestMultiHeadAttentionShapes(t *testing.T) {
	mha, err := NewMultiHeadAttention(16, 4, 0.1, NewSource(1))
	require.NoError(t, err)
	assert.Equal(t, 4, mha.HeadDim)

	q := randn(t, 1, 2, 4, 16)
	kv := randn(t, 2, 2, 5, 16)

	out, weights, err := mha.ForwardWithWeights(q, kv, kv, AttentionMask{})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4, 16}, out.Shape())
	assert.Equal(t, tensor.Shape{2, 4, 4, 5}, weights.Shape())
}

func TestMultiHeadAttentionConfiguration(t *testing.T) {
	tests := []struct {
		name            string
		dModel, numHead int
	}{
		{"not divisible", 10, 3},
		{"zero heads", 16, 0},
		{"zero width", 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMultiHeadAttention(tt.dModel, tt.numHead, 0, NewSource(1))
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestMultiHeadAttentionConcatenatesHeadsInOrder(t *testing.T) {
	mha, err := NewMultiHeadAttention(8, 2, 0, NewSource(2))
	require.NoError(t, err)
	identityLinear(mha.Output)

	x := randn(t, 3, 1, 3, 8)
	out, err := mha.Forward(x, x, x, AttentionMask{})
	require.NoError(t, err)

	h0, err := mha.Heads[0].Forward(x, x, x, AttentionMask{})
	require.NoError(t, err)
	h1, err := mha.Heads[1].Forward(x, x, x, AttentionMask{})
	require.NoError(t, err)
	want, err := tensor.ConcatLastDim(h0, h1)
	require.NoError(t, err)

	assert.True(t, want.AllClose(out, 1e-12))
}

func TestMultiHeadAttentionParallelMatchesSequential(t *testing.T) {
	mha, err := NewMultiHeadAttention(16, 4, 0, NewSource(4))
	require.NoError(t, err)
	x := randn(t, 5, 2, 6, 16)
	mask := AttentionMask{Causal: true}

	mha.parallel = parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	concurrent, err := mha.Forward(x, x, x, mask)
	require.NoError(t, err)

	mha.parallel = parallel.Config{}
	sequential, err := mha.Forward(x, x, x, mask)
	require.NoError(t, err)

	assert.True(t, concurrent.Equal(sequential))
}

func TestMultiHeadAttentionHeadErrorIsWrapped(t *testing.T) {
	mha, err := NewMultiHeadAttention(8, 2, 0, NewSource(1))
	require.NoError(t, err)

	x := randn(t, 1, 1, 3, 8)
	_, err = mha.Forward(x, x, x, AttentionMask{Padding: tensor.Ones(tensor.Shape{1, 4})})
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "head 0")
}

func TestMultiHeadAttentionRejectsMismatchedHeadWidth(t *testing.T) {
	mha, err := NewMultiHeadAttention(8, 2, 0, NewSource(1))
	require.NoError(t, err)
	mha.Heads[1], err = NewAttentionHead(8, 2, 0, NewSource(2))
	require.NoError(t, err)

	x := randn(t, 1, 1, 3, 8)
	assert.NotPanics(t, func() {
		_, err = mha.Forward(x, x, x, AttentionMask{})
	})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMultiHeadAttentionStateDict(t *testing.T) {
	mha, err := NewMultiHeadAttention(8, 2, 0, NewSource(1))
	require.NoError(t, err)

	sd := mha.StateDict()
	assert.Len(t, sd, 2*6+2)
	assert.Contains(t, sd, "heads.1.value.weight")
	assert.Contains(t, sd, "output.bias")
	assert.Equal(t, len(sd), len(mha.Parameters()))
	assert.Equal(t, 2*3*(8*4+4)+8*8+8, NumParameters(mha))
}
