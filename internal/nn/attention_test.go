package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/tensor"
)

func newTestHead(t *testing.T, dModel, headDim int) *AttentionHead {
	t.Helper()
	head, err := NewAttentionHead(dModel, headDim, 0.1, NewSource(1))
	require.NoError(t, err)
	return head
}

func TestAttentionHeadKnownValues(t *testing.T) {
	head := newTestHead(t, 2, 2)
	identityLinear(head.Query)
	identityLinear(head.Key)
	identityLinear(head.Value)

	x := fromSlice(t, []float64{1, 0, 0, 1}, 1, 2, 2)
	out, weights, err := head.ForwardWithWeights(x, x, x, AttentionMask{})
	require.NoError(t, err)

	// scores = I / sqrt(2); each query prefers itself
	a := math.Exp(1 / math.Sqrt2)
	w := a / (a + 1)
	assert.InDeltaSlice(t, []float64{w, 1 - w, 1 - w, w}, weights.Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{w, 1 - w, 1 - w, w}, out.Data(), 1e-12)
}

func TestAttentionWeightsSumToOne(t *testing.T) {
	head := newTestHead(t, 16, 4)
	q := randn(t, 1, 2, 3, 16)
	kv := randn(t, 2, 2, 5, 16)

	out, weights, err := head.ForwardWithWeights(q, kv, kv, AttentionMask{})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 4}, out.Shape())
	require.Equal(t, tensor.Shape{2, 3, 5}, weights.Shape())

	data := weights.Data()
	for off := 0; off < len(data); off += 5 {
		sum := 0.0
		for _, v := range data[off : off+5] {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}
}

func TestAttentionCausalWeightsAreZero(t *testing.T) {
	head := newTestHead(t, 16, 4)
	x := randn(t, 3, 2, 6, 16)

	_, weights, err := head.ForwardWithWeights(x, x, x, AttentionMask{Causal: true})
	require.NoError(t, err)

	causal := CausalMask(6)
	for b := 0; b < 2; b++ {
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				if causal.At(i, j) == 0 {
					assert.Zero(t, weights.At(b, i, j), "b=%d i=%d j=%d", b, i, j)
				} else {
					assert.Positive(t, weights.At(b, i, j), "b=%d i=%d j=%d", b, i, j)
				}
			}
		}
	}
}

func TestAttentionPaddedKeysGetZeroWeight(t *testing.T) {
	head := newTestHead(t, 16, 4)
	q := randn(t, 4, 2, 3, 16)
	kv := randn(t, 5, 2, 5, 16)
	padding, err := PaddingMask([]int{5, 2}, 5)
	require.NoError(t, err)

	_, weights, err := head.ForwardWithWeights(q, kv, kv, AttentionMask{Padding: padding})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		for j := 2; j < 5; j++ {
			assert.Zero(t, weights.At(1, i, j), "query %d key %d", i, j)
		}
		assert.InDelta(t, 1, weights.At(1, i, 0)+weights.At(1, i, 1), 1e-12)
	}
}

func TestAttentionFullyMaskedRowIsZero(t *testing.T) {
	head := newTestHead(t, 8, 4)
	x := randn(t, 6, 1, 3, 8)

	// query 1 may see nothing
	perQuery := fromSlice(t, []float64{
		1, 1, 1,
		0, 0, 0,
		1, 0, 1,
	}, 1, 3, 3)

	out, weights, err := head.ForwardWithWeights(x, x, x, AttentionMask{Padding: perQuery})
	require.NoError(t, err)
	assert.False(t, out.HasNaN())
	assert.False(t, weights.HasNaN())

	for j := 0; j < 3; j++ {
		assert.Zero(t, weights.At(0, 1, j))
	}
	for d := 0; d < 4; d++ {
		assert.Zero(t, out.At(0, 1, d))
	}
	assert.Zero(t, weights.At(0, 2, 1))
}

func TestAttentionDropoutOnWeights(t *testing.T) {
	head, err := NewAttentionHead(8, 8, 0.5, NewSource(3))
	require.NoError(t, err)
	x := randn(t, 7, 1, 4, 8)

	_, evalWeights, err := head.ForwardWithWeights(x, x, x, AttentionMask{})
	require.NoError(t, err)

	head.SetTraining(true)
	_, trainWeights, err := head.ForwardWithWeights(x, x, x, AttentionMask{})
	require.NoError(t, err)

	dropped := 0
	for i, v := range trainWeights.Data() {
		if v == 0 {
			dropped++
			continue
		}
		assert.InDelta(t, 2*evalWeights.Data()[i], v, 1e-12)
	}
	assert.Positive(t, dropped)
}

func TestAttentionInputErrors(t *testing.T) {
	head := newTestHead(t, 8, 4)
	x := randn(t, 1, 2, 3, 8)

	tests := []struct {
		name    string
		q, k, v *tensor.Tensor
		mask    AttentionMask
	}{
		{"feature size", randn(t, 2, 2, 3, 6), x, x, AttentionMask{}},
		{"rank", randn(t, 3, 3, 8), x, x, AttentionMask{}},
		{"batch", x, randn(t, 4, 1, 3, 8), randn(t, 5, 1, 3, 8), AttentionMask{}},
		{"key/value length", x, x, randn(t, 6, 2, 4, 8), AttentionMask{}},
		{"mask", x, x, x, AttentionMask{Padding: tensor.Ones(tensor.Shape{2, 7})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := head.Forward(tt.q, tt.k, tt.v, tt.mask)
			assert.ErrorIs(t, err, ErrShapeMismatch)
		})
	}
}

func TestAttentionHeadStateDict(t *testing.T) {
	head := newTestHead(t, 8, 2)
	assert.ElementsMatch(t, []string{
		"query.weight", "query.bias",
		"key.weight", "key.bias",
		"value.weight", "value.bias",
	}, keys(head.StateDict()))
	assert.Equal(t, tensor.Shape{2, 8}, head.StateDict()["query.weight"].Shape())
}
