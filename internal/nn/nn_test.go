package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// testConfig is a small model: batch tests run in milliseconds.
func testConfig() Config {
	return Config{
		DModel:           16,
		NumHeads:         4,
		NumEncoderLayers: 2,
		NumDecoderLayers: 2,
		FFNDim:           32,
		Dropout:          0.1,
		Seed:             7,
	}
}

func randn(t *testing.T, seed uint64, dims ...int) *tensor.Tensor {
	t.Helper()
	return tensor.Randn(tensor.Shape(dims), rand.New(rand.NewPCG(seed, seed+1)))
}

func fromSlice(t *testing.T, data []float64, dims ...int) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(dims))
	require.NoError(t, err)
	return x
}

// zeroLinear makes l compute the zero function.
func zeroLinear(l *Linear) {
	for _, p := range l.Parameters() {
		clear(p.Tensor().Data())
	}
}

// identityLinear makes a square l compute y = x.
func identityLinear(l *Linear) {
	zeroLinear(l)
	w := l.Weight().Tensor()
	for i := 0; i < l.InFeatures(); i++ {
		w.Set(1, i, i)
	}
}

func TestParameter(t *testing.T) {
	x := tensor.Ones(tensor.Shape{2, 3})
	p := NewParameter("weight", x)

	assert.Equal(t, "weight", p.Name())
	assert.Same(t, x, p.Tensor())
}

func TestLinearForward(t *testing.T) {
	layer, err := NewLinear(3, 2, NewSource(1))
	require.NoError(t, err)

	copy(layer.Weight().Tensor().Data(), []float64{
		1, 0, -1,
		2, 1, 0,
	})
	copy(layer.Bias().Tensor().Data(), []float64{0.5, -1})

	x := fromSlice(t, []float64{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	out, err := layer.Forward(x)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{1, 2, 2}, out.Shape())
	assert.Equal(t, []float64{-1.5, 3, -1.5, 12}, out.Data())
}

func TestLinearErrors(t *testing.T) {
	_, err := NewLinear(0, 4, NewSource(1))
	assert.ErrorIs(t, err, ErrConfiguration)

	layer, err := NewLinear(4, 2, NewSource(1))
	require.NoError(t, err)

	_, err = layer.Forward(tensor.Ones(tensor.Shape{2, 3}))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = layer.Forward(tensor.Ones(tensor.Shape{4}))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLinearInitialization(t *testing.T) {
	layer, err := NewLinear(64, 32, NewSource(3))
	require.NoError(t, err)

	bound := math.Sqrt(6.0 / float64(64+32))
	for _, w := range layer.Weight().Tensor().Data() {
		assert.LessOrEqual(t, math.Abs(w), bound)
	}
	for _, b := range layer.Bias().Tensor().Data() {
		assert.Zero(t, b)
	}
	assert.Len(t, layer.Parameters(), 2)
	assert.Equal(t, 64*32+32, NumParameters(layer))
}

func TestSourceIsReproducible(t *testing.T) {
	a, b := NewSource(11), NewSource(11)
	for range 8 {
		assert.Equal(t, a.Float64(), b.Float64())
	}

	la, err := NewLinear(8, 8, NewSource(5))
	require.NoError(t, err)
	lb, err := NewLinear(8, 8, NewSource(5))
	require.NoError(t, err)
	assert.True(t, la.Weight().Tensor().Equal(lb.Weight().Tensor()))
}

func TestReLU(t *testing.T) {
	x := fromSlice(t, []float64{-2, -0.5, 0, 0.5, 2}, 5)
	out := NewReLU().Forward(x)

	assert.Equal(t, []float64{0, 0, 0, 0.5, 2}, out.Data())
	assert.Equal(t, -2.0, x.Data()[0], "input is not modified")
}
