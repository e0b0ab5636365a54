package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestDropoutEvalIsIdentity(t *testing.T) {
	d, err := NewDropout(0.5, NewSource(1))
	require.NoError(t, err)
	assert.False(t, d.Training(), "new dropout starts in eval mode")

	x := randn(t, 2, 4, 8)
	assert.Same(t, x, d.Forward(x))
}

func TestDropoutTrainZeroesAndScales(t *testing.T) {
	const p = 0.25
	d, err := NewDropout(p, NewSource(1))
	require.NoError(t, err)
	d.SetTraining(true)

	x := tensor.Ones(tensor.Shape{64, 64})
	out := d.Forward(x)

	zeros := 0
	for _, v := range out.Data() {
		if v == 0 {
			zeros++
			continue
		}
		assert.InDelta(t, 1/(1-p), v, 1e-12)
	}
	frac := float64(zeros) / float64(out.NumElements())
	assert.InDelta(t, p, frac, 0.05)
	assert.Equal(t, 1.0, x.Data()[0], "input is not modified")
}

func TestDropoutFreshMaskPerCall(t *testing.T) {
	d, err := NewDropout(0.5, NewSource(9))
	require.NoError(t, err)
	d.SetTraining(true)

	x := tensor.Ones(tensor.Shape{16, 16})
	assert.False(t, d.Forward(x).Equal(d.Forward(x)))
}

func TestDropoutProbabilityRange(t *testing.T) {
	for _, p := range []float64{-0.1, 1, 1.5} {
		_, err := NewDropout(p, NewSource(1))
		assert.ErrorIs(t, err, ErrConfiguration, "p=%g", p)
	}

	d, err := NewDropout(0, NewSource(1))
	require.NoError(t, err)
	d.SetTraining(true)
	x := randn(t, 3, 2, 2)
	assert.Same(t, x, d.Forward(x), "p=0 is the identity even in training")
}
