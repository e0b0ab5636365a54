package tensor

import (
	"math/rand/v2"
)

// Zeros creates a tensor filled with zeros.
// It panics on an invalid shape; use New to get an error instead.
//
// Example:
//
//	t := tensor.Zeros(Shape{3, 4})
func Zeros(shape Shape) *Tensor {
	t, err := New(shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return Full(shape, 1)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full(Shape{3, 3}, 3.14)
func Full(shape Shape, value float64) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1).
// A nil rng uses the global math/rand/v2 source.
//
// Example:
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	x := tensor.Randn(Shape{2, 5, 16}, rng)
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		if rng != nil {
			t.data[i] = rng.NormFloat64()
		} else {
			t.data[i] = rand.NormFloat64()
		}
	}
	return t
}

// Uniform creates a tensor with values drawn uniformly from [low, high).
// A nil rng uses the global math/rand/v2 source.
func Uniform(shape Shape, low, high float64, rng *rand.Rand) *Tensor {
	t := Zeros(shape)
	span := high - low
	for i := range t.data {
		var u float64
		if rng != nil {
			u = rng.Float64()
		} else {
			u = rand.Float64()
		}
		t.data[i] = low + u*span
	}
	return t
}
