package nn

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Source is the random source shared by weight initialisers and dropout
// sites of one model. It is safe for concurrent use, so attention heads
// running in parallel may draw dropout masks from it.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a Source. Seed 0 draws a seed from the global generator.
func NewSource(seed uint64) *Source {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Source{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Float64 returns a uniform value in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// bernoulliKeep fills keep with independent draws that are true with
// probability 1-p, holding the lock once for the whole slice.
func (s *Source) bernoulliKeep(keep []bool, p float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range keep {
		keep[i] = s.rng.Float64() >= p
	}
}

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier(fanIn, fanOut int, shape tensor.Shape, src *Source) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	src.mu.Lock()
	defer src.mu.Unlock()
	return tensor.Uniform(shape, -bound, bound, src.rng)
}
