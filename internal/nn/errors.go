package nn

import (
	"github.com/pkg/errors"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Error taxonomy. Callers match with errors.Is; returned errors carry
// context about which component and which dimension failed.
var (
	// ErrShapeMismatch reports a tensor argument that violates a component's
	// shape contract (feature size, batch or length alignment, mask shape).
	ErrShapeMismatch = tensor.ErrShapeMismatch

	// ErrConfiguration reports invalid construction parameters. It is
	// returned before any forward pass is possible.
	ErrConfiguration = errors.New("invalid configuration")
)
