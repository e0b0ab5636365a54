package tensor

import "github.com/pkg/errors"

// ErrShapeMismatch is returned (wrapped) whenever a tensor argument violates
// the shape contract of an operation.
var ErrShapeMismatch = errors.New("shape mismatch")
