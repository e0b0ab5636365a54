// Package tensor provides the dense float64 tensor used by the seq2seq model.
//
// Tensors are row-major and contiguous. Two-dimensional views are handed to
// gonum for matrix products without copying.
package tensor

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Tensor is a dense, row-major, contiguous float64 array.
//
// Operations return new tensors; the exceptions are Reshape and Index,
// which return views sharing the receiver's storage.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{2, 5, 16})
//	row := t.Index(0) // [5, 16] view of batch item 0
type Tensor struct {
	shape   Shape
	strides []int
	data    []float64
}

func newTensor(shape Shape, data []float64) *Tensor {
	return &Tensor{
		shape:   shape,
		strides: shape.ComputeStrides(),
		data:    data,
	}
}

// New allocates a zero-filled tensor. It fails if any dimension is not positive.
func New(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return newTensor(shape.Clone(), make([]float64, shape.NumElements())), nil
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, errors.Wrapf(ErrShapeMismatch, "shape %v requires %d elements, but got %d",
			shape, shape.NumElements(), len(data))
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return newTensor(shape.Clone(), buf), nil
}

// Shape returns the tensor's shape. The result must not be modified.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of dimension i. Negative i counts from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the underlying storage. Writes are visible to every view.
func (t *Tensor) Data() []float64 {
	return t.data
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index %v has rank %d, tensor has rank %d", idx, len(idx), len(t.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
		off += v * t.strides[i]
	}
	return off
}

// At returns the element at the given index.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set stores v at the given index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	buf := make([]float64, len(t.data))
	copy(buf, t.data)
	return newTensor(t.shape.Clone(), buf)
}

// Reshape returns a view with a new shape and the same number of elements.
func (t *Tensor) Reshape(dims ...int) (*Tensor, error) {
	shape := Shape(dims).Clone()
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(t.data) {
		return nil, errors.Wrapf(ErrShapeMismatch, "cannot reshape %v into %v", t.shape, shape)
	}
	return newTensor(shape, t.data), nil
}

// Index returns a view of sub-tensor i along the leading axis.
//
// For a [batch, seq, feature] tensor, Index(b) is the [seq, feature] matrix
// of batch item b.
func (t *Tensor) Index(i int) *Tensor {
	if len(t.shape) < 2 {
		panic(fmt.Sprintf("tensor: Index needs rank >= 2, got shape %v", t.shape))
	}
	if i < 0 || i >= t.shape[0] {
		panic(fmt.Sprintf("tensor: Index %d out of range for shape %v", i, t.shape))
	}
	stride := t.strides[0]
	return newTensor(t.shape[1:].Clone(), t.data[i*stride:(i+1)*stride:(i+1)*stride])
}

// Equal reports whether both tensors have the same shape and bit-identical elements.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if math.Float64bits(v) != math.Float64bits(other.data[i]) {
			return false
		}
	}
	return true
}

// AllClose reports whether both tensors have the same shape and all elements
// differ by at most tol.
func (t *Tensor) AllClose(other *Tensor, tol float64) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if math.Abs(v-other.data[i]) > tol {
			return false
		}
	}
	return true
}

// HasNaN reports whether any element is NaN or infinite.
func (t *Tensor) HasNaN() bool {
	for _, v := range t.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer with a short summary.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
