package tensor

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// dense wraps a rank-2 tensor as a gonum matrix sharing its storage.
func (t *Tensor) dense() *mat.Dense {
	return mat.NewDense(t.shape[0], t.shape[1], t.data)
}

func requireRank(t *Tensor, rank int, op string) error {
	if t.Rank() != rank {
		return errors.Wrapf(ErrShapeMismatch, "%s: expected rank %d, got shape %v", op, rank, t.shape)
	}
	return nil
}

// Add returns t + other. Both tensors must have identical shapes.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	if !t.shape.Equal(other.shape) {
		return nil, errors.Wrapf(ErrShapeMismatch, "add: %v vs %v", t.shape, other.shape)
	}
	out := newTensor(t.shape.Clone(), make([]float64, len(t.data)))
	floats.AddTo(out.data, t.data, other.data)
	return out, nil
}

// AddRowVector adds v to every row of t along the last axis.
// v must be rank 1 with length equal to t's trailing dimension.
func (t *Tensor) AddRowVector(v *Tensor) (*Tensor, error) {
	if v.Rank() != 1 || v.shape[0] != t.shape.Last() {
		return nil, errors.Wrapf(ErrShapeMismatch, "add row vector: %v to %v", v.shape, t.shape)
	}
	out := t.Clone()
	n := v.shape[0]
	for off := 0; off < len(out.data); off += n {
		floats.Add(out.data[off:off+n], v.data)
	}
	return out, nil
}

// Scale returns c * t.
func (t *Tensor) Scale(c float64) *Tensor {
	out := t.Clone()
	floats.Scale(c, out.data)
	return out
}

// Map returns a tensor with f applied to every element.
func (t *Tensor) Map(f func(float64) float64) *Tensor {
	out := newTensor(t.shape.Clone(), make([]float64, len(t.data)))
	for i, v := range t.data {
		out.data[i] = f(v)
	}
	return out
}

// MatMul computes a @ b for a [m, k] and b [k, n].
func MatMul(a, b *Tensor) (*Tensor, error) {
	if err := requireRank(a, 2, "matmul"); err != nil {
		return nil, err
	}
	if err := requireRank(b, 2, "matmul"); err != nil {
		return nil, err
	}
	if a.shape[1] != b.shape[0] {
		return nil, errors.Wrapf(ErrShapeMismatch, "matmul: %v @ %v", a.shape, b.shape)
	}
	out := Zeros(Shape{a.shape[0], b.shape[1]})
	out.dense().Mul(a.dense(), b.dense())
	return out, nil
}

// MatMulTransB computes a @ b^T for a [m, k] and b [n, k].
//
// This is the layout of Linear weights ([out, in]) and of attention scores
// (queries times keys).
func MatMulTransB(a, b *Tensor) (*Tensor, error) {
	if err := requireRank(a, 2, "matmul"); err != nil {
		return nil, err
	}
	if err := requireRank(b, 2, "matmul"); err != nil {
		return nil, err
	}
	if a.shape[1] != b.shape[1] {
		return nil, errors.Wrapf(ErrShapeMismatch, "matmul: %v @ %v^T", a.shape, b.shape)
	}
	out := Zeros(Shape{a.shape[0], b.shape[0]})
	out.dense().Mul(a.dense(), b.dense().T())
	return out, nil
}

// Softmax normalizes t along its last axis.
//
// Entries equal to -Inf receive weight exactly 0. A row with no finite entry
// (every position masked out) normalizes to all zeros instead of NaN.
func (t *Tensor) Softmax() *Tensor {
	out := t.Clone()
	n := t.shape.Last()
	for off := 0; off < len(out.data); off += n {
		softmaxRow(out.data[off : off+n])
	}
	return out
}

func softmaxRow(row []float64) {
	maxVal := floats.Max(row)
	if math.IsInf(maxVal, -1) {
		for i := range row {
			row[i] = 0
		}
		return
	}
	for i, v := range row {
		row[i] = math.Exp(v - maxVal)
	}
	floats.Scale(1/floats.Sum(row), row)
}

// ConcatLastDim concatenates tensors along the last axis. All leading
// dimensions must agree.
func ConcatLastDim(parts ...*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "concat: no tensors")
	}
	lead := parts[0].shape[:parts[0].Rank()-1]
	total := 0
	for _, p := range parts {
		if p.Rank() != len(lead)+1 || !p.shape[:p.Rank()-1].Equal(lead) {
			return nil, errors.Wrapf(ErrShapeMismatch, "concat: %v vs %v", parts[0].shape, p.shape)
		}
		total += p.shape.Last()
	}

	shape := append(lead.Clone(), total)
	out := Zeros(shape)
	rows := lead.NumElements()
	for r := 0; r < rows; r++ {
		dst := out.data[r*total:]
		col := 0
		for _, p := range parts {
			w := p.shape.Last()
			copy(dst[col:col+w], p.data[r*w:(r+1)*w])
			col += w
		}
	}
	return out, nil
}
