package serialization

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// encodeTensor converts t to little-endian bytes of the given storage type.
// float32 and float16 round to nearest even.
func encodeTensor(t *tensor.Tensor, dtype string) ([]byte, error) {
	size, err := DTypeSize(dtype)
	if err != nil {
		return nil, err
	}
	values := t.Data()
	buf := make([]byte, len(values)*size)

	switch dtype {
	case DTypeFloat64:
		for i, v := range values {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
	case DTypeFloat32:
		for i, v := range values {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		}
	case DTypeFloat16:
		for i, v := range values {
			binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(float32(v)).Bits())
		}
	}
	return buf, nil
}

// decodeTensor widens stored bytes back into a float64 tensor.
func decodeTensor(data []byte, meta TensorMeta) (*tensor.Tensor, error) {
	size, err := DTypeSize(meta.DType)
	if err != nil {
		return nil, err
	}
	out, err := tensor.New(tensor.Shape(meta.Shape))
	if err != nil {
		return nil, err
	}
	values := out.Data()
	if len(data) != len(values)*size {
		return nil, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  meta.Name,
			Details: "stored bytes do not match shape and dtype",
		}
	}

	switch meta.DType {
	case DTypeFloat64:
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	case DTypeFloat32:
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case DTypeFloat16:
		for i := range values {
			values[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32())
		}
	}
	return out, nil
}
