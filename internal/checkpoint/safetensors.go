// Package checkpoint loads model parameters from safetensors files and the
// accompanying params.json record. It is the checkpoint collaborator of
// the inference core: the core only ever sees the model.Weights it builds.
package checkpoint

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/samcharles93/strand/internal/tensor"
)

// TensorInfo describes one entry of the safetensors header.
type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

// File is an opened safetensors file. Data is the raw payload region,
// mmapped where the platform supports it.
type File struct {
	Path    string
	Tensors map[string]TensorInfo

	data    []byte // payload region, view into mapping
	mapping []byte // full file contents
	mmapped bool
}

var errFileTooLarge = fmt.Errorf("file too large to map")

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Open maps a safetensors file read-only and parses its header.
// The returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	data, mmapped, err := openData(path)
	if err != nil {
		return nil, err
	}
	f, err := parseFileData(path, data, mmapped)
	if err != nil {
		closeData(data, mmapped)
		return nil, err
	}
	return f, nil
}

func parseFileData(path string, data []byte, mmapped bool) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%s: truncated safetensors header", path)
	}
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("%s: header length %d exceeds file size", path, headerLen)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &raw); err != nil {
		return nil, fmt.Errorf("%s: parse header: %w", path, err)
	}
	delete(raw, "__metadata__")

	payload := data[8+headerLen:]
	tensors := make(map[string]TensorInfo, len(raw))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("parse tensor %s: %w", name, err)
		}
		if len(th.DataOffsets) != 2 || th.DataOffsets[0] < 0 || th.DataOffsets[1] < th.DataOffsets[0] {
			return nil, fmt.Errorf("tensor %s: invalid data_offsets", name)
		}
		if th.DataOffsets[1] > int64(len(payload)) {
			return nil, fmt.Errorf("tensor %s: data_offsets beyond file", name)
		}
		tensors[name] = TensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: th.DataOffsets[0],
			End:   th.DataOffsets[1],
		}
	}
	return &File{
		Path:    path,
		Tensors: tensors,
		data:    payload,
		mapping: data,
		mmapped: mmapped,
	}, nil
}

// Close releases the underlying mapping, if any.
func (f *File) Close() error {
	if f == nil || f.mapping == nil {
		return nil
	}
	mapping := f.mapping
	f.mapping = nil
	f.data = nil
	return closeData(mapping, f.mmapped)
}

// Tensor returns the header entry for name.
func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// ReadTensorRaw returns the raw bytes of the named tensor. The slice
// aliases the mapped file; callers must not mutate it.
func (f *File) ReadTensorRaw(name string) ([]byte, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("tensor not found: %s", name)
	}
	return f.data[t.Start:t.End], t, nil
}

func dtypeOf(s string) (tensor.DType, error) {
	switch s {
	case "F32":
		return tensor.DTypeF32, nil
	case "F16":
		return tensor.DTypeF16, nil
	case "BF16":
		return tensor.DTypeBF16, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", s)
	}
}

// ReadMat loads a 2-D tensor. f16/bf16 payloads stay raw-backed so the
// model can decode rows lazily; f32 is decoded eagerly.
func (f *File) ReadMat(name string) (tensor.Mat, error) {
	raw, info, err := f.ReadTensorRaw(name)
	if err != nil {
		return tensor.Mat{}, err
	}
	if len(info.Shape) != 2 {
		return tensor.Mat{}, fmt.Errorf("tensor %s: want 2 dims, got %v", name, info.Shape)
	}
	dt, err := dtypeOf(info.DType)
	if err != nil {
		return tensor.Mat{}, fmt.Errorf("tensor %s: %w", name, err)
	}
	m, err := tensor.NewMatFromRaw(info.Shape[0], info.Shape[1], dt, raw)
	if err != nil {
		return tensor.Mat{}, fmt.Errorf("tensor %s: %w", name, err)
	}
	return m, nil
}

// ReadVec loads a 1-D tensor as f32.
func (f *File) ReadVec(name string) ([]float32, error) {
	raw, info, err := f.ReadTensorRaw(name)
	if err != nil {
		return nil, err
	}
	if len(info.Shape) != 1 {
		return nil, fmt.Errorf("tensor %s: want 1 dim, got %v", name, info.Shape)
	}
	n := info.Shape[0]
	dt, err := dtypeOf(info.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	elemSize, _ := dt.ElemSize()
	if len(raw) != n*elemSize {
		return nil, fmt.Errorf("tensor %s: payload size %d, want %d", name, len(raw), n*elemSize)
	}
	out := make([]float32, n)
	switch dt {
	case tensor.DTypeF32:
		for i := 0; i < n; i++ {
			out[i] = f32At(raw, i)
		}
	case tensor.DTypeF16:
		m, err := tensor.NewMatFromRaw(1, n, dt, raw)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		m.RowTo(out, 0)
	case tensor.DTypeBF16:
		m, err := tensor.NewMatFromRaw(1, n, dt, raw)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		m.RowTo(out, 0)
	}
	return out, nil
}

func f32At(raw []byte, i int) float32 {
	bits := binary.LittleEndian.Uint32(raw[i*4:])
	return math.Float32frombits(bits)
}
