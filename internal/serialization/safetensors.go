package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/tensor"
)

const metadataKey = "__metadata__"

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Save writes params to path in SafeTensors format.
//
// The file is written to a temporary file in the same directory and renamed
// into place, so a crash never leaves a partial checkpoint behind.
func Save[T tensor.Float](path string, params *nn.ParamSet[T], metadata map[string]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name()) // Best effort; fails once renamed
	}()

	if err := Write(tmp, params, metadata); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}
	return nil
}

// Write encodes params in SafeTensors format.
//
// Tensors are written in alphabetical order by name. The SHA-256 of the
// data section is stored under ChecksumKey, overriding any caller value.
func Write[T tensor.Float](w io.Writer, params *nn.ParamSet[T], metadata map[string]string) error {
	names := params.Names()
	sort.Strings(names)

	var data bytes.Buffer
	header := make(map[string]any, len(names)+1)
	dtype := dtypeToSafeTensors(tensor.DataTypeOf[T]())

	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		t := params.Get(name)
		start := int64(data.Len())
		encode(&data, t.Data())

		shape := make([]int64, len(t.Shape()))
		for i, dim := range t.Shape() {
			shape[i] = int64(dim)
		}
		header[name] = SafeTensorHeader{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{start, int64(data.Len())},
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[ChecksumKey] = ComputeChecksum(data.Bytes())
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// Load reads a SafeTensors file written with element type T.
func Load[T tensor.Float](path string) (*nn.ParamSet[T], map[string]string, error) {
	//nolint:gosec // G304: loading a user-supplied checkpoint path is the purpose of this function
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Read[T](f)
}

// Read decodes a SafeTensors stream. Tensors are returned in data offset
// order. Every tensor must have the dtype of T.
func Read[T tensor.Float](r io.Reader) (*nn.ParamSet[T], map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read header size: %w: %w", ErrTruncated, err)
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w: %w", ErrTruncated, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header: %w", err)
	}

	var metadata map[string]string
	if m, ok := raw[metadataKey]; ok {
		if err := json.Unmarshal(m, &metadata); err != nil {
			return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		delete(raw, metadataKey)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if sum, ok := metadata[ChecksumKey]; ok {
		if err := ValidateChecksum(data, sum); err != nil {
			return nil, nil, err
		}
	}

	headers := make(map[string]SafeTensorHeader, len(raw))
	metas := make([]TensorMeta, 0, len(raw))
	for name, msg := range raw {
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}
		var h SafeTensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, fmt.Errorf("failed to parse header of %q: %w", name, err)
		}
		headers[name] = h
		metas = append(metas, TensorMeta{
			Name:   name,
			Offset: h.DataOffsets[0],
			Size:   h.DataOffsets[1] - h.DataOffsets[0],
		})
	}
	if err := ValidateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, nil, err
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Offset < metas[j].Offset
	})

	want := dtypeToSafeTensors(tensor.DataTypeOf[T]())
	params := nn.NewParamSet[T]()
	for _, m := range metas {
		h := headers[m.Name]
		if h.DType != want {
			return nil, nil, fmt.Errorf("%w: %q is %s, want %s", ErrDTypeMismatch, m.Name, h.DType, want)
		}
		t, err := decodeTensor[T](m, h, data)
		if err != nil {
			return nil, nil, err
		}
		params.Set(m.Name, t)
	}

	return params, metadata, nil
}

func decodeTensor[T tensor.Float](m TensorMeta, h SafeTensorHeader, data []byte) (*tensor.Dense[T], error) {
	elemSize := int64(tensor.DataTypeOf[T]().Size())
	shape := make([]int, len(h.Shape))
	n := int64(1)
	for i, dim := range h.Shape {
		if dim <= 0 {
			return nil, &ValidationError{Err: ErrSizeMismatch, Tensor: m.Name, Details: fmt.Sprintf("invalid shape %v", h.Shape)}
		}
		if dim > (math.MaxInt64/elemSize)/n {
			return nil, &ValidationError{Err: ErrSizeMismatch, Tensor: m.Name, Details: fmt.Sprintf("shape %v overflows", h.Shape)}
		}
		shape[i] = int(dim)
		n *= dim
	}
	if size := n * elemSize; size != m.Size {
		return nil, &ValidationError{
			Err:     ErrSizeMismatch,
			Tensor:  m.Name,
			Details: fmt.Sprintf("shape %v needs %d bytes, offsets span %d", h.Shape, size, m.Size),
		}
	}

	values := decode[T](data[m.Offset : m.Offset+m.Size])
	t, err := tensor.FromSlice(values, shape...)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", m.Name, err)
	}
	return t, nil
}

// encode appends the little-endian bytes of values to buf.
func encode[T tensor.Float](buf *bytes.Buffer, values []T) {
	var b [8]byte
	switch v := any(values).(type) {
	case []float32:
		for _, x := range v {
			binary.LittleEndian.PutUint32(b[:4], math.Float32bits(x))
			buf.Write(b[:4])
		}
	case []float64:
		for _, x := range v {
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
			buf.Write(b[:])
		}
	}
}

// decode converts little-endian bytes to values of type T.
func decode[T tensor.Float](raw []byte) []T {
	size := tensor.DataTypeOf[T]().Size()
	out := make([]T, len(raw)/size)
	switch v := any(out).(type) {
	case []float32:
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case []float64:
		for i := range v {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	}
	return out
}

// dtypeToSafeTensors converts tensor.DataType to SafeTensors dtype string.
func dtypeToSafeTensors(dt tensor.DataType) string {
	switch dt {
	case tensor.Float64:
		return "F64"
	default:
		return "F32"
	}
}
