package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/tensor"
)

func sampleParams[T tensor.Float](t *testing.T) *nn.ParamSet[T] {
	t.Helper()
	p := nn.NewParamSet[T]()
	w, err := tensor.FromSlice([]T{1, -2, 3.5, 4, 5, -6.25}, 2, 3)
	require.NoError(t, err)
	b, err := tensor.FromSlice([]T{0.5, 0, -1}, 3)
	require.NoError(t, err)
	p.Set("W1", w)
	p.Set("b1", b)
	p.Set("W2", tensor.Full[T](0.25, 3, 2))
	return p
}

// rawFile assembles a SafeTensors stream from a header and data section.
func rawFile(t *testing.T, header map[string]any, data []byte) []byte {
	t.Helper()
	h, err := json.Marshal(header)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(h))))
	buf.Write(h)
	buf.Write(data)
	return buf.Bytes()
}

func TestWriteRead_Float32(t *testing.T) {
	params := sampleParams[float32](t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, params, map[string]string{"model": "fc"}))

	got, meta, err := Read[float32](&buf)
	require.NoError(t, err)

	assert.Equal(t, "fc", meta["model"])
	assert.Len(t, meta[ChecksumKey], 64)
	assert.Equal(t, []string{"W1", "W2", "b1"}, got.Names())
	for _, name := range params.Names() {
		assert.True(t, got.Get(name).Shape().Equal(params.Get(name).Shape()), name)
		assert.Equal(t, params.Get(name).Data(), got.Get(name).Data(), name)
	}
}

func TestWriteRead_Float64(t *testing.T) {
	params := sampleParams[float64](t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, params, nil))

	got, _, err := Read[float64](&buf)
	require.NoError(t, err)
	assert.Equal(t, params.Get("W1").Data(), got.Get("W1").Data())
}

func TestWrite_HeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleParams[float32](t), nil))
	b := buf.Bytes()

	size := binary.LittleEndian.Uint64(b[:8])
	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b[8:8+size], &header))

	var w1 SafeTensorHeader
	require.NoError(t, json.Unmarshal(header["W1"], &w1))
	assert.Equal(t, "F32", w1.DType)
	assert.Equal(t, []int64{2, 3}, w1.Shape)
	assert.Equal(t, [2]int64{0, 24}, w1.DataOffsets)

	var b1 SafeTensorHeader
	require.NoError(t, json.Unmarshal(header["b1"], &b1))
	assert.Equal(t, [2]int64{48, 60}, b1.DataOffsets)

	assert.Len(t, b, 8+int(size)+60)
}

func TestSaveLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.safetensors")
	params := sampleParams[float64](t)

	require.NoError(t, Save(path, params, map[string]string{"epoch": "3"}))
	got, meta, err := Load[float64](path)
	require.NoError(t, err)
	assert.Equal(t, "3", meta["epoch"])
	assert.Equal(t, params.Get("W2").Data(), got.Get("W2").Data())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be renamed")

	_, _, err = Load[float64](filepath.Join(dir, "missing.safetensors"))
	assert.Error(t, err)
}

func TestRead_DTypeMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleParams[float32](t), nil))

	_, _, err := Read[float64](&buf)
	assert.ErrorIs(t, err, ErrDTypeMismatch)
}

func TestRead_ChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleParams[float32](t), nil))
	b := buf.Bytes()
	b[len(b)-1] ^= 0xff

	_, _, err := Read[float32](bytes.NewReader(b))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestRead_Truncated(t *testing.T) {
	_, _, err := Read[float32](bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, ErrTruncated)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleParams[float32](t), nil))
	size := binary.LittleEndian.Uint64(buf.Bytes()[:8])
	_, _, err = Read[float32](bytes.NewReader(buf.Bytes()[:8+size/2]))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestRead_HeaderTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(MaxHeaderSize+1)))
	_, _, err := Read[float32](&buf)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestRead_InvalidOffsets(t *testing.T) {
	data := make([]byte, 16)
	tests := []struct {
		name   string
		header map[string]any
		want   error
	}{
		{
			name: "out of bounds",
			header: map[string]any{
				"a": SafeTensorHeader{DType: "F32", Shape: []int64{8}, DataOffsets: [2]int64{0, 32}},
			},
			want: ErrOutOfBounds,
		},
		{
			name: "overlap",
			header: map[string]any{
				"a": SafeTensorHeader{DType: "F32", Shape: []int64{3}, DataOffsets: [2]int64{0, 12}},
				"b": SafeTensorHeader{DType: "F32", Shape: []int64{2}, DataOffsets: [2]int64{8, 16}},
			},
			want: ErrOffsetOverlap,
		},
		{
			name: "negative",
			header: map[string]any{
				"a": SafeTensorHeader{DType: "F32", Shape: []int64{1}, DataOffsets: [2]int64{4, 0}},
			},
			want: ErrNegativeOffset,
		},
		{
			name: "size mismatch",
			header: map[string]any{
				"a": SafeTensorHeader{DType: "F32", Shape: []int64{3}, DataOffsets: [2]int64{0, 16}},
			},
			want: ErrSizeMismatch,
		},
		{
			name: "shape overflow",
			header: map[string]any{
				"a": SafeTensorHeader{DType: "F32", Shape: []int64{1 << 32, 1 << 32}, DataOffsets: [2]int64{0, 0}},
			},
			want: ErrSizeMismatch,
		},
		{
			name: "invalid name",
			header: map[string]any{
				"../a": SafeTensorHeader{DType: "F32", Shape: []int64{4}, DataOffsets: [2]int64{0, 16}},
			},
			want: ErrInvalidTensorName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read[float32](bytes.NewReader(rawFile(t, tt.header, data)))
			assert.ErrorIs(t, err, tt.want)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestRead_WithoutChecksum(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, 0x4000000000000000) // 2.0
	header := map[string]any{
		"x":            SafeTensorHeader{DType: "F64", Shape: []int64{1}, DataOffsets: [2]int64{0, 8}},
		"__metadata__": map[string]string{"format": "pt"},
	}

	got, meta, err := Read[float64](bytes.NewReader(rawFile(t, header, data)))
	require.NoError(t, err)
	assert.Equal(t, "pt", meta["format"])
	assert.Equal(t, []float64{2}, got.Get("x").Data())
}

func TestValidateTensorName(t *testing.T) {
	assert.NoError(t, ValidateTensorName("optim.velocity.W1"))
	for _, name := range []string{"", "a/b", `a\b`, "..", "x\x00", "__metadata__"} {
		assert.ErrorIs(t, ValidateTensorName(name), ErrInvalidTensorName, "%q", name)
	}
}
