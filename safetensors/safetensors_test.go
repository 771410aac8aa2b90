package safetensors

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFile(t *testing.T, header string, declared uint64) string {
	t.Helper()
	var buf bytes.Buffer
	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], declared)
	buf.Write(prefix[:])
	buf.WriteString(header)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestWriteFileReadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lora.safetensors")
	payload := []byte{1, 2, 3, 4}
	require.NoError(t, WriteFile(path, map[string]string{"ss_output_name": "bird"}, payload))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	length := binary.LittleEndian.Uint64(data[:8])
	assert.Zero(t, length%8, "header should be padded to 8 bytes")
	assert.Equal(t, payload, data[8+length:])

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, length, h.Length)

	name, err := h.MetadataString("ss_output_name")
	require.NoError(t, err)
	assert.Equal(t, "bird", name)
	assert.Equal(t, map[string]string{"ss_output_name": "bird"}, h.MetadataStrings())
}

func TestReadHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{
			name: "shorter-than-prefix",
			path: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "short.safetensors")
				require.NoError(t, os.WriteFile(p, []byte{1, 2, 3}, 0o644))
				return p
			},
			want: ErrTruncated,
		},
		{
			name: "length-past-eof",
			path: func(t *testing.T) string { return rawFile(t, `{}`, 64) },
			want: ErrTruncated,
		},
		{
			name: "too-large",
			path: func(t *testing.T) string { return rawFile(t, `{}`, MaxHeaderSize+1) },
			want: ErrMalformed,
		},
		{
			name: "invalid-json",
			path: func(t *testing.T) string { return rawFile(t, `{"a":`, 5) },
			want: ErrMalformed,
		},
		{
			name: "not-an-object",
			path: func(t *testing.T) string { return rawFile(t, `null`, 4) },
			want: ErrMalformed,
		},
		{
			name: "invalid-utf8",
			path: func(t *testing.T) string { return rawFile(t, "{\"\xff\":1}", 7) },
			want: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadHeader(tt.path(t))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadHeaderMissingFile(t *testing.T) {
	_, err := ReadHeader(filepath.Join(t.TempDir(), "nope.safetensors"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMetadataLookups(t *testing.T) {
	h, err := DecodeHeader(bytes.NewReader(encode(t, map[string]any{"weight": map[string]any{}})), -1)
	require.NoError(t, err)
	_, err = h.Metadata()
	assert.ErrorIs(t, err, ErrNoMetadata)
	assert.Empty(t, h.MetadataStrings())

	h, err = DecodeHeader(bytes.NewReader(encode(t, map[string]any{
		MetadataKey: map[string]any{"ss_num_epochs": "10", "nested": map[string]any{}},
	})), -1)
	require.NoError(t, err)

	_, err = h.MetadataString("ss_tag_frequency")
	assert.ErrorIs(t, err, ErrNoMetadataKey)
	_, err = h.MetadataString("nested")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, map[string]string{"ss_num_epochs": "10"}, h.MetadataStrings())
}

func encode(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, fields, nil))
	return buf.Bytes()
}
