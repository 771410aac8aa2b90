// Package safetensors reads and writes the JSON header of .safetensors
// checkpoint files. The tensor payload that follows the header is never read.
//
// Layout: bytes [0,8) hold the header length N as a little-endian uint64,
// bytes [8,8+N) hold a UTF-8 JSON object, the rest is tensor data.
package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

const (
	// MetadataKey is the header field holding free-form string metadata.
	MetadataKey = "__metadata__"

	// MaxHeaderSize matches the ceiling enforced by the reference loaders.
	MaxHeaderSize = 100 << 20

	lengthPrefixSize = 8
)

var (
	// ErrTruncated is returned when the file ends before the declared header does.
	ErrTruncated = errors.New("safetensors: truncated header")
	// ErrMalformed covers oversized, non UTF-8 and non JSON-object headers.
	ErrMalformed = errors.New("safetensors: malformed header")
	// ErrNoMetadata is returned when the header has no __metadata__ field.
	ErrNoMetadata = errors.New("safetensors: no __metadata__ in header")
	// ErrNoMetadataKey is returned when __metadata__ lacks the requested key.
	ErrNoMetadataKey = errors.New("safetensors: metadata key not found")
)

// Header is the decoded JSON header of a checkpoint file.
type Header struct {
	Length uint64
	Fields map[string]json.RawMessage
}

// ReadHeader opens path, decodes its header and closes the file.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	size := int64(-1)
	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
		size = fi.Size()
	}

	return DecodeHeader(f, size)
}

// DecodeHeader reads a header from r. size is the total stream length when
// known, or -1; it lets an impossible header length fail before allocating.
func DecodeHeader(r io.Reader, size int64) (*Header, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("%w: reading length prefix: %v", ErrTruncated, err)
	}

	length := binary.LittleEndian.Uint64(prefix[:])
	if length > MaxHeaderSize {
		return nil, fmt.Errorf("%w: header length %d exceeds %d", ErrMalformed, length, MaxHeaderSize)
	}
	if size >= 0 && length > uint64(size-lengthPrefixSize) {
		return nil, fmt.Errorf("%w: header length %d but only %d bytes follow", ErrTruncated, length, size-lengthPrefixSize)
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: reading %d header bytes: %v", ErrTruncated, length, err)
	}

	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: header is not valid UTF-8", ErrMalformed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: header is not a JSON object", ErrMalformed)
	}

	return &Header{Length: length, Fields: fields}, nil
}

// Metadata returns the raw __metadata__ entries.
func (h *Header) Metadata() (map[string]json.RawMessage, error) {
	raw, ok := h.Fields[MetadataKey]
	if !ok {
		return nil, ErrNoMetadata
	}

	var metadata map[string]json.RawMessage
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("%w: __metadata__ is not an object: %v", ErrMalformed, err)
	}

	return metadata, nil
}

// MetadataString returns a single string-valued metadata entry.
func (h *Header) MetadataString(key string) (string, error) {
	metadata, err := h.Metadata()
	if err != nil {
		return "", err
	}

	raw, ok := metadata[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoMetadataKey, key)
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%w: metadata %s is not a string", ErrMalformed, key)
	}

	return value, nil
}

// MetadataStrings returns every string-valued metadata entry, skipping the rest.
func (h *Header) MetadataStrings() map[string]string {
	metadata, err := h.Metadata()
	if err != nil {
		return map[string]string{}
	}

	out := make(map[string]string, len(metadata))
	for k, raw := range metadata {
		var value string
		if json.Unmarshal(raw, &value) == nil {
			out[k] = value
		}
	}

	return out
}

// Encode writes a header for the given fields followed by payload. The JSON
// is space padded to a multiple of eight bytes like the reference writers do.
func Encode(w io.Writer, fields map[string]any, payload []byte) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := len(raw) % lengthPrefixSize; pad != 0 {
		raw = append(raw, bytes.Repeat([]byte(" "), lengthPrefixSize-pad)...)
	}

	var prefix [lengthPrefixSize]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(len(raw)))

	for _, chunk := range [][]byte{prefix[:], raw, payload} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	return nil
}

// WriteFile writes a checkpoint whose __metadata__ is metadata.
func WriteFile(path string, metadata map[string]string, payload []byte) error {
	fields := map[string]any{}
	if metadata != nil {
		fields[MetadataKey] = metadata
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := Encode(f, fields, payload); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
