package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// Key maps a logical key to the hex sha3-224 digest both layers are keyed by.
func Key(key string) []byte {
	sum := sha3.Sum224([]byte(key))
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}

// compress gzips value at best compression.
func compress(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := zw.Write(value); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to compress cache value: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress cache value: %w", err)
	}

	return buf.Bytes(), nil
}

// decompress reverses compress. A value that is not gzip data is reported as corrupt.
func decompress(stored []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	value, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return value, nil
}
