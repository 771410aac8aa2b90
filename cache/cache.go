package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"comfynodes/logger"

	"git.mills.io/prologic/bitcask"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var (
	// ErrNotFound is returned by Get for missing or expired keys.
	ErrNotFound = bitcask.ErrKeyNotFound
	// ErrCorrupt is returned by Get when a stored value cannot be decompressed.
	ErrCorrupt = errors.New("corrupt cache value")
)

// Store is a gzip-compressed bitcask database with an in-memory LRU in front.
// Keys are hashed with Key before they reach either layer.
type Store struct {
	db  *bitcask.Bitcask
	hot *expirable.LRU[string, []byte]
	ttl time.Duration
}

// Open opens (or creates) the database directory at path. Entries expire
// after ttl; hotEntries bounds the in-memory layer.
func Open(path string, ttl time.Duration, hotEntries int) (*Store, error) {
	// Increase the maximum value size to 10MB (from the default 65KB)
	db, err := bitcask.Open(path, bitcask.WithMaxValueSize(10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}

	if hotEntries <= 0 {
		hotEntries = 256
	}

	return &Store{
		db:  db,
		hot: expirable.NewLRU[string, []byte](hotEntries, nil, ttl),
		ttl: ttl,
	}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.hot.Purge()
	return s.db.Close()
}

// Put stores value under key with the store's TTL.
func (s *Store) Put(key string, value []byte) error {
	compressedValue, err := compress(value)
	if err != nil {
		return err
	}

	hashed := Key(key)
	if s.ttl > 0 {
		err = s.db.PutWithTTL(hashed, compressedValue, s.ttl)
	} else {
		err = s.db.Put(hashed, compressedValue)
	}
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	s.hot.Add(string(hashed), value)
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	hashed := Key(key)
	if value, ok := s.hot.Get(string(hashed)); ok {
		return value, nil
	}

	compressedValue, err := s.db.Get(hashed)
	if err != nil {
		return nil, err
	}

	value, err := decompress(compressedValue)
	if err != nil {
		return nil, err
	}

	s.hot.Add(string(hashed), value)
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	hashed := Key(key)
	s.hot.Remove(string(hashed))

	err := s.db.Delete(hashed)
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Len returns the number of keys on disk.
func (s *Store) Len() int {
	return s.db.Len()
}

// Merge compacts the database to reclaim space.
func (s *Store) Merge() {
	logger.Info("Merging cache to reclaim space...")
	if err := s.db.Merge(); err != nil {
		logger.Error("Error merging cache", "error", err)
	} else {
		logger.Info("Cache merge complete.")
	}
}

// MergeEvery runs Merge on the given interval until ctx is done.
func (s *Store) MergeEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Merge()
		}
	}
}
