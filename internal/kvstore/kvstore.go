// Package kvstore wraps the LevelDB store that the system WebView uses for
// local storage from major version 79 on.
package kvstore

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get for absent keys
var ErrNotFound = errors.New("key not found")

// Store is an open LevelDB directory
type Store struct {
	db   *leveldb.DB
	path string
}

// Open opens the store at path. With createIfMissing unset, a missing
// store is an error.
func Open(path string, createIfMissing bool) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ErrorIfMissing: !createIfMissing,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenReadOnly opens an existing store without taking write access
func OpenReadOnly(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ErrorIfMissing: true,
		ReadOnly:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the store directory
func (s *Store) Path() string {
	return s.path
}

// Put writes a single key
func (s *Store) Put(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("failed to put key: %w", err)
	}
	return nil
}

// Get reads a single key, returning ErrNotFound when absent
func (s *Store) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

// Iterate calls fn for every record in key order. The slices passed to fn
// are copies. Returning an error from fn stops the iteration.
func (s *Store) Iterate(fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iteration failed: %w", err)
	}
	return nil
}

// Batch collects puts to be applied atomically by Write
type Batch struct {
	b leveldb.Batch
}

// Put queues a key
func (b *Batch) Put(key, value []byte) {
	b.b.Put(key, value)
}

// Len returns the number of queued records
func (b *Batch) Len() int {
	return b.b.Len()
}

// Write applies the batch in one synced write
func (s *Store) Write(b *Batch) error {
	if err := s.db.Write(&b.b, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

// Close releases the store and its lock file
func (s *Store) Close() error {
	return s.db.Close()
}
