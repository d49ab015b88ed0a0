package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	lvstorage "github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/utafrali/storefront/internal/storage"
)

// Store is a storage.Store on an embedded LevelDB. Change notifications are
// local to the process.
type Store struct {
	storage.Notifier

	db *leveldb.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a database that lives only in memory.
func OpenInMemory() (*Store, error) {
	db, err := leveldb.Open(lvstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, storage.ErrKeyNotFound(key)
		}
		return nil, fmt.Errorf("leveldb get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("leveldb put %s: %w", key, err)
	}
	s.Notify(key)
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldb delete %s: %w", key, err)
	}
	s.Notify(key)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	_, err := s.db.GetProperty("leveldb.stats")
	return err
}
