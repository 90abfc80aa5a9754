// Package storage provides the on-disk document store for DocMesh.
//
// Each node keeps one Badger instance under the data directory's db/
// subtree, holding the indexed documents. The sibling meta/ subtree
// belongs to the replication layer (raft log, stable store and
// snapshots), not to this package. The store carries no write-ahead
// log of its own; the replicated log is the WAL.
package storage

import (
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v3"
)

// ErrKeyNotFound is returned when a key does not exist.
var ErrKeyNotFound = errors.New("storage: key not found")

// Store is a Badger-backed key-value store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) a store at dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{logger: logger.With("store", dir)}
	// Raft already syncs committed entries; per-write sync here only
	// doubles the fsync cost.
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dir, err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Put stores a value.
func (s *Store) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// PutBatch writes a set of key-value pairs in one transaction batch.
func (s *Store) PutBatch(pairs map[string][]byte) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for k, v := range pairs {
		if err := wb.Set([]byte(k), v); err != nil {
			return fmt.Errorf("batch set %q: %w", k, err)
		}
	}
	return wb.Flush()
}

// Get fetches a value. Returns ErrKeyNotFound for absent keys.
func (s *Store) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
