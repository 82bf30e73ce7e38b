// Package badgerstore provides a Persistence Port backed by an embedded
// Badger key-value store, for single-process deployments that want durable
// overflow without running a separate database. Adapted from
// janelia-flyem-dvid's storage/badger engine: View/Update transactions
// around txn.Get/ValueCopy/Set, generalized from dvid's versioned keys to
// a plain NodeId key.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/overflowgraph/refgraph"
)

// Store is a Badger-backed Persistence Port.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a Badger database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.NumVersionsToKeep = 1
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(id refgraph.NodeId) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

func (s *Store) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(id), data)
	})
	if err != nil {
		return fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id refgraph.NodeId) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, refgraph.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id refgraph.NodeId) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
	if err != nil {
		return fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return nil
}
