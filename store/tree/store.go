// Package tree implements the TreeStore: a file_id-to-bytes badger map
// whose value is a codec-encoded TextRecordDatabase snapshot. Adapted from
// the teacher's forest flattener shape, but without the index-remapping
// step the trie flattener needs: a TextRecordDatabase's records already
// address each other by RevisionId.
package tree

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"

	"github.com/optakt/cvsup/codec"
	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/record"
)

// Store is the TreeStore.
type Store struct {
	log   zerolog.Logger
	db    *badger.DB
	codec *codec.Codec
}

// New creates a Store backed by db.
func New(log zerolog.Logger, db *badger.DB) *Store {
	return &Store{
		log:   log.With().Str("component", "tree_store").Logger(),
		db:    db,
		codec: codec.New(),
	}
}

// Save persists a file's TextRecordDatabase snapshot.
func (s *Store) Save(id model.FileId, rows []record.Row) error {
	data, err := s.codec.Marshal(rows)
	if err != nil {
		return fmt.Errorf("could not encode snapshot for file %d: %w", id, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyOf(id), data)
	})
	if err != nil {
		return fmt.Errorf("could not write snapshot for file %d: %w", id, err)
	}
	return nil
}

// Load reads back a file's TextRecordDatabase snapshot.
func (s *Store) Load(id model.FileId) ([]record.Row, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyOf(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot for file %d: %w", id, err)
	}
	rows, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("could not decode snapshot for file %d: %w", id, err)
	}
	return rows, nil
}

// Files iterates every file id with a snapshot in the store, in key order.
func (s *Store) Files() ([]model.FileId, error) {
	var ids []model.FileId
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids = append(ids, decodeKey(key))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not list tree store files: %w", err)
	}
	return ids, nil
}

func keyOf(id model.FileId) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeKey(buf []byte) model.FileId {
	return model.FileId(binary.BigEndian.Uint64(buf))
}
