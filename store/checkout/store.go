// Package checkout implements the CheckoutStore: a flat badger-backed map
// from revision id to materialized fulltext, written and read only during
// the output pass. Unlike DeltaStore, entries here are transient — written
// once a revision is checked out ahead of its dependents, read once those
// dependents run, then deleted — so no LRU front cache is warranted.
package checkout

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"

	"github.com/optakt/cvsup/model"
)

// Store is the CheckoutStore.
type Store struct {
	log zerolog.Logger
	db  *badger.DB
}

// New creates a Store backed by db.
func New(log zerolog.Logger, db *badger.DB) *Store {
	return &Store{
		log: log.With().Str("component", "checkout_store").Logger(),
		db:  db,
	}
}

// Set stores the materialized fulltext for a revision.
func (s *Store) Set(id model.RevisionId, text []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyOf(id), text)
	})
	if err != nil {
		return fmt.Errorf("could not write checked-out text %d: %w", id, err)
	}
	return nil
}

// Get reads the materialized fulltext for a revision.
func (s *Store) Get(id model.RevisionId) ([]byte, error) {
	var text []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyOf(id))
		if err != nil {
			return err
		}
		text, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not read checked-out text %d: %w", id, err)
	}
	return text, nil
}

// Delete removes a revision's materialized fulltext.
func (s *Store) Delete(id model.RevisionId) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyOf(id))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("could not delete checked-out text %d: %w", id, err)
	}
	return nil
}

func keyOf(id model.RevisionId) []byte {
	return []byte(id.Hex())
}
