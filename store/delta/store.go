// Package delta implements the DeltaStore: a rev_id-to-bytes map holding the
// fulltext and RCS delta payloads a TextRecordDatabase reads and writes
// during the collection pass. It adapts the teacher's bounded LRU front
// cache over badger, swapping the ledger-payload value type for raw bytes.
package delta

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/optakt/cvsup/model"
)

// persistInterval is how often the store checks whether its cache has grown
// past half full and, if so, evicts entries down to disk.
const persistInterval = 100 * time.Millisecond

// Store is the DeltaStore: fast access to recently written payloads through
// an LRU cache, with evicted entries persisted to badger in the background.
type Store struct {
	log zerolog.Logger

	db    *badger.DB
	sema  *semaphore.Weighted
	tx    *badger.Txn
	mutex *sync.RWMutex
	wg    *sync.WaitGroup
	err   chan error

	cache     *lru.Cache
	cacheSize int

	done chan struct{}
}

// New creates a Store backed by db. The caller owns db's lifecycle up to
// Close, which commits any pending writes before returning.
func New(log zerolog.Logger, db *badger.DB, opts ...Option) (*Store, error) {
	logger := log.With().Str("component", "delta_store").Logger()

	config := DefaultConfig
	for _, opt := range opts {
		opt(&config)
	}

	s := Store{
		log: logger,
		db:  db,
		tx:  db.NewTransaction(true),

		sema:      semaphore.NewWeighted(16),
		err:       make(chan error, 16),
		done:      make(chan struct{}),
		mutex:     &sync.RWMutex{},
		wg:        &sync.WaitGroup{},
		cacheSize: config.CacheSize,
	}

	s.wg.Add(1)
	go s.flush()

	cache, err := lru.NewWithEvict(config.CacheSize, func(k interface{}, v interface{}) {
		id, ok := k.(model.RevisionId)
		if !ok {
			logger.Fatal().Interface("got", k).Msg("unexpected key format")
		}
		value, ok := v.([]byte)
		if !ok {
			logger.Fatal().Interface("got", v).Msg("unexpected value format")
		}
		if err := s.write(id, value); err != nil {
			logger.Fatal().Err(err).Msg("could not persist delta payload")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("could not create cache for delta store: %w", err)
	}
	s.cache = cache

	go s.persist()

	return &s, nil
}

// Set stores a fulltext or delta payload for a revision.
func (s *Store) Set(id model.RevisionId, payload []byte) error {
	_ = s.cache.Add(id, payload)
	return nil
}

// Get returns the payload for a revision, checking the front cache before
// falling back to the currently building transaction.
func (s *Store) Get(id model.RevisionId) ([]byte, error) {
	val, ok := s.cache.Get(id)
	if ok {
		return val.([]byte), nil
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	item, err := s.tx.Get(keyOf(id))
	if err != nil {
		return nil, fmt.Errorf("could not read delta payload %d: %w", id, err)
	}
	return item.ValueCopy(nil)
}

// Delete removes a revision's payload.
func (s *Store) Delete(id model.RevisionId) error {
	s.cache.Remove(id)

	s.mutex.Lock()
	err := s.tx.Delete(keyOf(id))
	s.mutex.Unlock()
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not delete delta payload %d: %w", id, err)
	}
	return nil
}

// Close stops the store's background goroutines and commits any pending
// writes.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()

	s.mutex.Lock()
	err := s.tx.Commit()
	s.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("could not commit final transaction: %w", err)
	}

	_ = s.sema.Acquire(context.Background(), 16)
	close(s.err)

	var merr *multierror.Error
	for err := range s.err {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

func (s *Store) persist() {
	ticker := time.NewTicker(persistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.cache.Len() < s.cacheSize/2 {
				continue
			}
			for i := 0; i < s.cache.Len()-s.cacheSize/2; i++ {
				s.cache.RemoveOldest()
			}
		}
	}
}

func (s *Store) write(id model.RevisionId, payload []byte) error {
	select {
	case err := <-s.err:
		return fmt.Errorf("could not commit transaction: %w", err)
	default:
	}

	s.mutex.Lock()
	err := s.tx.Set(keyOf(id), payload)
	if errors.Is(err, badger.ErrTxnTooBig) {
		_ = s.sema.Acquire(context.Background(), 1)
		s.tx.CommitWith(s.committed)
		s.tx = s.db.NewTransaction(true)
		err = s.tx.Set(keyOf(id), payload)
	}
	s.mutex.Unlock()
	if errors.Is(err, badger.ErrDiscardedTxn) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not apply operation: %w", err)
	}
	return nil
}

func (s *Store) committed(err error) {
	if err != nil {
		s.err <- err
	}
	s.sema.Release(1)
}

func (s *Store) flush() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mutex.Lock()
			_ = s.sema.Acquire(context.Background(), 1)
			s.tx.CommitWith(s.committed)
			s.tx = s.db.NewTransaction(true)
			s.mutex.Unlock()

		case <-s.done:
			return
		}
	}
}

func keyOf(id model.RevisionId) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}
