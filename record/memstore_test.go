package record_test

import (
	"fmt"

	"github.com/optakt/cvsup/model"
)

// memDeltaDB and memCheckoutDB are trivial in-memory stand-ins for the
// real badger-backed stores, used so record package tests can exercise
// full checkout/discard behavior without pulling in package store.

type memDeltaDB struct {
	data map[model.RevisionId][]byte
}

func newMemDeltaDB() *memDeltaDB {
	return &memDeltaDB{data: make(map[model.RevisionId][]byte)}
}

func (m *memDeltaDB) Get(id model.RevisionId) ([]byte, error) {
	v, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("no delta entry for %d", id)
	}
	return v, nil
}

func (m *memDeltaDB) Delete(id model.RevisionId) error {
	delete(m.data, id)
	return nil
}

type memCheckoutDB struct {
	data map[model.RevisionId][]byte
}

func newMemCheckoutDB() *memCheckoutDB {
	return &memCheckoutDB{data: make(map[model.RevisionId][]byte)}
}

func (m *memCheckoutDB) Get(id model.RevisionId) ([]byte, error) {
	v, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("no checkout entry for %d", id)
	}
	return v, nil
}

func (m *memCheckoutDB) Set(id model.RevisionId, text []byte) error {
	m.data[id] = text
	return nil
}

func (m *memCheckoutDB) Delete(id model.RevisionId) error {
	delete(m.data, id)
	return nil
}
