package record

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/optakt/cvsup/errs"
	"github.com/optakt/cvsup/model"
)

// DeltaDB is the subset of DeltaStore that a TextRecordDatabase needs: a
// rev_id-to-bytes map holding fulltext and delta payloads. Its access
// policy (read-only, delete-as-no-op, ...) varies by pass; see the
// concrete wrappers in package store/delta.
type DeltaDB interface {
	Get(id model.RevisionId) ([]byte, error)
	Delete(id model.RevisionId) error
}

// CheckoutDB is the subset of CheckoutStore a TextRecordDatabase needs.
// It is writable only during the output pass.
type CheckoutDB interface {
	Get(id model.RevisionId) ([]byte, error)
	Set(id model.RevisionId, text []byte) error
	Delete(id model.RevisionId) error
}

// nullDeltaDB is installed on a TextRecordDatabase freshly deserialized
// from a TreeStore snapshot, until the caller rebinds a real store.
type nullDeltaDB struct{}

func (nullDeltaDB) Get(id model.RevisionId) ([]byte, error) {
	return nil, fmt.Errorf("delta store not bound for revision %d", id)
}
func (nullDeltaDB) Delete(model.RevisionId) error { return nil }

// NullDeltaDB is the placeholder DeltaDB, the default backing store after
// deserialization: Delete is a no-op and Get fails.
var NullDeltaDB DeltaDB = nullDeltaDB{}

type nullCheckoutDB struct{}

func (nullCheckoutDB) Get(id model.RevisionId) ([]byte, error) {
	return nil, fmt.Errorf("checkout store not bound for revision %d", id)
}
func (nullCheckoutDB) Set(id model.RevisionId, _ []byte) error {
	return fmt.Errorf("checkout store not bound for revision %d", id)
}
func (nullCheckoutDB) Delete(model.RevisionId) error { return nil }

// NullCheckoutDB is the placeholder CheckoutDB, the default backing store
// after deserialization: Delete is a no-op, and Get and Set fail.
var NullCheckoutDB CheckoutDB = nullCheckoutDB{}

// Database is the owning, in-memory TextRecordDatabase for one file
// (during collect/filter) or the live working set of many files (during
// output). It owns the stack-safe discard cascade: chains of thousands of
// deltas are normal, and native recursion would blow the stack.
type Database struct {
	records    map[model.RevisionId]TextRecord
	deltaDB    DeltaDB
	checkoutDB CheckoutDB

	cascading bool
	deferred  []model.RevisionId

	log zerolog.Logger
}

// New creates an empty database bound to the given backing stores.
func New(log zerolog.Logger, deltaDB DeltaDB, checkoutDB CheckoutDB) *Database {
	return &Database{
		records:    make(map[model.RevisionId]TextRecord),
		deltaDB:    deltaDB,
		checkoutDB: checkoutDB,
		log:        log,
	}
}

// Rebind installs new backing stores, typically after loading a snapshot
// that was deserialized with the null stores in place.
func (db *Database) Rebind(deltaDB DeltaDB, checkoutDB CheckoutDB) {
	db.deltaDB = deltaDB
	db.checkoutDB = checkoutDB
}

// Get returns the record for id, panicking if it is absent. Every
// Delta.PredID is guaranteed present by construction; a panic here means
// the forest invariant was already broken upstream.
func (db *Database) Get(id model.RevisionId) TextRecord {
	r, ok := db.records[id]
	if !ok {
		panic(fmt.Sprintf("text record %d not present in database", id))
	}
	return r
}

// Lookup returns the record for id without panicking.
func (db *Database) Lookup(id model.RevisionId) (TextRecord, bool) {
	r, ok := db.records[id]
	return r, ok
}

// Len reports how many records are currently live.
func (db *Database) Len() int {
	return len(db.records)
}

// Add inserts a new record, failing if its id is already present.
func (db *Database) Add(r TextRecord) error {
	if _, ok := db.records[r.ID()]; ok {
		return fmt.Errorf("%w: duplicate text record %d", errs.ErrInternal, r.ID())
	}
	db.records[r.ID()] = r
	return nil
}

// Replace overwrites the record at r's id, failing if it is not already
// present. Used for the Delta-to-CheckedOut in-place variant transition.
func (db *Database) Replace(r TextRecord) error {
	if _, ok := db.records[r.ID()]; !ok {
		return fmt.Errorf("%w: replace of missing text record %d", errs.ErrInternal, r.ID())
	}
	db.records[r.ID()] = r
	return nil
}

// remove deletes a record directly, bypassing the discard cascade. Used
// only for a Delta that hits zero refcount during checkout, which must
// never be freed (its delta store entry survives, per the output-pass
// policy) and never needs the dependency-decrement Free performs, since
// checkout already walked and decremented its predecessor.
func (db *Database) remove(id model.RevisionId) {
	delete(db.records, id)
}

// Discard removes the given records, cascading through anything their
// Free implementations drive to a zero refcount. The cascade is an
// iterative worklist, not recursion: a linear chain of thousands of
// deltas must not blow the stack.
func (db *Database) Discard(ids ...model.RevisionId) error {
	if db.cascading {
		db.deferred = append(db.deferred, ids...)
		return nil
	}

	db.cascading = true
	db.deferred = append(db.deferred, ids...)
	defer func() {
		db.cascading = false
		db.deferred = nil
	}()

	for len(db.deferred) > 0 {
		id := db.deferred[0]
		db.deferred = db.deferred[1:]

		rec, ok := db.records[id]
		if !ok {
			return fmt.Errorf("%w: discard of missing text record %d", errs.ErrInternal, id)
		}
		if rec.Refcount() != 0 {
			return fmt.Errorf("%w: discard called on %d with refcount %d", errs.ErrInternal, id, rec.Refcount())
		}
		if err := rec.Free(db); err != nil {
			return err
		}
		delete(db.records, id)
	}
	return nil
}

// RecomputeRefcounts zeroes every refcount, re-adds one for each
// dependency edge, then adds one more for every content-bearing revision
// named in items. The post-condition is that a record's refcount equals
// the number of records depending on it plus one if the downstream
// pipeline will still consume it directly.
func (db *Database) RecomputeRefcounts(items []model.FileItem) {
	for _, rec := range db.records {
		rec.setRefcount(0)
	}
	for _, rec := range db.records {
		rec.IncrementDependencyRefcounts(db)
	}
	for _, item := range items {
		if item.Kind == model.ContentDeletion {
			continue
		}
		if rec, ok := db.records[item.Revision]; ok {
			rec.incRefcount()
		}
	}
}

// FreeUnused discards every record currently at refcount zero. The
// snapshot of target ids is taken before any removal, so records driven
// to zero through the resulting cascade are handled by the cascade
// itself rather than missed by this loop.
func (db *Database) FreeUnused() error {
	var zero []model.RevisionId
	for id, rec := range db.records {
		if rec.Refcount() == 0 {
			zero = append(zero, id)
		}
	}
	if len(zero) == 0 {
		return nil
	}
	return db.Discard(zero...)
}

// LogLeftovers emits a warning for every record still present, which
// indicates that refcounts budgeted more consumption than actually
// happened — a consumer bug, not a fatal condition.
func (db *Database) LogLeftovers() {
	for id, rec := range db.records {
		db.log.Warn().
			Uint64("revision", uint64(id)).
			Str("variant", rec.Tag().String()).
			Uint64("refcount", rec.Refcount()).
			Msg("leftover text record at finish")
	}
}

// Row is the flat, store-agnostic serialization of one TextRecord, used
// by package codec to persist and reload a Database across passes.
type Row struct {
	Tag      Tag
	Id       model.RevisionId
	RefCount uint64
	PredID   model.RevisionId // meaningful only when Tag == TagDelta
}

// Snapshot flattens the database into a sequence of Rows, suitable for
// handing to a codec for persistence. The two backing store references
// are deliberately not part of the snapshot. Rows are sorted by Id so that
// encoding the same database twice produces byte-identical output; map
// iteration order is otherwise randomized per run.
func (db *Database) Snapshot() []Row {
	rows := make([]Row, 0, len(db.records))
	for _, rec := range db.records {
		row := Row{Tag: rec.Tag(), Id: rec.ID(), RefCount: rec.Refcount()}
		if d, ok := rec.(*Delta); ok {
			row.PredID = d.PredID
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Id < rows[j].Id })
	return rows
}

// FromRows rebuilds a database from a sequence of Rows, binding it to the
// null backing stores until the caller calls Rebind.
func FromRows(log zerolog.Logger, rows []Row) (*Database, error) {
	db := New(log, NullDeltaDB, NullCheckoutDB)
	for _, row := range rows {
		var rec TextRecord
		switch row.Tag {
		case TagFullText:
			rec = &FullText{Id: row.Id, RefCount: row.RefCount}
		case TagDelta:
			rec = &Delta{Id: row.Id, RefCount: row.RefCount, PredID: row.PredID}
		case TagCheckedOut:
			rec = &CheckedOut{Id: row.Id, RefCount: row.RefCount}
		default:
			return nil, fmt.Errorf("%w: unknown record tag %d", errs.ErrInternal, row.Tag)
		}
		if err := db.Add(rec); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Merge inserts every record from other into db, failing if any id
// collides. Used by the output pass to fold a newly loaded file's
// snapshot into the long-lived live database.
func (db *Database) Merge(other *Database) error {
	for _, rec := range other.records {
		if err := db.Add(rec); err != nil {
			return err
		}
	}
	return nil
}
