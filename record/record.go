// Package record implements the TextRecord bookkeeping node and its
// three-variant state machine (FullText, Delta, CheckedOut), plus the
// owning TextRecordDatabase with its refcount computation and stack-safe
// discard cascade.
package record

import (
	"fmt"

	"github.com/optakt/cvsup/errs"
	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/rcs"
)

// Tag identifies which of the three closed TextRecord variants a record
// is, for serialization and diagnostics.
type Tag uint8

const (
	TagFullText Tag = iota
	TagDelta
	TagCheckedOut
)

func (t Tag) String() string {
	switch t {
	case TagFullText:
		return "full_text"
	case TagDelta:
		return "delta"
	case TagCheckedOut:
		return "checked_out"
	default:
		return "unknown"
	}
}

// TextRecord is the closed set of bookkeeping node variants a
// TextRecordDatabase tracks. Every live RevisionId in a database has
// exactly one TextRecord.
type TextRecord interface {
	ID() model.RevisionId
	Refcount() uint64
	Tag() Tag

	setRefcount(n uint64)
	incRefcount()

	// IncrementDependencyRefcounts adds one to the refcount of every
	// record this one depends on.
	IncrementDependencyRefcounts(db *Database)

	// DecrementRefcount drops this record's refcount by one, requesting
	// discard through db.Discard if it reaches zero. It is an internal
	// invariant violation to call this on a record whose refcount is
	// already zero.
	DecrementRefcount(db *Database) error

	// Checkout returns this revision's fulltext, decrementing this
	// record's refcount as a side effect.
	Checkout(db *Database) ([]byte, error)

	// Free releases this record's backing store entry and recursively
	// decrements the refcounts of anything it depended on. Called by
	// db.Discard; never deletes the record from db itself.
	Free(db *Database) error
}

// FullText is the fulltext for a revision, stored under its own id in the
// delta database.
type FullText struct {
	Id       model.RevisionId
	RefCount uint64
}

func NewFullText(id model.RevisionId) *FullText {
	return &FullText{Id: id}
}

func (r *FullText) ID() model.RevisionId { return r.Id }
func (r *FullText) Refcount() uint64     { return r.RefCount }
func (r *FullText) Tag() Tag             { return TagFullText }
func (r *FullText) setRefcount(n uint64) { r.RefCount = n }
func (r *FullText) incRefcount()         { r.RefCount++ }

func (r *FullText) IncrementDependencyRefcounts(*Database) {}

func (r *FullText) DecrementRefcount(db *Database) error {
	if r.RefCount == 0 {
		return fmt.Errorf("%w: decrement on full text %d with refcount 0", errs.ErrInternal, r.Id)
	}
	r.RefCount--
	if r.RefCount == 0 {
		return db.Discard(r.Id)
	}
	return nil
}

func (r *FullText) Checkout(db *Database) ([]byte, error) {
	text, err := db.deltaDB.Get(r.Id)
	if err != nil {
		return nil, fmt.Errorf("could not read full text %d: %w", r.Id, err)
	}
	if err := r.DecrementRefcount(db); err != nil {
		return nil, err
	}
	return text, nil
}

func (r *FullText) Free(db *Database) error {
	return db.deltaDB.Delete(r.Id)
}

// Delta is the delta text for a revision; applying it to the fulltext of
// PredID yields the fulltext of this revision.
type Delta struct {
	Id       model.RevisionId
	RefCount uint64
	PredID   model.RevisionId
}

func NewDelta(id, predID model.RevisionId) *Delta {
	return &Delta{Id: id, PredID: predID}
}

func (r *Delta) ID() model.RevisionId { return r.Id }
func (r *Delta) Refcount() uint64     { return r.RefCount }
func (r *Delta) Tag() Tag             { return TagDelta }
func (r *Delta) setRefcount(n uint64) { r.RefCount = n }
func (r *Delta) incRefcount()         { r.RefCount++ }

func (r *Delta) IncrementDependencyRefcounts(db *Database) {
	db.Get(r.PredID).incRefcount()
}

func (r *Delta) DecrementRefcount(db *Database) error {
	if r.RefCount == 0 {
		return fmt.Errorf("%w: decrement on delta %d with refcount 0", errs.ErrInternal, r.Id)
	}
	r.RefCount--
	if r.RefCount == 0 {
		return db.Discard(r.Id)
	}
	return nil
}

func (r *Delta) Checkout(db *Database) ([]byte, error) {
	pred := db.Get(r.PredID)
	text, err := pred.Checkout(db)
	if err != nil {
		return nil, err
	}

	deltaBytes, err := db.deltaDB.Get(r.Id)
	if err != nil {
		return nil, fmt.Errorf("could not read delta %d: %w", r.Id, err)
	}

	stream := rcs.New(text)
	if err := stream.ApplyDiff(deltaBytes); err != nil {
		return nil, fmt.Errorf("could not apply delta for revision %d: %w", r.Id, err)
	}
	text = stream.GetText()

	if r.RefCount == 0 {
		return nil, fmt.Errorf("%w: checkout of delta %d with refcount 0", errs.ErrInternal, r.Id)
	}
	r.RefCount--

	if r.RefCount == 0 {
		// This delta will never be read again: it is not needed as a
		// future base and no further consumer will request it. Drop the
		// bookkeeping record without touching the delta store entry; the
		// output pass's delta database is read-only anyway.
		db.remove(r.Id)
		return text, nil
	}

	if err := db.checkoutDB.Set(r.Id, text); err != nil {
		return nil, fmt.Errorf("could not cache checked-out text %d: %w", r.Id, err)
	}
	if err := db.Replace(&CheckedOut{Id: r.Id, RefCount: r.RefCount}); err != nil {
		return nil, err
	}
	return text, nil
}

func (r *Delta) Free(db *Database) error {
	if err := db.deltaDB.Delete(r.Id); err != nil {
		return fmt.Errorf("could not delete delta %d: %w", r.Id, err)
	}
	return db.Get(r.PredID).DecrementRefcount(db)
}

// CheckedOut is a revision whose fulltext has already been materialized
// into the checkout database. It only arises during the output pass.
type CheckedOut struct {
	Id       model.RevisionId
	RefCount uint64
}

func (r *CheckedOut) ID() model.RevisionId { return r.Id }
func (r *CheckedOut) Refcount() uint64     { return r.RefCount }
func (r *CheckedOut) Tag() Tag             { return TagCheckedOut }
func (r *CheckedOut) setRefcount(n uint64) { r.RefCount = n }
func (r *CheckedOut) incRefcount()         { r.RefCount++ }

func (r *CheckedOut) IncrementDependencyRefcounts(*Database) {}

func (r *CheckedOut) DecrementRefcount(db *Database) error {
	if r.RefCount == 0 {
		return fmt.Errorf("%w: decrement on checked-out %d with refcount 0", errs.ErrInternal, r.Id)
	}
	r.RefCount--
	if r.RefCount == 0 {
		return db.Discard(r.Id)
	}
	return nil
}

func (r *CheckedOut) Checkout(db *Database) ([]byte, error) {
	text, err := db.checkoutDB.Get(r.Id)
	if err != nil {
		return nil, fmt.Errorf("could not read checked-out text %d: %w", r.Id, err)
	}
	if err := r.DecrementRefcount(db); err != nil {
		return nil, err
	}
	return text, nil
}

func (r *CheckedOut) Free(db *Database) error {
	return db.checkoutDB.Delete(r.Id)
}
