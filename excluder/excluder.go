// Package excluder implements the RevisionExcluder: the filter pass that
// re-derives refcounts against a pruned view of which revisions the
// downstream pipeline still wants (excluded symbols and branches removed),
// then persists a filtered TreeStore snapshot. It never touches the delta
// store; a record it frees here only drops bookkeeping, not the underlying
// payload, a documented inefficiency rather than a bug.
package excluder

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/optakt/cvsup/errs"
	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/record"
)

// TreeReader is the TreeStore access an Excluder needs to load a file's
// collection-pass snapshot.
type TreeReader interface {
	Load(id model.FileId) ([]record.Row, error)
}

// TreeWriter is the TreeStore access an Excluder needs to persist a file's
// filtered snapshot.
type TreeWriter interface {
	Save(id model.FileId, rows []record.Row) error
}

// Excluder runs the filter pass over files one at a time.
type Excluder struct {
	log zerolog.Logger
}

// New creates an Excluder.
func New(log zerolog.Logger) *Excluder {
	return &Excluder{log: log.With().Str("component", "revision_excluder").Logger()}
}

// ProcessFile loads fileID's snapshot from src, recomputes refcounts
// against the pruned item list, frees whatever is now unused, and persists
// the result to dst. Both backing stores are left null: the filter pass
// touches only bookkeeping.
func (e *Excluder) ProcessFile(fileID model.FileId, src TreeReader, dst TreeWriter, items []model.FileItem) error {
	rows, err := src.Load(fileID)
	if err != nil {
		return fmt.Errorf("%w: could not load snapshot for file %d: %v", errs.ErrStoreIO, fileID, err)
	}

	db, err := record.FromRows(e.log, rows)
	if err != nil {
		return err
	}

	db.RecomputeRefcounts(items)
	if err := db.FreeUnused(); err != nil {
		return err
	}

	if err := dst.Save(fileID, db.Snapshot()); err != nil {
		return fmt.Errorf("%w: could not persist filtered snapshot for file %d: %v", errs.ErrStoreIO, fileID, err)
	}
	return nil
}

// CopyFile copies a file's snapshot through unchanged, for files the
// pipeline decided to skip entirely rather than filter.
func (e *Excluder) CopyFile(fileID model.FileId, src TreeReader, dst TreeWriter) error {
	rows, err := src.Load(fileID)
	if err != nil {
		return fmt.Errorf("%w: could not load snapshot for file %d: %v", errs.ErrStoreIO, fileID, err)
	}
	if err := dst.Save(fileID, rows); err != nil {
		return fmt.Errorf("%w: could not copy snapshot for file %d: %v", errs.ErrStoreIO, fileID, err)
	}
	return nil
}
