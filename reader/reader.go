// Package reader implements the RevisionReader: the output pass that
// lazily loads each file's TextRecordDatabase snapshot on first request and
// services checkouts against a single long-lived live database, applying
// keyword substitution or passthrough as each file's mode requires.
package reader

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/optakt/cvsup/errs"
	"github.com/optakt/cvsup/keyword"
	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/record"
)

// TreeReader is the TreeStore access a Reader needs to lazily load a file's
// filtered snapshot.
type TreeReader interface {
	Load(id model.FileId) ([]record.Row, error)
}

// Reader runs the output pass.
type Reader struct {
	log      zerolog.Logger
	tree     TreeReader
	db       *record.Database
	expander *keyword.Expander
	loaded   map[model.FileId]bool
}

// New creates a Reader. deltaDB and checkoutDB are the output pass's
// DeltaStore and CheckoutStore wrappers, enforcing the read-only and
// read-write-delete policies respectively.
func New(log zerolog.Logger, tree TreeReader, deltaDB record.DeltaDB, checkoutDB record.CheckoutDB, expander *keyword.Expander) *Reader {
	logger := log.With().Str("component", "revision_reader").Logger()
	return &Reader{
		log:      logger,
		tree:     tree,
		db:       record.New(logger, deltaDB, checkoutDB),
		expander: expander,
		loaded:   make(map[model.FileId]bool),
	}
}

// GetContentStream checks out rev's fulltext, applying keyword
// substitution according to mode and suppressKeywordSubstitution. Binary
// and passthrough ("o" mode) content is returned verbatim.
func (r *Reader) GetContentStream(fileID model.FileId, rev model.RevisionId, mode model.FileMode, meta keyword.Revision, suppressKeywordSubstitution bool) ([]byte, error) {
	if err := r.ensureLoaded(fileID); err != nil {
		return nil, err
	}

	text, err := r.db.Get(rev).Checkout(r.db)
	if err != nil {
		return nil, err
	}

	switch {
	case mode == model.ModeBinary || mode == model.ModeOther:
		return text, nil
	case suppressKeywordSubstitution || mode == model.ModeKeyword:
		return keyword.Unexpand(text), nil
	default:
		return r.expander.Expand(text, meta), nil
	}
}

// SkipContent loads rev's file if needed and decrements its refcount
// directly, without materializing its content, for revisions the pipeline
// decided not to emit but must still account for.
func (r *Reader) SkipContent(fileID model.FileId, rev model.RevisionId) error {
	if err := r.ensureLoaded(fileID); err != nil {
		return err
	}
	return r.db.Get(rev).DecrementRefcount(r.db)
}

// Finish logs any records still present, which would indicate the
// consumer's refcount budget did not match what it actually requested.
func (r *Reader) Finish() {
	r.db.LogLeftovers()
}

func (r *Reader) ensureLoaded(fileID model.FileId) error {
	if r.loaded[fileID] {
		return nil
	}

	rows, err := r.tree.Load(fileID)
	if err != nil {
		return fmt.Errorf("%w: could not load snapshot for file %d: %v", errs.ErrStoreIO, fileID, err)
	}

	sub, err := record.FromRows(r.log, rows)
	if err != nil {
		return err
	}
	if err := r.db.Merge(sub); err != nil {
		return err
	}

	r.loaded[fileID] = true
	return nil
}
