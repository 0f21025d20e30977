// Package recorder implements the RevisionRecorder: the collection pass
// that turns one CVS file's parser events into a DeltaStore populated with
// forward deltas plus a pruned TextRecordDatabase snapshot in the
// TreeStore. Its hardest job is trunk delta inversion — CVS stores a
// trunk's revisions as a head fulltext followed by backward deltas, and the
// checkout engine needs forward deltas instead.
package recorder

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/optakt/cvsup/errs"
	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/rcs"
	"github.com/optakt/cvsup/record"
)

// DeltaWriter is the DeltaStore access a Recorder needs: the collection
// pass writes payloads as it discovers them, and the database built on the
// store deletes the payloads of records that Finish frees.
type DeltaWriter interface {
	record.DeltaDB
	Set(id model.RevisionId, payload []byte) error
}

// TreeWriter is the TreeStore access a Recorder needs to persist a file's
// finished snapshot.
type TreeWriter interface {
	Save(id model.FileId, rows []record.Row) error
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithTrunkOnly discards branch revisions entirely instead of recording
// them, for callers converting only a repository's mainline history.
func WithTrunkOnly() Option {
	return func(r *Recorder) { r.trunkOnly = true }
}

// Recorder consumes one CVS file's parser event stream and builds its
// TextRecordDatabase.
type Recorder struct {
	log       zerolog.Logger
	delta     DeltaWriter
	db        *record.Database
	trunkOnly bool

	headRevision model.RevisionId
	revision11   model.RevisionId
	haveHead     bool
	have11       bool

	baseRevisions map[model.RevisionId]model.RevisionId
	isTrunk       map[model.RevisionId]bool
	seen          map[model.RevisionId]bool

	stream         *rcs.Stream
	streamRevision model.RevisionId
	streaming      bool
}

// New creates a Recorder for one file, writing delta and fulltext payloads
// to delta as they are discovered.
func New(log zerolog.Logger, delta DeltaWriter, opts ...Option) *Recorder {
	r := &Recorder{
		log:           log.With().Str("component", "revision_recorder").Logger(),
		delta:         delta,
		db:            record.New(log, delta, record.NullCheckoutDB),
		baseRevisions: make(map[model.RevisionId]model.RevisionId),
		isTrunk:       make(map[model.RevisionId]bool),
		seen:          make(map[model.RevisionId]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetHeadRevision records which revision is the file's head.
func (r *Recorder) SetHeadRevision(rev model.RevisionId) {
	r.headRevision = rev
	r.haveHead = true
}

// DefineRevision processes one entry of the file's revision tree. revNum is
// the dotted RCS revision number (e.g. "1.4" or "1.2.2.1"), used to tell
// trunk revisions from branch revisions: a trunk revision number has
// exactly two components.
func (r *Recorder) DefineRevision(rev model.RevisionId, revNum string, next *model.RevisionId, branches []model.RevisionId) {
	if isTrunkRevNum(revNum) {
		r.isTrunk[rev] = true
	}
	for _, b := range branches {
		r.baseRevisions[b] = rev
	}
	if next != nil {
		r.baseRevisions[*next] = rev
	} else if isTrunkRevNum(revNum) {
		r.revision11 = rev
		r.have11 = true
	}
}

// SetRevisionInfo processes one revision's deltatext. Trunk revisions
// arrive head-first, each one a backward delta from its successor; branch
// revisions arrive in logical forward order, each one a forward delta from
// its base.
func (r *Recorder) SetRevisionInfo(rev model.RevisionId, text []byte) error {
	if r.seen[rev] {
		// Corrupt RCS files occasionally repeat the 1.1 deltatext block.
		return nil
	}
	r.seen[rev] = true

	if r.isTrunk[rev] {
		return r.setTrunkRevisionInfo(rev, text)
	}

	if r.trunkOnly {
		return nil
	}
	return r.setBranchRevisionInfo(rev, text)
}

func (r *Recorder) setTrunkRevisionInfo(rev model.RevisionId, text []byte) error {
	if !r.streaming {
		// The first trunk revision delivered is always the head, and its
		// text is a fulltext, not a delta.
		r.stream = rcs.New(text)
		r.streamRevision = rev
		r.streaming = true
		return r.maybeCloseTrunk(rev)
	}

	reverseDelta, err := r.stream.InvertDiff(text)
	if err != nil {
		return fmt.Errorf("%w: trunk inversion failed at revision %d", errs.ErrMalformedDelta, rev)
	}
	if err := r.writeRecord(record.NewDelta(r.streamRevision, rev), reverseDelta); err != nil {
		return err
	}
	r.streamRevision = rev
	return r.maybeCloseTrunk(rev)
}

// maybeCloseTrunk emits the FullText record and drops the stream once the
// oldest trunk revision, 1.1, has been reached.
func (r *Recorder) maybeCloseTrunk(rev model.RevisionId) error {
	if !r.have11 || rev != r.revision11 {
		return nil
	}
	if err := r.writeRecord(record.NewFullText(rev), r.stream.GetText()); err != nil {
		return err
	}
	r.stream = nil
	r.streaming = false
	return nil
}

func (r *Recorder) setBranchRevisionInfo(rev model.RevisionId, text []byte) error {
	base, ok := r.baseRevisions[rev]
	if !ok {
		return fmt.Errorf("%w: no base revision recorded for branch revision %d", errs.ErrInternal, rev)
	}
	return r.writeRecord(record.NewDelta(rev, base), text)
}

func (r *Recorder) writeRecord(rec record.TextRecord, payload []byte) error {
	if err := r.db.Add(rec); err != nil {
		return err
	}
	if err := r.delta.Set(rec.ID(), payload); err != nil {
		return fmt.Errorf("%w: could not write delta payload for revision %d: %v", errs.ErrStoreIO, rec.ID(), err)
	}
	return nil
}

// Finish recomputes refcounts against the file's final item list, frees
// whatever turned out unused, and persists the pruned database to tree.
func (r *Recorder) Finish(fileID model.FileId, items []model.FileItem, tree TreeWriter) error {
	r.db.RecomputeRefcounts(items)
	if err := r.db.FreeUnused(); err != nil {
		return err
	}
	if err := tree.Save(fileID, r.db.Snapshot()); err != nil {
		return fmt.Errorf("%w: could not persist tree snapshot for file %d: %v", errs.ErrStoreIO, fileID, err)
	}
	return nil
}

func isTrunkRevNum(revNum string) bool {
	return strings.Count(revNum, ".") == 1
}
