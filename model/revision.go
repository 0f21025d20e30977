// Package model holds the plain data types shared across the checkout
// core: revision and file identifiers, file modes, and the downstream
// pipeline's view of which revisions are still wanted.
package model

import "strconv"

// RevisionId uniquely names one historical revision of one file. It is
// stable across the collect, filter, and output passes.
type RevisionId uint64

// Hex renders the revision id as lowercase hexadecimal, the form used as a
// CheckoutStore key.
func (id RevisionId) Hex() string {
	return strconv.FormatUint(uint64(id), 16)
}

// FileId names one CVS file across the collect/filter/output passes.
type FileId uint64

// FileMode describes how a revision's content must be treated by the
// output pass: text with keywords expanded (the default), keyword mode
// ("k") with keyword markers collapsed, binary, or passthrough ("o"). The
// last two are returned verbatim.
type FileMode uint8

const (
	ModeText FileMode = iota
	ModeKeyword
	ModeBinary
	ModeOther
)

// ContentKind distinguishes revisions that carry file content from pure
// deletions. Deletions are never counted as consumers during refcount
// computation.
type ContentKind uint8

const (
	ContentBearing ContentKind = iota
	ContentDeletion
)

// FileItem is one entry in the downstream pipeline's view of which
// revisions of a file it still wants, as consumed by
// record.Database.RecomputeRefcounts.
type FileItem struct {
	Revision RevisionId
	Kind     ContentKind
}
