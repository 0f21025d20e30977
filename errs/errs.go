// Package errs collects the sentinel error kinds shared across the
// checkout core, so that callers can distinguish them with errors.Is
// regardless of which component wrapped the underlying failure.
package errs

import "errors"

var (
	// ErrMalformedDelta indicates a corrupt or out-of-range RCS delta.
	ErrMalformedDelta = errors.New("malformed rcs delta")

	// ErrInternal indicates a bookkeeping invariant violation: a discard
	// requested on a record with a nonzero refcount, a duplicate add, or a
	// replace of a missing record. These represent programming bugs.
	ErrInternal = errors.New("internal bookkeeping invariant violated")

	// ErrStoreIO wraps a failure propagated verbatim from a backing
	// key/value store.
	ErrStoreIO = errors.New("backing store i/o failure")
)
