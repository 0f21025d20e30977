package delta

import "github.com/optakt/cvsup/model"

// CollectView is the DeltaStore access policy for the collection pass: reads
// and deletes both pass through, so that records the recorder frees at the
// end of a file also lose their payloads.
type CollectView struct {
	*Store
}

// OutputView is the DeltaStore access policy for the output pass: reads pass
// through, but deletes are silently dropped, since the delta store is kept
// as the collection pass left it and the reader never owns it.
type OutputView struct {
	*Store
}

// Delete is a no-op: the output pass treats the delta store as read-only.
func (OutputView) Delete(model.RevisionId) error { return nil }
