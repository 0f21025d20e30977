package recorder_test

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/record"
	"github.com/optakt/cvsup/recorder"
)

type fakeDelta struct {
	data map[model.RevisionId][]byte
}

func newFakeDelta() *fakeDelta {
	return &fakeDelta{data: make(map[model.RevisionId][]byte)}
}

func (f *fakeDelta) Get(id model.RevisionId) ([]byte, error) {
	v, ok := f.data[id]
	if !ok {
		return nil, fmt.Errorf("no entry for %d", id)
	}
	return v, nil
}

func (f *fakeDelta) Set(id model.RevisionId, payload []byte) error {
	f.data[id] = payload
	return nil
}

func (f *fakeDelta) Delete(id model.RevisionId) error {
	delete(f.data, id)
	return nil
}

type fakeTree struct {
	saved map[model.FileId][]record.Row
}

func newFakeTree() *fakeTree {
	return &fakeTree{saved: make(map[model.FileId][]record.Row)}
}

func (f *fakeTree) Save(id model.FileId, rows []record.Row) error {
	f.saved[id] = rows
	return nil
}

const (
	rev11 model.RevisionId = 1
	rev12 model.RevisionId = 2
	rev13 model.RevisionId = 3
)

// TestRecorder_TrunkInversion replays the specification's three-revision
// trunk scenario: revisions arrive head-first (1.3, 1.2, 1.1), the first
// text is a fulltext and the rest are backward deltas.
func TestRecorder_TrunkInversion(t *testing.T) {
	delta := newFakeDelta()
	tree := newFakeTree()
	r := recorder.New(zerolog.Nop(), delta)

	r.SetHeadRevision(rev13)
	r.DefineRevision(rev13, "1.3", ptr(rev12), nil)
	r.DefineRevision(rev12, "1.2", ptr(rev11), nil)
	r.DefineRevision(rev11, "1.1", nil, nil)

	require.NoError(t, r.SetRevisionInfo(rev13, []byte("c\n")))
	require.NoError(t, r.SetRevisionInfo(rev12, []byte("d1 1\na1 1\nb\n")))
	require.NoError(t, r.SetRevisionInfo(rev11, []byte("d1 1\na1 1\na\n")))

	items := []model.FileItem{
		{Revision: rev11, Kind: model.ContentBearing},
		{Revision: rev12, Kind: model.ContentBearing},
		{Revision: rev13, Kind: model.ContentBearing},
	}
	require.NoError(t, r.Finish(model.FileId(1), items, tree))

	rows := tree.saved[model.FileId(1)]
	require.Len(t, rows, 3)

	byID := make(map[model.RevisionId]record.Row)
	for _, row := range rows {
		byID[row.Id] = row
	}

	assert.Equal(t, record.TagFullText, byID[rev11].Tag)
	assert.Equal(t, record.TagDelta, byID[rev12].Tag)
	assert.Equal(t, rev11, byID[rev12].PredID)
	assert.Equal(t, record.TagDelta, byID[rev13].Tag)
	assert.Equal(t, rev12, byID[rev13].PredID)

	// The seed fulltext written to the delta store must be 1.1's content,
	// recovered by inverting the two backward deltas.
	fullText, err := delta.Get(rev11)
	require.NoError(t, err)
	assert.Equal(t, []byte("a\n"), fullText)
}

func TestRecorder_SingleRevisionFile(t *testing.T) {
	delta := newFakeDelta()
	tree := newFakeTree()
	r := recorder.New(zerolog.Nop(), delta)

	r.SetHeadRevision(rev11)
	r.DefineRevision(rev11, "1.1", nil, nil)
	require.NoError(t, r.SetRevisionInfo(rev11, []byte("only\n")))

	items := []model.FileItem{{Revision: rev11, Kind: model.ContentBearing}}
	require.NoError(t, r.Finish(model.FileId(2), items, tree))

	rows := tree.saved[model.FileId(2)]
	require.Len(t, rows, 1)
	assert.Equal(t, record.TagFullText, rows[0].Tag)

	text, err := delta.Get(rev11)
	require.NoError(t, err)
	assert.Equal(t, []byte("only\n"), text)
}

func TestRecorder_BranchRevision(t *testing.T) {
	const branch model.RevisionId = 4

	delta := newFakeDelta()
	tree := newFakeTree()
	r := recorder.New(zerolog.Nop(), delta)

	r.SetHeadRevision(rev11)
	r.DefineRevision(rev11, "1.1", nil, []model.RevisionId{branch})
	require.NoError(t, r.SetRevisionInfo(rev11, []byte("trunk\n")))
	require.NoError(t, r.SetRevisionInfo(branch, []byte("a1 1\nbranch\n")))

	items := []model.FileItem{
		{Revision: rev11, Kind: model.ContentBearing},
		{Revision: branch, Kind: model.ContentBearing},
	}
	require.NoError(t, r.Finish(model.FileId(3), items, tree))

	rows := tree.saved[model.FileId(3)]
	require.Len(t, rows, 2)

	byID := make(map[model.RevisionId]record.Row)
	for _, row := range rows {
		byID[row.Id] = row
	}
	assert.Equal(t, record.TagDelta, byID[branch].Tag)
	assert.Equal(t, rev11, byID[branch].PredID)
}

func TestRecorder_TrunkOnly_SkipsBranches(t *testing.T) {
	const branch model.RevisionId = 4

	delta := newFakeDelta()
	tree := newFakeTree()
	r := recorder.New(zerolog.Nop(), delta, recorder.WithTrunkOnly())

	r.SetHeadRevision(rev11)
	r.DefineRevision(rev11, "1.1", nil, []model.RevisionId{branch})
	require.NoError(t, r.SetRevisionInfo(rev11, []byte("trunk\n")))
	require.NoError(t, r.SetRevisionInfo(branch, []byte("a1 1\nbranch\n")))

	items := []model.FileItem{{Revision: rev11, Kind: model.ContentBearing}}
	require.NoError(t, r.Finish(model.FileId(4), items, tree))

	rows := tree.saved[model.FileId(4)]
	require.Len(t, rows, 1)
	assert.Equal(t, rev11, rows[0].Id)
}

func TestRecorder_DuplicateDeltatext_IgnoredSilently(t *testing.T) {
	delta := newFakeDelta()
	tree := newFakeTree()
	r := recorder.New(zerolog.Nop(), delta)

	r.SetHeadRevision(rev11)
	r.DefineRevision(rev11, "1.1", nil, nil)
	require.NoError(t, r.SetRevisionInfo(rev11, []byte("a\n")))
	require.NoError(t, r.SetRevisionInfo(rev11, []byte("a\n")))

	items := []model.FileItem{{Revision: rev11, Kind: model.ContentBearing}}
	require.NoError(t, r.Finish(model.FileId(5), items, tree))
	assert.Len(t, tree.saved[model.FileId(5)], 1)
}

func TestRecorder_MalformedTrunkDelta_ReturnsError(t *testing.T) {
	delta := newFakeDelta()
	r := recorder.New(zerolog.Nop(), delta)

	r.SetHeadRevision(rev12)
	r.DefineRevision(rev12, "1.2", ptr(rev11), nil)
	r.DefineRevision(rev11, "1.1", nil, nil)

	require.NoError(t, r.SetRevisionInfo(rev12, []byte("b\n")))
	err := r.SetRevisionInfo(rev11, []byte("not a valid ed script"))
	assert.Error(t, err)
}

func ptr(id model.RevisionId) *model.RevisionId {
	return &id
}
