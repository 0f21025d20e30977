package delta_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/store/delta"
	"github.com/optakt/cvsup/testing/helpers"
)

func TestStore_SetGet(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s, err := delta.New(zerolog.Nop(), db)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(model.RevisionId(1), []byte("a\n")))

	got, err := s.Get(model.RevisionId(1))
	require.NoError(t, err)
	assert.Equal(t, []byte("a\n"), got)
}

func TestStore_GetAfterEviction(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s, err := delta.New(zerolog.Nop(), db, delta.WithCacheSize(2))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(model.RevisionId(1), []byte("a\n")))
	require.NoError(t, s.Set(model.RevisionId(2), []byte("b\n")))
	require.NoError(t, s.Set(model.RevisionId(3), []byte("c\n")))

	got, err := s.Get(model.RevisionId(1))
	require.NoError(t, err)
	assert.Equal(t, []byte("a\n"), got)
}

func TestStore_Delete(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s, err := delta.New(zerolog.Nop(), db)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(model.RevisionId(1), []byte("a\n")))
	require.NoError(t, s.Delete(model.RevisionId(1)))

	_, err = s.Get(model.RevisionId(1))
	assert.Error(t, err)
}

func TestOutputView_DeleteIsNoop(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s, err := delta.New(zerolog.Nop(), db)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(model.RevisionId(1), []byte("a\n")))

	view := delta.OutputView{Store: s}
	require.NoError(t, view.Delete(model.RevisionId(1)))

	got, err := view.Get(model.RevisionId(1))
	require.NoError(t, err)
	assert.Equal(t, []byte("a\n"), got)
}

func TestCollectView_DeletePassesThrough(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s, err := delta.New(zerolog.Nop(), db)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(model.RevisionId(1), []byte("a\n")))

	view := delta.CollectView{Store: s}
	require.NoError(t, view.Delete(model.RevisionId(1)))

	_, err = view.Get(model.RevisionId(1))
	assert.Error(t, err)
}
