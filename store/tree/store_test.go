package tree_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/record"
	"github.com/optakt/cvsup/store/tree"
	"github.com/optakt/cvsup/testing/helpers"
)

func TestStore_SaveLoad(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s := tree.New(zerolog.Nop(), db)

	rows := []record.Row{
		{Tag: record.TagFullText, Id: 1, RefCount: 1},
		{Tag: record.TagDelta, Id: 2, RefCount: 1, PredID: 1},
	}

	require.NoError(t, s.Save(model.FileId(7), rows))

	loaded, err := s.Load(model.FileId(7))
	require.NoError(t, err)
	assert.Equal(t, rows, loaded)
}

func TestStore_LoadMissing(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s := tree.New(zerolog.Nop(), db)

	_, err := s.Load(model.FileId(404))
	assert.Error(t, err)
}

func TestStore_Files(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s := tree.New(zerolog.Nop(), db)

	require.NoError(t, s.Save(model.FileId(1), []record.Row{{Tag: record.TagFullText, Id: 1}}))
	require.NoError(t, s.Save(model.FileId(2), []record.Row{{Tag: record.TagFullText, Id: 2}}))

	ids, err := s.Files()
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.FileId{1, 2}, ids)
}
