package checkout_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optakt/cvsup/model"
	"github.com/optakt/cvsup/store/checkout"
	"github.com/optakt/cvsup/testing/helpers"
)

func TestStore_SetGetDelete(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s := checkout.New(zerolog.Nop(), db)

	require.NoError(t, s.Set(model.RevisionId(1), []byte("a\n")))

	got, err := s.Get(model.RevisionId(1))
	require.NoError(t, err)
	assert.Equal(t, []byte("a\n"), got)

	require.NoError(t, s.Delete(model.RevisionId(1)))
	_, err = s.Get(model.RevisionId(1))
	assert.Error(t, err)
}

func TestStore_GetMissing(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s := checkout.New(zerolog.Nop(), db)

	_, err := s.Get(model.RevisionId(99))
	assert.Error(t, err)
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	db := helpers.InMemoryDB(t)
	s := checkout.New(zerolog.Nop(), db)

	assert.NoError(t, s.Delete(model.RevisionId(99)))
}
