package rcs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optakt/cvsup/rcs"
)

func TestStream_ApplyDiff(t *testing.T) {
	// Scenario from the trunk delta chain: 1.3 is "c\n", and the delta
	// from 1.3 to 1.2 is "d1 1\na1 1\nb\n", yielding "b\n".
	s := rcs.New([]byte("c\n"))

	err := s.ApplyDiff([]byte("d1 1\na1 1\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("b\n"), s.GetText())
}

func TestStream_ApplyDiff_MultiLine(t *testing.T) {
	s := rcs.New([]byte("a\nb\nc\n"))

	err := s.ApplyDiff([]byte("d2 1\na3 1\nx\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a\nc\nx\n"), s.GetText())
}

func TestStream_ApplyDiff_MalformedRange(t *testing.T) {
	s := rcs.New([]byte("a\n"))

	err := s.ApplyDiff([]byte("d5 1\n"))
	require.Error(t, err)
}

func TestStream_InvertDiff_RoundTrip(t *testing.T) {
	s := rcs.New([]byte("c\n"))

	reverse, err := s.InvertDiff([]byte("d1 1\na1 1\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("b\n"), s.GetText())

	err = s.ApplyDiff(reverse)
	require.NoError(t, err)
	assert.Equal(t, []byte("c\n"), s.GetText())
}

func TestStream_InvertDiff_MultiLineRoundTrip(t *testing.T) {
	original := []byte("a\nb\nc\nd\n")
	s := rcs.New(original)

	reverse, err := s.InvertDiff([]byte("d2 1\na3 2\nx\ny\n"))
	require.NoError(t, err)
	assert.NotEqual(t, original, s.GetText())

	err = s.ApplyDiff(reverse)
	require.NoError(t, err)
	assert.Equal(t, original, s.GetText())
}

func TestStream_NoTrailingNewlinePreserved(t *testing.T) {
	s := rcs.New([]byte("a\nb"))
	assert.Equal(t, []byte("a\nb"), s.GetText())
}
