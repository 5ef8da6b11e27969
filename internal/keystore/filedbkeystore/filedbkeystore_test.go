package filedbkeystore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/keystore/filedbkeystore"
)

func TestLoadMissingReturnsNotOK(t *testing.T) {
	s := filedbkeystore.New(filepath.Join(t.TempDir(), "keys"))
	_, ok, err := s.Load("user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := filedbkeystore.New(filepath.Join(t.TempDir(), "keys"))
	require.NoError(t, s.Save("user-1", []byte("wrapped-bytes")))

	got, ok, err := s.Load("user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("wrapped-bytes"), got)
}

func TestDeleteThenLoadReturnsNotOK(t *testing.T) {
	s := filedbkeystore.New(filepath.Join(t.TempDir(), "keys"))
	require.NoError(t, s.Save("user-1", []byte("x")))
	require.NoError(t, s.Delete("user-1"))

	_, ok, err := s.Load("user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	s := filedbkeystore.New(filepath.Join(t.TempDir(), "keys"))
	assert.NoError(t, s.Delete("ghost"))
}
