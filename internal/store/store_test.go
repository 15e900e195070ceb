package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set("k", "v1"))
	v, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	require.NoError(t, m.Set("k", "v2"))
	v, _, _ = m.Get("k")
	assert.Equal(t, "v2", v)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("k", "v"))
	require.NoError(t, m.Delete("k"))
	_, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is not an error.
	assert.NoError(t, m.Delete("k"))
}

func TestMemoryKeysPrefix(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("ledger:a", "1"))
	require.NoError(t, m.Set("ledger:b", "2"))
	require.NoError(t, m.Set("pending:x", "3"))

	keys, err := m.Keys("ledger:")
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger:a", "ledger:b"}, keys)

	keys, err = m.Keys("")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}
