package storage

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) Storage {
	t.Helper()
	s, err := New(&Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetDelete(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Set([]byte("ledger:deposit:0xAA"), []byte(`{"deposit":"100"}`)))

	v, err := s.GetKey([]byte("ledger:deposit:0xAA"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"deposit":"100"}`), v)

	require.NoError(t, s.Delete([]byte("ledger:deposit:0xAA")))
	_, err = s.GetKey([]byte("ledger:deposit:0xAA"))
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestBatchWriteAndPrefixScan(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.BatchWrite(map[string][]byte{
		"events:batch:01J1:0000": []byte("a"),
		"events:batch:01J1:0001": []byte("b"),
		"events:req:0xdead":      []byte("c"),
	}))

	items, err := s.GetByPrefix([]byte("events:batch:01J1:"))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	keys, err := s.ListKeys("events:")
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	count, err := s.CountKeysByPrefix([]byte("events:"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestExist(t *testing.T) {
	s := newTestStorage(t)

	ok, err := s.Exist([]byte("nope"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set([]byte("yes"), []byte("1")))
	ok, err = s.Exist([]byte("yes"))
	require.NoError(t, err)
	assert.True(t, ok)
}
