package hashtable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hashtable"
)

func TestSetGetDelRoundtrip(t *testing.T) {
	ht := hashtable.MkHash(4)

	_, inserted := ht.Set(5, "five")
	assert.True(t, inserted)

	v, ok := ht.Get(5)
	require.True(t, ok)
	assert.Equal(t, "five", v)

	ht.Del(5)
	_, ok = ht.Get(5)
	assert.False(t, ok)
}

func TestSetExistingKeyReportsNotInserted(t *testing.T) {
	ht := hashtable.MkHash(4)
	ht.Set(1, "a")
	_, inserted := ht.Set(1, "b")
	assert.False(t, inserted)

	v, ok := ht.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", v) // Set on an existing key keeps the original value
}

func TestSizeTracksInsertionsAndDeletions(t *testing.T) {
	ht := hashtable.MkHash(4)
	for i := 0; i < 20; i++ {
		ht.Set(i, i*i)
	}
	assert.Equal(t, 20, ht.Size())

	for i := 0; i < 10; i++ {
		ht.Del(i)
	}
	assert.Equal(t, 10, ht.Size())
}

func TestDelOfMissingKeyPanics(t *testing.T) {
	ht := hashtable.MkHash(4)
	assert.Panics(t, func() { ht.Del(42) })
}

func TestIterStopsWhenCallbackReturnsTrue(t *testing.T) {
	ht := hashtable.MkHash(4)
	for i := 0; i < 10; i++ {
		ht.Set(i, i)
	}
	visited := 0
	stopped := ht.Iter(func(k, v interface{}) bool {
		visited++
		return visited == 3
	})
	assert.True(t, stopped)
	assert.Equal(t, 3, visited)
}

func TestStringKeys(t *testing.T) {
	ht := hashtable.MkHash(8)
	ht.Set("alpha", 1)
	ht.Set("beta", 2)

	v, ok := ht.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	elems := ht.Elems()
	assert.Len(t, elems, 2)
}
