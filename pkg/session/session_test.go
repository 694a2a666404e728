package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddRemove(t *testing.T) {
	table := NewTable(2)

	require.NoError(t, table.Add(3))
	assert.True(t, table.Contains(3))

	table.Remove(3)
	assert.False(t, table.Contains(3))

	// Removing something absent is a no-op, not an error.
	table.Remove(99)
}

func TestTableNoDuplicates(t *testing.T) {
	table := NewTable(1)
	require.NoError(t, table.Add(5))
	require.NoError(t, table.Add(5))
	assert.Equal(t, 1, table.Len())
}

func TestTableCapacityError(t *testing.T) {
	table := NewTable(1)
	require.NoError(t, table.Add(1))
	err := table.Add(2)
	assert.Error(t, err)
}

func TestTableFailsClosedAtSeventeen(t *testing.T) {
	table := NewTable(DefaultTableCapacity)
	for fd := 0; fd < DefaultTableCapacity; fd++ {
		require.NoError(t, table.Add(fd))
	}
	err := table.Add(DefaultTableCapacity)
	assert.Error(t, err)
}

func TestScratchGrowsMonotonically(t *testing.T) {
	sess := New([32]byte{}, DefaultTableCapacity, false, nil, 0)

	buf, err := sess.Scratch(16)
	require.NoError(t, err)
	assert.Len(t, buf, 16)

	bigger, err := sess.Scratch(64)
	require.NoError(t, err)
	assert.Len(t, bigger, 64)

	smaller, err := sess.Scratch(8)
	require.NoError(t, err)
	assert.Len(t, smaller, 8)
	// backing array never shrinks even when the request does
	assert.GreaterOrEqual(t, cap(sess.scratch), 64)
}

func TestSessionCloseZeroesKey(t *testing.T) {
	key := [32]byte{}
	for i := range key {
		key[i] = byte(i + 1)
	}
	sess := New(key, DefaultTableCapacity, false, nil, 0)
	sess.Close()
	assert.Equal(t, [32]byte{}, sess.Key())
}
