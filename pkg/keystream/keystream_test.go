package keystream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveDeterministic(t *testing.T) {
	k1, err := Derive([]byte("hunter2"))
	require.NoError(t, err)
	k2, err := Derive([]byte("hunter2"))
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestDeriveDistinctPassphrases(t *testing.T) {
	k1, err := Derive([]byte("hunter2"))
	require.NoError(t, err)
	k2, err := Derive([]byte("hunter3"))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestFillDeterministic(t *testing.T) {
	key, err := Derive([]byte("hunter2"))
	require.NoError(t, err)

	buf1 := make([]byte, 16)
	Fill(key, buf1)

	buf2 := make([]byte, 16)
	Fill(key, buf2)

	assert.Equal(t, buf1, buf2)
}

func TestFillRestartsEveryCall(t *testing.T) {
	key, err := Derive([]byte("hunter2"))
	require.NoError(t, err)

	small := make([]byte, 4)
	Fill(key, small)

	large := make([]byte, 32)
	Fill(key, large)

	// The first 4 bytes of any request are always the same prefix:
	// calls never carry a shared offset forward.
	assert.Equal(t, small, large[:4])
}

func TestFillEmptyIsNoop(t *testing.T) {
	key, err := Derive([]byte("hunter2"))
	require.NoError(t, err)

	var buf []byte
	assert.NotPanics(t, func() { Fill(key, buf) })
}
