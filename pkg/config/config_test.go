package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"echo", "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.ConfirmCount)
	assert.Nil(t, cfg.FakePID)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, []string{"echo", "hi"}, cfg.Argv)
}

func TestParseFakePIDDefault(t *testing.T) {
	cfg, err := Parse([]string{"-p", "--", "echo"})
	require.NoError(t, err)
	require.NotNil(t, cfg.FakePID)
	assert.Equal(t, uint64(2), *cfg.FakePID)
}

func TestParseFakePIDExplicit(t *testing.T) {
	cfg, err := Parse([]string{"-p7", "--", "echo"})
	require.NoError(t, err)
	require.NotNil(t, cfg.FakePID)
	assert.Equal(t, uint64(7), *cfg.FakePID)
}

func TestParseMissingCommandIsUsageError(t *testing.T) {
	_, err := Parse([]string{"-v"})
	assert.Error(t, err)
}

func TestReadPassphraseFileTruncatesAtNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pass")
	require.NoError(t, os.WriteFile(path, []byte("hunter2\ngarbage"), 0o600))

	got, err := ReadPassphraseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)
}

func TestReadPassphraseFileNoNewlineWithinBound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pass")
	require.NoError(t, os.WriteFile(path, []byte("hunter2"), 0o600))

	got, err := ReadPassphraseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)
}

func TestReadPassphraseFileTooLongWithoutNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pass")
	long := make([]byte, maxPassphraseFileBytes+10)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, os.WriteFile(path, long, 0o600))

	_, err := ReadPassphraseFile(path)
	assert.Error(t, err)
}
