package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "standings.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`{"n":1}`), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(data))

	// Overwrites replace the whole file.
	require.NoError(t, WriteFileAtomic(path, []byte(`{"n":2}`), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, string(data))
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	require.NoError(t, WriteFileAtomic(filepath.Join(dir, "out"), []byte("x"), 0o600))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomicBadDirectory(t *testing.T) {
	t.Parallel()
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "out"), []byte("x"), 0o644)
	assert.Error(t, err)
}
