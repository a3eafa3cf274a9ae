package pidfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRemove(t *testing.T) {
	pf := New(filepath.Join(t.TempDir(), "run", "pfortnerd.pid"))
	assert.False(t, pf.Exists())

	require.NoError(t, pf.Write())
	assert.True(t, pf.Exists())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, pf.Remove())
	assert.False(t, pf.Exists())

	// Removing twice is fine; the daemon removes on shutdown regardless of
	// how it got there.
	assert.NoError(t, pf.Remove())
}

func TestReadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfortnerd.pid")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	_, err := New(path).Read()
	assert.Error(t, err)
}
