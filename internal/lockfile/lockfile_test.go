package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseCycle(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "pfortnerd.lock"))

	require.NoError(t, lock.TryAcquire())
	assert.True(t, lock.Locked())
	assert.Equal(t, os.Getpid(), lock.PID())

	require.NoError(t, lock.Release())
	assert.False(t, lock.Locked())

	// A released lock is acquirable again.
	require.NoError(t, lock.TryAcquire())
	lock.Release()
}

func TestSecondInstanceRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfortnerd.lock")

	first := New(path)
	require.NoError(t, first.TryAcquire())
	defer first.Release()

	second := New(path)
	err := second.TryAcquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, second.Locked())
}

func TestStaleLockFromDeadOwnerReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfortnerd.lock")

	// Lock left by a pid that no longer exists.
	content := fmt.Sprintf("%d\n%s\n", 99999, time.Now().Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	lock := New(path)
	require.NoError(t, lock.TryAcquire())
	defer lock.Release()
	assert.True(t, lock.Locked())
}

func TestStaleLockByAgeReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfortnerd.lock")

	// Owner pid resolves (it is us) but the lock predates staleAge.
	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().Add(-2*time.Hour).Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	lock := New(path)
	require.NoError(t, lock.TryAcquire())
	defer lock.Release()
}

func TestMalformedLockReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfortnerd.lock")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0644))

	lock := New(path)
	require.NoError(t, lock.TryAcquire())
	defer lock.Release()
}

func TestReleaseWithoutAcquireIsNoop(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "pfortnerd.lock"))
	assert.NoError(t, lock.Release())
}
