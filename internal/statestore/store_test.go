package statestore

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jailrun/pkg/ocistate"
)

func discardLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestCreateExistsLoadSaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	h := New(root, "c1", discardLogger())

	assert.False(t, h.Exists())
	require.NoError(t, h.Create(false))
	assert.False(t, h.Exists(), "Exists requires state.json, not just the directory")

	p := &ocistate.Persisted{
		ID:     "c1",
		Bundle: "/bundles/c1",
		Status: ocistate.StatusCreated,
		PID:    1234,
		JID:    7,
	}
	require.NoError(t, h.Save(p))
	assert.True(t, h.Exists())

	assert.ErrorIs(t, h.Create(false), ErrExists)
	require.NoError(t, h.Create(true))

	loaded, err := h.Load()
	require.NoError(t, err)
	assert.Equal(t, p.ID, loaded.ID)
	assert.Equal(t, p.Bundle, loaded.Bundle)
	assert.Equal(t, p.Status, loaded.Status)
	assert.Equal(t, p.PID, loaded.PID)
	assert.Equal(t, p.JID, loaded.JID)
}

func TestCreateRecoversFromStaleDirectory(t *testing.T) {
	root := t.TempDir()
	h := New(root, "c1", discardLogger())
	require.NoError(t, h.Create(false))

	// Simulate a crash after mkdir but before state.json was ever
	// written: residue from a partial create, not an existing container.
	require.NoError(t, os.WriteFile(h.Dir()+"/garbage", []byte("x"), 0600))
	assert.False(t, h.Exists())

	require.NoError(t, h.Create(false))
	_, err := os.Stat(h.Dir() + "/garbage")
	assert.True(t, os.IsNotExist(err), "stale residue should be wiped, not preserved")
}

func TestLoadMissingReturnsErrNotExist(t *testing.T) {
	root := t.TempDir()
	h := New(root, "ghost", discardLogger())
	require.NoError(t, h.Create(false))

	_, err := h.Load()
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLockIsSingleHolder(t *testing.T) {
	root := t.TempDir()
	h := New(root, "c1", discardLogger())
	require.NoError(t, h.Create(false))

	lk, err := h.Lock()
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		h2 := New(root, "c1", discardLogger())
		lk2, err := h2.Lock()
		if err == nil {
			lk2.Unlock()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock acquired while first holder still held it")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, lk.Unlock())
	// Unlock is idempotent.
	require.NoError(t, lk.Unlock())

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second Lock never acquired after first holder released it")
	}
}

func TestCheckStatusMarksDeadProcessStopped(t *testing.T) {
	p := &ocistate.Persisted{Status: ocistate.StatusRunning, PID: 0}
	CheckStatus(p)
	assert.Equal(t, ocistate.StatusStopped, p.Status)
}

func TestCheckStatusLeavesStoppedAlone(t *testing.T) {
	p := &ocistate.Persisted{Status: ocistate.StatusStopped, PID: 0}
	CheckStatus(p)
	assert.Equal(t, ocistate.StatusStopped, p.Status)
}
