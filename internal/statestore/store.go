// Package statestore manages the on-disk record of a single container
// under <root>/<id>/. Layout and atomic-write discipline follow a write
// to a temp file under the same directory, then rename over the target
// so a reader never observes a partially written state.json.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"jailrun/pkg/ocistate"
)

const (
	stateFileName = "state.json"
	lockFileName  = "state.lock"
)

// ErrExists is returned by Create when a container with the same ID
// already has a state.json.
var ErrExists = errors.New("statestore: container already exists")

// ErrNotExist is returned by Lock when no state directory exists for the
// given ID, and by Load when no state.json exists.
var ErrNotExist = errors.New("statestore: container does not exist")

// Handle scopes state-store operations to one container ID under root.
type Handle struct {
	root   string
	id     string
	dir    string
	logger *logrus.Entry
	lock   *Lock
}

// New returns a Handle for container id under the runtime root directory.
func New(root, id string, logger *logrus.Entry) *Handle {
	return &Handle{
		root:   root,
		id:     id,
		dir:    filepath.Join(root, id),
		logger: logger,
	}
}

// Dir returns the container's state directory.
func (h *Handle) Dir() string { return h.dir }

// Exists reports whether a container already exists for this ID: true
// iff state.json is a regular file. A state directory that exists
// without a state.json is residue from a create that crashed before
// ever recording state, not an existing container.
func (h *Handle) Exists() bool {
	info, err := os.Stat(filepath.Join(h.dir, stateFileName))
	return err == nil && info.Mode().IsRegular()
}

// Create makes the state directory. When allowExisting is false (the
// default outside --testing=validation) it fails with ErrExists if
// state.json is already present, matching the OCI requirement that
// create fail for a duplicate ID. A state directory left behind by a
// create that crashed before writing state.json is stale residue, not
// an existing container, so it's wiped and recreated clean.
func (h *Handle) Create(allowExisting bool) error {
	if h.Exists() {
		if allowExisting {
			return nil
		}
		return ErrExists
	}
	if err := os.RemoveAll(h.dir); err != nil {
		return fmt.Errorf("statestore: remove stale directory: %w", err)
	}
	if err := os.MkdirAll(h.dir, 0700); err != nil {
		return fmt.Errorf("statestore: create directory: %w", err)
	}
	return nil
}

// Lock acquires an exclusive advisory lock on the container's lock file,
// blocking until it is available. The returned Lock's Unlock is idempotent.
// Unlike Exists, this only requires the state directory itself (not
// state.json) to be present, since create locks the container before its
// first Save.
func (h *Handle) Lock() (*Lock, error) {
	if _, err := os.Stat(h.dir); err != nil {
		return nil, ErrNotExist
	}
	lk, err := lockFile(filepath.Join(h.dir, lockFileName))
	if err != nil {
		return nil, fmt.Errorf("statestore: lock: %w", err)
	}
	h.lock = lk
	return lk, nil
}

// Load reads and unmarshals state.json.
func (h *Handle) Load() (*ocistate.Persisted, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("statestore: read state: %w", err)
	}
	var p ocistate.Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("statestore: unmarshal state: %w", err)
	}
	return &p, nil
}

// Save atomically writes state.json: marshal, write to a temp file in the
// same directory, then rename over the target.
func (h *Handle) Save(p *ocistate.Persisted) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshal state: %w", err)
	}

	target := filepath.Join(h.dir, stateFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("statestore: write state: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("statestore: rename state: %w", err)
	}
	if h.logger != nil {
		h.logger.WithField("id", h.id).Debug("saved container state")
	}
	return nil
}

// RemoveAll deletes the entire state directory. Safe to call on an already
// removed container (matches delete's idempotency requirement at the
// directory layer; callers enforce the OCI idempotent-delete semantics at
// a higher level).
func (h *Handle) RemoveAll() error {
	if err := os.RemoveAll(h.dir); err != nil {
		return fmt.Errorf("statestore: remove state directory: %w", err)
	}
	return nil
}

// CheckStatus refreshes Status against the live process when the recorded
// status is "created" or "running": if the pid no longer exists, the
// container is reclassified as stopped. It does not persist the change;
// callers that need the refreshed value on disk must call Save.
func CheckStatus(p *ocistate.Persisted) {
	switch p.Status {
	case ocistate.StatusCreated, ocistate.StatusRunning:
		if p.PID <= 0 || !processAlive(p.PID) {
			p.Status = ocistate.StatusStopped
		}
	}
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return !errors.Is(err, syscall.ESRCH)
}

// Report renders the OCI state document for the given persisted record.
func Report(p *ocistate.Persisted, ociVersion string) *ocistate.OCIState {
	return p.ToOCIState(ociVersion)
}
