package runtime

import (
	"os"

	"jailrun/internal/statestore"
	"jailrun/pkg/ocistate"
)

// ListEntry is one row of `jailrun list`'s output.
type ListEntry struct {
	ID     string        `json:"id"`
	PID    int           `json:"pid"`
	Status ocistate.Status `json:"status"`
	Bundle string        `json:"bundle"`
}

// List implements the `list` verb: scan every container directory under
// root, refresh its status, and report stopped containers with pid 0.
func (rt *Runtime) List() ([]ListEntry, error) {
	entries, err := os.ReadDir(rt.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []ListEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		h := statestore.New(rt.Root, id, rt.Logger)
		if !h.Exists() {
			continue
		}
		lk, err := h.Lock()
		if err != nil {
			continue
		}
		p, err := h.Load()
		if err == nil {
			statestore.CheckStatus(p)
			_ = h.Save(p)
			pid := p.PID
			if p.Status == ocistate.StatusStopped {
				pid = 0
			}
			out = append(out, ListEntry{ID: id, PID: pid, Status: p.Status, Bundle: p.Bundle})
		}
		lk.Unlock()
	}
	return out, nil
}
