package runtime

import (
	"encoding/json"
	"fmt"
	"os"

	"jailrun/internal/hook"
	"jailrun/internal/statestore"
	"jailrun/pkg/ocistate"
)

// Start implements the `start` verb: transition a created container to
// running, run prestart hooks, unblock the entry process waiting on the
// start FIFO, then run poststart hooks.
func (rt *Runtime) Start(id string) (err error) {
	defer func() { rt.audit("start", id, err) }()

	h := statestore.New(rt.Root, id, rt.Logger)
	lk, err := h.Lock()
	if err != nil {
		return err
	}
	defer lk.Unlock()

	p, err := h.Load()
	if err != nil {
		return err
	}
	if p.Status != ocistate.StatusCreated {
		return fmt.Errorf("runtime: start: container %s not in \"created\" state (currently %s)", id, p.Status)
	}
	p.Status = ocistate.StatusRunning
	if err := h.Save(p); err != nil {
		return err
	}

	report, _ := json.Marshal(p.ToOCIState(p.Config.Version))
	if p.Config.Hooks != nil {
		if err := hook.RunPhase(p.Config.Hooks.Prestart, report); err != nil {
			return fmt.Errorf("runtime: prestart hooks: %w", err)
		}
	}

	fifoPath := h.Dir() + "/start_wait"
	fifo, err := os.OpenFile(fifoPath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("runtime: open start fifo: %w", err)
	}
	if _, err := fifo.Write([]byte{0}); err != nil {
		fifo.Close()
		return fmt.Errorf("runtime: write start fifo: %w", err)
	}
	fifo.Close()

	if p.Config.Hooks != nil {
		if err := hook.RunPhase(p.Config.Hooks.Poststart, report); err != nil {
			return fmt.Errorf("runtime: poststart hooks: %w", err)
		}
	}
	return nil
}
