package runtime

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/moby/sys/signal"
	"golang.org/x/sys/unix"

	"jailrun/internal/statestore"
	"jailrun/pkg/ocistate"
)

// Kill implements the `kill` verb: send a signal (by number or name,
// decimal tried first) to the container's entry process, or to its whole
// process group with --all.
func (rt *Runtime) Kill(id, sigName string, all bool) (err error) {
	defer func() { rt.audit("kill", id, err) }()

	sig := unix.SIGTERM
	if sigName != "" {
		s, err := parseSignal(sigName)
		if err != nil {
			return err
		}
		sig = s
	}

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
	if p.Status != ocistate.StatusCreated && p.Status != ocistate.StatusRunning {
		return nil
	}

	target := p.PID
	if all {
		target = -p.PID
	}
	if err := unix.Kill(target, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("runtime: kill: sending signal to pid %d: %w", p.PID, err)
	}
	return nil
}

// parseSignal tries a decimal signal number first, then falls back to
// moby/sys/signal's name table.
func parseSignal(name string) (unix.Signal, error) {
	if n, err := strconv.Atoi(name); err == nil {
		return unix.Signal(n), nil
	}
	sig, err := signal.ParseSignal(name)
	if err != nil {
		return 0, fmt.Errorf("runtime: unknown signal %q", name)
	}
	return unix.Signal(sig), nil
}
