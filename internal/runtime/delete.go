package runtime

import (
	"encoding/json"
	"fmt"

	"golang.org/x/sys/unix"

	"jailrun/internal/hook"
	"jailrun/internal/jail"
	"jailrun/internal/mountengine"
	"jailrun/internal/statestore"
	"jailrun/pkg/ocistate"
)

// DeleteOptions are the arguments to `jailrun delete`.
type DeleteOptions struct {
	ID    string
	Force bool
}

// Delete implements the `delete` verb: idempotent no-op if the state is
// already gone; SIGKILL a "created" container or a "running" one with
// --force; reject anything else; remove the jail, unmount volumes and
// any readonly-root alias, run poststop hooks, then remove the state
// directory.
func (rt *Runtime) Delete(opts DeleteOptions) (err error) {
	defer func() { rt.audit("delete", opts.ID, err) }()

	h := statestore.New(rt.Root, opts.ID, rt.Logger)
	if !h.Exists() {
		return nil
	}
	lk, err := h.Lock()
	if err != nil {
		return err
	}
	defer lk.Unlock()

	p, err := h.Load()
	if err != nil {
		return err
	}
	statestore.CheckStatus(p)

	switch p.Status {
	case ocistate.StatusStopped:
		// nothing to do
	case ocistate.StatusCreated:
		_ = unix.Kill(p.PID, unix.SIGKILL)
	case ocistate.StatusRunning:
		if !opts.Force {
			return fmt.Errorf("runtime: delete: container %s not in \"stopped\" or \"created\" state (currently %s)", opts.ID, p.Status)
		}
		_ = unix.Kill(p.PID, unix.SIGKILL)
	default:
		return fmt.Errorf("runtime: delete: container %s not in \"stopped\" or \"created\" state (currently %s)", opts.ID, p.Status)
	}

	j := jail.FindByJID(p.JID)
	if err := j.Remove(); err != nil {
		return err
	}

	rootPath := p.RootPath
	if p.RootReadonly && p.ReadonlyRootPath != "" {
		rootPath = p.ReadonlyRootPath
	}
	engine := mountengine.New(opts.ID, p.FileMountSupported, rt.Logger)
	if len(p.Config.Mounts) > 0 {
		if err := engine.Revert(rootPath, p.Config.Mounts, p.RemoveOnUnmount); err != nil {
			rt.Logger.WithError(err).Warn("error unmounting volumes during delete")
		}
	}
	if p.RootReadonly && p.ReadonlyRootPath != "" {
		if err := mountengine.Unmount(p.ReadonlyRootPath); err != nil {
			rt.Logger.WithError(err).Warn("error unmounting readonly root alias")
		}
	}

	if p.Config.Hooks != nil {
		report, _ := json.Marshal(p.ToOCIState(p.Config.Version))
		if err := hook.RunPhase(p.Config.Hooks.Poststop, report); err != nil {
			rt.Logger.WithError(err).Warn("poststop hooks failed")
		}
	}

	return h.RemoveAll()
}
