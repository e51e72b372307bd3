//go:build unix

package process

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Exec performs the final handoff into the container's entry process: it
// never returns on success. Reset every signal disposition to default,
// apply uid/gid/umask, wire up the given descriptors as 0/1/2, close
// everything at 3+preserveFds and up close-on-exec, then execve the path
// Validate resolved (falling back to argv[0] if Validate never ran) with
// an explicit argv/envv (never mutating the runtime's own os.Environ()),
// the equivalent of an execvp that already did its PATH search.
func (p *Process) Exec(stdio []*os.File, preserveFds int) error {
	if err := os.Chdir(p.spec.Cwd); err != nil {
		return fmt.Errorf("process: chdir %s: %w", p.spec.Cwd, err)
	}

	resetSignals()

	if err := setUIDGID(p); err != nil {
		return err
	}

	for i, f := range stdio {
		if f == nil {
			continue
		}
		if int(f.Fd()) != i {
			if err := unix.Dup2(int(f.Fd()), i); err != nil {
				return fmt.Errorf("process: dup2 fd %d: %w", i, err)
			}
		}
	}

	if preserveFds < 0 {
		preserveFds = 0
	}
	if err := unix.CloseRange(uint(3+preserveFds), ^uint(0), uint(unix.CLOSE_RANGE_CLOEXEC)); err != nil && err != unix.ENOSYS {
		return fmt.Errorf("process: close_range: %w", err)
	}

	path := p.resolvedPath
	if path == "" {
		path = p.spec.Args[0]
	}
	return unix.Exec(path, p.spec.Args, p.spec.Env)
}

// resetSignals restores every signal disposition to SIG_DFL and unblocks
// the full signal mask: a child process must never carry forward the
// runtime's own signal handling or blocked-signal state into the
// container's entry process.
func resetSignals() {
	signal.Reset()
	_ = unix.PthreadSigmask(unix.SIG_SETMASK, &unix.Sigset_t{}, nil)
}

func setUIDGID(p *Process) error {
	u := p.spec.User
	if gids := p.gids(); len(gids) > 0 {
		if err := unix.Setgroups(toInts(gids)); err != nil {
			return fmt.Errorf("process: setgroups: %w", err)
		}
	}
	if err := unix.Setgid(int(u.GID)); err != nil {
		return fmt.Errorf("process: setgid: %w", err)
	}
	if err := unix.Setuid(int(u.UID)); err != nil {
		return fmt.Errorf("process: setuid: %w", err)
	}
	if u.Umask != nil {
		unix.Umask(int(*u.Umask))
	}
	return nil
}

func toInts(gids []uint32) []int {
	out := make([]int, len(gids))
	for i, g := range gids {
		out[i] = int(g)
	}
	return out
}
