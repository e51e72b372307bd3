// Package hook runs OCI lifecycle hooks: validate each phase's hook list
// for shape, then fork+exec each hook with the OCI state document piped
// to its stdin.
package hook

import (
	"bytes"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

// Validate checks that every hook in a phase has a path and, when
// present, well-formed args/env/timeout. specs.Hook's JSON decoding
// already enforces that args/env are string arrays; this only checks
// what JSON typing alone can't.
func Validate(hooks []specs.Hook) error {
	for i, h := range hooks {
		if h.Path == "" {
			return fmt.Errorf("hook: hook[%d] must have a path", i)
		}
		if h.Timeout != nil && *h.Timeout < 0 {
			return fmt.Errorf("hook: hook[%d] timeout must not be negative", i)
		}
	}
	return nil
}

// Run executes a single hook, piping report (the OCI state document JSON)
// to its stdin, and returns its exit code. A positive Timeout kills the
// hook's process group if it hasn't exited by the deadline. A hook ended
// by a signal reports 127 plus the signal number.
func Run(h specs.Hook, report []byte) (int, error) {
	argv := append([]string{h.Path}, h.Args...)

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("hook: create stdin pipe: %w", err)
	}

	env := os.Environ()
	if h.Env != nil {
		env = h.Env
	}

	attr := &os.ProcAttr{
		Files: []*os.File{stdinR, os.Stdout, os.Stderr},
		Env:   env,
		Sys:   &syscall.SysProcAttr{Setpgid: true},
	}
	proc, err := os.StartProcess(h.Path, argv, attr)
	stdinR.Close()
	if err != nil {
		stdinW.Close()
		return 0, fmt.Errorf("hook: exec %s: %w", h.Path, err)
	}

	go func() {
		defer stdinW.Close()
		_, _ = bytes.NewReader(report).WriteTo(stdinW)
	}()

	if h.Timeout != nil && *h.Timeout > 0 {
		timer := time.AfterFunc(time.Duration(*h.Timeout)*time.Second, func() {
			_ = unix.Kill(-proc.Pid, unix.SIGKILL)
		})
		defer timer.Stop()
	}

	state, err := proc.Wait()
	if err != nil {
		return 0, fmt.Errorf("hook: wait for %s: %w", h.Path, err)
	}
	return exitCode(state), nil
}

// RunPhase runs every hook in a phase's list in order, stopping at the
// first failure (an exit code != 0), matching run_hooks' sequential
// all-must-succeed semantics.
func RunPhase(hooks []specs.Hook, report []byte) error {
	for i, h := range hooks {
		code, err := Run(h, report)
		if err != nil {
			return fmt.Errorf("hook: phase hook[%d]: %w", i, err)
		}
		if code != 0 {
			return fmt.Errorf("hook: phase hook[%d] (%s) exited with status %d", i, h.Path, code)
		}
	}
	return nil
}

func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			return 127 + int(ws.Signal())
		}
		return ws.ExitStatus()
	}
	return state.ExitCode()
}
