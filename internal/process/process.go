// Package process builds and runs the container's entry process:
// validate the OCI process spec, prepare standard descriptors (or a
// pty), resolve the executable against PATH once attached to the jail,
// then exec.
package process

import (
	"fmt"
	"os"
	"strings"

	"github.com/opencontainers/runtime-spec/specs-go"
)

// Process wraps a validated specs.Process ready to run inside a jail.
type Process struct {
	spec          *specs.Process
	consoleSocket string

	// resolvedPath is the absolute executable path Validate resolved
	// args[0] to, via PATH search when args[0] isn't already absolute.
	// Exec execs this path directly rather than re-running a PATH search.
	resolvedPath string
}

// New validates proc against the OCI process schema: cwd required, args
// non-empty, terminal/console-socket pairing.
func New(proc *specs.Process, consoleSocket string) (*Process, error) {
	if proc == nil {
		return nil, fmt.Errorf("process: process spec is required")
	}
	if proc.Cwd == "" {
		return nil, fmt.Errorf("process: cwd is required")
	}
	if len(proc.Args) == 0 {
		return nil, fmt.Errorf("process: args must be non-empty")
	}
	if proc.Terminal && consoleSocket == "" {
		return nil, fmt.Errorf("process: terminal requires a console socket")
	}
	if !proc.Terminal && consoleSocket != "" {
		return nil, fmt.Errorf("process: console socket given but terminal is false")
	}
	return &Process{spec: proc, consoleSocket: consoleSocket}, nil
}

// Spec exposes the underlying OCI process description.
func (p *Process) Spec() *specs.Process { return p.spec }

// getenv searches the process's own configured environment; it never
// consults the runtime's own environment.
func (p *Process) getenv(key string) (string, bool) {
	prefix := key + "="
	for _, kv := range p.spec.Env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

// gids returns the full supplementary group list: primary gid first,
// then AdditionalGids.
func (p *Process) gids() []uint32 {
	if p.spec.User.GID == 0 && len(p.spec.User.AdditionalGids) == 0 {
		return nil
	}
	out := make([]uint32, 0, 1+len(p.spec.User.AdditionalGids))
	out = append(out, p.spec.User.GID)
	out = append(out, p.spec.User.AdditionalGids...)
	return out
}

// Validate checks that args[0] resolves to an executable regular file,
// searching the process's own PATH for a relative args[0]: split PATH on
// ':', join with each directory, use the first hit. This runs after jail
// attachment, so every path here is already relative to the container's
// own filesystem view; it never composes with a host rootfs path. The
// resolved absolute path is remembered for Exec, which execs it directly
// rather than repeating the PATH search the way a bare execve(2) cannot.
func (p *Process) Validate() error {
	arg0 := p.spec.Args[0]
	if strings.HasPrefix(arg0, "/") {
		if err := checkExecutable(arg0); err != nil {
			return err
		}
		p.resolvedPath = arg0
		return nil
	}

	pathEnv, _ := p.getenv("PATH")
	for _, dir := range strings.Split(pathEnv, ":") {
		candidate := strings.TrimRight(dir, "/") + "/" + arg0
		if err := checkExecutable(candidate); err == nil {
			p.resolvedPath = candidate
			return nil
		}
	}
	return fmt.Errorf("process: %s: no such executable in PATH", arg0)
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("process: %s is not a regular file", path)
	}
	if info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("process: %s is not executable", path)
	}
	return nil
}
