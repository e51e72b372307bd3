// Package reexec lets the jailrun binary re-invoke itself as a different
// "command" to run init-stage code in a freshly exec'd process. create
// and exec use this instead of fork(2): a multi-threaded Go process
// cannot safely fork without exec, so a parent/child coordination
// protocol is built as spawn-a-subprocess-of-myself-and-talk-over-a-socket
// instead.
package reexec

import (
	"os"
	"os/exec"
)

var registeredInitializers = make(map[string]func())

// Register adds an initializer under name, to be run when Init finds
// os.Args[0] equal to name in a re-exec'd process.
func Register(name string, initializer func()) {
	registeredInitializers[name] = initializer
}

// Init runs the registered initializer for os.Args[0], returning true if
// one was found and run (in which case the caller should exit rather than
// proceed to normal CLI parsing).
func Init() bool {
	initializer, ok := registeredInitializers[os.Args[0]]
	if ok {
		initializer()
		return true
	}
	return false
}

// Command builds an *exec.Cmd that re-execs the current binary with
// args[0] set to name, so the child's Init() call dispatches to the
// initializer registered under that name.
func Command(name string, args ...string) (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, err
	}
	cmd := &exec.Cmd{
		Path: self,
		Args: append([]string{name}, args...),
	}
	return cmd, nil
}
