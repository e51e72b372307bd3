package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/opencontainers/runtime-spec/specs-go"

	"jailrun/internal/jail"
	"jailrun/internal/process"
	"jailrun/internal/reexec"
	"jailrun/internal/statestore"
)

const reexecExecInitName = "jailrun-exec-init"

func init() {
	reexec.Register(reexecExecInitName, runExecInit)
}

// ExecOptions are the arguments to `jailrun exec`.
type ExecOptions struct {
	ID            string
	ProcessPath   string // path to a process.json describing the command to run
	ConsoleSocket string
	PIDFile       string
	PreserveFds   int  // additional descriptors above 0/1/2 to leave open across exec
	TTY           bool // --tty: force terminal=true regardless of process.json
	Detach        bool
	TestValidate  bool // --testing=validation: stop after process validation
}

// Exec implements the `exec` verb: attach a new process to the
// container's existing jail, validate its executable, and run it either
// in the foreground (the exec command itself becomes that process via
// execve) or detached (a re-exec'd child runs it in the background and
// exec returns once it's launched).
func (rt *Runtime) Exec(opts ExecOptions) (err error) {
	defer func() { rt.audit("exec", opts.ID, err) }()

	data, err := os.ReadFile(opts.ProcessPath)
	if err != nil {
		return fmt.Errorf("runtime: read %s: %w", opts.ProcessPath, err)
	}
	var execProc specs.Process
	if err := json.Unmarshal(data, &execProc); err != nil {
		return fmt.Errorf("runtime: parse process json: %w", err)
	}
	if opts.TTY {
		execProc.Terminal = true
	}

	proc, err := process.New(&execProc, opts.ConsoleSocket)
	if err != nil {
		return err
	}
	if opts.TestValidate {
		rt.Logger.WithField("id", opts.ID).Info("process validated")
		return nil
	}

	h := statestore.New(rt.Root, opts.ID, rt.Logger)
	if !h.Exists() {
		return fmt.Errorf("runtime: exec: container %s not found", opts.ID)
	}
	p, err := h.Load()
	if err != nil {
		return err
	}

	if !opts.Detach {
		stdio, err := proc.PreStart()
		if err != nil {
			return err
		}
		if err := jail.FindByJID(p.JID).Attach(); err != nil {
			return fmt.Errorf("runtime: exec: jail attach: %w", err)
		}
		if err := proc.Validate(); err != nil {
			return err
		}
		return proc.Exec(stdio, opts.PreserveFds) // never returns on success
	}

	cmd, err := reexec.Command(reexecExecInitName, h.Dir(), opts.ProcessPath)
	if err != nil {
		return err
	}
	cmd.Env = append(os.Environ(),
		"JAILRUN_CONSOLE_SOCKET="+opts.ConsoleSocket,
		"JAILRUN_PRESERVE_FDS="+strconv.Itoa(opts.PreserveFds),
	)
	if opts.TTY {
		cmd.Env = append(cmd.Env, "JAILRUN_TTY=1")
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("runtime: exec: start detached process: %w", err)
	}
	if opts.PIDFile != "" {
		if err := os.WriteFile(opts.PIDFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
			return fmt.Errorf("runtime: exec: write pid file: %w", err)
		}
	}
	return nil
}

// runExecInit is the re-exec'd body for a detached `exec`:
// "jailrun-exec-init <state-dir> <process-json-path>".
func runExecInit() {
	if err := doRunExecInit(); err != nil {
		fmt.Fprintln(os.Stderr, "jailrun-exec-init:", err)
		os.Exit(1)
	}
}

func doRunExecInit() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("missing state directory or process path argument")
	}
	stateDir, processPath := os.Args[1], os.Args[2]

	stateData, err := os.ReadFile(stateDir + "/state.json")
	if err != nil {
		return fmt.Errorf("read state.json: %w", err)
	}
	var persisted struct {
		JID int32 `json:"jid"`
	}
	if err := json.Unmarshal(stateData, &persisted); err != nil {
		return fmt.Errorf("unmarshal state.json: %w", err)
	}

	procData, err := os.ReadFile(processPath)
	if err != nil {
		return fmt.Errorf("read process json: %w", err)
	}
	var execProc specs.Process
	if err := json.Unmarshal(procData, &execProc); err != nil {
		return fmt.Errorf("parse process json: %w", err)
	}
	if os.Getenv("JAILRUN_TTY") == "1" {
		execProc.Terminal = true
	}

	proc, err := process.New(&execProc, os.Getenv("JAILRUN_CONSOLE_SOCKET"))
	if err != nil {
		return err
	}
	stdio, err := proc.PreStart()
	if err != nil {
		return err
	}
	if err := jail.FindByJID(persisted.JID).Attach(); err != nil {
		return fmt.Errorf("jail attach: %w", err)
	}
	if err := proc.Validate(); err != nil {
		return err
	}
	preserveFds, _ := strconv.Atoi(os.Getenv("JAILRUN_PRESERVE_FDS"))
	return proc.Exec(stdio, preserveFds)
}
