package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"jailrun/internal/hook"
	"jailrun/internal/jail"
	"jailrun/internal/process"
	"jailrun/internal/statestore"
	"jailrun/pkg/ocistate"
)

// runInit is the body re-exec'd as "jailrun-init <state-dir>": the
// container-init child branch of create, run as a separate process since
// a multi-threaded Go process cannot safely fork() without exec. It talks
// to the parent over the inherited fd 3 (the child end of the
// coordination socketpair), then blocks on the start FIFO until released
// by `jailrun start`.
func runInit() {
	if err := doRunInit(); err != nil {
		fmt.Fprintln(os.Stderr, "jailrun-init:", err)
		os.Exit(1)
	}
}

func doRunInit() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("missing state directory argument")
	}
	stateDir := os.Args[1]

	sock := os.NewFile(3, "jailrun-coord-child")
	if sock == nil {
		return fmt.Errorf("coordination socket (fd 3) not inherited")
	}
	defer sock.Close()

	data, err := os.ReadFile(stateDir + "/state.json")
	if err != nil {
		return fmt.Errorf("read state.json: %w", err)
	}
	var persisted ocistate.Persisted
	if err := json.Unmarshal(data, &persisted); err != nil {
		return fmt.Errorf("unmarshal state.json: %w", err)
	}

	consoleSocket := os.Getenv("JAILRUN_CONSOLE_SOCKET")
	proc, err := process.New(persisted.Config.Process, consoleSocket)
	if err != nil {
		return err
	}
	stdio, err := proc.PreStart()
	if err != nil {
		return err
	}

	fifoPath := stateDir + "/start_wait"
	fifo, err := os.OpenFile(fifoPath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open start_wait: %w", err)
	}

	// Wait for the parent's coordination byte: it is sent only after
	// createRuntime hooks have run and state has pid/jid recorded.
	coord := make([]byte, 1)
	if _, err := sock.Read(coord); err != nil {
		return fmt.Errorf("read coordination byte: %w", err)
	}
	if data, err := os.ReadFile(stateDir + "/state.json"); err == nil {
		var recorded ocistate.Persisted
		if json.Unmarshal(data, &recorded) == nil {
			persisted = recorded
		}
	}

	if err := os.Chdir(persisted.RootPath); err != nil {
		return reportInitFailure(sock, fmt.Errorf("chdir %s: %w", persisted.RootPath, err))
	}

	report, _ := json.Marshal(persisted.ToOCIState(persisted.Config.Version))
	if persisted.Config.Hooks != nil {
		if err := hook.RunPhase(persisted.Config.Hooks.CreateContainer, report); err != nil {
			return reportInitFailure(sock, err)
		}
	}

	j := jail.FindByJID(persisted.JID)
	if err := j.Attach(); err != nil {
		return reportInitFailure(sock, fmt.Errorf("jail attach: %w", err))
	}

	if err := proc.Validate(); err != nil {
		return reportInitFailure(sock, err)
	}

	if _, err := sock.Write([]byte{0}); err != nil {
		return fmt.Errorf("write status byte: %w", err)
	}
	sock.Close()

	// Block until `jailrun start` writes a byte to the FIFO.
	blocker := make([]byte, 1)
	_, _ = fifo.Read(blocker)
	fifo.Close()

	h := statestore.New(os.Getenv("JAILRUN_ROOT"), os.Getenv("JAILRUN_ID"), nil)
	refreshed, err := h.Load()
	if err == nil {
		persisted = *refreshed
	}
	if persisted.Config.Hooks != nil {
		report, _ = json.Marshal(persisted.ToOCIState(persisted.Config.Version))
		if err := hook.RunPhase(persisted.Config.Hooks.StartContainer, report); err != nil {
			return err
		}
	}

	preserveFds, _ := strconv.Atoi(os.Getenv("JAILRUN_PRESERVE_FDS"))
	return proc.Exec(stdio, preserveFds)
}

func reportInitFailure(sock *os.File, cause error) error {
	fmt.Fprintln(os.Stderr, "jailrun-init:", cause)
	_, _ = sock.Write([]byte{1})
	return cause
}
