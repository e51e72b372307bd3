package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"jailrun/internal/hook"
	"jailrun/internal/jail"
	"jailrun/internal/mountengine"
	"jailrun/internal/reexec"
	"jailrun/internal/statestore"
	"jailrun/pkg/ocistate"
)

const reexecInitName = "jailrun-init"

func init() {
	reexec.Register(reexecInitName, runInit)
}

// CreateOptions are the arguments to `jailrun create`.
type CreateOptions struct {
	ID            string
	Bundle        string
	ConsoleSocket string
	PIDFile       string
	PreserveFds   int  // additional descriptors above 0/1/2 to leave open across exec
	TestValidate  bool // --testing=validation: stop after config validation
}

const (
	annotationParentJail = "org.freebsd.parentJail"
	annotationVNet       = "org.freebsd.jail.vnet"
)

// Create implements the `create` verb: parse and validate config.json,
// build the jail configuration, mount the root filesystem and volumes,
// run createRuntime hooks (createContainer hooks run in the container-init
// child), and leave the container's entry process blocked on the start
// FIFO.
func (rt *Runtime) Create(opts CreateOptions) (err error) {
	defer func() { rt.audit("create", opts.ID, err) }()

	configPath := filepath.Join(opts.Bundle, "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("runtime: read %s: %w", configPath, err)
	}
	var spec specs.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("runtime: parse config.json: %w", err)
	}
	if err := checkOCIVersion(spec.Version); err != nil {
		return err
	}
	if spec.Root == nil || spec.Root.Path == "" {
		return fmt.Errorf("runtime: config.json root.path is required")
	}
	if spec.Process == nil {
		return fmt.Errorf("runtime: config.json process is required")
	}
	if err := validateHooks(spec.Hooks); err != nil {
		return err
	}

	rootPath := spec.Root.Path
	if !filepath.IsAbs(rootPath) {
		rootPath = filepath.Join(opts.Bundle, rootPath)
	}
	rootReadonly := spec.Root.Readonly

	if opts.TestValidate {
		rt.Logger.WithField("id", opts.ID).Info("config validated")
		return nil
	}

	h := statestore.New(rt.Root, opts.ID, rt.Logger)
	if err := h.Create(false); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	lk, err := h.Lock()
	if err != nil {
		return err
	}
	defer lk.Unlock()

	persisted := &ocistate.Persisted{
		ID:           opts.ID,
		Bundle:       opts.Bundle,
		Config:       spec,
		Status:       ocistate.StatusCreating,
		RootPath:     rootPath,
		RootReadonly: rootReadonly,
	}
	if pj, ok := spec.Annotations[annotationParentJail]; ok {
		persisted.ParentJail = pj
	}
	if vnet, ok := spec.Annotations[annotationVNet]; ok {
		if vnet != "new" && vnet != "inherit" {
			return fmt.Errorf("runtime: %s must be \"new\" or \"inherit\"", annotationVNet)
		}
		persisted.VNetMode = vnet
	}
	if err := h.Save(persisted); err != nil {
		return err
	}

	jconf, err := buildJailConfig(opts.ID, persisted)
	if err != nil {
		return err
	}

	readonlyRootPath := ""
	engine := mountengine.New(opts.ID, nil, rt.Logger)
	var removeOnUnmount []string
	if rootReadonly {
		// Two-pass read-only root: pass one only prepares mount points
		// against the real root (creating mount-point directories and
		// moving aside anything a file mount will shadow, no real mount
		// syscall), then the root is aliased read-only via nullfs, then
		// pass two performs the real mounts against the read-only alias
		// so bind mounts land in the place the container will actually
		// see.
		rmA, err := engine.Apply(rootPath, spec.Mounts, true)
		removeOnUnmount = append(removeOnUnmount, rmA...)
		if err != nil {
			return err
		}
		readonlyRootPath = filepath.Join(h.Dir(), "readonly_root")
		if err := os.MkdirAll(readonlyRootPath, 0755); err != nil {
			return fmt.Errorf("runtime: create readonly root alias dir: %w", err)
		}
		if err := nullfsROAlias(rootPath, readonlyRootPath); err != nil {
			return err
		}
		rmB, err := engine.Apply(readonlyRootPath, spec.Mounts, false)
		removeOnUnmount = append(removeOnUnmount, rmB...)
		if err != nil {
			return err
		}
		persisted.ReadonlyRootPath = readonlyRootPath
		jconf.MustSet("path", jail.StringParam(readonlyRootPath))
	} else {
		rm, err := engine.Apply(rootPath, spec.Mounts, false)
		removeOnUnmount = append(removeOnUnmount, rm...)
		if err != nil {
			return err
		}
		jconf.MustSet("path", jail.StringParam(rootPath))
	}
	persisted.RemoveOnUnmount = removeOnUnmount
	if fms := engine.FileMountSupported(); fms != nil {
		persisted.FileMountSupported = fms
	}

	if persisted.ParentJail != "" {
		parent, err := jail.Find(persisted.ParentJail)
		if err != nil {
			return fmt.Errorf("runtime: find parent jail %s: %w", persisted.ParentJail, err)
		}
		if err := parent.BumpChildrenMax(); err != nil {
			return fmt.Errorf("runtime: bump parent jail children.max: %w", err)
		}
	}

	j, err := jail.Create(jconf)
	if err != nil {
		return err
	}

	fifoPath := filepath.Join(h.Dir(), "start_wait")
	oldMask := unix.Umask(0077)
	mkfifoErr := unix.Mkfifo(fifoPath, 0600)
	unix.Umask(oldMask)
	if mkfifoErr != nil {
		return fmt.Errorf("runtime: mkfifo %s: %w", fifoPath, mkfifoErr)
	}

	sockPair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("runtime: socketpair: %w", err)
	}
	parentSock := os.NewFile(uintptr(sockPair[0]), "jailrun-coord-parent")
	childSock := os.NewFile(uintptr(sockPair[1]), "jailrun-coord-child")
	defer parentSock.Close()

	cmd, err := reexec.Command(reexecInitName, h.Dir())
	if err != nil {
		return err
	}
	cmd.ExtraFiles = []*os.File{childSock}
	cmd.Env = append(os.Environ(),
		"JAILRUN_ROOT="+rt.Root,
		"JAILRUN_ID="+opts.ID,
		"JAILRUN_CONSOLE_SOCKET="+opts.ConsoleSocket,
		"JAILRUN_PRESERVE_FDS="+strconv.Itoa(opts.PreserveFds),
	)
	if !spec.Process.Terminal {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	}
	if err := cmd.Start(); err != nil {
		childSock.Close()
		return fmt.Errorf("runtime: start container init: %w", err)
	}
	childSock.Close()

	persisted.PID = cmd.Process.Pid
	persisted.JID = j.JID()
	if opts.PIDFile != "" {
		if err := os.WriteFile(opts.PIDFile, []byte(strconv.Itoa(persisted.PID)), 0644); err != nil {
			return fmt.Errorf("runtime: write pid file: %w", err)
		}
	}
	if err := h.Save(persisted); err != nil {
		return err
	}

	report, _ := json.Marshal(persisted.ToOCIState(spec.Version))
	if spec.Hooks != nil {
		if err := hook.RunPhase(spec.Hooks.CreateRuntime, report); err != nil {
			return fmt.Errorf("runtime: createRuntime hooks: %w", err)
		}
	}

	// Signal the child to proceed into createContainer/attach/validate.
	if _, err := parentSock.Write([]byte{0}); err != nil {
		return fmt.Errorf("runtime: signal container init: %w", err)
	}
	status := make([]byte, 1)
	if _, err := parentSock.Read(status); err != nil {
		return fmt.Errorf("runtime: read container init status: %w", err)
	}
	if status[0] != 0 {
		persisted.Status = ocistate.StatusStopped
		_ = h.Save(persisted)
		return fmt.Errorf("runtime: container init failed validation")
	}

	persisted.Status = ocistate.StatusCreated
	return h.Save(persisted)
}

func validateHooks(hooks *specs.Hooks) error {
	if hooks == nil {
		return nil
	}
	phases := [][]specs.Hook{hooks.Prestart, hooks.CreateRuntime, hooks.CreateContainer, hooks.StartContainer, hooks.Poststart, hooks.Poststop}
	for _, phase := range phases {
		if err := hook.Validate(phase); err != nil {
			return err
		}
	}
	return nil
}

func buildJailConfig(id string, p *ocistate.Persisted) (*jail.Config, error) {
	cfg := jail.NewConfig()
	name := id
	if p.ParentJail != "" {
		name = p.ParentJail + "." + id
	}
	cfg.MustSet("name", jail.StringParam(name))
	cfg.MustSet("persist", jail.FlagParam{})
	cfg.MustSet("enforce_statfs", jail.Uint32Param(1))
	cfg.MustSet("allow.raw_sockets", jail.FlagParam{})

	// allow.chflags defaults on; a parent jail that doesn't have it set
	// itself can't grant it to a child, so inherit the parent's actual
	// live value instead.
	allowChflags := true
	if p.ParentJail != "" {
		parent, err := jail.Find(p.ParentJail)
		if err != nil {
			return nil, fmt.Errorf("runtime: find parent jail %s: %w", p.ParentJail, err)
		}
		v, err := parent.GetUint32("allow.chflags")
		if err != nil {
			return nil, fmt.Errorf("runtime: get parent jail allow.chflags: %w", err)
		}
		allowChflags = v != 0
	}
	if allowChflags {
		cfg.MustSet("allow.chflags", jail.FlagParam{})
	}

	if p.VNetMode == "new" {
		cfg.MustSet("vnet", jail.NSParam(jail.NSNew))
	} else {
		cfg.MustSet("ip4", jail.NSParam(jail.NSInherit))
		cfg.MustSet("ip6", jail.NSParam(jail.NSInherit))
	}

	if p.Config.Hostname != "" {
		cfg.MustSet("host.hostname", jail.StringParam(p.Config.Hostname))
		cfg.MustSet("host", jail.NSParam(jail.NSNew))
	} else {
		cfg.MustSet("host", jail.NSParam(jail.NSInherit))
	}

	return cfg, nil
}

// nullfsROAlias mounts a read-only nullfs alias of src at dst, used for
// the two-pass read-only-root flow: src keeps the prepared mount points,
// and the jail actually runs against a read-only view of it.
func nullfsROAlias(src, dst string) error {
	return mountengine.MountNullfsReadonly(src, dst)
}
