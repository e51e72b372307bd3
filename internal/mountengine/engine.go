package mountengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
)

// Engine applies and reverts an OCI mount list against a container's
// rootfs.
type Engine struct {
	containerID string
	logger      *logrus.Entry

	// fileMountSupported caches the nullfs file-mount emulation
	// discovery (spec §4.3.4) across the mounts in one Apply call and is
	// exposed so the caller can persist it for a later Revert in a
	// different process invocation.
	fileMountSupported *bool
}

// New returns an Engine for containerID, seeded with any previously
// discovered file-mount support flag (nil if undiscovered).
func New(containerID string, fileMountSupported *bool, logger *logrus.Entry) *Engine {
	return &Engine{containerID: containerID, fileMountSupported: fileMountSupported, logger: logger}
}

// FileMountSupported returns the (possibly still nil) discovery result.
func (e *Engine) FileMountSupported() *bool { return e.fileMountSupported }

// ledger accumulates paths created as a side effect of mounting, in
// creation order; Revert deletes them in descending lexicographic order.
type ledger struct {
	paths []string
}

func (l *ledger) add(p string) { l.paths = append(l.paths, p) }

// Apply mounts every entry in mounts under rootfs, in order. When
// prepareOnly is set it only resolves destinations, creates mount-point
// directories, and moves aside any file a file-mount will shadow — it
// runs no nmount(2) call and no pseudo-option hook. This is pass one of
// the two-pass read-only-root flow: pass two calls Apply again with
// prepareOnly false to perform the real mounts. On any failure of a real
// (non-prepareOnly) pass it attempts to unmount everything mounted so
// far before returning the original error, mirroring mount_volumes'
// try/catch cleanup-on-error behavior.
func (e *Engine) Apply(rootfs string, mounts []specs.Mount, prepareOnly bool) (removeOnUnmount []string, err error) {
	l := &ledger{}
	applied := 0
	for _, m := range mounts {
		if mErr := e.mountOne(rootfs, m, l, prepareOnly); mErr != nil {
			err = fmt.Errorf("mountengine: mount %s: %w", m.Destination, mErr)
			break
		}
		applied++
	}
	if err != nil {
		if !prepareOnly {
			for i := 0; i < applied; i++ {
				_ = e.unmountOne(rootfs, mounts[i])
			}
		}
		return l.paths, err
	}
	return l.paths, nil
}

func (e *Engine) mountOne(rootfs string, m specs.Mount, l *ledger, prepareOnly bool) error {
	destination, err := resolveDestination(rootfs, m.Destination)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	fstype := m.Type
	if fstype == "" {
		fstype = "nullfs"
	}
	if fstype == "bind" {
		// podman/buildah on FreeBSD still sometimes emit "bind"; nullfs
		// is the equivalent filesystem here.
		fstype = "nullfs"
	}

	isFileMount := fstype == "nullfs" && isRegularFile(m.Source)

	opts := []kv{{"fstype", fstype}, {"fspath", destination}}
	if fstype == "nullfs" {
		opts = append(opts, kv{"target", m.Source})
	}
	flags, pseudo, opts := mergeOptions(fstype, m.Options, 0, opts)

	if _, statErr := os.Stat(destination); statErr == nil {
		if isFileMount {
			if !isRegularFile(destination) {
				return fmt.Errorf("destination for file mount exists and is not a file")
			}
			saveDir, savePath := savePaths(destination, e.containerID)
			if _, err := os.Stat(saveDir); os.IsNotExist(err) {
				if err := os.MkdirAll(saveDir, 0700); err != nil {
					return fmt.Errorf("create save dir: %w", err)
				}
				l.add(saveDir)
			}
			if err := os.Rename(destination, savePath); err != nil {
				return fmt.Errorf("move aside existing file: %w", err)
			}
			if err := touchFile(destination); err != nil {
				return fmt.Errorf("recreate file mount point: %w", err)
			}
		} else if info, err := os.Stat(destination); err != nil || !info.IsDir() {
			return fmt.Errorf("destination for non-file mount exists and is not a directory")
		}
	} else {
		l.add(destination)
		if isFileMount {
			if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
				return fmt.Errorf("create parent directories: %w", err)
			}
			if err := touchFile(destination); err != nil {
				return fmt.Errorf("create file mount point: %w", err)
			}
		} else {
			if err := os.MkdirAll(destination, 0755); err != nil {
				return fmt.Errorf("create mount point: %w", err)
			}
		}
	}

	if prepareOnly {
		return nil
	}

	for _, p := range pseudo {
		if err := p.option.BeforeMount(destination, p.val); err != nil {
			return fmt.Errorf("pseudo-option before-mount: %w", err)
		}
	}

	if isFileMount {
		if err := e.applyFileMount(opts, flags, m.Source, destination); err != nil {
			return fmt.Errorf("file mount: %w", err)
		}
	} else {
		if err := nmount(opts, flags); err != nil {
			return fmt.Errorf("nmount: %w", err)
		}
	}

	for _, p := range pseudo {
		if err := p.option.AfterMount(destination, p.val); err != nil {
			return fmt.Errorf("pseudo-option after-mount: %w", err)
		}
	}

	if e.logger != nil {
		e.logger.WithField("destination", destination).Debug("mounted")
	}
	return nil
}

// applyFileMount implements the fallback-discovery protocol for file
// mounts: a live nullfs bind of a single file is attempted first; only
// once that attempt fails with ENOTDIR does the engine fall back to a
// one-time copy, and it remembers that choice (on the Engine, and from
// there in the persisted state) so later mounts in this Apply call, and
// later invocations against the same container, skip straight to the
// copy without retrying the syscall.
func (e *Engine) applyFileMount(opts []kv, flags int64, source, destination string) error {
	if e.fileMountSupported != nil && !*e.fileMountSupported {
		return copyFile(source, destination, 0644)
	}
	if err := nmount(opts, flags); err != nil {
		if !isENOTDIR(err) {
			return fmt.Errorf("nmount: %w", err)
		}
		unsupported := false
		e.fileMountSupported = &unsupported
		return copyFile(source, destination, 0644)
	}
	supported := true
	e.fileMountSupported = &supported
	return nil
}

func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return f.Close()
}

// Revert unmounts every entry in mounts and removes accumulated
// remove-on-unmount paths in descending lexicographic order, so nested
// paths go before their parents. It keeps going after an
// individual failure, aggregating all errors with go-multierror, matching
// unmount_volumes' "remember the first error but try everything" policy
// (generalized here to report every error, not just the first).
func (e *Engine) Revert(rootfs string, mounts []specs.Mount, removeOnUnmount []string) error {
	var result *multierror.Error
	for _, m := range mounts {
		if err := e.unmountOne(rootfs, m); err != nil {
			result = multierror.Append(result, fmt.Errorf("unmount %s: %w", m.Destination, err))
		}
	}

	sorted := append([]string(nil), removeOnUnmount...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	for _, dir := range sorted {
		if _, err := os.Stat(dir); err == nil {
			if err := os.RemoveAll(dir); err != nil {
				result = multierror.Append(result, fmt.Errorf("remove %s: %w", dir, err))
			}
		}
	}
	return result.ErrorOrNil()
}

func (e *Engine) unmountOne(rootfs string, m specs.Mount) error {
	destination, err := resolveDestination(rootfs, m.Destination)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	fstype := m.Type
	if fstype == "" {
		fstype = "nullfs"
	}
	isFileMount := fstype == "nullfs" && isRegularFile(m.Source)

	// A file mount only skips the real unmount syscall when discovery
	// settled on the emulated-copy strategy; an undiscovered or
	// confirmed-supported file mount was really mounted and needs a real
	// unmount like any other destination.
	if isFileMount && e.fileMountSupported != nil && !*e.fileMountSupported {
		_, savePath := savePaths(destination, e.containerID)
		if _, err := os.Stat(savePath); err == nil {
			return os.Rename(savePath, destination)
		}
		return nil
	}
	return doUnmount(destination, mntForce)
}

func mergeOptions(fstype string, options []string, flags int64, opts []kv) (int64, []pseudoInvocation, []kv) {
	f, pseudo, extra := applyOptions(fstype, options)
	return flags | f, pseudo, append(opts, extra...)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
