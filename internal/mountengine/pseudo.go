package mountengine

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// PseudoOption implements a mount option nmount(2) cannot express directly,
// running side-effecting logic before and/or after the real mount call.
// Dispatch happens through a plain Go map keyed on (fstype, option key)
// rather than a registry of subclasses.
type PseudoOption interface {
	BeforeMount(destination, optval string) error
	AfterMount(destination, optval string) error
}

type pseudoKey struct{ fstype, optkey string }

var pseudoRegistry = map[pseudoKey]PseudoOption{
	{"tmpfs", "tmpcopyup"}: tmpCopyUp{},
	{"devfs", "rule"}:      devfsRule{},
}

type pseudoInvocation struct {
	option PseudoOption
	val    string
}

func lookupPseudo(fstype, optkey string) (PseudoOption, bool) {
	h, ok := pseudoRegistry[pseudoKey{fstype, optkey}]
	return h, ok
}

// tmpCopyUp implements the "tmpcopyup" tmpfs option: copy the destination's
// existing contents into the new tmpfs mount once it's in place, so the
// tmpfs starts populated like the directory it's shadowing.
type tmpCopyUp struct{}

func (tmpCopyUp) BeforeMount(destination, _ string) error {
	tmp, err := os.MkdirTemp("", "tmpcopyup.*")
	if err != nil {
		return fmt.Errorf("mountengine: tmpcopyup mkdtemp: %w", err)
	}
	tmpCopyUpStash.set(destination, tmp)
	return copyTree(destination, tmp)
}

func (tmpCopyUp) AfterMount(destination, _ string) error {
	tmp, ok := tmpCopyUpStash.get(destination)
	if !ok {
		return nil
	}
	tmpCopyUpStash.clear(destination)
	defer os.RemoveAll(tmp)
	return copyTree(tmp, destination)
}

// devfsRule implements the devfs "rule" option: after mounting a devfs
// instance, apply a ruleset via /sbin/devfs so only the allowed device
// nodes are visible inside it.
type devfsRule struct{}

func (devfsRule) BeforeMount(string, string) error { return nil }

func (devfsRule) AfterMount(destination, rule string) error {
	args := append([]string{"-m", destination, "rule", "apply"}, strings.Fields(rule)...)
	ctx, cancel := context.WithTimeout(context.Background(), devfsRuleTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "/sbin/devfs", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mountengine: devfs rule apply: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func copyTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("mountengine: read %s: %w", src, err)
	}
	for _, e := range entries {
		srcPath := src + "/" + e.Name()
		dstPath := dst + "/" + e.Name()
		info, err := os.Lstat(srcPath)
		if err != nil {
			return err
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return err
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return err
			}
		case info.IsDir():
			if err := os.MkdirAll(dstPath, info.Mode().Perm()); err != nil {
				return err
			}
			if err := copyTree(srcPath, dstPath); err != nil {
				return err
			}
		default:
			if err := copyFile(srcPath, dstPath, info.Mode().Perm()); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
