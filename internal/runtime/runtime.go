// Package runtime orchestrates the OCI lifecycle verbs (create, start,
// kill, delete, state, exec, list, features) over internal/statestore,
// internal/jail, internal/mountengine, internal/hook, and
// internal/process, each verb a method on a shared Runtime.
package runtime

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// OCIVersionMin and OCIVersionMax bound the config.json ociVersion this
// runtime accepts, advertising exactly the 1.0.x/1.1.x range it
// implements rather than a broader ceiling.
const (
	OCIVersionMin = "1.0.0"
	OCIVersionMax = "1.1.0"
)

// Runtime holds the configuration shared by every lifecycle command.
type Runtime struct {
	Root   string // state directory root, e.g. /var/run/jailrun
	Logger *logrus.Entry
	Audit  *AuditLogger // discards entries when --audit was not given; nil skips auditing
}

// New constructs a Runtime rooted at root.
func New(root string, logger *logrus.Entry, audit *AuditLogger) *Runtime {
	return &Runtime{Root: root, Logger: logger, Audit: audit}
}

// audit appends one completed-command record when an audit log is
// configured; it never fails the caller's own return value.
func (rt *Runtime) audit(command, id string, err error) {
	if rt.Audit == nil {
		return
	}
	entry := AuditEntry{Command: command, ID: id, Status: "ok"}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}
	if logErr := rt.Audit.Log(entry); logErr != nil && rt.Logger != nil {
		rt.Logger.WithError(logErr).Warn("failed to write audit entry")
	}
}

// checkOCIVersion validates config.json's ociVersion against the
// major.minor range this runtime supports: strip a trailing
// "-rc.N"/"-dev" suffix, require exactly three dot-separated components,
// major must be "1", minor must be "0" or "1".
func checkOCIVersion(version string) error {
	trimmed := version
	for _, suffix := range []string{"-dev"} {
		if len(trimmed) > len(suffix) && trimmed[len(trimmed)-len(suffix):] == suffix {
			trimmed = trimmed[:len(trimmed)-len(suffix)]
		}
	}
	if idx := indexRC(trimmed); idx >= 0 {
		trimmed = trimmed[:idx]
	}

	parts := splitDot(trimmed)
	if len(parts) != 3 {
		return fmt.Errorf("runtime: malformed ociVersion %q", version)
	}
	if parts[0] != "1" {
		return fmt.Errorf("runtime: unsupported ociVersion %q (major must be 1)", version)
	}
	if parts[1] != "0" && parts[1] != "1" {
		return fmt.Errorf("runtime: unsupported ociVersion %q (minor must be 0 or 1)", version)
	}
	return nil
}

func indexRC(s string) int {
	for i := 0; i+4 <= len(s); i++ {
		if s[i:i+4] == "-rc." {
			return i
		}
	}
	return -1
}

func splitDot(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
