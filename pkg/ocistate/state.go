// Package ocistate defines the OCI state document jailrun emits from
// `state` and the persisted on-disk record the lifecycle commands use to
// track a container between invocations. It is exported, not internal,
// because hooks receive the OCI document on stdin and external tooling may
// shell out to `jailrun state` and parse the same schema.
package ocistate

import (
	"github.com/opencontainers/runtime-spec/specs-go"
)

// Status is the lifecycle status of a container, per the OCI runtime spec.
type Status string

const (
	StatusCreating Status = "creating"
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
)

// OCIState is the document printed by `jailrun state <id>` and piped to
// hook stdin, matching the OCI runtime-spec's state schema.
type OCIState struct {
	OCIVersion  string            `json:"ociVersion"`
	ID          string            `json:"id"`
	Status      Status            `json:"status"`
	PID         int               `json:"pid,omitempty"`
	Bundle      string            `json:"bundle"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Persisted is the on-disk record jailrun keeps under
// <root>/<id>/state.json between invocations. It carries everything the
// lifecycle commands need to resume work on a container: more than the OCI
// state document exposes, since it also tracks jail-specific bookkeeping
// (jid, mount cleanup ledger, parent jail).
type Persisted struct {
	ID     string     `json:"id"`
	Bundle string     `json:"bundle"`
	Config specs.Spec `json:"config"`
	Status Status     `json:"status"`

	RootPath         string `json:"root_path"`
	RootReadonly     bool   `json:"root_readonly"`
	ReadonlyRootPath string `json:"readonly_root_path,omitempty"`

	JID int32 `json:"jid"`
	PID int   `json:"pid"`

	ParentJail string `json:"parent_jail,omitempty"`
	VNetMode   string `json:"vnet_mode,omitempty"`

	// RemoveOnUnmount lists paths created as a side effect of mounting
	// (mount points that did not exist, .save-<id> move-aside directories)
	// in the order they were created; unmounting deletes them in descending
	// lexicographic order.
	RemoveOnUnmount []string `json:"remove_on_unmount"`

	// FileMountSupported records whether nullfs can mount a single file on
	// this host (false means file mounts are emulated by copying), once
	// discovered, so later commands in a different process reuse the same
	// strategy.
	FileMountSupported *bool `json:"file_mount_supported,omitempty"`
}

// ToOCIState projects the persisted record into the document `state` and
// hooks expect.
func (p *Persisted) ToOCIState(ociVersion string) *OCIState {
	var annotations map[string]string
	if p.Config.Annotations != nil {
		annotations = p.Config.Annotations
	}
	return &OCIState{
		OCIVersion:  ociVersion,
		ID:          p.ID,
		Status:      p.Status,
		PID:         p.PID,
		Bundle:      p.Bundle,
		Annotations: annotations,
	}
}
