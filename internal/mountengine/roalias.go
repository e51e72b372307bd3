package mountengine

import "fmt"

// MountNullfsReadonly mounts src at dst as a read-only nullfs alias,
// implementing the middle step of the two-pass read-only-root flow: once
// the real root has its mount points prepared, the jail runs against a
// read-only nullfs view of it, and the volumes are then mounted on that
// view, so writes to the root filesystem itself are rejected while volume
// mounts underneath remain writable per their own options.
func MountNullfsReadonly(src, dst string) error {
	opts := []kv{
		{"fstype", "nullfs"},
		{"fspath", dst},
		{"target", src},
	}
	if err := nmount(opts, mntRDOnly); err != nil {
		return fmt.Errorf("mountengine: mount readonly root alias: %w", err)
	}
	return nil
}
