package mountengine

import (
	"path/filepath"

	"github.com/moby/sys/symlink"
)

// resolveDestination resolves an OCI mount's destination against rootfs,
// following symlinks but never escaping rootfs.
func resolveDestination(rootfs, destination string) (string, error) {
	joined := filepath.Join(rootfs, destination)
	return symlink.FollowSymlinkInScope(joined, rootfs)
}

func savePaths(destination, containerID string) (saveDir, savePath string) {
	dir := filepath.Dir(destination)
	saveDir = filepath.Join(dir, ".save-"+containerID)
	savePath = filepath.Join(saveDir, filepath.Base(destination))
	return saveDir, savePath
}
