package mountengine

// Unmount force-unmounts path, used for tearing down the read-only root
// alias created by MountNullfsReadonly during delete.
func Unmount(path string) error {
	return doUnmount(path, mntForce)
}
