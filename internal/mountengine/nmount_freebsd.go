//go:build freebsd

package mountengine

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// nmount wraps the FreeBSD nmount(2) syscall, which x/sys/unix does not
// expose directly on freebsd: build the iovec array of key/value mount
// option pairs and invoke SYS_NMOUNT, the same iovec convention
// internal/jail uses for jail_set/jail_get.
func nmount(opts []kv, flags int64) error {
	iov := make([]unix.Iovec, 0, 2*len(opts))
	for _, o := range opts {
		keyBytes := append([]byte(o.key), 0)
		valBytes := append([]byte(o.val), 0)
		iov = append(iov,
			unix.Iovec{Base: &keyBytes[0], Len: uint64(len(keyBytes))},
			unix.Iovec{Base: &valBytes[0], Len: uint64(len(valBytes))},
		)
	}
	_, _, errno := unix.Syscall(unix.SYS_NMOUNT, uintptr(unsafe.Pointer(&iov[0])), uintptr(len(iov)), uintptr(flags))
	if errno != 0 {
		return errno
	}
	return nil
}

func doUnmount(path string, flags int) error {
	return unix.Unmount(path, flags)
}

// isENOTDIR reports whether err is the errno nmount(2) returns when the
// kernel's nullfs implementation refuses to bind a single file: the
// fallback-discovery signal that tells the engine to switch to emulated
// copy mode for file mounts.
func isENOTDIR(err error) bool {
	return err == unix.ENOTDIR
}
