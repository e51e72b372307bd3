//go:build freebsd

package jail

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	jailFlagCreate = 0x01 // JAIL_CREATE
	jailFlagUpdate = 0x02 // JAIL_UPDATE

	errmsgSize = 1024
)

// toIovec renders a Config into the iovec array layout jail_set/jail_get
// expect: key, value, key, value, ..., "errmsg", errbuf.
func toIovec(cfg *Config, errbuf []byte) ([]unix.Iovec, error) {
	iov := make([]unix.Iovec, 0, 2*len(cfg.keys)+2)
	for _, key := range cfg.keys {
		val := cfg.params[key]
		keyBytes := append([]byte(key), 0)
		iov = append(iov, unix.Iovec{Base: &keyBytes[0], Len: uint64(len(keyBytes))})

		switch v := val.(type) {
		case StringParam:
			// Reserve generous room so jail_get can write a returned string
			// value back into the same buffer.
			buf := make([]byte, 1024)
			copy(buf, v)
			iov = append(iov, unix.Iovec{Base: &buf[0], Len: uint64(len(buf))})
		case Uint32Param:
			u := uint32(v)
			iov = append(iov, unix.Iovec{Base: (*byte)(unsafe.Pointer(&u)), Len: 4})
		case Int32Param:
			i := int32(v)
			iov = append(iov, unix.Iovec{Base: (*byte)(unsafe.Pointer(&i)), Len: 4})
		case NSParam:
			u := uint32(v)
			iov = append(iov, unix.Iovec{Base: (*byte)(unsafe.Pointer(&u)), Len: 4})
		case FlagParam:
			iov = append(iov, unix.Iovec{Base: nil, Len: 0})
		default:
			return nil, fmt.Errorf("jail: unsupported parameter kind for %q", key)
		}
	}

	errKey := append([]byte("errmsg"), 0)
	iov = append(iov, unix.Iovec{Base: &errKey[0], Len: uint64(len(errKey))})
	iov = append(iov, unix.Iovec{Base: &errbuf[0], Len: uint64(len(errbuf))})
	return iov, nil
}

func errmsgFrom(errbuf []byte) string {
	n := 0
	for n < len(errbuf) && errbuf[n] != 0 {
		n++
	}
	return string(errbuf[:n])
}

func jailSet(cfg *Config, flags int) (int32, error) {
	errbuf := make([]byte, errmsgSize)
	iov, err := toIovec(cfg, errbuf)
	if err != nil {
		return 0, err
	}
	jid, _, errno := unix.Syscall(unix.SYS_JAIL_SET, uintptr(unsafe.Pointer(&iov[0])), uintptr(len(iov)), uintptr(flags))
	if int32(jid) < 0 {
		if msg := errmsgFrom(errbuf); msg != "" {
			return 0, fmt.Errorf("%s: %w", msg, errno)
		}
		return 0, errno
	}
	return int32(jid), nil
}

func jailGet(cfg *Config) (int32, error) {
	errbuf := make([]byte, errmsgSize)
	iov, err := toIovec(cfg, errbuf)
	if err != nil {
		return 0, err
	}
	jid, _, errno := unix.Syscall(unix.SYS_JAIL_GET, uintptr(unsafe.Pointer(&iov[0])), uintptr(len(iov)), 0)
	if int32(jid) < 0 {
		if msg := errmsgFrom(errbuf); msg != "" {
			return 0, fmt.Errorf("%s: %w", msg, errno)
		}
		return 0, errno
	}

	// Copy every value jail_get wrote back through the iovec pointers into
	// cfg, not just strings: a flag param probed as a Uint32Param (e.g.
	// GetUint32 reading a boolean "allow.*" parameter) is just as much a
	// return value as a string, and the kernel only communicates it back
	// through the same buffer we handed it.
	idx := 0
	for _, key := range cfg.keys {
		valIov := iov[2*idx+1]
		switch cfg.params[key].(type) {
		case StringParam:
			buf := unsafe.Slice(valIov.Base, valIov.Len)
			n := 0
			for n < len(buf) && buf[n] != 0 {
				n++
			}
			cfg.params[key] = StringParam(string(buf[:n]))
		case Uint32Param:
			cfg.params[key] = Uint32Param(*(*uint32)(unsafe.Pointer(valIov.Base)))
		case Int32Param:
			cfg.params[key] = Int32Param(*(*int32)(unsafe.Pointer(valIov.Base)))
		case NSParam:
			cfg.params[key] = NSParam(*(*uint32)(unsafe.Pointer(valIov.Base)))
		}
		idx++
	}
	return int32(jid), nil
}

func jailAttach(jid int32) error {
	_, _, errno := unix.Syscall(unix.SYS_JAIL_ATTACH, uintptr(jid), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func jailRemove(jid int32) error {
	_, _, errno := unix.Syscall(unix.SYS_JAIL_REMOVE, uintptr(jid), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func isEINVAL(err error) bool {
	return err == unix.EINVAL
}
