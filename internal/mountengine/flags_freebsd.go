//go:build freebsd

package mountengine

import "golang.org/x/sys/unix"

// Most MNT_* constants are defined by golang.org/x/sys/unix for freebsd;
// the handful it omits are declared here directly from sys/mount.h.
const (
	mntAsync       = unix.MNT_ASYNC
	mntNoATime     = unix.MNT_NOATIME
	mntNoExec      = unix.MNT_NOEXEC
	mntNoSuid      = unix.MNT_NOSUID
	mntNoSymfollow = unix.MNT_NOSYMFOLLOW
	mntRDOnly      = unix.MNT_RDONLY
	mntSynchronous = unix.MNT_SYNCHRONOUS
	mntUnion       = unix.MNT_UNION
	mntNoClusterR  = unix.MNT_NOCLUSTERR
	mntNoClusterW  = unix.MNT_NOCLUSTERW
	mntSuidDir     = unix.MNT_SUIDDIR
	mntSnapshot    = unix.MNT_SNAPSHOT
	mntMultilabel  = unix.MNT_MULTILABEL
	mntACLs        = unix.MNT_ACLS
	mntNFS4ACLs    = unix.MNT_NFS4ACLS
	mntAutomounted = unix.MNT_AUTOMOUNTED
	mntForce       = unix.MNT_FORCE
	mntUpdate      = unix.MNT_UPDATE

	// Not exposed by golang.org/x/sys/unix; values from FreeBSD's
	// sys/mount.h.
	mntUntrusted = 0x800000000
	mntNoCover   = 0x100000000
	mntEmptyDir  = 0x2000000000
)
