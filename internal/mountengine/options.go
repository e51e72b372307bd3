// Package mountengine turns OCI mount specs into FreeBSD nmount(2) calls:
// a flag-option table with signed polarity (positive sets an MNT_* bit,
// negative clears the matching MNT_NO* bit), a pseudo-option registry for
// behaviors nmount itself can't express (tmpcopyup, devfs rule), and a
// move-aside strategy to emulate file mounts on top of nullfs.
package mountengine

import "strings"

// nameToFlag maps an option to a signed mount-flag contribution: positive ORs the flag in,
// negative clears the corresponding bit, zero is a recognized but inert
// option (quota options, the "ignored" set below).
var nameToFlag = map[string]int64{
	"async":      mntAsync,
	"atime":      -mntNoATime,
	"exec":       -mntNoExec,
	"suid":       -mntNoSuid,
	"symfollow":  -mntNoSymfollow,
	"rdonly":     mntRDOnly,
	"sync":       mntSynchronous,
	"union":      mntUnion,
	"userquota":  0,
	"groupquota": 0,
	"clusterr":   -mntNoClusterR,
	"clusterw":   -mntNoClusterW,
	"suiddir":    mntSuidDir,
	"snapshot":   mntSnapshot,
	"multilabel": mntMultilabel,
	"acls":       mntACLs,
	"nfsv4acls":  mntNFS4ACLs,
	"automounted": mntAutomounted,
	"untrusted":  mntUntrusted,

	// Control flags.
	"force":    mntForce,
	"update":   mntUpdate,
	"ro":       mntRDOnly,
	"rw":       -mntRDOnly,
	"cover":    -mntNoCover,
	"emptydir": mntEmptyDir,

	// Recognized but inert: meaningful on Linux bind mounts, no FreeBSD
	// nullfs equivalent.
	"private":  0,
	"rprivate": 0,
	"rbind":    0,
	"nodev":    0,
	"bind":     0,
}

// splitOption splits an "key=value" OCI mount option into its parts; an
// option with no '=' returns an empty value.
func splitOption(option string) (key, val string) {
	if idx := strings.IndexByte(option, '='); idx >= 0 {
		return option[:idx], option[idx+1:]
	}
	return option, ""
}

// applyOptions partitions an OCI mount's option strings into nmount flag
// bits, pseudo-option invocations, and literal mount_opts key/value pairs.
func applyOptions(fstype string, options []string) (flags int64, pseudo []pseudoInvocation, opts []kv) {
	for _, opt := range options {
		key, val := splitOption(opt)
		if flag, ok := nameToFlag[key]; ok {
			if flag > 0 {
				flags |= flag
			} else if flag < 0 {
				flags &^= -flag
			}
			continue
		}
		if h, ok := lookupPseudo(fstype, key); ok {
			pseudo = append(pseudo, pseudoInvocation{option: h, val: val})
			continue
		}
		opts = append(opts, kv{key: key, val: val})
	}
	return flags, pseudo, opts
}

type kv struct{ key, val string }
