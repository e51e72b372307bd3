package runtime

// Features is the document `jailrun features` prints: the static set of
// supported hook phases and mount options, plus this runtime's actual
// supported ociVersion range (see OCIVersionMin/Max).
type Features struct {
	OCIVersionMin string   `json:"ociVersionMin"`
	OCIVersionMax string   `json:"ociVersionMax"`
	Hooks         []string `json:"hooks"`
	MountOptions  []string `json:"mountOptions"`
}

var hookPhases = []string{
	"prestart", "createRuntime", "createContainer", "startContainer", "poststart", "poststop",
}

var mountOptionNames = []string{
	// Feature options
	"async", "atime", "exec", "suid", "symfollow", "rdonly", "sync", "union",
	"userquota", "groupquota", "clusterr", "clusterw", "suiddir", "snapshot",
	"multilabel", "acls", "nfsv4acls", "automounted", "untrusted",
	// Pseudo options
	"tmpcopyup", "rule",
	// Control options
	"force", "update", "ro", "rw", "cover", "emptydir",
	// Ignored options
	"private", "rprivate", "rbind", "nodev", "bind",
}

// GetFeatures implements the `features` verb.
func (rt *Runtime) GetFeatures() *Features {
	return &Features{
		OCIVersionMin: OCIVersionMin,
		OCIVersionMax: OCIVersionMax,
		Hooks:         hookPhases,
		MountOptions:  mountOptionNames,
	}
}
