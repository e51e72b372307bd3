package mountengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitOption(t *testing.T) {
	tests := []struct {
		in      string
		wantKey string
		wantVal string
	}{
		{"rdonly", "rdonly", ""},
		{"mode=0755", "mode", "0755"},
		{"target=/some/path", "target", "/some/path"},
	}
	for _, tt := range tests {
		key, val := splitOption(tt.in)
		assert.Equal(t, tt.wantKey, key)
		assert.Equal(t, tt.wantVal, val)
	}
}

func TestApplyOptionsFlagPolarity(t *testing.T) {
	// "ro" sets MNT_RDONLY, "rw" clears it even though both map to the
	// same underlying bit with opposite sign in the flag table.
	flags, _, _ := applyOptions("nullfs", []string{"ro"})
	assert.NotZero(t, flags&mntRDOnly)

	flags, _, _ = applyOptions("nullfs", []string{"ro", "rw"})
	assert.Zero(t, flags&mntRDOnly)

	// "atime" clears MNT_NOATIME (negative-polarity entry), so a Config
	// starting from all-bits-set should have the bit cleared, not set.
	flags = ^int64(0)
	f, _, _ := applyOptions("nullfs", []string{"atime"})
	assert.NotZero(t, f&mntNoATime, "sanity: mntNoATime is the bit being cleared")
	flags &^= -nameToFlag["atime"]
	assert.Zero(t, flags&mntNoATime)
}

func TestApplyOptionsDispatchesPseudoOptions(t *testing.T) {
	_, pseudo, opts := applyOptions("tmpfs", []string{"tmpcopyup", "mode=1777"})
	require.Len(t, pseudo, 1)
	assert.IsType(t, tmpCopyUp{}, pseudo[0].option)
	require.Len(t, opts, 1)
	assert.Equal(t, kv{"mode", "1777"}, opts[0])
}

func TestApplyOptionsIgnoredOptionsProduceNoFlagsOrOpts(t *testing.T) {
	flags, pseudo, opts := applyOptions("nullfs", []string{"private", "rbind", "bind"})
	assert.Zero(t, flags)
	assert.Empty(t, pseudo)
	assert.Empty(t, opts)
}

func TestApplyOptionsUnrecognizedKeyBecomesLiteralOpt(t *testing.T) {
	_, _, opts := applyOptions("nullfs", []string{"fssubtype=foo"})
	require.Len(t, opts, 1)
	assert.Equal(t, kv{"fssubtype", "foo"}, opts[0])
}
