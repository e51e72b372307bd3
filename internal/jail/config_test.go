package jail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSetEnforcesParamType(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		val     Param
		wantErr bool
	}{
		{"jid wants uint32", "jid", Uint32Param(4), false},
		{"jid rejects string", "jid", StringParam("4"), true},
		{"children.max wants uint32", "children.max", Uint32Param(10), false},
		{"ip4 wants ns", "ip4", NSParam(NSInherit), false},
		{"ip4 rejects flag", "ip4", FlagParam{}, true},
		{"vnet rejects disabled", "vnet", NSParam(NSDisabled), true},
		{"vnet accepts new", "vnet", NSParam(NSNew), false},
		{"persist wants flag", "persist", FlagParam{}, false},
		{"persist rejects string", "persist", StringParam("x"), true},
		{"allow.raw_sockets is a flag", "allow.raw_sockets", FlagParam{}, false},
		{"allow.chflags accepts uint32 for jail_get probing", "allow.chflags", Uint32Param(1), false},
		{"allow.chflags rejects string", "allow.chflags", StringParam("x"), true},
		{"name wants string", "name", StringParam("foo"), false},
		{"path wants string", "path", StringParam("/jail/foo"), false},
		{"unknown key defaults to string", "host.hostname", StringParam("foo"), false},
		{"unknown key rejects flag", "host.hostname", FlagParam{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := cfg.Set(tt.key, tt.val)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, ok := cfg.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.val, got)
		})
	}
}

func TestConfigSetPreservesInsertionOrderAndReplaces(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Set("name", StringParam("a")))
	require.NoError(t, cfg.Set("persist", FlagParam{}))
	require.NoError(t, cfg.Set("name", StringParam("b")))

	assert.Equal(t, []string{"name", "persist"}, cfg.keys)
	v, ok := cfg.Get("name")
	require.True(t, ok)
	assert.Equal(t, StringParam("b"), v)
}

func TestMustSetPanicsOnInvalidParam(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() {
		cfg.MustSet("jid", StringParam("not-a-number"))
	})
}
