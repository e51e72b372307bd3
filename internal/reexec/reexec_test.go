package reexec

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndInit(t *testing.T) {
	var ran bool
	Register("reexec-test-init", func() { ran = true })

	orig := os.Args
	defer func() { os.Args = orig }()

	os.Args = []string{"reexec-test-init"}
	assert.True(t, Init())
	assert.True(t, ran)

	os.Args = []string{"something-unregistered"}
	assert.False(t, Init())
}

func TestCommandSetsArgv0ToName(t *testing.T) {
	cmd, err := Command("reexec-test-child", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"reexec-test-child", "a", "b"}, cmd.Args)
	assert.NotEmpty(t, cmd.Path)
}
