package hook

import (
	"testing"

	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsMissingPath(t *testing.T) {
	err := Validate([]specs.Hook{{Args: []string{"x"}}})
	assert.Error(t, err)
}

func TestValidateRejectsNegativeTimeout(t *testing.T) {
	bad := -1
	err := Validate([]specs.Hook{{Path: "/bin/true", Timeout: &bad}})
	assert.Error(t, err)
}

func TestValidateAcceptsWellFormedHooks(t *testing.T) {
	ok := 5
	err := Validate([]specs.Hook{{Path: "/bin/true", Timeout: &ok}})
	assert.NoError(t, err)
}

func TestRunReturnsExitCode(t *testing.T) {
	code, err := Run(specs.Hook{Path: "/bin/true"}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = Run(specs.Hook{Path: "/bin/false"}, []byte(`{}`))
	require.NoError(t, err)
	assert.NotEqual(t, 0, code)
}

func TestRunPhaseStopsAtFirstFailure(t *testing.T) {
	err := RunPhase([]specs.Hook{
		{Path: "/bin/true"},
		{Path: "/bin/false"},
	}, []byte(`{}`))
	assert.Error(t, err)
}

func TestRunPhaseAllSucceed(t *testing.T) {
	err := RunPhase([]specs.Hook{
		{Path: "/bin/true"},
		{Path: "/bin/true"},
	}, []byte(`{}`))
	assert.NoError(t, err)
}
