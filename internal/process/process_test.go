package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesRequiredFields(t *testing.T) {
	_, err := New(nil, "")
	assert.Error(t, err)

	_, err = New(&specs.Process{Args: []string{"sh"}}, "")
	assert.Error(t, err, "missing cwd")

	_, err = New(&specs.Process{Cwd: "/"}, "")
	assert.Error(t, err, "missing args")

	_, err = New(&specs.Process{Cwd: "/", Args: []string{"sh"}, Terminal: true}, "")
	assert.Error(t, err, "terminal requires console socket")

	_, err = New(&specs.Process{Cwd: "/", Args: []string{"sh"}}, "/tmp/console.sock")
	assert.Error(t, err, "console socket without terminal")

	p, err := New(&specs.Process{Cwd: "/", Args: []string{"sh"}}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"sh"}, p.Spec().Args)
}

func TestGetenv(t *testing.T) {
	p := &Process{spec: &specs.Process{Env: []string{"PATH=/usr/bin:/bin", "HOME=/root"}}}
	v, ok := p.getenv("PATH")
	assert.True(t, ok)
	assert.Equal(t, "/usr/bin:/bin", v)

	_, ok = p.getenv("MISSING")
	assert.False(t, ok)
}

func TestGids(t *testing.T) {
	p := &Process{spec: &specs.Process{User: specs.User{GID: 0}}}
	assert.Nil(t, p.gids())

	p = &Process{spec: &specs.Process{User: specs.User{GID: 100, AdditionalGids: []uint32{200, 300}}}}
	assert.Equal(t, []uint32{100, 200, 300}, p.gids())
}

func TestValidateAbsolutePath(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0755))
	exePath := filepath.Join(binDir, "mycmd")
	require.NoError(t, os.WriteFile(exePath, []byte("#!/bin/sh\n"), 0755))

	p := &Process{spec: &specs.Process{Args: []string{exePath}}}
	assert.NoError(t, p.Validate())
	assert.Equal(t, exePath, p.resolvedPath)

	p = &Process{spec: &specs.Process{Args: []string{filepath.Join(binDir, "missing")}}}
	assert.Error(t, p.Validate())
}

func TestValidateResolvesRelativeArgAgainstPath(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "usr", "bin")
	require.NoError(t, os.MkdirAll(binDir, 0755))
	exePath := filepath.Join(binDir, "mycmd")
	require.NoError(t, os.WriteFile(exePath, []byte("#!/bin/sh\n"), 0755))

	p := &Process{spec: &specs.Process{
		Args: []string{"mycmd"},
		Env:  []string{"PATH=" + binDir},
	}}
	assert.NoError(t, p.Validate())
	assert.Equal(t, exePath, p.resolvedPath)
}

func TestValidateRejectsNonExecutableFile(t *testing.T) {
	root := t.TempDir()
	exePath := filepath.Join(root, "mycmd")
	require.NoError(t, os.WriteFile(exePath, []byte("data"), 0644))

	p := &Process{spec: &specs.Process{Args: []string{exePath}}}
	assert.Error(t, p.Validate())
}
