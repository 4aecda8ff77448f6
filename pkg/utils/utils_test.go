package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	env, err := ParseEnv([]string{"FOO=bar", "X=a=b", "EMPTY=", "SPACED= v ", "FOO=baz"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FOO": "baz", "X": "a=b", "EMPTY": "", "SPACED": " v "}, env)

	env, err = ParseEnv(nil)
	require.NoError(t, err)
	assert.Empty(t, env)

	for _, bad := range []string{"NOVALUE", "=x", "1ABC=x", "MY-VAR=x", "A B=x"} {
		_, err := ParseEnv([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestEnvNames(t *testing.T) {
	assert.Empty(t, EnvNames(nil))
	assert.Equal(t, []string{"A", "B"}, EnvNames(map[string]string{"B": "2", "A": "1"}))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "src"), ExpandPath("~/src/"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "~user", ExpandPath("~user"))
	assert.Equal(t, "/a/c", ExpandPath("/a/b/../c"))
}

func TestResolveDir(t *testing.T) {
	dir := t.TempDir()
	got, err := ResolveDir(dir + "/.")
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = ResolveDir(file)
	assert.ErrorContains(t, err, "not a directory")

	_, err = ResolveDir(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Dedupe([]string{"a", "b", "a"}))
}
