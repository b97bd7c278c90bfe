package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPathInfo(t *testing.T) {
	dir := t.TempDir()
	full, parent, err := GetPathInfo(filepath.Join(dir, "sub", "..", "boot.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "boot.txt"), full)
	assert.Equal(t, dir, parent)
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.txt")
	require.NoError(t, os.WriteFile(path, []byte("nop +0\r\nacc +1\njmp -2"), 0o644))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"nop +0", "acc +1", "jmp -2"}, lines)

	_, err = ReadLines(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
