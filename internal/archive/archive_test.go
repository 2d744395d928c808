package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveCompressesAndRemovesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "7.log")
	require.NoError(t, os.WriteFile(path, []byte("hello world\n"), 0o644))

	a := &Archiver{Enabled: true}
	a.Archive(7, path)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(path + ".zst")
	assert.NoError(t, err)
}

func TestArchiveDisabledLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "7.log")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	a := &Archiver{Enabled: false}
	a.Archive(7, path)

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestReadTransparentlyDecompressesArchivedLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "7.log")
	require.NoError(t, os.WriteFile(path, []byte("hello world\n"), 0o644))

	a := &Archiver{Enabled: true}
	a.Archive(7, path)

	content, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(content))
}

func TestReadPlainFileWhenNotArchived(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "7.log")
	require.NoError(t, os.WriteFile(path, []byte("plain\n"), 0o644))

	content, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "plain\n", string(content))
}

func TestArchiveMissingFileIsNoOp(t *testing.T) {
	a := &Archiver{Enabled: true}
	a.Archive(7, filepath.Join(t.TempDir(), "missing.log"))
}
