package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_CreatesParents(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "a", "b", "out.txt")
	require.NoError(t, WriteFile(target, []byte("hello")))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, WriteFile(target, []byte("bye")))
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(data))
}

func TestWriteStream_FailureLeavesTargetUntouched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))

	boom := errors.New("boom")
	err := WriteStream(target, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	require.ErrorIs(t, err, boom)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	names, err := RegularFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"out.txt"}, names, "temp files are removed")
}

func TestCopyAndClearFiles(t *testing.T) {
	t.Parallel()

	src, dst := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.nss"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.nss"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "sub"), 0o755))

	names, err := CopyFiles(src, dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.nss", "b.nss"}, names)
	assert.True(t, Exists(filepath.Join(dst, "a.nss")))
	assert.False(t, Exists(filepath.Join(dst, "sub")))

	require.NoError(t, os.Mkdir(filepath.Join(dst, "keep"), 0o755))
	require.NoError(t, ClearFiles(dst))
	names, err = RegularFiles(dst)
	require.NoError(t, err)
	assert.Empty(t, names)
	_, err = os.Stat(filepath.Join(dst, "keep"))
	require.NoError(t, err, "directories survive ClearFiles")

	require.NoError(t, ClearFiles(filepath.Join(dst, "missing")))
	names, err = CopyFiles(filepath.Join(src, "missing"), dst)
	require.NoError(t, err)
	assert.Empty(t, names)
}
