package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nwnpatch/bif"
	"github.com/meigma/nwnpatch/erf"
	"github.com/meigma/nwnpatch/internal/testutil"
	"github.com/meigma/nwnpatch/resource"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func writePatch(t *testing.T) (pkg, base string) {
	t.Helper()
	base = t.TempDir()
	testutil.WriteFiles(t, base, map[string]string{
		"widgets.2da": testutil.TwoDA("Label Cost", "0 Gear 1", "1 Cog 2"),
	})
	pkg = t.TempDir()
	testutil.WriteFiles(t, pkg, map[string]string{
		"widgets.2da": testutil.TwoDA("Label Cost", "0 Sprocket 3"),
	})
	return pkg, base
}

func TestApplyCmd(t *testing.T) {
	t.Parallel()

	pkg, base := writePatch(t)
	out := filepath.Join(t.TempDir(), "out")
	stdout, err := runCLI(t, "apply", pkg, "--base", base, "--out", out, "--no-compile", "--no-hak")
	require.NoError(t, err)

	assert.Contains(t, stdout, "widgets.2da 2-2")
	assert.Contains(t, stdout, "output: "+out)
	assert.FileExists(t, filepath.Join(out, "widgets.2da"))
	assert.NoFileExists(t, filepath.Join(out, "hak"))
}

func TestPreviewCmd(t *testing.T) {
	t.Parallel()

	pkg, base := writePatch(t)
	stdout, err := runCLI(t, "preview", pkg, "--base", base)
	require.NoError(t, err)
	assert.Contains(t, stdout, "+++ b/widgets.2da")
	assert.Contains(t, stdout, "Sprocket")
	assert.NoDirExists(t, filepath.Join(pkg, "out"))
}

func TestJoinCmd(t *testing.T) {
	t.Parallel()

	older, _ := writePatch(t)
	newer, _ := writePatch(t)
	dest := filepath.Join(t.TempDir(), "joined")
	stdout, err := runCLI(t, "join", older, newer, "--out", dest)
	require.NoError(t, err)
	assert.Contains(t, stdout, "joined 2 packages")
	assert.FileExists(t, filepath.Join(dest, "widgets.2da"))

	_, err = runCLI(t, "join", older, newer)
	require.Error(t, err, "--out is required")
}

func TestPackAndRepoCmds(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{"a.2da": "alpha", "b.nss": "void main() {}"})
	hak := filepath.Join(t.TempDir(), "test.hak")
	_, err := runCLI(t, "pack", src, hak)
	require.NoError(t, err)

	stdout, err := runCLI(t, "repo", "ls", hak, "--digest")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "a.2da"))
	assert.Contains(t, lines[0], "sha256:")

	stdout, err = runCLI(t, "repo", "cat", hak, "b.nss")
	require.NoError(t, err)
	assert.Equal(t, "void main() {}", stdout)

	_, err = runCLI(t, "repo", "cat", hak, "missing.2da")
	require.ErrorIs(t, err, resource.ErrNotExist)

	zipPath := filepath.Join(t.TempDir(), "test.zip")
	_, err = runCLI(t, "pack", src, zipPath, "--level", "9")
	require.NoError(t, err)
	assert.FileExists(t, zipPath)

	_, err = runCLI(t, "pack", src, filepath.Join(t.TempDir(), "test.rar"))
	require.Error(t, err)

	r, err := erf.Open(hak)
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, r.IDs(), 2)
}

func TestBIFCmds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "data.bif", testutil.BuildBIF(t, bif.MagicV10, []testutil.BIFEntry{
		{TypeTag: uint32(resource.Type2DA), Data: []byte("first")},
		{TypeTag: uint32(resource.TypeNSS), Data: []byte("second")},
	}))

	stdout, err := runCLI(t, "bif", "ls", path, "--digest")
	require.NoError(t, err)
	assert.Contains(t, stdout, "000000.2da")
	assert.Contains(t, stdout, "000001.nss")
	assert.Contains(t, stdout, "sha256:")

	dest := filepath.Join(dir, "out")
	_, err = runCLI(t, "bif", "extract", path, dest, "--workers", "2")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dest, "000001.nss"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestRun_BadFlags(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, "--log-level", "loud", "repo", "ls", t.TempDir())
	require.Error(t, err)

	_, err = runCLI(t, "nope")
	require.Error(t, err)
}
