package resource

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		file     string
		name     string
		typ      string
		fileName string
	}{
		{"Classes.2DA", "classes", "2da", "classes.2da"},
		{"nw_s0_fire.nss", "nw_s0_fire", "nss", "nw_s0_fire.nss"},
		{"dir/Feat.2da", "feat", "2da", "feat.2da"},
		{"README", "readme", "", "readme"},
		{"archive.tar.gz", "archive.tar", "gz", "archive.tar.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()
			id := ParseFileName(tt.file)
			assert.Equal(t, tt.name, id.Name())
			assert.Equal(t, tt.typ, id.Type())
			assert.Equal(t, tt.fileName, id.FileName())
		})
	}

	assert.Equal(t, NewID("FEAT", "2da"), NewID("feat", ".2DA"))
	assert.Negative(t, Compare(NewID("a", "2da"), NewID("b", "2da")))
	assert.Negative(t, Compare(NewID("a", "2da"), NewID("a", "nss")))
	assert.Zero(t, Compare(NewID("A", "2da"), NewID("a", "2DA")))
}

func TestTypeTable(t *testing.T) {
	t.Parallel()

	code, ok := TypeCode("2DA")
	require.True(t, ok)
	assert.Equal(t, Type2DA, code)

	ext, ok := TypeExt(TypeNSS)
	require.True(t, ok)
	assert.Equal(t, "nss", ext)

	code, ok = TypeCode("hak")
	require.True(t, ok)
	assert.Equal(t, TypeERF, code)

	assert.Equal(t, "12345", IDForCode("x", 12345).Type())
	assert.Equal(t, NewID("x", "tlk"), IDForCode("X", TypeTLK))
}

func TestDirRepository_ExactAndCaseInsensitiveLookup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"classes.2da": "exact",
		"FEAT.2DA":    "upper",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "spells.2da"), 0o755))

	repo, err := NewDirRepository(dir)
	require.NoError(t, err)

	data, err := repo.ReadFile(NewID("classes", "2da"))
	require.NoError(t, err)
	assert.Equal(t, "exact", string(data))

	rc, err := repo.Open(NewID("feat", "2da"))
	require.NoError(t, err)
	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "upper", string(data))

	assert.True(t, repo.Contains(NewID("Feat", "2da")))
	assert.False(t, repo.Contains(NewID("spells", "2da")), "directories are not resources")

	_, err = repo.Open(NewID("missing", "2da"))
	require.ErrorIs(t, err, ErrNotExist)

	loc, ok := repo.Location(NewID("feat", "2da"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "FEAT.2DA"), loc)

	info, err := repo.Stat(NewID("feat", "2da"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.ModTime.IsZero())
}

func TestDirRepository_IDsListsRegularFilesOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.2da": "",
		"a.nss": "",
		"c.tlk": "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "scripts"), 0o755))

	repo, err := NewDirRepository(dir)
	require.NoError(t, err)

	assert.Equal(t, []ID{
		NewID("a", "nss"),
		NewID("b", "2da"),
		NewID("c", "tlk"),
	}, repo.IDs())
}

func TestDirRepository_CreateTruncates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"x.2da": "old content"})

	repo, err := NewDirRepository(dir)
	require.NoError(t, err)
	require.True(t, repo.Writable())

	w, err := repo.Create(NewID("X", "2DA"))
	require.NoError(t, err)
	_, err = io.WriteString(w, "new")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "x.2da"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestNewDirRepository_RejectsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"f": ""})

	_, err := NewDirRepository(filepath.Join(dir, "f"))
	require.Error(t, err)

	_, err = NewDirRepository(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFS(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"classes.2da": "2DA V2.0\n",
		"dialog.tlk":  "TLK V3.0",
	})
	repo, err := NewDirRepository(dir)
	require.NoError(t, err)

	require.NoError(t, fstest.TestFS(FS{Repo: repo}, "classes.2da", "dialog.tlk"))
}
