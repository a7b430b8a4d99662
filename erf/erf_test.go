package erf

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nwnpatch/internal/testutil"
	"github.com/meigma/nwnpatch/resource"
)

func TestOpen_Fixture(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, t.TempDir(), "test.hak", testutil.BuildERF(t, TypeHAK, []testutil.ERFEntry{
		{ResRef: "classes", Type: resource.Type2DA, Data: []byte("2DA V2.0")},
		{ResRef: "nw_s0_fire", Type: resource.TypeNSS, Data: []byte("void main() {}")},
		{ResRef: "odd", Type: 4321, Data: []byte{1, 2, 3}},
	}))

	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, r.Close()) })

	assert.Equal(t, TypeHAK, r.Header().FileType)
	assert.Equal(t, uint32(3), r.Header().EntryCount)
	assert.Equal(t, []resource.ID{
		resource.NewID("classes", "2da"),
		resource.NewID("nw_s0_fire", "nss"),
		resource.NewID("odd", "4321"),
	}, r.IDs())

	rc, err := r.Open(resource.NewID("NW_S0_FIRE", "nss"))
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "void main() {}", string(data))

	info, err := r.Stat(resource.NewID("odd", "4321"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size)

	loc, ok := r.Location(resource.NewID("classes", "2da"))
	require.True(t, ok)
	assert.Equal(t, path, loc)

	_, err = r.ReadFile(resource.NewID("missing", "2da"))
	require.ErrorIs(t, err, resource.ErrNotExist)
	_, err = r.Create(resource.NewID("x", "2da"))
	require.ErrorIs(t, err, resource.ErrReadOnly)
}

func TestOpen_BadHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := testutil.BuildERF(t, TypeERF, nil)
	copy(data[4:], "V2.0")
	_, err := Open(testutil.WriteFile(t, dir, "v2.erf", data))
	require.ErrorIs(t, err, ErrBadHeader)

	_, err = Open(testutil.WriteFile(t, dir, "short.erf", []byte("HAK V1.0")))
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestReader_ClosedContainsNothing(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, t.TempDir(), "x.hak", testutil.BuildERF(t, TypeHAK, []testutil.ERFEntry{
		{ResRef: "feat", Type: resource.Type2DA, Data: []byte("feat")},
	}))
	r, err := Open(path)
	require.NoError(t, err)

	id := resource.NewID("feat", "2da")
	require.True(t, r.Contains(id))
	require.NoError(t, r.Close())

	assert.False(t, r.Contains(id))
	_, err = r.Open(id)
	require.ErrorIs(t, err, resource.ErrClosed)
	_, ok := r.Location(id)
	assert.False(t, ok)
}

func TestWriter_RoundTrip(t *testing.T) {
	t.Parallel()

	built := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	w, err := NewWriter(TypeHAK, WithBuildTime(built), WithDescription(0, "patched content"))
	require.NoError(t, err)
	require.NoError(t, w.Add(resource.NewID("feat", "2da"), []byte("feat table")))
	require.NoError(t, w.Add(resource.NewID("classes", "2da"), []byte("old")))
	require.NoError(t, w.Add(resource.NewID("classes", "2da"), []byte("classes table")))
	require.NoError(t, w.Add(resource.NewID("blob", "9000"), nil))
	assert.Equal(t, 3, w.Len())

	dir := t.TempDir()
	script := testutil.WriteFile(t, dir, "Spell.NSS", []byte("void main() {}"))
	require.NoError(t, w.AddFile(script))

	path := filepath.Join(dir, "out", "patch.hak")
	require.NoError(t, w.WriteFile(path))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, built, r.Header().BuildTime())
	descr, ok := r.Description(0)
	require.True(t, ok)
	assert.Equal(t, "patched content", descr)

	assert.Len(t, r.IDs(), 4)
	data, err := r.ReadFile(resource.NewID("classes", "2da"))
	require.NoError(t, err)
	assert.Equal(t, "classes table", string(data))
	data, err = r.ReadFile(resource.NewID("spell", "nss"))
	require.NoError(t, err)
	assert.Equal(t, "void main() {}", string(data))
	data, err = r.ReadFile(resource.NewID("blob", "9000"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriter_Rejects(t *testing.T) {
	t.Parallel()

	_, err := NewWriter("ZIP ")
	require.Error(t, err)

	w, err := NewWriter(TypeMOD)
	require.NoError(t, err)
	require.Error(t, w.Add(resource.NewID("a_name_longer_than_16", "2da"), nil))
	require.Error(t, w.Add(resource.NewID("x", "notatype"), nil))

	var buf bytes.Buffer
	n, err := w.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(160), n, "empty archive is a bare header")

	path := testutil.WriteFile(t, t.TempDir(), "empty.mod", buf.Bytes())
	r, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, r.IDs())
	require.NoError(t, r.Close())
	_, err = os.Stat(path)
	require.NoError(t, err)
}
