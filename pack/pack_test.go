package pack

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nwnpatch/erf"
	"github.com/meigma/nwnpatch/internal/testutil"
	"github.com/meigma/nwnpatch/resource"
)

func sampleBlobs(t *testing.T) []Blob {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"classes.2da": "2DA V2.0\n",
		"spell.nss":   "void main() {}",
	})
	blobs, err := DirBlobs(dir)
	require.NoError(t, err)
	return append(blobs, Blob{Name: "inline.txt", Data: []byte("inline")})
}

func TestArchive_ERF(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "hak", "patch.hak")
	require.NoError(t, Default().Pack(context.Background(), dest, "hak", sampleBlobs(t)))

	r, err := erf.Open(dest)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, erf.TypeHAK, r.Header().FileType)
	assert.Equal(t, []resource.ID{
		resource.NewID("classes", "2da"),
		resource.NewID("inline", "txt"),
		resource.NewID("spell", "nss"),
	}, r.IDs())
	data, err := r.ReadFile(resource.NewID("inline", "txt"))
	require.NoError(t, err)
	assert.Equal(t, "inline", string(data))
}

func TestArchive_Zip(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "patch.zip")
	require.NoError(t, Default().Pack(context.Background(), dest, FormatZIP, sampleBlobs(t)))

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()

	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		got[f.Name] = string(data)
	}
	assert.Equal(t, map[string]string{
		"classes.2da": "2DA V2.0\n",
		"spell.nss":   "void main() {}",
		"inline.txt":  "inline",
	}, got)
}

func TestArchive_UnknownFormat(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "out.rar")
	err := Default().Pack(context.Background(), dest, "RAR", nil)
	require.ErrorIs(t, err, ErrUnknownFormat)
	require.ErrorIs(t, Zip{}.Pack(context.Background(), dest, FormatHAK, nil), ErrUnknownFormat)
	require.ErrorIs(t, ERF{}.Pack(context.Background(), dest, FormatZIP, nil), ErrUnknownFormat)
}

func TestArchive_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(t.TempDir(), "patch.hak")
	require.ErrorIs(t, Default().Pack(ctx, dest, FormatHAK, sampleBlobs(t)), context.Canceled)
	require.ErrorIs(t, Default().Pack(ctx, dest, FormatZIP, sampleBlobs(t)), context.Canceled)
}

func TestSinkFunc(t *testing.T) {
	t.Parallel()

	var seen []string
	s := SinkFunc(func(_ context.Context, dest, format string, blobs []Blob) error {
		seen = append(seen, dest, format)
		return nil
	})
	require.NoError(t, s.Pack(context.Background(), "x.hak", FormatHAK, nil))
	assert.Equal(t, []string{"x.hak", FormatHAK}, seen)
}
