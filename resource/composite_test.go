package resource

import (
	"io"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposite_LaterRepositoryWins(t *testing.T) {
	t.Parallel()

	low, high := t.TempDir(), t.TempDir()
	writeFiles(t, low, map[string]string{
		"classes.2da": "base",
		"feat.2da":    "base feat",
	})
	writeFiles(t, high, map[string]string{
		"classes.2da": "override",
	})

	lowRepo, err := NewDirRepository(low)
	require.NoError(t, err)
	highRepo, err := NewDirRepository(high)
	require.NoError(t, err)

	c := NewComposite(lowRepo, highRepo)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	assert.Equal(t, 2, c.Len())

	data, err := c.ReadFile(NewID("classes", "2da"))
	require.NoError(t, err)
	assert.Equal(t, "override", string(data))

	data, err = c.ReadFile(NewID("feat", "2da"))
	require.NoError(t, err)
	assert.Equal(t, "base feat", string(data))

	assert.Equal(t, []ID{NewID("classes", "2da"), NewID("feat", "2da")}, c.IDs())

	_, err = c.Stat(NewID("nope", "2da"))
	require.ErrorIs(t, err, ErrNotExist)

	w, err := c.Create(NewID("new", "nss"))
	require.NoError(t, err)
	_, err = io.WriteString(w, "void main() {}")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.True(t, highRepo.Contains(NewID("new", "nss")))
	assert.False(t, lowRepo.Contains(NewID("new", "nss")))
}

func TestComposite_Empty(t *testing.T) {
	t.Parallel()

	c := NewComposite()
	assert.False(t, c.Writable())
	assert.Empty(t, c.IDs())
	_, err := c.Create(NewID("a", "2da"))
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestDigest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "hello"})
	repo, err := NewDirRepository(dir)
	require.NoError(t, err)

	d, err := Digest(repo, NewID("a", "txt"))
	require.NoError(t, err)
	assert.Equal(t, digest.FromString("hello"), d)

	_, err = Digest(repo, NewID("b", "txt"))
	require.ErrorIs(t, err, ErrNotExist)
}
