package library

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "shows", "a.mp4"))
	touch(t, filepath.Join(dir, "shows", "season1", "b.MKV"))
	touch(t, filepath.Join(dir, "shows", "notes.txt"))
	touch(t, filepath.Join(dir, "ads", "c.webm"))

	lib, err := Scan([]string{filepath.Join(dir, "shows"), filepath.Join(dir, "ads")})
	require.NoError(t, err)

	folders, videos := lib.Counts()
	assert.Equal(t, 2, folders)
	assert.Equal(t, 3, videos)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		v, err := lib.Random(rng)
		require.NoError(t, err)
		assert.True(t, IsVideo(v), v)
	}
}

func TestScan_MissingFolder(t *testing.T) {
	_, err := Scan([]string{filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func TestRandom_Empty(t *testing.T) {
	lib, err := Scan([]string{t.TempDir()})
	require.NoError(t, err)
	_, err = lib.Random(rand.New(rand.NewSource(1)))
	assert.Equal(t, ErrEmpty, err)
}

func TestRescan(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mp4"))
	touch(t, filepath.Join(dir, "b.mov"))

	lib, err := Scan([]string{dir})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.mp4")))
	touch(t, filepath.Join(dir, "c.avi"))
	touch(t, filepath.Join(dir, "d.flv"))

	added, removed, err := lib.Rescan()
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)

	_, videos := lib.Counts()
	assert.Equal(t, 3, videos)
}

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("x.WMV"))
	assert.False(t, IsVideo("x.srt"))
	assert.False(t, IsVideo("mp4"))
}
