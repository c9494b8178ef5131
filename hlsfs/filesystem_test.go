package hlsfs_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/livepeer/m3u8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/hlstv/hlstv/hlsfs"
)

type HlsfsTestsSuite struct {
	suite.Suite
	fs   *hlsfs.Filesystem
	path string
}

func (s *HlsfsTestsSuite) SetupTest() {
	s.path = s.T().TempDir()
	fs, err := hlsfs.NewFilesystem(filepath.Join(s.path, "hls"))
	require.NoError(s.T(), err)
	s.fs = fs
	require.NoError(s.T(), s.fs.Ensure("news"))
}

func (s *HlsfsTestsSuite) write(name, data string) {
	require.NoError(s.T(), os.WriteFile(filepath.Join(s.fs.ChannelDir("news"), name), []byte(data), 0644))
}

func (s *HlsfsTestsSuite) TestOpen() {
	s.write("index0.ts", "segment")
	r, err := s.fs.Open("news", "index0.ts")
	require.NoError(s.T(), err)
	defer r.Close()
	data, err := ioutil.ReadAll(r)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "segment", string(data))
}

func (s *HlsfsTestsSuite) TestOpenRejectsTraversal() {
	for _, name := range []string{"../news/index.m3u8", "..", "a/b.ts", `a\b.ts`, ""} {
		_, err := s.fs.Open("news", name)
		assert.True(s.T(), errors.Is(err, hlsfs.ErrBadName), name)
	}
	_, err := s.fs.Open("..", "index.m3u8")
	assert.True(s.T(), errors.Is(err, hlsfs.ErrBadName))
}

func (s *HlsfsTestsSuite) TestOpenMissing() {
	_, err := s.fs.Open("news", "missing.ts")
	assert.Error(s.T(), err)
	assert.True(s.T(), os.IsNotExist(errors.Cause(err)))
}

func (s *HlsfsTestsSuite) TestClean() {
	s.write("index.m3u8", "#EXTM3U")
	s.write("index1.ts", "x")
	s.write("subs.vtt", "x")
	s.write(hlsfs.LOG_NAME, "log")

	require.NoError(s.T(), s.fs.Clean("news"))

	entries, err := os.ReadDir(s.fs.ChannelDir("news"))
	require.NoError(s.T(), err)
	require.Len(s.T(), entries, 1)
	assert.Equal(s.T(), hlsfs.LOG_NAME, entries[0].Name())

	assert.NoError(s.T(), s.fs.Clean("never-created"))
}

func (s *HlsfsTestsSuite) TestPlaylist() {
	_, err := s.fs.Playlist("news")
	assert.Equal(s.T(), hlsfs.ErrNoPlaylist, err)

	pl, err := m3u8.NewMediaPlaylist(0, 5)
	require.NoError(s.T(), err)
	require.NoError(s.T(), pl.Append("index0.ts", 4, ""))
	require.NoError(s.T(), pl.Append("index1.ts", 4, ""))
	s.write("index.m3u8", pl.String())

	got, err := s.fs.Playlist("news")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint(2), got.Count())
}

func (s *HlsfsTestsSuite) TestEnsureRejectsBadName() {
	assert.Error(s.T(), s.fs.Ensure("a/b"))
}

func TestHlsfsTestsSuite(t *testing.T) {
	suite.Run(t, new(HlsfsTestsSuite))
}
