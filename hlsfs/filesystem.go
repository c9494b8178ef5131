package hlsfs

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/livepeer/m3u8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/ktypes"
)

const LOG_NAME = "ffmpeg.log"

var (
	ErrNoPlaylist = errors.New("no playlist")
	ErrBadName    = errors.New("bad file name")

	hlsExtensions = []string{".ts", ".m3u8", ".vtt"}
)

// Filesystem is the tree ffmpeg writes live channels into: <basedir>/<channel>/index.m3u8.
type Filesystem struct {
	basedir string
}

func NewFilesystem(basedir string) (*Filesystem, error) {
	if basedir == "" {
		return nil, errors.New("empty hls output directory")
	}
	abs, err := filepath.Abs(basedir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve %s", basedir)
	}
	if err := os.MkdirAll(abs, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "cannot create directory %s", abs)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot evaluate symlinks %s", basedir)
	}
	return &Filesystem{basedir: filepath.Clean(abs)}, nil
}

func (fs *Filesystem) Basedir() string {
	return fs.basedir
}

func (fs *Filesystem) ChannelDir(channel string) string {
	return filepath.Join(fs.basedir, channel)
}

func (fs *Filesystem) PlaylistPath(channel string) string {
	return filepath.Join(fs.ChannelDir(channel), ktypes.PLAYLIST_NAME)
}

func (fs *Filesystem) LogPath(channel string) string {
	return filepath.Join(fs.ChannelDir(channel), LOG_NAME)
}

func (fs *Filesystem) Ensure(channel string) error {
	if err := ktypes.ValidChannelName(channel); err != nil {
		return err
	}
	dir := fs.ChannelDir(channel)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logrus.Infof("Creating output folder: %s", dir)
	}
	return errors.Wrapf(os.MkdirAll(dir, os.ModePerm), "cannot create %s", dir)
}

// Open returns a reader for one file of a channel. Only plain names inside the channel dir are served.
func (fs *Filesystem) Open(channel, file string) (io.ReadCloser, error) {
	if err := ktypes.ValidChannelName(channel); err != nil {
		return nil, errors.Wrap(ErrBadName, err.Error())
	}
	if err := validateFileName(file); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(fs.ChannelDir(channel), file))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s/%s", channel, file)
	}
	return f, nil
}

// Clean deletes the segments and playlists of a channel, leaving logs alone.
func (fs *Filesystem) Clean(channel string) error {
	dir := fs.ChannelDir(channel)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "cannot list %s", dir)
	}

	logrus.WithField("channel", channel).Info("Cleaning up files...")
	for _, e := range entries {
		if e.IsDir() || !IsHlsFile(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "cannot remove %s", e.Name())
		}
	}
	return nil
}

func (fs *Filesystem) Playlist(channel string) (*m3u8.MediaPlaylist, error) {
	f, err := os.Open(fs.PlaylistPath(channel))
	if os.IsNotExist(err) {
		return nil, ErrNoPlaylist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open playlist of %s", channel)
	}
	defer f.Close()

	pl, listType, err := m3u8.DecodeFrom(f, false)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode playlist of %s", channel)
	}
	if listType != m3u8.MEDIA {
		return nil, errors.Errorf("playlist of %s is not a media playlist", channel)
	}
	return pl.(*m3u8.MediaPlaylist), nil
}

func IsHlsFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range hlsExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func validateFileName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return errors.Wrapf(ErrBadName, "%q", name)
	}
	return nil
}
