package integration_tests

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otiai10/curr"
	"github.com/phayes/freeport"
	"github.com/stretchr/testify/require"

	"github.com/hlstv/hlstv/channel"
	"github.com/hlstv/hlstv/ktypes"
	"github.com/hlstv/hlstv/noop_api"
	"github.com/hlstv/hlstv/worker"
)

var (
	FAKE_FFMPEG = GetAsset("fake_ffmpeg.sh")
	VIDEOS      = GetAsset("videos")
)

type Wrapper struct {
	W *worker.Worker
	C worker.Config
}

func NewWrapper(t *testing.T, channels ...string) *Wrapper {
	ktypes.ApiInst = &noop_api.NoopApi{}

	dir := t.TempDir()
	t.Log(dir)

	// testdata may lose its exec bit on checkout
	binary := filepath.Join(dir, "ffmpeg")
	script, err := os.ReadFile(FAKE_FFMPEG)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(binary, script, 0755))

	c := worker.NewConfig(worker.TESTING_CONFIG)
	c.HlsOutput = filepath.Join(dir, "hls")
	c.Ffmpeg.BinaryPath = binary
	for _, name := range channels {
		c.Channels = append(c.Channels, channel.ChannelConfig{Name: name, Folders: []string{VIDEOS}})
	}

	c.LiveHlsConfig.HttpPort, err = freeport.GetFreePort()
	require.NoError(t, err)
	t.Log(c.LiveHlsConfig.HttpPort)
	require.NoError(t, c.Validate())

	w, err := worker.NewWorker(c)
	require.NoError(t, err)
	return &Wrapper{
		W: w,
		C: c,
	}
}

func GetAsset(n string) string {
	return filepath.Clean(curr.Dir() + "/testdata/" + n)
}

func (w *Wrapper) Url(path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", w.C.LiveHlsConfig.HttpPort, path)
}

func (w *Wrapper) WsUrl() string {
	return strings.Replace(w.Url(w.C.LiveHlsConfig.Remote), "http://", "ws://", 1)
}
