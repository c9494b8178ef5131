package noop_api

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlstv/hlstv/worker"
)

func writeConfig(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "hlstv.toml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestReadConfig_Presets(t *testing.T) {
	api := &NoopApi{}
	def := worker.NewDefaultConfig()

	c, err := api.ReadConfig(worker.DEFAULT_CONFIG, def)
	require.NoError(t, err)
	assert.Equal(t, def, c)

	c, err = api.ReadConfig(worker.DEV_CONFIG, def)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.(worker.Config).LogLevel)
	assert.Equal(t, 8000, c.(worker.Config).LiveHlsConfig.HttpPort)

	c, err = api.ReadConfig(worker.TESTING_CONFIG, def)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", c.(worker.Config).LiveHlsConfig.HttpHost)
}

func TestReadConfig_File(t *testing.T) {
	videos := t.TempDir()
	path := writeConfig(t, `
LogLevel = "debug"
HlsOutput = "/tmp/out"

[Ffmpeg]
BinaryPath = "/opt/ffmpeg"
HlsTime = "6"

[LiveHlsConfig]
HttpPort = 9000

[Remote]
RedisAddr = "localhost:6379"
ViewerTTL = "1h"

[Metrics]
Interval = "30s"

[[Channels]]
Name = "news"
Folders = ["`+videos+`"]

[[Channels]]
Name = "movies"
Folders = ["`+videos+`"]
`)

	c, err := (&NoopApi{}).ReadConfig(path, worker.NewDefaultConfig())
	require.NoError(t, err)
	config := c.(worker.Config)

	assert.Equal(t, "/opt/ffmpeg", config.Ffmpeg.BinaryPath)
	assert.Equal(t, "6", config.Ffmpeg.HlsTime)
	assert.Equal(t, "libx264", config.Ffmpeg.VideoEncoder, "defaults survive")
	assert.Equal(t, 9000, config.LiveHlsConfig.HttpPort)
	assert.Equal(t, time.Hour, config.Remote.ViewerTTL.Duration)
	assert.Equal(t, 30*time.Second, config.Metrics.Interval.Duration)
	assert.Equal(t, []string{"news", "movies"}, config.ChannelNames())
	assert.NoError(t, config.Validate())
}

func TestReadConfig_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
LogLevel = "debug"
RtmpDebug = true
`)
	_, err := (&NoopApi{}).ReadConfig(path, worker.NewDefaultConfig())
	assert.Error(t, err)
}

func TestReadConfig_Missing(t *testing.T) {
	_, err := (&NoopApi{}).ReadConfig(filepath.Join(t.TempDir(), "nope.toml"), worker.NewDefaultConfig())
	assert.Error(t, err)
}
