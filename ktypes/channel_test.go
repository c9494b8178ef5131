package ktypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelStreamURL(t *testing.T) {
	assert.Equal(t, "/hls/c/index.m3u8", ChannelStreamURL("c"))
	assert.Equal(t, "/hls/index.m3u8", SingleStreamURL)
}

func TestValidChannelName(t *testing.T) {
	assert.NoError(t, ValidChannelName("news_24-hd"))
	assert.Error(t, ValidChannelName(""))
	assert.Error(t, ValidChannelName("../etc"))
	assert.Error(t, ValidChannelName("a b"))
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	assert.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestTimeToStat(t *testing.T) {
	assert.Equal(t, "1200", TimeToStat(1234*time.Millisecond))
}
