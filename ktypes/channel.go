package ktypes

import (
	"fmt"
	"regexp"
	"time"

	"github.com/pkg/errors"
)

const (
	PLAYLIST_NAME   = "index.m3u8"
	SingleStreamURL = "/hls/" + PLAYLIST_NAME
	ChannelPattern  = "[0-9a-zA-Z_-]+"
)

var channelNameRe = regexp.MustCompile("^" + ChannelPattern + "$")

// ChannelStreamURL is the path the player loads for a channel.
func ChannelStreamURL(channelName string) string {
	return fmt.Sprintf("/hls/%s/%s", channelName, PLAYLIST_NAME)
}

func ValidChannelName(name string) error {
	if !channelNameRe.MatchString(name) {
		return errors.Errorf("bad channel name %q", name)
	}
	return nil
}

// Duration reads "15s" style values from TOML.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
