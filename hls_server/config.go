package hls_server

import "github.com/hlstv/hlstv/ktypes"

type LiveHlsConfig struct {
	HttpHost string
	HttpPort int `validate:"min=0,max=65535"`

	HlsPrefix   string `validate:"required"`
	HlsChannel  string
	HlsFile     string `validate:"required"`
	Player      string `validate:"required"`
	Static      string `validate:"required"`
	Remote      string `validate:"required"`
	ChannelsApi string `validate:"required"`

	PageTitle string
}

func (c *LiveHlsConfig) HandleHlsFileUrl() string {
	return c.HlsPrefix + "/" + c.HlsChannel + "/" + c.HlsFile
}

// HandleSingleStreamUrl serves the default channel without a channel path segment.
func (c *LiveHlsConfig) HandleSingleStreamUrl() string {
	return c.HlsPrefix + "/" + c.HlsFile
}

func (c *LiveHlsConfig) HandleStaticUrl() string {
	return c.Static + "/"
}

// StreamUrl is the playlist URL the player loads for a channel.
func (c *LiveHlsConfig) StreamUrl(channel string) string {
	return c.HlsPrefix + "/" + channel + "/" + ktypes.PLAYLIST_NAME
}

func (c *LiveHlsConfig) SingleStreamUrl() string {
	return c.HlsPrefix + "/" + ktypes.PLAYLIST_NAME
}

func NewLiveHlsConfig() LiveHlsConfig {
	return LiveHlsConfig{
		HttpHost: "",
		HttpPort: 8000,

		HlsPrefix:   "/hls",
		HlsChannel:  "{channel:" + ktypes.ChannelPattern + "}",
		HlsFile:     "{file:[0-9a-zA-Z_.-]+}",
		Player:      "/",
		Static:      "/static",
		Remote:      "/ws",
		ChannelsApi: "/api/channels",
		PageTitle:   "hlstv",
	}
}
