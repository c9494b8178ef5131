package hls_server

import (
	"path/filepath"
	"strings"
)

type HlsFileRequest struct {
	Channel string `mapstructure:"channel"`
	File    string `mapstructure:"file"`
}

func (r *HlsFileRequest) IsPlaylist() bool {
	return strings.EqualFold(filepath.Ext(r.File), ".m3u8")
}

func (r *HlsFileRequest) ContentType() string {
	switch strings.ToLower(filepath.Ext(r.File)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".vtt":
		return "text/vtt"
	default:
		return "application/octet-stream"
	}
}

type ChannelsRequest struct{}
