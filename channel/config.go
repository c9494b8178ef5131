package channel

type FfmpegConfig struct {
	BinaryPath      string `validate:"required"`
	VideoBitrate    string `validate:"required"`
	VideoEncoder    string `validate:"required"`
	AudioBitrate    string `validate:"required"`
	AudioEncoder    string `validate:"required"`
	AudioSampleRate string `validate:"required"`
	Preset          string `validate:"required"`
	HlsTime         string `validate:"required"`
	HlsListSize     string `validate:"required"`
	HlsFlags        string `validate:"required"`
}

func NewFfmpegConfig() FfmpegConfig {
	return FfmpegConfig{
		BinaryPath:      "ffmpeg",
		VideoBitrate:    "2500k",
		VideoEncoder:    "libx264",
		AudioBitrate:    "128k",
		AudioEncoder:    "aac",
		AudioSampleRate: "44100",
		Preset:          "veryfast",
		HlsTime:         "4",
		HlsListSize:     "5",
		HlsFlags:        "delete_segments",
	}
}

type ChannelConfig struct {
	Name    string   `validate:"required"`
	Folders []string `validate:"min=1,dive,required,dir"`
}
