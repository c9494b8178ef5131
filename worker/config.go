package worker

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/channel"
	"github.com/hlstv/hlstv/hls_server"
	"github.com/hlstv/hlstv/ktypes"
	"github.com/hlstv/hlstv/remote"
)

const (
	DEFAULT_CONFIG = "default"
	TESTING_CONFIG = "testing"
	DEV_CONFIG     = "development"
)

type MetricsConfig struct {
	Host     string
	Port     int `validate:"min=0,max=65535"`
	Interval ktypes.Duration
}

type Config struct {
	LogLevel      string                  `validate:"oneof=debug info warn"`
	HlsOutput     string                  `validate:"required"`
	Channels      []channel.ChannelConfig `validate:"dive"`
	Ffmpeg        channel.FfmpegConfig
	LiveHlsConfig hls_server.LiveHlsConfig
	Remote        remote.Config
	Metrics       MetricsConfig
}

func NewDefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		HlsOutput:     "hls_output",
		Ffmpeg:        channel.NewFfmpegConfig(),
		LiveHlsConfig: hls_server.NewLiveHlsConfig(),
		Remote:        remote.NewRemoteConfig(),
		Metrics: MetricsConfig{
			Port:     8001,
			Interval: ktypes.NewDuration(15 * time.Second),
		},
	}
}

var validate = validator.New()

// Validate checks field constraints and that channel names are usable and unique.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, cc := range c.Channels {
		if err := ktypes.ValidChannelName(cc.Name); err != nil {
			return err
		}
		if seen[cc.Name] {
			return errors.Errorf("duplicate channel %s", cc.Name)
		}
		seen[cc.Name] = true
	}
	return nil
}

func (c Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for _, cc := range c.Channels {
		names = append(names, cc.Name)
	}
	return names
}

func NewConfig(configPath string) Config {
	logrus.Infof("Starting with config path %+s", configPath)
	config := NewDefaultConfig()

	configInterface, err := ktypes.ApiInst.ReadConfig(configPath, config)
	if err != nil {
		logrus.Panicf("Cannot init config %+v", err)
	}
	config = configInterface.(Config)

	if err := config.Validate(); err != nil {
		logrus.Panicf("Bad config %+v", err)
	}

	switch config.LogLevel {
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.Panicf("Bad log level: %s:", config.LogLevel)
	}
	logrus.Infof("Final config: %+v ", config)

	return config
}
