package noop_api

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/worker"
)

type NoopApi struct {
}

func (na *NoopApi) Stat(isError bool, event string, context string, extra string) {
}

func (na *NoopApi) Serve() error {
	return nil
}

func (na *NoopApi) Stop() error {
	return nil
}

func (na *NoopApi) ReadConfig(configPath string, configInterface interface{}) (interface{}, error) {
	if configPath == worker.DEFAULT_CONFIG {
		return configInterface, nil
	}

	c, ok := configInterface.(worker.Config)
	if !ok {
		return configInterface, errors.Errorf("unexpected config type %T", configInterface)
	}

	switch configPath {
	case worker.DEV_CONFIG:
		c.LogLevel = "debug"
		c.LiveHlsConfig.HttpPort = 8000
		c.HlsOutput = filepath.Join(os.TempDir(), "hlstv_hls")
		return c, nil
	case worker.TESTING_CONFIG:
		c.LogLevel = "debug"
		c.LiveHlsConfig.HttpHost = "127.0.0.1"
		c.LiveHlsConfig.HttpPort = 0
		c.Metrics.Port = 0
		c.HlsOutput = filepath.Join(os.TempDir(), "hlstv_test_hls")
		return c, nil
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return c, errors.Wrapf(err, "Bad config file %+v", configPath)
	}

	logrus.Debugf("Config data %+v", string(configData))

	meta, err := toml.Decode(string(configData), &c)
	if err != nil {
		return c, errors.Wrap(err, "cannot decode config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		logrus.Errorf("Cannot apply %v: ", undecoded)
		return c, errors.Errorf("unknown config keys %v", undecoded)
	}
	return c, nil
}
