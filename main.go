package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/hlstv/hlstv/ktypes"
	"github.com/hlstv/hlstv/prom_api"
	"github.com/hlstv/hlstv/worker"
)

func init() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.Info("Initializing hlstv")
}

func main() {
	configPath := pflag.StringP("config", "c", worker.DEFAULT_CONFIG, "configuration path or preset (default, development, testing)")
	noMetrics := pflag.Bool("no-metrics", false, "do not serve prometheus metrics")
	pflag.Parse()

	api := prom_api.NewPromApi()
	ktypes.ApiInst = api

	c := worker.NewConfig(*configPath)

	w, err := worker.NewWorker(c)
	if err != nil {
		logrus.Panic("Cannot create worker ", err)
	}

	if !*noMetrics {
		api.Configure(c.Metrics, w.Channels())
		if err := api.Serve(); err != nil {
			logrus.Panic("Cannot start api ", err)
		}
		defer api.Stop()
	}

	err = w.Listen()
	if err != nil {
		logrus.Panic("Cannot listen worker ", err)
	}

	err = w.Serve()
	if err != nil {
		logrus.Panic("Cannot serve worker ", err)
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	logrus.Info(<-sigch)
	w.Stop()
}
