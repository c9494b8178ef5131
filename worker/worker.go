package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/channel"
	"github.com/hlstv/hlstv/hls_server"
	"github.com/hlstv/hlstv/hlsfs"
	"github.com/hlstv/hlstv/ktypes"
	"github.com/hlstv/hlstv/remote"
)

type Worker struct {
	storage   *hlsfs.Filesystem
	hlsServer *hls_server.LiveHls
	remote    *remote.Server
	viewers   remote.ViewerStore
	streamers []*channel.Streamer
	Config    Config
}

func NewWorker(config Config) (*Worker, error) {
	worker := Worker{
		Config: config,
	}
	storage, err := hlsfs.NewFilesystem(config.HlsOutput)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create hls output")
	}
	worker.storage = storage

	for _, cc := range config.Channels {
		streamer, err := channel.NewStreamer(cc, config.Ffmpeg, storage)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot create channel %s", cc.Name)
		}
		worker.streamers = append(worker.streamers, streamer)
	}

	viewers, err := newViewerStore(config.Remote)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create viewer store")
	}
	worker.viewers = viewers

	worker.remote = remote.NewServer(config.Remote, config.ChannelNames(), viewers, nil)
	worker.remote.URLFor = config.LiveHlsConfig.StreamUrl

	hlsServer, err := hls_server.NewLiveHls(config.LiveHlsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create hls server")
	}
	hlsServer.HandleHlsFile = worker.handleHlsFile
	hlsServer.HandleChannels = worker.handleChannels
	hlsServer.HandleRemote = worker.remote
	hlsServer.ChannelNames = config.ChannelNames
	hlsServer.HandleStreamsHealth = worker.streamsHealth
	worker.hlsServer = hlsServer

	return &worker, nil
}

func newViewerStore(config remote.Config) (remote.ViewerStore, error) {
	if config.RedisAddr == "" {
		logrus.Infof("Keeping viewer state in memory")
		return remote.NewMemoryStore(config.MaxViewers, config.ViewerTTL.Duration), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := remote.DialRedis(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Keeping viewer state in redis %s", config.RedisAddr)
	return remote.NewRedisStore(rc, config.ViewerTTL.Duration), nil
}

// Listen starts every channel loop, then the http server.
func (w *Worker) Listen() error {
	for _, s := range w.streamers {
		if err := s.Start(); err != nil {
			return errors.Wrapf(err, "cannot start channel %s", s.Name())
		}
	}

	err := w.hlsServer.Listen()
	if err != nil {
		return errors.Wrap(err, "cannot listen hls")
	}

	return nil
}

func (w *Worker) Serve() error {
	go func() {
		err := w.hlsServer.Serve()
		if err != nil {
			logrus.Panicf("cannot serve %+v", err)
		}
	}()

	return nil
}

func (w *Worker) Stop() error {
	var wg sync.WaitGroup
	for _, s := range w.streamers {
		wg.Add(1)
		go func(s *channel.Streamer) {
			defer wg.Done()
			if err := s.Stop(); err != nil {
				logrus.Errorf("cannot stop channel %s %+v", s.Name(), err)
			}
		}(s)
	}
	wg.Wait()

	if err := w.remote.Close(); err != nil {
		logrus.Errorf("cannot close remotes %+v", err)
	}
	err := w.hlsServer.Stop()
	if err != nil {
		logrus.Errorf("cannot stop %+v", err)
	}
	if err := w.viewers.Close(); err != nil {
		logrus.Errorf("cannot close viewer store %+v", err)
	}
	return nil
}

// Handler is the http surface without a listener.
func (w *Worker) Handler() http.Handler {
	return w.hlsServer.Handler()
}

// Channels is what metrics sample.
func (w *Worker) Channels() []ktypes.ChannelProcess {
	procs := make([]ktypes.ChannelProcess, 0, len(w.streamers))
	for _, s := range w.streamers {
		procs = append(procs, s)
	}
	return procs
}

func (w *Worker) findStreamer(name string) *channel.Streamer {
	if name == "" && len(w.streamers) > 0 {
		return w.streamers[0]
	}
	for _, s := range w.streamers {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func (w *Worker) handleHlsFile(r *hls_server.HlsFileRequest) (hls_server.HttpResponse, error) {
	streamer := w.findStreamer(r.Channel)
	if streamer == nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Errorf("no such channel %q", r.Channel)
	}
	if !hlsfs.IsHlsFile(r.File) {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Errorf("not an hls file %q", r.File)
	}

	reader, err := w.storage.Open(streamer.Name(), r.File)
	if errors.Is(err, hlsfs.ErrBadName) {
		return hls_server.HttpResponse{HttpStatus: http.StatusBadRequest}, err
	}
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			logrus.WithField("channel", streamer.Name()).Errorf("cannot open %s %+v", r.File, err)
		}
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Wrap(err, "no such file")
	}

	return hls_server.HttpResponse{
		HttpStatus: http.StatusOK,
		Reader:     reader,
	}, nil
}

func (w *Worker) handleChannels(*hls_server.ChannelsRequest) (hls_server.HttpResponse, error) {
	statuses := make([]channel.Status, 0, len(w.streamers))
	for _, s := range w.streamers {
		statuses = append(statuses, s.Status())
	}

	b, err := json.Marshal(statuses)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusInternalServerError}, errors.Wrapf(err, "cannot encode %+v", statuses)
	}

	return hls_server.HttpResponse{
		HttpStatus: http.StatusOK,
		Reader:     io.NopCloser(bytes.NewReader(b)),
	}, nil
}

func (w *Worker) streamsHealth(time.Duration) bool {
	for _, s := range w.streamers {
		if !s.Running() {
			return false
		}
	}
	return true
}
