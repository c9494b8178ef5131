package hls_server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"reflect"
	"time"

	"github.com/gorilla/mux"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/assets"
	"github.com/hlstv/hlstv/ktypes"
	"github.com/hlstv/hlstv/remote"
	"github.com/hlstv/hlstv/vsync"
)

func LogHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.Debugf("req: %+v, map: %+v", r.RequestURI, mux.Vars(r))
		next.ServeHTTP(w, r)
	})
}

func CorsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type HttpResponse struct {
	HttpStatus int
	Reader     io.ReadCloser
}

type LiveHls struct {
	httpServer *http.Server
	httpRouter *mux.Router

	config LiveHlsConfig
	page   *PlayerPage

	HandleHlsFile  func(*HlsFileRequest) (HttpResponse, error)
	HandleChannels func(*ChannelsRequest) (HttpResponse, error)
	// HandleRemote serves the websocket remote.
	HandleRemote http.Handler
	// ChannelNames lists the channels shown on the player page.
	ChannelNames func() []string

	HandleStreamsHealth func(duration time.Duration) bool

	playlistMutex *vsync.Semaphore
	segmentMutex  *vsync.Semaphore
}

func parseRequest(req interface{}, r *http.Request) error {
	vars := mux.Vars(r)
	if err := mapstructure.WeakDecode(vars, req); err != nil {
		return errors.Wrapf(err, "error parsing %+v, on %+v", req, vars)
	}
	logrus.Debugf("Request parse %+v", req)
	return nil
}

func (lhls *LiveHls) handleReqTyped(req interface{}) (HttpResponse, error) {
	switch v := req.(type) {
	case *HlsFileRequest:
		mutex, timeout := lhls.segmentMutex, 10*time.Second
		if v.IsPlaylist() {
			mutex, timeout = lhls.playlistMutex, 15*time.Second
		}
		if !mutex.TryLock(timeout) {
			return HttpResponse{HttpStatus: http.StatusRequestTimeout}, errors.New("timeout")
		}
		defer mutex.Unlock()

		return lhls.HandleHlsFile(v)
	case *ChannelsRequest:
		return lhls.HandleChannels(v)
	default:
		return HttpResponse{
			HttpStatus: http.StatusInternalServerError,
			Reader:     nil,
		}, errors.Errorf("unknown type %+v", v)
	}
}

func (lhls *LiveHls) handleReq(req interface{}, w http.ResponseWriter, r *http.Request) error {
	methodName := reflect.TypeOf(req).String()

	err := parseRequest(req, r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		ktypes.Stat(true, "http_handle", methodName, http.StatusText(http.StatusBadRequest))
		return err
	}

	res, err := lhls.handleReqTyped(req)
	if res.Reader != nil {
		defer res.Reader.Close()
	}

	if err != nil && res.HttpStatus == 0 {
		ktypes.Stat(true, "http_handle", methodName, http.StatusText(http.StatusBadRequest))
		w.WriteHeader(http.StatusBadRequest)
		return err
	} else if err != nil && res.HttpStatus != 0 {
		ktypes.Stat(true, "http_handle", methodName, http.StatusText(res.HttpStatus))
		w.WriteHeader(res.HttpStatus)
		return err
	}

	w.WriteHeader(res.HttpStatus)
	if res.Reader != nil {
		_, err = io.Copy(w, res.Reader)
	}
	if err != nil {
		ktypes.Stat(true, "http_handle", methodName, http.StatusText(http.StatusInternalServerError))
		logrus.Errorf("Bad response %+v", res)
		return err
	}
	ktypes.Stat(false, "http_handle", methodName, http.StatusText(http.StatusOK))

	return nil
}

func NewLiveHls(config LiveHlsConfig) (*LiveHls, error) {
	page, err := NewPlayerPage()
	if err != nil {
		return nil, err
	}

	httpRouter := mux.NewRouter()
	httpRouter.Use(LogHandler)
	httpRouter.Use(CorsHandler)

	lhls := &LiveHls{
		config:        config,
		page:          page,
		httpRouter:    httpRouter,
		playlistMutex: vsync.NewSemaphore(50, 300),
		segmentMutex:  vsync.NewSemaphore(20, 300),
	}

	hlsFileHandler := func(w http.ResponseWriter, r *http.Request) {
		req := &HlsFileRequest{}
		file := HlsFileRequest{File: mux.Vars(r)["file"]}
		w.Header().Set("Content-Type", file.ContentType())
		if file.IsPlaylist() {
			w.Header().Set("Cache-Control", "no-cache")
		}
		if err := lhls.handleReq(req, w, r); err != nil {
			logrus.Debugf("hls request %s: %v", r.URL.Path, err)
		}
	}

	httpRouter.HandleFunc(lhls.config.HandleHlsFileUrl(), hlsFileHandler).Methods(http.MethodGet, http.MethodHead, http.MethodOptions).Name("HlsFile")
	httpRouter.HandleFunc(lhls.config.HandleSingleStreamUrl(), hlsFileHandler).Methods(http.MethodGet, http.MethodHead, http.MethodOptions).Name("SingleStream")

	httpRouter.HandleFunc(lhls.config.ChannelsApi, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		lhls.handleReq(&ChannelsRequest{}, w, r)
	}).Name("Channels")

	httpRouter.Handle(lhls.config.Remote, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lhls.HandleRemote == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		lhls.HandleRemote.ServeHTTP(w, r)
	})).Name("Remote")

	httpRouter.PathPrefix(lhls.config.HandleStaticUrl()).Handler(
		http.StripPrefix(lhls.config.Static, http.FileServer(http.FS(assets.Static()))),
	).Name("Static")

	pprofr := httpRouter.PathPrefix("/debug/pprof").Subrouter()
	pprofr.HandleFunc("/", pprof.Index)
	pprofr.HandleFunc("/cmdline", pprof.Cmdline)
	pprofr.HandleFunc("/symbol", pprof.Symbol)
	pprofr.HandleFunc("/trace", pprof.Trace)

	profile := pprofr.PathPrefix("/profile").Subrouter()
	profile.HandleFunc("", pprof.Profile)
	profile.Handle("/goroutine", pprof.Handler("goroutine"))
	profile.Handle("/threadcreate", pprof.Handler("threadcreate"))
	profile.Handle("/heap", pprof.Handler("heap"))
	profile.Handle("/block", pprof.Handler("block"))
	profile.Handle("/mutex", pprof.Handler("mutex"))

	httpRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ktypes.Stat(false, "health", "", "")
		if !lhls.playlistMutex.Probe(4 * time.Second) {
			w.WriteHeader(http.StatusRequestTimeout)
			w.Write([]byte("playlistMutex"))
			ktypes.Stat(true, "health", "playlistMutex", "")
			return
		}

		if !lhls.segmentMutex.Probe(4 * time.Second) {
			w.WriteHeader(http.StatusRequestTimeout)
			w.Write([]byte("segmentMutex"))
			ktypes.Stat(true, "health", "segmentMutex", "")
			return
		}

		if lhls.HandleStreamsHealth != nil && !lhls.HandleStreamsHealth(10*time.Second) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("HandleStreamsHealth"))
			ktypes.Stat(true, "health", "HandleStreamsHealth", "")
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ok"))
	})

	httpRouter.HandleFunc(lhls.config.Player, func(w http.ResponseWriter, r *http.Request) {
		remote.EnsureViewer(w, r)
		var channels []string
		if lhls.ChannelNames != nil {
			channels = lhls.ChannelNames()
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		err := lhls.page.ComposePlayerPage(w, assets.PageData{
			Title:    lhls.config.PageTitle,
			Channels: channels,
			WsPath:   lhls.config.Remote,
		})
		if err != nil {
			ktypes.Stat(true, "http_handle", "player", "")
			logrus.Errorf("%+v", err)
			return
		}
		ktypes.Stat(false, "http_handle", "player", "")
	}).Methods(http.MethodGet).Name("Player")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", lhls.config.HttpHost, lhls.config.HttpPort),
		Handler:      httpRouter,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 30,
		IdleTimeout:  time.Second * 30,
	}

	lhls.httpServer = httpServer
	return lhls, nil
}

// Handler exposes the router, for tests and embedding.
func (lhls *LiveHls) Handler() http.Handler {
	return lhls.httpRouter
}

func (lhls *LiveHls) Listen() error {
	go func() {
		err := lhls.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logrus.Panicf("cannot listen and serve http %+v", err)
		}
	}()
	return nil
}

func (lhls *LiveHls) Serve() error {
	return nil
}

func (lhls *LiveHls) Stop() error {
	return lhls.httpServer.Close()
}
