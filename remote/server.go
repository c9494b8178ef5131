package remote

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/ktypes"
)

const ViewerCookie = "hlstv_viewer"

type Config struct {
	ViewerTTL     ktypes.Duration
	MaxViewers    int64 `validate:"min=1"`
	RedisAddr     string
	RedisPassword string
	RedisDB       int     `validate:"min=0"`
	InitialVolume float64 `validate:"gte=0,lte=1"`
	InitialMuted  bool
}

func NewRemoteConfig() Config {
	return Config{
		ViewerTTL:     ktypes.NewDuration(30 * 24 * time.Hour),
		MaxViewers:    10000,
		InitialVolume: 0.5,
		InitialMuted:  true,
	}
}

// Server upgrades /ws requests into remote sessions.
type Server struct {
	config   Config
	channels []string
	store    ViewerStore
	clock    clockwork.Clock
	upgrader websocket.Upgrader

	// URLFor maps a channel to its playlist URL, ktypes.ChannelStreamURL when nil.
	URLFor func(channel string) string

	m      sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// NewServer creates a remote server. store may be nil, then nothing is persisted.
func NewServer(config Config, channels []string, store ViewerStore, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{
		config:   config,
		channels: append([]string(nil), channels...),
		store:    store,
		clock:    clock,
		conns:    make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	viewer, fresh := viewerFromRequest(r)
	var header http.Header
	if fresh != nil {
		header = http.Header{"Set-Cookie": {fresh.String()}}
	}
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		ktypes.Stat(true, "remote", "upgrade", "")
		logrus.Debugf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if !s.track(conn) {
		return
	}
	defer s.untrack(conn)
	ktypes.Stat(false, "remote", "connect", "")

	session := newSession(s, conn, viewer)
	if err := session.Run(r.Context()); err != nil {
		session.log.Warnf("Remote session ended: %+v", err)
		return
	}
	session.log.Debug("Remote disconnected")
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.m.Lock()
	defer s.m.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.m.Lock()
	delete(s.conns, conn)
	s.m.Unlock()
}

// Sessions is the number of connected remotes.
func (s *Server) Sessions() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.conns)
}

// Close drops every connected remote and refuses new ones.
// Their sessions end and stop their controllers.
func (s *Server) Close() error {
	s.m.Lock()
	defer s.m.Unlock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	return nil
}

// EnsureViewer returns the viewer id from the cookie, issuing a new one when absent or malformed.
func EnsureViewer(w http.ResponseWriter, r *http.Request) string {
	viewer, fresh := viewerFromRequest(r)
	if fresh != nil {
		http.SetCookie(w, fresh)
	}
	return viewer
}

func viewerFromRequest(r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(ViewerCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String(), nil
		}
	}
	id := uuid.NewString()
	return id, &http.Cookie{
		Name:     ViewerCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
