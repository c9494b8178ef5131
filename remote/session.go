package remote

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/ktypes"
	"github.com/hlstv/hlstv/player"
)

const writeWait = 5 * time.Second

var (
	errNoHello      = errors.New("say hello first")
	errAlreadyHello = errors.New("already initialized")
)

type helloInput struct {
	HlsSupported bool `json:"hls_supported"`
}

type channelInput struct {
	Index *int `json:"index"`
}

type keyInput struct {
	Key string `json:"key"`
}

// Session is one connected TV set. It renders the controller's commands
// onto the websocket and feeds client events back into the controller.
type Session struct {
	viewer string
	server *Server
	log    *logrus.Entry

	wm   sync.Mutex
	conn *websocket.Conn

	cm           sync.Mutex
	controller   *player.Controller
	hlsSupported bool

	router *Router
}

func newSession(server *Server, conn *websocket.Conn, viewer string) *Session {
	s := &Session{
		viewer: viewer,
		server: server,
		conn:   conn,
		log:    logrus.WithField("viewer", viewer),
		router: NewRouter(),
	}

	s.router.Handle("hello", s.handleHello)
	s.router.Handle("channel", s.handleChannel)
	s.router.Handle("key", s.handleKey)
	s.bind("power", (*player.Controller).TogglePower)
	s.bind("mute", (*player.Controller).ToggleMute)
	s.bind("volume_up", (*player.Controller).IncreaseVolume)
	s.bind("volume_down", (*player.Controller).DecreaseVolume)
	s.bind("fullscreen", (*player.Controller).ToggleFullscreen)
	s.bind("next", (*player.Controller).NextChannel)
	s.bind("previous", (*player.Controller).PreviousChannel)
	s.bind("manifest_parsed", (*player.Controller).ManifestParsed)
	s.bind("ended", (*player.Controller).StreamEnded)
	return s
}

func (s *Session) bind(messageType string, op func(*player.Controller)) {
	s.router.HandleEmpty(messageType, func(context.Context) error {
		c, err := s.current()
		if err != nil {
			return err
		}
		op(c)
		return nil
	})
}

func (s *Session) current() (*player.Controller, error) {
	s.cm.Lock()
	defer s.cm.Unlock()
	if s.controller == nil {
		return nil, errNoHello
	}
	return s.controller, nil
}

// Run reads messages until the connection fails, then stops the controller.
func (s *Session) Run(ctx context.Context) error {
	defer s.close()

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.Wrap(err, "read")
			}
			return nil
		}

		if err := s.router.Dispatch(ctx, msg); err != nil {
			ktypes.Stat(true, "remote", msg.Type, "")
			s.log.Debugf("Message %s rejected: %v", msg.Type, err)
			s.send("error", errorOutput{Message: err.Error()})
			continue
		}
		ktypes.Stat(false, "remote", msg.Type, "")
	}
}

func (s *Session) close() {
	s.cm.Lock()
	c := s.controller
	s.cm.Unlock()
	if c != nil {
		c.Close()
	}
}

func (s *Session) handleHello(ctx context.Context, payload json.RawMessage) error {
	var input helloInput
	if err := Decode(payload, &input); err != nil {
		return err
	}

	s.cm.Lock()
	if s.controller != nil {
		s.cm.Unlock()
		return errAlreadyHello
	}
	s.hlsSupported = input.HlsSupported
	var store player.Store
	if s.server.store != nil {
		store = &viewerStore{ctx: ctx, store: s.server.store, viewer: s.viewer, log: s.log}
	}
	c := player.NewController(s, s, s, store, player.Options{
		Channels:      s.server.channels,
		InitialVolume: s.server.config.InitialVolume,
		InitialMuted:  s.server.config.InitialMuted,
		URLFor:        s.server.URLFor,
		Clock:         s.server.clock,
		Logger:        s.log,
	})
	s.controller = c
	s.cm.Unlock()

	s.log.Infof("Remote connected, hls supported %v", input.HlsSupported)
	c.Initialize()
	return nil
}

func (s *Session) handleChannel(_ context.Context, payload json.RawMessage) error {
	var input channelInput
	if err := Decode(payload, &input); err != nil {
		return err
	}
	if input.Index == nil {
		return errors.New("index required")
	}
	c, err := s.current()
	if err != nil {
		return err
	}
	c.SwitchChannel(*input.Index)
	return nil
}

func (s *Session) handleKey(_ context.Context, payload json.RawMessage) error {
	var input keyInput
	if err := Decode(payload, &input); err != nil {
		return err
	}
	c, err := s.current()
	if err != nil {
		return err
	}
	c.HandleKey(input.Key)
	return nil
}

func (s *Session) send(messageType string, payload interface{}) {
	s.wm.Lock()
	defer s.wm.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(Output{Type: messageType, Payload: payload}); err != nil {
		s.log.Debugf("Cannot send %s: %v", messageType, err)
	}
}

type errorOutput struct {
	Message string `json:"message"`
}

type loadOutput struct {
	URL string `json:"url"`
}

type volumeOutput struct {
	Volume float64 `json:"volume"`
}

type mutedOutput struct {
	Muted bool `json:"muted"`
}

type opacityOutput struct {
	Opacity float64 `json:"opacity"`
}

type fitOutput struct {
	Fit player.Fit `json:"fit"`
}

type switchOutput struct {
	On bool `json:"on"`
}

type muteIndicatorOutput struct {
	Active bool `json:"active"`
}

type volumeIndicatorOutput struct {
	Percent int  `json:"percent"`
	Show    bool `json:"show"`
}

type channelOutput struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

func (s *Session) SetVolume(volume float64) {
	s.send("volume", volumeOutput{Volume: volume})
}

func (s *Session) SetMuted(muted bool) {
	s.send("muted", mutedOutput{Muted: muted})
}

func (s *Session) SetOpacity(opacity float64) {
	s.send("opacity", opacityOutput{Opacity: opacity})
}

func (s *Session) SetFit(fit player.Fit) {
	s.send("fit", fitOutput{Fit: fit})
}

func (s *Session) Play() {
	s.send("play", nil)
}

func (s *Session) SetPowerIndicator(on bool) {
	s.send("power_indicator", switchOutput{On: on})
}

func (s *Session) SetMuteIndicator(active bool) {
	s.send("mute_indicator", muteIndicatorOutput{Active: active})
}

func (s *Session) ShowVolume(percent int) {
	s.send("volume_indicator", volumeIndicatorOutput{Percent: percent, Show: true})
}

func (s *Session) HideVolume() {
	s.send("volume_indicator", volumeIndicatorOutput{Show: false})
}

func (s *Session) SetFullscreen(on bool) {
	s.send("fullscreen", switchOutput{On: on})
}

func (s *Session) SetChannel(index int, name string) {
	s.send("channel", channelOutput{Index: index, Name: name})
}

// Supported is what the client reported in hello. Called under the controller lock only.
func (s *Session) Supported() bool {
	return s.hlsSupported
}

func (s *Session) Load(url string) {
	s.send("load", loadOutput{URL: url})
}
