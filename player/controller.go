package player

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/ktypes"
	"github.com/hlstv/hlstv/vsync"
)

const (
	ChannelIndexKey = "currentChannelIndex"
	KeyEscape       = "Escape"

	VolumeStep          = 0.1
	DefaultUnmuteVolume = 0.5
	muteThreshold       = 0.01

	VolumeIndicatorTimeout = 2000 * time.Millisecond
	RestartDelay           = 5000 * time.Millisecond
)

type State struct {
	Powered          bool
	Muted            bool
	Volume           float64
	VolumeBeforeMute float64
	ChannelIndex     int
	Fullscreen       bool
	Fit              Fit
	Opacity          float64
}

type Options struct {
	Channels      []string
	InitialVolume float64
	InitialMuted  bool
	// URLFor maps a channel name to its stream, ktypes.ChannelStreamURL when nil.
	URLFor func(channel string) string
	Clock  clockwork.Clock
	Logger *logrus.Entry
}

// Controller is the TV-set state machine. Power and mute are independent switches;
// volume, channel and fullscreen controls only work while powered.
type Controller struct {
	m sync.Mutex

	channels []string
	urlFor   func(string) string
	state    State
	// mute state to come back to after power off/on
	mutedBeforeOff bool
	closed         bool

	media    Media
	view     View
	streamer Streamer
	store    Store

	hideVolume *vsync.Task
	restart    *vsync.Task
	log        *logrus.Entry
}

func NewController(media Media, view View, streamer Streamer, store Store, opts Options) *Controller {
	if opts.URLFor == nil {
		opts.URLFor = ktypes.ChannelStreamURL
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	volume := clampVolume(opts.InitialVolume)
	return &Controller{
		channels: append([]string(nil), opts.Channels...),
		urlFor:   opts.URLFor,
		state: State{
			Powered:          true,
			Muted:            opts.InitialMuted,
			Volume:           volume,
			VolumeBeforeMute: volume,
			Fit:              FitCover,
			Opacity:          1,
		},
		media:      media,
		view:       view,
		streamer:   streamer,
		store:      store,
		hideVolume: vsync.NewTask(opts.Clock),
		restart:    vsync.NewTask(opts.Clock),
		log:        opts.Logger,
	}
}

// Initialize renders the initial UI and starts the persisted (or first) channel.
func (c *Controller) Initialize() {
	c.m.Lock()
	defer c.m.Unlock()

	c.view.SetPowerIndicator(c.state.Powered)
	c.media.SetOpacity(c.state.Opacity)
	c.media.SetFit(c.state.Fit)
	c.applyVolume()

	if len(c.channels) == 0 {
		c.log.Info("No channels available")
		return
	}

	c.state.ChannelIndex = c.restoreIndex()
	c.view.SetChannel(c.state.ChannelIndex, c.channels[c.state.ChannelIndex])
	if !c.streamer.Supported() {
		c.log.Info("Streaming not supported by client, playback disabled")
		return
	}
	c.load()
}

func (c *Controller) SwitchChannel(index int) {
	c.m.Lock()
	defer c.m.Unlock()
	c.switchChannel(index)
}

func (c *Controller) NextChannel() {
	c.m.Lock()
	defer c.m.Unlock()
	if !c.state.Powered || len(c.channels) <= 1 {
		return
	}
	c.switchChannel((c.state.ChannelIndex + 1) % len(c.channels))
}

func (c *Controller) PreviousChannel() {
	c.m.Lock()
	defer c.m.Unlock()
	if !c.state.Powered || len(c.channels) <= 1 {
		return
	}
	n := len(c.channels)
	c.switchChannel((c.state.ChannelIndex - 1 + n) % n)
}

func (c *Controller) TogglePower() {
	c.m.Lock()
	defer c.m.Unlock()

	c.state.Powered = !c.state.Powered
	if c.state.Powered {
		c.state.Muted = c.mutedBeforeOff
		c.state.Opacity = 1
	} else {
		c.mutedBeforeOff = c.state.Muted
		c.state.Muted = true
		c.state.Opacity = 0
	}
	c.log.Debugf("Power %v", c.state.Powered)

	c.media.SetOpacity(c.state.Opacity)
	c.applyVolume()
	c.view.SetPowerIndicator(c.state.Powered)
}

func (c *Controller) ToggleMute() {
	c.m.Lock()
	defer c.m.Unlock()
	if !c.state.Powered {
		return
	}

	if c.state.Muted {
		volume := c.state.VolumeBeforeMute
		if volume == 0 {
			volume = DefaultUnmuteVolume
		}
		c.state.Volume = volume
		c.state.Muted = false
	} else {
		c.state.VolumeBeforeMute = c.state.Volume
		c.state.Volume = 0
		c.state.Muted = true
	}

	c.applyVolume()
	c.showVolume()
}

func (c *Controller) IncreaseVolume() {
	c.m.Lock()
	defer c.m.Unlock()
	if !c.state.Powered {
		return
	}

	c.state.Volume = clampVolume(c.state.Volume + VolumeStep)
	c.state.Muted = false

	c.applyVolume()
	c.showVolume()
}

func (c *Controller) DecreaseVolume() {
	c.m.Lock()
	defer c.m.Unlock()
	if !c.state.Powered {
		return
	}

	c.state.Volume = clampVolume(c.state.Volume - VolumeStep)
	if c.state.Volume < muteThreshold {
		if !c.state.Muted {
			c.state.VolumeBeforeMute = 0
		}
		c.state.Volume = 0
		c.state.Muted = true
	}

	c.applyVolume()
	c.showVolume()
}

func (c *Controller) ToggleFullscreen() {
	c.m.Lock()
	defer c.m.Unlock()
	if !c.state.Powered {
		return
	}
	c.setFullscreen(!c.state.Fullscreen)
}

// HandleKey reacts to keyboard input. Escape leaves fullscreen even when powered off.
func (c *Controller) HandleKey(key string) {
	c.m.Lock()
	defer c.m.Unlock()
	if key == KeyEscape && c.state.Fullscreen {
		c.setFullscreen(false)
	}
}

func (c *Controller) ManifestParsed() {
	c.m.Lock()
	defer c.m.Unlock()
	if c.closed {
		return
	}
	c.media.Play()
}

// StreamEnded reloads the current channel after RestartDelay.
func (c *Controller) StreamEnded() {
	c.m.Lock()
	defer c.m.Unlock()
	if c.closed || len(c.channels) == 0 {
		return
	}
	c.log.Debugf("Stream ended, restarting in %v", RestartDelay)
	c.scheduleRestart()
}

func (c *Controller) scheduleRestart() {
	var gen uint64
	gen = c.restart.Schedule(RestartDelay, func() {
		c.m.Lock()
		defer c.m.Unlock()
		if c.closed || !c.restart.Current(gen) {
			return
		}
		c.log.Info("Restarting stream")
		c.load()
	})
}

func (c *Controller) State() State {
	c.m.Lock()
	defer c.m.Unlock()
	return c.state
}

func (c *Controller) Close() {
	c.m.Lock()
	defer c.m.Unlock()
	c.closed = true
	c.hideVolume.Cancel()
	c.restart.Cancel()
}

func (c *Controller) switchChannel(index int) {
	if !c.state.Powered || len(c.channels) == 0 {
		return
	}
	n := len(c.channels)
	c.state.ChannelIndex = ((index % n) + n) % n
	if c.store != nil {
		c.store.Set(ChannelIndexKey, strconv.Itoa(c.state.ChannelIndex))
	}
	c.log.Debugf("Switching to channel %d %s", c.state.ChannelIndex, c.channels[c.state.ChannelIndex])
	c.view.SetChannel(c.state.ChannelIndex, c.channels[c.state.ChannelIndex])
	if !c.streamer.Supported() {
		return
	}
	c.load()
}

func (c *Controller) load() {
	c.streamer.Load(c.urlFor(c.channels[c.state.ChannelIndex]))
}

func (c *Controller) restoreIndex() int {
	if c.store == nil {
		return 0
	}
	raw, ok := c.store.Get(ChannelIndexKey)
	if !ok {
		return 0
	}
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 || i >= len(c.channels) {
		c.log.Debugf("Ignoring persisted channel index %q", raw)
		return 0
	}
	return i
}

func (c *Controller) applyVolume() {
	c.media.SetMuted(c.state.Muted)
	if c.state.Muted {
		c.media.SetVolume(0)
	} else {
		c.media.SetVolume(c.state.Volume)
	}
	c.view.SetMuteIndicator(!c.state.Muted)
}

func (c *Controller) showVolume() {
	c.view.ShowVolume(int(math.Round(c.state.Volume * 100)))
	var gen uint64
	gen = c.hideVolume.Schedule(VolumeIndicatorTimeout, func() {
		c.m.Lock()
		defer c.m.Unlock()
		if c.closed || !c.hideVolume.Current(gen) {
			return
		}
		c.view.HideVolume()
	})
}

func (c *Controller) setFullscreen(on bool) {
	c.state.Fullscreen = on
	if on {
		c.state.Fit = FitContain
	} else {
		c.state.Fit = FitCover
	}
	c.view.SetFullscreen(on)
	c.media.SetFit(c.state.Fit)
}

func clampVolume(v float64) float64 {
	v = math.Round(v*100) / 100
	return math.Max(0, math.Min(1, v))
}
