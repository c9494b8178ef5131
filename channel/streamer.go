package channel

import (
	"math/rand"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/hlsfs"
	"github.com/hlstv/hlstv/ktypes"
	"github.com/hlstv/hlstv/library"
	"github.com/hlstv/hlstv/vsync"
)

var (
	STOP_TIMEOUT  = 5 * time.Second
	EMPTY_RESCAN  = 10 * time.Second
	RESTART_PAUSE = time.Second
)

// one streaming loop per channel name in the process
var running = vsync.NewCheckedMap()

type Status struct {
	Name         string `json:"name"`
	Running      bool   `json:"running"`
	CurrentVideo string `json:"current_video,omitempty"`
	Segments     int    `json:"segments"`
	Ready        bool   `json:"ready"`
}

// Streamer keeps one channel on air: random video, ffmpeg to HLS, repeat.
type Streamer struct {
	name    string
	config  FfmpegConfig
	fs      *hlsfs.Filesystem
	library *library.Library
	rng     *rand.Rand
	log     *logrus.Entry

	m            sync.Mutex
	process      *exec.Cmd
	exited       chan struct{}
	currentVideo string
	stop         chan struct{}
	loopDone     chan struct{}
}

func NewStreamer(cc ChannelConfig, config FfmpegConfig, fs *hlsfs.Filesystem) (*Streamer, error) {
	log := logrus.WithField("channel", cc.Name)
	log.Infof("Initializing streaming manager for channel %s...", cc.Name)

	if err := ktypes.ValidChannelName(cc.Name); err != nil {
		return nil, err
	}

	lib, err := library.Scan(cc.Folders)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot scan library of %s", cc.Name)
	}
	folders, videos := lib.Counts()
	log.Infof("Found %d video folders with a total of %d videos.", folders, videos)

	if err := fs.Ensure(cc.Name); err != nil {
		return nil, errors.Wrapf(err, "cannot prepare output of %s", cc.Name)
	}

	return &Streamer{
		name:    cc.Name,
		config:  config,
		fs:      fs,
		library: lib,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     log,
	}, nil
}

func (s *Streamer) Name() string {
	return s.name
}

// Command is the ffmpeg argument list for one video.
func (s *Streamer) Command(input string) []string {
	c := s.config
	return []string{
		c.BinaryPath,
		"-re",
		"-i", input,
		"-b:v", c.VideoBitrate,
		"-c:v", c.VideoEncoder,
		"-b:a", c.AudioBitrate,
		"-c:a", c.AudioEncoder,
		"-preset", c.Preset,
		"-ar", c.AudioSampleRate,
		"-hls_time", c.HlsTime,
		"-hls_list_size", c.HlsListSize,
		"-hls_flags", c.HlsFlags,
		"-sn",
		s.fs.PlaylistPath(s.name),
	}
}

func (s *Streamer) Start() error {
	if !running.Lock(s.name, s) {
		return errors.Errorf("channel %s is already streaming", s.name)
	}

	s.m.Lock()
	s.stop = make(chan struct{})
	s.loopDone = make(chan struct{})
	stop, done := s.stop, s.loopDone
	s.m.Unlock()

	go s.loop(stop, done)
	return nil
}

func (s *Streamer) loop(stop chan struct{}, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		video, err := s.library.Random(s.rng)
		if errors.Is(err, library.ErrEmpty) {
			s.log.Warnf("No videos, rescanning in %v", EMPTY_RESCAN)
			if !s.sleep(stop, EMPTY_RESCAN) {
				return
			}
			if _, _, err := s.library.Rescan(); err != nil {
				s.log.Errorf("Rescan failed: %+v", err)
			}
			continue
		}

		s.log.Info("Starting new video stream...")
		exited, err := s.startVideo(video)
		if err != nil {
			ktypes.Stat(true, "stream", s.name, "start")
			s.log.Errorf("Error streaming video: %+v", err)
			go s.Stop()
			return
		}
		ktypes.Stat(false, "stream", s.name, "start")

		select {
		case <-exited:
		case <-stop:
			return
		}
		s.log.Info("Video stream ended.")

		if !s.sleep(stop, RESTART_PAUSE) {
			return
		}
	}
}

func (s *Streamer) startVideo(video string) (chan struct{}, error) {
	args := s.Command(video)
	s.log.Infof("Streaming video with command: %v", args)

	logFile, err := os.Create(s.fs.LogPath(s.name))
	if err != nil {
		return nil, errors.Wrap(err, "cannot create ffmpeg log")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, errors.Wrapf(err, "cannot start %s", args[0])
	}

	exited := make(chan struct{})
	s.m.Lock()
	s.process = cmd
	s.exited = exited
	s.currentVideo = video
	s.m.Unlock()

	go func() {
		err := cmd.Wait()
		logFile.Close()
		if err != nil {
			s.log.Warnf("ffmpeg exited: %v", err)
		}
		s.m.Lock()
		if s.process == cmd {
			s.process = nil
			s.currentVideo = ""
		}
		s.m.Unlock()
		close(exited)
	}()
	return exited, nil
}

// Stop ends the loop, terminates ffmpeg (killing it after STOP_TIMEOUT) and cleans the output.
func (s *Streamer) Stop() error {
	s.m.Lock()
	stop, done := s.stop, s.loopDone
	s.stop = nil
	s.m.Unlock()

	if stop == nil {
		return nil
	}
	s.log.Info("Stopping loop...")
	close(stop)
	<-done

	s.m.Lock()
	cmd, exited := s.process, s.exited
	s.m.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			s.log.Debugf("Cannot terminate ffmpeg: %v", err)
		}
		select {
		case <-exited:
		case <-time.After(STOP_TIMEOUT):
			s.log.Warn("Process did not terminate within timeout, forcing...")
			if err := cmd.Process.Kill(); err != nil {
				s.log.Errorf("Error stopping stream: %v", err)
			}
			<-exited
		}
	}

	running.Unlock(s.name)
	return s.fs.Clean(s.name)
}

// PID of the running ffmpeg, 0 when idle.
func (s *Streamer) PID() int {
	s.m.Lock()
	defer s.m.Unlock()
	if s.process == nil || s.process.Process == nil {
		return 0
	}
	return s.process.Process.Pid
}

func (s *Streamer) Running() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.stop != nil
}

func (s *Streamer) Status() Status {
	s.m.Lock()
	st := Status{
		Name:         s.name,
		Running:      s.stop != nil,
		CurrentVideo: s.currentVideo,
	}
	s.m.Unlock()

	pl, err := s.fs.Playlist(s.name)
	if err == nil {
		st.Segments = int(pl.Count())
		st.Ready = st.Segments > 0
	} else if err != hlsfs.ErrNoPlaylist {
		s.log.Debugf("Cannot read playlist: %+v", err)
	}
	return st
}

func (s *Streamer) sleep(stop chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
