package player

// Fit is the object-fit mode of the video element.
type Fit string

const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
)

// Media is the video element the controller drives.
type Media interface {
	SetVolume(volume float64)
	SetMuted(muted bool)
	SetOpacity(opacity float64)
	SetFit(fit Fit)
	Play()
}

// View is the TV-set chrome around the video.
type View interface {
	SetPowerIndicator(on bool)
	// SetMuteIndicator lights the mute button while sound is on.
	SetMuteIndicator(active bool)
	ShowVolume(percent int)
	HideVolume()
	SetFullscreen(on bool)
	SetChannel(index int, name string)
}

// Streamer is the adaptive streaming library. Load replaces whatever is playing;
// the library reports a parsed manifest back through Controller.ManifestParsed.
type Streamer interface {
	Supported() bool
	Load(url string)
}

// Store persists small string values across page loads.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
}
