package media

import (
	"context"
	"time"
)

type TrackKind string

const (
	KindAudio TrackKind = "audio"
	KindVideo TrackKind = "video"
)

type Constraints struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// Device grants camera/microphone streams. GetUserMedia may block until the
// candidate answers the permission prompt.
type Device interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

type Stream interface {
	Tracks() []Track
	NewCapture(mimeType string) (Capture, error)
}

type Track interface {
	ID() string
	Kind() TrackKind
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
}

// Capture is an encoder running over a stream. Flush returns whatever was
// encoded since the previous call.
type Capture interface {
	Start(timeslice time.Duration) error
	Flush() ([]byte, error)
	Stop() error
}

type Display interface {
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen(ctx context.Context) error
	IsFullscreen() bool
}

func videoTracks(s Stream) []Track {
	return tracksOf(s, KindVideo)
}

func audioTracks(s Stream) []Track {
	return tracksOf(s, KindAudio)
}

func tracksOf(s Stream, kind TrackKind) []Track {
	var out []Track
	for _, t := range s.Tracks() {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

func stopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
