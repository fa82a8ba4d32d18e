package hostbridge

import (
	"aiproctor/interview/internal/events"
	"aiproctor/interview/internal/media"
)

// host -> server
const (
	msgStream           = "stream"
	msgError            = "error"
	msgAck              = "ack"
	msgVisibilityChange = "visibilitychange"
	msgBlur             = "blur"
	msgPlaybackError    = "playback-error"
	msgTrackReady       = "track-ready"
	msgFullscreenChange = "fullscreenchange"
)

// server -> host
const (
	msgAcquire    = "acquire"
	msgStopTrack  = "stop-track"
	msgSetTrack   = "set-track"
	msgRecorder   = "recorder"
	msgFullscreen = "fullscreen"
	msgEvent      = "event"
)

// browser DOMException names for getUserMedia rejections
const (
	domNotAllowed      = "NotAllowedError"
	domSecurity        = "SecurityError"
	domNotFound        = "NotFoundError"
	domNotReadable     = "NotReadableError"
	domOverconstrained = "OverconstrainedError"
)

type TrackInfo struct {
	ID   string          `json:"id"`
	Kind media.TrackKind `json:"kind"`
}

// Message is every JSON text frame on the bridge, in both directions.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	Tracks      []TrackInfo        `json:"tracks,omitempty"`
	Constraints *media.Constraints `json:"constraints,omitempty"`

	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`

	Hidden          bool   `json:"hidden,omitempty"`
	VisibilityState string `json:"visibilityState,omitempty"`

	TrackID string `json:"trackId,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`

	State     string `json:"state,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Timeslice int64  `json:"timeslice,omitempty"`

	Enter      *bool `json:"enter,omitempty"`
	Fullscreen bool  `json:"fullscreen,omitempty"`

	Event *events.Event `json:"event,omitempty"`
}

func boolPtr(b bool) *bool {
	return &b
}
