package media

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoVideoTrack     = errors.New("no video tracks available")
	ErrNoStream         = errors.New("no device stream")
	ErrNoDevice         = errors.New("no media device attached")
	ErrClosed           = errors.New("media controller closed")
)

type FailureKind string

const (
	FailurePermission FailureKind = "permission_denied"
	FailureNoVideo    FailureKind = "no_video_track"
	FailureDevice     FailureKind = "device_unavailable"
	FailurePlayback   FailureKind = "playback_error"
)

// DeviceError is a contained device failure. The interview keeps running
// text-only and the candidate may retry acquisition.
type DeviceError struct {
	Op   string
	Kind FailureKind
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("media %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func (e *DeviceError) Recoverable() bool {
	return true
}

// UserMessage is what the camera panel shows next to the retry affordance.
func (e *DeviceError) UserMessage() string {
	switch e.Kind {
	case FailurePermission:
		return "Could not access camera. Please ensure you have granted camera permissions."
	case FailureNoVideo:
		return "No video tracks available"
	case FailurePlayback:
		return "Error playing video stream"
	default:
		return "Unable to access webcam. Please grant permission."
	}
}

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return FailurePermission
	case errors.Is(err, ErrNoVideoTrack):
		return FailureNoVideo
	default:
		return FailureDevice
	}
}
