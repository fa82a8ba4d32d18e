// Package media owns the candidate's camera/microphone stream and the
// segmented recording taken while the interview runs.
package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"aiproctor/interview/internal/events"

	"go.uber.org/zap"
)

var errNoDisplay = errors.New("fullscreen not supported by host")

// ArtifactSink receives the assembled recording. Failures are logged only.
type ArtifactSink interface {
	SaveArtifact(ctx context.Context, artifact *Artifact) error
}

type Options struct {
	Device    Device
	Display   Display
	Timeslice time.Duration
	MimeType  string
	Sink      ArtifactSink
	Bus       *events.Bus
	Logger    *zap.Logger
}

type State struct {
	HasStream    bool           `json:"hasStream"`
	AudioEnabled bool           `json:"audioEnabled"`
	VideoEnabled bool           `json:"videoEnabled"`
	CameraOff    bool           `json:"cameraOff"`
	Recording    RecordingState `json:"recording"`
	Segments     int            `json:"segments"`
	Fullscreen   bool           `json:"fullscreen"`
	LastError    string         `json:"lastError,omitempty"`
	ArtifactSize int            `json:"artifactSize"`
}

type Controller struct {
	timeslice time.Duration
	mimeType  string
	sink      ArtifactSink
	bus       *events.Bus
	logger    *zap.Logger

	// serialises Acquire so two grants never overlap
	acquireMu sync.Mutex

	mu         sync.Mutex
	device     Device
	display    Display
	stream     Stream
	rec        *recorder
	recState   RecordingState
	audioOn    bool
	videoOn    bool
	cameraOff  bool
	fullscreen bool
	lastErr    *DeviceError
	artifact   *Artifact
	closed     bool
}

func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Timeslice <= 0 {
		opts.Timeslice = DefaultTimeslice
	}
	if opts.MimeType == "" {
		opts.MimeType = DefaultMimeType
	}
	return &Controller{
		timeslice: opts.Timeslice,
		mimeType:  opts.MimeType,
		sink:      opts.Sink,
		bus:       opts.Bus,
		logger:    opts.Logger,
		device:    opts.Device,
		display:   opts.Display,
		recState:  RecordingIdle,
		cameraOff: true,
	}
}

// SetHost swaps the device and display, e.g. when the browser reconnects.
func (c *Controller) SetHost(device Device, display Display) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = device
	c.display = display
}

func (c *Controller) Subscribe(h events.Handler) events.Subscription {
	return c.bus.Subscribe(h)
}

func (c *Controller) Unsubscribe(id events.Subscription) {
	c.bus.Unsubscribe(id)
}

// Acquire requests audio+video. Any existing stream is fully stopped first.
// Failures come back as *DeviceError and leave the controller usable.
func (c *Controller) Acquire(ctx context.Context) error {
	c.acquireMu.Lock()
	defer c.acquireMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	prev, rec, device := c.stream, c.rec, c.device
	c.stream, c.rec = nil, nil
	if rec != nil {
		c.recState = RecordingStopped
	}
	c.mu.Unlock()

	if rec != nil {
		c.finishRecording(ctx, rec)
	}
	if prev != nil {
		c.logger.Info("Stopping existing stream")
		stopAll(prev)
	}

	if device == nil {
		return c.fail("acquire", ErrNoDevice)
	}
	stream, err := device.GetUserMedia(ctx, Constraints{Audio: true, Video: true})
	if err != nil {
		return c.fail("acquire", err)
	}
	if len(videoTracks(stream)) == 0 {
		stopAll(stream)
		return c.fail("acquire", ErrNoVideoTrack)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		stopAll(stream)
		return ErrClosed
	}
	c.stream = stream
	c.audioOn, c.videoOn, c.cameraOff = true, true, false
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Info("Device stream acquired", zap.Int("tracks", len(stream.Tracks())))
	c.bus.Publish(events.Event{Type: events.TrackReady})
	return nil
}

func (c *Controller) fail(op string, err error) error {
	de := &DeviceError{Op: op, Kind: classify(err), Err: err}
	c.mu.Lock()
	c.lastErr = de
	c.cameraOff = true
	c.mu.Unlock()

	c.logger.Warn("Device operation failed", zap.String("op", op), zap.String("kind", string(de.Kind)), zap.Error(err))
	c.bus.Publish(events.Event{Type: events.DeviceError, Message: de.UserMessage()})
	return de
}

// HasIdleStream reports whether recording could start right now.
func (c *Controller) HasIdleStream() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil && c.recState != RecordingActive
}

// StartRecording is a no-op while already recording.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.recState == RecordingActive {
		c.mu.Unlock()
		return nil
	}
	if c.stream == nil {
		c.mu.Unlock()
		return ErrNoStream
	}
	capture, err := c.stream.NewCapture(c.mimeType)
	if err == nil {
		var rec *recorder
		rec, err = startRecorder(capture, c.timeslice, c.logger)
		if err == nil {
			c.rec = rec
			c.recState = RecordingActive
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("Failed to start recording", zap.Error(err))
		return &DeviceError{Op: "record", Kind: FailureDevice, Err: err}
	}
	c.logger.Info("Recording started", zap.Duration("timeslice", c.timeslice))
	c.bus.Publish(events.Event{Type: events.RecordingStarted})
	return nil
}

// StopRecording finalises the captured segments into one artifact. It returns
// nil when nothing was recording.
func (c *Controller) StopRecording(ctx context.Context) *Artifact {
	c.mu.Lock()
	rec := c.rec
	if rec == nil {
		c.mu.Unlock()
		return nil
	}
	c.rec = nil
	c.recState = RecordingStopped
	c.mu.Unlock()

	return c.finishRecording(ctx, rec)
}

func (c *Controller) finishRecording(ctx context.Context, rec *recorder) *Artifact {
	artifact := rec.finish()

	c.mu.Lock()
	c.artifact = artifact
	c.mu.Unlock()

	c.logger.Info("Recording complete",
		zap.Int("bytes", artifact.Size()),
		zap.Int("segments", artifact.Segments))
	c.bus.Publish(events.Event{Type: events.RecordingStopped, Count: artifact.Segments})

	if c.sink != nil && artifact.Size() > 0 {
		if err := c.sink.SaveArtifact(ctx, artifact); err != nil {
			c.logger.Warn("Failed to store recording artifact", zap.Error(err))
		}
	}
	return artifact
}

// ToggleAudio flips the microphone track and returns the new enabled flag.
func (c *Controller) ToggleAudio() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return false, ErrNoStream
	}
	enabled := !c.audioOn
	for _, t := range audioTracks(c.stream) {
		t.SetEnabled(enabled)
	}
	c.audioOn = enabled
	return enabled, nil
}

// ToggleVideo flips the camera track. Without a stream it re-acquires instead.
func (c *Controller) ToggleVideo(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if c.stream == nil {
		c.mu.Unlock()
		if err := c.Acquire(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	enabled := !c.videoOn
	for _, t := range videoTracks(c.stream) {
		t.SetEnabled(enabled)
	}
	c.videoOn = enabled
	c.cameraOff = !enabled
	c.mu.Unlock()

	if !enabled {
		c.bus.Publish(events.Event{Type: events.CameraOff})
	}
	return enabled, nil
}

func (c *Controller) EnterFullscreen(ctx context.Context) error {
	c.mu.Lock()
	display := c.display
	c.mu.Unlock()

	if display == nil {
		c.logger.Warn("Error attempting to enable fullscreen", zap.Error(errNoDisplay))
		return errNoDisplay
	}
	if err := display.RequestFullscreen(ctx); err != nil {
		c.logger.Warn("Error attempting to enable fullscreen", zap.Error(err))
		return err
	}
	c.setFullscreen(true)
	return nil
}

func (c *Controller) ExitFullscreen(ctx context.Context) error {
	c.mu.Lock()
	display := c.display
	c.mu.Unlock()

	if display == nil {
		c.logger.Warn("Error attempting to exit fullscreen", zap.Error(errNoDisplay))
		return errNoDisplay
	}
	if err := display.ExitFullscreen(ctx); err != nil {
		c.logger.Warn("Error attempting to exit fullscreen", zap.Error(err))
		return err
	}
	c.setFullscreen(false)
	return nil
}

func (c *Controller) ToggleFullscreen(ctx context.Context) error {
	if c.isFullscreen() {
		return c.ExitFullscreen(ctx)
	}
	return c.EnterFullscreen(ctx)
}

func (c *Controller) isFullscreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.display != nil {
		return c.display.IsFullscreen()
	}
	return c.fullscreen
}

func (c *Controller) setFullscreen(on bool) {
	c.mu.Lock()
	c.fullscreen = on
	c.mu.Unlock()
	c.bus.Publish(events.Event{Type: events.FullscreenChange, Active: on})
}

// ReportPlaybackError records a preview failure raised by the host.
func (c *Controller) ReportPlaybackError(message string) {
	de := &DeviceError{Op: "playback", Kind: FailurePlayback, Err: errors.New(message)}
	c.mu.Lock()
	c.lastErr = de
	c.mu.Unlock()
	c.logger.Warn("Video playback error", zap.String("message", message))
	c.bus.Publish(events.Event{Type: events.PlaybackError, Message: de.UserMessage()})
}

// ReportTrackReady clears a previous playback error once the preview plays.
func (c *Controller) ReportTrackReady() {
	c.mu.Lock()
	if c.lastErr != nil && c.lastErr.Kind == FailurePlayback {
		c.lastErr = nil
	}
	c.mu.Unlock()
	c.bus.Publish(events.Event{Type: events.TrackReady})
}

func (c *Controller) Artifact() *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		HasStream:    c.stream != nil,
		AudioEnabled: c.stream != nil && c.audioOn,
		VideoEnabled: c.stream != nil && c.videoOn,
		CameraOff:    c.cameraOff,
		Recording:    c.recState,
		Fullscreen:   c.fullscreen,
		ArtifactSize: c.artifact.Size(),
	}
	if c.rec != nil {
		s.Segments = c.rec.segmentCount()
	} else if c.artifact != nil {
		s.Segments = c.artifact.Segments
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.UserMessage()
	}
	return s
}

// Close stops any outstanding recording and releases every track. Safe to
// call more than once. A grant still pending in Acquire is released when it
// arrives.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stream, rec := c.stream, c.rec
	fullscreen, display := c.fullscreen, c.display
	c.stream, c.rec = nil, nil
	if rec != nil {
		c.recState = RecordingStopped
	}
	c.mu.Unlock()

	if rec != nil {
		c.finishRecording(ctx, rec)
	}
	stopAll(stream)
	if fullscreen && display != nil {
		if err := display.ExitFullscreen(ctx); err != nil {
			c.logger.Debug("Exit fullscreen on teardown failed", zap.Error(err))
		}
	}
	c.logger.Info("Media controller closed")
}
