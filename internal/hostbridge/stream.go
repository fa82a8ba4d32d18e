package hostbridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"aiproctor/interview/internal/media"

	"go.uber.org/zap"
)

var errCaptureBusy = errors.New("host recorder already capturing")

type hostStream struct {
	host   *Host
	tracks []*hostTrack
}

func (s *hostStream) Tracks() []media.Track {
	out := make([]media.Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *hostStream) NewCapture(mimeType string) (media.Capture, error) {
	return &hostCapture{host: s.host, mimeType: mimeType}, nil
}

type hostTrack struct {
	host *Host
	id   string
	kind media.TrackKind

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func (t *hostTrack) ID() string            { return t.id }
func (t *hostTrack) Kind() media.TrackKind { return t.kind }

func (t *hostTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *hostTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.enabled = enabled
	t.mu.Unlock()

	if err := t.host.send(Message{Type: msgSetTrack, TrackID: t.id, Enabled: boolPtr(enabled)}); err != nil {
		t.host.logger.Warn("Failed to toggle host track", zap.String("track", t.id), zap.Error(err))
	}
}

func (t *hostTrack) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	if err := t.host.send(Message{Type: msgStopTrack, TrackID: t.id}); err != nil && !errors.Is(err, ErrHostGone) {
		t.host.logger.Warn("Failed to stop host track", zap.String("track", t.id), zap.Error(err))
	}
}

// hostCapture buffers the binary recorder slices the browser streams while
// its MediaRecorder runs.
type hostCapture struct {
	host     *Host
	mimeType string

	mu  sync.Mutex
	buf []byte
}

func (c *hostCapture) Start(timeslice time.Duration) error {
	c.host.mu.Lock()
	if c.host.capture != nil {
		c.host.mu.Unlock()
		return errCaptureBusy
	}
	c.host.capture = c
	c.host.mu.Unlock()

	err := c.host.send(Message{
		Type:      msgRecorder,
		State:     "start",
		MimeType:  c.mimeType,
		Timeslice: timeslice.Milliseconds(),
	})
	if err != nil {
		c.detach()
		return err
	}
	return nil
}

func (c *hostCapture) append(data []byte) {
	c.mu.Lock()
	c.buf = append(c.buf, data...)
	c.mu.Unlock()
}

func (c *hostCapture) Flush() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.buf
	c.buf = nil
	return out, nil
}

// Stop tells the browser to stop its recorder and waits for its ack. The
// browser acks after the recorder's last dataavailable, and frames are read
// in order, so the final slice is buffered by the time Stop returns. Slices
// arriving after the ack or the stop timeout are dropped.
func (c *hostCapture) Stop() error {
	defer c.detach()
	_, err := c.host.requestWithin(context.Background(), Message{Type: msgRecorder, State: "stop"}, c.host.stopTimeout)
	if errors.Is(err, ErrHostGone) {
		return nil
	}
	return err
}

func (c *hostCapture) detach() {
	c.host.mu.Lock()
	if c.host.capture == c {
		c.host.capture = nil
	}
	c.host.mu.Unlock()
}
