// Package mediatest provides in-memory host devices for exercising the media
// controller and everything built on it.
package mediatest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"aiproctor/interview/internal/media"
)

type Device struct {
	mu      sync.Mutex
	err     error
	noVideo bool
	streams []*Stream
	calls   int
}

func NewDevice() *Device {
	return &Device{}
}

// Fail makes the next grants return err. Pass nil to succeed again.
func (d *Device) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// WithoutVideo makes the next grants return audio-only streams.
func (d *Device) WithoutVideo(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.noVideo = v
}

func (d *Device) GetUserMedia(ctx context.Context, c media.Constraints) (media.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	n := len(d.streams)
	s := &Stream{}
	if c.Audio {
		s.tracks = append(s.tracks, newTrack(fmt.Sprintf("audio-%d", n), media.KindAudio))
	}
	if c.Video && !d.noVideo {
		s.tracks = append(s.tracks, newTrack(fmt.Sprintf("video-%d", n), media.KindVideo))
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *Device) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *Device) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.streams...)
}

// Live counts granted streams that still hold a running track.
func (d *Device) Live() int {
	live := 0
	for _, s := range d.Streams() {
		if s.Live() {
			live++
		}
	}
	return live
}

type Stream struct {
	mu       sync.Mutex
	tracks   []*Track
	captures []*Capture
}

func (s *Stream) Tracks() []media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]media.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

func (s *Stream) NewCapture(mimeType string) (media.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Capture{MimeType: mimeType}
	s.captures = append(s.captures, c)
	return c, nil
}

func (s *Stream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if !t.Stopped() {
			return true
		}
	}
	return false
}

func (s *Stream) Track(kind media.TrackKind) *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.kind == kind {
			return t
		}
	}
	return nil
}

func (s *Stream) LastCapture() *Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.captures) == 0 {
		return nil
	}
	return s.captures[len(s.captures)-1]
}

type Track struct {
	id   string
	kind media.TrackKind

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func newTrack(id string, kind media.TrackKind) *Track {
	return &Track{id: id, kind: kind, enabled: true}
}

func (t *Track) ID() string            { return t.id }
func (t *Track) Kind() media.TrackKind { return t.kind }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type Capture struct {
	MimeType string

	mu        sync.Mutex
	pending   [][]byte
	tail      []byte
	timeslice time.Duration
	started   bool
	stopped   bool
}

// Push queues encoded bytes as if the host recorder had produced them.
func (c *Capture) Push(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, data)
}

func (c *Capture) Start(timeslice time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	c.timeslice = timeslice
	return nil
}

func (c *Capture) Flush() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := bytes.Join(c.pending, nil)
	c.pending = nil
	return data, nil
}

// PushOnStop queues bytes delivered only when the recorder stops, like the
// last dataavailable of a browser MediaRecorder.
func (c *Capture) PushOnStop(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tail = data
}

func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped && len(c.tail) > 0 {
		c.pending = append(c.pending, c.tail)
		c.tail = nil
	}
	c.stopped = true
	return nil
}

func (c *Capture) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Capture) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

type Display struct {
	mu     sync.Mutex
	err    error
	on     bool
	enters int
	exits  int
}

func NewDisplay() *Display {
	return &Display{}
}

func (d *Display) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *Display) RequestFullscreen(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enters++
	if d.err != nil {
		return d.err
	}
	d.on = true
	return nil
}

func (d *Display) ExitFullscreen(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exits++
	if d.err != nil {
		return d.err
	}
	d.on = false
	return nil
}

func (d *Display) IsFullscreen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}

func (d *Display) Enters() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enters
}

// Sink collects stored artifacts.
type Sink struct {
	mu        sync.Mutex
	err       error
	artifacts []*media.Artifact
}

func (s *Sink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Sink) SaveArtifact(ctx context.Context, a *media.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.artifacts = append(s.artifacts, a)
	return nil
}

func (s *Sink) Artifacts() []*media.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*media.Artifact(nil), s.artifacts...)
}
