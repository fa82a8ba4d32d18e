package orchestrator

import (
	"bytes"
	"context"
	"fmt"

	"aiproctor/interview/internal/events"
	"aiproctor/interview/internal/focus"
	"aiproctor/interview/internal/hostbridge"
	"aiproctor/interview/internal/interview"
	"aiproctor/interview/internal/media"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Host is the candidate's browser: camera, full-screen surface and focus
// signals, plus a channel back for session events.
type Host interface {
	media.Device
	media.Display
	focus.Source
	Relay(ev events.Event) error
	Close() error
}

// ServeHost bridges conn to the mounted session until the connection drops.
// A newer connection for the same interview replaces this one.
func (o *Orchestrator) ServeHost(ctx context.Context, userID, interviewID string, conn *websocket.Conn) error {
	m, err := o.lookup(userID, interviewID)
	if err != nil {
		return err
	}

	host := hostbridge.New(conn, hostbridge.Options{
		ReplyTimeout: o.cfg.HostReplyTimeout,
		Logger:       m.logger,
		OnPlaybackError: func(message string) {
			if cur := o.current(interviewID); cur != nil {
				cur.media.ReportPlaybackError(message)
			}
		},
		OnTrackReady: func() {
			if cur := o.current(interviewID); cur != nil {
				cur.media.ReportTrackReady()
			}
		},
	})

	o.attach(m, host)
	defer o.detach(interviewID, host)
	return host.Run(ctx)
}

func (o *Orchestrator) current(interviewID string) *mounted {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[interviewID]
}

// AttachHost connects h to a mounted session. The returned func detaches it.
func (o *Orchestrator) AttachHost(userID, interviewID string, h Host) (func(), error) {
	m, err := o.lookup(userID, interviewID)
	if err != nil {
		return nil, err
	}
	o.attach(m, h)
	return func() { o.detach(interviewID, h) }, nil
}

// attach points the media controller at h, asks for the camera in the
// background, and starts focus monitoring when the interview is running.
func (o *Orchestrator) attach(m *mounted, h Host) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = h.Close()
		return
	}
	prev := m.host
	m.host = h
	m.mu.Unlock()

	if prev != nil && prev != h {
		m.focus.Detach()
		_ = prev.Close()
	}

	m.media.SetHost(h, h)
	m.logger.Info("Host connected")
	m.goRun(func(ctx context.Context) {
		if err := o.acquire(m); err != nil {
			m.logger.Warn("Initial device acquisition failed", zap.Error(err))
		}
	})
	o.attachFocus(m)
}

func (o *Orchestrator) attachFocus(m *mounted) {
	host := m.currentHost()
	if host == nil || m.session.Status() != interview.StatusInProgress {
		return
	}
	m.focus.Attach(host)
}

// detach clears h from whichever session currently holds it. The next host
// to attach re-acquires, which releases the stale stream.
func (o *Orchestrator) detach(interviewID string, h Host) {
	m := o.current(interviewID)
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.host != h {
		m.mu.Unlock()
		return
	}
	m.host = nil
	m.mu.Unlock()

	m.focus.Detach()
	m.media.SetHost(nil, nil)
	m.logger.Info("Host disconnected")
}

// artifactSink uploads a finished recording and links it to the interview.
type artifactSink struct {
	o           *Orchestrator
	interviewID string
}

func (s *artifactSink) SaveArtifact(ctx context.Context, artifact *media.Artifact) error {
	if s.o.blobs == nil || artifact.Size() == 0 {
		return nil
	}
	name := fmt.Sprintf("%s-%d.webm", s.interviewID, artifact.StoppedAt.UnixMilli())
	url, err := s.o.blobs.Upload(ctx, name, artifact.MimeType, bytes.NewReader(artifact.Data))
	if err != nil {
		return fmt.Errorf("upload recording: %w", err)
	}
	return s.o.interviews.SetRecordingURL(ctx, s.interviewID, url)
}
