// Package hostbridge drives the candidate's browser over a WebSocket. The
// browser owns the real camera, recorder and document; Host exposes them as
// media.Device, media.Display and focus.Source.
package hostbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"aiproctor/interview/internal/events"
	"aiproctor/interview/internal/focus"
	"aiproctor/interview/internal/media"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultReplyTimeout = 60 * time.Second
	DefaultStopTimeout  = 5 * time.Second
	writeWait           = 10 * time.Second
)

var (
	ErrHostGone     = errors.New("host disconnected")
	ErrReplyTimeout = errors.New("host did not reply in time")
)

// HostError is a rejection reported by the browser, named by its DOMException.
type HostError struct {
	Name    string
	Message string
}

func (e *HostError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

type Options struct {
	ReplyTimeout    time.Duration
	StopTimeout     time.Duration
	Logger          *zap.Logger
	OnPlaybackError func(message string)
	OnTrackReady    func()
}

type Host struct {
	conn        *websocket.Conn
	timeout     time.Duration
	stopTimeout time.Duration
	logger      *zap.Logger

	onPlaybackError func(string)
	onTrackReady    func()

	writeMu sync.Mutex

	mu         sync.Mutex
	pending    map[string]chan Message
	listeners  map[uint64]func(focus.Signal)
	nextListen uint64
	capture    *hostCapture
	fullscreen bool

	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ media.Device  = (*Host)(nil)
	_ media.Display = (*Host)(nil)
	_ focus.Source  = (*Host)(nil)
)

func New(conn *websocket.Conn, opts Options) *Host {
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = DefaultReplyTimeout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Host{
		conn:            conn,
		timeout:         opts.ReplyTimeout,
		stopTimeout:     opts.StopTimeout,
		logger:          opts.Logger,
		onPlaybackError: opts.OnPlaybackError,
		onTrackReady:    opts.OnTrackReady,
		pending:         make(map[string]chan Message),
		listeners:       make(map[uint64]func(focus.Signal)),
		done:            make(chan struct{}),
	}
}

// Run reads frames until the connection drops or ctx ends. Pending requests
// fail with ErrHostGone once it returns.
func (h *Host) Run(ctx context.Context) error {
	defer h.Close()

	go func() {
		select {
		case <-ctx.Done():
			h.Close()
		case <-h.done:
		}
	}()

	for {
		kind, data, err := h.conn.ReadMessage()
		if err != nil {
			select {
			case <-h.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		switch kind {
		case websocket.BinaryMessage:
			h.handleSlice(data)
		case websocket.TextMessage:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				h.logger.Warn("Dropping malformed host frame", zap.Error(err))
				continue
			}
			h.dispatch(msg)
		}
	}
}

func (h *Host) Done() <-chan struct{} {
	return h.done
}

func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		h.pending = make(map[string]chan Message)
		h.mu.Unlock()

		h.writeMu.Lock()
		_ = h.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		h.writeMu.Unlock()
		err = h.conn.Close()
	})
	return err
}

func (h *Host) dispatch(msg Message) {
	switch msg.Type {
	case msgStream, msgError, msgAck:
		h.mu.Lock()
		ch, ok := h.pending[msg.ID]
		delete(h.pending, msg.ID)
		h.mu.Unlock()
		if !ok {
			h.logger.Debug("Reply for unknown request", zap.String("id", msg.ID), zap.String("type", msg.Type))
			return
		}
		ch <- msg
	case msgVisibilityChange:
		h.signal(focus.Signal{Kind: focus.SignalVisibility, Hidden: msg.Hidden})
	case msgBlur:
		h.signal(focus.Signal{Kind: focus.SignalBlur, DocumentVisible: msg.VisibilityState == "visible"})
	case msgPlaybackError:
		if h.onPlaybackError != nil {
			h.onPlaybackError(msg.Message)
		}
	case msgTrackReady:
		if h.onTrackReady != nil {
			h.onTrackReady()
		}
	case msgFullscreenChange:
		h.mu.Lock()
		h.fullscreen = msg.Fullscreen
		h.mu.Unlock()
	default:
		h.logger.Warn("Unknown host message type", zap.String("type", msg.Type))
	}
}

func (h *Host) handleSlice(data []byte) {
	h.mu.Lock()
	c := h.capture
	h.mu.Unlock()
	if c == nil {
		h.logger.Debug("Dropping recorder slice with no active capture", zap.Int("bytes", len(data)))
		return
	}
	c.append(data)
}

func (h *Host) send(msg Message) error {
	select {
	case <-h.done:
		return ErrHostGone
	default:
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

// request sends msg under a fresh correlation id and waits for the host reply.
func (h *Host) request(ctx context.Context, msg Message) (Message, error) {
	return h.requestWithin(ctx, msg, h.timeout)
}

func (h *Host) requestWithin(ctx context.Context, msg Message, timeout time.Duration) (Message, error) {
	msg.ID = uuid.NewString()
	reply := make(chan Message, 1)

	h.mu.Lock()
	h.pending[msg.ID] = reply
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, msg.ID)
		h.mu.Unlock()
	}()

	if err := h.send(msg); err != nil {
		return Message{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-reply:
		if r.Type == msgError {
			return r, &HostError{Name: r.Name, Message: r.Message}
		}
		return r, nil
	case <-timer.C:
		return Message{}, ErrReplyTimeout
	case <-h.done:
		return Message{}, ErrHostGone
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// GetUserMedia asks the browser for a stream and blocks until the candidate
// answers the permission prompt.
func (h *Host) GetUserMedia(ctx context.Context, c media.Constraints) (media.Stream, error) {
	reply, err := h.request(ctx, Message{Type: msgAcquire, Constraints: &c})
	if err != nil {
		return nil, mapAcquireError(err)
	}

	s := &hostStream{host: h}
	for _, info := range reply.Tracks {
		s.tracks = append(s.tracks, &hostTrack{host: h, id: info.ID, kind: info.Kind, enabled: true})
	}
	return s, nil
}

func mapAcquireError(err error) error {
	var he *HostError
	if !errors.As(err, &he) {
		return err
	}
	switch he.Name {
	case domNotAllowed, domSecurity:
		return fmt.Errorf("%w: %s", media.ErrPermissionDenied, he.Error())
	case domNotFound, domNotReadable, domOverconstrained:
		return fmt.Errorf("%w: %s", media.ErrNoDevice, he.Error())
	default:
		return he
	}
}

func (h *Host) RequestFullscreen(ctx context.Context) error {
	return h.setFullscreen(ctx, true)
}

func (h *Host) ExitFullscreen(ctx context.Context) error {
	return h.setFullscreen(ctx, false)
}

func (h *Host) setFullscreen(ctx context.Context, enter bool) error {
	if _, err := h.request(ctx, Message{Type: msgFullscreen, Enter: boolPtr(enter)}); err != nil {
		return err
	}
	h.mu.Lock()
	h.fullscreen = enter
	h.mu.Unlock()
	return nil
}

func (h *Host) IsFullscreen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fullscreen
}

// Listen registers a focus signal handler. Handlers run on the read loop.
func (h *Host) Listen(handler func(focus.Signal)) func() {
	h.mu.Lock()
	h.nextListen++
	id := h.nextListen
	h.listeners[id] = handler
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *Host) signal(s focus.Signal) {
	h.mu.Lock()
	handlers := make([]func(focus.Signal), 0, len(h.listeners))
	for _, fn := range h.listeners {
		handlers = append(handlers, fn)
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(s)
	}
}

// Relay forwards a session event to the page (warnings, threshold, camera).
func (h *Host) Relay(ev events.Event) error {
	return h.send(Message{Type: msgEvent, Event: &ev})
}
