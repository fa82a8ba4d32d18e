// Package events carries typed notifications from the media controller and
// focus monitor to whoever is driving a session.
package events

import (
	"sync"
	"time"
)

type Type string

const (
	TrackReady       Type = "track-ready"
	PlaybackError    Type = "playback-error"
	DeviceError      Type = "device-error"
	CameraOff        Type = "camera-off"
	VisibilityLost   Type = "visibility-lost"
	FocusLost        Type = "focus-lost"
	Violation        Type = "violation"
	WarningCleared   Type = "warning-cleared"
	ThresholdReached Type = "threshold-reached"
	RecordingStarted Type = "recording-started"
	RecordingStopped Type = "recording-stopped"
	FullscreenChange Type = "fullscreen-changed"
)

type Event struct {
	Type    Type      `json:"type"`
	Count   int       `json:"count,omitempty"`
	Message string    `json:"message,omitempty"`
	Active  bool      `json:"active,omitempty"`
	At      time.Time `json:"at"`
}

type Handler func(Event)

type Subscription uint64

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	next     Subscription
	order    []Subscription
	handlers map[Subscription]Handler
	now      func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Subscription]Handler),
		now:      time.Now,
	}
}

func (b *Bus) Subscribe(h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.handlers[id] = h
	b.order = append(b.order, id)
	return id
}

func (b *Bus) Unsubscribe(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[id]; !ok {
		return
	}
	delete(b.handlers, id)
	for i, s := range b.order {
		if s == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish stamps the event and invokes handlers outside the lock so a handler
// may itself subscribe or unsubscribe.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	if e.At.IsZero() {
		e.At = b.now()
	}
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
