// Package focus counts the times a candidate leaves the interview page and
// keeps a short-lived warning flag after each one.
package focus

import (
	"sync"
	"time"

	"aiproctor/interview/internal/events"

	"go.uber.org/zap"
)

const (
	DefaultThreshold      = 3
	DefaultWarningWindow  = 5 * time.Second
	DefaultTerminalWindow = 10 * time.Second
)

// ThresholdPolicy runs once, the first time the count reaches the threshold.
// A nil policy leaves the breach informational.
type ThresholdPolicy func(count int)

type Options struct {
	Threshold      int
	WarningWindow  time.Duration
	TerminalWindow time.Duration
	Policy         ThresholdPolicy
	Clock          Clock
	Bus            *events.Bus
	Logger         *zap.Logger
}

type Monitor struct {
	threshold      int
	warningWindow  time.Duration
	terminalWindow time.Duration
	policy         ThresholdPolicy
	clock          Clock
	bus            *events.Bus
	logger         *zap.Logger

	mu            sync.Mutex
	count         int
	warningActive bool
	timer         Timer
	// bumps on every violation so a stale timer cannot clear a newer warning
	generation uint64
	cancel     func()
	breached   bool
}

func NewMonitor(opts Options) *Monitor {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.WarningWindow <= 0 {
		opts.WarningWindow = DefaultWarningWindow
	}
	if opts.TerminalWindow <= 0 {
		opts.TerminalWindow = DefaultTerminalWindow
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{
		threshold:      opts.Threshold,
		warningWindow:  opts.WarningWindow,
		terminalWindow: opts.TerminalWindow,
		policy:         opts.Policy,
		clock:          opts.Clock,
		bus:            opts.Bus,
		logger:         opts.Logger,
	}
}

// Attach starts listening to src, replacing any previous source.
func (m *Monitor) Attach(src Source) {
	m.Detach()
	cancel := src.Listen(m.handle)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
}

// Detach stops listening and drops the warning along with its timer. The
// count is kept.
func (m *Monitor) Detach() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.warningActive = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (m *Monitor) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) handle(s Signal) {
	switch s.Kind {
	case SignalVisibility:
		if s.Hidden {
			m.violate(events.VisibilityLost)
		}
	case SignalBlur:
		// hidden pages already produced a visibility signal for the same switch
		if s.DocumentVisible {
			m.violate(events.FocusLost)
		}
	}
}

func (m *Monitor) violate(cause events.Type) {
	m.mu.Lock()
	m.count++
	count := m.count
	m.warningActive = true
	m.generation++
	gen := m.generation

	window := m.warningWindow
	if count >= m.threshold {
		window = m.terminalWindow
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clock.AfterFunc(window, func() { m.clearWarning(gen) })

	breach := count >= m.threshold && !m.breached
	if breach {
		m.breached = true
	}
	policy := m.policy
	m.mu.Unlock()

	m.logger.Info("Focus violation detected",
		zap.String("cause", string(cause)),
		zap.Int("count", count))
	m.bus.Publish(events.Event{Type: cause, Count: count})
	m.bus.Publish(events.Event{Type: events.Violation, Count: count, Active: true})

	if breach {
		m.logger.Warn("Tab switch threshold reached", zap.Int("count", count), zap.Int("threshold", m.threshold))
		m.bus.Publish(events.Event{Type: events.ThresholdReached, Count: count})
		if policy != nil {
			policy(count)
		}
	}
}

func (m *Monitor) clearWarning(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || !m.warningActive {
		m.mu.Unlock()
		return
	}
	m.warningActive = false
	m.timer = nil
	count := m.count
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.WarningCleared, Count: count})
}

func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *Monitor) WarningActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warningActive
}

func (m *Monitor) Threshold() int {
	return m.threshold
}

func (m *Monitor) Subscribe(h events.Handler) events.Subscription {
	return m.bus.Subscribe(h)
}

func (m *Monitor) Unsubscribe(id events.Subscription) {
	m.bus.Unsubscribe(id)
}
