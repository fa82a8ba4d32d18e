package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"aiproctor/interview/internal/config"
	"aiproctor/interview/internal/events"
	"aiproctor/interview/internal/focus"
	"aiproctor/interview/internal/interview"
	"aiproctor/interview/internal/media"
	"aiproctor/interview/internal/metrics"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/publisher"

	"go.uber.org/zap"
)

const teardownTimeout = 10 * time.Second

// mounted is one live interview: the state machine plus the media and focus
// components it was built with. Everything here is discarded together.
type mounted struct {
	interviewID string
	userID      string
	jobRole     string

	session *interview.Session
	media   *media.Controller
	focus   *focus.Monitor
	bus     *events.Bus
	logger  *zap.Logger

	// cancelled at teardown; background work runs under it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	host       Host
	lastSeen   time.Time
	registered bool
	closed     bool
}

// SessionView is the session snapshot plus device and proctoring state.
type SessionView struct {
	interview.Snapshot
	Media         media.State `json:"media"`
	Focus         FocusView   `json:"focus"`
	HostConnected bool        `json:"hostConnected"`
}

type FocusView struct {
	Count         int  `json:"count"`
	WarningActive bool `json:"warningActive"`
	Threshold     int  `json:"threshold"`
}

// goRun runs fn under the session context unless teardown has begun.
func (m *mounted) goRun(fn func(ctx context.Context)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(m.ctx)
	}()
	return true
}

func (m *mounted) touch(now time.Time) {
	m.mu.Lock()
	m.lastSeen = now
	m.mu.Unlock()
}

func (m *mounted) currentHost() Host {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host
}

func (m *mounted) view() *SessionView {
	return &SessionView{
		Snapshot: m.session.Snapshot(),
		Media:    m.media.State(),
		Focus: FocusView{
			Count:         m.focus.Count(),
			WarningActive: m.focus.WarningActive(),
			Threshold:     m.focus.Threshold(),
		},
		HostConnected: m.currentHost() != nil,
	}
}

// Mount builds the session for an uploaded interview and starts question
// generation. Mounting an already mounted interview returns its view.
func (o *Orchestrator) Mount(ctx context.Context, userID, interviewID string) (*SessionView, error) {
	record, err := o.Interview(ctx, userID, interviewID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if m, ok := o.sessions[interviewID]; ok {
		o.mu.Unlock()
		m.touch(o.now())
		return m.view(), nil
	}
	o.mu.Unlock()

	// a completed record without a grade failed grading and may be retaken
	if record.Status == models.InterviewStatusGraded || record.Score != nil {
		return nil, ErrAlreadySubmitted
	}

	m, err := o.build(record)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if existing, ok := o.sessions[interviewID]; ok {
		// lost a race with a concurrent mount
		o.mu.Unlock()
		o.teardown(m, true)
		return existing.view(), nil
	}
	o.sessions[interviewID] = m
	o.mu.Unlock()

	o.register(m)
	o.generate(m)
	m.logger.Info("Interview session mounted")
	return m.view(), nil
}

func (o *Orchestrator) build(record *models.Interview) (*mounted, error) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &mounted{
		interviewID: record.ID,
		userID:      record.UserID,
		jobRole:     record.JobRole,
		bus:         events.NewBus(),
		logger:      o.logger.With(zap.String("interview_id", record.ID)),
		ctx:         ctx,
		cancel:      cancel,
		lastSeen:    o.now(),
	}

	m.media = media.NewController(media.Options{
		Timeslice: o.cfg.RecorderTimeslice,
		Sink:      &artifactSink{o: o, interviewID: record.ID},
		Bus:       m.bus,
		Logger:    m.logger,
	})

	var policy focus.ThresholdPolicy
	if o.cfg.ThresholdPolicy == config.ThresholdAutoSubmit {
		policy = func(count int) {
			// policy runs on the host read loop; grading must not block it
			m.goRun(func(ctx context.Context) { o.autoSubmit(ctx, m, count) })
		}
	}
	m.focus = focus.NewMonitor(focus.Options{
		Threshold:      o.cfg.MaxTabSwitches,
		WarningWindow:  o.cfg.WarningWindow,
		TerminalWindow: o.cfg.TerminalWarningWindow,
		Policy:         policy,
		Clock:          o.clock,
		Bus:            m.bus,
		Logger:         m.logger,
	})

	session, err := interview.NewSession(interview.Config{
		InterviewID:   record.ID,
		JobRole:       record.JobRole,
		SkillRating:   record.SkillRating,
		QuestionCount: o.cfg.QuestionCount,
		Policy:        interview.PersistencePolicy(o.cfg.PersistencePolicy),
		Generator:     o.generator,
		Grader:        o.grader,
		Store:         o.interviews,
		Recorder:      m.media,
		Focus:         m.focus,
		Logger:        o.logger,
		OnComplete:    func(result *models.GradeResult) { o.completed(m, result) },
		Now:           o.now,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	m.session = session

	m.bus.Subscribe(func(ev events.Event) { o.onEvent(m, ev) })
	return m, nil
}

func (o *Orchestrator) register(m *mounted) {
	m.mu.Lock()
	m.registered = true
	m.mu.Unlock()
	metrics.SessionsActive.Inc()
}

func (o *Orchestrator) generate(m *mounted) {
	m.goRun(func(ctx context.Context) {
		if err := m.session.Generate(ctx); err != nil {
			o.failed(m, err)
		}
	})
}

func (o *Orchestrator) lookup(userID, interviewID string) (*mounted, error) {
	o.mu.Lock()
	m, ok := o.sessions[interviewID]
	o.mu.Unlock()
	if !ok {
		return nil, ErrNotMounted
	}
	if m.userID != userID {
		return nil, ErrForbidden
	}
	m.touch(o.now())
	return m, nil
}

func (o *Orchestrator) Session(ctx context.Context, userID, interviewID string) (*SessionView, error) {
	m, err := o.lookup(userID, interviewID)
	if err != nil {
		return nil, err
	}
	return m.view(), nil
}

// Start confirms the interview once questions are ready.
func (o *Orchestrator) Start(ctx context.Context, userID, interviewID string) (*SessionView, error) {
	m, err := o.lookup(userID, interviewID)
	if err != nil {
		return nil, err
	}
	if err := m.session.Start(m.ctx); err != nil {
		return nil, err
	}
	o.attachFocus(m)
	return m.view(), nil
}

// Answer submits the current answer. The last answer grades the interview
// before returning; a failed submission is reported through the view.
func (o *Orchestrator) Answer(ctx context.Context, userID, interviewID, answer string) (*SessionView, error) {
	m, err := o.lookup(userID, interviewID)
	if err != nil {
		return nil, err
	}
	if err := m.session.SubmitAnswer(m.ctx, answer); err != nil {
		if errors.Is(err, interview.ErrInvalidState) {
			return nil, err
		}
		o.failed(m, err)
	}
	return m.view(), nil
}

func (o *Orchestrator) autoSubmit(ctx context.Context, m *mounted, count int) {
	m.logger.Warn("Auto-submitting after tab switch threshold", zap.Int("count", count))
	if err := m.session.ForceSubmit(ctx); err != nil && !errors.Is(err, interview.ErrInvalidState) {
		o.failed(m, err)
	}
}

func (o *Orchestrator) completed(m *mounted, result *models.GradeResult) {
	m.focus.Detach()
	metrics.SessionOutcomes.WithLabelValues(string(interview.StatusCompleted), "").Inc()

	if err := o.interviews.SaveGrade(m.ctx, m.interviewID, result); err != nil {
		m.logger.Warn("Failed to save grade", zap.Error(err))
	}
	if o.events != nil {
		err := o.events.PublishCompleted(m.ctx, publisher.InterviewCompletedEvent{
			InterviewID:    m.interviewID,
			UserID:         m.userID,
			JobRole:        m.jobRole,
			Score:          result.Score,
			IsSuspicious:   result.IsSuspicious,
			TabSwitchCount: result.TabSwitchCount,
			CompletedAt:    o.now().UTC(),
		})
		if err != nil {
			m.logger.Warn("Failed to publish completion", zap.Error(err))
		}
	}
}

func (o *Orchestrator) failed(m *mounted, err error) {
	var se *interview.SessionError
	if !errors.As(err, &se) {
		m.logger.Warn("Session operation failed", zap.Error(err))
		return
	}
	m.focus.Detach()
	metrics.SessionOutcomes.WithLabelValues(string(interview.StatusFailed), string(se.Stage)).Inc()
}

// Acquire retries the camera. Device failures are reported in the media
// state, not as an error. A stream gained mid-interview starts recording.
func (o *Orchestrator) Acquire(ctx context.Context, userID, interviewID string) (*SessionView, error) {
	m, err := o.lookup(userID, interviewID)
	if err != nil {
		return nil, err
	}
	if err := o.acquire(m); err != nil {
		return nil, err
	}
	return m.view(), nil
}

func (o *Orchestrator) acquire(m *mounted) error {
	err := m.media.Acquire(m.ctx)
	var de *media.DeviceError
	if errors.As(err, &de) {
		return nil
	}
	if err != nil {
		return err
	}
	o.resumeRecording(m)
	return nil
}

func (o *Orchestrator) resumeRecording(m *mounted) {
	if m.session.Status() != interview.StatusInProgress || !m.media.HasIdleStream() {
		return
	}
	if err := m.media.StartRecording(); err != nil {
		m.logger.Warn("Recording did not resume", zap.Error(err))
	}
}

func (o *Orchestrator) ToggleAudio(ctx context.Context, userID, interviewID string) (*SessionView, error) {
	m, err := o.lookup(userID, interviewID)
	if err != nil {
		return nil, err
	}
	if _, err := m.media.ToggleAudio(); err != nil {
		return nil, err
	}
	return m.view(), nil
}

func (o *Orchestrator) ToggleVideo(ctx context.Context, userID, interviewID string) (*SessionView, error) {
	m, err := o.lookup(userID, interviewID)
	if err != nil {
		return nil, err
	}
	hadStream := m.media.State().HasStream
	_, err = m.media.ToggleVideo(m.ctx)
	var de *media.DeviceError
	if err != nil && !errors.As(err, &de) {
		return nil, err
	}
	if err == nil && !hadStream {
		o.resumeRecording(m)
	}
	return m.view(), nil
}

// ToggleFullscreen is best-effort; a refusal leaves the view unchanged.
func (o *Orchestrator) ToggleFullscreen(ctx context.Context, userID, interviewID string) (*SessionView, error) {
	m, err := o.lookup(userID, interviewID)
	if err != nil {
		return nil, err
	}
	_ = m.media.ToggleFullscreen(m.ctx)
	return m.view(), nil
}

// Restart tears down the current session's media and focus resources and
// mounts a fresh session for the same interview. A connected host carries
// over and is asked for a new stream.
func (o *Orchestrator) Restart(ctx context.Context, userID, interviewID string) (*SessionView, error) {
	old, err := o.lookup(userID, interviewID)
	if err != nil {
		return nil, err
	}
	if old.session.Status() == interview.StatusCompleted {
		return nil, interview.ErrInvalidState
	}
	record, err := o.Interview(ctx, userID, interviewID)
	if err != nil {
		return nil, err
	}

	fresh, err := o.build(record)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.sessions[interviewID] != old {
		o.mu.Unlock()
		o.teardown(fresh, true)
		return nil, ErrNotMounted
	}
	o.sessions[interviewID] = fresh
	o.mu.Unlock()
	o.register(fresh)

	host := o.release(old)
	o.teardown(old, false)

	o.generate(fresh)
	if host != nil {
		o.attach(fresh, host)
	}
	fresh.logger.Info("Interview session restarted")
	return fresh.view(), nil
}

// Unmount tears the session down. Safe to call for an unmounted interview.
func (o *Orchestrator) Unmount(ctx context.Context, userID, interviewID string) error {
	m, err := o.lookup(userID, interviewID)
	if errors.Is(err, ErrNotMounted) {
		return nil
	}
	if err != nil {
		return err
	}
	o.remove(m)
	return nil
}

// ReapIdle tears down sessions untouched for longer than the idle TTL that
// either finished or lost their host. It returns how many were reaped.
func (o *Orchestrator) ReapIdle(now time.Time) int {
	o.mu.Lock()
	var idle []*mounted
	for _, m := range o.sessions {
		m.mu.Lock()
		stale := now.Sub(m.lastSeen) > o.cfg.SessionIdleTTL
		orphaned := m.host == nil
		m.mu.Unlock()
		if stale && (orphaned || m.session.Status().Terminal()) {
			idle = append(idle, m)
		}
	}
	o.mu.Unlock()

	for _, m := range idle {
		m.logger.Info("Reaping idle interview session")
		o.remove(m)
	}
	return len(idle)
}

// Close tears down every mounted session.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	all := make([]*mounted, 0, len(o.sessions))
	for _, m := range o.sessions {
		all = append(all, m)
	}
	o.mu.Unlock()

	for _, m := range all {
		o.remove(m)
	}
}

func (o *Orchestrator) Mounted() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

func (o *Orchestrator) remove(m *mounted) {
	o.mu.Lock()
	if o.sessions[m.interviewID] == m {
		delete(o.sessions, m.interviewID)
	}
	o.mu.Unlock()
	o.teardown(m, true)
}

// release detaches the host from m without closing it.
func (o *Orchestrator) release(m *mounted) Host {
	m.mu.Lock()
	host := m.host
	m.host = nil
	m.mu.Unlock()
	m.focus.Detach()
	return host
}

// teardown releases every resource m holds. Recording is stopped and
// flushed before the tracks go.
func (o *Orchestrator) teardown(m *mounted, closeHost bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	host := m.host
	m.host = nil
	registered := m.registered
	m.mu.Unlock()

	m.focus.Detach()
	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	m.media.Close(ctx)
	if closeHost && host != nil {
		_ = host.Close()
	}
	m.wg.Wait()

	if registered {
		metrics.SessionsActive.Dec()
	}
	m.logger.Info("Interview session torn down")
}

func (o *Orchestrator) onEvent(m *mounted, ev events.Event) {
	switch ev.Type {
	case events.VisibilityLost, events.FocusLost:
		metrics.FocusViolations.WithLabelValues(string(ev.Type)).Inc()
		if o.events != nil {
			violation := publisher.InterviewViolationEvent{
				InterviewID: m.interviewID,
				UserID:      m.userID,
				Cause:       string(ev.Type),
				Count:       ev.Count,
				Threshold:   m.focus.Threshold(),
				At:          ev.At,
			}
			m.goRun(func(ctx context.Context) {
				_ = o.events.PublishViolation(ctx, violation)
			})
		}
	case events.DeviceError, events.PlaybackError:
		metrics.DeviceFailures.WithLabelValues(string(ev.Type)).Inc()
	case events.RecordingStopped:
		if a := m.media.Artifact(); a != nil {
			metrics.RecordingBytes.Observe(float64(a.Size()))
		}
	}

	if host := m.currentHost(); host != nil {
		if err := host.Relay(ev); err != nil {
			m.logger.Debug("Failed to relay event to host", zap.String("event", string(ev.Type)), zap.Error(err))
		}
	}
}
