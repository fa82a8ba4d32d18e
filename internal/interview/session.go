// Package interview drives one candidate's pass from question generation to
// grading.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"aiproctor/interview/internal/models"

	"go.uber.org/zap"
)

type Status string

const (
	StatusGenerating    Status = "generating"
	StatusAwaitingStart Status = "awaiting-start"
	StatusInProgress    Status = "in-progress"
	StatusSubmitting    Status = "submitting"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PersistencePolicy decides whether a failed completion write stops grading.
type PersistencePolicy string

const (
	// PersistIndependent logs the persistence failure and grades anyway.
	PersistIndependent PersistencePolicy = "independent"
	// PersistAtomic fails the session at the persistence stage without grading.
	PersistAtomic PersistencePolicy = "atomic"
)

type Config struct {
	InterviewID   string
	JobRole       string
	SkillRating   int
	QuestionCount int
	Policy        PersistencePolicy

	Generator QuestionGenerator
	Grader    Grader
	Store     Store
	Recorder  Recorder
	Focus     ViolationCounter
	Logger    *zap.Logger

	// OnComplete receives the graded result once the session completes.
	OnComplete func(*models.GradeResult)
	Now        func() time.Time
}

type Session struct {
	cfg    Config
	logger *zap.Logger

	mu             sync.Mutex
	status         Status
	generated      []string
	questions      []string
	index          int
	answers        []string
	tabSwitchCount int
	completedAt    time.Time
	result         *models.GradeResult
	err            *SessionError
}

func NewSession(cfg Config) (*Session, error) {
	cfg.JobRole = strings.TrimSpace(cfg.JobRole)
	if cfg.InterviewID == "" {
		return nil, fmt.Errorf("%w: interview id is required", ErrInvalidInput)
	}
	if cfg.JobRole == "" {
		return nil, fmt.Errorf("%w: job role is required", ErrInvalidInput)
	}
	if cfg.SkillRating < models.MinSkillRating || cfg.SkillRating > models.MaxSkillRating {
		return nil, fmt.Errorf("%w: skill rating must be between %d and %d", ErrInvalidInput, models.MinSkillRating, models.MaxSkillRating)
	}
	if cfg.Generator == nil || cfg.Grader == nil {
		return nil, fmt.Errorf("%w: generator and grader are required", ErrInvalidInput)
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = models.DefaultQuestionCount
	}
	if cfg.Policy == "" {
		cfg.Policy = PersistIndependent
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		cfg:    cfg,
		logger: cfg.Logger.With(zap.String("interview_id", cfg.InterviewID)),
		status: StatusGenerating,
	}, nil
}

func (s *Session) ID() string {
	return s.cfg.InterviewID
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Generate requests the question set. It runs once, from generating; a
// failure is terminal and there is no retry loop.
func (s *Session) Generate(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusGenerating || s.generated != nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	// mark in-flight so a second caller cannot start another generation
	s.generated = []string{}
	s.mu.Unlock()

	s.logger.Info("Generating questions",
		zap.String("job_role", s.cfg.JobRole),
		zap.Int("skill_rating", s.cfg.SkillRating))

	questions, err := s.cfg.Generator.GenerateQuestions(ctx, s.cfg.JobRole, s.cfg.SkillRating)
	if err == nil && len(questions) != s.cfg.QuestionCount {
		err = fmt.Errorf("%w: expected %d, got %d", ErrQuestionCount, s.cfg.QuestionCount, len(questions))
	}
	if err != nil {
		return s.fail(StageGeneration, err)
	}

	if s.cfg.Store != nil {
		if perr := s.cfg.Store.SaveQuestions(ctx, s.cfg.InterviewID, questions); perr != nil {
			s.logger.Warn("Failed to persist generated questions", zap.Error(perr))
		}
	}

	s.mu.Lock()
	s.generated = append([]string(nil), questions...)
	s.status = StatusAwaitingStart
	s.mu.Unlock()

	s.logger.Info("Questions generated", zap.Int("count", len(questions)))
	return nil
}

// Start binds the generated questions and opens the interview. Full-screen
// and recording are attempted in that order and neither can block the start.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusAwaitingStart {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.questions = s.generated
	s.index = 0
	s.answers = make([]string, 0, len(s.questions))
	s.status = StatusInProgress
	s.mu.Unlock()

	if rec := s.cfg.Recorder; rec != nil {
		if err := rec.EnterFullscreen(ctx); err != nil {
			s.logger.Info("Continuing without fullscreen", zap.Error(err))
		}
		if rec.HasIdleStream() {
			if err := rec.StartRecording(); err != nil {
				s.logger.Warn("Recording did not start", zap.Error(err))
			}
		}
	}
	s.logger.Info("Interview started")
	return nil
}

// CanSubmit reports whether answer would be accepted for the current question.
func (s *Session) CanSubmit(answer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusInProgress && strings.TrimSpace(answer) != ""
}

// SubmitAnswer records the answer to the current question. Blank answers are
// ignored. The last answer triggers submission, which runs before returning.
func (s *Session) SubmitAnswer(ctx context.Context, answer string) error {
	s.mu.Lock()
	if s.status != StatusInProgress {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if strings.TrimSpace(answer) == "" {
		s.mu.Unlock()
		return nil
	}
	s.answers = append(s.answers, answer)
	if s.index < len(s.questions)-1 {
		s.index++
		s.mu.Unlock()
		return nil
	}
	s.status = StatusSubmitting
	s.mu.Unlock()

	return s.submit(ctx)
}

// ForceSubmit ends an in-progress interview early. Unanswered questions are
// recorded as empty strings so answers stay index-aligned.
func (s *Session) ForceSubmit(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusInProgress {
		s.mu.Unlock()
		return ErrInvalidState
	}
	for len(s.answers) < len(s.questions) {
		s.answers = append(s.answers, "")
	}
	s.status = StatusSubmitting
	s.mu.Unlock()

	s.logger.Warn("Interview force-submitted")
	return s.submit(ctx)
}

func (s *Session) submit(ctx context.Context) error {
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.StopRecording(ctx)
	}

	tabs := 0
	if s.cfg.Focus != nil {
		tabs = s.cfg.Focus.Count()
	}
	completedAt := s.cfg.Now().UTC()

	s.mu.Lock()
	s.tabSwitchCount = tabs
	s.completedAt = completedAt
	answers := append([]string(nil), s.answers...)
	questions := append([]string(nil), s.questions...)
	s.mu.Unlock()

	if s.cfg.Store != nil {
		if err := s.cfg.Store.CompleteInterview(ctx, s.cfg.InterviewID, answers, tabs, completedAt); err != nil {
			if s.cfg.Policy == PersistAtomic {
				return s.fail(StagePersistence, err)
			}
			s.logger.Warn("Failed to persist answers, grading anyway", zap.Error(err))
		}
	}

	result, err := s.cfg.Grader.GradeInterview(ctx, models.GradeInterviewRequest{
		InterviewID:    s.cfg.InterviewID,
		JobRole:        s.cfg.JobRole,
		Questions:      questions,
		Answers:        answers,
		TabSwitchCount: tabs,
	})
	if err == nil && result == nil {
		err = errors.New("grading service returned no result")
	}
	if err != nil {
		return s.fail(StageGrading, err)
	}

	s.mu.Lock()
	s.result = result
	s.status = StatusCompleted
	s.mu.Unlock()

	s.logger.Info("Interview graded",
		zap.Float64("score", result.Score),
		zap.Bool("suspicious", result.IsSuspicious),
		zap.Int("tab_switch_count", tabs))
	if s.cfg.OnComplete != nil {
		s.cfg.OnComplete(result)
	}
	return nil
}

func (s *Session) fail(stage Stage, err error) error {
	se := newSessionError(stage, err)
	s.mu.Lock()
	s.err = se
	s.status = StatusFailed
	s.mu.Unlock()
	s.logger.Error("Interview session failed", zap.String("stage", string(stage)), zap.Error(err))
	return se
}

func (s *Session) Result() *models.GradeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) Err() *SessionError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
