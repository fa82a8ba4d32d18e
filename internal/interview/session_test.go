package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"aiproctor/interview/internal/focus"
	"aiproctor/interview/internal/media"
	"aiproctor/interview/internal/media/mediatest"
	"aiproctor/interview/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	questions []string
	err       error
	calls     int
}

func (g *fakeGenerator) GenerateQuestions(ctx context.Context, jobRole string, skillRating int) ([]string, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if g.questions != nil {
		return g.questions, nil
	}
	out := make([]string, 5)
	for i := range out {
		out[i] = fmt.Sprintf("%s question %d (level %d)", jobRole, i+1, skillRating)
	}
	return out, nil
}

type fakeGrader struct {
	mu       sync.Mutex
	requests []models.GradeInterviewRequest
	err      error
}

func (g *fakeGrader) GradeInterview(ctx context.Context, req models.GradeInterviewRequest) (*models.GradeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &models.GradeResult{
		Score:          82,
		Feedback:       "solid",
		IsSuspicious:   req.TabSwitchCount >= 3,
		TabSwitchCount: req.TabSwitchCount,
	}, nil
}

type fakeStore struct {
	saveErr     error
	completeErr error
	saved       []string
	completed   []string
	tabs        int
	calls       []string
}

func (s *fakeStore) SaveQuestions(ctx context.Context, id string, questions []string) error {
	s.calls = append(s.calls, "save")
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = questions
	return nil
}

func (s *fakeStore) CompleteInterview(ctx context.Context, id string, answers []string, tabs int, at time.Time) error {
	s.calls = append(s.calls, "complete")
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = answers
	s.tabs = tabs
	return nil
}

type counter int

func (c counter) Count() int { return int(c) }

func newSession(t *testing.T, mutate func(*Config)) (*Session, *fakeGenerator, *fakeGrader, *fakeStore) {
	t.Helper()
	gen := &fakeGenerator{}
	grader := &fakeGrader{}
	store := &fakeStore{}
	cfg := Config{
		InterviewID: "iv-1",
		JobRole:     "Backend Engineer",
		SkillRating: 7,
		Generator:   gen,
		Grader:      grader,
		Store:       store,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSession(cfg)
	require.NoError(t, err)
	return s, gen, grader, store
}

func answerAll(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.SubmitAnswer(context.Background(), fmt.Sprintf("answer %d", i+1)))
	}
}

func TestNewSession_Validation(t *testing.T) {
	base := Config{InterviewID: "x", JobRole: "Dev", SkillRating: 5, Generator: &fakeGenerator{}, Grader: &fakeGrader{}}

	cases := map[string]func(*Config){
		"missing id":   func(c *Config) { c.InterviewID = "" },
		"blank role":   func(c *Config) { c.JobRole = "   " },
		"rating low":   func(c *Config) { c.SkillRating = 0 },
		"rating high":  func(c *Config) { c.SkillRating = 11 },
		"no generator": func(c *Config) { c.Generator = nil },
		"no grader":    func(c *Config) { c.Grader = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			_, err := NewSession(cfg)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

// Scenario A: five questions, five answers, graded.
func TestSession_HappyPath(t *testing.T) {
	var completed *models.GradeResult
	s, gen, grader, store := newSession(t, func(c *Config) {
		c.OnComplete = func(r *models.GradeResult) { completed = r }
	})
	ctx := context.Background()

	assert.Equal(t, StatusGenerating, s.Status())
	require.NoError(t, s.Generate(ctx))
	assert.Equal(t, StatusAwaitingStart, s.Status())
	assert.Equal(t, 1, gen.calls)
	assert.Len(t, store.saved, 5)

	// questions are not bound until the candidate confirms
	assert.Empty(t, s.Snapshot().Questions)

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, StatusInProgress, s.Status())
	assert.Len(t, s.Snapshot().Questions, 5)

	answerAll(t, s, 5)

	assert.Equal(t, StatusCompleted, s.Status())
	require.Len(t, grader.requests, 1)
	req := grader.requests[0]
	assert.Equal(t, "iv-1", req.InterviewID)
	assert.Len(t, req.Answers, 5)
	assert.Len(t, req.Questions, 5)
	assert.Equal(t, []string{"save", "complete"}, store.calls)
	require.NotNil(t, completed)
	assert.Equal(t, 82.0, completed.Score)
	assert.Equal(t, completed, s.Result())
}

// Scenario B: a short question set never reaches in-progress.
func TestSession_WrongQuestionCountFails(t *testing.T) {
	s, gen, _, store := newSession(t, nil)
	gen.questions = []string{"a", "b"}

	err := s.Generate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuestionCount)

	var se *SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageGeneration, se.Stage)
	assert.Equal(t, StatusFailed, s.Status())
	assert.Empty(t, store.calls, "invalid sets are never persisted")

	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidState)
	assert.Equal(t, StatusFailed, s.Status())
}

func TestSession_TooManyQuestionsFails(t *testing.T) {
	s, gen, _, _ := newSession(t, nil)
	gen.questions = []string{"1", "2", "3", "4", "5", "6"}
	assert.ErrorIs(t, s.Generate(context.Background()), ErrQuestionCount)
	assert.Empty(t, s.Snapshot().Questions)
}

func TestSession_GenerationErrorKeepsServiceMessage(t *testing.T) {
	s, gen, _, _ := newSession(t, nil)
	gen.err = errors.New("Skill rating must be a number between 1 and 10")

	err := s.Generate(context.Background())
	var se *SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Skill rating must be a number between 1 and 10", se.Message)
	assert.Equal(t, se.Message, s.Snapshot().Error.Message)

	assert.ErrorIs(t, s.Generate(context.Background()), ErrInvalidState, "no retry loop")
	assert.Equal(t, 1, gen.calls)
}

func TestSession_QuestionPersistenceIsBestEffort(t *testing.T) {
	s, _, _, store := newSession(t, nil)
	store.saveErr = errors.New("db down")

	require.NoError(t, s.Generate(context.Background()))
	assert.Equal(t, StatusAwaitingStart, s.Status())
}

func TestSession_BlankAnswersAreIgnored(t *testing.T) {
	s, _, _, _ := newSession(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Generate(ctx))
	require.NoError(t, s.Start(ctx))

	assert.False(t, s.CanSubmit("   \n\t"))
	require.NoError(t, s.SubmitAnswer(ctx, "   \n\t"))
	snap := s.Snapshot()
	assert.Equal(t, 0, snap.CurrentQuestionIndex)
	assert.Empty(t, snap.Answers)

	assert.True(t, s.CanSubmit("x"))
	require.NoError(t, s.SubmitAnswer(ctx, "x"))
	snap = s.Snapshot()
	assert.Equal(t, 1, snap.CurrentQuestionIndex)
	assert.Len(t, snap.Answers, snap.CurrentQuestionIndex)
}

func TestSession_AnswersTrackIndex(t *testing.T) {
	s, _, grader, _ := newSession(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Generate(ctx))
	require.NoError(t, s.Start(ctx))

	for i := 0; i < 4; i++ {
		require.NoError(t, s.SubmitAnswer(ctx, "ok"))
		snap := s.Snapshot()
		assert.Equal(t, StatusInProgress, snap.Status)
		assert.Equal(t, len(snap.Answers), snap.CurrentQuestionIndex)
		assert.Equal(t, snap.Questions[snap.CurrentQuestionIndex], snap.CurrentQuestion)
	}
	require.NoError(t, s.SubmitAnswer(ctx, "last"))
	snap := s.Snapshot()
	assert.Equal(t, 4, snap.CurrentQuestionIndex, "index stops at the last question")
	assert.Len(t, snap.Answers, 5)
	assert.Len(t, grader.requests[0].Answers, len(snap.Questions))

	assert.ErrorIs(t, s.SubmitAnswer(ctx, "late"), ErrInvalidState)
}

func TestSession_OperationsOutOfOrder(t *testing.T) {
	s, _, _, _ := newSession(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.Start(ctx), ErrInvalidState)
	assert.ErrorIs(t, s.SubmitAnswer(ctx, "x"), ErrInvalidState)
	assert.ErrorIs(t, s.ForceSubmit(ctx), ErrInvalidState)
	assert.False(t, s.CanSubmit("x"))

	require.NoError(t, s.Generate(ctx))
	assert.ErrorIs(t, s.Generate(ctx), ErrInvalidState)
	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrInvalidState)
}

func TestSession_GradingFailureKeepsState(t *testing.T) {
	s, _, grader, _ := newSession(t, nil)
	grader.err = errors.New("Failed to grade interview")
	ctx := context.Background()
	require.NoError(t, s.Generate(ctx))
	require.NoError(t, s.Start(ctx))

	for i := 0; i < 4; i++ {
		require.NoError(t, s.SubmitAnswer(ctx, "a"))
	}
	err := s.SubmitAnswer(ctx, "b")
	var se *SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageGrading, se.Stage)

	snap := s.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Len(t, snap.Answers, 5)
	assert.Equal(t, 4, snap.CurrentQuestionIndex)
	assert.Equal(t, "Failed to grade interview", snap.Error.Message)
	assert.Nil(t, snap.Result)
}

func TestSession_PersistencePolicy(t *testing.T) {
	t.Run("independent grades anyway", func(t *testing.T) {
		s, _, grader, store := newSession(t, nil)
		store.completeErr = errors.New("write failed")
		ctx := context.Background()
		require.NoError(t, s.Generate(ctx))
		require.NoError(t, s.Start(ctx))
		answerAll(t, s, 5)

		assert.Equal(t, StatusCompleted, s.Status())
		assert.Len(t, grader.requests, 1)
	})

	t.Run("atomic stops before grading", func(t *testing.T) {
		s, _, grader, store := newSession(t, func(c *Config) { c.Policy = PersistAtomic })
		store.completeErr = errors.New("write failed")
		ctx := context.Background()
		require.NoError(t, s.Generate(ctx))
		require.NoError(t, s.Start(ctx))
		for i := 0; i < 4; i++ {
			require.NoError(t, s.SubmitAnswer(ctx, "a"))
		}

		err := s.SubmitAnswer(ctx, "b")
		var se *SessionError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StagePersistence, se.Stage)
		assert.Equal(t, "write failed", se.Message)
		assert.Empty(t, grader.requests)
		assert.Equal(t, StatusFailed, s.Status())
	})
}

func TestSession_ForceSubmitPadsAnswers(t *testing.T) {
	s, _, grader, _ := newSession(t, func(c *Config) { c.Focus = counter(3) })
	ctx := context.Background()
	require.NoError(t, s.Generate(ctx))
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.SubmitAnswer(ctx, "first"))

	require.NoError(t, s.ForceSubmit(ctx))
	require.Len(t, grader.requests, 1)
	assert.Equal(t, []string{"first", "", "", "", ""}, grader.requests[0].Answers)
	assert.Equal(t, 3, grader.requests[0].TabSwitchCount)
	assert.True(t, s.Result().IsSuspicious)
}

// Scenario C: camera denied, the interview still runs text-only.
func TestSession_DeviceFailureDoesNotBlock(t *testing.T) {
	device := mediatest.NewDevice()
	device.Fail(media.ErrPermissionDenied)
	display := mediatest.NewDisplay()
	display.Fail(errors.New("fullscreen rejected"))
	ctrl := media.NewController(media.Options{Device: device, Display: display})

	ctx := context.Background()
	acquireErr := ctrl.Acquire(ctx)
	require.Error(t, acquireErr)
	assert.True(t, ctrl.State().CameraOff)

	s, _, grader, _ := newSession(t, func(c *Config) { c.Recorder = ctrl })
	require.NoError(t, s.Generate(ctx))
	require.NoError(t, s.Start(ctx))
	assert.Equal(t, StatusInProgress, s.Status())
	assert.Equal(t, media.RecordingIdle, ctrl.State().Recording)

	answerAll(t, s, 5)
	assert.Equal(t, StatusCompleted, s.Status())
	assert.Len(t, grader.requests, 1)
}

func TestSession_StartRecordsWhenStreamReady(t *testing.T) {
	device := mediatest.NewDevice()
	ctrl := media.NewController(media.Options{Device: device, Display: mediatest.NewDisplay(), Timeslice: 10 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, ctrl.Acquire(ctx))

	s, _, _, _ := newSession(t, func(c *Config) { c.Recorder = ctrl })
	require.NoError(t, s.Generate(ctx))
	require.NoError(t, s.Start(ctx))

	state := ctrl.State()
	assert.Equal(t, media.RecordingActive, state.Recording)
	assert.True(t, state.Fullscreen)

	answerAll(t, s, 5)
	assert.Equal(t, media.RecordingStopped, ctrl.State().Recording, "submission stops the recorder")
}

// Scenario D: three focus losses are reported as tabSwitchCount 3.
func TestSession_TabSwitchesFoldedAtSubmit(t *testing.T) {
	var emit func(focus.Signal)
	src := focus.SourceFunc(func(h func(focus.Signal)) func() {
		emit = h
		return func() { emit = nil }
	})
	monitor := focus.NewMonitor(focus.Options{})
	monitor.Attach(src)
	defer monitor.Detach()

	s, _, grader, store := newSession(t, func(c *Config) { c.Focus = monitor })
	ctx := context.Background()
	require.NoError(t, s.Generate(ctx))
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.SubmitAnswer(ctx, "one"))
	emit(focus.Signal{Kind: focus.SignalVisibility, Hidden: true})
	emit(focus.Signal{Kind: focus.SignalBlur, DocumentVisible: true})
	require.NoError(t, s.SubmitAnswer(ctx, "two"))
	emit(focus.Signal{Kind: focus.SignalVisibility, Hidden: true})
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SubmitAnswer(ctx, "more"))
	}

	require.Len(t, grader.requests, 1)
	assert.Equal(t, 3, grader.requests[0].TabSwitchCount)
	assert.Equal(t, 3, store.tabs)
	assert.Equal(t, 3, s.Snapshot().TabSwitchCount)

	// later losses are not attributed to the submitted attempt
	emit(focus.Signal{Kind: focus.SignalVisibility, Hidden: true})
	assert.Equal(t, 3, s.Snapshot().TabSwitchCount)
	assert.Equal(t, 3, grader.requests[0].TabSwitchCount)
}

func TestSessionError_GenericFallback(t *testing.T) {
	se := newSessionError(StageGrading, errors.New(""))
	assert.Equal(t, genericGradingMessage, se.Message)
	se = newSessionError(StageGeneration, nil)
	assert.Equal(t, genericGenerationMessage, se.Message)
}
