// Package orchestrator wires the upload stage, the live interview session and
// the results view together. It owns one media controller and one focus
// monitor per mounted session and tears both down on every exit path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"aiproctor/interview/internal/config"
	"aiproctor/interview/internal/focus"
	"aiproctor/interview/internal/interview"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/publisher"
	"aiproctor/interview/internal/repositories"
	"aiproctor/interview/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("interview not found")
	ErrForbidden         = errors.New("interview belongs to another user")
	ErrNotMounted        = errors.New("interview session is not mounted")
	ErrAlreadySubmitted  = errors.New("interview has already been submitted")
	ErrResumeNotPDF      = errors.New("Please upload a PDF file")
	ErrResumeTooLarge    = errors.New("resume exceeds the upload limit")
	ErrNotGraded         = errors.New("interview has not been graded yet")
	ErrStoreNotAvailable = errors.New("resume storage is not configured")
)

type Identity interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

// InterviewStore is the interview record persistence the orchestrator needs.
type InterviewStore interface {
	interview.Store
	Create(ctx context.Context, interview *models.Interview) error
	GetByID(ctx context.Context, id string) (*models.Interview, error)
	SaveGrade(ctx context.Context, id string, result *models.GradeResult) error
	SetRecordingURL(ctx context.Context, id, url string) error
}

// EventPublisher is satisfied by *publisher.Publisher.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, event publisher.InterviewCompletedEvent) error
	PublishViolation(ctx context.Context, event publisher.InterviewViolationEvent) error
}

type Options struct {
	Identity   Identity
	Interviews InterviewStore
	Blobs      storage.BlobStore
	Generator  interview.QuestionGenerator
	Grader     interview.Grader
	Events     EventPublisher
	Interview  config.InterviewConfig
	Clock      focus.Clock
	Logger     *zap.Logger
	Now        func() time.Time
}

type Orchestrator struct {
	identity   Identity
	interviews InterviewStore
	blobs      storage.BlobStore
	generator  interview.QuestionGenerator
	grader     interview.Grader
	events     EventPublisher
	cfg        config.InterviewConfig
	clock      focus.Clock
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*mounted
}

func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Clock == nil {
		opts.Clock = focus.SystemClock()
	}
	if opts.Interview.QuestionCount <= 0 {
		opts.Interview.QuestionCount = models.DefaultQuestionCount
	}
	if opts.Interview.SessionIdleTTL <= 0 {
		opts.Interview.SessionIdleTTL = 30 * time.Minute
	}
	return &Orchestrator{
		identity:   opts.Identity,
		interviews: opts.Interviews,
		blobs:      opts.Blobs,
		generator:  opts.Generator,
		grader:     opts.Grader,
		events:     opts.Events,
		cfg:        opts.Interview,
		clock:      opts.Clock,
		logger:     opts.Logger,
		now:        opts.Now,
		sessions:   make(map[string]*mounted),
	}
}

func (o *Orchestrator) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	resp, err := o.identity.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	o.logger.Info("User signed in", zap.String("user_id", resp.UserID))
	return resp, nil
}

// Resume is the optional file part of an upload.
type Resume struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload stores the résumé (when given) and creates the interview record that
// the session stage mounts.
func (o *Orchestrator) Upload(ctx context.Context, userID string, req models.UploadRequest, resume *Resume) (*models.UploadResponse, error) {
	record := &models.Interview{
		ID:          uuid.NewString(),
		UserID:      userID,
		JobRole:     req.JobRole,
		SkillRating: req.SkillRating,
		Status:      models.InterviewStatusInProgress,
	}

	if resume != nil {
		if !isPDF(resume.ContentType) {
			return nil, ErrResumeNotPDF
		}
		if resume.Size > models.MaxResumeBytes {
			return nil, ErrResumeTooLarge
		}
		if o.blobs == nil {
			return nil, ErrStoreNotAvailable
		}
		name := fmt.Sprintf("%s-%d.pdf", userID, o.now().UnixMilli())
		url, err := o.blobs.Upload(ctx, name, models.ResumeContentType, resume.Body)
		if err != nil {
			return nil, fmt.Errorf("upload resume: %w", err)
		}
		record.ResumeURL = url
	}

	if err := o.interviews.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create interview: %w", err)
	}

	o.logger.Info("Interview created",
		zap.String("interview_id", record.ID),
		zap.String("user_id", userID),
		zap.Bool("resume", record.ResumeURL != ""))
	return &models.UploadResponse{
		InterviewID: record.ID,
		JobRole:     record.JobRole,
		SkillRating: record.SkillRating,
		ResumeURL:   record.ResumeURL,
	}, nil
}

func isPDF(contentType string) bool {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	return strings.EqualFold(mediaType, models.ResumeContentType)
}

// Interview returns the persisted record after an ownership check.
func (o *Orchestrator) Interview(ctx context.Context, userID, interviewID string) (*models.Interview, error) {
	record, err := o.interviews.GetByID(ctx, interviewID)
	if errors.Is(err, repositories.ErrInterviewNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if record.UserID != userID {
		return nil, ErrForbidden
	}
	return record, nil
}

// Results prefers the live session and falls back to the persisted grade.
func (o *Orchestrator) Results(ctx context.Context, userID, interviewID string) (*models.ResultsResponse, error) {
	if m, err := o.lookup(userID, interviewID); err == nil {
		if result := m.session.Result(); result != nil {
			return resultsResponse(interviewID, *result), nil
		}
	} else if !errors.Is(err, ErrNotMounted) {
		return nil, err
	}

	record, err := o.Interview(ctx, userID, interviewID)
	if err != nil {
		return nil, err
	}
	if record.Score == nil {
		return nil, ErrNotGraded
	}
	return resultsResponse(interviewID, models.GradeResult{
		Score:          *record.Score,
		Feedback:       record.Feedback,
		Suggestions:    record.Suggestions,
		IsSuspicious:   record.IsSuspicious,
		TabSwitchCount: record.TabSwitchCount,
	}), nil
}

func resultsResponse(id string, result models.GradeResult) *models.ResultsResponse {
	return &models.ResultsResponse{
		InterviewID: id,
		GradeResult: result,
		Grade:       models.GradeLetter(result.Score),
	}
}
