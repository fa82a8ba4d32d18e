package interview

import (
	"context"
	"time"

	"aiproctor/interview/internal/media"
	"aiproctor/interview/internal/models"
)

type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, jobRole string, skillRating int) ([]string, error)
}

type Grader interface {
	GradeInterview(ctx context.Context, req models.GradeInterviewRequest) (*models.GradeResult, error)
}

// Store persists session progress against the interview record.
type Store interface {
	SaveQuestions(ctx context.Context, interviewID string, questions []string) error
	CompleteInterview(ctx context.Context, interviewID string, answers []string, tabSwitchCount int, completedAt time.Time) error
}

// Recorder is the slice of the media controller the session drives. The
// session never touches the device stream itself.
type Recorder interface {
	HasIdleStream() bool
	StartRecording() error
	StopRecording(ctx context.Context) *media.Artifact
	EnterFullscreen(ctx context.Context) error
}

// ViolationCounter is read once, at submission.
type ViolationCounter interface {
	Count() int
}
