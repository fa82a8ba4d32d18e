package interview

import (
	"time"

	"aiproctor/interview/internal/models"
)

// Snapshot is a copy of the session for rendering. Answers and index are kept
// after a failed submission.
type Snapshot struct {
	InterviewID          string              `json:"interviewId"`
	JobRole              string              `json:"jobRole"`
	SkillRating          int                 `json:"skillRating"`
	Status               Status              `json:"status"`
	QuestionCount        int                 `json:"questionCount"`
	Questions            []string            `json:"questions,omitempty"`
	CurrentQuestionIndex int                 `json:"currentQuestionIndex"`
	CurrentQuestion      string              `json:"currentQuestion,omitempty"`
	Answers              []string            `json:"answers"`
	TabSwitchCount       int                 `json:"tabSwitchCount"`
	CompletedAt          *time.Time          `json:"completedAt,omitempty"`
	Result               *models.GradeResult `json:"result,omitempty"`
	Error                *ErrorView          `json:"error,omitempty"`
}

type ErrorView struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		InterviewID:          s.cfg.InterviewID,
		JobRole:              s.cfg.JobRole,
		SkillRating:          s.cfg.SkillRating,
		Status:               s.status,
		QuestionCount:        s.cfg.QuestionCount,
		Questions:            append([]string(nil), s.questions...),
		CurrentQuestionIndex: s.index,
		Answers:              append([]string{}, s.answers...),
		TabSwitchCount:       s.tabSwitchCount,
		Result:               s.result,
	}
	if s.index < len(s.questions) {
		snap.CurrentQuestion = s.questions[s.index]
	}
	if !s.completedAt.IsZero() {
		t := s.completedAt
		snap.CompletedAt = &t
	}
	if s.err != nil {
		snap.Error = &ErrorView{Stage: s.err.Stage, Message: s.err.Message}
	}
	return snap
}
