package interview

import (
	"errors"
	"fmt"
)

var (
	ErrQuestionCount = errors.New("question generator returned the wrong number of questions")
	ErrInvalidState  = errors.New("operation not allowed in current session state")
	ErrInvalidInput  = errors.New("invalid interview input")
)

type Stage string

const (
	StageGeneration  Stage = "generation"
	StagePersistence Stage = "persistence"
	StageGrading     Stage = "grading"
)

const (
	genericGenerationMessage = "Failed to generate questions. Please try again."
	genericPersistMessage    = "Failed to save interview. Please try again."
	genericGradingMessage    = "Failed to grade interview"
)

// SessionError is a terminal failure. Message is safe to show the candidate and
// keeps the upstream service's own wording when it had one.
type SessionError struct {
	Stage   Stage
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func newSessionError(stage Stage, err error) *SessionError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		switch stage {
		case StageGeneration:
			msg = genericGenerationMessage
		case StagePersistence:
			msg = genericPersistMessage
		default:
			msg = genericGradingMessage
		}
	}
	return &SessionError{Stage: stage, Message: msg, Err: err}
}
