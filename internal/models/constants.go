package models

// persisted interview statuses
const (
	InterviewStatusInProgress = "in_progress"
	InterviewStatusCompleted  = "completed"
	InterviewStatusGraded     = "graded"
)

const (
	DefaultQuestionCount = 5
	MinSkillRating       = 1
	MaxSkillRating       = 10
	MaxResumeBytes       = 10 << 20
	ResumeContentType    = "application/pdf"
)
