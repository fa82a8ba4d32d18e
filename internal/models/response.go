package models

// uniform error responses
type ErrorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Details []ValidationErrorDetail `json:"details,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// single field validation error
type ValidationErrorDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type LoginResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// UploadResponse is the hand-off from the upload stage to the interview stage.
type UploadResponse struct {
	InterviewID string `json:"interviewId"`
	JobRole     string `json:"jobRole"`
	SkillRating int    `json:"skillRating"`
	ResumeURL   string `json:"resumeUrl,omitempty"`
}

type QuestionsResponse struct {
	Questions []string `json:"questions"`
}

// GradeResult is what the grading service returns and what the results view renders.
type GradeResult struct {
	Score          float64  `json:"score"`
	Feedback       string   `json:"feedback"`
	Suggestions    []string `json:"suggestions,omitempty"`
	IsSuspicious   bool     `json:"isSuspicious"`
	TabSwitchCount int      `json:"tabSwitchCount"`
}

type ResultsResponse struct {
	InterviewID string `json:"interviewId"`
	GradeResult
	Grade string `json:"grade"`
}

// GradeLetter maps a 0-100 score onto the letter shown with results.
func GradeLetter(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}
