package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their json names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tag rules and folds failures into an ErrorResponse
func validateStruct(code string, s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ErrorResponse{Code: code, Message: err.Error()}
	}

	details := make([]ValidationErrorDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, ValidationErrorDetail{
			Field:  fe.Field(),
			Reason: describeRule(fe),
		})
	}
	return &ErrorResponse{
		Code:    code,
		Message: fmt.Sprintf("%s: %s", details[0].Field, details[0].Reason),
		Details: details,
	}
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " rule"
	}
}

type LoginRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func (r *LoginRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return validateStruct("invalid_credential", r)
}

// UploadRequest carries the form fields of the upload stage; the résumé file
// travels separately as a multipart part.
type UploadRequest struct {
	JobRole     string `json:"jobRole" validate:"required"`
	SkillRating int    `json:"skillRating" validate:"required,min=1,max=10"`
}

func (r *UploadRequest) Validate() error {
	r.JobRole = strings.TrimSpace(r.JobRole)
	return validateStruct("invalid_interview", r)
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

// blank answers are a no-op for the session, not a validation failure
func (r *AnswerRequest) Validate() error {
	return nil
}

// Rating accepts a JSON number or a numeric string.
type Rating struct {
	Value int
	Set   bool
	Valid bool
}

func (r *Rating) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	r.Set = true

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(str))
		r.Value, r.Valid = n, err == nil
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	r.Value, r.Valid = int(f), true
	return nil
}

func (r Rating) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value)
}

type GenerateQuestionsRequest struct {
	JobRole     string `json:"jobRole"`
	SkillRating Rating `json:"skillRating"`
}

func (r *GenerateQuestionsRequest) Validate() error {
	if strings.TrimSpace(r.JobRole) == "" {
		return errors.New("Job role is required and cannot be empty")
	}
	if !r.SkillRating.Set {
		return errors.New("Skill rating is required")
	}
	if !r.SkillRating.Valid || r.SkillRating.Value < MinSkillRating || r.SkillRating.Value > MaxSkillRating {
		return errors.New("Skill rating must be a number between 1 and 10")
	}
	return nil
}

type GradeInterviewRequest struct {
	InterviewID    string   `json:"interviewId"`
	JobRole        string   `json:"jobRole,omitempty"`
	Questions      []string `json:"questions" validate:"required,min=1"`
	Answers        []string `json:"answers" validate:"required"`
	TabSwitchCount int      `json:"tabSwitchCount" validate:"min=0"`
}

func (r *GradeInterviewRequest) Validate() error {
	if err := validateStruct("invalid_grading_request", r); err != nil {
		return err
	}
	if len(r.Answers) != len(r.Questions) {
		return &ErrorResponse{
			Code:    "invalid_grading_request",
			Message: fmt.Sprintf("answers: expected %d entries, got %d", len(r.Questions), len(r.Answers)),
		}
	}
	return nil
}
