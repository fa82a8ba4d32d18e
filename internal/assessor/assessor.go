// Package assessor is the server side of the question generation and grading
// functions. It prompts the configured LLM provider and shapes its output.
package assessor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"aiproctor/interview/internal/llm"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/prompts"
	"aiproctor/interview/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrUnparsableGrade = errors.New("failed to parse grading response")

// GradeStore saves a grade against the interview record. Optional.
type GradeStore interface {
	SaveGrade(ctx context.Context, interviewID string, result *models.GradeResult) error
}

type Options struct {
	QuestionCount int
	// tab switches at or above this mark a submission suspicious
	SuspiciousAt int
	Store        GradeStore
	Logger       *zap.Logger
}

type Assessor struct {
	provider      llm.Provider
	prompts       *prompts.PromptManager
	store         GradeStore
	questionCount int
	suspiciousAt  int
	logger        *zap.Logger
}

func New(provider llm.Provider, pm *prompts.PromptManager, opts Options) *Assessor {
	if opts.QuestionCount <= 0 {
		opts.QuestionCount = models.DefaultQuestionCount
	}
	if opts.SuspiciousAt <= 0 {
		opts.SuspiciousAt = 3
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Assessor{
		provider:      provider,
		prompts:       pm,
		store:         opts.Store,
		questionCount: opts.QuestionCount,
		suspiciousAt:  opts.SuspiciousAt,
		logger:        opts.Logger,
	}
}

// FallbackQuestions is the fixed set served when the model output is unusable.
func FallbackQuestions(jobRole string) []string {
	return []string{
		fmt.Sprintf("Explain the key technical skills required for a %s role.", jobRole),
		fmt.Sprintf("Describe a challenging project scenario for a %s and how you would approach it.", jobRole),
		fmt.Sprintf("What are the most important technical concepts a %s should understand?", jobRole),
		fmt.Sprintf("How do you stay updated with the latest technologies relevant to %s?", jobRole),
		fmt.Sprintf("Explain a technical decision you would make as a %s and why.", jobRole),
	}
}

// GenerateQuestions always yields the configured number of questions unless
// the provider call itself fails.
func (a *Assessor) GenerateQuestions(ctx context.Context, jobRole string, skillRating int) ([]string, error) {
	jobRole = utils.NormalizeRole(jobRole)
	variant := prompts.DefaultVariant
	if skillRating >= 8 {
		variant = "senior"
	}
	prompt, err := a.prompts.BuildPrompt(prompts.GenerateQuestions, variant, map[string]string{
		"Count":       strconv.Itoa(a.questionCount),
		"JobRole":     jobRole,
		"SkillRating": strconv.Itoa(skillRating),
	})
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	resp, err := a.provider.GenerateContent(ctx, prompt, requestID)
	if err != nil {
		a.logger.Error("Question generation failed",
			zap.String("request_id", requestID),
			zap.String("code", llm.ErrorCode(err)),
			zap.Error(err))
		return nil, fmt.Errorf("%s API error: %w", a.provider.GetProviderName(), err)
	}

	questions, ok := a.parseQuestions(resp.Content)
	if !ok {
		a.logger.Warn("Questions array invalid, using fallback",
			zap.String("request_id", requestID),
			zap.String("raw", truncate(resp.Content, 500)))
		questions = FallbackQuestions(jobRole)
	}

	a.logger.Info("Questions generated",
		zap.String("request_id", requestID),
		zap.String("job_role", jobRole),
		zap.Int("skill_rating", skillRating),
		zap.Int("processing_ms", resp.Metadata.ProcessingTime))
	return questions, nil
}

func (a *Assessor) parseQuestions(raw string) ([]string, bool) {
	cleaned := utils.ExtractJSONArray(utils.StripFences(raw))
	var questions []string
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		return nil, false
	}
	if len(questions) != a.questionCount {
		return nil, false
	}
	for i, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			return nil, false
		}
		questions[i] = q
	}
	return questions, true
}

type gradeOutput struct {
	Score       float64  `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

// GradeInterview scores the answers. The score is passed through as the model
// produced it; suspicion is derived from the tab-switch count.
func (a *Assessor) GradeInterview(ctx context.Context, req models.GradeInterviewRequest) (*models.GradeResult, error) {
	variant := prompts.DefaultVariant
	if req.TabSwitchCount > 0 {
		variant = "proctored"
	}
	prompt, err := a.prompts.BuildPrompt(prompts.GradeInterview, variant, map[string]string{
		"JobRole":        utils.NormalizeRole(req.JobRole),
		"Transcript":     transcript(req.Questions, req.Answers),
		"TabSwitchCount": strconv.Itoa(req.TabSwitchCount),
	})
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	resp, err := a.provider.GenerateContent(ctx, prompt, requestID)
	if err != nil {
		a.logger.Error("Grading failed",
			zap.String("request_id", requestID),
			zap.String("interview_id", req.InterviewID),
			zap.Error(err))
		return nil, fmt.Errorf("%s API error: %w", a.provider.GetProviderName(), err)
	}

	var out gradeOutput
	cleaned := utils.ExtractJSONObject(utils.StripFences(resp.Content))
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		a.logger.Warn("Unparsable grading response",
			zap.String("request_id", requestID),
			zap.String("raw", truncate(resp.Content, 500)))
		return nil, fmt.Errorf("%w: %v", ErrUnparsableGrade, err)
	}

	result := &models.GradeResult{
		Score:          out.Score,
		Feedback:       out.Feedback,
		Suggestions:    out.Suggestions,
		IsSuspicious:   req.TabSwitchCount >= a.suspiciousAt,
		TabSwitchCount: req.TabSwitchCount,
	}

	if a.store != nil && req.InterviewID != "" {
		if err := a.store.SaveGrade(ctx, req.InterviewID, result); err != nil {
			a.logger.Warn("Failed to save grade", zap.String("interview_id", req.InterviewID), zap.Error(err))
		}
	}

	a.logger.Info("Interview graded",
		zap.String("request_id", requestID),
		zap.String("interview_id", req.InterviewID),
		zap.Float64("score", result.Score),
		zap.Bool("suspicious", result.IsSuspicious))
	return result, nil
}

func transcript(questions, answers []string) string {
	var b strings.Builder
	for i, q := range questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		if strings.TrimSpace(answer) == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", i+1, q, i+1, answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
