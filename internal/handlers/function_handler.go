package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"aiproctor/interview/internal/metrics"
	"aiproctor/interview/internal/middleware"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/utils"

	"go.uber.org/zap"
)

var errProviderNotConfigured = errors.New("GEMINI_API_KEY not set")

// Assessor is satisfied by *assessor.Assessor.
type Assessor interface {
	GenerateQuestions(ctx context.Context, jobRole string, skillRating int) ([]string, error)
	GradeInterview(ctx context.Context, req models.GradeInterviewRequest) (*models.GradeResult, error)
}

// FunctionHandler serves the question generation and grading functions the
// scoring client calls. Every failure is a 400 with {"error": message}.
type FunctionHandler struct {
	assessor Assessor
	provider string
	logger   *zap.Logger
}

// NewFunctionHandler accepts a nil assessor; the endpoints then report the
// missing provider key.
func NewFunctionHandler(assessor Assessor, provider string, logger *zap.Logger) *FunctionHandler {
	return &FunctionHandler{
		assessor: assessor,
		provider: provider,
		logger:   logger,
	}
}

func (h *FunctionHandler) GenerateQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.GenerateQuestionsRequest](r)
	if h.assessor == nil {
		utils.JSONError(w, http.StatusBadRequest, errProviderNotConfigured.Error())
		return
	}

	start := time.Now()
	questions, err := h.assessor.GenerateQuestions(r.Context(), req.JobRole, req.SkillRating.Value)
	metrics.ObserveLLM(h.provider, "generate_questions", start, err)
	if err != nil {
		h.logger.Error("Generate questions failed", zap.String("job_role", req.JobRole), zap.Error(err))
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.JSON(w, http.StatusOK, models.QuestionsResponse{Questions: questions})
}

func (h *FunctionHandler) GradeInterviewHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.GradeInterviewRequest](r)
	if h.assessor == nil {
		utils.JSONError(w, http.StatusBadRequest, errProviderNotConfigured.Error())
		return
	}

	start := time.Now()
	result, err := h.assessor.GradeInterview(r.Context(), *req)
	metrics.ObserveLLM(h.provider, "grade_interview", start, err)
	if err != nil {
		h.logger.Error("Grade interview failed", zap.String("interview_id", req.InterviewID), zap.Error(err))
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.JSON(w, http.StatusOK, result)
}
