package handlers

import (
	"errors"
	"net/http"

	"aiproctor/interview/internal/interview"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/orchestrator"
	"aiproctor/interview/internal/utils"

	"go.uber.org/zap"
)

// writeError maps orchestrator and session errors onto an ErrorResponse.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var resp *models.ErrorResponse
	if errors.As(err, &resp) {
		utils.JSON(w, http.StatusBadRequest, resp)
		return
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, orchestrator.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, orchestrator.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, orchestrator.ErrNotMounted):
		status, code = http.StatusNotFound, "not_mounted"
	case errors.Is(err, orchestrator.ErrAlreadySubmitted):
		status, code = http.StatusConflict, "already_submitted"
	case errors.Is(err, orchestrator.ErrNotGraded):
		status, code = http.StatusConflict, "not_graded"
	case errors.Is(err, interview.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, orchestrator.ErrResumeNotPDF):
		status, code = http.StatusBadRequest, "invalid_resume"
	case errors.Is(err, orchestrator.ErrResumeTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "resume_too_large"
	case errors.Is(err, orchestrator.ErrStoreNotAvailable):
		status, code = http.StatusServiceUnavailable, "storage_unavailable"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		message = "Something went wrong"
	}
	utils.JSON(w, status, models.ErrorResponse{Code: code, Message: message})
}
