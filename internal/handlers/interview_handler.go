package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"aiproctor/interview/internal/middleware"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/orchestrator"
	"aiproctor/interview/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipart headers and the form fields ride on top of the résumé itself
const uploadOverhead = 1 << 20

// InterviewService is the part of *orchestrator.Orchestrator behind the
// upload and results stages.
type InterviewService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Upload(ctx context.Context, userID string, req models.UploadRequest, resume *orchestrator.Resume) (*models.UploadResponse, error)
	Interview(ctx context.Context, userID, interviewID string) (*models.Interview, error)
	Results(ctx context.Context, userID, interviewID string) (*models.ResultsResponse, error)
}

type InterviewHandler struct {
	service InterviewService
	logger  *zap.Logger
}

func NewInterviewHandler(service InterviewService, logger *zap.Logger) *InterviewHandler {
	return &InterviewHandler{service: service, logger: logger}
}

func (h *InterviewHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.LoginRequest](r)

	resp, err := h.service.Login(r.Context(), *req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, resp)
}

// UploadHandler takes the multipart upload form: an optional "resume" PDF
// plus jobRole and skillRating.
func (h *InterviewHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.ClaimsFrom(r.Context()).UserID

	r.Body = http.MaxBytesReader(w, r.Body, models.MaxResumeBytes+uploadOverhead)
	if err := r.ParseMultipartForm(uploadOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, orchestrator.ErrResumeTooLarge)
			return
		}
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code:    "invalid_form",
			Message: "Expected a multipart form",
		})
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := models.UploadRequest{JobRole: r.FormValue("jobRole")}
	if raw := strings.TrimSpace(r.FormValue("skillRating")); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil {
			utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
				Code:    "invalid_interview",
				Message: "skillRating: must be a number",
			})
			return
		}
		req.SkillRating = rating
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var resume *orchestrator.Resume
	file, header, err := r.FormFile("resume")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeError(w, h.logger, err)
		return
	default:
		defer file.Close()
		resume = &orchestrator.Resume{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	}

	resp, err := h.service.Upload(r.Context(), userID, req, resume)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusCreated, resp)
}

func (h *InterviewHandler) GetInterviewHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.ClaimsFrom(r.Context()).UserID

	record, err := h.service.Interview(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, record)
}

func (h *InterviewHandler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.ClaimsFrom(r.Context()).UserID

	resp, err := h.service.Results(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, resp)
}
