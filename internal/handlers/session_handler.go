package handlers

import (
	"context"
	"net/http"

	"aiproctor/interview/internal/middleware"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/orchestrator"
	"aiproctor/interview/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SessionService is the live-session part of *orchestrator.Orchestrator.
type SessionService interface {
	Mount(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error)
	Session(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error)
	Unmount(ctx context.Context, userID, interviewID string) error
	Start(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error)
	Answer(ctx context.Context, userID, interviewID, answer string) (*orchestrator.SessionView, error)
	Restart(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error)
	Acquire(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error)
	ToggleAudio(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error)
	ToggleVideo(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error)
	ToggleFullscreen(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error)
	ServeHost(ctx context.Context, userID, interviewID string, conn *websocket.Conn) error
}

type SessionHandler struct {
	service  SessionService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewSessionHandler(service SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		service:  service,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
	}
}

type sessionOp func(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error)

func (h *SessionHandler) run(w http.ResponseWriter, r *http.Request, status int, op sessionOp) {
	userID := middleware.ClaimsFrom(r.Context()).UserID
	view, err := op(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, status, view)
}

func (h *SessionHandler) MountHandler(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusCreated, h.service.Mount)
}

func (h *SessionHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.service.Session)
}

func (h *SessionHandler) UnmountHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.ClaimsFrom(r.Context()).UserID
	if err := h.service.Unmount(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.service.Start)
}

func (h *SessionHandler) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.AnswerRequest](r)
	h.run(w, r, http.StatusOK, func(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error) {
		return h.service.Answer(ctx, userID, interviewID, req.Answer)
	})
}

func (h *SessionHandler) RestartHandler(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.service.Restart)
}

func (h *SessionHandler) AcquireHandler(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.service.Acquire)
}

func (h *SessionHandler) ToggleAudioHandler(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.service.ToggleAudio)
}

func (h *SessionHandler) ToggleVideoHandler(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.service.ToggleVideo)
}

func (h *SessionHandler) ToggleFullscreenHandler(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.service.ToggleFullscreen)
}

// HostHandler upgrades to the host bridge WebSocket. The session must already
// be mounted; the check runs before the upgrade so failures stay plain HTTP.
func (h *SessionHandler) HostHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.ClaimsFrom(r.Context()).UserID
	interviewID := chi.URLParam(r, "id")

	if _, err := h.service.Session(r.Context(), userID, interviewID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("interview_id", interviewID), zap.Error(err))
		return
	}
	defer conn.Close()

	if err := h.service.ServeHost(r.Context(), userID, interviewID, conn); err != nil {
		h.logger.Info("Host bridge closed",
			zap.String("interview_id", interviewID),
			zap.Error(err))
	}
}
