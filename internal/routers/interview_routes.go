package routers

import (
	"time"

	"aiproctor/interview/internal/handlers"
	"aiproctor/interview/internal/middleware"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/scoring"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 60 * time.Second

// SessionRequestTimeout covers session calls that wait on question
// generation, grading or the camera permission prompt. It outlives the
// scoring client so a slow grade still reaches the candidate.
const SessionRequestTimeout = scoring.DefaultTimeout + 15*time.Second

func InterviewRoutes(router *chi.Mux, verifier middleware.TokenVerifier, interviewHandler *handlers.InterviewHandler, sessionHandler *handlers.SessionHandler) {
	router.With(chimw.Timeout(requestTimeout), middleware.ValidateRequest[*models.LoginRequest]()).
		Post("/api/v1/auth/login", interviewHandler.LoginHandler)

	router.Route("/api/v1/interviews", func(r chi.Router) {
		r.Use(middleware.RequireUser(verifier))

		// the WebSocket lives as long as the interview does
		r.Get("/{id}/session/ws", sessionHandler.HostHandler)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))

			r.Post("/", interviewHandler.UploadHandler)
			r.Get("/{id}", interviewHandler.GetInterviewHandler)
			r.Get("/{id}/results", interviewHandler.ResultsHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(SessionRequestTimeout))

			r.Post("/{id}/session", sessionHandler.MountHandler)
			r.Get("/{id}/session", sessionHandler.GetSessionHandler)
			r.Delete("/{id}/session", sessionHandler.UnmountHandler)
			r.Post("/{id}/session/start", sessionHandler.StartHandler)
			r.With(middleware.ValidateRequest[*models.AnswerRequest]()).Post("/{id}/session/answers", sessionHandler.AnswerHandler)
			r.Post("/{id}/session/restart", sessionHandler.RestartHandler)
			r.Post("/{id}/session/media/acquire", sessionHandler.AcquireHandler)
			r.Post("/{id}/session/media/audio", sessionHandler.ToggleAudioHandler)
			r.Post("/{id}/session/media/video", sessionHandler.ToggleVideoHandler)
			r.Post("/{id}/session/fullscreen", sessionHandler.ToggleFullscreenHandler)
		})
	})
}

// BlobRoutes serves the URLs handed out for résumés and recordings.
func BlobRoutes(router *chi.Mux, blobHandler *handlers.BlobHandler) {
	router.Get("/blobs/{name}", blobHandler.GetBlobHandler)
}
