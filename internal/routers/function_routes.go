package routers

import (
	"aiproctor/interview/internal/handlers"
	"aiproctor/interview/internal/middleware"
	"aiproctor/interview/internal/models"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// FunctionRoutes mounts the question generation and grading functions behind
// the shared service token.
func FunctionRoutes(router *chi.Mux, serviceToken string, functionHandler *handlers.FunctionHandler) {
	router.Route("/functions/v1", func(r chi.Router) {
		r.Use(middleware.RequireServiceToken(serviceToken), chimw.Timeout(requestTimeout))

		r.With(middleware.ValidateRequestWith[*models.GenerateQuestionsRequest](middleware.RenderFunctionError)).
			Post("/generate-questions", functionHandler.GenerateQuestionsHandler)
		r.With(middleware.ValidateRequestWith[*models.GradeInterviewRequest](middleware.RenderFunctionError)).
			Post("/grade-interview", functionHandler.GradeInterviewHandler)
	})
}
