package routers

import (
	"aiproctor/interview/internal/metrics"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter returns the mux with the service-wide middleware installed.
func NewRouter(service string, allowedOrigins []string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Client-Info", "Apikey"},
		AllowCredentials: true,
	}))

	router.Use(chimw.RequestID, chimw.RealIP, chimw.Logger, chimw.Recoverer, metrics.Middleware(service))
	return router
}
