package handlers

import (
	"context"
	"net/http"
	"time"

	"aiproctor/interview/internal/config"
	"aiproctor/interview/internal/llm"
	"aiproctor/interview/internal/utils"
)

const readinessTimeout = 2 * time.Second

type ReadinessCheck struct {
	Status  string `json:"status"` // "ok" | "failed"
	Message string `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Status  string                    `json:"status"`  // "ready" | "not_ready"
	Service string                    `json:"service"` // Service name
	Checks  map[string]ReadinessCheck `json:"checks"`  // Individual check results
}

// PromptCatalog is satisfied by *prompts.PromptManager.
type PromptCatalog interface {
	GetTemplates() []string
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	provider      llm.Provider
	promptManager PromptCatalog
	db            Pinger
	config        *config.Config
}

func NewHealthHandler(provider llm.Provider, promptManager PromptCatalog, db Pinger, cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		provider:      provider,
		promptManager: promptManager,
		db:            db,
		config:        cfg,
	}
}

func (handler *HealthHandler) HealthzHandler(writer http.ResponseWriter, request *http.Request) {
	utils.JSON(writer, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "interview",
		"version": "1.0.0",
	})
}

func (handler *HealthHandler) ReadyzHandler(writer http.ResponseWriter, request *http.Request) {
	checks := make(map[string]ReadinessCheck)
	allChecksPass := true

	fail := func(name, message string) {
		checks[name] = ReadinessCheck{Status: "failed", Message: message}
		allChecksPass = false
	}

	// AI provider backs the function endpoints only
	if handler.provider == nil {
		fail("provider", "AI provider not initialized")
	} else {
		checks["provider"] = ReadinessCheck{Status: "ok"}
	}

	if handler.promptManager == nil {
		fail("prompt_manager", "Prompt manager not initialized")
	} else if len(handler.promptManager.GetTemplates()) == 0 {
		fail("prompt_manager", "No prompt templates loaded")
	} else {
		checks["prompt_manager"] = ReadinessCheck{Status: "ok"}
	}

	if handler.db == nil {
		fail("database", "Database not connected")
	} else {
		ctx, cancel := context.WithTimeout(request.Context(), readinessTimeout)
		err := handler.db.PingContext(ctx)
		cancel()
		if err != nil {
			fail("database", err.Error())
		} else {
			checks["database"] = ReadinessCheck{Status: "ok"}
		}
	}

	if handler.config == nil {
		fail("configuration", "Configuration not loaded")
	} else {
		checks["configuration"] = ReadinessCheck{Status: "ok"}
	}

	response := ReadinessResponse{
		Service: "interview",
		Checks:  checks,
	}

	if allChecksPass {
		response.Status = "ready"
		utils.JSON(writer, http.StatusOK, response)
	} else {
		response.Status = "not_ready"
		utils.JSON(writer, http.StatusServiceUnavailable, response)
	}
}
