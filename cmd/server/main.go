package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aiproctor/interview/internal/assessor"
	"aiproctor/interview/internal/config"
	"aiproctor/interview/internal/handlers"
	"aiproctor/interview/internal/identity"
	"aiproctor/interview/internal/jobs"
	"aiproctor/interview/internal/llm"
	_ "aiproctor/interview/internal/llm/gemini"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/orchestrator"
	"aiproctor/interview/internal/prompts"
	"aiproctor/interview/internal/publisher"
	"aiproctor/interview/internal/repositories"
	"aiproctor/interview/internal/routers"
	"aiproctor/interview/internal/scoring"
	"aiproctor/interview/internal/storage"
	"aiproctor/interview/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const serviceName = "interview"

type routeHandlers struct {
	health    *handlers.HealthHandler
	interview *handlers.InterviewHandler
	session   *handlers.SessionHandler
	function  *handlers.FunctionHandler
	blob      *handlers.BlobHandler
}

func registerRoutes(router *chi.Mux, cfg *config.Config, verifier *identity.Provider, h routeHandlers) {
	routers.HealthRoutes(router, h.health)
	routers.InterviewRoutes(router, verifier, h.interview, h.session)
	routers.FunctionRoutes(router, cfg.ServiceToken, h.function)
	routers.BlobRoutes(router, h.blob)
}

// initDatabase initializes the PostgreSQL database connection
func initDatabase(dbCfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dbCfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Interview{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// initBlobStore picks the résumé/recording store. The closer is a no-op for
// the filesystem store.
func initBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, func(context.Context) error, error) {
	if cfg.ArtifactStore == config.ArtifactStoreMongo {
		store, err := storage.NewGridFSStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	store, err := storage.NewFileStore(cfg.BlobDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, func(context.Context) error { return nil }, nil
}

// initAssessor builds the server side of the AI functions. Without a
// provider key the functions answer with an error instead.
func initAssessor(cfg *config.Config, promptManager *prompts.PromptManager, store assessor.GradeStore, logger *zap.Logger) (llm.Provider, handlers.Assessor) {
	provider, err := llm.NewProvider(cfg.Provider)
	if err != nil {
		logger.Warn("AI provider unavailable, function endpoints disabled", zap.Error(err))
		return nil, nil
	}
	return provider, assessor.New(provider, promptManager, assessor.Options{
		QuestionCount: cfg.Interview.QuestionCount,
		SuspiciousAt:  cfg.Interview.MaxTabSwitches,
		Store:         store,
		Logger:        logger,
	})
}

// newHTTPServer sizes WriteTimeout past the longest route timeout so a
// session call that ends in grading can still write its response. Upgraded
// sockets clear their deadlines.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: routers.SessionRequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func main() {
	logger := utils.NewLogger(os.Getenv("LOG_FILE"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("provider", cfg.Provider),
		zap.String("artifact_store", cfg.ArtifactStore),
		zap.String("threshold_policy", cfg.Interview.ThresholdPolicy),
		zap.String("persistence_policy", cfg.Interview.PersistencePolicy))

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to access database handle", zap.Error(err))
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	blobs, closeBlobs, err := initBlobStore(startupCtx, cfg)
	cancelStartup()
	if err != nil {
		logger.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	var events orchestrator.EventPublisher
	var pub *publisher.Publisher
	if cfg.RedisAddr != "" {
		pub = publisher.NewPublisher(cfg.RedisAddr, logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := pub.Ping(pingCtx); err != nil {
			logger.Warn("Redis unreachable, events will be retried per publish", zap.Error(err))
		}
		cancel()
		events = pub
	}

	promptManager, err := prompts.NewPromptManager()
	if err != nil {
		logger.Fatal("Failed to initialize prompt manager", zap.Error(err))
	}

	interviewRepo := &repositories.InterviewRepository{DB: db}
	userRepo := &repositories.UserRepository{DB: db}

	provider, functionAssessor := initAssessor(cfg, promptManager, interviewRepo, logger)

	scoringClient, err := scoring.NewClient(cfg.ServiceURL, cfg.ServiceToken, nil, logger)
	if err != nil {
		logger.Fatal("Failed to initialize scoring client", zap.Error(err))
	}

	identityProvider := identity.NewProvider(userRepo, cfg.JWTSecret, logger)

	orch := orchestrator.New(orchestrator.Options{
		Identity:   identityProvider,
		Interviews: interviewRepo,
		Blobs:      blobs,
		Generator:  scoringClient,
		Grader:     scoringClient,
		Events:     events,
		Interview:  cfg.Interview,
		Logger:     logger,
	})

	providerName := cfg.Provider
	if provider != nil {
		providerName = provider.GetProviderName()
	}

	router := routers.NewRouter(serviceName, cfg.AllowedOrigins)
	registerRoutes(router, cfg, identityProvider, routeHandlers{
		health:    handlers.NewHealthHandler(provider, promptManager, sqlDB, cfg),
		interview: handlers.NewInterviewHandler(orch, logger),
		session:   handlers.NewSessionHandler(orch, logger),
		function:  handlers.NewFunctionHandler(functionAssessor, providerName, logger),
		blob:      handlers.NewBlobHandler(blobs, logger),
	})

	reaper := jobs.NewSessionReaperJob(orch, cfg.Interview.ReaperSchedule, logger)
	if err := reaper.Start(); err != nil {
		logger.Error("Failed to start session reaper", zap.Error(err))
	}

	serverAddr := ":" + cfg.Port

	server := newHTTPServer(serverAddr, router)

	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shutdown the server
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview service shutting down...")

	reaper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// hijacked host sockets are not tracked by Shutdown; closing sessions drops them
	orch.Close()

	if err := closeBlobs(ctx); err != nil {
		logger.Warn("Failed to close blob store", zap.Error(err))
	}
	if pub != nil {
		_ = pub.Close()
	}
	_ = sqlDB.Close()

	logger.Info("Interview service exited")
}
