package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingServiceURL   = errors.New("AI_SERVICE_URL environment variable is required")
	ErrMissingServiceToken = errors.New("AI_SERVICE_TOKEN environment variable is required")
	ErrMissingJWTSecret    = errors.New("JWT_SECRET environment variable is required")
)

// app config: service wiring plus the interview/proctoring knobs
type Config struct {
	Port     string
	Provider string

	// external question generation / grading service
	ServiceURL   string
	ServiceToken string

	JWTSecret      string
	PublicBaseURL  string
	AllowedOrigins []string

	Database DatabaseConfig

	RedisAddr     string
	MongoURI      string
	MongoDatabase string
	ArtifactStore string
	BlobDir       string
	LogFile       string

	Interview InterviewConfig
}

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type InterviewConfig struct {
	QuestionCount         int
	MaxTabSwitches        int
	WarningWindow         time.Duration
	TerminalWarningWindow time.Duration
	RecorderTimeslice     time.Duration
	ThresholdPolicy       string // "informational" | "auto_submit"
	PersistencePolicy     string // "independent" | "atomic"
	SessionIdleTTL        time.Duration
	ReaperSchedule        string
	HostReplyTimeout      time.Duration
}

const (
	ThresholdInformational = "informational"
	ThresholdAutoSubmit    = "auto_submit"

	PersistenceIndependent = "independent"
	PersistenceAtomic      = "atomic"

	ArtifactStoreFS    = "fs"
	ArtifactStoreMongo = "mongo"
)

// loads configuration from environment variables, reading .env first when present
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	env := &envParser{}
	config := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		Provider:       getEnvOrDefault("AI_PROVIDER", "gemini"),
		ServiceURL:     strings.TrimRight(os.Getenv("AI_SERVICE_URL"), "/"),
		ServiceToken:   os.Getenv("AI_SERVICE_TOKEN"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		PublicBaseURL:  strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		AllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			User:     getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Name:     getEnvOrDefault("POSTGRES_DB", "postgres"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		},
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: getEnvOrDefault("MONGO_DB_NAME", "aiproctor"),
		ArtifactStore: getEnvOrDefault("ARTIFACT_STORE", ArtifactStoreFS),
		BlobDir:       getEnvOrDefault("BLOB_DIR", "./uploads"),
		LogFile:       os.Getenv("LOG_FILE"),
		Interview: InterviewConfig{
			QuestionCount:         env.int("QUESTION_COUNT", 5),
			MaxTabSwitches:        env.int("MAX_TAB_SWITCHES", 3),
			WarningWindow:         env.duration("WARNING_WINDOW", 5*time.Second),
			TerminalWarningWindow: env.duration("TERMINAL_WARNING_WINDOW", 10*time.Second),
			RecorderTimeslice:     env.duration("RECORDER_TIMESLICE", time.Second),
			ThresholdPolicy:       getEnvOrDefault("THRESHOLD_POLICY", ThresholdInformational),
			PersistencePolicy:     getEnvOrDefault("PERSISTENCE_POLICY", PersistenceIndependent),
			SessionIdleTTL:        env.duration("SESSION_IDLE_TTL", 30*time.Minute),
			ReaperSchedule:        getEnvOrDefault("REAPER_SCHEDULE", "@every 5m"),
			HostReplyTimeout:      env.duration("HOST_REPLY_TIMEOUT", 60*time.Second),
		},
	}
	if err := env.err(); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Provider != "gemini" {
		return errors.New("unsupported AI provider: " + config.Provider + ". Currently supported: gemini")
	}
	if config.ServiceURL == "" {
		return ErrMissingServiceURL
	}
	if config.ServiceToken == "" {
		return ErrMissingServiceToken
	}
	if config.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	iv := config.Interview
	if iv.QuestionCount < 1 {
		return fmt.Errorf("QUESTION_COUNT must be positive, got %d", iv.QuestionCount)
	}
	if iv.MaxTabSwitches < 1 {
		return fmt.Errorf("MAX_TAB_SWITCHES must be positive, got %d", iv.MaxTabSwitches)
	}
	if iv.RecorderTimeslice <= 0 {
		return errors.New("RECORDER_TIMESLICE must be positive")
	}
	if iv.SessionIdleTTL <= 0 || iv.HostReplyTimeout <= 0 {
		return errors.New("SESSION_IDLE_TTL and HOST_REPLY_TIMEOUT must be positive")
	}
	switch iv.ThresholdPolicy {
	case ThresholdInformational, ThresholdAutoSubmit:
	default:
		return errors.New("unsupported THRESHOLD_POLICY: " + iv.ThresholdPolicy)
	}
	switch iv.PersistencePolicy {
	case PersistenceIndependent, PersistenceAtomic:
	default:
		return errors.New("unsupported PERSISTENCE_POLICY: " + iv.PersistencePolicy)
	}
	switch config.ArtifactStore {
	case ArtifactStoreFS:
	case ArtifactStoreMongo:
		if config.MongoURI == "" {
			return errors.New("MONGO_URI is required when ARTIFACT_STORE=mongo")
		}
	default:
		return errors.New("unsupported ARTIFACT_STORE: " + config.ArtifactStore)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList parses a comma-separated env value, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envParser reads typed env values. A value that is set but does not parse
// is a configuration error, not a silent fallback to the default.
type envParser struct {
	errs []error
}

func (p *envParser) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return i
}

func (p *envParser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a duration such as 5s, got %q", key, value))
		return defaultValue
	}
	return d
}

func (p *envParser) err() error {
	return errors.Join(p.errs...)
}
