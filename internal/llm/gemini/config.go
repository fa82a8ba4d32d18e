package gemini

import (
	"errors"
	"os"
	"time"
)

// holds Gemini-specific configuration
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewConfig() (*Config, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.5-flash" // default model
	}

	timeout := 60 * time.Second
	if raw := os.Getenv("GEMINI_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, errors.New("GEMINI_TIMEOUT must be a positive duration")
		}
		timeout = d
	}

	return &Config{
		APIKey:  apiKey,
		Model:   model,
		Timeout: timeout,
	}, nil
}
