package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"aiproctor/interview/internal/llm"
)

const providerName = "gemini"

type Client struct {
	client *genai.Client
	config *Config
}

func NewClient(config *Config) (*Client, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}

	return &Client{
		client: client,
		config: config,
	}, nil
}

// sends a single-turn prompt and returns the model's text
func (c *Client) GenerateContent(ctx context.Context, prompt string, requestID string) (*llm.Response, error) {
	startTime := time.Now()
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	result, err := c.client.Models.GenerateContent(
		ctx,
		c.config.Model,
		genai.Text(prompt),
		nil,
	)
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     classifyError(err),
			Message:  "Failed to generate content",
			Err:      err,
		}
	}

	if result == nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "No response generated",
		}
	}

	text, err := result.Text()
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "Failed to extract response text",
			Err:      err,
		}
	}
	return buildResponse(text, requestID, c.config.Model, startTime)
}

func buildResponse(text, requestID, model string, startTime time.Time) (*llm.Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "Empty response generated",
		}
	}
	return &llm.Response{
		Content:   text,
		RequestID: requestID,
		Metadata: llm.Metadata{
			ProcessingTime: int(time.Since(startTime).Milliseconds()),
			Provider:       providerName,
			Model:          model,
		},
	}, nil
}

// maps transport failures onto the shared provider codes
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.ErrCodeTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource_exhausted"):
		return llm.ErrCodeRateLimit
	case strings.Contains(msg, "api key") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return llm.ErrCodeAPIKey
	default:
		return llm.ErrCodeServiceDown
	}
}

func (c *Client) GetProviderName() string {
	return providerName
}
