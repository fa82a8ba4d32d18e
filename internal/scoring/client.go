// Package scoring calls the question generation and grading functions over
// HTTP with the service token.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aiproctor/interview/internal/models"

	"go.uber.org/zap"
)

const (
	generatePath = "/functions/v1/generate-questions"
	gradePath    = "/functions/v1/grade-interview"
)

// DefaultTimeout bounds one call to the scoring service, grading included.
const DefaultTimeout = 120 * time.Second

var errMissingQuestions = errors.New("Invalid response format: questions array not found")

// ServiceError is a non-2xx answer. Message carries the service's own
// "error" field when present.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, token string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if baseURL == "" || token == "" {
		return nil, errors.New("scoring service URL and token are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		logger:  logger,
	}, nil
}

type generateRequest struct {
	JobRole     string `json:"jobRole"`
	SkillRating int    `json:"skillRating"`
}

type generateResponse struct {
	Questions json.RawMessage `json:"questions"`
}

// GenerateQuestions returns the service's questions as sent. Count checks
// belong to the caller.
func (c *Client) GenerateQuestions(ctx context.Context, jobRole string, skillRating int) ([]string, error) {
	var resp generateResponse
	fallback := "Failed to generate questions"
	if err := c.post(ctx, generatePath, generateRequest{JobRole: jobRole, SkillRating: skillRating}, &resp, fallback); err != nil {
		return nil, err
	}

	var questions []string
	if len(resp.Questions) == 0 || json.Unmarshal(resp.Questions, &questions) != nil || questions == nil {
		return nil, errMissingQuestions
	}
	return questions, nil
}

func (c *Client) GradeInterview(ctx context.Context, req models.GradeInterviewRequest) (*models.GradeResult, error) {
	var result models.GradeResult
	if err := c.post(ctx, gradePath, req, &result, "Failed to grade interview"); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}, fallback string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Scoring service request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("Scoring service responded",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newServiceError(resp.StatusCode, data, fallback)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func newServiceError(status int, body []byte, fallback string) *ServiceError {
	var payload struct {
		Error string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = strings.TrimSpace(payload.Error)
	}
	if msg == "" {
		msg = fmt.Sprintf("%s: %d %s", fallback, status, http.StatusText(status))
	}
	return &ServiceError{Status: status, Message: msg}
}
