package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ChannelInterviewCompleted = "interview_completed"
	ChannelInterviewViolation = "interview_violation"
)

type InterviewCompletedEvent struct {
	InterviewID    string    `json:"interviewId"`
	UserID         string    `json:"userId"`
	JobRole        string    `json:"jobRole"`
	Score          float64   `json:"score"`
	IsSuspicious   bool      `json:"isSuspicious"`
	TabSwitchCount int       `json:"tabSwitchCount"`
	CompletedAt    time.Time `json:"completedAt"`
	InstanceID     string    `json:"instanceId"`
}

type InterviewViolationEvent struct {
	InterviewID string    `json:"interviewId"`
	UserID      string    `json:"userId"`
	Cause       string    `json:"cause"`
	Count       int       `json:"count"`
	Threshold   int       `json:"threshold"`
	At          time.Time `json:"at"`
	InstanceID  string    `json:"instanceId"`
}

// Publisher fans interview lifecycle events out over redis pub/sub. A nil
// Publisher drops every event.
type Publisher struct {
	rdb        *redis.Client
	instanceID string
	logger     *zap.Logger
}

func NewPublisher(redisAddr string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return &Publisher{
		rdb:        rdb,
		instanceID: uuid.New().String()[:8],
		logger:     logger,
	}
}

func (p *Publisher) Ping(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.rdb.Ping(ctx).Err()
}

func (p *Publisher) PublishCompleted(ctx context.Context, event InterviewCompletedEvent) error {
	if p == nil {
		return nil
	}
	event.InstanceID = p.instanceID
	return p.publish(ctx, ChannelInterviewCompleted, event)
}

func (p *Publisher) PublishViolation(ctx context.Context, event InterviewViolationEvent) error {
	if p == nil {
		return nil
	}
	event.InstanceID = p.instanceID
	return p.publish(ctx, ChannelInterviewViolation, event)
}

func (p *Publisher) publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", channel, err)
	}
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Warn("Failed to publish event", zap.String("channel", channel), zap.Error(err))
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
