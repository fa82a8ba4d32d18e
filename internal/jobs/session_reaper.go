package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reaper is satisfied by *orchestrator.Orchestrator.
type Reaper interface {
	ReapIdle(now time.Time) int
}

// SessionReaperJob periodically tears down sessions whose browser went away
// or whose interview finished, releasing their media and focus resources.
type SessionReaperJob struct {
	reaper   Reaper
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionReaperJob creates a reaper running on a cron schedule
// (e.g. "@every 5m").
func NewSessionReaperJob(reaper Reaper, schedule string, logger *zap.Logger) *SessionReaperJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionReaperJob{
		reaper:   reaper,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Start begins the scheduled sweep
func (j *SessionReaperJob) Start() error {
	if j.schedule == "" {
		j.logger.Info("Session reaper disabled, no schedule")
		return nil
	}

	if _, err := j.cron.AddFunc(j.schedule, func() { j.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule session reaper: %w", err)
	}

	j.cron.Start()
	j.logger.Info("Session reaper started", zap.String("schedule", j.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (j *SessionReaperJob) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// RunOnce sweeps immediately and returns how many sessions were torn down.
func (j *SessionReaperJob) RunOnce() int {
	reaped := j.reaper.ReapIdle(j.now())
	if reaped > 0 {
		j.logger.Info("Reaped idle sessions", zap.Int("count", reaped))
	}
	return reaped
}
