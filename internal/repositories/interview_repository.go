package repositories

import (
	"context"
	"errors"
	"time"

	"aiproctor/interview/internal/models"

	"gorm.io/gorm"
)

var ErrInterviewNotFound = errors.New("interview not found")

type InterviewRepository struct {
	DB *gorm.DB
}

func (r *InterviewRepository) Create(ctx context.Context, interview *models.Interview) error {
	return r.DB.WithContext(ctx).Create(interview).Error
}

func (r *InterviewRepository) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	var interview models.Interview
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&interview).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &interview, nil
}

// ListByUser returns the user's interviews, newest first
func (r *InterviewRepository) ListByUser(ctx context.Context, userID string) ([]models.Interview, error) {
	interviews := []models.Interview{}
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&interviews).Error
	return interviews, err
}

// SaveQuestions overwrites the generated question set. Idempotent.
func (r *InterviewRepository) SaveQuestions(ctx context.Context, id string, questions []string) error {
	return r.update(ctx, id, []string{"questions"}, &models.Interview{Questions: questions})
}

// CompleteInterview records the submitted answers and marks the interview completed.
func (r *InterviewRepository) CompleteInterview(ctx context.Context, id string, answers []string, tabSwitchCount int, completedAt time.Time) error {
	return r.update(ctx, id,
		[]string{"answers", "tab_switch_count", "status", "completed_at"},
		&models.Interview{
			Answers:        answers,
			TabSwitchCount: tabSwitchCount,
			Status:         models.InterviewStatusCompleted,
			CompletedAt:    &completedAt,
		})
}

func (r *InterviewRepository) SaveGrade(ctx context.Context, id string, result *models.GradeResult) error {
	score := result.Score
	return r.update(ctx, id,
		[]string{"score", "feedback", "suggestions", "is_suspicious", "status"},
		&models.Interview{
			Score:        &score,
			Feedback:     result.Feedback,
			Suggestions:  result.Suggestions,
			IsSuspicious: result.IsSuspicious,
			Status:       models.InterviewStatusGraded,
		})
}

func (r *InterviewRepository) SetRecordingURL(ctx context.Context, id, url string) error {
	return r.update(ctx, id, []string{"recording_url"}, &models.Interview{RecordingURL: url})
}

// update writes only the selected columns so zero values are stored too.
func (r *InterviewRepository) update(ctx context.Context, id string, columns []string, values *models.Interview) error {
	res := r.DB.WithContext(ctx).
		Model(&models.Interview{ID: id}).
		Select(columns).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInterviewNotFound
	}
	return nil
}
