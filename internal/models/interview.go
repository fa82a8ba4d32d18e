package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a candidate known to the identity provider, keyed by email.
type User struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interview is the persisted record of one session.
type Interview struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string         `gorm:"not null;index" json:"userId"`
	ResumeURL      string         `json:"resumeUrl,omitempty"`
	JobRole        string         `gorm:"not null" json:"jobRole"`
	SkillRating    int            `gorm:"not null" json:"skillRating"`
	Status         string         `gorm:"not null;index" json:"status"`
	Questions      []string       `gorm:"serializer:json;type:text" json:"questions"`
	Answers        []string       `gorm:"serializer:json;type:text" json:"answers"`
	TabSwitchCount int            `gorm:"not null;default:0" json:"tabSwitchCount"`
	Score          *float64       `json:"score,omitempty"`
	Feedback       string         `gorm:"type:text" json:"feedback,omitempty"`
	Suggestions    []string       `gorm:"serializer:json;type:text" json:"suggestions,omitempty"`
	IsSuspicious   bool           `gorm:"not null;default:false" json:"isSuspicious"`
	RecordingURL   string         `json:"recordingUrl,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
