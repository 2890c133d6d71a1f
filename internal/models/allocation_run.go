package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// AllocationRun is one allocation of an uploaded submission/collected pair.
type AllocationRun struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionFilename string
	CollectedFilename  string
	Status             string `gorm:"index"`
	TotalRecords       int
	ProcessedCount     int
	SubmissionRows     int
	TotalCollected     float64
	OpeningPaid        float64
	TotalPaid          float64
	Allocated          float64
	Leftover           float64
	OutputPath         string
	Error              string
	StartedAt          time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time `gorm:"index"`
}
