package models

import (
	"time"

	"github.com/google/uuid"
)

type RunAuditLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunID       uuid.UUID `gorm:"index"`
	Action      string
	PerformedBy string
	Reason      string
	CreatedAt   time.Time
}
