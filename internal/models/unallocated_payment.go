package models

import (
	"time"

	"github.com/google/uuid"
)

type UnallocatedPayment struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunID          uuid.UUID `gorm:"index"`
	CollectedRow   int
	IDNumber       string `gorm:"index"`
	EmployeeNumber string
	Amount         float64
	Reason         string
	CreatedAt      time.Time
}
