package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AllocationEntry records one transfer from a collected row into a submission row.
type AllocationEntry struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunID          uuid.UUID `gorm:"index:idx_entry_run_seq,priority:1"`
	Seq            int       `gorm:"index:idx_entry_run_seq,priority:2"`
	CollectedRow   int
	SubmissionRow  int
	IDNumber       string `gorm:"index"`
	EmployeeNumber string
	Pass           string `gorm:"index"`
	Amount         float64
	Details        datatypes.JSON
	CreatedAt      time.Time
}
