package repository

import (
	"errors"
	"time"

	"loan-allocation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("repository: not found")

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(run *models.AllocationRun) error {
	return r.db.Create(run).Error
}

func (r *RunRepository) Save(run *models.AllocationRun) error {
	return r.db.Save(run).Error
}

// Get fetch a single run by ID
func (r *RunRepository) Get(id uuid.UUID) (*models.AllocationRun, error) {
	var run models.AllocationRun
	err := r.db.First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateProgress updates the processed count of a run
func (r *RunRepository) UpdateProgress(id uuid.UUID, count int) error {
	return r.db.Model(&models.AllocationRun{}).
		Where("id = ?", id).
		Update("processed_count", count).
		Error
}

// ListBefore returns runs created before cutoff, oldest first. Runs still in
// processing that old were cut off by a restart and are included.
func (r *RunRepository) ListBefore(cutoff time.Time) ([]models.AllocationRun, error) {
	var runs []models.AllocationRun
	err := r.db.
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&runs).Error
	return runs, err
}

// Delete removes a run together with its entries, leftovers and audit rows.
func (r *RunRepository) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&models.AllocationEntry{},
			&models.UnallocatedPayment{},
			&models.RunAuditLog{},
		} {
			if err := tx.Where("run_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.AllocationRun{}, "id = ?", id).Error
	})
}

func (r *RunRepository) AddAudit(entry *models.RunAuditLog) error {
	return r.db.Create(entry).Error
}
