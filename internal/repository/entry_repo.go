package repository

import (
	"loan-allocation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const insertBatchSize = 500

type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// PersistResults stores a run's entries and unallocated payments and saves the
// run itself in one transaction, so a failure leaves none of them behind.
func (r *EntryRepository) PersistResults(run *models.AllocationRun, entries []models.AllocationEntry, items []models.UnallocatedPayment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if len(entries) > 0 {
			if err := tx.CreateInBatches(entries, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(items) > 0 {
			if err := tx.CreateInBatches(items, insertBatchSize).Error; err != nil {
				return err
			}
		}
		return tx.Save(run).Error
	})
}

// ListEntries returns up to limit entries of a run with Seq > afterSeq,
// optionally filtered by pass.
func (r *EntryRepository) ListEntries(runID uuid.UUID, pass string, afterSeq, limit int) ([]models.AllocationEntry, error) {
	var entries []models.AllocationEntry
	query := r.db.
		Where("run_id = ?", runID).
		Where("seq > ?", afterSeq).
		Order("seq ASC").
		Limit(limit)

	if pass != "" && pass != "all" {
		query = query.Where("pass = ?", pass)
	}

	err := query.Find(&entries).Error
	return entries, err
}

func (r *EntryRepository) ListUnallocated(runID uuid.UUID) ([]models.UnallocatedPayment, error) {
	var items []models.UnallocatedPayment
	err := r.db.
		Where("run_id = ?", runID).
		Order("collected_row ASC").
		Find(&items).Error
	return items, err
}

type StatRow struct {
	Pass  string
	Count int64
	Sum   float64
}

// PassStats aggregates entry counts and amounts per pass.
func (r *EntryRepository) PassStats(runID uuid.UUID) ([]StatRow, error) {
	var rows []StatRow
	err := r.db.Model(&models.AllocationEntry{}).
		Where("run_id = ?", runID).
		Select("pass, COUNT(*) as count, COALESCE(SUM(amount),0) as sum").
		Group("pass").
		Scan(&rows).Error
	return rows, err
}
