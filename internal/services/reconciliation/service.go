package reconciliation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"loan-allocation-backend/internal/metrics"
	"loan-allocation-backend/internal/models"
	"loan-allocation-backend/internal/repository"
	"loan-allocation-backend/internal/services/allocation"
	"loan-allocation-backend/internal/tabular"

	"github.com/google/uuid"
)

const (
	// Update progress every 100 rows
	progressFlushEvery = 100
	defaultPageSize    = 50
)

var (
	ErrOutputNotReady = errors.New("run output not ready")
	ErrInvalidCursor  = errors.New("invalid cursor")
)

type RunStore interface {
	Create(run *models.AllocationRun) error
	Save(run *models.AllocationRun) error
	Get(id uuid.UUID) (*models.AllocationRun, error)
	UpdateProgress(id uuid.UUID, count int) error
	ListBefore(cutoff time.Time) ([]models.AllocationRun, error)
	Delete(id uuid.UUID) error
	AddAudit(entry *models.RunAuditLog) error
}

type EntryStore interface {
	PersistResults(run *models.AllocationRun, entries []models.AllocationEntry, items []models.UnallocatedPayment) error
	ListEntries(runID uuid.UUID, pass string, afterSeq, limit int) ([]models.AllocationEntry, error)
	ListUnallocated(runID uuid.UUID) ([]models.UnallocatedPayment, error)
	PassStats(runID uuid.UUID) ([]repository.StatRow, error)
}

type Options struct {
	Columns   allocation.Columns
	Tolerance float64
	OutputDir string
}

// Source is an uploaded table and the name it was uploaded under.
// The extension of Filename selects the parser.
type Source struct {
	Filename string
	Reader   io.Reader
}

type Progress struct {
	ProcessedCount int
	Total          int
	Status         string
}

// Fraction is the completed share of the run, 1 once it has finished.
func (p Progress) Fraction() float64 {
	if p.Status != models.RunStatusProcessing {
		return 1
	}
	if p.Total == 0 {
		return 0
	}
	return float64(p.ProcessedCount) / float64(p.Total)
}

type ReconciliationService struct {
	runs          RunStore
	entries       EntryStore
	opts          Options
	progressCache sync.Map // runID -> Progress
}

func NewReconciliationService(runs RunStore, entries EntryStore, opts Options) *ReconciliationService {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &ReconciliationService{
		runs:    runs,
		entries: entries,
		opts:    opts,
	}
}

// CreateRun registers a new run in processing state.
func (s *ReconciliationService) CreateRun(submissionName, collectedName string) (*models.AllocationRun, error) {
	now := time.Now()
	run := &models.AllocationRun{
		ID:                 uuid.New(),
		SubmissionFilename: submissionName,
		CollectedFilename:  collectedName,
		Status:             models.RunStatusProcessing,
		StartedAt:          now,
		CreatedAt:          now,
	}
	if err := s.runs.Create(run); err != nil {
		return nil, err
	}
	s.progressCache.Store(run.ID, Progress{Status: models.RunStatusProcessing})
	s.audit(run.ID, "created", "system", fmt.Sprintf("submission=%s collected=%s", submissionName, collectedName))
	return run, nil
}

// ProcessRun parses both uploads, allocates, writes the output workbook and
// persists the results. A failure marks the run failed and is returned.
func (s *ReconciliationService) ProcessRun(runID uuid.UUID, submission, collected Source) error {
	started := time.Now()
	run, err := s.runs.Get(runID)
	if err != nil {
		return err
	}

	if err := s.allocateRun(run, submission, collected); err != nil {
		s.markFailed(run, err)
		metrics.RecordFailedRun(time.Since(started))
		return err
	}
	metrics.RecordCompletedRun(time.Since(started), run.TotalCollected, run.Allocated, run.Leftover)
	return nil
}

func (s *ReconciliationService) allocateRun(run *models.AllocationRun, submission, collected Source) error {
	subTable, err := tabular.Read(submission.Reader, submission.Filename)
	if err != nil {
		return fmt.Errorf("submission file %q: %w", submission.Filename, err)
	}
	colTable, err := tabular.Read(collected.Reader, collected.Filename)
	if err != nil {
		return fmt.Errorf("collected file %q: %w", collected.Filename, err)
	}

	total := colTable.Len()
	run.TotalRecords = total
	run.SubmissionRows = subTable.Len()
	if err := s.runs.Save(run); err != nil {
		return err
	}
	s.progressCache.Store(run.ID, Progress{Total: total, Status: models.RunStatusProcessing})

	allocator := allocation.New(
		allocation.WithColumns(s.opts.Columns),
		allocation.WithTolerance(s.opts.Tolerance),
		allocation.WithProgress(func(fraction float64) {
			processed := int(math.Round(fraction * float64(total)))
			run.ProcessedCount = processed
			s.progressCache.Store(run.ID, Progress{
				ProcessedCount: processed,
				Total:          total,
				Status:         models.RunStatusProcessing,
			})
			if processed > 0 && processed%progressFlushEvery == 0 {
				if err := s.runs.UpdateProgress(run.ID, processed); err != nil {
					log.Printf("[allocation] progress update for run %s: %v", run.ID, err)
				}
			}
		}),
	)
	out, res, err := allocator.Allocate(subTable, colTable)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return err
	}
	path := s.outputFile(run.ID)
	if err := tabular.WriteFile(path, out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	completed := time.Now()
	done := *run
	done.Status = models.RunStatusCompleted
	done.ProcessedCount = total
	done.TotalCollected = res.TotalCollected
	done.OpeningPaid = res.OpeningPaid
	done.TotalPaid = res.TotalPaid
	done.Allocated = res.Allocated
	done.Leftover = res.Leftover
	done.OutputPath = path
	done.Error = ""
	done.CompletedAt = &completed
	if err := s.entries.PersistResults(&done, buildEntries(run.ID, res), buildUnallocated(run.ID, res)); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	*run = done

	s.progressCache.Store(run.ID, Progress{ProcessedCount: total, Total: total, Status: models.RunStatusCompleted})
	s.audit(run.ID, "completed", "system", res.Summary())
	log.Printf("[AUDIT] run %s completed: %s", run.ID, res.Summary())
	return nil
}

func (s *ReconciliationService) markFailed(run *models.AllocationRun, cause error) {
	now := time.Now()
	run.Status = models.RunStatusFailed
	run.Error = cause.Error()
	run.OutputPath = ""
	run.CompletedAt = &now
	if err := s.runs.Save(run); err != nil {
		log.Printf("[allocation] mark run %s failed: %v", run.ID, err)
	}
	if err := os.Remove(s.outputFile(run.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[allocation] remove partial output of run %s: %v", run.ID, err)
	}

	s.progressCache.Store(run.ID, Progress{
		ProcessedCount: run.ProcessedCount,
		Total:          run.TotalRecords,
		Status:         models.RunStatusFailed,
	})
	s.audit(run.ID, "failed", "system", cause.Error())
	log.Printf("[AUDIT] run %s failed: %v", run.ID, cause)
}

func (s *ReconciliationService) outputFile(runID uuid.UUID) string {
	return filepath.Join(s.opts.OutputDir, runID.String()+".xlsx")
}

func buildEntries(runID uuid.UUID, res *allocation.Result) []models.AllocationEntry {
	now := time.Now()
	entries := make([]models.AllocationEntry, 0, len(res.Allocations))
	for i, a := range res.Allocations {
		details := map[string]interface{}{
			"paid_after": a.PaidAfter,
			"diff_after": a.DiffAfter,
		}
		detailsJSON, _ := json.Marshal(details)

		entries = append(entries, models.AllocationEntry{
			ID:             uuid.New(),
			RunID:          runID,
			Seq:            i + 1,
			CollectedRow:   a.CollectedRow,
			SubmissionRow:  a.SubmissionRow,
			IDNumber:       a.IDNumber,
			EmployeeNumber: a.EmployeeNumber,
			Pass:           string(a.Pass),
			Amount:         a.Amount,
			Details:        detailsJSON,
			CreatedAt:      now,
		})
	}
	return entries
}

func buildUnallocated(runID uuid.UUID, res *allocation.Result) []models.UnallocatedPayment {
	now := time.Now()
	items := make([]models.UnallocatedPayment, 0, len(res.Unallocated))
	for _, u := range res.Unallocated {
		items = append(items, models.UnallocatedPayment{
			ID:             uuid.New(),
			RunID:          runID,
			CollectedRow:   u.CollectedRow,
			IDNumber:       u.IDNumber,
			EmployeeNumber: u.EmployeeNumber,
			Amount:         u.Amount,
			Reason:         u.Reason,
			CreatedAt:      now,
		})
	}
	return items
}

func (s *ReconciliationService) GetRun(runID uuid.UUID) (*models.AllocationRun, error) {
	return s.runs.Get(runID)
}

// GetProgress prefers the in-memory view of a run and falls back to the
// database for runs this process did not handle.
func (s *ReconciliationService) GetProgress(runID uuid.UUID) (Progress, error) {
	if val, ok := s.progressCache.Load(runID); ok {
		return val.(Progress), nil
	}
	run, err := s.runs.Get(runID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		ProcessedCount: run.ProcessedCount,
		Total:          run.TotalRecords,
		Status:         run.Status,
	}, nil
}

// ListEntries pages through a run's allocation entries in creation order.
// The cursor is the Seq of the last entry of the previous page.
func (s *ReconciliationService) ListEntries(
	runID uuid.UUID,
	pass string,
	cursor string,
	limit int,
) ([]models.AllocationEntry, string, bool, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	afterSeq := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, "", false, ErrInvalidCursor
		}
		afterSeq = n
	}

	entries, err := s.entries.ListEntries(runID, pass, afterSeq, limit+1)
	if err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string

	if len(entries) > limit {
		hasMore = true
		nextCursor = strconv.Itoa(entries[limit-1].Seq)
		entries = entries[:limit]
	}

	return entries, nextCursor, hasMore, nil
}

func (s *ReconciliationService) ListUnallocated(runID uuid.UUID) ([]models.UnallocatedPayment, error) {
	return s.entries.ListUnallocated(runID)
}

type RunStats struct {
	Total       int64   `json:"total"`
	TotalAmount float64 `json:"total_amount"`

	IDMatchedCount int64   `json:"id_matched_count"`
	IDMatchedSum   float64 `json:"id_matched_sum"`

	EmployeeMatchedCount int64   `json:"employee_matched_count"`
	EmployeeMatchedSum   float64 `json:"employee_matched_sum"`

	UnallocatedCount int64   `json:"unallocated_count"`
	UnallocatedSum   float64 `json:"unallocated_sum"`
}

// GetRunStats aggregates a run's entries per pass plus its unallocated remainders.
func (s *ReconciliationService) GetRunStats(runID uuid.UUID) (RunStats, error) {
	var stats RunStats
	rows, err := s.entries.PassStats(runID)
	if err != nil {
		return stats, err
	}

	for _, r := range rows {
		stats.Total += r.Count
		stats.TotalAmount += r.Sum

		switch allocation.Pass(r.Pass) {
		case allocation.PassID:
			stats.IDMatchedCount = r.Count
			stats.IDMatchedSum = r.Sum
		case allocation.PassEmployee:
			stats.EmployeeMatchedCount = r.Count
			stats.EmployeeMatchedSum = r.Sum
		}
	}

	items, err := s.entries.ListUnallocated(runID)
	if err != nil {
		return stats, err
	}
	for _, u := range items {
		stats.UnallocatedCount++
		stats.UnallocatedSum += u.Amount
	}
	return stats, nil
}

// OutputPath returns the workbook of a completed run and records the download.
func (s *ReconciliationService) OutputPath(runID uuid.UUID, requestedBy string) (string, error) {
	run, err := s.runs.Get(runID)
	if err != nil {
		return "", err
	}
	if run.Status != models.RunStatusCompleted || run.OutputPath == "" {
		return "", ErrOutputNotReady
	}
	if _, err := os.Stat(run.OutputPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputNotReady, err)
	}
	s.audit(runID, "downloaded", requestedBy, "")
	return run.OutputPath, nil
}

// PurgeOlderThan deletes runs created before cutoff together with their output
// files. It returns the number of runs removed.
func (s *ReconciliationService) PurgeOlderThan(cutoff time.Time) (int, error) {
	runs, err := s.runs.ListBefore(cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, run := range runs {
		if run.OutputPath != "" {
			if err := os.Remove(run.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Printf("[allocation] remove output of run %s: %v", run.ID, err)
			}
		}
		if err := s.runs.Delete(run.ID); err != nil {
			return purged, fmt.Errorf("delete run %s: %w", run.ID, err)
		}
		s.progressCache.Delete(run.ID)
		purged++
		log.Printf("[AUDIT] run %s purged (created %s)", run.ID, run.CreatedAt.Format(time.RFC3339))
	}
	return purged, nil
}

func (s *ReconciliationService) audit(runID uuid.UUID, action, performedBy, reason string) {
	entry := &models.RunAuditLog{
		ID:          uuid.New(),
		RunID:       runID,
		Action:      action,
		PerformedBy: performedBy,
		Reason:      reason,
		CreatedAt:   time.Now(),
	}
	if err := s.runs.AddAudit(entry); err != nil {
		log.Printf("[allocation] audit %s for run %s: %v", action, runID, err)
	}
}
