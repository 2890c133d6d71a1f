package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"loan-allocation-backend/internal/models"
	"loan-allocation-backend/internal/repository"
	service "loan-allocation-backend/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	downloadName    = "output.xlsx"
)

type AllocationHandler struct {
	service        *service.ReconciliationService
	maxUploadBytes int64
}

func NewAllocationHandler(s *service.ReconciliationService, maxUploadMB int64) *AllocationHandler {
	return &AllocationHandler{service: s, maxUploadBytes: maxUploadMB << 20}
}

type upload struct {
	filename string
	data     []byte
}

// Upload accepts a submission and a collected file, creates a run and
// processes it in background
func (h *AllocationHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	submission, err := readUpload(c, "submission")
	if err != nil {
		uploadError(c, err)
		return
	}
	collected, err := readUpload(c, "collected")
	if err != nil {
		uploadError(c, err)
		return
	}
	log.Printf("Received files: submission=%s (%d bytes) collected=%s (%d bytes)",
		submission.filename, len(submission.data), collected.filename, len(collected.data))

	run, err := h.service.CreateRun(submission.filename, collected.filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Process in background from the buffered uploads
	go func(runID uuid.UUID) {
		err := h.service.ProcessRun(runID,
			service.Source{Filename: submission.filename, Reader: bytes.NewReader(submission.data)},
			service.Source{Filename: collected.filename, Reader: bytes.NewReader(collected.data)},
		)
		if err != nil {
			log.Printf("[allocation] run %s: %v", runID, err)
		}
	}(run.ID)

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": run.ID.String(),
		"status": run.Status,
	})
}

func readUpload(c *gin.Context, field string) (*upload, error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s file required: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return &upload{filename: header.Filename, data: data}, nil
}

func uploadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// runID parses the :runId path parameter, answering 400 when it is not a UUID.
func runID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return uuid.Nil, false
	}
	return id, true
}

func lookupError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func runResponse(run *models.AllocationRun) gin.H {
	return gin.H{
		"run_id":              run.ID.String(),
		"status":              run.Status,
		"submission_filename": run.SubmissionFilename,
		"collected_filename":  run.CollectedFilename,
		"total_records":       run.TotalRecords,
		"processed_count":     run.ProcessedCount,
		"submission_rows":     run.SubmissionRows,
		"total_collected":     run.TotalCollected,
		"opening_paid":        run.OpeningPaid,
		"total_paid":          run.TotalPaid,
		"allocated":           run.Allocated,
		"leftover":            run.Leftover,
		"error":               run.Error,
		"started_at":          run.StartedAt,
		"completed_at":        run.CompletedAt,
	}
}

func (h *AllocationHandler) GetRun(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	run, err := h.service.GetRun(id)
	if err != nil {
		lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, runResponse(run))
}

func (h *AllocationHandler) GetProgress(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	p, err := h.service.GetProgress(id)
	if err != nil {
		lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"processed_count": p.ProcessedCount,
		"total":           p.Total,
		"fraction":        p.Fraction(),
		"status":          p.Status,
	})
}

func (h *AllocationHandler) ListEntries(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	if _, err := h.service.GetRun(id); err != nil {
		lookupError(c, err)
		return
	}

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxPageSize)
	}

	items, nextCursor, hasMore, err := h.service.ListEntries(id, c.Query("pass"), c.Query("cursor"), limit)
	if errors.Is(err, service.ErrInvalidCursor) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stats, err := h.service.GetRunStats(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       entryItems(items),
		"next_cursor": nextCursor,
		"has_more":    hasMore,
		"stats":       stats,
	})
}

func entryItems(entries []models.AllocationEntry) []gin.H {
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"seq":             e.Seq,
			"collected_row":   e.CollectedRow,
			"submission_row":  e.SubmissionRow,
			"id_number":       e.IDNumber,
			"employee_number": e.EmployeeNumber,
			"pass":            e.Pass,
			"amount":          e.Amount,
			"details":         e.Details,
		})
	}
	return out
}

func (h *AllocationHandler) ListUnallocated(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	if _, err := h.service.GetRun(id); err != nil {
		lookupError(c, err)
		return
	}

	items, err := h.service.ListUnallocated(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var total float64
	out := make([]gin.H, 0, len(items))
	for _, u := range items {
		total += u.Amount
		out = append(out, gin.H{
			"collected_row":   u.CollectedRow,
			"id_number":       u.IDNumber,
			"employee_number": u.EmployeeNumber,
			"amount":          u.Amount,
			"reason":          u.Reason,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "total": total})
}

func (h *AllocationHandler) Download(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	path, err := h.service.OutputPath(id, c.ClientIP())
	if errors.Is(err, service.ErrOutputNotReady) {
		c.JSON(http.StatusConflict, gin.H{"error": "output not ready"})
		return
	}
	if err != nil {
		lookupError(c, err)
		return
	}
	c.FileAttachment(path, downloadName)
}
