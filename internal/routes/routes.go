package routes

import (
	"github.com/gin-gonic/gin"

	handler "loan-allocation-backend/internal/handlers"
	"loan-allocation-backend/internal/metrics"
	service "loan-allocation-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, reconService *service.ReconciliationService, maxUploadMB int64) {
	allocHandler := handler.NewAllocationHandler(reconService, maxUploadMB)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Allocation run routes
	runs := api.Group("/allocations")
	runs.POST("", allocHandler.Upload)
	runs.GET("/:runId", allocHandler.GetRun)
	runs.GET("/:runId/progress", allocHandler.GetProgress)
	runs.GET("/:runId/entries", allocHandler.ListEntries)
	runs.GET("/:runId/unallocated", allocHandler.ListUnallocated)
	runs.GET("/:runId/download", allocHandler.Download)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}
