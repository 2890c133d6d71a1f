package main

import (
	"log"
	"time"

	"loan-allocation-backend/internal/config"
	"loan-allocation-backend/internal/jobs"
	"loan-allocation-backend/internal/metrics"
	"loan-allocation-backend/internal/models"
	"loan-allocation-backend/internal/repository"
	"loan-allocation-backend/internal/routes"
	service "loan-allocation-backend/internal/services/reconciliation"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := config.InitDB(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}

	if err := db.AutoMigrate(
		&models.AllocationRun{},
		&models.AllocationEntry{},
		&models.UnallocatedPayment{},
		&models.RunAuditLog{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	reconService := service.NewReconciliationService(
		repository.NewRunRepository(db),
		repository.NewEntryRepository(db),
		service.Options{
			Columns:   cfg.Columns,
			Tolerance: cfg.Tolerance,
			OutputDir: cfg.OutputDir,
		},
	)

	scheduler, err := jobs.StartRetention(cfg.Retention, reconService)
	if err != nil {
		log.Fatal(err)
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	metrics.Register()

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, reconService, cfg.Server.MaxUploadMB)

	if err := r.Run(cfg.Server.Addr); err != nil {
		log.Fatal(err)
	}
}
