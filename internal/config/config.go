package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"loan-allocation-backend/internal/services/allocation"
)

const DefaultPath = "allocator.yaml"

// Path returns the config file named by ALLOCATOR_CONFIG, or DefaultPath.
func Path() string {
	if p := strings.TrimSpace(os.Getenv("ALLOCATOR_CONFIG")); p != "" {
		return p
	}
	return DefaultPath
}

// Config is the service configuration. Values come from DefaultConfig, then
// the YAML file, then environment variables.
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	Database  DatabaseConfig     `yaml:"database"`
	Columns   allocation.Columns `yaml:"columns"`
	Tolerance float64            `yaml:"tolerance"`
	OutputDir string             `yaml:"output_dir"`
	Retention RetentionConfig    `yaml:"retention"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	MaxUploadMB int64    `yaml:"max_upload_mb"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type RetentionConfig struct {
	Days     int    `yaml:"days"`
	Schedule string `yaml:"schedule"`
	TimeZone string `yaml:"timezone"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
			MaxUploadMB: 32,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "loan_allocation",
			SSLMode: "disable",
		},
		Columns:   allocation.DefaultColumns(),
		Tolerance: allocation.DefaultTolerance,
		OutputDir: "./output",
		Retention: RetentionConfig{
			Days:     30,
			Schedule: "0 3 * * *",
			TimeZone: "UTC",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("config file %s not found, using defaults", path)
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("SERVER_ADDR", &c.Server.Addr)
	setString("OUTPUT_DIR", &c.OutputDir)
	setString("RETENTION_SCHEDULE", &c.Retention.Schedule)
	setString("RETENTION_TIMEZONE", &c.Retention.TimeZone)
	setString("DB_HOST", &c.Database.Host)
	setString("DB_PORT", &c.Database.Port)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.Name)
	setString("DB_SSLMODE", &c.Database.SSLMode)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RETENTION_DAYS: %w", err)
		}
		c.Retention.Days = days
	}
	if v := os.Getenv("ALLOCATION_TOLERANCE"); v != "" {
		tol, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ALLOCATION_TOLERANCE: %w", err)
		}
		c.Tolerance = tol
	}
	return nil
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be > 0")
	}
	if c.Tolerance <= 0 || c.Tolerance >= 1 {
		return fmt.Errorf("tolerance must be in (0, 1), got %v", c.Tolerance)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must be >= 0")
	}

	cols := []struct{ name, value string }{
		{"columns.id_number", c.Columns.IDNumber},
		{"columns.employee_number", c.Columns.EmployeeNumber},
		{"columns.instalment_amount", c.Columns.InstalmentAmount},
		{"columns.paid", c.Columns.Paid},
		{"columns.diff", c.Columns.Diff},
	}
	for _, col := range cols {
		if strings.TrimSpace(col.value) == "" {
			return fmt.Errorf("%s must not be empty", col.name)
		}
	}
	if c.Columns.Paid != "" && strings.EqualFold(c.Columns.Paid, c.Columns.Diff) {
		return fmt.Errorf("columns.paid and columns.diff must differ")
	}
	return nil
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// InitDB opens the Postgres connection.
func InitDB(cfg DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Printf("Connected to database %s at %s:%s", cfg.Name, cfg.Host, cfg.Port)
	return db, nil
}
