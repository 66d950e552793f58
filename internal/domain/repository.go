// Package domain defines the core interfaces and types for FuelGuard.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	ListTransactionsByVehicle(ctx context.Context, tenantID string, vehicleID string, since time.Time) ([]Transaction, error)

	// Reference data snapshots
	UpsertVehicle(ctx context.Context, tenantID string, v *Vehicle) error
	ListVehicles(ctx context.Context, tenantID string) ([]Vehicle, error)
	UpsertProject(ctx context.Context, tenantID string, p *Project) error
	ListProjects(ctx context.Context, tenantID string) ([]Project, error)
	UpsertWorker(ctx context.Context, tenantID string, w *Worker) error
	ListWorkers(ctx context.Context, tenantID string) ([]Worker, error)

	// Detection results and the review workflow
	SaveAnomaly(ctx context.Context, tenantID string, a *Anomaly) error
	GetAnomaly(ctx context.Context, tenantID string, anomalyID string) (*Anomaly, error)
	ListAnomalies(ctx context.Context, tenantID string, filter AnomalyFilter) ([]Anomaly, error)
	ReviewAnomaly(ctx context.Context, tenantID string, anomalyID string, review AnomalyReview) error

	// Reporting
	Stats(ctx context.Context, tenantID string) (*StatsSummary, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `koanf:"driver"`

	// SQLite specific
	SQLitePath string `koanf:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `koanf:"postgres_host"`
	PostgresPort     int    `koanf:"postgres_port"`
	PostgresUser     string `koanf:"postgres_user"`
	PostgresPassword string `koanf:"postgres_password"`
	PostgresDB       string `koanf:"postgres_db"`
	PostgresSSLMode  string `koanf:"postgres_ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}
