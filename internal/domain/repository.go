// Package domain defines the core records, interfaces and configuration of TenderWatch.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for dataset persistence.
type Repository interface {
	// Dataset operations
	SaveDataset(ctx context.Context, rec *DatasetRecord, ds *Dataset) error
	GetDataset(ctx context.Context, id string) (*DatasetRecord, *Dataset, error)
	LatestDataset(ctx context.Context) (*DatasetRecord, *Dataset, error)
	ListDatasets(ctx context.Context, limit int) ([]*DatasetRecord, error)

	// Verdicts computed for a stored dataset
	SaveVerdicts(ctx context.Context, datasetID string, verdicts []Verdict) error
	ListVerdicts(ctx context.Context, datasetID string) ([]Verdict, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `json:"-" yaml:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}
