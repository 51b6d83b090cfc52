package domain

import (
	"context"
)

// CatalogSource provides raw question rows with their options. Implemented by
// the Postgres repository and by the hosted-backend table client.
type CatalogSource interface {
	FetchQuestions(ctx context.Context) ([]Question, error)
}

// AdviceSource provides raw advice table rows
type AdviceSource interface {
	FetchAdviceEntries(ctx context.Context) ([]AdviceEntry, error)
}

// CatalogLoader presents a validated, ordered catalog and advice table to the
// scoring engine
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]Question, error)
	LoadAdvice(ctx context.Context) ([]AdviceEntry, error)
}

// Invalidator is implemented by read-through caches. Every admin mutation
// must invalidate before returning; this replaces ad hoc cache clearing at
// arbitrary call sites with an explicit invalidate-on-write contract.
type Invalidator interface {
	InvalidateCatalog(ctx context.Context) error
	InvalidateAdvice(ctx context.Context) error
}

// ResultStore persists computed screening results for clinician review
type ResultStore interface {
	Save(ctx context.Context, record *ScreeningRecord) error
	Get(ctx context.Context, id string) (*ScreeningRecord, error)
	ListByPatient(ctx context.Context, patientRef string, limit int) ([]*ScreeningRecord, error)
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
}
