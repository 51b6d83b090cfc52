package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/glaucoma-screening-server/internal/domain"
)

// PostgresStore implements domain.ResultStore using PostgreSQL.
// It expects the screenings table to already exist (created via migrations).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL result store over an existing
// connection
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL result store from a
// connection URL
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores a screening record
func (s *PostgresStore) Save(ctx context.Context, record *domain.ScreeningRecord) error {
	factors, err := json.Marshal(record.ContributingFactors)
	if err != nil {
		return fmt.Errorf("marshaling contributing factors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO screenings (id, patient_ref, total_score, risk_level, advice, contributing_factors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.PatientRef, record.TotalScore, string(record.RiskLevel),
		record.Advice, factors, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving screening: %w", err)
	}

	return nil
}

// Get retrieves a screening record by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.ScreeningRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, patient_ref, total_score, risk_level, advice, contributing_factors, created_at
		FROM screenings WHERE id = $1`, id)

	record, err := scanScreening(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("screening %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting screening: %w", err)
	}
	return record, nil
}

// ListByPatient lists screenings for one patient, newest first
func (s *PostgresStore) ListByPatient(ctx context.Context, patientRef string, limit int) ([]*domain.ScreeningRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_ref, total_score, risk_level, advice, contributing_factors, created_at
		FROM screenings WHERE patient_ref = $1
		ORDER BY created_at DESC LIMIT $2`, patientRef, limit)
	if err != nil {
		return nil, fmt.Errorf("listing screenings: %w", err)
	}
	defer rows.Close()

	var records []*domain.ScreeningRecord
	for rows.Next() {
		record, err := scanScreening(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning screening row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating screening rows: %w", err)
	}

	return records, nil
}

// Close closes the underlying database
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
