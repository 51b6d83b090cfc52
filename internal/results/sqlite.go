package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/glaucoma-screening-server/internal/domain"
)

// SQLiteStore implements domain.ResultStore using SQLite. It suits
// single-node deployments that run without a Postgres instance.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite result store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSQLiteSchema creates the screenings table and indexes
func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS screenings (
		id TEXT PRIMARY KEY,
		patient_ref TEXT NOT NULL DEFAULT '',
		total_score INTEGER NOT NULL,
		risk_level TEXT NOT NULL,
		advice TEXT NOT NULL DEFAULT '',
		contributing_factors TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_screenings_patient
		ON screenings (patient_ref, created_at DESC);`

	_, err := db.Exec(schema)
	return err
}

// Save stores a screening record
func (s *SQLiteStore) Save(ctx context.Context, record *domain.ScreeningRecord) error {
	factors, err := json.Marshal(record.ContributingFactors)
	if err != nil {
		return fmt.Errorf("marshaling contributing factors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO screenings (id, patient_ref, total_score, risk_level, advice, contributing_factors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.PatientRef, record.TotalScore, string(record.RiskLevel),
		record.Advice, string(factors), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving screening: %w", err)
	}

	return nil
}

// Get retrieves a screening record by ID
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.ScreeningRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, patient_ref, total_score, risk_level, advice, contributing_factors, created_at
		FROM screenings WHERE id = ?`, id)

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
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientRef string, limit int) ([]*domain.ScreeningRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_ref, total_score, risk_level, advice, contributing_factors, created_at
		FROM screenings WHERE patient_ref = ?
		ORDER BY created_at DESC LIMIT ?`, patientRef, limit)
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner is an interface over sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanScreening scans one screening row, decoding the factors JSON
func scanScreening(s scanner) (*domain.ScreeningRecord, error) {
	record := &domain.ScreeningRecord{}
	var riskLevel, factorsJSON string

	err := s.Scan(&record.ID, &record.PatientRef, &record.TotalScore,
		&riskLevel, &record.Advice, &factorsJSON, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	record.RiskLevel = domain.RiskLevel(riskLevel)
	if err := json.Unmarshal([]byte(factorsJSON), &record.ContributingFactors); err != nil {
		return nil, fmt.Errorf("decoding contributing factors: %w", err)
	}

	return record, nil
}
