package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/glaucoma-screening-server/internal/domain"
)

// AdviceRepository handles advice table persistence. It implements
// domain.AdviceSource for the loader and the mutations behind the admin API.
type AdviceRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAdviceRepository creates a new advice repository
func NewAdviceRepository(db *pgxpool.Pool, logger *logrus.Logger) *AdviceRepository {
	return &AdviceRepository{
		db:  db,
		log: logger,
	}
}

// FetchAdviceEntries returns all advice rows ordered by range start.
// Ranges should be non-overlapping and exhaustive in a well-configured
// system, but nothing here enforces that; the engine tolerates gaps and
// overlaps.
func (r *AdviceRepository) FetchAdviceEntries(ctx context.Context) ([]domain.AdviceEntry, error) {
	query := `
		SELECT id, min_score, max_score, risk_level, advice, created_at, updated_at
		FROM advice_entries
		ORDER BY min_score, max_score`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.WithError(err).Error("Failed to fetch advice entries")
		return nil, fmt.Errorf("fetching advice entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AdviceEntry
	for rows.Next() {
		var e domain.AdviceEntry
		if err := rows.Scan(&e.ID, &e.MinScore, &e.MaxScore, &e.RiskLevel,
			&e.Advice, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning advice row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating advice rows: %w", err)
	}

	return entries, nil
}

// GetByID retrieves a single advice entry
func (r *AdviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AdviceEntry, error) {
	query := `
		SELECT id, min_score, max_score, risk_level, advice, created_at, updated_at
		FROM advice_entries
		WHERE id = $1`

	var e domain.AdviceEntry
	err := r.db.QueryRow(ctx, query, id).Scan(&e.ID, &e.MinScore, &e.MaxScore,
		&e.RiskLevel, &e.Advice, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("advice entry %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{"advice_id": id, "error": err}).
			Error("Failed to get advice entry")
		return nil, fmt.Errorf("getting advice entry: %w", err)
	}

	return &e, nil
}

// Create inserts a new advice entry
func (r *AdviceRepository) Create(ctx context.Context, entry *domain.AdviceEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO advice_entries (id, min_score, max_score, risk_level, advice)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.MinScore, entry.MaxScore, entry.RiskLevel, entry.Advice)
	if err != nil {
		r.log.WithFields(logrus.Fields{"advice_id": entry.ID, "error": err}).
			Error("Failed to create advice entry")
		return fmt.Errorf("creating advice entry: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"advice_id":  entry.ID,
		"min_score":  entry.MinScore,
		"max_score":  entry.MaxScore,
		"risk_level": entry.RiskLevel,
	}).Info("Advice entry created")

	return nil
}

// Update rewrites an advice entry
func (r *AdviceRepository) Update(ctx context.Context, entry *domain.AdviceEntry) error {
	result, err := r.db.Exec(ctx, `
		UPDATE advice_entries
		SET min_score = $2, max_score = $3, risk_level = $4, advice = $5,
			updated_at = NOW()
		WHERE id = $1`,
		entry.ID, entry.MinScore, entry.MaxScore, entry.RiskLevel, entry.Advice)
	if err != nil {
		r.log.WithFields(logrus.Fields{"advice_id": entry.ID, "error": err}).
			Error("Failed to update advice entry")
		return fmt.Errorf("updating advice entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("advice entry %s: %w", entry.ID, domain.ErrNotFound)
	}

	r.log.WithField("advice_id", entry.ID).Info("Advice entry updated")
	return nil
}

// Delete removes an advice entry. Unlike questions, advice rows carry no
// historical linkage, so hard delete is safe.
func (r *AdviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM advice_entries WHERE id = $1`, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{"advice_id": id, "error": err}).
			Error("Failed to delete advice entry")
		return fmt.Errorf("deleting advice entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("advice entry %s: %w", id, domain.ErrNotFound)
	}

	r.log.WithField("advice_id", id).Info("Advice entry deleted")
	return nil
}
