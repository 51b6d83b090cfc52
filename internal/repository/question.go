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

// QuestionRepository handles question bank persistence. It implements
// domain.CatalogSource for the loader and the mutation operations behind the
// admin API.
type QuestionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *pgxpool.Pool, logger *logrus.Logger) *QuestionRepository {
	return &QuestionRepository{
		db:  db,
		log: logger,
	}
}

// FetchQuestions returns all active questions with their options, ordered by
// (category, display_order). Option order follows the admin-defined position.
func (r *QuestionRepository) FetchQuestions(ctx context.Context) ([]domain.Question, error) {
	query := `
		SELECT id, text, type, category, display_order, status, created_at, updated_at
		FROM questions
		WHERE status = 'active'
		ORDER BY category, display_order, created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.WithError(err).Error("Failed to fetch questions")
		return nil, fmt.Errorf("fetching questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	index := make(map[string]int)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Type, &q.Category, &q.DisplayOrder,
			&q.Status, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning question row: %w", err)
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating question rows: %w", err)
	}

	if len(questions) == 0 {
		return questions, nil
	}

	optQuery := `
		SELECT o.question_id, o.value, o.label, o.score, o.position
		FROM question_options o
		JOIN questions q ON q.id = o.question_id
		WHERE q.status = 'active'
		ORDER BY o.question_id, o.position`

	optRows, err := r.db.Query(ctx, optQuery)
	if err != nil {
		r.log.WithError(err).Error("Failed to fetch question options")
		return nil, fmt.Errorf("fetching question options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var questionID string
		var opt domain.Option
		if err := optRows.Scan(&questionID, &opt.Value, &opt.Label, &opt.Score, &opt.Position); err != nil {
			return nil, fmt.Errorf("scanning option row: %w", err)
		}
		if i, ok := index[questionID]; ok {
			questions[i].Options = append(questions[i].Options, opt)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating option rows: %w", err)
	}

	return questions, nil
}

// GetByID retrieves a single question with its options, archived included
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Question, error) {
	query := `
		SELECT id, text, type, category, display_order, status, created_at, updated_at
		FROM questions
		WHERE id = $1`

	var q domain.Question
	err := r.db.QueryRow(ctx, query, id).Scan(&q.ID, &q.Text, &q.Type, &q.Category,
		&q.DisplayOrder, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("question %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{"question_id": id, "error": err}).
			Error("Failed to get question")
		return nil, fmt.Errorf("getting question: %w", err)
	}

	optRows, err := r.db.Query(ctx,
		`SELECT value, label, score, position FROM question_options
		 WHERE question_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("fetching options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var opt domain.Option
		if err := optRows.Scan(&opt.Value, &opt.Label, &opt.Score, &opt.Position); err != nil {
			return nil, fmt.Errorf("scanning option row: %w", err)
		}
		q.Options = append(q.Options, opt)
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating option rows: %w", err)
	}

	return &q, nil
}

// Create inserts a new question with its options in one transaction
func (r *QuestionRepository) Create(ctx context.Context, question *domain.Question) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO questions (id, text, type, category, display_order, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		question.ID, question.Text, question.Type, question.Category,
		question.DisplayOrder, question.Status)
	if err != nil {
		r.log.WithFields(logrus.Fields{"question_id": question.ID, "error": err}).
			Error("Failed to create question")
		return fmt.Errorf("creating question: %w", err)
	}

	if err := insertOptions(ctx, tx, question.ID, question.Options); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing question create: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"question_id": question.ID,
		"category":    question.Category,
		"options":     len(question.Options),
	}).Info("Question created")

	return nil
}

// Update rewrites a question and replaces its option list
func (r *QuestionRepository) Update(ctx context.Context, question *domain.Question) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE questions
		SET text = $2, type = $3, category = $4, display_order = $5, status = $6,
			updated_at = NOW()
		WHERE id = $1`,
		question.ID, question.Text, question.Type, question.Category,
		question.DisplayOrder, question.Status)
	if err != nil {
		r.log.WithFields(logrus.Fields{"question_id": question.ID, "error": err}).
			Error("Failed to update question")
		return fmt.Errorf("updating question: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("question %s: %w", question.ID, domain.ErrNotFound)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM question_options WHERE question_id = $1`, question.ID); err != nil {
		return fmt.Errorf("clearing options: %w", err)
	}
	if err := insertOptions(ctx, tx, question.ID, question.Options); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing question update: %w", err)
	}

	r.log.WithField("question_id", question.ID).Info("Question updated")
	return nil
}

// Archive soft-deletes a question so historical answer sets stay
// interpretable
func (r *QuestionRepository) Archive(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		`UPDATE questions SET status = 'archived', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{"question_id": id, "error": err}).
			Error("Failed to archive question")
		return fmt.Errorf("archiving question: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("question %s: %w", id, domain.ErrNotFound)
	}

	r.log.WithField("question_id", id).Info("Question archived")
	return nil
}

// ReorderOptions rewrites option positions to match the given value order
func (r *QuestionRepository) ReorderOptions(ctx context.Context, questionID uuid.UUID, orderedValues []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for position, value := range orderedValues {
		result, err := tx.Exec(ctx, `
			UPDATE question_options SET position = $3
			WHERE question_id = $1 AND value = $2`,
			questionID, value, position)
		if err != nil {
			return fmt.Errorf("reordering option %q: %w", value, err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("option %q on question %s: %w", value, questionID, domain.ErrNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing option reorder: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"question_id": questionID,
		"options":     len(orderedValues),
	}).Info("Options reordered")

	return nil
}

// insertOptions inserts the option list for a question, preserving the given
// order as position
func insertOptions(ctx context.Context, tx pgx.Tx, questionID string, options []domain.Option) error {
	for i, opt := range options {
		position := opt.Position
		if position == 0 {
			position = i
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO question_options (question_id, value, label, score, position)
			VALUES ($1, $2, $3, $4, $5)`,
			questionID, opt.Value, opt.Label, opt.Score, position); err != nil {
			return fmt.Errorf("inserting option %q: %w", opt.Value, err)
		}
	}
	return nil
}
