package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/glaucoma-screening-server/internal/domain"
)

// ScreeningService runs the complete screening workflow: load the catalog and
// advice table, score the answer set, and archive the result.
type ScreeningService struct {
	logger  *logrus.Logger
	loader  domain.CatalogLoader
	engine  *ScoringEngine
	results domain.ResultStore
}

// NewScreeningService creates a new screening service. The result store is
// optional; a nil store disables archiving.
func NewScreeningService(logger *logrus.Logger, loader domain.CatalogLoader, engine *ScoringEngine, results domain.ResultStore) *ScreeningService {
	return &ScreeningService{
		logger:  logger,
		loader:  loader,
		engine:  engine,
		results: results,
	}
}

// catalogFetch carries one side of the concurrent boundary loads
type catalogFetch struct {
	questions []domain.Question
	err       error
}

type adviceFetch struct {
	entries []domain.AdviceEntry
	err     error
}

// Evaluate fetches the catalog and advice table concurrently, waits for both,
// then scores the answer set. The two fetches are independent reads; ctx
// cancellation propagates instead of scoring against partial data.
//
// Fetch failures return typed errors (CatalogUnavailable/AdviceUnavailable)
// so the caller can offer a retry rather than present an incomplete result.
func (s *ScreeningService) Evaluate(ctx context.Context, patientRef string, answers domain.AnswerSet) (*domain.ScreeningRecord, error) {
	startTime := time.Now()

	s.logger.WithFields(logrus.Fields{
		"patient_ref": patientRef,
		"answers":     len(answers),
	}).Info("Starting risk screening")

	catalogCh := make(chan catalogFetch, 1)
	adviceCh := make(chan adviceFetch, 1)

	go func() {
		questions, err := s.loader.LoadCatalog(ctx)
		catalogCh <- catalogFetch{questions: questions, err: err}
	}()
	go func() {
		entries, err := s.loader.LoadAdvice(ctx)
		adviceCh <- adviceFetch{entries: entries, err: err}
	}()

	var (
		catalog catalogFetch
		advice  adviceFetch
	)
	for i := 0; i < 2; i++ {
		select {
		case catalog = <-catalogCh:
		case advice = <-adviceCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if catalog.err != nil {
		return nil, catalog.err
	}
	if advice.err != nil {
		return nil, advice.err
	}

	result := s.engine.ScoreAnswers(answers, catalog.questions, advice.entries)

	record := &domain.ScreeningRecord{
		ID:                  uuid.NewString(),
		PatientRef:          patientRef,
		TotalScore:          result.TotalScore,
		RiskLevel:           result.RiskLevel,
		Advice:              result.Advice,
		ContributingFactors: result.ContributingFactors,
		CreatedAt:           time.Now().UTC(),
	}

	if s.results != nil {
		if err := s.results.Save(ctx, record); err != nil {
			// The patient still gets their result; archiving is best effort.
			s.logger.WithError(err).WithField("screening_id", record.ID).
				Error("Failed to archive screening result")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"screening_id":    record.ID,
		"patient_ref":     patientRef,
		"total_score":     record.TotalScore,
		"risk_level":      record.RiskLevel,
		"factors":         len(record.ContributingFactors),
		"processing_time": time.Since(startTime),
	}).Info("Risk screening completed")

	return record, nil
}

// GetScreening retrieves an archived screening result
func (s *ScreeningService) GetScreening(ctx context.Context, id string) (*domain.ScreeningRecord, error) {
	if s.results == nil {
		return nil, domain.ErrNotFound
	}
	return s.results.Get(ctx, id)
}

// ListScreenings lists archived screenings for one patient, newest first
func (s *ScreeningService) ListScreenings(ctx context.Context, patientRef string, limit int) ([]*domain.ScreeningRecord, error) {
	if s.results == nil {
		return nil, domain.ErrNotFound
	}
	return s.results.ListByPatient(ctx, patientRef, limit)
}
