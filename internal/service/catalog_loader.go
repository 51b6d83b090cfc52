package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/glaucoma-screening-server/internal/domain"
)

// CatalogService loads the question catalog and advice table from their
// source, filters structurally invalid rows and presents them in a stable
// order. It implements domain.CatalogLoader.
type CatalogService struct {
	logger   *logrus.Logger
	catalogs domain.CatalogSource
	advice   domain.AdviceSource
}

// NewCatalogService creates a new catalog service
func NewCatalogService(logger *logrus.Logger, catalogs domain.CatalogSource, advice domain.AdviceSource) *CatalogService {
	return &CatalogService{
		logger:   logger,
		catalogs: catalogs,
		advice:   advice,
	}
}

// LoadCatalog fetches all questions with their options, drops rows whose ID
// is not a canonical UUID and returns the remainder ordered by category,
// display order and insertion.
//
// A fetch failure propagates as a CatalogUnavailable error. It is never
// converted into an empty catalog: scoring everything as zero is a worse
// failure than an explicit one.
func (s *CatalogService) LoadCatalog(ctx context.Context) ([]domain.Question, error) {
	questions, err := s.catalogs.FetchQuestions(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch question catalog")
		return nil, domain.NewCatalogError("fetch", err)
	}

	valid := make([]domain.Question, 0, len(questions))
	for _, question := range questions {
		if err := validateQuestion(question); err != nil {
			// Malformed legacy IDs are known to leak into the catalog;
			// exclude the row and keep going.
			s.logger.WithFields(logrus.Fields{
				"question_id": question.ID,
				"error":       err,
			}).Warn("Excluding malformed question from catalog")
			continue
		}
		valid = append(valid, question)
	}

	sortCatalog(valid)

	s.logger.WithFields(logrus.Fields{
		"fetched":  len(questions),
		"retained": len(valid),
	}).Debug("Question catalog loaded")

	return valid, nil
}

// LoadAdvice fetches the advice table rows. A fetch failure propagates as an
// AdviceUnavailable error.
func (s *CatalogService) LoadAdvice(ctx context.Context) ([]domain.AdviceEntry, error) {
	entries, err := s.advice.FetchAdviceEntries(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch advice table")
		return nil, domain.NewAdviceError("fetch", err)
	}
	return entries, nil
}

// validateQuestion rejects rows that would corrupt scoring downstream
func validateQuestion(q domain.Question) error {
	if _, err := uuid.Parse(q.ID); err != nil {
		return &domain.MalformedQuestionError{QuestionID: q.ID, Reason: "non-canonical id"}
	}
	if !q.Type.IsValid() {
		return &domain.MalformedQuestionError{QuestionID: q.ID, Reason: "unknown question type"}
	}
	return nil
}

// sortCatalog orders questions by (category, display_order); sort.SliceStable
// keeps insertion order as the tiebreak. Options sort by their position.
func sortCatalog(questions []domain.Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].Category != questions[j].Category {
			return questions[i].Category < questions[j].Category
		}
		return questions[i].DisplayOrder < questions[j].DisplayOrder
	})

	for i := range questions {
		options := questions[i].Options
		sort.SliceStable(options, func(a, b int) bool {
			return options[a].Position < options[b].Position
		})
	}
}
