package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/glaucoma-screening-server/internal/domain"
)

// ScoringEngine converts an answer set into a risk result given a catalog and
// an advice table. Scoring is deterministic and pure: identical inputs always
// yield identical output, and nothing is cached between calls.
type ScoringEngine struct {
	logger     *logrus.Logger
	thresholds domain.RiskThresholds
}

// NewScoringEngine creates a new scoring engine
func NewScoringEngine(logger *logrus.Logger, thresholds domain.RiskThresholds) *ScoringEngine {
	return &ScoringEngine{
		logger:     logger,
		thresholds: thresholds,
	}
}

// builtinAdvice is the last-resort advice table, keyed by tier, so the caller
// never receives a blank recommendation even when the admin-edited advice
// table matches nothing.
var builtinAdvice = map[domain.RiskLevel]string{
	domain.RiskLevelLow:      "Your responses indicate a low glaucoma risk. Continue routine eye examinations every one to two years.",
	domain.RiskLevelModerate: "Your responses indicate a moderate glaucoma risk. Schedule a comprehensive eye examination within the next few months.",
	domain.RiskLevelHigh:     "Your responses indicate a high glaucoma risk. Please consult an ophthalmologist as soon as possible for a full assessment.",
	domain.RiskLevelUnknown:  "Your risk could not be assessed. Please retry, or consult an eye care professional directly.",
}

// ScoreAnswers scores every answered question against its option list, sums
// the contributions, classifies the risk tier and selects advice.
//
// Per-question rules:
//   - absent, empty or whitespace-only answers are skipped entirely
//   - only select questions with options can contribute; text and number
//     answers are informational
//   - option values match answers case-insensitively after trimming
//   - an answer with no matching option contributes nothing and is not an
//     error
//   - only matches with score > 0 appear in the contributing factors
//
// Factor order follows catalog order so results are reproducible.
func (e *ScoringEngine) ScoreAnswers(answers domain.AnswerSet, catalog []domain.Question, advice []domain.AdviceEntry) *domain.RiskResult {
	totalScore := 0
	factors := make([]domain.ContributingFactor, 0)

	for _, question := range catalog {
		raw, ok := answers[question.ID]
		if !ok {
			continue
		}
		answer := strings.TrimSpace(raw)
		if answer == "" {
			continue
		}

		if question.Type != domain.QuestionTypeSelect || len(question.Options) == 0 {
			continue
		}

		option, matched := matchOption(question.Options, answer)
		if !matched {
			e.logger.WithFields(logrus.Fields{
				"question_id": question.ID,
				"answer":      answer,
			}).Debug("Answer matched no option, contributing zero")
			continue
		}

		if option.Score > 0 {
			totalScore += option.Score
			factors = append(factors, domain.ContributingFactor{
				Question: question.Text,
				Answer:   raw,
				Score:    option.Score,
			})
		}
	}

	level := e.thresholds.Classify(totalScore)
	matchedLevel, adviceText := e.matchAdvice(totalScore, level, advice)

	result := &domain.RiskResult{
		TotalScore:          totalScore,
		ContributingFactors: factors,
		RiskLevel:           matchedLevel,
		Advice:              adviceText,
	}

	e.logger.WithFields(logrus.Fields{
		"total_score": result.TotalScore,
		"risk_level":  result.RiskLevel,
		"factors":     len(result.ContributingFactors),
	}).Info("Answer set scored")

	return result
}

// matchAdvice selects advice via a fixed fallback chain, stopping at the
// first strategy that matches:
//  1. an entry whose inclusive score range contains the total
//  2. an entry whose risk level equals the computed tier, case-insensitively
//  3. the built-in advice table
//
// The advice table is admin-edited with no range constraint enforced, so
// gaps and overlaps are tolerated rather than treated as failures.
func (e *ScoringEngine) matchAdvice(totalScore int, computed domain.RiskLevel, advice []domain.AdviceEntry) (domain.RiskLevel, string) {
	for _, entry := range advice {
		if entry.Contains(totalScore) {
			return resolveLevel(entry.RiskLevel, computed), entry.Advice
		}
	}

	for _, entry := range advice {
		if computed.Equals(entry.RiskLevel) {
			return resolveLevel(entry.RiskLevel, computed), entry.Advice
		}
	}

	e.logger.WithFields(logrus.Fields{
		"total_score": totalScore,
		"risk_level":  computed,
	}).Warn("No advice entry matched, using built-in fallback")

	return computed, builtinAdvice[computed]
}

// DegradedResult returns the zero-score placeholder used when scoring cannot
// proceed at all. Callers must present it with a retry affordance, never as a
// complete assessment.
func (e *ScoringEngine) DegradedResult() *domain.RiskResult {
	return &domain.RiskResult{
		TotalScore:          0,
		ContributingFactors: []domain.ContributingFactor{},
		RiskLevel:           domain.RiskLevelUnknown,
		Advice:              builtinAdvice[domain.RiskLevelUnknown],
	}
}

// Thresholds returns the configured tier boundaries
func (e *ScoringEngine) Thresholds() domain.RiskThresholds {
	return e.thresholds
}

// matchOption finds the option whose value case-insensitively equals the
// trimmed answer. First match wins; options are already in admin-defined
// order.
func matchOption(options []domain.Option, answer string) (domain.Option, bool) {
	for _, option := range options {
		if strings.EqualFold(strings.TrimSpace(option.Value), answer) {
			return option, true
		}
	}
	return domain.Option{}, false
}

// resolveLevel prefers the matched advice row's level label when it carries
// one, falling back to the computed tier otherwise.
func resolveLevel(fromEntry string, computed domain.RiskLevel) domain.RiskLevel {
	trimmed := strings.TrimSpace(fromEntry)
	if trimmed == "" {
		return computed
	}
	return domain.RiskLevel(trimmed)
}
