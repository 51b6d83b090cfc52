package domain

import (
	"strings"
	"time"
)

// Core Enums and Types

// QuestionType represents the input control backing a questionnaire item.
// Only SELECT questions carry scored options; text and number answers are
// informational and never contribute to the risk score.
type QuestionType string

const (
	QuestionTypeText   QuestionType = "text"
	QuestionTypeNumber QuestionType = "number"
	QuestionTypeSelect QuestionType = "select"
)

// String returns the string representation of the question type
func (t QuestionType) String() string {
	return string(t)
}

// IsValid reports whether the value is one of the known question types
func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionTypeText, QuestionTypeNumber, QuestionTypeSelect:
		return true
	}
	return false
}

// QuestionStatus represents the lifecycle state of a question. Questions are
// archived rather than deleted so historical answer sets remain interpretable.
type QuestionStatus string

const (
	QuestionStatusActive   QuestionStatus = "active"
	QuestionStatusArchived QuestionStatus = "archived"
)

// RiskLevel represents the three-tier risk classification
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "Low"
	RiskLevelModerate RiskLevel = "Moderate"
	RiskLevelHigh     RiskLevel = "High"
	// RiskLevelUnknown marks a degraded result produced when scoring could
	// not proceed at all.
	RiskLevelUnknown RiskLevel = "Unknown"
)

// String returns the string representation of the risk level
func (l RiskLevel) String() string {
	return string(l)
}

// Equals compares risk levels case-insensitively; advice rows are
// admin-edited free text and arrive in arbitrary casing.
func (l RiskLevel) Equals(other string) bool {
	return strings.EqualFold(string(l), other)
}

// Catalog Models

// Question represents one questionnaire item as configured by administrators
type Question struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	Type         QuestionType   `json:"type"`
	Category     string         `json:"category"`
	DisplayOrder int            `json:"display_order"`
	Status       QuestionStatus `json:"status"`
	Options      []Option       `json:"options,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty"`
}

// Option represents one selectable answer for a select-type question
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Score    int    `json:"score"`
	Position int    `json:"position"`
}

// AnswerSet maps question IDs to submitted answer values. Absent keys and
// empty strings both mean "not answered".
type AnswerSet map[string]string

// AdviceEntry represents one admin-editable row of the advice table.
// MinScore and MaxScore bound an inclusive range.
type AdviceEntry struct {
	ID        string    `json:"id"`
	MinScore  int       `json:"min_score"`
	MaxScore  int       `json:"max_score"`
	RiskLevel string    `json:"risk_level"`
	Advice    string    `json:"advice"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Contains reports whether the total score falls in the entry's range
func (a AdviceEntry) Contains(score int) bool {
	return score >= a.MinScore && score <= a.MaxScore
}

// Result Models

// ContributingFactor records one question whose answer added positively to
// the total score
type ContributingFactor struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Score    int    `json:"score"`
}

// RiskResult is the output of scoring an answer set against the catalog
// and advice table
type RiskResult struct {
	TotalScore          int                  `json:"total_score"`
	ContributingFactors []ContributingFactor `json:"contributing_factors"`
	RiskLevel           RiskLevel            `json:"risk_level"`
	Advice              string               `json:"advice"`
}

// ScreeningRecord represents a persisted screening result for clinician review
type ScreeningRecord struct {
	ID                  string               `json:"id"`
	PatientRef          string               `json:"patient_ref"`
	TotalScore          int                  `json:"total_score"`
	RiskLevel           RiskLevel            `json:"risk_level"`
	Advice              string               `json:"advice"`
	ContributingFactors []ContributingFactor `json:"contributing_factors"`
	CreatedAt           time.Time            `json:"created_at"`
}

// RiskThresholds holds the score boundaries for tier classification.
// These are configuration, not constants: the admin-editable advice table
// remains the preferred source of the displayed level via range matching.
type RiskThresholds struct {
	LowMax      int `json:"low_max" mapstructure:"low_max"`
	ModerateMax int `json:"moderate_max" mapstructure:"moderate_max"`
}

// DefaultRiskThresholds returns the canonical three-tier boundaries:
// <=2 Low, 3..5 Moderate, >=6 High.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{LowMax: 2, ModerateMax: 5}
}

// Classify maps a total score to its risk tier
func (t RiskThresholds) Classify(totalScore int) RiskLevel {
	switch {
	case totalScore <= t.LowMax:
		return RiskLevelLow
	case totalScore <= t.ModerateMax:
		return RiskLevelModerate
	default:
		return RiskLevelHigh
	}
}
