package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestionType_IsValid(t *testing.T) {
	tests := []struct {
		qtype QuestionType
		want  bool
	}{
		{QuestionTypeText, true},
		{QuestionTypeNumber, true},
		{QuestionTypeSelect, true},
		{QuestionType("dropdown"), false},
		{QuestionType(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.qtype), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.qtype.IsValid())
		})
	}
}

func TestRiskLevel_Equals(t *testing.T) {
	assert.True(t, RiskLevelHigh.Equals("high"))
	assert.True(t, RiskLevelHigh.Equals("HIGH"))
	assert.True(t, RiskLevelModerate.Equals("Moderate"))
	assert.False(t, RiskLevelLow.Equals("high"))
	assert.False(t, RiskLevelLow.Equals(""))
}

func TestAdviceEntry_Contains(t *testing.T) {
	entry := AdviceEntry{MinScore: 3, MaxScore: 5}

	assert.False(t, entry.Contains(2))
	assert.True(t, entry.Contains(3))
	assert.True(t, entry.Contains(4))
	assert.True(t, entry.Contains(5))
	assert.False(t, entry.Contains(6))
}

func TestRiskThresholds_Classify(t *testing.T) {
	thresholds := DefaultRiskThresholds()

	tests := []struct {
		score int
		want  RiskLevel
	}{
		{0, RiskLevelLow},
		{2, RiskLevelLow},
		{3, RiskLevelModerate},
		{5, RiskLevelModerate},
		{6, RiskLevelHigh},
		{42, RiskLevelHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, thresholds.Classify(tt.score), "score %d", tt.score)
	}
}
