package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glaucoma-screening-server/internal/domain"
)

type fakeScreener struct {
	record  *domain.ScreeningRecord
	records []*domain.ScreeningRecord
	err     error
}

func (f *fakeScreener) Evaluate(ctx context.Context, patientRef string, answers domain.AnswerSet) (*domain.ScreeningRecord, error) {
	return f.record, f.err
}

func (f *fakeScreener) GetScreening(ctx context.Context, id string) (*domain.ScreeningRecord, error) {
	return f.record, f.err
}

func (f *fakeScreener) ListScreenings(ctx context.Context, patientRef string, limit int) ([]*domain.ScreeningRecord, error) {
	return f.records, f.err
}

type fakeLoader struct {
	catalog    []domain.Question
	catalogErr error
	advice     []domain.AdviceEntry
	adviceErr  error
}

func (f *fakeLoader) LoadCatalog(ctx context.Context) ([]domain.Question, error) {
	return f.catalog, f.catalogErr
}

func (f *fakeLoader) LoadAdvice(ctx context.Context) ([]domain.AdviceEntry, error) {
	return f.advice, f.adviceErr
}

type fakeQuestionAdmin struct {
	created   *domain.Question
	updated   *domain.Question
	archived  uuid.UUID
	reordered []string
	err       error
}

func (f *fakeQuestionAdmin) Create(ctx context.Context, question *domain.Question) error {
	f.created = question
	return f.err
}

func (f *fakeQuestionAdmin) Update(ctx context.Context, question *domain.Question) error {
	f.updated = question
	return f.err
}

func (f *fakeQuestionAdmin) Archive(ctx context.Context, id uuid.UUID) error {
	f.archived = id
	return f.err
}

func (f *fakeQuestionAdmin) ReorderOptions(ctx context.Context, questionID uuid.UUID, orderedValues []string) error {
	f.reordered = orderedValues
	return f.err
}

type fakeAdviceAdmin struct {
	created *domain.AdviceEntry
	updated *domain.AdviceEntry
	deleted uuid.UUID
	err     error
}

func (f *fakeAdviceAdmin) Create(ctx context.Context, entry *domain.AdviceEntry) error {
	f.created = entry
	return f.err
}

func (f *fakeAdviceAdmin) Update(ctx context.Context, entry *domain.AdviceEntry) error {
	f.updated = entry
	return f.err
}

func (f *fakeAdviceAdmin) Delete(ctx context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}

type fakeInvalidator struct {
	catalogCalls int
	adviceCalls  int
}

func (f *fakeInvalidator) InvalidateCatalog(ctx context.Context) error {
	f.catalogCalls++
	return nil
}

func (f *fakeInvalidator) InvalidateAdvice(ctx context.Context) error {
	f.adviceCalls++
	return nil
}

type testFixture struct {
	router      *gin.Engine
	screener    *fakeScreener
	loader      *fakeLoader
	questions   *fakeQuestionAdmin
	advice      *fakeAdviceAdmin
	invalidator *fakeInvalidator
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	f := &testFixture{
		screener:    &fakeScreener{},
		loader:      &fakeLoader{},
		questions:   &fakeQuestionAdmin{},
		advice:      &fakeAdviceAdmin{},
		invalidator: &fakeInvalidator{},
	}

	handlers := NewHandlers(logger, f.screener, f.loader, f.questions, f.advice, f.invalidator, domain.ServerConfig{})

	config := &domain.Config{Server: domain.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
	}}
	server := NewServer(config, logger, handlers, nil)
	f.router = server.Router()

	return f
}

func (f *testFixture) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestGetQuestionnaire(t *testing.T) {
	f := newTestFixture(t)
	f.loader.catalog = []domain.Question{
		{ID: "q1", Text: "Family history?", Type: domain.QuestionTypeSelect},
	}

	w := f.request(t, http.MethodGet, "/api/v1/questionnaire", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Questions []domain.Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, "Family history?", resp.Questions[0].Text)
}

func TestGetQuestionnaire_CatalogUnavailable(t *testing.T) {
	f := newTestFixture(t)
	f.loader.catalogErr = domain.NewCatalogError("fetch", errors.New("down"))

	w := f.request(t, http.MethodGet, "/api/v1/questionnaire", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"retriable":true`)
}

func TestCreateScreening(t *testing.T) {
	f := newTestFixture(t)
	f.screener.record = &domain.ScreeningRecord{
		ID:         uuid.NewString(),
		TotalScore: 6,
		RiskLevel:  domain.RiskLevelHigh,
		Advice:     "See a specialist.",
	}

	w := f.request(t, http.MethodPost, "/api/v1/screenings", gin.H{
		"patient_ref": "patient-1",
		"answers":     gin.H{"q1": "yes"},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var record domain.ScreeningRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, 6, record.TotalScore)
	assert.Equal(t, domain.RiskLevelHigh, record.RiskLevel)
}

func TestCreateScreening_MissingAnswers(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/screenings", gin.H{"patient_ref": "patient-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateScreening_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"catalog unavailable", domain.NewCatalogError("fetch", errors.New("down")), http.StatusServiceUnavailable},
		{"advice unavailable", domain.NewAdviceError("fetch", errors.New("down")), http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFixture(t)
			f.screener.err = tt.err

			w := f.request(t, http.MethodPost, "/api/v1/screenings", gin.H{
				"answers": gin.H{"q1": "yes"},
			})

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestGetScreening_NotFound(t *testing.T) {
	f := newTestFixture(t)
	f.screener.err = domain.ErrNotFound

	w := f.request(t, http.MethodGet, "/api/v1/screenings/abc", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPatientScreenings_EmptyIsOK(t *testing.T) {
	f := newTestFixture(t)
	f.screener.err = domain.ErrNotFound

	w := f.request(t, http.MethodGet, "/api/v1/patients/patient-1/screenings", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"screenings":[]`)
}

func TestCreateQuestion_InvalidatesCatalog(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/admin/questions", gin.H{
		"text": "History of ocular steroid use?",
		"type": "select",
		"options": []gin.H{
			{"value": "yes", "label": "Yes", "score": 2},
			{"value": "no", "label": "No", "score": 0},
		},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, f.questions.created)
	assert.Equal(t, domain.QuestionStatusActive, f.questions.created.Status)
	_, err := uuid.Parse(f.questions.created.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.invalidator.catalogCalls, "question mutations must drop the catalog cache")
}

func TestCreateQuestion_RejectsBadType(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/admin/questions", gin.H{
		"text": "Bad", "type": "dropdown",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, f.questions.created)
	assert.Zero(t, f.invalidator.catalogCalls)
}

func TestCreateQuestion_RejectsNegativeScore(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/admin/questions", gin.H{
		"text": "Bad", "type": "select",
		"options": []gin.H{{"value": "yes", "score": -1}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateQuestion_NotFound(t *testing.T) {
	f := newTestFixture(t)
	f.questions.err = domain.ErrNotFound

	w := f.request(t, http.MethodPut, "/api/v1/admin/questions/"+uuid.NewString(), gin.H{
		"text": "Family history?", "type": "select",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveQuestion(t *testing.T) {
	f := newTestFixture(t)
	id := uuid.New()

	w := f.request(t, http.MethodDelete, "/api/v1/admin/questions/"+id.String(), nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, id, f.questions.archived)
	assert.Equal(t, 1, f.invalidator.catalogCalls)
}

func TestArchiveQuestion_InvalidID(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodDelete, "/api/v1/admin/questions/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReorderOptions(t *testing.T) {
	f := newTestFixture(t)
	id := uuid.New()

	w := f.request(t, http.MethodPut, "/api/v1/admin/questions/"+id.String()+"/options/order", gin.H{
		"values": []string{"no", "yes"},
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"no", "yes"}, f.questions.reordered)
	assert.Equal(t, 1, f.invalidator.catalogCalls)
}

func TestReorderOptions_EmptyValues(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodPut, "/api/v1/admin/questions/"+uuid.NewString()+"/options/order", gin.H{
		"values": []string{},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAdvice(t *testing.T) {
	f := newTestFixture(t)
	f.loader.advice = []domain.AdviceEntry{{RiskLevel: "Low", Advice: "Routine checkups."}}

	w := f.request(t, http.MethodGet, "/api/v1/admin/advice", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Routine checkups.")
}

func TestCreateAdvice_InvalidatesAdvice(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/admin/advice", gin.H{
		"min_score": 0, "max_score": 2, "risk_level": "Low", "advice": "Routine checkups.",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, f.advice.created)
	assert.Equal(t, 1, f.invalidator.adviceCalls, "advice mutations must drop the advice cache")
	assert.Zero(t, f.invalidator.catalogCalls)
}

func TestCreateAdvice_RejectsInvertedRange(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/admin/advice", gin.H{
		"min_score": 5, "max_score": 2, "risk_level": "Low", "advice": "x",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, f.advice.created)
}

func TestDeleteAdvice(t *testing.T) {
	f := newTestFixture(t)
	id := uuid.New()

	w := f.request(t, http.MethodDelete, "/api/v1/admin/advice/"+id.String(), nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, id, f.advice.deleted)
	assert.Equal(t, 1, f.invalidator.adviceCalls)
}

func TestHealthEndpoint(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRequestIDHeader(t *testing.T) {
	f := newTestFixture(t)

	w := f.request(t, http.MethodGet, "/health", nil)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
