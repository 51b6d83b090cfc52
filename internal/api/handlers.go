package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/glaucoma-screening-server/internal/domain"
)

// Screener runs and retrieves screenings
type Screener interface {
	Evaluate(ctx context.Context, patientRef string, answers domain.AnswerSet) (*domain.ScreeningRecord, error)
	GetScreening(ctx context.Context, id string) (*domain.ScreeningRecord, error)
	ListScreenings(ctx context.Context, patientRef string, limit int) ([]*domain.ScreeningRecord, error)
}

// QuestionAdmin covers the question-bank mutations behind the admin routes
type QuestionAdmin interface {
	Create(ctx context.Context, question *domain.Question) error
	Update(ctx context.Context, question *domain.Question) error
	Archive(ctx context.Context, id uuid.UUID) error
	ReorderOptions(ctx context.Context, questionID uuid.UUID, orderedValues []string) error
}

// AdviceAdmin covers the advice-table mutations behind the admin routes
type AdviceAdmin interface {
	Create(ctx context.Context, entry *domain.AdviceEntry) error
	Update(ctx context.Context, entry *domain.AdviceEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handlers bundles the HTTP handlers and their collaborators
type Handlers struct {
	logger      *logrus.Logger
	screenings  Screener
	loader      domain.CatalogLoader
	questions   QuestionAdmin
	advice      AdviceAdmin
	invalidator domain.Invalidator
	timeout     domain.ServerConfig
}

// NewHandlers creates the handler set
func NewHandlers(
	logger *logrus.Logger,
	screenings Screener,
	loader domain.CatalogLoader,
	questions QuestionAdmin,
	advice AdviceAdmin,
	invalidator domain.Invalidator,
	serverConfig domain.ServerConfig,
) *Handlers {
	return &Handlers{
		logger:      logger,
		screenings:  screenings,
		loader:      loader,
		questions:   questions,
		advice:      advice,
		invalidator: invalidator,
		timeout:     serverConfig,
	}
}

// screeningRequest is the submit-answers payload
type screeningRequest struct {
	PatientRef string            `json:"patient_ref"`
	Answers    map[string]string `json:"answers" binding:"required"`
}

// GetQuestionnaire returns the active question catalog for the patient form
func (h *Handlers) GetQuestionnaire(c *gin.Context) {
	catalog, err := h.loader.LoadCatalog(c.Request.Context())
	if err != nil {
		h.respondUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": catalog})
}

// CreateScreening scores a submitted answer set and archives the result.
// Catalog or advice fetch failures surface as 503 with a retriable flag; a
// result is never fabricated from a partial catalog.
func (h *Handlers) CreateScreening(c *gin.Context) {
	var req screeningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if h.timeout.ScoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout.ScoreTimeout)
		defer cancel()
	}

	record, err := h.screenings.Evaluate(ctx, req.PatientRef, domain.AnswerSet(req.Answers))
	if err != nil {
		h.respondUnavailable(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// GetScreening returns one archived screening result
func (h *Handlers) GetScreening(c *gin.Context) {
	record, err := h.screenings.GetScreening(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "screening not found"})
			return
		}
		h.respondInternal(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListPatientScreenings lists a patient's archived screenings, newest first
func (h *Handlers) ListPatientScreenings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := h.screenings.ListScreenings(c.Request.Context(), c.Param("ref"), limit)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.respondInternal(c, err)
		return
	}
	if records == nil {
		records = []*domain.ScreeningRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"screenings": records})
}

// questionRequest is the admin create/update payload for questions
type questionRequest struct {
	Text         string          `json:"text" binding:"required"`
	Type         string          `json:"type" binding:"required"`
	Category     string          `json:"category"`
	DisplayOrder int             `json:"display_order"`
	Status       string          `json:"status"`
	Options      []domain.Option `json:"options"`
}

func (r *questionRequest) toQuestion(id string) (*domain.Question, error) {
	qtype := domain.QuestionType(r.Type)
	if !qtype.IsValid() {
		return nil, errors.New("type must be one of text, number, select")
	}
	status := domain.QuestionStatus(r.Status)
	if status == "" {
		status = domain.QuestionStatusActive
	}
	category := r.Category
	if category == "" {
		category = "general"
	}
	for _, opt := range r.Options {
		if opt.Score < 0 {
			return nil, errors.New("option scores must be non-negative")
		}
	}
	return &domain.Question{
		ID:           id,
		Text:         r.Text,
		Type:         qtype,
		Category:     category,
		DisplayOrder: r.DisplayOrder,
		Status:       status,
		Options:      r.Options,
	}, nil
}

// CreateQuestion adds a question to the bank and invalidates the catalog
// cache
func (h *Handlers) CreateQuestion(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	question, err := req.toQuestion(uuid.NewString())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.questions.Create(c.Request.Context(), question); err != nil {
		h.respondInternal(c, err)
		return
	}
	h.invalidateCatalog(c)

	c.JSON(http.StatusCreated, question)
}

// UpdateQuestion rewrites a question and invalidates the catalog cache
func (h *Handlers) UpdateQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}

	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	question, err := req.toQuestion(id.String())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.questions.Update(c.Request.Context(), question); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
			return
		}
		h.respondInternal(c, err)
		return
	}
	h.invalidateCatalog(c)

	c.JSON(http.StatusOK, question)
}

// ArchiveQuestion soft-deletes a question and invalidates the catalog cache
func (h *Handlers) ArchiveQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}

	if err := h.questions.Archive(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
			return
		}
		h.respondInternal(c, err)
		return
	}
	h.invalidateCatalog(c)

	c.Status(http.StatusNoContent)
}

// reorderRequest carries the new option value order
type reorderRequest struct {
	Values []string `json:"values" binding:"required,min=1"`
}

// ReorderOptions rewrites option positions and invalidates the catalog cache
func (h *Handlers) ReorderOptions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.questions.ReorderOptions(c.Request.Context(), id, req.Values); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "question or option not found"})
			return
		}
		h.respondInternal(c, err)
		return
	}
	h.invalidateCatalog(c)

	c.Status(http.StatusNoContent)
}

// adviceRequest is the admin create/update payload for advice entries
type adviceRequest struct {
	MinScore  int    `json:"min_score"`
	MaxScore  int    `json:"max_score"`
	RiskLevel string `json:"risk_level" binding:"required"`
	Advice    string `json:"advice" binding:"required"`
}

// ListAdvice returns the full advice table
func (h *Handlers) ListAdvice(c *gin.Context) {
	entries, err := h.loader.LoadAdvice(c.Request.Context())
	if err != nil {
		h.respondUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// CreateAdvice adds an advice entry and invalidates the advice cache
func (h *Handlers) CreateAdvice(c *gin.Context) {
	var req adviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.MaxScore < req.MinScore {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_score must be >= min_score"})
		return
	}

	entry := &domain.AdviceEntry{
		ID:        uuid.NewString(),
		MinScore:  req.MinScore,
		MaxScore:  req.MaxScore,
		RiskLevel: req.RiskLevel,
		Advice:    req.Advice,
	}

	if err := h.advice.Create(c.Request.Context(), entry); err != nil {
		h.respondInternal(c, err)
		return
	}
	h.invalidateAdvice(c)

	c.JSON(http.StatusCreated, entry)
}

// UpdateAdvice rewrites an advice entry and invalidates the advice cache
func (h *Handlers) UpdateAdvice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid advice id"})
		return
	}

	var req adviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.MaxScore < req.MinScore {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_score must be >= min_score"})
		return
	}

	entry := &domain.AdviceEntry{
		ID:        id.String(),
		MinScore:  req.MinScore,
		MaxScore:  req.MaxScore,
		RiskLevel: req.RiskLevel,
		Advice:    req.Advice,
	}

	if err := h.advice.Update(c.Request.Context(), entry); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "advice entry not found"})
			return
		}
		h.respondInternal(c, err)
		return
	}
	h.invalidateAdvice(c)

	c.JSON(http.StatusOK, entry)
}

// DeleteAdvice removes an advice entry and invalidates the advice cache
func (h *Handlers) DeleteAdvice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid advice id"})
		return
	}

	if err := h.advice.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "advice entry not found"})
			return
		}
		h.respondInternal(c, err)
		return
	}
	h.invalidateAdvice(c)

	c.Status(http.StatusNoContent)
}

// invalidateCatalog drops the catalog cache after a question-bank mutation
func (h *Handlers) invalidateCatalog(c *gin.Context) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.InvalidateCatalog(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Catalog cache invalidation failed")
	}
}

// invalidateAdvice drops the advice cache after an advice-table mutation
func (h *Handlers) invalidateAdvice(c *gin.Context) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.InvalidateAdvice(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Advice cache invalidation failed")
	}
}

// respondUnavailable maps upstream fetch failures to 503 with a retriable
// flag so the UI can show a retry prompt instead of a fake result
func (h *Handlers) respondUnavailable(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrCatalogUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "question catalog is temporarily unavailable",
			"retriable": true,
		})
	case errors.Is(err, domain.ErrAdviceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "advice table is temporarily unavailable",
			"retriable": true,
		})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":     "screening timed out",
			"retriable": true,
		})
	default:
		h.respondInternal(c, err)
	}
}

// respondInternal logs and returns a generic 500
func (h *Handlers) respondInternal(c *gin.Context, err error) {
	h.logger.WithError(err).WithField("request_id", c.GetString("request_id")).
		Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
