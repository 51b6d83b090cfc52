package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glaucoma-screening-server/internal/domain"
)

type countingLoader struct {
	catalogCalls int
	adviceCalls  int
	catalog      []domain.Question
	advice       []domain.AdviceEntry
	catalogErr   error
	adviceErr    error
}

func (c *countingLoader) LoadCatalog(ctx context.Context) ([]domain.Question, error) {
	c.catalogCalls++
	return c.catalog, c.catalogErr
}

func (c *countingLoader) LoadAdvice(ctx context.Context) ([]domain.AdviceEntry, error) {
	c.adviceCalls++
	return c.advice, c.adviceErr
}

func newMemoryOnlyLoader(inner domain.CatalogLoader) *CachedLoader {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewCachedLoader(inner, nil, domain.CacheConfig{
		MemorySize: 16,
		MemoryTTL:  time.Minute,
	}, logger)
}

func TestLoadCatalog_ReadThrough(t *testing.T) {
	inner := &countingLoader{
		catalog: []domain.Question{{ID: "q1", Text: "Family history?", Type: domain.QuestionTypeSelect}},
	}
	cached := newMemoryOnlyLoader(inner)

	first, err := cached.LoadCatalog(context.Background())
	require.NoError(t, err)
	second, err := cached.LoadCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.catalogCalls, "second read must hit the memory tier")
}

func TestLoadAdvice_ReadThrough(t *testing.T) {
	inner := &countingLoader{
		advice: []domain.AdviceEntry{{MinScore: 0, MaxScore: 2, RiskLevel: "Low", Advice: "ok"}},
	}
	cached := newMemoryOnlyLoader(inner)

	_, err := cached.LoadAdvice(context.Background())
	require.NoError(t, err)
	_, err = cached.LoadAdvice(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, inner.adviceCalls)
}

func TestInvalidateCatalog_ForcesRefetch(t *testing.T) {
	inner := &countingLoader{catalog: []domain.Question{{ID: "q1"}}}
	cached := newMemoryOnlyLoader(inner)

	_, err := cached.LoadCatalog(context.Background())
	require.NoError(t, err)

	require.NoError(t, cached.InvalidateCatalog(context.Background()))

	_, err = cached.LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.catalogCalls, "invalidation must evict the memory tier")
}

func TestInvalidateAdvice_ForcesRefetch(t *testing.T) {
	inner := &countingLoader{advice: []domain.AdviceEntry{{RiskLevel: "Low"}}}
	cached := newMemoryOnlyLoader(inner)

	_, err := cached.LoadAdvice(context.Background())
	require.NoError(t, err)

	require.NoError(t, cached.InvalidateAdvice(context.Background()))

	_, err = cached.LoadAdvice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.adviceCalls)
}

func TestInvalidation_IsScopedPerTable(t *testing.T) {
	inner := &countingLoader{
		catalog: []domain.Question{{ID: "q1"}},
		advice:  []domain.AdviceEntry{{RiskLevel: "Low"}},
	}
	cached := newMemoryOnlyLoader(inner)

	_, _ = cached.LoadCatalog(context.Background())
	_, _ = cached.LoadAdvice(context.Background())

	require.NoError(t, cached.InvalidateAdvice(context.Background()))

	_, _ = cached.LoadCatalog(context.Background())
	_, _ = cached.LoadAdvice(context.Background())

	assert.Equal(t, 1, inner.catalogCalls, "advice invalidation must not evict the catalog")
	assert.Equal(t, 2, inner.adviceCalls)
}

func TestLoadCatalog_SourceFailureIsNotCached(t *testing.T) {
	inner := &countingLoader{catalogErr: domain.NewCatalogError("fetch", errors.New("down"))}
	cached := newMemoryOnlyLoader(inner)

	_, err := cached.LoadCatalog(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	inner.catalogErr = nil
	inner.catalog = []domain.Question{{ID: "q1"}}

	catalog, err := cached.LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog, 1)
	assert.Equal(t, 2, inner.catalogCalls, "errors must never be memoized")
}
