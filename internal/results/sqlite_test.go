package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glaucoma-screening-server/internal/domain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "screenings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(patientRef string) *domain.ScreeningRecord {
	return &domain.ScreeningRecord{
		ID:         uuid.NewString(),
		PatientRef: patientRef,
		TotalScore: 6,
		RiskLevel:  domain.RiskLevelHigh,
		Advice:     "See an ophthalmologist promptly.",
		ContributingFactors: []domain.ContributingFactor{
			{Question: "Family history of glaucoma?", Answer: "yes", Score: 2},
			{Question: "Baseline intraocular pressure", Answer: "22_and_above", Score: 2},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)
	record := sampleRecord("patient-1")

	require.NoError(t, store.Save(context.Background(), record))

	got, err := store.Get(context.Background(), record.ID)
	require.NoError(t, err)

	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.PatientRef, got.PatientRef)
	assert.Equal(t, record.TotalScore, got.TotalScore)
	assert.Equal(t, record.RiskLevel, got.RiskLevel)
	assert.Equal(t, record.Advice, got.Advice)
	assert.Equal(t, record.ContributingFactors, got.ContributingFactors)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestSQLiteStore(t)

	got, err := store.Get(context.Background(), uuid.NewString())

	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_ListByPatient(t *testing.T) {
	store := newTestSQLiteStore(t)
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		record := sampleRecord("patient-2")
		record.TotalScore = i
		record.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(context.Background(), record))
	}
	require.NoError(t, store.Save(context.Background(), sampleRecord("someone-else")))

	records, err := store.ListByPatient(context.Background(), "patient-2", 10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first
	assert.Equal(t, 2, records[0].TotalScore)
	assert.Equal(t, 0, records[2].TotalScore)
}

func TestSQLiteStore_ListByPatientLimit(t *testing.T) {
	store := newTestSQLiteStore(t)
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		record := sampleRecord("patient-3")
		record.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(context.Background(), record))
	}

	records, err := store.ListByPatient(context.Background(), "patient-3", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSQLiteStore_EmptyFactorsRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	record := sampleRecord("patient-4")
	record.ContributingFactors = []domain.ContributingFactor{}
	record.RiskLevel = domain.RiskLevelLow
	record.TotalScore = 0

	require.NoError(t, store.Save(context.Background(), record))

	got, err := store.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ContributingFactors)
	assert.Equal(t, domain.RiskLevelLow, got.RiskLevel)
}
