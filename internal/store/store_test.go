package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/helixmind/genomeguard/internal/store"
	"github.com/helixmind/genomeguard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("genomeguard_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// defaultTenantID returns the UUID of the seeded default tenant.
func defaultTenantID(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	return tenant.ID
}

func newPendingAnalysis(tenantID uuid.UUID, filename string) *models.Analysis {
	return &models.Analysis{
		ID:             uuid.New(),
		TenantID:       tenantID,
		SourceFilename: filename,
		Status:         models.AnalysisStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

func sampleCompletion() store.CompletionUpdate {
	return store.CompletionUpdate{
		TotalVariants:      2,
		HighRiskVariants:   1,
		LowRiskVariants:    1,
		PathogenicVariants: 1,
		RiskProbability:    0.718,
		RiskClassification: models.RiskHigh,
		TopVariants: []models.Variant{
			{Chrom: "17", Pos: 43094464, Ref: "A", Alt: "C", Gene: "BRCA1",
				Significance: models.SigPathogenic, Tier: models.TierHigh,
				Disease: "Breast Cancer, Ovarian Cancer"},
		},
	}
}

func TestGetDefaultTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", tenant.Name)
	assert.NotEqual(t, uuid.Nil, tenant.ID)
}

func TestAnalysisLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	a := newPendingAnalysis(tenantID, "sample.vcf")
	require.NoError(t, s.CreateAnalysis(ctx, a))

	// Visible immediately after create.
	got, err := s.GetAnalysis(ctx, a.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPending, got.Status)
	assert.Equal(t, "sample.vcf", got.SourceFilename)
	assert.Empty(t, got.TopVariants)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, s.MarkProcessing(ctx, a.ID))

	require.NoError(t, s.CompleteAnalysis(ctx, a.ID, sampleCompletion()))

	got, err = s.GetAnalysis(ctx, a.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusCompleted, got.Status)
	assert.Equal(t, 2, got.TotalVariants)
	assert.Equal(t, 1, got.HighRiskVariants)
	assert.Equal(t, 1, got.PathogenicVariants)
	assert.InDelta(t, 0.718, got.RiskProbability, 1e-9)
	assert.Equal(t, models.RiskHigh, got.RiskClassification)
	require.Len(t, got.TopVariants, 1)
	assert.Equal(t, "BRCA1", got.TopVariants[0].Gene)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.ErrorMessage)
}

func TestCompletedIsTerminal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	a := newPendingAnalysis(tenantID, "terminal.vcf")
	require.NoError(t, s.CreateAnalysis(ctx, a))
	require.NoError(t, s.MarkProcessing(ctx, a.ID))
	require.NoError(t, s.CompleteAnalysis(ctx, a.ID, sampleCompletion()))

	// No transition leaves a terminal state.
	err := s.FailAnalysis(ctx, a.ID, "should not happen")
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	err = s.MarkProcessing(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	got, err := s.GetAnalysis(ctx, a.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusCompleted, got.Status)
	assert.Nil(t, got.ErrorMessage)
}

func TestFailAnalysis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	a := newPendingAnalysis(tenantID, "broken.vcf")
	require.NoError(t, s.CreateAnalysis(ctx, a))
	require.NoError(t, s.MarkProcessing(ctx, a.ID))
	require.NoError(t, s.FailAnalysis(ctx, a.ID, "vcf parse error at line 3: expected at least 5 tab-separated columns, got 1"))

	got, err := s.GetAnalysis(ctx, a.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "parse error")
	assert.NotNil(t, got.CompletedAt)
	assert.Zero(t, got.RiskProbability)
}

func TestDeleteAnalysis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	// Deleting an unknown id is NotFound with no side effects.
	err := s.DeleteAnalysis(ctx, uuid.New(), tenantID)
	require.ErrorIs(t, err, store.ErrNotFound)

	a := newPendingAnalysis(tenantID, "todelete.vcf")
	require.NoError(t, s.CreateAnalysis(ctx, a))
	require.NoError(t, s.DeleteAnalysis(ctx, a.ID, tenantID))

	_, err = s.GetAnalysis(ctx, a.ID, tenantID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWritebackAfterDeleteIsNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	a := newPendingAnalysis(tenantID, "midflight.vcf")
	require.NoError(t, s.CreateAnalysis(ctx, a))
	require.NoError(t, s.MarkProcessing(ctx, a.ID))

	// Owner deletes while the pipeline still runs.
	require.NoError(t, s.DeleteAnalysis(ctx, a.ID, tenantID))

	// The worker's writeback must not resurrect the record.
	err := s.CompleteAnalysis(ctx, a.ID, sampleCompletion())
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetAnalysis(ctx, a.ID, tenantID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListAnalyses_OrderedByCreatedAtDesc(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		a := newPendingAnalysis(tenantID, "batch.vcf")
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.CreateAnalysis(ctx, a))
	}

	analyses, err := s.ListAnalyses(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, analyses, 3)
	for i := 1; i < len(analyses); i++ {
		assert.True(t, !analyses[i-1].CreatedAt.Before(analyses[i].CreatedAt),
			"expected created_at descending")
	}
}

func TestGetAnalysis_WrongTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	a := newPendingAnalysis(tenantID, "private.vcf")
	require.NoError(t, s.CreateAnalysis(ctx, a))

	_, err := s.GetAnalysis(ctx, a.ID, uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKeyRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "ci-key",
		KeyHash:   "$2a$10$abcdefghijklmnopqrstuv",
		KeyPrefix: "gg_12345",
		Scopes:    []string{"analysis", "admin"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "gg_12345")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, []string{"analysis", "admin"}, keys[0].Scopes)

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, tenantID))

	keys, err = s.GetAPIKeyByPrefix(ctx, "gg_12345")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
