package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/helixmind/genomeguard/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Analyses ---

const analysisColumns = `id, tenant_id, source_filename, status, total_variants, high_risk_variants,
	medium_risk_variants, low_risk_variants, pathogenic_variants, risk_probability,
	risk_classification, top_variants, error_message, created_at, completed_at`

func (s *PostgresStore) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	top, err := json.Marshal(a.TopVariants)
	if err != nil {
		return fmt.Errorf("marshal top variants: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, tenant_id, source_filename, status, top_variants, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.TenantID, a.SourceFilename, a.Status, top, a.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1 AND tenant_id = $2`, id, tenantID)

	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, tenantID uuid.UUID) ([]models.Analysis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, *a)
	}
	return analyses, rows.Err()
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM analyses WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkProcessing moves a pending analysis to processing. Guarded in SQL so a
// terminal or deleted row is never touched.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET status = $2 WHERE id = $1 AND status = $3`,
		id, models.AnalysisStatusProcessing, models.AnalysisStatusPending)
	if err != nil {
		return fmt.Errorf("mark analysis processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, id)
	}
	return nil
}

// CompleteAnalysis writes every result field and the completed status in one
// statement, so a concurrent reader sees either processing or the full
// result, never a half-written record.
func (s *PostgresStore) CompleteAnalysis(ctx context.Context, id uuid.UUID, result CompletionUpdate) error {
	top, err := json.Marshal(result.TopVariants)
	if err != nil {
		return fmt.Errorf("marshal top variants: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET
		   status = $2, total_variants = $3, high_risk_variants = $4,
		   medium_risk_variants = $5, low_risk_variants = $6, pathogenic_variants = $7,
		   risk_probability = $8, risk_classification = $9, top_variants = $10,
		   error_message = NULL, completed_at = $11
		 WHERE id = $1 AND status = $12`,
		id, models.AnalysisStatusCompleted,
		result.TotalVariants, result.HighRiskVariants,
		result.MediumRiskVariants, result.LowRiskVariants, result.PathogenicVariants,
		result.RiskProbability, result.RiskClassification, top,
		time.Now().UTC(), models.AnalysisStatusProcessing)
	if err != nil {
		return fmt.Errorf("complete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, id)
	}
	return nil
}

// FailAnalysis records a terminal failure with a human-readable message.
// Allowed from pending or processing.
func (s *PostgresStore) FailAnalysis(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET status = $2, error_message = $3, completed_at = $4
		 WHERE id = $1 AND status IN ($5, $6)`,
		id, models.AnalysisStatusFailed, message, time.Now().UTC(),
		models.AnalysisStatusPending, models.AnalysisStatusProcessing)
	if err != nil {
		return fmt.Errorf("fail analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, id)
	}
	return nil
}

// transitionFailure distinguishes a deleted row (ErrNotFound, which the
// pipeline treats as a no-op writeback) from an illegal transition out of a
// terminal state.
func (s *PostgresStore) transitionFailure(ctx context.Context, id uuid.UUID) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM analyses WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get analysis status: %w", err)
	}
	return fmt.Errorf("%w: from %s", ErrInvalidTransition, status)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	var a models.Analysis
	var top []byte
	if err := row.Scan(&a.ID, &a.TenantID, &a.SourceFilename, &a.Status,
		&a.TotalVariants, &a.HighRiskVariants, &a.MediumRiskVariants,
		&a.LowRiskVariants, &a.PathogenicVariants, &a.RiskProbability,
		&a.RiskClassification, &top, &a.ErrorMessage, &a.CreatedAt, &a.CompletedAt); err != nil {
		return nil, err
	}
	if len(top) > 0 {
		if err := json.Unmarshal(top, &a.TopVariants); err != nil {
			return nil, fmt.Errorf("unmarshal top variants: %w", err)
		}
	}
	if a.TopVariants == nil {
		a.TopVariants = []models.Variant{}
	}
	return &a, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
