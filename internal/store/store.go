package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/helixmind/genomeguard/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrInvalidTransition is returned when a status update would leave a
// terminal state or skip a step. Completed and failed analyses are
// immutable.
var ErrInvalidTransition = errors.New("invalid analysis status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateAnalysis(ctx context.Context, a *models.Analysis) error
	GetAnalysis(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, tenantID uuid.UUID) ([]models.Analysis, error)
	DeleteAnalysis(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	// Pipeline-side updates, keyed by id only: the worker already holds a
	// job it created and must not be blocked by owner scoping.
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	CompleteAnalysis(ctx context.Context, id uuid.UUID, result CompletionUpdate) error
	FailAnalysis(ctx context.Context, id uuid.UUID, message string) error
}

// CompletionUpdate carries every field that becomes visible when an analysis
// reaches completed. Applied in a single statement so a concurrent reader
// never observes completed with missing counters.
type CompletionUpdate struct {
	TotalVariants      int
	HighRiskVariants   int
	MediumRiskVariants int
	LowRiskVariants    int
	PathogenicVariants int
	RiskProbability    float64
	RiskClassification string
	TopVariants        []models.Variant
}
