package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AnalysisStatusPending    = "pending"
	AnalysisStatusProcessing = "processing"
	AnalysisStatusCompleted  = "completed"
	AnalysisStatusFailed     = "failed"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Analysis tracks one VCF analysis job and its result. The API returns the id
// on POST /api/v1/analysis/upload; the client polls
// GET /api/v1/analysis/results/{id} until status is completed or failed.
// Counters and risk fields are only populated on completed analyses;
// ErrorMessage only on failed ones.
type Analysis struct {
	ID                 uuid.UUID  `db:"id"                  json:"id"`
	TenantID           uuid.UUID  `db:"tenant_id"           json:"tenant_id"`
	SourceFilename     string     `db:"source_filename"     json:"source_filename"`
	Status             string     `db:"status"              json:"status"`
	TotalVariants      int        `db:"total_variants"      json:"total_variants"`
	HighRiskVariants   int        `db:"high_risk_variants"  json:"high_risk_variants"`
	MediumRiskVariants int        `db:"medium_risk_variants" json:"medium_risk_variants"`
	LowRiskVariants    int        `db:"low_risk_variants"   json:"low_risk_variants"`
	PathogenicVariants int        `db:"pathogenic_variants" json:"pathogenic_variants"`
	RiskProbability    float64    `db:"risk_probability"    json:"risk_probability"`
	RiskClassification string     `db:"risk_classification" json:"risk_classification"`
	TopVariants        []Variant  `db:"top_variants"        json:"top_variants"`
	ErrorMessage       *string    `db:"error_message"       json:"error_message,omitempty"`
	CreatedAt          time.Time  `db:"created_at"          json:"created_at"`
	CompletedAt        *time.Time `db:"completed_at"        json:"completed_at,omitempty"`
}

// Terminal reports whether the analysis has reached a final state.
func (a *Analysis) Terminal() bool {
	return a.Status == AnalysisStatusCompleted || a.Status == AnalysisStatusFailed
}

// AnalysisSummary is the trimmed-down shape returned by the history listing.
type AnalysisSummary struct {
	ID                 uuid.UUID  `json:"id"`
	SourceFilename     string     `json:"source_filename"`
	Status             string     `json:"status"`
	TotalVariants      int        `json:"total_variants"`
	RiskProbability    float64    `json:"risk_probability"`
	RiskClassification string     `json:"risk_classification"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Summary projects an Analysis into its history-listing shape.
func (a *Analysis) Summary() AnalysisSummary {
	return AnalysisSummary{
		ID:                 a.ID,
		SourceFilename:     a.SourceFilename,
		Status:             a.Status,
		TotalVariants:      a.TotalVariants,
		RiskProbability:    a.RiskProbability,
		RiskClassification: a.RiskClassification,
		CreatedAt:          a.CreatedAt,
		CompletedAt:        a.CompletedAt,
	}
}
