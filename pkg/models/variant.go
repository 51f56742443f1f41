// Package models contains shared data models used across the GenomeGuard codebase.
package models

// Significance is the ClinVar-style clinical interpretation of a variant.
type Significance string

const (
	SigPathogenic       Significance = "Pathogenic"
	SigLikelyPathogenic Significance = "Likely_pathogenic"
	SigVUS              Significance = "VUS"
	SigBenign           Significance = "Benign"
	SigLikelyBenign     Significance = "Likely_benign"
	SigUnknown          Significance = "unknown"
)

// SeverityRank orders clinical significance from most to least severe.
// Unrecognized values rank below everything else.
func (s Significance) SeverityRank() int {
	switch s {
	case SigPathogenic:
		return 5
	case SigLikelyPathogenic:
		return 4
	case SigVUS:
		return 3
	case SigLikelyBenign:
		return 2
	case SigBenign:
		return 1
	default:
		return 0
	}
}

// RiskTier is the per-variant categorical risk level.
type RiskTier string

const (
	TierLow    RiskTier = "LOW"
	TierMedium RiskTier = "MEDIUM"
	TierHigh   RiskTier = "HIGH"
)

// Rank orders risk tiers from highest to lowest.
func (t RiskTier) Rank() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	default:
		return 0
	}
}

// Variant is a single genomic call. Chrom, Pos, Ref and Alt are populated by
// the extractor; Gene, Significance, Disease and Tier are filled in by the
// annotator. Immutable once annotated.
type Variant struct {
	Chrom        string       `json:"chrom"`
	Pos          uint64       `json:"pos"`
	Ref          string       `json:"ref"`
	Alt          string       `json:"alt"`
	Qual         *float64     `json:"qual,omitempty"`
	Gene         string       `json:"gene,omitempty"`
	Significance Significance `json:"clinical_significance"`
	Disease      string       `json:"disease,omitempty"`
	Tier         RiskTier     `json:"risk_tier"`
}
