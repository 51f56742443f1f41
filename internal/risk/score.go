// Package risk aggregates annotated variants into a disease-risk score.
// Everything here is pure and deterministic: identical input always yields
// identical output, including top-variant ordering.
package risk

import (
	"sort"

	"github.com/helixmind/genomeguard/pkg/models"
)

// Per-significance contribution weights. Policy constants, not tunable per
// call.
const (
	weightPathogenic       = 5.0
	weightLikelyPathogenic = 2.5
	weightVUS              = 0.5

	// saturation controls how quickly the weight sum approaches 1.0:
	// probability = sum / (sum + saturation). A single Pathogenic variant
	// lands above the high threshold; benign and unknown variants carry no
	// weight, so the classification cannot drift up with file size alone.
	saturation = 2.0

	highThreshold   = 0.7
	mediumThreshold = 0.3

	// MaxTopVariants bounds the top_variants list in the persisted result.
	MaxTopVariants = 10
)

// Result is the aggregate output of scoring one annotated variant set.
type Result struct {
	TotalVariants      int
	HighRiskVariants   int
	MediumRiskVariants int
	LowRiskVariants    int
	PathogenicVariants int
	Probability        float64
	Classification     string
	TopVariants        []models.Variant
}

// Score computes the aggregate risk for a fully annotated variant sequence.
func Score(variants []models.Variant) Result {
	res := Result{
		TotalVariants: len(variants),
		TopVariants:   []models.Variant{},
	}

	var sum float64
	for _, v := range variants {
		sum += weight(v.Significance)

		switch v.Tier {
		case models.TierHigh:
			res.HighRiskVariants++
		case models.TierMedium:
			res.MediumRiskVariants++
		default:
			res.LowRiskVariants++
		}

		if v.Significance == models.SigPathogenic || v.Significance == models.SigLikelyPathogenic {
			res.PathogenicVariants++
		}
	}

	res.Probability = Probability(sum)
	res.Classification = Classify(res.Probability)
	res.TopVariants = topVariants(variants)
	return res
}

// Probability saturates a non-negative weight sum into [0, 1). Monotone in
// the weight sum; exactly 0 for empty input.
func Probability(weightSum float64) float64 {
	if weightSum <= 0 {
		return 0
	}
	return weightSum / (weightSum + saturation)
}

// Classify maps a probability to the three-tier classification using the
// fixed thresholds.
func Classify(probability float64) string {
	switch {
	case probability >= highThreshold:
		return models.RiskHigh
	case probability >= mediumThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func weight(sig models.Significance) float64 {
	switch sig {
	case models.SigPathogenic:
		return weightPathogenic
	case models.SigLikelyPathogenic:
		return weightLikelyPathogenic
	case models.SigVUS:
		return weightVUS
	default:
		return 0
	}
}

// topVariants returns the most clinically significant variants, ordered by
// significance severity then risk tier, ties broken by original file order
// (stable sort), truncated to MaxTopVariants.
func topVariants(variants []models.Variant) []models.Variant {
	sorted := make([]models.Variant, len(variants))
	copy(sorted, variants)

	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].Significance.SeverityRank(), sorted[j].Significance.SeverityRank()
		if si != sj {
			return si > sj
		}
		return sorted[i].Tier.Rank() > sorted[j].Tier.Rank()
	})

	if len(sorted) > MaxTopVariants {
		sorted = sorted[:MaxTopVariants]
	}
	return sorted
}
