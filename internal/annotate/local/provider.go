// Package local annotates variants against a curated in-process knowledge
// base of disease-gene regions and individually classified positions.
package local

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/helixmind/genomeguard/pkg/models"
)

//go:embed kb.yaml
var defaultKB []byte

// RegionEntry maps a gene's genomic interval to its clinical profile.
type RegionEntry struct {
	Gene     string   `yaml:"gene"`
	Chrom    string   `yaml:"chrom"`
	Start    uint64   `yaml:"start"`
	End      uint64   `yaml:"end"`
	Risk     string   `yaml:"risk"`
	Diseases []string `yaml:"diseases"`
}

// PositionEntry classifies one exact genomic position. Position entries take
// precedence over region entries.
type PositionEntry struct {
	Chrom        string `yaml:"chrom"`
	Pos          uint64 `yaml:"pos"`
	Gene         string `yaml:"gene"`
	Significance string `yaml:"significance"`
	Risk         string `yaml:"risk"`
	Disease      string `yaml:"disease"`
}

type knowledgeBase struct {
	Positions []PositionEntry `yaml:"positions"`
	Regions   []RegionEntry   `yaml:"regions"`
}

type posKey struct {
	chrom string
	pos   uint64
}

// Provider is the local knowledge-base annotator. Read-only after
// construction, safe for concurrent use across jobs.
type Provider struct {
	byPosition map[posKey]PositionEntry
	regions    []RegionEntry
}

// NewProvider loads the knowledge base from path, or the embedded default
// dataset when path is empty.
func NewProvider(path string) (*Provider, error) {
	raw := defaultKB
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading knowledge base: %w", err)
		}
		raw = b
	}

	var kb knowledgeBase
	if err := yaml.Unmarshal(raw, &kb); err != nil {
		return nil, fmt.Errorf("parsing knowledge base: %w", err)
	}
	if len(kb.Regions) == 0 && len(kb.Positions) == 0 {
		return nil, fmt.Errorf("knowledge base is empty")
	}

	byPos := make(map[posKey]PositionEntry, len(kb.Positions))
	for _, p := range kb.Positions {
		byPos[posKey{chrom: normChrom(p.Chrom), pos: p.Pos}] = p
	}

	return &Provider{byPosition: byPos, regions: kb.Regions}, nil
}

func (p *Provider) Name() string { return "local" }

// Annotate fills in gene, significance, disease and risk tier for each
// variant. Exact position matches win over gene-region matches; region
// entries match in file order. A variant with no match keeps the
// unknown/LOW default.
func (p *Provider) Annotate(ctx context.Context, variants []models.Variant) ([]models.Variant, error) {
	out := make([]models.Variant, len(variants))
	for i, v := range variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.annotateOne(v)
	}
	return out, nil
}

func (p *Provider) annotateOne(v models.Variant) models.Variant {
	v.Significance = models.SigUnknown
	v.Tier = models.TierLow

	chrom := normChrom(v.Chrom)

	if e, ok := p.byPosition[posKey{chrom: chrom, pos: v.Pos}]; ok {
		v.Gene = e.Gene
		v.Significance = models.Significance(e.Significance)
		v.Tier = tierFromRisk(e.Risk)
		v.Disease = e.Disease
		return v
	}

	for _, r := range p.regions {
		if normChrom(r.Chrom) != chrom {
			continue
		}
		if v.Pos < r.Start || v.Pos > r.End {
			continue
		}
		v.Gene = r.Gene
		v.Tier = tierFromRisk(r.Risk)
		v.Significance = significanceFromRisk(r.Risk)
		v.Disease = strings.Join(r.Diseases, ", ")
		return v
	}

	return v
}

func normChrom(chrom string) string {
	return strings.ToUpper(strings.TrimPrefix(chrom, "chr"))
}

func tierFromRisk(risk string) models.RiskTier {
	switch strings.ToUpper(risk) {
	case "HIGH":
		return models.TierHigh
	case "MEDIUM":
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// significanceFromRisk derives the clinical call for a region-level match,
// where only the gene's overall risk is known.
func significanceFromRisk(risk string) models.Significance {
	switch strings.ToUpper(risk) {
	case "HIGH":
		return models.SigPathogenic
	case "MEDIUM":
		return models.SigLikelyPathogenic
	default:
		return models.SigVUS
	}
}
