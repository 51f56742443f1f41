// Package myvariant annotates variants by querying the MyVariant.info HTTP
// API for live ClinVar data.
package myvariant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/helixmind/genomeguard/internal/config"
	"github.com/helixmind/genomeguard/pkg/models"
)

// Sentinel errors for MyVariant.info lookups.
var (
	ErrProviderUnavailable = errors.New("annotation provider unavailable")
	ErrLookupTimeout       = errors.New("annotation lookup timeout")
	ErrInvalidResponse     = errors.New("annotation provider returned invalid response")
)

const queryFields = "clinvar,dbsnp,dbnsfp.genename"

// Provider implements models.VariantAnnotator against MyVariant.info.
type Provider struct {
	baseURL string
	client  *http.Client
}

// NewProvider creates a MyVariant.info-backed annotator.
func NewProvider(cfg config.MyVariantConfig) *Provider {
	return &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) Name() string { return "myvariant" }

// Annotate looks up each variant by its HGVS identifier. A variant unknown
// to the API degrades to the unknown/LOW default; transport failures abort
// the whole batch since partial annotation would skew scoring.
func (p *Provider) Annotate(ctx context.Context, variants []models.Variant) ([]models.Variant, error) {
	out := make([]models.Variant, len(variants))
	for i, v := range variants {
		annotated, err := p.annotateOne(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("annotating %s:%d: %w", v.Chrom, v.Pos, err)
		}
		out[i] = annotated
	}
	return out, nil
}

func (p *Provider) annotateOne(ctx context.Context, v models.Variant) (models.Variant, error) {
	v.Significance = models.SigUnknown
	v.Tier = models.TierLow

	hgvs := fmt.Sprintf("chr%s:g.%d%s>%s", strings.TrimPrefix(v.Chrom, "chr"), v.Pos, v.Ref, v.Alt)
	u := fmt.Sprintf("%s/variant/%s?fields=%s&assembly=hg38", p.baseURL, url.PathEscape(hgvs), url.QueryEscape(queryFields))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Variant{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.Variant{}, classifyError(err)
	}
	defer resp.Body.Close()

	// Unknown variant: not an error, keep the conservative default.
	if resp.StatusCode == http.StatusNotFound {
		return v, nil
	}
	if resp.StatusCode != http.StatusOK {
		return models.Variant{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var body variantResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Variant{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	applyResponse(&v, body)
	return v, nil
}

type variantResponse struct {
	ClinVar *struct {
		RCV rcvList `json:"rcv"`
	} `json:"clinvar"`
	DBNSFP *struct {
		GeneName flexString `json:"genename"`
	} `json:"dbnsfp"`
}

type rcvRecord struct {
	ClinicalSignificance string   `json:"clinical_significance"`
	Conditions           condList `json:"conditions"`
}

// rcvList tolerates MyVariant returning either a single object or an array.
type rcvList []rcvRecord

func (l *rcvList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, (*[]rcvRecord)(l))
	}
	var one rcvRecord
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = rcvList{one}
	return nil
}

type condList []struct {
	Name string `json:"name"`
}

func (l *condList) UnmarshalJSON(data []byte) error {
	type cond = struct {
		Name string `json:"name"`
	}
	if len(data) > 0 && data[0] == '[' {
		var many []cond
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = condList(many)
		return nil
	}
	var one cond
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = condList{one}
	return nil
}

// flexString tolerates a field being either a string or an array of strings.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		if len(many) > 0 {
			*s = flexString(many[0])
		}
		return nil
	}
	return json.Unmarshal(data, (*string)(s))
}

func applyResponse(v *models.Variant, body variantResponse) {
	if body.DBNSFP != nil {
		v.Gene = string(body.DBNSFP.GeneName)
	}

	if body.ClinVar == nil {
		return
	}
	for _, rec := range body.ClinVar.RCV {
		sig, tier, ok := mapSignificance(rec.ClinicalSignificance)
		if !ok {
			continue
		}
		// Keep the most severe call across submissions.
		if sig.SeverityRank() > v.Significance.SeverityRank() {
			v.Significance = sig
			v.Tier = tier
		}
		if v.Disease == "" {
			var names []string
			for _, c := range rec.Conditions {
				if c.Name != "" && c.Name != "not provided" {
					names = append(names, c.Name)
				}
			}
			v.Disease = strings.Join(names, ", ")
		}
	}
}

func mapSignificance(raw string) (models.Significance, models.RiskTier, bool) {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "likely pathogenic"):
		return models.SigLikelyPathogenic, models.TierMedium, true
	case strings.Contains(s, "pathogenic"):
		return models.SigPathogenic, models.TierHigh, true
	case strings.Contains(s, "likely benign"):
		return models.SigLikelyBenign, models.TierLow, true
	case strings.Contains(s, "benign"):
		return models.SigBenign, models.TierLow, true
	case strings.Contains(s, "uncertain"):
		return models.SigVUS, models.TierLow, true
	default:
		return models.SigUnknown, models.TierLow, false
	}
}

// classifyError maps transport errors to the package's sentinel errors.
func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrLookupTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrLookupTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
