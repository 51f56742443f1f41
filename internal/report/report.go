// Package report renders a completed analysis as a plain-text clinical
// summary suitable for download. Rendering is deterministic: the same
// analysis always produces byte-identical output.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/helixmind/genomeguard/pkg/models"
)

// ErrNotReady is returned when the analysis has not completed yet.
var ErrNotReady = errors.New("report: analysis is not completed")

const divider = "============================================================"

// Render produces the downloadable text report for a completed analysis.
func Render(a *models.Analysis) ([]byte, error) {
	if a.Status != models.AnalysisStatusCompleted {
		return nil, ErrNotReady
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, divider)
	fmt.Fprintln(&buf, "GENETIC RISK ASSESSMENT REPORT")
	fmt.Fprintln(&buf, divider)
	fmt.Fprintf(&buf, "Analysis ID:     %s\n", a.ID)
	fmt.Fprintf(&buf, "Source file:     %s\n", a.SourceFilename)
	fmt.Fprintf(&buf, "Submitted:       %s\n", a.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if a.CompletedAt != nil {
		fmt.Fprintf(&buf, "Completed:       %s\n", a.CompletedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintln(&buf)

	fmt.Fprintln(&buf, "SUMMARY")
	fmt.Fprintln(&buf, "------------------------------------------------------------")
	fmt.Fprintf(&buf, "Risk classification:  %s\n", strings.ToUpper(a.RiskClassification))
	fmt.Fprintf(&buf, "Risk probability:     %.4f\n", a.RiskProbability)
	fmt.Fprintf(&buf, "Total variants:       %d\n", a.TotalVariants)
	fmt.Fprintf(&buf, "High risk:            %d\n", a.HighRiskVariants)
	fmt.Fprintf(&buf, "Medium risk:          %d\n", a.MediumRiskVariants)
	fmt.Fprintf(&buf, "Low risk:             %d\n", a.LowRiskVariants)
	fmt.Fprintf(&buf, "Pathogenic:           %d\n", a.PathogenicVariants)
	fmt.Fprintln(&buf)

	fmt.Fprintln(&buf, "TOP VARIANTS")
	fmt.Fprintln(&buf, "------------------------------------------------------------")
	if len(a.TopVariants) == 0 {
		fmt.Fprintln(&buf, "No notable variants identified.")
	} else {
		for i, v := range a.TopVariants {
			fmt.Fprintf(&buf, "%2d. chr%s:%d %s>%s\n", i+1, v.Chrom, v.Pos, v.Ref, v.Alt)
			fmt.Fprintf(&buf, "    Gene:         %s\n", orDash(v.Gene))
			fmt.Fprintf(&buf, "    Significance: %s\n", orDash(string(v.Significance)))
			fmt.Fprintf(&buf, "    Risk tier:    %s\n", v.Tier)
			if v.Disease != "" {
				fmt.Fprintf(&buf, "    Associated:   %s\n", v.Disease)
			}
		}
	}
	fmt.Fprintln(&buf)

	fmt.Fprintln(&buf, divider)
	fmt.Fprintln(&buf, "This report is for research use only and is not a")
	fmt.Fprintln(&buf, "substitute for clinical genetic counseling.")
	fmt.Fprintln(&buf, divider)

	return buf.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
