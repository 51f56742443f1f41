// Package vcf extracts variant records from Variant Call Format text.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/helixmind/genomeguard/pkg/models"
)

// A data line needs at least CHROM, POS, ID, REF and ALT.
const minFields = 5

// ParseError is a fatal problem with a VCF data line. The whole file is
// rejected; malformed lines are never silently skipped.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Msg)
}

// Scanner reads variants from a VCF stream one at a time. It is single-pass
// and lazy: the underlying reader is consumed as Next advances. Header and
// metadata lines (leading '#') and blank lines are skipped. Duplicate
// variants are preserved in emission order.
//
// Usage follows bufio.Scanner: call Next until it returns false, then check
// Err.
type Scanner struct {
	sc      *bufio.Scanner
	line    int
	current models.Variant
	err     error
}

// NewScanner creates a Scanner over r.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Scanner{sc: sc}
}

// Next advances to the next variant. It returns false at end of input or on
// the first malformed line, after which Err reports what went wrong.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	for s.sc.Scan() {
		s.line++
		line := strings.TrimRight(s.sc.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		v, err := parseLine(line, s.line)
		if err != nil {
			s.err = err
			return false
		}
		s.current = v
		return true
	}
	s.err = s.sc.Err()
	return false
}

// Variant returns the variant produced by the last successful Next.
func (s *Scanner) Variant() models.Variant {
	return s.current
}

// Err returns the first error encountered, or nil on clean end of input.
func (s *Scanner) Err() error {
	return s.err
}

// Parse drains a VCF stream into a slice of variants. Returns a *ParseError
// (wrapped) if any data line is malformed.
func Parse(r io.Reader) ([]models.Variant, error) {
	sc := NewScanner(r)
	var variants []models.Variant
	for sc.Next() {
		variants = append(variants, sc.Variant())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parsing vcf: %w", err)
	}
	return variants, nil
}

func parseLine(line string, lineNo int) (models.Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < minFields {
		return models.Variant{}, &ParseError{
			Line: lineNo,
			Msg:  fmt.Sprintf("expected at least %d tab-separated columns, got %d", minFields, len(fields)),
		}
	}

	pos, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return models.Variant{}, &ParseError{
			Line: lineNo,
			Msg:  fmt.Sprintf("position %q is not a valid integer", fields[1]),
		}
	}

	v := models.Variant{
		Chrom: strings.TrimPrefix(fields[0], "chr"),
		Pos:   pos,
		Ref:   fields[3],
		Alt:   firstAllele(fields[4]),
	}

	// QUAL is optional; '.' and unparsable values are treated as absent.
	if len(fields) > 5 && fields[5] != "." {
		if q, err := strconv.ParseFloat(fields[5], 64); err == nil {
			v.Qual = &q
		}
	}

	return v, nil
}

// firstAllele takes the first alternate allele from a comma-separated ALT
// column. A '.' ALT means no alternate was called.
func firstAllele(alt string) string {
	if alt == "." {
		return ""
	}
	if i := strings.IndexByte(alt, ','); i >= 0 {
		return alt[:i]
	}
	return alt
}
