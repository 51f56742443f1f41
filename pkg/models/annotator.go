package models

import "context"

// VariantAnnotator enriches extracted variants with clinical annotations.
// Never call a specific annotation backend directly — always inject this
// interface. Implementations must not mutate the input slice and must be
// safe for concurrent use across jobs.
type VariantAnnotator interface {
	// Annotate returns a new slice with gene, clinical significance,
	// disease associations and per-variant risk tier filled in. A variant
	// with no reference-data match degrades to the unknown/LOW default;
	// misses are never errors.
	Annotate(ctx context.Context, variants []Variant) ([]Variant, error)
	// Name returns the provider identifier (e.g., "local", "myvariant").
	Name() string
}
