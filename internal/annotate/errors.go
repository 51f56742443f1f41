package annotate

import "github.com/helixmind/genomeguard/internal/annotate/myvariant"

// Sentinel errors for annotation lookups, re-exported so callers don't
// depend on a specific provider package.
var (
	ErrProviderUnavailable = myvariant.ErrProviderUnavailable
	ErrLookupTimeout       = myvariant.ErrLookupTimeout
	ErrInvalidResponse     = myvariant.ErrInvalidResponse
)
