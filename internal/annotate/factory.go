// Package annotate selects and constructs variant annotation providers.
package annotate

import (
	"fmt"

	"github.com/helixmind/genomeguard/internal/annotate/local"
	"github.com/helixmind/genomeguard/internal/annotate/myvariant"
	"github.com/helixmind/genomeguard/internal/config"
	"github.com/helixmind/genomeguard/pkg/models"
)

// NewProvider constructs the appropriate annotation provider based on config.
// Called once at server startup; the local provider's knowledge base is
// loaded here and never mutated afterwards.
func NewProvider(cfg config.AnnotationConfig) (models.VariantAnnotator, error) {
	switch cfg.Provider {
	case "local":
		return local.NewProvider(cfg.KnowledgeBasePath)
	case "myvariant":
		return myvariant.NewProvider(cfg.MyVariant), nil
	default:
		return nil, fmt.Errorf("unknown annotation provider %q: must be one of local, myvariant", cfg.Provider)
	}
}
