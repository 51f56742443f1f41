package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/helixmind/genomeguard/internal/api/middleware"
	"github.com/helixmind/genomeguard/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	UploadHandler       http.HandlerFunc
	GetResultHandler    http.HandlerFunc
	HistoryHandler      http.HandlerFunc
	DeleteResultHandler http.HandlerFunc
	DownloadHandler     http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/analysis/upload", orNotImplemented(deps.UploadHandler))
		r.Get("/api/v1/analysis/history", orNotImplemented(deps.HistoryHandler))
		r.Get("/api/v1/analysis/results/{analysisID}", orNotImplemented(deps.GetResultHandler))
		r.Delete("/api/v1/analysis/results/{analysisID}", orNotImplemented(deps.DeleteResultHandler))
		r.Get("/api/v1/analysis/results/{analysisID}/download", orNotImplemented(deps.DownloadHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
