package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	tenantIDKey  contextKey = "genomeguard.tenant_id"
	keyPrefixKey contextKey = "genomeguard.key_prefix"
	scopesKey    contextKey = "genomeguard.scopes"
)

// SetTenantID stores the authenticated tenant on the context. Exported so
// handler tests can inject an owner without running the full auth stack.
func SetTenantID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

// GetTenantID returns the tenant that owns the request, as established by
// the auth middleware.
func GetTenantID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(tenantIDKey).(uuid.UUID)
	return id, ok
}

// SetKeyPrefix stores the API key prefix used for rate-limit bucketing.
func SetKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(scopesKey).([]string)
	return scopes
}
