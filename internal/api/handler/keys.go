package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/helixmind/genomeguard/internal/api/middleware"
	"github.com/helixmind/genomeguard/internal/api/response"
	"github.com/helixmind/genomeguard/internal/store"
	"github.com/helixmind/genomeguard/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyPrefix    = "gg_"
	keyRandBytes = 24
)

var allowedScopes = map[string]bool{
	mw.ScopeAnalysis: true,
	mw.ScopeAdmin:    true,
}

// KeyStore defines the store operations the key handlers depend on.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id, tenantID uuid.UUID) error
}

// NewCreateKeyHandler returns the handler for POST /api/v1/admin/keys.
// The raw key is returned exactly once; only its bcrypt hash is stored.
func NewCreateKeyHandler(st KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if len(req.Scopes) == 0 {
			req.Scopes = []string{mw.ScopeAnalysis}
		}
		for _, s := range req.Scopes {
			if !allowedScopes[s] {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					fmt.Sprintf("unknown scope %q", s), nil)
				return
			}
		}

		rawKey, err := generateKey()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not generate key", nil)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not generate key", nil)
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Name:      req.Name,
			KeyHash:   string(hash),
			KeyPrefix: rawKey[:8],
			Scopes:    req.Scopes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.CreateAPIKey(r.Context(), key); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not store key", nil)
			return
		}

		response.Created(w, createKeyResponse{
			ID:     key.ID,
			Name:   key.Name,
			Key:    rawKey,
			Scopes: key.Scopes,
		})
	}
}

type createKeyResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Key    string    `json:"key"`
	Scopes []string  `json:"scopes"`
}

// NewListKeysHandler returns the handler for GET /api/v1/admin/keys.
func NewListKeysHandler(st KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		keys, err := st.ListAPIKeys(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		out := make([]keySummary, 0, len(keys))
		for _, k := range keys {
			out = append(out, keySummary{
				ID:         k.ID,
				Name:       k.Name,
				KeyPrefix:  k.KeyPrefix,
				Scopes:     k.Scopes,
				LastUsedAt: k.LastUsedAt,
				CreatedAt:  k.CreatedAt,
			})
		}
		response.JSON(w, out)
	}
}

type keySummary struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewRevokeKeyHandler returns the handler for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(st KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"keyID must be a valid UUID", nil)
			return
		}

		if err := st.RevokeAPIKey(r.Context(), keyID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "API key not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.NoContent(w)
	}
}

func generateKey() (string, error) {
	buf := make([]byte, keyRandBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}
