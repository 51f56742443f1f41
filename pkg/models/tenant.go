package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an account that owns uploaded analyses. Every analysis
// and API key belongs to a tenant.
type Tenant struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
