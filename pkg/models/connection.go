package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the kind of database a connection points at.
type SourceType string

const (
	// SourcePostgres is currently the only supported source kind.
	SourcePostgres SourceType = "postgres"
)

// Connection is a user-registered target database. The connection string is
// credential-bearing and must never be logged unsanitized.
type Connection struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Name             string     `json:"name"`
	ConnectionString string     `json:"-"`
	SourceType       SourceType `json:"source_type"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// UserFile is an uploaded reference document attached to context-gathering
// turns for business-context grounding.
type UserFile struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
	FileURL   string    `json:"file_url"`
	MediaType string    `json:"media_type"`
	CreatedAt time.Time `json:"created_at"`
}
