package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/database"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// ConnectionRepository defines data access for registered target databases.
type ConnectionRepository interface {
	// Create inserts a new connection and fills in its generated ID.
	Create(ctx context.Context, conn *models.Connection) error

	// GetByID retrieves a connection by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, error)

	// ListByUser retrieves a user's connections of one source type, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID, sourceType models.SourceType) ([]*models.Connection, error)

	// Delete removes a connection by ID.
	Delete(ctx context.Context, id uuid.UUID) error
}

type connectionRepository struct {
	db *database.DB
}

// NewConnectionRepository creates a PostgreSQL-backed connection repository.
func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	const query = `
		INSERT INTO engine_connections (user_id, name, connection_string, source_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		conn.UserID,
		conn.Name,
		conn.ConnectionString,
		conn.SourceType,
		conn.CreatedAt,
		conn.UpdatedAt,
	).Scan(&conn.ID)
	if err != nil {
		return &apperrors.ConnectionError{Message: "failed to create connection", Cause: err}
	}
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	const query = `
		SELECT id, user_id, name, connection_string, source_type, created_at, updated_at
		FROM engine_connections
		WHERE id = $1`

	var conn models.Connection
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Name,
		&conn.ConnectionString,
		&conn.SourceType,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperrors.ConnectionError{Message: fmt.Sprintf("connection %s", id), Cause: apperrors.ErrNotFound}
	}
	if err != nil {
		return nil, &apperrors.ConnectionError{Message: "failed to get connection", Cause: err}
	}
	return &conn, nil
}

func (r *connectionRepository) ListByUser(ctx context.Context, userID uuid.UUID, sourceType models.SourceType) ([]*models.Connection, error) {
	const query = `
		SELECT id, user_id, name, connection_string, source_type, created_at, updated_at
		FROM engine_connections
		WHERE user_id = $1 AND source_type = $2
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID, sourceType)
	if err != nil {
		return nil, &apperrors.ConnectionError{Message: "failed to list connections", Cause: err}
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		var conn models.Connection
		if err := rows.Scan(
			&conn.ID,
			&conn.UserID,
			&conn.Name,
			&conn.ConnectionString,
			&conn.SourceType,
			&conn.CreatedAt,
			&conn.UpdatedAt,
		); err != nil {
			return nil, &apperrors.ConnectionError{Message: "failed to scan connection", Cause: err}
		}
		conns = append(conns, &conn)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperrors.ConnectionError{Message: "failed to iterate connections", Cause: err}
	}
	return conns, nil
}

func (r *connectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM engine_connections WHERE id = $1`, id)
	if err != nil {
		return &apperrors.ConnectionError{Message: "failed to delete connection", Cause: err}
	}
	if tag.RowsAffected() == 0 {
		return &apperrors.ConnectionError{Message: fmt.Sprintf("connection %s", id), Cause: apperrors.ErrNotFound}
	}
	return nil
}
