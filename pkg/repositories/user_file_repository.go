package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/database"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// UserFileRepository defines data access for uploaded reference files.
type UserFileRepository interface {
	// ListByUser retrieves all files a user has uploaded, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserFile, error)
}

type userFileRepository struct {
	db *database.DB
}

// NewUserFileRepository creates a PostgreSQL-backed user file repository.
func NewUserFileRepository(db *database.DB) UserFileRepository {
	return &userFileRepository{db: db}
}

func (r *userFileRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserFile, error) {
	const query = `
		SELECT id, user_id, type, file_url, media_type, created_at
		FROM engine_user_files
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user files: %w", err)
	}
	defer rows.Close()

	var files []*models.UserFile
	for rows.Next() {
		var f models.UserFile
		if err := rows.Scan(&f.ID, &f.UserID, &f.Type, &f.FileURL, &f.MediaType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user file: %w", err)
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user files: %w", err)
	}
	return files, nil
}
