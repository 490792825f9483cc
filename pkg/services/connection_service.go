// Package services holds the engine's business logic between handlers and
// repositories.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/agents"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/database"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/execute"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/introspect"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/logging"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/repositories"
)

// ConnectionService manages registered target databases and opens
// per-request views of them.
type ConnectionService interface {
	// Create registers a target database after verifying it is reachable.
	Create(ctx context.Context, userID uuid.UUID, name, connectionString string) (*models.Connection, error)

	// Delete removes a registered connection.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns a user's registered PostgreSQL connections.
	List(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error)

	// Resolve picks the connection a request should run against: the named
	// one if an ID is given, otherwise the user's first PostgreSQL
	// connection.
	Resolve(ctx context.Context, userID uuid.UUID, connectionID *uuid.UUID) (*models.Connection, error)

	// OpenTarget dials the target and returns its introspector and query
	// runner plus a cleanup function that releases the pool.
	OpenTarget(ctx context.Context, conn *models.Connection) (*agents.Target, func(), error)
}

type connectionService struct {
	repo   repositories.ConnectionRepository
	dsCfg  *config.DatasourceConfig
	logger *zap.Logger
}

var _ ConnectionService = (*connectionService)(nil)

func NewConnectionService(repo repositories.ConnectionRepository, dsCfg *config.DatasourceConfig, logger *zap.Logger) ConnectionService {
	return &connectionService{
		repo:   repo,
		dsCfg:  dsCfg,
		logger: logger.Named("connections"),
	}
}

func (s *connectionService) Create(ctx context.Context, userID uuid.UUID, name, connectionString string) (*models.Connection, error) {
	pool, err := database.NewTargetPool(ctx, connectionString, s.dsCfg)
	if err != nil {
		s.logger.Warn("connection verification failed",
			zap.String("connection_string", logging.SanitizeConnectionString(connectionString)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("target database is not reachable: %w", err)
	}
	pool.Close()

	conn := &models.Connection{
		UserID:           userID,
		Name:             name,
		ConnectionString: connectionString,
		SourceType:       models.SourcePostgres,
	}
	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("connection registered",
		zap.String("connection_id", conn.ID.String()),
		zap.String("user_id", userID.String()))
	return conn, nil
}

func (s *connectionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *connectionService) List(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	return s.repo.ListByUser(ctx, userID, models.SourcePostgres)
}

func (s *connectionService) Resolve(ctx context.Context, userID uuid.UUID, connectionID *uuid.UUID) (*models.Connection, error) {
	if connectionID != nil {
		return s.repo.GetByID(ctx, *connectionID)
	}

	conns, err := s.repo.ListByUser(ctx, userID, models.SourcePostgres)
	if err != nil {
		return nil, err
	}
	if len(conns) == 0 {
		return nil, &apperrors.ConnectionError{
			Message: fmt.Sprintf("user %s has no registered connections", userID),
			Cause:   apperrors.ErrNotFound,
		}
	}
	return conns[0], nil
}

func (s *connectionService) OpenTarget(ctx context.Context, conn *models.Connection) (*agents.Target, func(), error) {
	pool, err := database.NewTargetPool(ctx, conn.ConnectionString, s.dsCfg)
	if err != nil {
		s.logger.Warn("failed to open target",
			zap.String("connection_id", conn.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, nil, err
	}

	target := &agents.Target{
		Introspector: introspect.New(introspect.NewPgxCatalog(pool), s.logger),
		Runner:       execute.NewExecutor(pool, s.logger),
	}
	return target, pool.Close, nil
}
