package workflows

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/agents"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/retry"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/services"
)

// GenerateInput is one natural-language generation request.
type GenerateInput struct {
	UserID       uuid.UUID
	UserPrompt   string
	ThreadID     string
	ConnectionID *uuid.UUID
}

// GenerateResult carries the tested query.
type GenerateResult struct {
	Query string `json:"query"`
}

// ContextService is the context-gathering seam the workflow drives.
type ContextService interface {
	GatherContext(ctx context.Context, target *agents.Target, userID uuid.UUID, userQuery, threadID string) (string, error)
}

// GeneratorService is the SQL generation seam the workflow drives.
type GeneratorService interface {
	Generate(ctx context.Context, target *agents.Target, schemaContext, userQuery, threadID string) (string, error)
}

// GenerateWorkflow chains connection resolution, context gathering, and SQL
// generation.
type GenerateWorkflow struct {
	connections services.ConnectionService
	contextSvc  ContextService
	generator   GeneratorService
	cfg         *config.WorkflowConfig
	logger      *zap.Logger
}

func NewGenerateWorkflow(
	connections services.ConnectionService,
	contextSvc ContextService,
	generator GeneratorService,
	cfg *config.WorkflowConfig,
	logger *zap.Logger,
) *GenerateWorkflow {
	return &GenerateWorkflow{
		connections: connections,
		contextSvc:  contextSvc,
		generator:   generator,
		cfg:         cfg,
		logger:      logger.Named("workflow.generate"),
	}
}

func (w *GenerateWorkflow) retryConfig() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = w.cfg.MaxRetries
	cfg.InitialDelay = w.cfg.InitialDelay()
	return cfg
}

// Run executes the pipeline and returns the generated query.
func (w *GenerateWorkflow) Run(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	target, cleanup, err := w.openTarget(ctx, input.UserID, input.ConnectionID)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	schemaContext, err := w.gatherContext(ctx, target, input)
	if err != nil {
		return nil, err
	}

	query, err := w.generateSQL(ctx, target, schemaContext, input)
	if err != nil {
		return nil, err
	}

	w.logger.Info("sql generated",
		zap.String("user_id", input.UserID.String()),
		zap.String("thread_id", input.ThreadID))
	return &GenerateResult{Query: query}, nil
}

func (w *GenerateWorkflow) openTarget(ctx context.Context, userID uuid.UUID, connectionID *uuid.UUID) (*agents.Target, func(), error) {
	stageCtx, cancel := context.WithTimeout(ctx, w.cfg.StageTimeout())
	defer cancel()

	var target *agents.Target
	var cleanup func()
	err := retry.DoIfRetryable(stageCtx, w.retryConfig(), func() error {
		conn, err := w.connections.Resolve(stageCtx, userID, connectionID)
		if err != nil {
			return err
		}
		t, c, err := w.connections.OpenTarget(stageCtx, conn)
		if err != nil {
			// The connection is being opened for introspection, so dial
			// failures carry the introspection step tag.
			return &apperrors.IntrospectionError{Step: apperrors.StepCreateConnection, Message: "failed to open target", Cause: err}
		}
		target, cleanup = t, c
		return nil
	})
	if err != nil {
		return nil, nil, &apperrors.WorkflowError{Stage: apperrors.StageGetConnection, Message: "failed to resolve connection", Cause: err}
	}
	return target, cleanup, nil
}

func (w *GenerateWorkflow) gatherContext(ctx context.Context, target *agents.Target, input GenerateInput) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, w.cfg.StageTimeout())
	defer cancel()

	var schemaContext string
	err := retry.DoIfRetryable(stageCtx, w.retryConfig(), func() error {
		out, err := w.contextSvc.GatherContext(stageCtx, target, input.UserID, input.UserPrompt, input.ThreadID)
		if err != nil {
			return err
		}
		schemaContext = out
		return nil
	})
	if err != nil {
		return "", &apperrors.WorkflowError{Stage: apperrors.StageGenerateContext, Message: "context gathering failed", Cause: err}
	}
	return schemaContext, nil
}

func (w *GenerateWorkflow) generateSQL(ctx context.Context, target *agents.Target, schemaContext string, input GenerateInput) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, w.cfg.StageTimeout())
	defer cancel()

	var query string
	err := retry.DoIfRetryable(stageCtx, w.retryConfig(), func() error {
		out, err := w.generator.Generate(stageCtx, target, schemaContext, input.UserPrompt, input.ThreadID)
		if err != nil {
			return err
		}
		query = out
		return nil
	})
	if err != nil {
		return "", &apperrors.WorkflowError{Stage: apperrors.StageGenerateSQL, Message: "sql generation failed", Cause: err}
	}
	return query, nil
}
