// Package workflows orchestrates the two request pipelines. Each stage is
// bounded by a wall-clock timeout; transient failures are retried with
// exponential backoff, and whatever escapes a stage is tagged with that
// stage before it reaches a handler.
package workflows

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/agents"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/retry"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/services"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/sqlguard"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/visualize"
)

// ExecuteInput is one query execution request.
type ExecuteInput struct {
	UserID       uuid.UUID
	SQL          string
	ConnectionID *uuid.UUID
}

// ExecuteData is the row payload of a successful execution.
type ExecuteData struct {
	Rows     []map[string]any `json:"rows"`
	Columns  []string         `json:"columns"`
	RowCount int              `json:"rowCount"`
}

// ExecuteResult is the full execution outcome, including the normalized SQL
// that actually ran.
type ExecuteResult struct {
	Success       bool                        `json:"success"`
	SQL           string                      `json:"sql"`
	Data          *ExecuteData                `json:"data,omitempty"`
	Visualization *models.VisualizationConfig `json:"visualization,omitempty"`
	Error         *ExecuteError               `json:"error,omitempty"`
}

// ExecuteError is the error payload of a failed execution.
type ExecuteError struct {
	Message string `json:"message"`
}

// ExecuteWorkflow validates, limits, runs, and visualizes a caller-supplied
// query.
type ExecuteWorkflow struct {
	connections services.ConnectionService
	cfg         *config.WorkflowConfig
	logger      *zap.Logger
}

func NewExecuteWorkflow(connections services.ConnectionService, cfg *config.WorkflowConfig, logger *zap.Logger) *ExecuteWorkflow {
	return &ExecuteWorkflow{
		connections: connections,
		cfg:         cfg,
		logger:      logger.Named("workflow.execute"),
	}
}

func (w *ExecuteWorkflow) retryConfig() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = w.cfg.MaxRetries
	cfg.InitialDelay = w.cfg.InitialDelay()
	return cfg
}

// Run executes the pipeline. Validation failures are permanent and fail
// immediately; connection resolution and execution are each retried within
// their own stage timeout.
func (w *ExecuteWorkflow) Run(ctx context.Context, input ExecuteInput) (*ExecuteResult, error) {
	if err := sqlguard.Validate(input.SQL); err != nil {
		return nil, &apperrors.WorkflowError{Stage: apperrors.StageValidation, Message: "query rejected", Cause: err}
	}
	sql := sqlguard.EnsureLimit(input.SQL, sqlguard.DefaultRowLimit)

	target, cleanup, err := w.openTarget(ctx, input.UserID, input.ConnectionID)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	stageCtx, cancel := context.WithTimeout(ctx, w.cfg.StageTimeout())
	defer cancel()

	var result *models.QueryResult
	err = retry.DoIfRetryable(stageCtx, w.retryConfig(), func() error {
		result, err = target.Runner.Run(stageCtx, sql)
		return err
	})
	if err != nil {
		return nil, &apperrors.WorkflowError{Stage: apperrors.StageExecution, Message: "query execution failed", Cause: err}
	}

	viz := visualize.Select(result)

	w.logger.Info("query executed",
		zap.String("user_id", input.UserID.String()),
		zap.Int("row_count", result.RowCount),
		zap.String("visualization", string(viz.Type)))

	return &ExecuteResult{
		Success: true,
		SQL:     sql,
		Data: &ExecuteData{
			Rows:     result.Rows,
			Columns:  result.Columns,
			RowCount: result.RowCount,
		},
		Visualization: &viz,
	}, nil
}

// openTarget resolves and dials the connection under retry. Failures after
// retries are tagged with the getConnection stage; dial failures carry the
// execution-step connection tag underneath.
func (w *ExecuteWorkflow) openTarget(ctx context.Context, userID uuid.UUID, connectionID *uuid.UUID) (*agents.Target, func(), error) {
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
			return &apperrors.ExecutionError{Step: apperrors.ExecStepConnection, Message: "failed to open target", Cause: err}
		}
		target, cleanup = t, c
		return nil
	})
	if err != nil {
		return nil, nil, &apperrors.WorkflowError{Stage: apperrors.StageGetConnection, Message: "failed to resolve connection", Cause: err}
	}
	return target, cleanup, nil
}
