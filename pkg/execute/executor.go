// Package execute runs validated read queries against target databases.
package execute

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/logging"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// Runner executes SQL against one target pool.
type Runner interface {
	Run(ctx context.Context, query string) (*models.QueryResult, error)
}

// Executor runs queries on a pgx pool. Column names come from result-set
// metadata so empty results still report their shape.
type Executor struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Runner = (*Executor)(nil)

func NewExecutor(pool *pgxpool.Pool, logger *zap.Logger) *Executor {
	return &Executor{
		pool:   pool,
		logger: logger.Named("execute"),
	}
}

// Run executes the query and materializes the result set. The caller is
// expected to have validated and limited the statement already.
func (e *Executor) Run(ctx context.Context, query string) (*models.QueryResult, error) {
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		e.logger.Warn("query failed",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, &apperrors.ExecutionError{Step: apperrors.ExecStepExecution, Message: "query failed", Cause: err}
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &apperrors.ExecutionError{Step: apperrors.ExecStepExecution, Message: "failed to read row values", Cause: err}
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperrors.ExecutionError{Step: apperrors.ExecStepExecution, Message: "error iterating rows", Cause: err}
	}

	return &models.QueryResult{
		Rows:     resultRows,
		Columns:  columns,
		RowCount: len(resultRows),
	}, nil
}
