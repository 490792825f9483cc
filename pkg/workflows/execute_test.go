package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/agents"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/execute"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// mockConnectionService backs workflow tests. Function fields override the
// default happy-path behavior.
type mockConnectionService struct {
	ResolveFunc    func(ctx context.Context, userID uuid.UUID, connectionID *uuid.UUID) (*models.Connection, error)
	OpenTargetFunc func(ctx context.Context, conn *models.Connection) (*agents.Target, func(), error)

	ResolveCalls    int
	OpenTargetCalls int

	runner execute.Runner
}

func (m *mockConnectionService) Create(ctx context.Context, userID uuid.UUID, name, connectionString string) (*models.Connection, error) {
	return nil, errors.New("not implemented")
}

func (m *mockConnectionService) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

func (m *mockConnectionService) List(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	return nil, errors.New("not implemented")
}

func (m *mockConnectionService) Resolve(ctx context.Context, userID uuid.UUID, connectionID *uuid.UUID) (*models.Connection, error) {
	m.ResolveCalls++
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, userID, connectionID)
	}
	return &models.Connection{ID: uuid.New(), UserID: userID, SourceType: models.SourcePostgres}, nil
}

func (m *mockConnectionService) OpenTarget(ctx context.Context, conn *models.Connection) (*agents.Target, func(), error) {
	m.OpenTargetCalls++
	if m.OpenTargetFunc != nil {
		return m.OpenTargetFunc(ctx, conn)
	}
	return &agents.Target{Runner: m.runner}, func() {}, nil
}

// staticRunner returns a fixed result for every query.
type staticRunner struct {
	lastQuery string
	result    *models.QueryResult
	err       error
}

func (r *staticRunner) Run(ctx context.Context, query string) (*models.QueryResult, error) {
	r.lastQuery = query
	return r.result, r.err
}

func testWorkflowConfig() *config.WorkflowConfig {
	return &config.WorkflowConfig{
		StageTimeoutMinutes: 1,
		MaxRetries:          2,
		InitialDelayMillis:  1,
	}
}

func TestExecuteWorkflow_HappyPath(t *testing.T) {
	runner := &staticRunner{result: &models.QueryResult{
		Rows:     []map[string]any{{"region": "north", "total": int64(42)}},
		Columns:  []string{"region", "total"},
		RowCount: 1,
	}}
	svc := &mockConnectionService{runner: runner}
	wf := NewExecuteWorkflow(svc, testWorkflowConfig(), zap.NewNop())

	result, err := wf.Run(context.Background(), ExecuteInput{
		UserID: uuid.New(),
		SQL:    "SELECT region, SUM(amount) AS total FROM orders GROUP BY region",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false")
	}
	if runner.lastQuery != "SELECT region, SUM(amount) AS total FROM orders GROUP BY region LIMIT 20" {
		t.Errorf("executed query = %q, want row limit appended", runner.lastQuery)
	}
	if result.SQL != runner.lastQuery {
		t.Errorf("result SQL = %q should match the executed statement", result.SQL)
	}
	if result.Data == nil || result.Data.RowCount != 1 {
		t.Errorf("Data = %+v", result.Data)
	}
	if result.Visualization == nil || result.Visualization.Type != models.VisualizationBar {
		t.Errorf("Visualization = %+v, want bar", result.Visualization)
	}
}

func TestExecuteWorkflow_ExistingLimitKept(t *testing.T) {
	runner := &staticRunner{result: &models.QueryResult{Columns: []string{"id"}}}
	svc := &mockConnectionService{runner: runner}
	wf := NewExecuteWorkflow(svc, testWorkflowConfig(), zap.NewNop())

	_, err := wf.Run(context.Background(), ExecuteInput{
		UserID: uuid.New(),
		SQL:    "SELECT id FROM orders LIMIT 5",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if runner.lastQuery != "SELECT id FROM orders LIMIT 5" {
		t.Errorf("executed query = %q, existing limit should be kept", runner.lastQuery)
	}
}

func TestExecuteWorkflow_ValidationFailsWithoutRetry(t *testing.T) {
	svc := &mockConnectionService{}
	wf := NewExecuteWorkflow(svc, testWorkflowConfig(), zap.NewNop())

	_, err := wf.Run(context.Background(), ExecuteInput{
		UserID: uuid.New(),
		SQL:    "DROP TABLE orders",
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var wErr *apperrors.WorkflowError
	if !errors.As(err, &wErr) {
		t.Fatalf("got %T, want *apperrors.WorkflowError", err)
	}
	if wErr.Stage != apperrors.StageValidation {
		t.Errorf("Stage = %q, want validation", wErr.Stage)
	}

	var vErr *apperrors.ValidationError
	if !errors.As(err, &vErr) {
		t.Error("cause should be a ValidationError")
	}

	if svc.ResolveCalls != 0 {
		t.Error("rejected queries must never reach connection resolution")
	}
}

func TestExecuteWorkflow_TransientResolutionFailureIsRetried(t *testing.T) {
	svc := &mockConnectionService{runner: &staticRunner{result: &models.QueryResult{}}}
	failures := 2
	svc.ResolveFunc = func(ctx context.Context, userID uuid.UUID, connectionID *uuid.UUID) (*models.Connection, error) {
		if svc.ResolveCalls <= failures {
			return nil, errors.New("dial tcp: connection refused")
		}
		return &models.Connection{ID: uuid.New(), UserID: userID}, nil
	}
	wf := NewExecuteWorkflow(svc, testWorkflowConfig(), zap.NewNop())

	_, err := wf.Run(context.Background(), ExecuteInput{UserID: uuid.New(), SQL: "SELECT 1"})
	if err != nil {
		t.Fatalf("Run() error = %v, transient failures should be retried", err)
	}
	if svc.ResolveCalls != failures+1 {
		t.Errorf("Resolve called %d times, want %d", svc.ResolveCalls, failures+1)
	}
}

func TestExecuteWorkflow_ExhaustedRetriesTagGetConnection(t *testing.T) {
	svc := &mockConnectionService{}
	svc.OpenTargetFunc = func(ctx context.Context, conn *models.Connection) (*agents.Target, func(), error) {
		return nil, nil, errors.New("dial tcp: connection refused")
	}
	wf := NewExecuteWorkflow(svc, testWorkflowConfig(), zap.NewNop())

	_, err := wf.Run(context.Background(), ExecuteInput{UserID: uuid.New(), SQL: "SELECT 1"})
	if err == nil {
		t.Fatal("expected error")
	}

	var wErr *apperrors.WorkflowError
	if !errors.As(err, &wErr) {
		t.Fatalf("got %T, want *apperrors.WorkflowError", err)
	}
	if wErr.Stage != apperrors.StageGetConnection {
		t.Errorf("Stage = %q, want getConnection", wErr.Stage)
	}

	// Dial failures carry the execution connection step underneath.
	var eErr *apperrors.ExecutionError
	if !errors.As(err, &eErr) {
		t.Fatal("cause should be an ExecutionError")
	}
	if eErr.Step != apperrors.ExecStepConnection {
		t.Errorf("Step = %q, want connection", eErr.Step)
	}

	if svc.OpenTargetCalls != 3 {
		t.Errorf("OpenTarget called %d times, want 3 (initial + 2 retries)", svc.OpenTargetCalls)
	}
}

func TestExecuteWorkflow_UnknownConnectionFailsFast(t *testing.T) {
	svc := &mockConnectionService{}
	svc.ResolveFunc = func(ctx context.Context, userID uuid.UUID, connectionID *uuid.UUID) (*models.Connection, error) {
		return nil, apperrors.ErrNotFound
	}
	wf := NewExecuteWorkflow(svc, testWorkflowConfig(), zap.NewNop())

	_, err := wf.Run(context.Background(), ExecuteInput{UserID: uuid.New(), SQL: "SELECT 1"})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("error should preserve ErrNotFound, got %v", err)
	}
	if svc.ResolveCalls != 1 {
		t.Errorf("Resolve called %d times, permanent failures must not be retried", svc.ResolveCalls)
	}
}

// flakyRunner fails a fixed number of times before succeeding.
type flakyRunner struct {
	failures int
	calls    int
	result   *models.QueryResult
}

func (r *flakyRunner) Run(ctx context.Context, query string) (*models.QueryResult, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, &apperrors.ExecutionError{
			Step:    apperrors.ExecStepExecution,
			Message: "query failed",
			Cause:   errors.New("read tcp: connection reset by peer"),
		}
	}
	return r.result, nil
}

func TestExecuteWorkflow_TransientExecutionFailureIsRetried(t *testing.T) {
	runner := &flakyRunner{failures: 1, result: &models.QueryResult{Columns: []string{"id"}}}
	svc := &mockConnectionService{runner: runner}
	wf := NewExecuteWorkflow(svc, testWorkflowConfig(), zap.NewNop())

	result, err := wf.Run(context.Background(), ExecuteInput{UserID: uuid.New(), SQL: "SELECT 1"})
	if err != nil {
		t.Fatalf("Run() error = %v, transient execution failures should be retried", err)
	}
	if !result.Success {
		t.Error("Success = false")
	}
	if runner.calls != 2 {
		t.Errorf("Run called %d times, want 2 (initial + 1 retry)", runner.calls)
	}
}

func TestExecuteWorkflow_ExecutionFailureTagsStage(t *testing.T) {
	runner := &staticRunner{err: &apperrors.ExecutionError{
		Step:    apperrors.ExecStepExecution,
		Message: "query failed",
		Cause:   errors.New(`relation "orderss" does not exist`),
	}}
	svc := &mockConnectionService{runner: runner}
	wf := NewExecuteWorkflow(svc, testWorkflowConfig(), zap.NewNop())

	_, err := wf.Run(context.Background(), ExecuteInput{UserID: uuid.New(), SQL: "SELECT * FROM orderss"})

	var wErr *apperrors.WorkflowError
	if !errors.As(err, &wErr) {
		t.Fatalf("got %T, want *apperrors.WorkflowError", err)
	}
	if wErr.Stage != apperrors.StageExecution {
		t.Errorf("Stage = %q, want execution", wErr.Stage)
	}
}
