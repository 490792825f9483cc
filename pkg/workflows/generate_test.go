package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/agents"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

type mockContextService struct {
	GatherContextFunc func(ctx context.Context, target *agents.Target, userID uuid.UUID, userQuery, threadID string) (string, error)
	Calls             int
}

func (m *mockContextService) GatherContext(ctx context.Context, target *agents.Target, userID uuid.UUID, userQuery, threadID string) (string, error) {
	m.Calls++
	if m.GatherContextFunc != nil {
		return m.GatherContextFunc(ctx, target, userID, userQuery, threadID)
	}
	return "Table orders: ...", nil
}

type mockGeneratorService struct {
	GenerateFunc func(ctx context.Context, target *agents.Target, schemaContext, userQuery, threadID string) (string, error)
	Calls        int

	lastContext string
}

func (m *mockGeneratorService) Generate(ctx context.Context, target *agents.Target, schemaContext, userQuery, threadID string) (string, error) {
	m.Calls++
	m.lastContext = schemaContext
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, target, schemaContext, userQuery, threadID)
	}
	return "SELECT 1 LIMIT 20", nil
}

func TestGenerateWorkflow_HappyPath(t *testing.T) {
	svc := &mockConnectionService{}
	contextSvc := &mockContextService{}
	generator := &mockGeneratorService{}
	wf := NewGenerateWorkflow(svc, contextSvc, generator, testWorkflowConfig(), zap.NewNop())

	result, err := wf.Run(context.Background(), GenerateInput{
		UserID:     uuid.New(),
		UserPrompt: "how many orders per region?",
		ThreadID:   "thread-1",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Query != "SELECT 1 LIMIT 20" {
		t.Errorf("Query = %q", result.Query)
	}

	// The context stage output feeds the generation stage.
	if generator.lastContext != "Table orders: ..." {
		t.Errorf("generator received context %q", generator.lastContext)
	}
	if contextSvc.Calls != 1 || generator.Calls != 1 {
		t.Errorf("calls: context=%d generator=%d", contextSvc.Calls, generator.Calls)
	}
}

func TestGenerateWorkflow_DialFailureTagsIntrospectionStep(t *testing.T) {
	svc := &mockConnectionService{}
	svc.OpenTargetFunc = func(ctx context.Context, conn *models.Connection) (*agents.Target, func(), error) {
		return nil, nil, errors.New("dial tcp: connection refused")
	}
	wf := NewGenerateWorkflow(svc, &mockContextService{}, &mockGeneratorService{}, testWorkflowConfig(), zap.NewNop())

	_, err := wf.Run(context.Background(), GenerateInput{UserID: uuid.New(), UserPrompt: "q", ThreadID: "t"})
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

	// Opening the target for introspection tags dial failures with the
	// createConnection step.
	var iErr *apperrors.IntrospectionError
	if !errors.As(err, &iErr) {
		t.Fatal("cause should be an IntrospectionError")
	}
	if iErr.Step != apperrors.StepCreateConnection {
		t.Errorf("Step = %q, want createConnection", iErr.Step)
	}

	if svc.OpenTargetCalls != 3 {
		t.Errorf("OpenTarget called %d times, want 3 (initial + 2 retries)", svc.OpenTargetCalls)
	}
}

func TestGenerateWorkflow_ContextFailureTagsStage(t *testing.T) {
	contextSvc := &mockContextService{
		GatherContextFunc: func(ctx context.Context, target *agents.Target, userID uuid.UUID, userQuery, threadID string) (string, error) {
			return "", &apperrors.ContextError{Message: "context agent failed", Cause: errors.New("model not found")}
		},
	}
	generator := &mockGeneratorService{}
	wf := NewGenerateWorkflow(&mockConnectionService{}, contextSvc, generator, testWorkflowConfig(), zap.NewNop())

	_, err := wf.Run(context.Background(), GenerateInput{UserID: uuid.New(), UserPrompt: "q", ThreadID: "t"})

	var wErr *apperrors.WorkflowError
	if !errors.As(err, &wErr) {
		t.Fatalf("got %T, want *apperrors.WorkflowError", err)
	}
	if wErr.Stage != apperrors.StageGenerateContext {
		t.Errorf("Stage = %q, want generateContext", wErr.Stage)
	}

	// Permanent failures are not retried and never reach generation.
	if contextSvc.Calls != 1 {
		t.Errorf("GatherContext called %d times, want 1", contextSvc.Calls)
	}
	if generator.Calls != 0 {
		t.Error("generation must not run after a context failure")
	}
}

func TestGenerateWorkflow_TransientGenerationFailureIsRetried(t *testing.T) {
	generator := &mockGeneratorService{}
	generator.GenerateFunc = func(ctx context.Context, target *agents.Target, schemaContext, userQuery, threadID string) (string, error) {
		if generator.Calls == 1 {
			return "", &apperrors.GenerationError{Message: "sql agent failed", Cause: errors.New("429 rate limit exceeded")}
		}
		return "SELECT 1 LIMIT 20", nil
	}
	wf := NewGenerateWorkflow(&mockConnectionService{}, &mockContextService{}, generator, testWorkflowConfig(), zap.NewNop())

	result, err := wf.Run(context.Background(), GenerateInput{UserID: uuid.New(), UserPrompt: "q", ThreadID: "t"})
	if err != nil {
		t.Fatalf("Run() error = %v, transient failures should be retried", err)
	}
	if result.Query != "SELECT 1 LIMIT 20" {
		t.Errorf("Query = %q", result.Query)
	}
	if generator.Calls != 2 {
		t.Errorf("Generate called %d times, want 2", generator.Calls)
	}
}

func TestGenerateWorkflow_GenerationFailureTagsStage(t *testing.T) {
	generator := &mockGeneratorService{
		GenerateFunc: func(ctx context.Context, target *agents.Target, schemaContext, userQuery, threadID string) (string, error) {
			return "", &apperrors.GenerationError{Message: "sql agent returned an unsafe query"}
		},
	}
	wf := NewGenerateWorkflow(&mockConnectionService{}, &mockContextService{}, generator, testWorkflowConfig(), zap.NewNop())

	_, err := wf.Run(context.Background(), GenerateInput{UserID: uuid.New(), UserPrompt: "q", ThreadID: "t"})

	var wErr *apperrors.WorkflowError
	if !errors.As(err, &wErr) {
		t.Fatalf("got %T, want *apperrors.WorkflowError", err)
	}
	if wErr.Stage != apperrors.StageGenerateSQL {
		t.Errorf("Stage = %q, want generateSql", wErr.Stage)
	}
}
