package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/history"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/llm"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

func testLLMConfig() *config.LLMConfig {
	return &config.LLMConfig{
		ContextModel:           "test/context-model",
		GeneratorModel:         "test/generator-model",
		ContextMaxIterations:   20,
		GeneratorMaxIterations: 30,
	}
}

func TestContextAgent_GatherContext(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateWithToolsFunc = func(ctx context.Context, req *llm.Request, executor llm.ToolExecutor) (*llm.Result, error) {
		msgs := append([]models.Message(nil), req.Messages...)
		msgs = append(msgs, models.Message{Role: models.RoleAssistant, Content: "orders references customers"})
		return &llm.Result{Content: "orders references customers", Messages: msgs}, nil
	}

	store := history.NewMemoryStore()
	agent := NewContextAgent(client, store, nil, testLLMConfig(), zap.NewNop())

	got, err := agent.GatherContext(context.Background(), testTarget(nil), uuid.Nil, "orders per customer", "thread-1")
	if err != nil {
		t.Fatalf("GatherContext() error = %v", err)
	}
	if got != "orders references customers" {
		t.Errorf("context = %q", got)
	}

	if client.GenerateWithToolsCalls != 1 {
		t.Fatalf("GenerateWithTools called %d times", client.GenerateWithToolsCalls)
	}
	req := client.Requests[0]
	if req.Model != "test/context-model" {
		t.Errorf("model = %q", req.Model)
	}
	if req.MaxIterations != 20 {
		t.Errorf("MaxIterations = %d, want 20", req.MaxIterations)
	}
	if len(req.Tools) != 2 {
		t.Errorf("context agent should expose 2 tools, got %d", len(req.Tools))
	}
	if req.SystemPrompt == "" {
		t.Error("system prompt should be set")
	}

	// A fresh thread starts from the placeholder, then the user turn.
	if len(req.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(req.Messages))
	}
	if req.Messages[0].Content != "no message history." {
		t.Errorf("first message = %q", req.Messages[0].Content)
	}
	if !strings.Contains(req.Messages[1].Content, "orders per customer") {
		t.Errorf("user turn should carry the question: %q", req.Messages[1].Content)
	}

	// The whole post-run conversation is persisted.
	stored, err := store.Get(context.Background(), "getContextAgent", "thread-1")
	if err != nil {
		t.Fatalf("history Get() error = %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored %d messages, want 3", len(stored))
	}
	if stored[2].Role != models.RoleAssistant {
		t.Errorf("last stored turn = %+v", stored[2])
	}
}

func TestContextAgent_GatherContextClientFailure(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateWithToolsFunc = func(ctx context.Context, req *llm.Request, executor llm.ToolExecutor) (*llm.Result, error) {
		return nil, errors.New("model overloaded")
	}

	store := history.NewMemoryStore()
	agent := NewContextAgent(client, store, nil, testLLMConfig(), zap.NewNop())

	_, err := agent.GatherContext(context.Background(), testTarget(nil), uuid.Nil, "q", "thread-1")
	if err == nil {
		t.Fatal("expected error")
	}

	var cErr *apperrors.ContextError
	if !errors.As(err, &cErr) {
		t.Fatalf("got %T, want *apperrors.ContextError", err)
	}

	// A failed run must not overwrite the thread.
	stored, _ := store.Get(context.Background(), "getContextAgent", "thread-1")
	if len(stored) != 1 || stored[0].Content != "no message history." {
		t.Errorf("history should be untouched after failure, got %+v", stored)
	}
}

// failingFileRepo always errors on listing.
type failingFileRepo struct{ err error }

func (r *failingFileRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserFile, error) {
	return nil, r.err
}

func TestContextAgent_GatherContextFileLookupFailure(t *testing.T) {
	client := llm.NewMockClient()
	store := history.NewMemoryStore()
	files := &failingFileRepo{err: errors.New("read tcp: connection reset by peer")}
	agent := NewContextAgent(client, store, files, testLLMConfig(), zap.NewNop())

	_, err := agent.GatherContext(context.Background(), testTarget(nil), uuid.New(), "q", "thread-1")
	if err == nil {
		t.Fatal("expected error when the file lookup fails")
	}

	var cErr *apperrors.ContextError
	if !errors.As(err, &cErr) {
		t.Fatalf("got %T, want *apperrors.ContextError", err)
	}
	if !errors.Is(err, files.err) {
		t.Error("cause should be preserved for the retry layer's classification")
	}
	if client.GenerateWithToolsCalls != 0 {
		t.Error("model must not be called when attachments cannot be listed")
	}
}

func TestContextAgent_Explore(t *testing.T) {
	client := llm.NewMockClient()
	client.GenerateWithToolsFunc = func(ctx context.Context, req *llm.Request, executor llm.ToolExecutor) (*llm.Result, error) {
		return &llm.Result{Content: "schema notes", Messages: req.Messages}, nil
	}

	store := history.NewMemoryStore()
	agent := NewContextAgent(client, store, nil, testLLMConfig(), zap.NewNop())

	got, err := agent.Explore(context.Background(), testTarget(nil), "which tables hold revenue?")
	if err != nil {
		t.Fatalf("Explore() error = %v", err)
	}
	if got != "schema notes" {
		t.Errorf("Explore() = %q", got)
	}

	// One-shot exploration never touches thread state.
	req := client.Requests[0]
	if len(req.Messages) != 1 {
		t.Errorf("Explore should send a single turn, got %d", len(req.Messages))
	}
}
