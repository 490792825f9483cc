package llm

import (
	"context"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// MockClient is a configurable mock for testing tool-loop consumers.
// Set the function field to control behavior in tests.
type MockClient struct {
	// GenerateWithToolsFunc is called when GenerateWithTools is invoked.
	// If nil, returns an empty result and nil error.
	GenerateWithToolsFunc func(ctx context.Context, req *Request, executor ToolExecutor) (*Result, error)

	// Call tracking for verification
	GenerateWithToolsCalls int
	// Requests records every request passed in, in order.
	Requests []*Request
}

var _ ToolLoopClient = (*MockClient)(nil)

// NewMockClient creates a new mock.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// GenerateWithTools implements ToolLoopClient.
func (m *MockClient) GenerateWithTools(ctx context.Context, req *Request, executor ToolExecutor) (*Result, error) {
	m.GenerateWithToolsCalls++
	m.Requests = append(m.Requests, req)
	if m.GenerateWithToolsFunc != nil {
		return m.GenerateWithToolsFunc(ctx, req, executor)
	}
	return &Result{Messages: append([]models.Message(nil), req.Messages...)}, nil
}
