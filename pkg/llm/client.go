// Package llm provides tool-calling LLM clients over OpenAI-compatible and
// Anthropic chat APIs.
package llm

import (
	"context"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// ToolExecutor defines the interface for executing tools. Execution errors
// are returned to the model as tool results, not surfaced to the caller.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, arguments string) (string, error)
}

// Request is one tool-loop invocation. MaxIterations bounds the number of
// model round trips; a model that never stops calling tools fails the
// request rather than looping forever.
type Request struct {
	Model         string
	SystemPrompt  string
	Messages      []models.Message
	Tools         []ToolDefinition
	Temperature   float64
	MaxIterations int
}

// Result carries the model's final text plus the full conversation as it
// stood when the loop finished, tool turns included. Callers persist
// Messages as the new thread history.
type Result struct {
	Content  string
	Messages []models.Message
}

// ToolLoopClient runs a conversation to completion, dispatching tool calls
// through the executor until the model answers in plain text.
type ToolLoopClient interface {
	GenerateWithTools(ctx context.Context, req *Request, executor ToolExecutor) (*Result, error)
}
