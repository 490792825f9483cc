// Package agents implements the two tool-calling agents: schema context
// gathering and SQL generation.
package agents

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/history"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/llm"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/prompts"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/repositories"
)

// historyAgentContext keys context-agent threads in the history store.
const historyAgentContext = "getContextAgent"

// ContextAgent explores a target schema to assemble the context string the
// generator works from.
type ContextAgent struct {
	client  llm.ToolLoopClient
	history history.Store
	files   repositories.UserFileRepository
	cfg     *config.LLMConfig
	logger  *zap.Logger
}

var _ ContextGatherer = (*ContextAgent)(nil)

func NewContextAgent(
	client llm.ToolLoopClient,
	historyStore history.Store,
	files repositories.UserFileRepository,
	cfg *config.LLMConfig,
	logger *zap.Logger,
) *ContextAgent {
	return &ContextAgent{
		client:  client,
		history: historyStore,
		files:   files,
		cfg:     cfg,
		logger:  logger.Named("agent.context"),
	}
}

// GatherContext runs the exploration loop for a user thread. The thread's
// prior turns are replayed to the model and the post-run conversation is
// written back in full.
func (a *ContextAgent) GatherContext(ctx context.Context, target *Target, userID uuid.UUID, userQuery, threadID string) (string, error) {
	thread, err := a.history.Get(ctx, historyAgentContext, threadID)
	if err != nil {
		return "", &apperrors.ContextError{Message: "failed to load message history", Cause: err}
	}

	thread = append(thread, models.Message{Role: models.RoleUser, Content: prompts.ContextUserTurn(userQuery)})
	turn, err := a.attachmentsTurn(ctx, userID)
	if err != nil {
		return "", &apperrors.ContextError{Message: "failed to list user files", Cause: err}
	}
	if turn != "" {
		thread = append(thread, models.Message{Role: models.RoleUser, Content: turn})
	}

	result, err := a.run(ctx, target, thread)
	if err != nil {
		return "", err
	}

	if err := a.history.Set(ctx, historyAgentContext, threadID, result.Messages); err != nil {
		return "", &apperrors.ContextError{Message: "failed to store message history", Cause: err}
	}
	return result.Content, nil
}

// Explore is the one-shot variant used when the generator delegates via its
// getContext tool. No thread state is read or written.
func (a *ContextAgent) Explore(ctx context.Context, target *Target, userQuery string) (string, error) {
	result, err := a.run(ctx, target, []models.Message{
		{Role: models.RoleUser, Content: prompts.SubAgentTurn(userQuery)},
	})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (a *ContextAgent) run(ctx context.Context, target *Target, thread []models.Message) (*llm.Result, error) {
	executor := &schemaToolExecutor{target: target, logger: a.logger}

	result, err := a.client.GenerateWithTools(ctx, &llm.Request{
		Model:         a.cfg.ContextModel,
		SystemPrompt:  prompts.ContextGathering,
		Messages:      thread,
		Tools:         ContextTools(),
		MaxIterations: a.cfg.ContextMaxIterations,
	}, executor)
	if err != nil {
		return nil, &apperrors.ContextError{Message: "context agent failed", Cause: err}
	}
	return result, nil
}

// attachmentsTurn lists the user's uploaded reference files. A lookup
// failure fails the request; the workflow's retry layer is the recovery
// point for transient store errors.
func (a *ContextAgent) attachmentsTurn(ctx context.Context, userID uuid.UUID) (string, error) {
	if a.files == nil || userID == uuid.Nil {
		return "", nil
	}
	files, err := a.files.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	urls := make([]string, len(files))
	for i, f := range files {
		urls[i] = f.FileURL + " (" + f.MediaType + ")"
	}
	return prompts.ContextAttachments(urls), nil
}
