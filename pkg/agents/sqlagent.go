package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/history"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/llm"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/prompts"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/sqlguard"
)

// historyAgentGenerator keys generator threads in the history store.
const historyAgentGenerator = "generateSqlAgent"

// sqlOutput is the generator's structured final answer.
type sqlOutput struct {
	Query string `json:"query"`
}

// SQLAgent turns a question plus schema context into a tested SELECT query.
type SQLAgent struct {
	client   llm.ToolLoopClient
	history  history.Store
	subAgent ContextGatherer
	cfg      *config.LLMConfig
	logger   *zap.Logger
}

func NewSQLAgent(
	client llm.ToolLoopClient,
	historyStore history.Store,
	subAgent ContextGatherer,
	cfg *config.LLMConfig,
	logger *zap.Logger,
) *SQLAgent {
	return &SQLAgent{
		client:   client,
		history:  historyStore,
		subAgent: subAgent,
		cfg:      cfg,
		logger:   logger.Named("agent.sql"),
	}
}

// Generate runs the generation loop for a thread and returns the final
// query. The model self-tests candidates through its testQuery tool before
// answering; the final answer is still validated here before it is trusted.
func (a *SQLAgent) Generate(ctx context.Context, target *Target, schemaContext, userQuery, threadID string) (string, error) {
	thread, err := a.history.Get(ctx, historyAgentGenerator, threadID)
	if err != nil {
		return "", &apperrors.GenerationError{Message: "failed to load message history", Cause: err}
	}
	thread = append(thread, models.Message{
		Role:    models.RoleUser,
		Content: prompts.GeneratorUserTurn(schemaContext, userQuery),
	})

	executor := &generatorToolExecutor{
		schemaToolExecutor: schemaToolExecutor{target: target, logger: a.logger},
		subAgent:           a.subAgent,
	}

	result, err := a.client.GenerateWithTools(ctx, &llm.Request{
		Model:         a.cfg.GeneratorModel,
		SystemPrompt:  prompts.SQLGenerator,
		Messages:      thread,
		Tools:         GeneratorTools(),
		MaxIterations: a.cfg.GeneratorMaxIterations,
	}, executor)
	if err != nil {
		return "", &apperrors.GenerationError{Message: "sql agent failed", Cause: err}
	}

	output, err := llm.ParseJSONResponse[sqlOutput](result.Content)
	if err != nil {
		return "", &apperrors.GenerationError{Message: "sql agent returned malformed output", Cause: err}
	}
	if output.Query == "" {
		return "", &apperrors.GenerationError{Message: "sql agent returned an empty query"}
	}
	if err := sqlguard.Validate(output.Query); err != nil {
		return "", &apperrors.GenerationError{Message: "sql agent returned an unsafe query", Cause: err}
	}

	if err := a.history.Set(ctx, historyAgentGenerator, threadID, result.Messages); err != nil {
		return "", &apperrors.GenerationError{Message: "failed to store message history", Cause: err}
	}

	a.logger.Info("query generated",
		zap.String("thread_id", threadID),
		zap.Int("turns", len(result.Messages)))
	return output.Query, nil
}
