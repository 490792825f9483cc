package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

const defaultMaxIterations = 10

// OpenAIClient is a ToolLoopClient over any OpenAI-compatible chat
// completions endpoint, including OpenRouter.
type OpenAIClient struct {
	client *openai.Client
	logger *zap.Logger
}

var _ ToolLoopClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client for the given endpoint.
func NewOpenAIClient(baseURL, apiKey string, logger *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger.Named("llm.openai"),
	}
}

// GenerateWithTools runs the tool loop until the model stops requesting
// tools or the iteration budget runs out.
func (c *OpenAIClient) GenerateWithTools(ctx context.Context, req *Request, executor ToolExecutor) (*Result, error) {
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = 0.3 // Lower temp for deterministic tool use
	}

	history := append([]models.Message(nil), req.Messages...)
	tools := buildOpenAITools(req.Tools)

	for iteration := 0; iteration < maxIterations; iteration++ {
		c.logger.Debug("tool loop iteration",
			zap.Int("iteration", iteration),
			zap.Int("message_count", len(history)))

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       req.Model,
			Messages:    buildOpenAIMessages(history, req.SystemPrompt),
			Tools:       tools,
			Temperature: temperature,
		})
		if err != nil {
			return nil, ClassifyError(err)
		}
		if len(resp.Choices) == 0 {
			return nil, NewError(ErrorTypeUnknown, "no choices in response", true, nil)
		}

		choice := resp.Choices[0]
		assistant := models.Message{
			Role:    models.RoleAssistant,
			Content: choice.Message.Content,
		}
		for _, tc := range choice.Message.ToolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, models.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		history = append(history, assistant)

		// No tool calls means we're done
		if len(assistant.ToolCalls) == 0 {
			return &Result{Content: assistant.Content, Messages: history}, nil
		}

		for _, tc := range assistant.ToolCalls {
			result, execErr := executor.ExecuteTool(ctx, tc.Name, tc.Arguments)
			if execErr != nil {
				result = fmt.Sprintf("Error executing tool: %s", execErr.Error())
			}
			history = append(history, models.Message{
				Role:       models.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	return nil, fmt.Errorf("exceeded maximum tool iterations (%d)", maxIterations)
}

func buildOpenAIMessages(history []models.Message, systemPrompt string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, msg := range history {
		converted := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		messages = append(messages, converted)
	}
	return messages
}

func buildOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, len(tools))
	for i, def := range tools {
		paramsJSON, _ := json.Marshal(def.Parameters)
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(paramsJSON),
			},
		}
	}
	return result
}
