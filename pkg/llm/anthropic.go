package llm

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

const anthropicMaxTokens = 4096

// AnthropicClient is a ToolLoopClient over the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	logger *zap.Logger
}

var _ ToolLoopClient = (*AnthropicClient)(nil)

// NewAnthropicClient creates a client for the Anthropic API. An empty
// baseURL uses the default endpoint.
func NewAnthropicClient(baseURL, apiKey string, logger *zap.Logger) *AnthropicClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey, opts...),
		logger: logger.Named("llm.anthropic"),
	}
}

// GenerateWithTools runs the tool loop against the Messages API. Tool
// results go back as user-role tool_result blocks per the Anthropic wire
// format; the returned history uses the engine's flat message form.
func (c *AnthropicClient) GenerateWithTools(ctx context.Context, req *Request, executor ToolExecutor) (*Result, error) {
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = 0.3
	}

	history := append([]models.Message(nil), req.Messages...)
	wire := buildAnthropicMessages(history)
	tools := buildAnthropicTools(req.Tools)

	for iteration := 0; iteration < maxIterations; iteration++ {
		c.logger.Debug("tool loop iteration",
			zap.Int("iteration", iteration),
			zap.Int("message_count", len(wire)))

		resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:       anthropic.Model(req.Model),
			System:      req.SystemPrompt,
			Messages:    wire,
			MaxTokens:   anthropicMaxTokens,
			Tools:       tools,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, ClassifyError(err)
		}

		var text string
		var toolCalls []models.ToolCall
		for _, block := range resp.Content {
			switch {
			case block.Type == "text" && block.Text != nil:
				text += *block.Text
			case block.Type == "tool_use" && block.MessageContentToolUse != nil:
				use := block.MessageContentToolUse
				args, _ := json.Marshal(use.Input)
				toolCalls = append(toolCalls, models.ToolCall{
					ID:        use.ID,
					Name:      use.Name,
					Arguments: string(args),
				})
			}
		}

		history = append(history, models.Message{
			Role:      models.RoleAssistant,
			Content:   text,
			ToolCalls: toolCalls,
		})
		wire = append(wire, anthropic.Message{Role: anthropic.RoleAssistant, Content: resp.Content})

		if len(toolCalls) == 0 {
			return &Result{Content: text, Messages: history}, nil
		}

		var resultBlocks []anthropic.MessageContent
		for _, tc := range toolCalls {
			result, execErr := executor.ExecuteTool(ctx, tc.Name, tc.Arguments)
			isError := execErr != nil
			if isError {
				result = fmt.Sprintf("Error executing tool: %s", execErr.Error())
			}
			history = append(history, models.Message{
				Role:       models.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
			resultBlocks = append(resultBlocks, anthropic.NewToolResultMessageContent(tc.ID, result, isError))
		}
		wire = append(wire, anthropic.Message{Role: anthropic.RoleUser, Content: resultBlocks})
	}

	return nil, fmt.Errorf("exceeded maximum tool iterations (%d)", maxIterations)
}

// buildAnthropicMessages converts stored flat history into wire messages.
// Stored tool turns become user-role tool_result blocks; stored assistant
// tool calls are re-encoded as tool_use blocks so resumed threads keep the
// pairing the API requires.
func buildAnthropicMessages(history []models.Message) []anthropic.Message {
	var wire []anthropic.Message
	for _, msg := range history {
		switch msg.Role {
		case models.RoleUser:
			wire = append(wire, anthropic.NewUserTextMessage(msg.Content))
		case models.RoleAssistant:
			content := []anthropic.MessageContent{}
			if msg.Content != "" {
				content = append(content, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				content = append(content, anthropic.NewToolUseMessageContent(tc.ID, tc.Name, json.RawMessage(tc.Arguments)))
			}
			wire = append(wire, anthropic.Message{Role: anthropic.RoleAssistant, Content: content})
		case models.RoleTool:
			wire = append(wire, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewToolResultMessageContent(msg.ToolCallID, msg.Content, false)},
			})
		}
	}
	return wire
}

func buildAnthropicTools(tools []ToolDefinition) []anthropic.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropic.ToolDefinition, len(tools))
	for i, def := range tools {
		result[i] = anthropic.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Parameters,
		}
	}
	return result
}
