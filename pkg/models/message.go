package models

// Message roles follow the chat-completions convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a model-requested tool invocation. Arguments is the raw JSON
// argument object as produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one turn in an agent conversation. Tool-result messages carry
// the originating ToolCallID; assistant messages may carry ToolCalls.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// NoHistoryPlaceholder is the synthetic turn returned for a thread with no
// stored history. Readers always receive at least this one message.
func NoHistoryPlaceholder() []Message {
	return []Message{{Role: RoleUser, Content: "no message history."}}
}
