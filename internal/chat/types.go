package chat

import "time"

// Sender 标识一条对话消息的来源
// Sender identifies who produced a transcript message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
	SenderError Sender = "error"
)

// SuggestedAction is a follow-up chip offered by the planner: the label is shown,
// the prompt is what gets submitted when the user picks it.
type SuggestedAction struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// Message 对话记录中的一条消息，追加后不可变
// Message is one transcript entry. Messages are immutable once appended.
type Message struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Sender    Sender            `json:"sender"`
	Images    []string          `json:"images,omitempty"`
	Suggested []SuggestedAction `json:"suggested,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Clone returns a deep copy so callers can hand messages across goroutines.
func (m Message) Clone() Message {
	out := m
	out.Images = append([]string(nil), m.Images...)
	out.Suggested = append([]SuggestedAction(nil), m.Suggested...)
	return out
}

// ToolCall 规划器下发的一次工具调用，只能被消费一次
// ToolCall is a planner-issued request to run one named local operation.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult 每个 ToolCall 恰好产生一个 ToolResult
// ToolResult is produced exactly once per ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// ToolFunction describes an OpenAI-compatible function tool definition.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolDef describes one function tool exposed to the model.
type ToolDef struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ModelMessage 发给 LLM 的角色消息（仅本地规划器使用）
// ModelMessage is one role-tagged entry of a chat-completion history, used by
// the local planner. It is separate from the user-visible transcript.
type ModelMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []ModelToolCall `json:"tool_calls,omitempty"`
}

// ModelToolCall is a function call as it appears in a chat-completion history.
type ModelToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
