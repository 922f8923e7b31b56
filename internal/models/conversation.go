// Package models contains shared types for the turnctl project.
//
// Corresponds to: codex-rs/core/src/protocol/models.rs
package models

// ConversationItemType represents the type of a conversation item.
//
// Maps to: codex-rs/core/src/protocol/models.rs ResponseItem variants
type ConversationItemType string

const (
	ItemTypeUserMessage      ConversationItemType = "user_message"
	ItemTypeAssistantMessage ConversationItemType = "assistant_message"
	ItemTypeFunctionCall     ConversationItemType = "function_call"
	ItemTypeFunctionCallOutput ConversationItemType = "function_call_output"
	// ItemTypeToolCall/ItemTypeToolResult are retained for MCP-tool display
	// items that are not dispatched as function calls.
	ItemTypeToolCall   ConversationItemType = "tool_call"
	ItemTypeToolResult ConversationItemType = "tool_result"
	// ItemTypeTurnStarted/ItemTypeTurnComplete bracket a single turn in
	// history, letting DropOldestUserTurns and compaction find turn
	// boundaries without a side table.
	ItemTypeTurnStarted  ConversationItemType = "turn_started"
	ItemTypeTurnComplete ConversationItemType = "turn_complete"
	// ItemTypeModelSwitch carries a developer-role message describing a
	// mid-session model change. Stripped before compaction and re-added
	// afterward so the new model keeps its transition context.
	ItemTypeModelSwitch ConversationItemType = "model_switch"
	// ItemTypeCompacted marks the synthetic summary item produced by the
	// compactor, so ContinueAsNew replay can recognize it was already
	// compacted and not re-summarize it.
	ItemTypeCompacted ConversationItemType = "compacted"
)

// FunctionCallOutputPayload carries the result of a dispatched tool call.
//
// Maps to: codex-rs/core/src/protocol/models.rs FunctionCallOutputPayload
type FunctionCallOutputPayload struct {
	Content string `json:"content"`
	Success *bool  `json:"success,omitempty"`
}

// ConversationItem represents a single item in the conversation history.
//
// A single struct (rather than a tagged union) holds the union of fields
// needed by every item Type; unused fields are left zero. This mirrors the
// flattened wire shape codex-rs uses for ResponseItem serialization.
//
// Maps to: codex-rs/core/src/protocol/models.rs ConversationItem
type ConversationItem struct {
	Type ConversationItemType `json:"type"`

	// Seq is assigned by the history store on insert; used for
	// get_state_update long-polling (SinceSeq) and replay ordering.
	Seq int `json:"seq"`

	// TurnID identifies which turn produced this item. Set on every item
	// added during runAgenticTurn.
	TurnID string `json:"turn_id,omitempty"`

	// Role/Content: user_message, assistant_message, model_switch items.
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`

	// CallID/Name/Arguments: function_call items.
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// Output: function_call_output items, keyed by the originating CallID.
	Output *FunctionCallOutputPayload `json:"output,omitempty"`

	// Legacy MCP-display fields, retained for tool_call/tool_result items.
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolOutput string     `json:"tool_output,omitempty"`
	ToolError  string     `json:"tool_error,omitempty"`
}

// ToolCall represents a request to call a tool.
//
// Maps to: codex-rs/core/src/protocol/models.rs ToolCall
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult represents the result of a tool execution.
//
// Maps to: codex-rs/core/src/tools/types.rs ToolResult
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FinishReason indicates why the LLM stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"           // Natural completion
	FinishReasonToolCalls     FinishReason = "tool_calls"     // LLM wants to call tools
	FinishReasonLength        FinishReason = "length"         // Hit token limit
	FinishReasonContentFilter FinishReason = "content_filter" // Content filtered
)

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	CachedTokens     int `json:"cached_tokens,omitempty"`
}

// WebSearchMode controls whether the model may issue built-in web-search
// tool calls. Maps to: codex-rs/core/src/client_common.rs WebSearchMode
type WebSearchMode string

const (
	WebSearchModeOff  WebSearchMode = "off"
	WebSearchModeAuto WebSearchMode = "auto"
)
