package activities

import (
	"context"
	"errors"

	"github.com/mfateev/turnctl/internal/mcp"
	"github.com/mfateev/turnctl/internal/models"
	"github.com/mfateev/turnctl/internal/tools"
)

// ToolActivityInput is the input for tool execution.
//
// Maps to: codex-rs/core/src/tools/context.rs ToolInvocation fields
type ToolActivityInput struct {
	CallID    string                 `json:"call_id"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`

	// Cwd is the working directory for tool execution.
	Cwd string `json:"cwd,omitempty"`

	// SandboxPolicy/EnvPolicy carry the session's sandbox and environment
	// filtering configuration through to the handler.
	SandboxPolicy *tools.SandboxPolicyRef `json:"sandbox_policy,omitempty"`
	EnvPolicy     *tools.EnvPolicyRef     `json:"env_policy,omitempty"`

	// McpToolRef/SessionID/McpServers are set when ToolName routes to the
	// shared "mcp" handler instead of a direct function tool.
	McpToolRef *tools.McpToolRef              `json:"mcp_tool_ref,omitempty"`
	SessionID  string                         `json:"session_id,omitempty"`
	McpServers map[string]mcp.McpServerConfig `json:"mcp_servers,omitempty"`
}

// ToolActivityOutput is the output from tool execution.
// Only returned on successful activity completion. Infrastructure errors
// are returned as temporal.ApplicationError (retryable or non-retryable).
//
// Maps to: codex-rs/core/src/tools/router.rs ToolOutput + call_id
type ToolActivityOutput struct {
	CallID  string `json:"call_id"`
	Content string `json:"content,omitempty"`
	Success *bool  `json:"success,omitempty"`
}

// ToolActivities contains tool-related activities.
type ToolActivities struct {
	registry *tools.ToolRegistry
}

// NewToolActivities creates a new ToolActivities instance.
func NewToolActivities(registry *tools.ToolRegistry) *ToolActivities {
	return &ToolActivities{registry: registry}
}

// ExecuteTool executes a single tool call.
//
// Error handling:
//   - Tool not found → non-retryable ApplicationError (ToolNotFound)
//   - Handler validation error → non-retryable ApplicationError (ToolValidation)
//   - Handler timeout → non-retryable ApplicationError (ToolTimeout)
//   - Tool runs but fails (e.g., command exits non-zero) → successful return with Success=false
//   - Tool runs successfully → successful return with Success=true
//
// Maps to: codex-rs/core/src/tools/router.rs ToolRouter.dispatch()
func (a *ToolActivities) ExecuteTool(ctx context.Context, input ToolActivityInput) (ToolActivityOutput, error) {
	handler, err := a.registry.GetHandler(input.ToolName)
	if err != nil {
		return ToolActivityOutput{}, models.NewToolNotFoundError(input.ToolName)
	}

	invocation := &tools.ToolInvocation{
		CallID:        input.CallID,
		ToolName:      input.ToolName,
		Arguments:     input.Arguments,
		Cwd:           input.Cwd,
		SandboxPolicy: input.SandboxPolicy,
		EnvPolicy:     input.EnvPolicy,
		McpToolRef:    input.McpToolRef,
		SessionID:     input.SessionID,
	}
	if input.McpServers != nil {
		invocation.McpServers = input.McpServers
	}

	output, err := handler.Handle(ctx, invocation)
	if err != nil {
		return ToolActivityOutput{}, classifyHandlerError(input.ToolName, err)
	}

	return ToolActivityOutput{
		CallID:  input.CallID,
		Content: output.Content,
		Success: output.Success,
	}, nil
}

// classifyHandlerError converts a handler error into the appropriate
// temporal.ApplicationError based on the error context.
//
// Currently all handler errors are non-retryable because they represent
// validation failures (missing args, bad types) or execution issues
// (timeouts) that won't resolve on retry. If a handler detects a
// transient issue, it should wrap it with tools.ErrTransient so this
// function can classify it as retryable.
func classifyHandlerError(toolName string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewToolTimeoutError(toolName, err)
	}

	// Transient failures pass through unwrapped so the activity retry
	// policy applies.
	if errors.Is(err, tools.ErrTransient) || tools.IsTransientError(err) {
		return err
	}

	// Default: treat handler errors as validation/execution errors (non-retryable).
	// The same invalid input will produce the same error on retry.
	return models.NewToolValidationError(toolName, err)
}
