package models

import "github.com/mfateev/turnctl/internal/mcp"

// ModelConfig configures the LLM model parameters.
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration (model config part)
type ModelConfig struct {
	Provider      string  `json:"provider"`       // "openai", "anthropic"
	Model         string  `json:"model"`          // e.g., "gpt-4o-mini", "claude-sonnet-4-5"
	Temperature   float64 `json:"temperature"`    // 0.0 to 2.0
	MaxTokens     int     `json:"max_tokens"`     // Max tokens to generate
	ContextWindow int     `json:"context_window"` // Max context window size
	// ReasoningEffort, when the model supports it, selects the reasoning
	// budget ("low", "medium", "high"). Empty uses the provider default.
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
}

// DefaultModelConfig returns a sensible default configuration.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		Temperature:   0.7,
		MaxTokens:     4096,
		ContextWindow: 128000,
	}
}

// ShellToolType selects which shell execution tool is exposed to the model.
//
// Maps to: codex-rs/core/src/config/types.rs ShellEnvironmentPolicy shell variant
type ShellToolType string

const (
	ShellToolDefault      ShellToolType = "default"       // command + args array
	ShellToolShellCommand ShellToolType = "shell_command"  // single shell string
	ShellToolDisabled     ShellToolType = "disabled"
)

// ToolsConfig configures which tools are enabled.
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration (tools config part)
type ToolsConfig struct {
	ShellType        ShellToolType `json:"shell_type,omitempty"`
	EnableShell      bool          `json:"enable_shell"`
	EnableReadFile   bool          `json:"enable_read_file"`
	EnableWriteFile  bool          `json:"enable_write_file,omitempty"`
	EnableListDir    bool          `json:"enable_list_dir,omitempty"`
	EnableGrepFiles  bool          `json:"enable_grep_files,omitempty"`
	EnableApplyPatch bool          `json:"enable_apply_patch,omitempty"`
	EnableUpdatePlan bool          `json:"enable_update_plan,omitempty"`
	EnableCollab     bool          `json:"enable_collab,omitempty"`
	EnableAgentTool  bool          `json:"enable_agent_tool,omitempty"`
	EnableWebFetch   bool          `json:"enable_web_fetch,omitempty"`
	Disable          []string      `json:"disable,omitempty"`
}

// RemoveTools disables the named tools on the config. Tools gated by a
// dedicated flag flip that flag; everything else (including tools that are
// otherwise always on, like request_user_input) lands on the Disable list
// the spec builder filters against.
func (t *ToolsConfig) RemoveTools(names ...string) {
	for _, name := range names {
		switch name {
		case "shell", "shell_command":
			t.EnableShell = false
			t.ShellType = ShellToolDisabled
		case "read_file":
			t.EnableReadFile = false
		case "write_file":
			t.EnableWriteFile = false
		case "list_dir":
			t.EnableListDir = false
		case "grep_files":
			t.EnableGrepFiles = false
		case "apply_patch":
			t.EnableApplyPatch = false
		case "update_plan":
			t.EnableUpdatePlan = false
		case "web_fetch":
			t.EnableWebFetch = false
		case "collab":
			t.EnableCollab = false
			t.EnableAgentTool = false
		default:
			t.Disable = append(t.Disable, name)
		}
	}
}

// ResolvedShellType returns the configured shell tool type, defaulting to
// ShellToolDefault when EnableShell is set and ShellType is unset, or
// ShellToolDisabled when EnableShell is false.
func (t ToolsConfig) ResolvedShellType() ShellToolType {
	if !t.EnableShell {
		return ShellToolDisabled
	}
	if t.ShellType == "" {
		return ShellToolDefault
	}
	return t.ShellType
}

// DefaultToolsConfig returns default tools configuration.
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		ShellType:        ShellToolDefault,
		EnableShell:      true,
		EnableReadFile:   true,
		EnableWriteFile:  true,
		EnableListDir:    true,
		EnableGrepFiles:  true,
		EnableApplyPatch: true,
		EnableUpdatePlan: true,
	}
}

// SandboxMode selects the execution sandbox's write/network posture.
//
// Maps to: codex-rs/core/src/config_types.rs SandboxMode
type SandboxMode string

const (
	SandboxReadOnly         SandboxMode = "read-only"
	SandboxWorkspaceWrite   SandboxMode = "workspace-write"
	SandboxDangerFullAccess SandboxMode = "danger-full-access"
)

// ApprovalMode controls when tool calls require user approval.
//
// Maps to: codex-rs/core/src/config_types.rs AskForApproval
type ApprovalMode string

const (
	// ApprovalUnlessTrusted prompts for everything but known-safe commands.
	ApprovalUnlessTrusted ApprovalMode = "untrusted"
	// ApprovalOnFailure runs sandboxed and escalates to the user only when
	// a command fails in a way that looks like a sandbox denial.
	ApprovalOnFailure ApprovalMode = "on-failure"
	// ApprovalOnRequest prompts only when policy or the model asks for it.
	ApprovalOnRequest ApprovalMode = "on-request"
	// ApprovalNever auto-approves everything.
	ApprovalNever ApprovalMode = "never"
)

// SessionConfiguration configures a complete agentic session.
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration
type SessionConfiguration struct {
	// Instructions hierarchy (maps to Codex 3-tier system).
	BaseInstructions      string `json:"base_instructions,omitempty"`
	DeveloperInstructions string `json:"developer_instructions,omitempty"`
	UserInstructions      string `json:"user_instructions,omitempty"`

	// CLIProjectDocs/UserPersonalInstructions feed instructions.MergeInput;
	// WorkerProjectDocs is resolved on the worker side via an activity and
	// is not part of the serialized session config.
	CLIProjectDocs           string `json:"cli_project_docs,omitempty"`
	UserPersonalInstructions string `json:"user_personal_instructions,omitempty"`

	// Model configuration.
	Model ModelConfig `json:"model"`

	// Tool configuration.
	Tools ToolsConfig `json:"tools"`

	// Execution context.
	Cwd       string `json:"cwd,omitempty"`
	CodexHome string `json:"codex_home,omitempty"`

	// ApprovalMode controls the sandbox/approval FSM: "untrusted",
	// "on-failure", "on-request", "never".
	ApprovalMode ApprovalMode `json:"approval_mode,omitempty"`

	// ConfirmGuardPatterns are user-configured regexes tested against every
	// shell command before execution; a match blocks the command until the
	// model resends it with the confirm: prefix.
	ConfirmGuardPatterns []string `json:"confirm_guard_patterns,omitempty"`

	// Sandbox posture for shell/apply_patch execution.
	SandboxMode          SandboxMode `json:"sandbox_mode,omitempty"`
	SandboxWritableRoots []string    `json:"sandbox_writable_roots,omitempty"`
	SandboxNetworkAccess bool        `json:"sandbox_network_access,omitempty"`

	// AutoCompactTokenLimit triggers proactive compaction once estimated
	// history tokens exceed this value. 0 disables proactive compaction
	// (clamped at use to 90% of the model's context window regardless).
	AutoCompactTokenLimit int `json:"auto_compact_token_limit,omitempty"`

	// SessionTaskQueue, if set, routes tool/LLM activities to a dedicated
	// Temporal task queue (e.g. a sandboxed worker pool) instead of the
	// session's default queue.
	SessionTaskQueue string `json:"session_task_queue,omitempty"`

	// McpServers lists MCP server configs available to this session.
	McpServers map[string]mcp.McpServerConfig `json:"mcp_servers,omitempty"`

	// DisableSuggestions turns off the idle-time next-step suggestion.
	DisableSuggestions bool `json:"disable_suggestions,omitempty"`

	// MaxThreadSpawnDepth bounds sub-agent/plan-request nesting (§4.10).
	MaxThreadSpawnDepth int `json:"max_thread_spawn_depth,omitempty"`

	// Session metadata.
	SessionSource string `json:"session_source,omitempty"` // "cli", "api", "exec"
}

// DefaultSessionConfiguration returns sensible defaults.
func DefaultSessionConfiguration() SessionConfiguration {
	return SessionConfiguration{
		Model:               DefaultModelConfig(),
		Tools:               DefaultToolsConfig(),
		ApprovalMode:        "on-request",
		SandboxMode:         SandboxWorkspaceWrite,
		MaxThreadSpawnDepth: 4,
	}
}
