// Background-exec control tool specifications. These are distinct from the
// spawn_agent/wait/close_agent collaboration tools in collab_spec.go: they
// operate on shell execs that outlived the 10-second foreground window
// (internal/workflow/background_exec.go), not on child workflows.
//
// Maps to: codex-rs/core/src/exec.rs background exec protocol
package tools

func init() {
	RegisterSpec(SpecEntry{Name: "exec_wait", Constructor: NewExecWaitToolSpec})
	RegisterSpec(SpecEntry{Name: "exec_kill", Constructor: NewExecKillToolSpec})
}

// NewExecWaitToolSpec creates the specification for the exec_wait tool.
// This tool is intercepted by the workflow (not dispatched as an activity).
func NewExecWaitToolSpec() ToolSpec {
	return ToolSpec{
		Name: "exec_wait",
		Description: `Wait for a backgrounded shell command to finish. Use the call_id reported ` +
			`when a shell command moved to the background.`,
		Parameters: []ToolParameter{
			{
				Name:        "call_id",
				Type:        "string",
				Description: "The call_id of the backgrounded command to wait on.",
				Required:    true,
			},
			{
				Name:        "timeout_ms",
				Type:        "number",
				Description: "Maximum time to wait, in milliseconds. Default 600000 (10 minutes), max 3600000 (1 hour).",
				Required:    false,
			},
		},
	}
}

// NewExecKillToolSpec creates the specification for the exec_kill tool.
// This tool is intercepted by the workflow (not dispatched as an activity).
func NewExecKillToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "exec_kill",
		Description: `Cancel a backgrounded shell command.`,
		Parameters: []ToolParameter{
			{
				Name:        "call_id",
				Type:        "string",
				Description: "The call_id of the backgrounded command to cancel.",
				Required:    true,
			},
		},
	}
}
