// Package workflow contains Temporal workflow definitions.
//
// background_exec.go implements the shell-exec foreground/background split:
// a command gets a 10-second foreground window, then — if still running —
// is handed off to background execution tracked in SessionState.BackgroundExecs,
// pollable via the exec_wait/exec_kill tool actions.
//
// These are distinct from the sub-agent wait/close_agent actions in
// subagent.go, which operate on child workflows (§4.10), not shell execs.
//
// Maps to: codex-rs/core/src/exec.rs background exec protocol (§4.8.3)
package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/turnctl/internal/activities"
	execpkg "github.com/mfateev/turnctl/internal/exec"
	"github.com/mfateev/turnctl/internal/models"
	"github.com/mfateev/turnctl/internal/tools"
)

const (
	// backgroundExecForegroundWindow is how long a shell exec is awaited in
	// the foreground before its tool result is returned as "running in
	// background". Not configurable — matches the magic-number behavior
	// called out in the compaction/exec design notes.
	backgroundExecForegroundWindow = 10 * time.Second

	// backgroundExecActivityFloor is the minimum StartToCloseTimeout given to
	// a shell activity so it can legitimately outlive the foreground window.
	// The normal per-tool timeout resolution (explicit timeout_ms, then the
	// tool spec default) still wins when it asks for longer.
	backgroundExecActivityFloor = 30 * time.Minute

	// ExecWaitDefaultTimeoutMs / ExecWaitMaxTimeoutMs bound exec_wait's
	// timeout_ms argument.
	ExecWaitDefaultTimeoutMs = 600_000   // 10 minutes
	ExecWaitMaxTimeoutMs     = 3_600_000 // 1 hour
)

// shellToolNames identifies the tool names that run through the
// foreground/background split rather than the ordinary parallel dispatch.
var shellToolNames = map[string]bool{
	"shell":         true,
	"shell_command": true,
}

// isShellToolCall reports whether name is a shell-executing tool.
func isShellToolCall(name string) bool {
	return shellToolNames[name]
}

// execControlToolNames is the set of tool names intercepted for background
// exec control. Named distinctly from the sub-agent "wait"/"close_agent"
// tools (collabToolNames) to avoid a name collision on the same tool surface.
var execControlToolNames = map[string]bool{
	"exec_wait": true,
	"exec_kill": true,
}

func isExecControlToolCall(name string) bool {
	return execControlToolNames[name]
}

// BackgroundExec tracks a shell exec that outlived the foreground window.
// Transient: not serialized across ContinueAsNew. A backgrounded command
// that's still running when the workflow continues-as-new is reported lost;
// this mirrors the general rule that only completed conversation state
// survives ContinueAsNew.
type BackgroundExec struct {
	CallID        string
	Command       string
	Done          bool
	Backgrounded  bool
	SuppressEvent bool
	Output        activities.ToolActivityOutput
	Cancel        workflow.CancelFunc
}

// dispatchShellCalls runs shell-tool calls through the foreground/background
// split, one goroutine per call so multiple shell calls in the same turn can
// each independently background. Returns results in the same order as calls.
//
// Maps to: codex-rs/core/src/exec.rs §4.8.3 steps 1-6
func (s *SessionState) dispatchShellCalls(
	ctx workflow.Context,
	calls []models.ConversationItem,
	executor *ToolExecutor,
) []activities.ToolActivityOutput {
	specByName := make(map[string]tools.ToolSpec, len(executor.toolSpecs))
	for _, spec := range executor.toolSpecs {
		specByName[spec.Name] = spec
	}

	results := make([]activities.ToolActivityOutput, len(calls))
	done := make([]bool, len(calls))

	for i, fc := range calls {
		i, fc := i, fc
		workflow.Go(ctx, func(gCtx workflow.Context) {
			results[i] = s.executeShellCall(gCtx, fc, specByName, executor)
			done[i] = true
		})
	}

	_ = workflow.Await(ctx, func() bool {
		for _, d := range done {
			if !d {
				return false
			}
		}
		return true
	})

	return results
}

// executeToolsWithBackgroundSplit dispatches shell calls through the
// foreground/background split and every other call through the ordinary
// parallel activity dispatch, then merges results back into the original
// call order.
func (s *SessionState) executeToolsWithBackgroundSplit(
	ctx workflow.Context,
	executor *ToolExecutor,
	calls []models.ConversationItem,
) ([]activities.ToolActivityOutput, error) {
	var shellCalls, otherCalls []models.ConversationItem
	var shellIdx, otherIdx []int
	for i, fc := range calls {
		if isShellToolCall(fc.Name) {
			shellCalls = append(shellCalls, fc)
			shellIdx = append(shellIdx, i)
		} else {
			otherCalls = append(otherCalls, fc)
			otherIdx = append(otherIdx, i)
		}
	}

	results := make([]activities.ToolActivityOutput, len(calls))

	if len(otherCalls) > 0 {
		otherResults, err := executor.ExecuteParallel(ctx, otherCalls)
		if err != nil {
			return nil, err
		}
		for j, idx := range otherIdx {
			results[idx] = otherResults[j]
		}
	}

	if len(shellCalls) > 0 {
		shellResults := s.dispatchShellCalls(ctx, shellCalls, executor)
		for j, idx := range shellIdx {
			results[idx] = shellResults[j]
		}
	}

	return results, nil
}

// executeShellCall runs a single shell call through the 10-second foreground
// window, backgrounding it on timeout.
func (s *SessionState) executeShellCall(
	ctx workflow.Context,
	fc models.ConversationItem,
	specByName map[string]tools.ToolSpec,
	executor *ToolExecutor,
) activities.ToolActivityOutput {
	logger := workflow.GetLogger(ctx)
	cwd := executor.cwd

	var args map[string]interface{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			args = map[string]interface{}{"_raw": fc.Arguments}
		}
	}
	command, _ := args["command"].(string)

	timeout := resolveToolTimeout(specByName, fc.Name, args)
	if timeout < backgroundExecActivityFloor {
		timeout = backgroundExecActivityFloor
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    1,
		},
	}
	if executor.sessionTaskQueue != "" {
		actOpts.TaskQueue = executor.sessionTaskQueue
	}
	actCtx := workflow.WithActivityOptions(ctx, actOpts)
	cancelCtx, cancel := workflow.WithCancel(actCtx)

	input := activities.ToolActivityInput{
		CallID:        fc.CallID,
		ToolName:      fc.Name,
		Arguments:     args,
		Cwd:           cwd,
		SandboxPolicy: executor.sandboxPolicy,
		EnvPolicy:     executor.envPolicy,
	}

	logger.Info("ExecCommandBegin", "call_id", fc.CallID, "command", command)
	future := workflow.ExecuteActivity(cancelCtx, "ExecuteTool", input)

	entry := &BackgroundExec{CallID: fc.CallID, Command: command, Cancel: cancel}
	if s.BackgroundExecs == nil {
		s.BackgroundExecs = make(map[string]*BackgroundExec)
	}
	s.BackgroundExecs[fc.CallID] = entry

	workflow.Go(ctx, func(gCtx workflow.Context) {
		var result activities.ToolActivityOutput
		err := future.Get(gCtx, &result)
		if entry.Done {
			return // already resolved by exec_kill
		}
		if err != nil {
			entry.Output = toolActivityErrorToOutput(logger, fc.CallID, fc.Name, err)
		} else {
			entry.Output = result
		}
		entry.Done = true
		if entry.Backgrounded && !entry.SuppressEvent {
			s.injectBackgroundCompletion(entry, cwd)
		}
	})

	_, err := workflow.AwaitWithTimeout(ctx, backgroundExecForegroundWindow, func() bool { return entry.Done })
	if err != nil {
		logger.Warn("shell foreground await failed", "call_id", fc.CallID, "error", err)
	}

	if entry.Done {
		delete(s.BackgroundExecs, fc.CallID)
		out := entry.Output
		out.Content = execpkg.FormatForegroundOutput(cwd, fc.CallID, out.Content)
		return out
	}

	entry.Backgrounded = true
	content := fmt.Sprintf(
		"Command running in background (call_id=%s). wait(call_id=%q) to await. Output so far (tail): %s",
		fc.CallID, fc.CallID, execpkg.FormatForegroundOutput(cwd, fc.CallID, entry.Output.Content))
	success := true
	return activities.ToolActivityOutput{CallID: fc.CallID, Content: content, Success: &success}
}

// injectBackgroundCompletion pushes a developer-role history item so the
// next turn automatically sees a background exec's result. Marked with
// Role "developer" (the same minimal-footprint marker pattern as the
// synthesized environment-context item) so the compactor's
// collect_user_messages does not mistake it for a real user message.
//
// Maps to: codex-rs/core/src/exec.rs §4.8.3 step 6 (BackgroundEvent + AddPendingInputDeveloper)
func (s *SessionState) injectBackgroundCompletion(entry *BackgroundExec, cwd string) {
	content := execpkg.FormatForegroundOutput(cwd, entry.CallID, entry.Output.Content)
	header := fmt.Sprintf("Command %q (call_id=%s) completed in background.\nOutput:\n%s", entry.Command, entry.CallID, content)
	_ = s.History.AddItem(models.ConversationItem{
		Type:    models.ItemTypeUserMessage,
		Role:    "developer",
		Content: header,
	})
}

// handleExecWait implements the exec_wait tool action: await a specific
// backgrounded exec's completion, up to timeout_ms.
//
// Maps to: codex-rs/core/src/exec.rs §4.8.3 wait(call_id, timeout_ms?)
func (s *SessionState) handleExecWait(ctx workflow.Context, fc models.ConversationItem) (models.ConversationItem, error) {
	var args struct {
		CallID    string   `json:"call_id"`
		TimeoutMs *float64 `json:"timeout_ms"`
	}
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
		return collabErrorOutput(fc.CallID, fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.CallID == "" {
		return collabErrorOutput(fc.CallID, "call_id is required"), nil
	}

	entry, ok := s.BackgroundExecs[args.CallID]
	if !ok {
		return collabErrorOutput(fc.CallID, fmt.Sprintf("no background exec with call_id %q", args.CallID)), nil
	}
	entry.SuppressEvent = true

	timeoutMs := int64(ExecWaitDefaultTimeoutMs)
	if args.TimeoutMs != nil && *args.TimeoutMs > 0 {
		timeoutMs = int64(*args.TimeoutMs)
	}
	if timeoutMs > ExecWaitMaxTimeoutMs {
		timeoutMs = ExecWaitMaxTimeoutMs
	}

	signalled, err := workflow.AwaitWithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond, func() bool {
		return entry.Done || s.Interrupted || s.ShutdownRequested
	})
	if err != nil {
		return models.ConversationItem{}, fmt.Errorf("exec_wait await failed: %w", err)
	}

	if !signalled || !entry.Done {
		content := fmt.Sprintf("Still running (call_id=%s). Output so far (tail): %s",
			args.CallID, execpkg.FormatForegroundOutput(s.Config.Cwd, args.CallID, entry.Output.Content))
		return collabSuccessOutput(fc.CallID, map[string]interface{}{
			"status":  "running",
			"content": content,
		}), nil
	}

	delete(s.BackgroundExecs, args.CallID)
	finalContent := execpkg.FormatForegroundOutput(s.Config.Cwd, args.CallID, entry.Output.Content)
	return collabSuccessOutput(fc.CallID, map[string]interface{}{
		"status":  "completed",
		"content": finalContent,
		"success": entry.Output.Success,
	}), nil
}

// handleExecKill implements the exec_kill tool action: cancel the running
// activity and synthesize an aborted result.
//
// Maps to: codex-rs/core/src/exec.rs §4.8.3 kill(call_id)
func (s *SessionState) handleExecKill(_ workflow.Context, fc models.ConversationItem) (models.ConversationItem, error) {
	var args struct {
		CallID string `json:"call_id"`
	}
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
		return collabErrorOutput(fc.CallID, fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.CallID == "" {
		return collabErrorOutput(fc.CallID, "call_id is required"), nil
	}

	entry, ok := s.BackgroundExecs[args.CallID]
	if !ok {
		return collabErrorOutput(fc.CallID, fmt.Sprintf("no background exec with call_id %q", args.CallID)), nil
	}

	if entry.Cancel != nil {
		entry.Cancel()
	}
	success := false
	entry.Output = activities.ToolActivityOutput{CallID: args.CallID, Content: "Cancelled by user.", Success: &success}
	entry.Done = true
	delete(s.BackgroundExecs, args.CallID)

	return collabSuccessOutput(fc.CallID, map[string]interface{}{
		"status":    "killed",
		"exit_code": 130,
		"stderr":    "Cancelled by user.",
	}), nil
}
