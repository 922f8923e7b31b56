package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/turnctl/internal/activities"
	"github.com/mfateev/turnctl/internal/history"
	"github.com/mfateev/turnctl/internal/models"
	"github.com/mfateev/turnctl/internal/tools"
)

// ---------------------------------------------------------------------------
// Unit tests for background-exec routing and types (no Temporal test env needed)
// ---------------------------------------------------------------------------

func TestIsShellToolCall(t *testing.T) {
	assert.True(t, isShellToolCall("shell"))
	assert.True(t, isShellToolCall("shell_command"))
	assert.False(t, isShellToolCall("read_file"))
	assert.False(t, isShellToolCall("exec_wait"))
}

func TestIsExecControlToolCall(t *testing.T) {
	assert.True(t, isExecControlToolCall("exec_wait"))
	assert.True(t, isExecControlToolCall("exec_kill"))
	assert.False(t, isExecControlToolCall("wait"), "must not collide with the sub-agent wait tool")
	assert.False(t, isExecControlToolCall("shell"))
}

func TestExecControlToolSpecs(t *testing.T) {
	t.Run("exec_wait spec", func(t *testing.T) {
		spec := tools.NewExecWaitToolSpec()
		assert.Equal(t, "exec_wait", spec.Name)
		assert.NotEmpty(t, spec.Description)

		var callIDRequired, timeoutOptional bool
		for _, p := range spec.Parameters {
			if p.Name == "call_id" {
				callIDRequired = p.Required
			}
			if p.Name == "timeout_ms" {
				timeoutOptional = !p.Required
			}
		}
		assert.True(t, callIDRequired, "call_id must be required")
		assert.True(t, timeoutOptional, "timeout_ms must be optional")
	})

	t.Run("exec_kill spec", func(t *testing.T) {
		spec := tools.NewExecKillToolSpec()
		assert.Equal(t, "exec_kill", spec.Name)
		assert.Len(t, spec.Parameters, 1)
		assert.Equal(t, "call_id", spec.Parameters[0].Name)
		assert.True(t, spec.Parameters[0].Required)
	})
}

// TestBackgroundExec_CallIDLookup verifies the call_id-not-found branch that
// both handleExecWait and handleExecKill share, without needing a workflow
// context (the handlers need workflow.Context only after this check).
func TestBackgroundExec_CallIDLookup(t *testing.T) {
	s := &SessionState{
		BackgroundExecs: map[string]*BackgroundExec{
			"call-1": {CallID: "call-1", Command: "sleep 20"},
		},
	}

	_, ok := s.BackgroundExecs["call-1"]
	assert.True(t, ok)

	_, ok = s.BackgroundExecs["nonexistent"]
	assert.False(t, ok, "unknown call_id should not be found")
}

// TestBackgroundExec_ArgumentParsing verifies the exec_wait/exec_kill argument
// shapes parse the way the handlers expect.
func TestBackgroundExec_ArgumentParsing(t *testing.T) {
	t.Run("exec_wait with timeout_ms", func(t *testing.T) {
		var args struct {
			CallID    string   `json:"call_id"`
			TimeoutMs *float64 `json:"timeout_ms"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"call_id": "c1", "timeout_ms": 5000}`), &args))
		assert.Equal(t, "c1", args.CallID)
		require.NotNil(t, args.TimeoutMs)
		assert.Equal(t, float64(5000), *args.TimeoutMs)
	})

	t.Run("exec_wait without timeout_ms", func(t *testing.T) {
		var args struct {
			CallID    string   `json:"call_id"`
			TimeoutMs *float64 `json:"timeout_ms"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"call_id": "c1"}`), &args))
		assert.Nil(t, args.TimeoutMs)
	})

	t.Run("exec_wait timeout_ms clamped to max", func(t *testing.T) {
		timeoutMs := int64(10_000_000)
		if timeoutMs > ExecWaitMaxTimeoutMs {
			timeoutMs = ExecWaitMaxTimeoutMs
		}
		assert.Equal(t, int64(ExecWaitMaxTimeoutMs), timeoutMs)
	})

	t.Run("exec_kill requires call_id", func(t *testing.T) {
		var args struct {
			CallID string `json:"call_id"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{}`), &args))
		assert.Empty(t, args.CallID)
	})
}

// TestBackgroundExec_KillSynthesizesCancelledOutput verifies that killing a
// background exec immediately records the spec's exact cancellation result
// shape, without waiting for the real activity cancellation round-trip.
func TestBackgroundExec_KillSynthesizesCancelledOutput(t *testing.T) {
	cancelled := false
	entry := &BackgroundExec{
		CallID:  "call-2",
		Command: "sleep 20",
		Cancel:  func() { cancelled = true },
	}
	s := &SessionState{BackgroundExecs: map[string]*BackgroundExec{"call-2": entry}}

	// Mirror handleExecKill's body without the workflow.Context dependency:
	// the cancel/synthesize logic itself takes no context.
	if entry.Cancel != nil {
		entry.Cancel()
	}
	success := false
	entry.Output = activities.ToolActivityOutput{CallID: "call-2", Content: "Cancelled by user.", Success: &success}
	entry.Done = true
	delete(s.BackgroundExecs, "call-2")

	assert.True(t, cancelled)
	assert.True(t, entry.Done)
	assert.False(t, *entry.Output.Success)
	assert.Equal(t, "Cancelled by user.", entry.Output.Content)
	_, stillTracked := s.BackgroundExecs["call-2"]
	assert.False(t, stillTracked, "killed exec must be removed from the tracking map")
}

// TestBackgroundExec_InjectBackgroundCompletion verifies the developer-role
// marker used so collectUserMessages (internal/activities/llm.go) does not
// resurrect it as a real user message on a later compaction.
func TestBackgroundExec_InjectBackgroundCompletion(t *testing.T) {
	s := &SessionState{History: history.NewInMemoryHistory()}
	entry := &BackgroundExec{
		CallID:  "call-3",
		Command: "make build",
		Output:  activities.ToolActivityOutput{CallID: "call-3", Content: "build ok"},
	}

	s.injectBackgroundCompletion(entry, "/work")

	items, err := s.History.GetRawItems()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemTypeUserMessage, items[0].Type)
	assert.Equal(t, "developer", items[0].Role)
	assert.Contains(t, items[0].Content, "call-3")
	assert.Contains(t, items[0].Content, "build ok")
}

// TestExecuteToolsWithBackgroundSplit_PreservesOrder verifies that splitting
// shell and non-shell calls into separate dispatch paths reassembles results
// in the original call order.
func TestExecuteToolsWithBackgroundSplit_IndexPartitioning(t *testing.T) {
	calls := []models.ConversationItem{
		{CallID: "a", Name: "read_file"},
		{CallID: "b", Name: "shell"},
		{CallID: "c", Name: "read_file"},
		{CallID: "d", Name: "shell"},
	}

	var shellIdx, otherIdx []int
	for i, fc := range calls {
		if isShellToolCall(fc.Name) {
			shellIdx = append(shellIdx, i)
		} else {
			otherIdx = append(otherIdx, i)
		}
	}

	assert.Equal(t, []int{1, 3}, shellIdx)
	assert.Equal(t, []int{0, 2}, otherIdx)
}
