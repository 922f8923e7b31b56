// Package workflow contains Temporal workflow definitions.
//
// guards.go wires the pre-execution CommandGuards (command_safety.CheckGuards)
// into the turn's tool-dispatch path: shell calls are checked before the
// approval gate sees them, blocked calls become FunctionCallOutput guidance
// the model can act on, and successful dry-runs are recorded so the
// dry-run-before-mutating guard can authorise a later confirm-prefixed resend.
//
// Maps to spec §4.8.1.
package workflow

import (
	"encoding/json"
	"regexp"

	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/turnctl/internal/command_safety"
	"github.com/mfateev/turnctl/internal/models"
)

// shellCommandArgv extracts the single-string shell command from a shell
// tool call's arguments and returns it as the wrapper argv the guards
// analyze. ok is false when the arguments don't parse or carry no command;
// such calls are left for the normal dispatch path to reject.
func shellCommandArgv(arguments string) (argv []string, args map[string]interface{}, ok bool) {
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, nil, false
	}
	cmd, isStr := args["command"].(string)
	if !isStr || cmd == "" {
		return nil, nil, false
	}
	return []string{"bash", "-lc", cmd}, args, true
}

// userGuardRegexes compiles the session's configured confirm-guard patterns
// (Guard G1), once per workflow run. Invalid patterns are skipped with a
// warning rather than failing the session.
func (s *SessionState) userGuardRegexes(ctx workflow.Context) []*regexp.Regexp {
	if s.guardRegexesBuilt {
		return s.guardRegexes
	}
	s.guardRegexesBuilt = true
	logger := workflow.GetLogger(ctx)
	for _, pattern := range s.Config.ConfirmGuardPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warn("Skipping invalid confirm-guard pattern", "pattern", pattern, "error", err)
			continue
		}
		s.guardRegexes = append(s.guardRegexes, re)
	}
	return s.guardRegexes
}

// applyCommandGuards runs Guards G1-G6 over every shell call in the batch.
// Blocked calls are converted to FunctionCallOutput guidance items; calls
// that pass with a consumed confirm: prefix have their arguments rewritten
// to the stripped command so the executor never sees the prefix.
func (s *SessionState) applyCommandGuards(
	ctx workflow.Context,
	calls []models.ConversationItem,
) (allowed []models.ConversationItem, blocked []models.ConversationItem) {
	logger := workflow.GetLogger(ctx)

	opts := command_safety.GuardOptions{
		UserRegexGuards: s.userGuardRegexes(ctx),
		Cwd:             s.Config.Cwd,
		DryRunSeen: func(class string) bool {
			return s.DryRunsSeen[class]
		},
	}

	for _, fc := range calls {
		if !isShellToolCall(fc.Name) {
			allowed = append(allowed, fc)
			continue
		}
		argv, args, ok := shellCommandArgv(fc.Arguments)
		if !ok {
			allowed = append(allowed, fc)
			continue
		}

		block, effective := command_safety.CheckGuards(argv, opts)
		if block != nil {
			logger.Info("Command guard blocked shell call",
				"guard", string(block.Kind), "call_id", fc.CallID)
			falseVal := false
			blocked = append(blocked, models.ConversationItem{
				Type:   models.ItemTypeFunctionCallOutput,
				CallID: fc.CallID,
				Output: &models.FunctionCallOutputPayload{
					Content: block.Message,
					Success: &falseVal,
				},
			})
			continue
		}

		if effective[2] != argv[2] {
			// confirm: prefix consumed — resend the stripped command.
			args["command"] = effective[2]
			rewritten, err := json.Marshal(args)
			if err == nil {
				fc.Arguments = string(rewritten)
			}
		}
		allowed = append(allowed, fc)
	}
	return allowed, blocked
}

// commandApproved reports whether command matches one of the session's
// approved-command patterns.
func (s *SessionState) commandApproved(command []string) bool {
	return command_safety.MatchesAny(s.ApprovedCommands, command)
}

// rememberApprovedForSession records an exact approved-command pattern for
// every shell call the user approved for the rest of the session.
func (s *SessionState) rememberApprovedForSession(
	calls []models.ConversationItem,
	resp *ApprovalResponse,
) {
	if resp == nil || len(resp.ApprovedForSession) == 0 {
		return
	}
	forSession := make(map[string]bool, len(resp.ApprovedForSession))
	for _, id := range resp.ApprovedForSession {
		forSession[id] = true
	}
	for _, fc := range calls {
		if !forSession[fc.CallID] || !isShellToolCall(fc.Name) {
			continue
		}
		argv, _, ok := shellCommandArgv(fc.Arguments)
		if !ok {
			continue
		}
		if command_safety.MatchesAny(s.ApprovedCommands, argv) {
			continue
		}
		s.ApprovedCommands = append(s.ApprovedCommands, command_safety.ExactPattern(argv))
	}
}

// recordDryRunObservations marks the command class of every successfully
// executed dry-run (terraform plan, kubectl --dry-run, ...) so Guard G3
// accepts a confirm-prefixed mutating run of the same class afterwards.
func (s *SessionState) recordDryRunObservations(
	calls []models.ConversationItem,
	resultsByCallID map[string]bool,
) {
	for _, fc := range calls {
		if !isShellToolCall(fc.Name) {
			continue
		}
		if succeeded, seen := resultsByCallID[fc.CallID]; !seen || !succeeded {
			continue
		}
		argv, _, ok := shellCommandArgv(fc.Arguments)
		if !ok {
			continue
		}
		class, isDryRun := command_safety.CanonicalDryRunClass(argv)
		if !isDryRun {
			continue
		}
		if s.DryRunsSeen == nil {
			s.DryRunsSeen = make(map[string]bool)
		}
		s.DryRunsSeen[class] = true
	}
}
