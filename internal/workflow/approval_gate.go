// Package workflow contains Temporal workflow definitions.
package workflow

import "github.com/mfateev/turnctl/internal/models"

// ApprovalGate bundles the session's approval mode and exec policy rules so
// runAgenticTurn can classify and resolve tool-call approvals without
// threading both values through every helper call.
type ApprovalGate struct {
	mode        models.ApprovalMode
	policyRules string
	// approved reports whether a command argv matches one of the session's
	// approved-command patterns; such commands skip the approval prompt.
	approved func(command []string) bool
}

// NewApprovalGate builds a gate bound to the session's current approval mode,
// serialized exec policy rules, and approved-command matcher.
func NewApprovalGate(mode models.ApprovalMode, policyRules string, approved func(command []string) bool) *ApprovalGate {
	return &ApprovalGate{mode: mode, policyRules: policyRules, approved: approved}
}

// Classify splits function calls into those needing user approval and those
// forbidden outright by exec policy.
func (g *ApprovalGate) Classify(calls []models.ConversationItem) (pending []PendingApproval, forbidden []models.ConversationItem) {
	return classifyToolsForApproval(calls, g.mode, g.policyRules, g.approved)
}

// ApplyDecision partitions calls by the user's approval response into
// approved calls and FunctionCallOutput items for denied ones.
func (g *ApprovalGate) ApplyDecision(calls []models.ConversationItem, resp *ApprovalResponse) (approved, deniedResults []models.ConversationItem) {
	return applyApprovalDecision(calls, resp)
}
