// Package workflow contains Temporal workflow definitions.
//
// review.go implements the review task: a nested turn loop that runs against
// an isolated review history, parses the reviewer's structured findings, and
// splices a synthetic user message carrying them into the parent history.
//
// Maps to: codex-rs/core/src/review.rs
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/turnctl/internal/history"
	"github.com/mfateev/turnctl/internal/models"
)

// reviewInstructions primes the review turn. The reviewer works from a clean
// history: it sees the review request, not the parent conversation.
const reviewInstructions = `You are acting as a code reviewer. Investigate the review request below using the available tools, then reply with a JSON object of the form:
{"findings": [{"title": "...", "body": "...", "confidence_score": 0.0, "priority": 0, "code_location": {"absolute_file_path": "...", "line_range": {"start": 1, "end": 1}}}], "overall_correctness": "...", "overall_explanation": "...", "overall_confidence_score": 0.0}
Only report issues you are confident about. An empty findings list is a valid answer.`

// runReviewTask runs a review turn against a fresh local history, then
// restores the parent history and records the parsed findings into it.
// Queued user input submitted while the review runs lands in the parked
// parent history and is handled by the next regular turn.
func (s *SessionState) runReviewTask(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)
	prompt := s.ReviewPrompt
	s.ReviewPrompt = ""
	s.CurrentTurnID = s.ReviewTurnID
	s.ReviewTurnID = ""

	logger.Info("Entering review mode", "turn_id", s.CurrentTurnID)

	// Park the parent history and swap in an isolated one for the review.
	s.parentHistory = s.History
	reviewHistory := history.NewInMemoryHistory()
	_ = reviewHistory.AddItem(models.ConversationItem{
		Type:   models.ItemTypeTurnStarted,
		TurnID: s.CurrentTurnID,
	})
	_ = reviewHistory.AddItem(models.ConversationItem{
		Type:    models.ItemTypeUserMessage,
		Content: reviewInstructions + "\n\nReview request:\n" + prompt,
		TurnID:  s.CurrentTurnID,
	})
	s.History = reviewHistory
	s.reviewActive = true
	s.Phase = PhaseReviewing
	s.LastReviewOutput = nil

	// The review turn must not chain onto the parent's provider responses.
	prevResponseID := s.LastResponseID
	prevSentLen := s.lastSentHistoryLen
	s.LastResponseID = ""
	s.lastSentHistoryLen = 0

	_, turnErr := s.runAgenticTurn(ctx)

	reviewText := collectAssistantText(reviewHistory)

	// Restore the parent conversation regardless of how the review ended.
	s.History = s.parentHistory
	s.parentHistory = nil
	s.reviewActive = false
	s.LastResponseID = prevResponseID
	s.lastSentHistoryLen = prevSentLen

	if turnErr != nil {
		return fmt.Errorf("review turn failed: %w", turnErr)
	}

	if s.Interrupted {
		logger.Info("Review interrupted", "turn_id", s.CurrentTurnID)
		_ = s.History.AddItem(models.ConversationItem{
			Type:    models.ItemTypeUserMessage,
			Content: "<user_action>\nThe user interrupted the review task before it finished. No findings were produced.\n</user_action>",
			TurnID:  s.CurrentTurnID,
		})
		return nil
	}

	parsed := models.ParseReviewOutput(reviewText)
	s.LastReviewOutput = &parsed

	_ = s.History.AddItem(models.ConversationItem{
		Type:    models.ItemTypeUserMessage,
		Content: formatReviewUserAction(prompt, parsed),
		TurnID:  s.CurrentTurnID,
	})
	_ = s.History.AddItem(models.ConversationItem{
		Type:   models.ItemTypeTurnComplete,
		TurnID: s.CurrentTurnID,
	})

	logger.Info("Exited review mode",
		"turn_id", s.CurrentTurnID,
		"findings", len(parsed.Findings))
	return nil
}

// collectAssistantText concatenates the assistant messages of a history.
func collectAssistantText(h history.ContextManager) string {
	items, err := h.GetRawItems()
	if err != nil {
		return ""
	}
	var parts []string
	for _, item := range items {
		if item.Type == models.ItemTypeAssistantMessage && item.Content != "" {
			parts = append(parts, item.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// formatReviewUserAction renders the review result as the synthetic
// user-role message recorded into the parent history, so later turns see
// what the reviewer found without inheriting the review conversation.
func formatReviewUserAction(prompt string, out models.ReviewOutputEvent) string {
	var b strings.Builder
	b.WriteString("<user_action>\n")
	fmt.Fprintf(&b, "The user ran a review task: %q. Findings below.\n", prompt)
	if encoded, err := json.MarshalIndent(out, "", "  "); err == nil {
		b.Write(encoded)
		b.WriteString("\n")
	} else {
		b.WriteString(out.OverallExplanation)
		b.WriteString("\n")
	}
	b.WriteString("</user_action>")
	return b.String()
}
