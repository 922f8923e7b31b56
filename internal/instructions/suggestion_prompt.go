package instructions

import (
	"fmt"
	"strings"
)

// SuggestionSystemPrompt is the base instructions sent to the cheap/fast
// model that proposes the next prompt after a turn completes.
const SuggestionSystemPrompt = `You help a user decide what to ask a coding agent next. Given the last exchange, reply with a single short follow-up prompt the user could send next. Reply with the suggestion text only, no preamble, no quotes.`

// BuildSuggestionInput composes the user-role content for a suggestion
// request from the last turn's user message, assistant message, and a
// summary of any tools that ran in between.
func BuildSuggestionInput(userMessage, assistantMessage string, toolSummaries []string) string {
	var b strings.Builder
	b.WriteString("User: ")
	b.WriteString(userMessage)
	if len(toolSummaries) > 0 {
		b.WriteString("\nTools run: ")
		b.WriteString(strings.Join(toolSummaries, ", "))
	}
	b.WriteString(fmt.Sprintf("\nAssistant: %s\n\nSuggest the single best next prompt.", assistantMessage))
	return b.String()
}

// SuggestionModelForProvider picks the cheap model used for suggestion
// generation, keeping the session's provider so no extra API key is needed.
func SuggestionModelForProvider(provider string) (model, resolvedProvider string) {
	switch provider {
	case "anthropic":
		return "claude-3-5-haiku-latest", "anthropic"
	default:
		return "gpt-4o-mini", "openai"
	}
}

// FormatToolSummary renders a one-token-ish summary of a completed tool
// call for the suggestion prompt's "Tools run" line.
func FormatToolSummary(name string, success bool) string {
	if success {
		return name
	}
	return name + " (failed)"
}

// ParseSuggestionResponse trims the model's reply down to a single line,
// stripping any wrapping quotes it added despite the prompt's instructions.
func ParseSuggestionResponse(content string) string {
	suggestion := strings.TrimSpace(content)
	if i := strings.IndexByte(suggestion, '\n'); i >= 0 {
		suggestion = suggestion[:i]
	}
	suggestion = strings.Trim(suggestion, `"'`)
	return strings.TrimSpace(suggestion)
}
