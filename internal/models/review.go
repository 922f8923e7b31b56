package models

import (
	"encoding/json"
	"strings"
)

// ReviewLineRange is a 1-based inclusive line range inside a reviewed file.
//
// Maps to: codex-rs/protocol/src/protocol.rs ReviewLineRange
type ReviewLineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ReviewCodeLocation points a finding at a concrete place in the tree.
//
// Maps to: codex-rs/protocol/src/protocol.rs ReviewCodeLocation
type ReviewCodeLocation struct {
	AbsoluteFilePath string          `json:"absolute_file_path"`
	LineRange        ReviewLineRange `json:"line_range"`
}

// ReviewFinding is a single issue raised by a review task.
//
// Maps to: codex-rs/protocol/src/protocol.rs ReviewFinding
type ReviewFinding struct {
	Title           string              `json:"title"`
	Body            string              `json:"body"`
	ConfidenceScore float64             `json:"confidence_score,omitempty"`
	Priority        int                 `json:"priority,omitempty"`
	CodeLocation    *ReviewCodeLocation `json:"code_location,omitempty"`
}

// ReviewOutputEvent is the structured result of a review task. The reviewer
// model is asked to emit this as JSON; free-form text falls back to a
// wrapped structure via ParseReviewOutput.
//
// Maps to: codex-rs/protocol/src/protocol.rs ReviewOutputEvent
type ReviewOutputEvent struct {
	Findings           []ReviewFinding `json:"findings,omitempty"`
	OverallCorrectness string          `json:"overall_correctness,omitempty"`
	OverallExplanation string          `json:"overall_explanation,omitempty"`
	OverallConfidence  float64         `json:"overall_confidence_score,omitempty"`
}

// ParseReviewOutput parses the concatenated assistant text of a review task.
// It accepts the text as a whole JSON document or with a JSON object embedded
// in surrounding prose (e.g. a code fence); anything unparseable is wrapped
// verbatim into OverallExplanation so the caller always gets a result.
func ParseReviewOutput(text string) ReviewOutputEvent {
	trimmed := strings.TrimSpace(text)

	var out ReviewOutputEvent
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil && !out.isZero() {
		return out
	}

	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			var embedded ReviewOutputEvent
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &embedded); err == nil && !embedded.isZero() {
				return embedded
			}
		}
	}

	return ReviewOutputEvent{OverallExplanation: text}
}

func (e ReviewOutputEvent) isZero() bool {
	return len(e.Findings) == 0 && e.OverallCorrectness == "" && e.OverallExplanation == "" && e.OverallConfidence == 0
}
