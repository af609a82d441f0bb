package generator

import (
	"fmt"
	"strings"
)

// Prompt is the message pair sent to the LLM.
type Prompt struct {
	System string
	User   string
}

// MaxDiffChars caps how much diff text is sent upstream; anything beyond
// is cut and marked.
const MaxDiffChars = 15000

const truncationMarker = "\n... [diff truncated]"

// TruncateDiff cuts the diff to MaxDiffChars and appends a visible marker
// when anything was dropped.
func TruncateDiff(diff string) string {
	if len(diff) <= MaxDiffChars {
		return diff
	}
	return diff[:MaxDiffChars] + truncationMarker
}

// BuildNotesPrompt constructs the fixed instruction prompt requesting
// exactly a two-field JSON object. The caller truncates the diff first.
func BuildNotesPrompt(id, description, diff string) Prompt {
	var sb strings.Builder
	sb.WriteString("You write release notes for merged pull requests.\n")
	sb.WriteString("Respond with exactly one JSON object and nothing else:\n")
	sb.WriteString(`{"developer": "...", "marketing": "..."}` + "\n")
	sb.WriteString("- developer: one or two sentences, technical, for a changelog.\n")
	sb.WriteString("- marketing: one sentence, user-facing, no jargon.\n")
	sb.WriteString("No markdown fences, no commentary outside the JSON object.\n")

	var ub strings.Builder
	ub.WriteString(fmt.Sprintf("Pull request #%s", id))
	if description != "" {
		ub.WriteString(fmt.Sprintf(": %s", description))
	}
	ub.WriteString("\n\nDiff:\n")
	ub.WriteString(diff)

	return Prompt{
		System: sb.String(),
		User:   ub.String(),
	}
}
