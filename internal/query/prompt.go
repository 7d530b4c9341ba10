package query

import (
	"fmt"
	"strings"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/models"
)

// NoEvidenceAnswer is the fixed response when retrieval finds nothing
// relevant. The model is never consulted in that case.
const NoEvidenceAnswer = "I don't have enough information in my knowledge base to answer this. Please add relevant sources first."

const promptInstructions = `You are an assistant that answers strictly from the numbered reference material below.

Rules:
1. Only state facts present in the references.
2. Attach a citation marker like [1] or [2] to every claim.
3. If the references do not cover the question, say so plainly instead of guessing.
4. Never invent information or citations.`

// composePrompt enumerates the retrieved evidence with stable 1-based
// citation markers and appends the question. Marker i refers to
// evidence[i-1]; the validator relies on that numbering.
func composePrompt(question string, evidence []models.RetrievedEvidence) string {
	var b strings.Builder
	b.WriteString(promptInstructions)
	b.WriteString("\n\nReferences:\n")
	for i, ev := range evidence {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, ev.NoteTitle, ev.NoteSource, ev.Chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer with citations:", question)
	return b.String()
}
