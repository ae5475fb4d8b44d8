package rag

import (
	"fmt"
	"strings"

	"github.com/nicozefrench/diveteacher/internal/graphstore"
)

// answerSystemPrompt constrains the model to the retrieved context.
// Diving instruction is safety-critical material, so the refusal rule
// is explicit rather than best-effort.
const answerSystemPrompt = `You are a scuba diving instruction assistant. Answer using ONLY the facts provided in the context.

Rules:
- Cite the facts you use as [Fact 1], [Fact 2] and so on.
- If the context is empty or does not contain the answer, say exactly: "I don't have enough information in the knowledge base to answer that question." Do not guess.
- Never invent depths, times, pressures, or procedures that are not in the context.
- Be concise and direct.`

// formatContext renders retrieved facts as numbered lines with
// provenance, the shape the citation rule in the system prompt
// expects.
func formatContext(facts []graphstore.Fact) string {
	if len(facts) == 0 {
		return ""
	}

	var b strings.Builder
	for i, f := range facts {
		fmt.Fprintf(&b, "[Fact %d] %s", i+1, f.Fact)
		if f.Filename != "" {
			fmt.Fprintf(&b, " (source: %s", f.Filename)
			if !f.ValidAt.IsZero() {
				fmt.Fprintf(&b, ", %s", f.ValidAt.Format("2006-01-02"))
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildPrompt combines context and question into the user message.
func buildPrompt(question, contextText string) string {
	if contextText == "" {
		return fmt.Sprintf("Context:\n(no relevant facts found)\n\nQuestion: %s", question)
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)
}
