package promptstyle

import "strings"

const marker = "DOCREVIEW_PROMPT_STYLE_V1"

// ApplySystem prepends a short guidance block to a system prompt. Idempotent.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" {
		return base
	}
	if strings.Contains(base, marker) {
		return base
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou review legal drafting for a document review service.")
	b.WriteString("\nFollow the system and user instructions precisely.")
	b.WriteString("\nQuote the document verbatim when referring to it; never paraphrase quoted text.")
	b.WriteString("\nDo not give legal advice beyond the drafting issue at hand.")
	if mode == "json" {
		b.WriteString("\nReturn a single JSON object that conforms to the schema and contains no extra keys.")
	} else {
		b.WriteString("\nReturn only the requested text with no commentary.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return b.String()
}
