package documents

import "strings"

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

func ParseSeverity(raw string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityLow:
		return SeverityLow, true
	case SeverityInfo:
		return SeverityInfo, true
	default:
		return "", false
	}
}

// CategoryNoIssues marks the informational issue returned when a text was analyzed and found clean.
const CategoryNoIssues = "no-issues"

// Issue is a detected drafting problem. MatchStart and MatchLength are byte offsets into the
// text the issue was produced from; both are nil for issues that do not point at a span.
type Issue struct {
	ID            string   `json:"id"`
	Category      string   `json:"category"`
	Severity      Severity `json:"severity"`
	MatchStart    *int     `json:"match_start,omitempty"`
	MatchLength   *int     `json:"match_length,omitempty"`
	Snippet       string   `json:"snippet,omitempty"`
	Suggestion    string   `json:"suggestion"`
	OriginalText  string   `json:"original_text,omitempty"`
	SuggestedText string   `json:"suggested_text,omitempty"`
	Source        string   `json:"source,omitempty"` // rules | model
}

// Span returns the offsets of the issue and whether it has any.
func (i Issue) Span() (start, length int, ok bool) {
	if i.MatchStart == nil || i.MatchLength == nil {
		return 0, 0, false
	}
	return *i.MatchStart, *i.MatchLength, true
}

// HasValidSpan reports whether the issue's offsets lie inside a text of textLen bytes.
func (i Issue) HasValidSpan(textLen int) bool {
	start, length, ok := i.Span()
	if !ok {
		return false
	}
	return start >= 0 && length > 0 && start+length <= textLen
}
