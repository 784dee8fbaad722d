// Package annotate renders extracted text with highlighted, non-overlapping issue spans.
package annotate

import (
	"html"
	"sort"
	"strings"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/pkg/pointers"
)

const lineBreak = "<br>"

var newlines = strings.NewReplacer("\r\n", lineBreak, "\n", lineBreak, "\r", lineBreak)

// Span is one highlight that made it into a rendered view, in source byte offsets.
type Span struct {
	IssueID string `json:"issue_id"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// View is the rendered markup plus the source ranges it highlights.
type View struct {
	HTML  string `json:"html"`
	Spans []Span `json:"spans"`
}

// Render is pure: the same text and issues always produce the same view. Issues without valid
// offsets are ignored; an issue starting inside an earlier highlight is clipped to the end of
// that highlight and dropped if nothing is left.
func Render(text string, issues []domain.Issue) View {
	valid := make([]domain.Issue, 0, len(issues))
	for _, is := range issues {
		if is.HasValidSpan(len(text)) {
			valid = append(valid, is)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return pointers.IntOr(valid[i].MatchStart, 0) < pointers.IntOr(valid[j].MatchStart, 0)
	})

	var b strings.Builder
	b.Grow(len(text) + len(valid)*96)
	spans := make([]Span, 0, len(valid))
	cursor := 0
	for _, is := range valid {
		start, length, _ := is.Span()
		end := start + length
		if start < cursor {
			start = cursor
		}
		if end <= start {
			continue
		}
		writePlain(&b, text[cursor:start])
		writeMark(&b, is, text[start:end])
		spans = append(spans, Span{IssueID: is.ID, Start: start, End: end})
		cursor = end
	}
	writePlain(&b, text[cursor:])
	return View{HTML: b.String(), Spans: spans}
}

func writePlain(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	b.WriteString(newlines.Replace(html.EscapeString(s)))
}

func writeMark(b *strings.Builder, is domain.Issue, s string) {
	b.WriteString(`<mark class="issue issue-`)
	b.WriteString(html.EscapeString(string(is.Severity)))
	b.WriteString(`" data-issue-id="`)
	b.WriteString(html.EscapeString(is.ID))
	b.WriteString(`" data-category="`)
	b.WriteString(html.EscapeString(is.Category))
	b.WriteString(`" title="`)
	b.WriteString(html.EscapeString(is.Suggestion))
	b.WriteString(`">`)
	b.WriteString(newlines.Replace(html.EscapeString(s)))
	b.WriteString(`</mark>`)
}
