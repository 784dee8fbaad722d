package detect

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/pkg/pointers"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/openai"
)

const (
	snippetLeft  = 30
	snippetTotal = 160
)

// Detector finds drafting issues with the rule table and, optionally, a generative model.
type Detector struct {
	Log   *logger.Logger
	Rules *RuleSet
	// Model is optional; nil disables external analysis.
	Model openai.Client

	schema *compiledSchema
}

func New(log *logger.Logger, rules *RuleSet, model openai.Client) (*Detector, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if rules == nil {
		rules = EmbeddedRuleSet()
	}
	schema, err := compileIssueSchema()
	if err != nil {
		return nil, err
	}
	return &Detector{
		Log:    log.With("component", "ReviewDetector"),
		Rules:  rules,
		Model:  model,
		schema: schema,
	}, nil
}

func issueID(category string, start int) string {
	return fmt.Sprintf("%s-%d", category, start)
}

// NoIssues is the informational issue returned for text that was analyzed and found clean.
func NoIssues() domain.Issue {
	return domain.Issue{
		ID:         domain.CategoryNoIssues,
		Category:   domain.CategoryNoIssues,
		Severity:   domain.SeverityInfo,
		Suggestion: "No drafting issues detected.",
		Source:     "rules",
	}
}

// Detect scans text with every rule. Matches within one rule never overlap; the result is
// ordered by offset, then by rule order. A clean text yields exactly one NoIssues entry.
func (d *Detector) Detect(text string) []domain.Issue {
	issues := d.scan(text)
	if len(issues) == 0 {
		return []domain.Issue{NoIssues()}
	}
	return issues
}

func (d *Detector) scan(text string) []domain.Issue {
	type ranked struct {
		issue domain.Issue
		rule  int
	}
	found := []ranked{}
	for ri, rule := range d.Rules.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			if end <= start {
				continue
			}
			match := text[start:end]
			found = append(found, ranked{rule: ri, issue: domain.Issue{
				ID:            issueID(rule.Category, start),
				Category:      rule.Category,
				Severity:      rule.Severity,
				MatchStart:    pointers.Int(start),
				MatchLength:   pointers.Int(end - start),
				Snippet:       Snippet(text, start, end),
				Suggestion:    rule.SuggestionFor(match),
				OriginalText:  match,
				SuggestedText: rule.SuggestedTextFor(match),
				Source:        "rules",
			}})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		si, sj := pointers.IntOr(found[i].issue.MatchStart, 0), pointers.IntOr(found[j].issue.MatchStart, 0)
		if si != sj {
			return si < sj
		}
		return found[i].rule < found[j].rule
	})
	out := make([]domain.Issue, len(found))
	for i, f := range found {
		out[i] = f.issue
	}
	return out
}

// Snippet is a display window around text[start:end]: about snippetLeft bytes of left context
// and snippetTotal bytes overall, cut on rune boundaries with whitespace collapsed.
func Snippet(text string, start, end int) string {
	if start < 0 || end > len(text) || start > end {
		return ""
	}
	from := start - snippetLeft
	if from < 0 {
		from = 0
	}
	to := from + snippetTotal
	if to < end {
		to = end
	}
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	window := strings.Join(strings.Fields(text[from:to]), " ")
	if from > 0 {
		window = "…" + window
	}
	if to < len(text) {
		window += "…"
	}
	return window
}
