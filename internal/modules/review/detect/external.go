package detect

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/pkg/pointers"
)

const maxModelInputBytes = 48000

const analyzeSystemPrompt = `Find legal drafting problems in the contract text supplied by the user.
For every problem return the exact text it concerns in original_text, copied verbatim from the document.
Prefer these categories when they apply: %s.
Otherwise use a short lowercase hyphenated category name.
suggested_text is replacement wording for original_text, or an empty string when no rewrite applies.
Return an empty issues list when the text has no problems.`

// DetectExternal asks the model for issues and validates them. ok is false when the model is
// disabled, unreachable, or returned anything unusable; callers then rely on rule results.
func (d *Detector) DetectExternal(ctx context.Context, text string) ([]domain.Issue, bool) {
	if d.Model == nil || strings.TrimSpace(text) == "" {
		return nil, false
	}
	cats := make([]string, 0, d.Rules.Len())
	for _, r := range d.Rules.rules {
		cats = append(cats, r.Category)
	}
	system := strings.Replace(analyzeSystemPrompt, "%s", strings.Join(cats, ", "), 1)

	raw, err := d.Model.GenerateJSON(ctx, system, truncateUTF8(text, maxModelInputBytes), issueSchemaName, issueListSchema(false))
	if err != nil {
		d.Log.Warn("external detection unavailable; using rules", "error", err)
		return nil, false
	}
	entries, err := d.schema.decode(raw)
	if err != nil {
		d.Log.Warn("external detection output rejected; using rules", "error", err)
		return nil, false
	}

	claimed := [][2]int{}
	out := make([]domain.Issue, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		sev, ok := domain.ParseSeverity(e.Severity)
		if !ok || e.Category == domain.CategoryNoIssues {
			dropped++
			continue
		}
		start, ok := locateUnclaimed(text, e.OriginalText, claimed)
		if !ok {
			dropped++
			continue
		}
		end := start + len(e.OriginalText)
		claimed = append(claimed, [2]int{start, end})
		out = append(out, domain.Issue{
			ID:            issueID(e.Category, start),
			Category:      e.Category,
			Severity:      sev,
			MatchStart:    pointers.Int(start),
			MatchLength:   pointers.Int(end - start),
			Snippet:       Snippet(text, start, end),
			Suggestion:    strings.TrimSpace(e.Suggestion),
			OriginalText:  e.OriginalText,
			SuggestedText: e.SuggestedText,
			Source:        "model",
		})
	}
	if dropped > 0 {
		d.Log.Warn("external detection entries dropped", "dropped", dropped, "kept", len(out))
	}
	return out, true
}

// locateUnclaimed finds the first occurrence of needle that does not overlap a claimed span.
func locateUnclaimed(text, needle string, claimed [][2]int) (int, bool) {
	if needle == "" {
		return 0, false
	}
	offset := 0
	for offset <= len(text)-len(needle) {
		i := strings.Index(text[offset:], needle)
		if i < 0 {
			return 0, false
		}
		start := offset + i
		if !overlapsAny(start, start+len(needle), claimed) {
			return start, true
		}
		offset = start + 1
	}
	return 0, false
}

func overlapsAny(start, end int, spans [][2]int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

// Merge combines rule and model issues. A model issue overlapping a rule issue of the same
// category is a duplicate and is dropped. Output is ordered by offset, rule issues first on ties.
func Merge(ruleIssues, modelIssues []domain.Issue) []domain.Issue {
	out := make([]domain.Issue, 0, len(ruleIssues)+len(modelIssues))
	for _, ri := range ruleIssues {
		if _, _, ok := ri.Span(); ok {
			out = append(out, ri)
		}
	}
	nRules := len(out)
	for _, mi := range modelIssues {
		ms, ml, ok := mi.Span()
		if !ok {
			continue
		}
		dup := false
		for _, ri := range out[:nRules] {
			rs, rl, _ := ri.Span()
			if ri.Category == mi.Category && ms < rs+rl && rs < ms+ml {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, mi)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return pointers.IntOr(out[i].MatchStart, 0) < pointers.IntOr(out[j].MatchStart, 0)
	})
	return out
}

// Carry re-locates issues from an earlier pass in text, which has since been edited. Rule
// issues are skipped because a fresh scan reproduces them; any other issue is found again by
// its original text and dropped when that text is gone.
func Carry(text string, prior []domain.Issue) []domain.Issue {
	claimed := [][2]int{}
	out := make([]domain.Issue, 0, len(prior))
	for _, is := range prior {
		if is.Source == "rules" || is.Category == domain.CategoryNoIssues {
			continue
		}
		start, ok := locateUnclaimed(text, is.OriginalText, claimed)
		if !ok {
			continue
		}
		end := start + len(is.OriginalText)
		claimed = append(claimed, [2]int{start, end})
		is.ID = issueID(is.Category, start)
		is.MatchStart = pointers.Int(start)
		is.MatchLength = pointers.Int(end - start)
		is.Snippet = Snippet(text, start, end)
		out = append(out, is)
	}
	return out
}

// Rescan scans edited text with the rules and merges in the carried issues of the earlier pass.
func (d *Detector) Rescan(text string, prior []domain.Issue) []domain.Issue {
	issues := Merge(d.scan(text), Carry(text, prior))
	if len(issues) == 0 {
		return []domain.Issue{NoIssues()}
	}
	return issues
}

// Analyze runs rule detection and, when useExternal is set, the model, merging both. The
// model is never consulted for placeholder text.
func (d *Detector) Analyze(ctx context.Context, extracted domain.ExtractedText, useExternal bool) (issues []domain.Issue, externalUsed bool) {
	ruleIssues := d.scan(extracted.Text)
	if useExternal && extracted.Provenance.IsReal() {
		if modelIssues, ok := d.DetectExternal(ctx, extracted.Text); ok {
			ruleIssues = Merge(ruleIssues, modelIssues)
			externalUsed = true
		}
	}
	if len(ruleIssues) == 0 {
		return []domain.Issue{NoIssues()}, externalUsed
	}
	return ruleIssues, externalUsed
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
