// Package fix applies the deterministic substitution attached to an issue's category.
package fix

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/modules/review/detect"
)

var (
	ErrNoFixPolicy  = errors.New("no fix policy for issue category")
	ErrNothingToFix = errors.New("issue trigger text not present")
	ErrSpanMismatch = errors.New("issue span no longer matches its trigger")
)

// Scope selects how much of the text a fix rewrites.
type Scope string

const (
	// ScopeGlobal replaces every occurrence of the category's trigger, including occurrences
	// other than the one the issue points at.
	ScopeGlobal Scope = "global"
	// ScopeSpan replaces only the issue's recorded span.
	ScopeSpan Scope = "span"
)

func ParseScope(raw string) (Scope, bool) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ScopeGlobal:
		return ScopeGlobal, true
	case ScopeSpan:
		return ScopeSpan, true
	default:
		return "", false
	}
}

// Applier maps issue categories to the fixes carried by the rule table.
type Applier struct {
	rules *detect.RuleSet
	scope Scope
}

func NewApplier(rules *detect.RuleSet, scope Scope) *Applier {
	if rules == nil {
		rules = detect.EmbeddedRuleSet()
	}
	if scope != ScopeSpan {
		scope = ScopeGlobal
	}
	return &Applier{rules: rules, scope: scope}
}

func (a *Applier) Scope() Scope { return a.scope }

// HasPolicy reports whether issues of category can be fixed automatically.
func (a *Applier) HasPolicy(category string) bool {
	rule, ok := a.rules.Lookup(category)
	return ok && rule.HasFix()
}

// ApplyFix returns text with the issue's fix applied. The input text is never modified.
func (a *Applier) ApplyFix(text string, issue domain.Issue) (string, error) {
	rule, ok := a.rules.Lookup(issue.Category)
	if !ok || !rule.HasFix() {
		return "", fmt.Errorf("%w: %q", ErrNoFixPolicy, issue.Category)
	}
	if a.scope == ScopeSpan {
		return applySpan(text, issue, rule)
	}
	if !rule.Pattern.MatchString(text) {
		return "", fmt.Errorf("%w: %s", ErrNothingToFix, issue.Category)
	}
	return rule.Pattern.ReplaceAllStringFunc(text, rule.SuggestedTextFor), nil
}

func applySpan(text string, issue domain.Issue, rule detect.Rule) (string, error) {
	if !issue.HasValidSpan(len(text)) {
		return "", fmt.Errorf("%w: %s has no usable offsets", ErrSpanMismatch, issue.ID)
	}
	start, length, _ := issue.Span()
	match := text[start : start+length]
	loc := rule.Pattern.FindStringIndex(match)
	if loc == nil || loc[0] != 0 || loc[1] != len(match) {
		return "", fmt.Errorf("%w: %s", ErrSpanMismatch, issue.ID)
	}
	return text[:start] + rule.SuggestedTextFor(match) + text[start+length:], nil
}
