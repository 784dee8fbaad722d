package detect

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

const rulesEnv = "REVIEW_RULES_YAML"

//go:embed rules.yaml
var embeddedRules []byte

// Rule is one row of the drafting rule table.
type Rule struct {
	Category    string
	Severity    domain.Severity
	Pattern     *regexp.Regexp
	Suggestion  string
	Replacement string
}

// HasFix reports whether the rule carries an automatic replacement.
func (r Rule) HasFix() bool { return r.Replacement != "" }

// SuggestionFor renders the rule's suggestion for one matched text.
func (r Rule) SuggestionFor(match string) string {
	return strings.ReplaceAll(r.Suggestion, "{match}", match)
}

// SuggestedTextFor is the replacement for one match with the match's casing carried over.
func (r Rule) SuggestedTextFor(match string) string {
	if !r.HasFix() {
		return ""
	}
	return AdaptCase(match, r.Replacement)
}

// RuleSet is an ordered, immutable rule table.
type RuleSet struct {
	rules      []Rule
	byCategory map[string]int
}

func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

func (rs *RuleSet) Lookup(category string) (Rule, bool) {
	i, ok := rs.byCategory[category]
	if !ok {
		return Rule{}, false
	}
	return rs.rules[i], true
}

func (rs *RuleSet) Len() int { return len(rs.rules) }

type yamlRuleFile struct {
	Version int        `yaml:"version"`
	Rules   []yamlRule `yaml:"rules"`
}

type yamlRule struct {
	Category        string `yaml:"category"`
	Severity        string `yaml:"severity"`
	Pattern         string `yaml:"pattern"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
	Suggestion      string `yaml:"suggestion"`
	Replacement     string `yaml:"replacement"`
	Enabled         *bool  `yaml:"enabled"`
}

// ParseRuleSet compiles a YAML rule table.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var file yamlRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, errors.New("rules: table is empty")
	}
	rs := &RuleSet{byCategory: make(map[string]int, len(file.Rules))}
	for i, yr := range file.Rules {
		if yr.Enabled != nil && !*yr.Enabled {
			continue
		}
		category := strings.TrimSpace(yr.Category)
		if category == "" {
			return nil, fmt.Errorf("rules[%d]: category required", i)
		}
		if category == domain.CategoryNoIssues {
			return nil, fmt.Errorf("rules[%d]: category %q is reserved", i, category)
		}
		if _, dup := rs.byCategory[category]; dup {
			return nil, fmt.Errorf("rules[%d]: duplicate category %q", i, category)
		}
		sev, ok := domain.ParseSeverity(yr.Severity)
		if !ok {
			return nil, fmt.Errorf("rules[%d] %s: invalid severity %q", i, category, yr.Severity)
		}
		expr := strings.TrimSpace(yr.Pattern)
		if expr == "" {
			return nil, fmt.Errorf("rules[%d] %s: pattern required", i, category)
		}
		if yr.CaseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("rules[%d] %s: %w", i, category, err)
		}
		rs.byCategory[category] = len(rs.rules)
		rs.rules = append(rs.rules, Rule{
			Category:    category,
			Severity:    sev,
			Pattern:     re,
			Suggestion:  strings.TrimSpace(yr.Suggestion),
			Replacement: yr.Replacement,
		})
	}
	if len(rs.rules) == 0 {
		return nil, errors.New("rules: every rule is disabled")
	}
	return rs, nil
}

// EmbeddedRuleSet returns the built-in rule table.
func EmbeddedRuleSet() *RuleSet {
	rs, err := ParseRuleSet(embeddedRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rules.yaml is invalid: %v", err))
	}
	return rs
}

// LoadRuleSet reads REVIEW_RULES_YAML when set and falls back to the embedded table if the
// override is missing or invalid.
func LoadRuleSet(log *logger.Logger) *RuleSet {
	path := strings.TrimSpace(os.Getenv(rulesEnv))
	if path == "" {
		return EmbeddedRuleSet()
	}
	data, err := os.ReadFile(path)
	if err == nil {
		var rs *RuleSet
		if rs, err = ParseRuleSet(data); err == nil {
			return rs
		}
	}
	if log != nil {
		log.Warn("review rules override unusable; using embedded rules", "path", path, "error", err)
	}
	return EmbeddedRuleSet()
}

// AdaptCase carries the casing of match over to repl: ALL CAPS stays all caps and a leading
// capital stays capitalised. Anything else returns repl unchanged.
func AdaptCase(match, repl string) string {
	letters, upper := 0, 0
	for _, r := range match {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 || repl == "" {
		return repl
	}
	if upper == letters && letters > 1 {
		return strings.ToUpper(repl)
	}
	first := []rune(match)[0]
	if unicode.IsUpper(first) {
		rs := []rune(repl)
		rs[0] = unicode.ToUpper(rs[0])
		return string(rs)
	}
	return repl
}
