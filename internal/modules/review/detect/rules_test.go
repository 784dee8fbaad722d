package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

func TestEmbeddedRuleSetIsOrderedAndComplete(t *testing.T) {
	rs := EmbeddedRuleSet()
	rules := rs.Rules()
	require.NotEmpty(t, rules)
	assert.Equal(t, "no-liability", rules[0].Category)

	nl, ok := rs.Lookup("no-liability")
	require.True(t, ok)
	assert.True(t, nl.HasFix())
	assert.Equal(t, "liability, subject to a liability cap of $100,000", nl.Replacement)

	archaic, ok := rs.Lookup("archaic-term")
	require.True(t, ok)
	assert.False(t, archaic.HasFix())
}

func TestParseRuleSetRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"empty":           "rules: []",
		"bad severity":    "rules:\n  - {category: a, severity: urgent, pattern: x}",
		"bad pattern":     "rules:\n  - {category: a, severity: low, pattern: '(?<=x)y'}",
		"duplicate":       "rules:\n  - {category: a, severity: low, pattern: x}\n  - {category: a, severity: low, pattern: y}",
		"reserved":        "rules:\n  - {category: no-issues, severity: info, pattern: x}",
		"missing pattern": "rules:\n  - {category: a, severity: low}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRuleSet([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseRuleSetSkipsDisabledRules(t *testing.T) {
	rs, err := ParseRuleSet([]byte("rules:\n  - {category: a, severity: low, pattern: x, enabled: false}\n  - {category: b, severity: high, pattern: y}"))
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())
	_, ok := rs.Lookup("a")
	assert.False(t, ok)
}

func TestLoadRuleSetOverrideAndFallback(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(good, []byte("rules:\n  - {category: custom, severity: medium, pattern: 'foo', case_insensitive: true, replacement: bar}"), 0o600))

	t.Setenv(rulesEnv, good)
	rs := LoadRuleSet(logger.NewNop())
	assert.Equal(t, 1, rs.Len())
	custom, ok := rs.Lookup("custom")
	require.True(t, ok)
	assert.True(t, custom.Pattern.MatchString("FOO"))

	t.Setenv(rulesEnv, filepath.Join(dir, "missing.yaml"))
	rs = LoadRuleSet(logger.NewNop())
	_, ok = rs.Lookup("no-liability")
	assert.True(t, ok)
}

func TestAdaptCase(t *testing.T) {
	assert.Equal(t, "must", AdaptCase("shall", "must"))
	assert.Equal(t, "Must", AdaptCase("Shall", "must"))
	assert.Equal(t, "MUST", AdaptCase("SHALL", "must"))
	assert.Equal(t, "x", AdaptCase("123", "x"))
}
