package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxhq/pytype/internal/diagnostic"
)

func TestSeverityDefaultsVaryByMode(t *testing.T) {
	cfg := &Config{TypeCheckingMode: ModeBasic}
	assert.Equal(t, diagnostic.SeverityNone, cfg.Severity(diagnostic.RuleUnusedVariable, "a.py"))

	cfg.TypeCheckingMode = ModeStandard
	assert.Equal(t, diagnostic.SeverityNone, cfg.Severity(diagnostic.RuleUnusedVariable, "a.py"))

	cfg.TypeCheckingMode = ModeStrict
	assert.Equal(t, diagnostic.SeverityWarning, cfg.Severity(diagnostic.RuleUnusedVariable, "a.py"))
}

func TestSeverityReportOverrideWins(t *testing.T) {
	cfg := &Config{
		TypeCheckingMode: ModeBasic,
		Report:           map[string]string{string(diagnostic.RuleUnusedVariable): string(diagnostic.SeverityError)},
	}
	assert.Equal(t, diagnostic.SeverityError, cfg.Severity(diagnostic.RuleUnusedVariable, "a.py"))
}

func TestSeverityOffModeSilencesEverything(t *testing.T) {
	cfg := &Config{TypeCheckingMode: ModeOff}
	assert.Equal(t, diagnostic.SeverityNone, cfg.Severity(diagnostic.RuleSyntaxError, "a.py"))
}

func TestSeverityStrictGlobPromotesOnlyMatchingFile(t *testing.T) {
	cfg := &Config{TypeCheckingMode: ModeBasic, Strict: []string{"**/strict_pkg/**"}}
	assert.Equal(t, diagnostic.SeverityNone, cfg.Severity(diagnostic.RuleUnusedVariable, "proj/a.py"))
	assert.Equal(t, diagnostic.SeverityWarning, cfg.Severity(diagnostic.RuleUnusedVariable, "proj/strict_pkg/b.py"))
}

func TestSeverityUnknownRuleDefaultsToWarning(t *testing.T) {
	cfg := &Config{TypeCheckingMode: ModeStandard}
	assert.Equal(t, diagnostic.SeverityWarning, cfg.Severity(diagnostic.Rule("reportSomeNewRule"), "a.py"))
}

func TestResolveDropsNoneSeverityDiagnostics(t *testing.T) {
	cfg := &Config{TypeCheckingMode: ModeBasic}
	diags := []diagnostic.Diagnostic{
		{File: "a.py", Rule: diagnostic.RuleUnusedVariable},
		{File: "a.py", Rule: diagnostic.RuleSyntaxError},
	}
	out := cfg.Resolve(diags)
	assert.Len(t, out, 1)
	assert.Equal(t, diagnostic.RuleSyntaxError, out[0].Rule)
	assert.Equal(t, diagnostic.SeverityError, out[0].Severity)
}
