package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxhq/pytype/internal/config"
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/syntax"
)

func TestParseLevelRecognizesEachSeverityCaseInsensitively(t *testing.T) {
	tests := []struct {
		in   string
		want diagnostic.Severity
	}{
		{"error", diagnostic.SeverityError},
		{"WARNING", diagnostic.SeverityWarning},
		{"Information", diagnostic.SeverityInformation},
		{"info", diagnostic.SeverityInformation},
	}
	for _, tt := range tests {
		got, ok := parseLevel(tt.in)
		assert.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseLevelRejectsUnknownValue(t *testing.T) {
	_, ok := parseLevel("critical")
	assert.False(t, ok)
}

func TestSeverityRankOrdersErrorAboveWarningAboveInformation(t *testing.T) {
	assert.Greater(t, severityRank(diagnostic.SeverityError), severityRank(diagnostic.SeverityWarning))
	assert.Greater(t, severityRank(diagnostic.SeverityWarning), severityRank(diagnostic.SeverityInformation))
}

func TestSeverityAtLeastComparesByRank(t *testing.T) {
	assert.True(t, severityAtLeast(diagnostic.SeverityError, diagnostic.SeverityWarning))
	assert.False(t, severityAtLeast(diagnostic.SeverityInformation, diagnostic.SeverityWarning))
	assert.True(t, severityAtLeast(diagnostic.SeverityWarning, diagnostic.SeverityWarning))
}

func TestApplyOverridesOnlySetsNonEmptyFields(t *testing.T) {
	cfg := &config.Config{PythonVersion: "3.10", VenvPath: "/venv"}
	applyOverrides(cfg, "", "Linux", "", "/typeshed")
	assert.Equal(t, "3.10", cfg.PythonVersion)
	assert.Equal(t, "Linux", cfg.PythonPlatform)
	assert.Equal(t, "/venv", cfg.VenvPath)
	assert.Equal(t, "/typeshed", cfg.TypeshedPath)
}

func TestDialectForParsesMajorMinorFromConfig(t *testing.T) {
	cfg := &config.Config{PythonVersion: "3.12", PythonPlatform: "Darwin"}
	d := dialectFor(cfg)
	assert.Equal(t, [2]int{3, 12}, d.PythonVersion)
	assert.Equal(t, "Darwin", d.PythonPlatform)
}

func TestDialectForFallsBackToDefaultWhenConfigOmitsVersion(t *testing.T) {
	d := dialectFor(&config.Config{})
	assert.Equal(t, syntax.DefaultDialect().PythonVersion, d.PythonVersion)
}

func TestReportDiagnosticsReturnsWorstSeverityRegardlessOfLevelFilter(t *testing.T) {
	diags := []diagnostic.Diagnostic{
		{File: "b.py", Severity: diagnostic.SeverityWarning},
		{File: "a.py", Severity: diagnostic.SeverityError},
	}
	worst := reportDiagnostics(diags, diagnostic.SeverityError, true)
	assert.Equal(t, diagnostic.SeverityError, worst)
}

func TestReportDiagnosticsSortsByFileThenLine(t *testing.T) {
	diags := []diagnostic.Diagnostic{
		{File: "b.py", Severity: diagnostic.SeverityWarning},
		{File: "a.py", Severity: diagnostic.SeverityWarning, Range: diagnostic.RangeJSON{Start: diagnostic.Position{Line: 2}}},
		{File: "a.py", Severity: diagnostic.SeverityWarning, Range: diagnostic.RangeJSON{Start: diagnostic.Position{Line: 1}}},
	}
	reportDiagnostics(diags, diagnostic.SeverityWarning, true)
	assert.Equal(t, "a.py", diags[0].File)
	assert.Equal(t, 1, diags[0].Range.Start.Line)
	assert.Equal(t, "a.py", diags[1].File)
	assert.Equal(t, 2, diags[1].Range.Start.Line)
	assert.Equal(t, "b.py", diags[2].File)
}
