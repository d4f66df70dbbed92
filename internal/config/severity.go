package config

import (
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/fsutil"
)

// defaultSeverities gives each rule's severity under every typeCheckingMode
// (spec.md §6's mode table; "off" is handled separately in Severity since it
// silences every rule regardless of this table).
var defaultSeverities = map[diagnostic.Rule]map[TypeCheckingMode]diagnostic.Severity{
	diagnostic.RuleSyntaxError:           allModes(diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleGeneralTypeIssues:     allModes(diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleMissingImports:        allModes(diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleUnboundVariable:       allModes(diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleInconsistentMRO:       allModes(diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleInvalidMetaclass:      allModes(diagnostic.SeverityWarning, diagnostic.SeverityError, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleUnreachable:           allModes(diagnostic.SeverityNone, diagnostic.SeverityInformation, diagnostic.SeverityInformation, diagnostic.SeverityInformation),
	diagnostic.RuleSelfClsParameterName:  allModes(diagnostic.SeverityNone, diagnostic.SeverityWarning, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleUnusedVariable:        allModes(diagnostic.SeverityNone, diagnostic.SeverityNone, diagnostic.SeverityWarning, diagnostic.SeverityWarning),
	diagnostic.RuleUnusedImport:          allModes(diagnostic.SeverityNone, diagnostic.SeverityNone, diagnostic.SeverityWarning, diagnostic.SeverityWarning),
	diagnostic.RuleOptionalImplicit:      allModes(diagnostic.SeverityNone, diagnostic.SeverityWarning, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleIncompatibleOverride:  allModes(diagnostic.SeverityNone, diagnostic.SeverityWarning, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleMissingReturn:         allModes(diagnostic.SeverityNone, diagnostic.SeverityWarning, diagnostic.SeverityError, diagnostic.SeverityError),
	diagnostic.RuleUnnecessaryIsInstance: allModes(diagnostic.SeverityNone, diagnostic.SeverityNone, diagnostic.SeverityWarning, diagnostic.SeverityWarning),
	diagnostic.RuleUnusedTypeIgnore:      allModes(diagnostic.SeverityNone, diagnostic.SeverityNone, diagnostic.SeverityWarning, diagnostic.SeverityWarning),
}

func allModes(basic, standard, strict, all diagnostic.Severity) map[TypeCheckingMode]diagnostic.Severity {
	return map[TypeCheckingMode]diagnostic.Severity{
		ModeBasic:    basic,
		ModeStandard: standard,
		ModeStrict:   strict,
		ModeAll:      all,
	}
}

// Severity resolves rule's effective severity for file (spec.md §6 "reportX
// rules"). An explicit cfg.Report[rule] entry always wins. Otherwise the
// rule's typeCheckingMode default applies, with membership in cfg.Strict
// promoting the effective mode to "strict" for that file regardless of the
// project-wide mode (spec.md §6 "strict: per-file glob override").
func (c *Config) Severity(rule diagnostic.Rule, file string) diagnostic.Severity {
	if sev, ok := c.Report[string(rule)]; ok {
		return diagnostic.Severity(sev)
	}
	mode := c.TypeCheckingMode
	if mode == "" {
		mode = ModeStandard
	}
	if mode == ModeOff {
		return diagnostic.SeverityNone
	}
	if mode != ModeStrict && mode != ModeAll && fsutil.Glob(c.Strict, file) {
		mode = ModeStrict
	}
	table, ok := defaultSeverities[rule]
	if !ok {
		return diagnostic.SeverityWarning
	}
	if sev, ok := table[mode]; ok {
		return sev
	}
	return diagnostic.SeverityWarning
}

// Resolve stamps each diagnostic in diags with its config-resolved severity,
// dropping any whose effective severity is "none" (spec.md §6 "a rule
// resolved to none is not reported").
func (c *Config) Resolve(diags []diagnostic.Diagnostic) []diagnostic.Diagnostic {
	out := diags[:0]
	for _, d := range diags {
		sev := c.Severity(d.Rule, d.File)
		if sev == diagnostic.SeverityNone {
			continue
		}
		d.Severity = sev
		out = append(out, d)
	}
	return out
}
