// Package diagnostic defines the wire-level diagnostic shape shared by every
// pipeline stage (spec.md §6 "Diagnostics wire format").
package diagnostic

import (
	"fmt"

	"github.com/oxhq/pytype/internal/token"
)

// Severity controls how a diagnostic is surfaced; governed per-rule by
// configuration (spec.md §6 "reportX rules").
type Severity string

const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
	SeverityNone        Severity = "none"
)

// Rule is a stable rule id, e.g. "reportGeneralTypeIssues".
type Rule string

const (
	RuleGeneralTypeIssues   Rule = "reportGeneralTypeIssues"
	RuleMissingImports      Rule = "reportMissingImports"
	RuleUnboundVariable     Rule = "reportUnboundVariable"
	RuleUnreachable         Rule = "reportUnreachable"
	RuleSelfClsParameterName Rule = "reportSelfClsParameterName"
	RuleUnusedVariable      Rule = "reportUnusedVariable"
	RuleUnusedImport        Rule = "reportUnusedImport"
	RuleOptionalImplicit    Rule = "reportImplicitOptional"
	RuleIncompatibleOverride Rule = "reportIncompatibleMethodOverride"
	RuleMissingReturn       Rule = "reportMissingReturn"
	RuleUnnecessaryIsInstance Rule = "reportUnnecessaryIsInstance"
	RuleUnusedTypeIgnore    Rule = "reportUnnecessaryTypeIgnoreComment"
	RuleInvalidMetaclass    Rule = "reportInvalidMetaclass"
	RuleInconsistentMRO     Rule = "reportInconsistentMro"
	RuleSyntaxError         Rule = "reportSyntaxError" // parse/tokenizer errors
	RuleGeneralTypeCheck    Rule = RuleGeneralTypeIssues
)

// Position is a 0-based line/character LSP-style position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// RangeJSON is the wire range shape from spec.md §6.
type RangeJSON struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is one emitted finding, independent of severity resolution
// (resolution happens at the config boundary, see internal/config).
type Diagnostic struct {
	File     string    `json:"file"`
	Range    RangeJSON `json:"range"`
	Severity Severity  `json:"severity"`
	Rule     Rule      `json:"rule"`
	Message  string    `json:"message"`
}

// FromTokenRange converts a tokenizer/parser Range into the wire Range shape.
func FromTokenRange(r token.Range) RangeJSON {
	return RangeJSON{
		Start: Position{Line: r.StartLine - 1, Character: r.StartCol - 1},
		End:   Position{Line: r.EndLine - 1, Character: r.EndCol - 1},
	}
}

// New builds a Diagnostic with Severity left empty; callers fill it in via
// config.Config.Resolve before emitting it.
func New(file string, r token.Range, rule Rule, message string) Diagnostic {
	return Diagnostic{
		File:    file,
		Range:   FromTokenRange(r),
		Rule:    rule,
		Message: message,
	}
}

// Bag collects diagnostics from one pipeline stage. Not safe for concurrent
// writes from multiple goroutines; each SourceFile owns one Bag.
type Bag struct {
	items []Diagnostic
}

func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

func (b *Bag) Addf(file string, r token.Range, rule Rule, format string, args ...any) {
	b.Add(New(file, r, rule, fmt.Sprintf(format, args...)))
}

func (b *Bag) All() []Diagnostic { return b.items }

func (b *Bag) Len() int { return len(b.items) }

func (b *Bag) Reset() { b.items = b.items[:0] }
