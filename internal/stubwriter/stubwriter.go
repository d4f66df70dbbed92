// Package stubwriter emits a `.pyi`-shaped stub from a fully evaluated
// module (spec.md §4.9): class/function signatures with annotations,
// module-level variable declarations with inferred or declared types,
// bodies dropped. Used by `--createstub`, independent of normal analysis.
package stubwriter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/evaluator"
	"github.com/oxhq/pytype/internal/types"
)

// Generate renders bound/eval's module-level declarations as stub text,
// sorted by name for deterministic output (spec.md §4.9).
func Generate(bound *binder.BoundModule, eval *evaluator.Evaluator) string {
	var sb strings.Builder
	writeScope(&sb, eval, bound.ModuleScope, 0)
	return sb.String()
}

func writeScope(sb *strings.Builder, eval *evaluator.Evaluator, scope *binder.Scope, indent int) {
	for _, name := range sortedNames(scope.Symbols) {
		sym := scope.Symbols[name]
		switch sym.Kind {
		case binder.SymClass:
			writeClass(sb, eval, sym, indent)
		case binder.SymFunction:
			writeFunction(sb, eval, sym, indent)
		case binder.SymImport, binder.SymModule:
			continue // a stub re-declares this module's own surface, not its imports
		default:
			writeVariable(sb, eval, sym, indent)
		}
	}
}

func sortedNames(symbols map[string]*binder.Symbol) []string {
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		if name == "" || strings.HasPrefix(name, "_") {
			continue // private/dunder names are not part of the stubbed public surface
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pad(indent int) string { return strings.Repeat("    ", indent) }

func writeVariable(sb *strings.Builder, eval *evaluator.Evaluator, sym *binder.Symbol, indent int) {
	t := eval.DeclaredType(sym)
	fmt.Fprintf(sb, "%s%s: %s\n", pad(indent), sym.Name, types.Display(t))
}

func writeFunction(sb *strings.Builder, eval *evaluator.Evaluator, sym *binder.Symbol, indent int) {
	t := eval.DeclaredType(sym)
	switch t.Kind {
	case types.KOverloaded:
		for _, sig := range t.Overloads {
			fmt.Fprintf(sb, "%s@overload\n", pad(indent))
			writeSig(sb, sig, indent)
		}
	case types.KFunction:
		writeSig(sb, t.Func, indent)
	default:
		fmt.Fprintf(sb, "%sdef %s(...) -> %s: ...\n", pad(indent), sym.Name, types.Display(t))
	}
}

func writeSig(sb *strings.Builder, sig *types.FunctionSig, indent int) {
	fmt.Fprintf(sb, "%sdef %s(%s) -> %s: ...\n", pad(indent), sig.Name, paramList(sig), types.Display(sig.Return))
}

func paramList(sig *types.FunctionSig) string {
	var parts []string
	sawStar := false
	for _, p := range sig.Params {
		switch p.Kind {
		case types.ParamVarPositional:
			parts = append(parts, "*"+p.Name+ann(p))
			sawStar = true
		case types.ParamVarKeyword:
			parts = append(parts, "**"+p.Name+ann(p))
		case types.ParamKeywordOnly:
			if !sawStar {
				parts = append(parts, "*")
				sawStar = true
			}
			parts = append(parts, p.Name+ann(p)+def(p))
		default:
			parts = append(parts, p.Name+ann(p)+def(p))
		}
	}
	return strings.Join(parts, ", ")
}

func ann(p *types.Param) string {
	if p.Annotation == nil || p.Annotation.Kind == types.KUnknown {
		return ""
	}
	return ": " + types.Display(p.Annotation)
}

func def(p *types.Param) string {
	if p.HasDefault {
		return " = ..."
	}
	return ""
}

func writeClass(sb *strings.Builder, eval *evaluator.Evaluator, sym *binder.Symbol, indent int) {
	var classDef *binder.Declaration
	for _, d := range sym.Decls {
		if d.Kind == binder.DeclClassDef {
			classDef = d
			break
		}
	}
	if classDef == nil {
		return
	}
	class := eval.ClassRefFor(classDef.Node)

	bases := make([]string, len(class.Bases))
	for i, b := range class.Bases {
		bases[i] = b.Name
	}
	header := sym.Name
	if len(bases) > 0 && !(len(bases) == 1 && bases[0] == "object") {
		header += "(" + strings.Join(bases, ", ") + ")"
	}
	fmt.Fprintf(sb, "%sclass %s:\n", pad(indent), header)

	names := make([]string, 0, len(class.Own))
	for name := range class.Own {
		if name == "" || (strings.HasPrefix(name, "_") && !isDunder(name)) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		fmt.Fprintf(sb, "%s    ...\n", pad(indent))
		return
	}
	for _, name := range names {
		m := class.Own[name]
		writeMember(sb, m, indent+1)
	}
}

func isDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

func writeMember(sb *strings.Builder, m *types.Member, indent int) {
	switch m.Type.Kind {
	case types.KFunction:
		if m.IsAbstract {
			fmt.Fprintf(sb, "%s@abstractmethod\n", pad(indent))
		}
		writeSig(sb, m.Type.Func, indent)
	case types.KOverloaded:
		for _, sig := range m.Type.Overloads {
			fmt.Fprintf(sb, "%s@overload\n", pad(indent))
			writeSig(sb, sig, indent)
		}
	default:
		fmt.Fprintf(sb, "%s%s: %s\n", pad(indent), m.Name, types.Display(m.Type))
	}
}

// Diff renders a unified diff between an existing stub's text and the
// freshly generated one, for the create-stub quick-action preview
// (writer.StubDiff; SPEC_FULL.md §4.9.F), using the same
// github.com/pmezard/go-difflib helper the teacher's providers/base and
// internal/util packages use for transform previews.
func Diff(oldStub, newStub, path string) string {
	if oldStub == newStub {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldStub),
		B:        difflib.SplitLines(newStub),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("--- %s\n+++ %s\n@@ changes @@\n%d bytes -> %d bytes", path, path, len(oldStub), len(newStub))
	}
	return text
}
