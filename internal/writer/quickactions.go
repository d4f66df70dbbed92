package writer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/evaluator"
	"github.com/oxhq/pytype/internal/resolver"
	"github.com/oxhq/pytype/internal/stubwriter"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/token"
	"github.com/oxhq/pytype/internal/types"
)

// importGroup orders organize-imports' output (SPEC_FULL.md §4.10.F
// "groups Import/ImportFrom declarations by import classification
// (builtin/stdlib/thirdParty/local ...), sorts each group").
type importGroup int

const (
	groupBuiltin importGroup = iota
	groupStdlib
	groupThirdParty
	groupLocal
)

// OrganizeImports computes the edit that replaces fromFile's top-level
// import block with one grouped, sorted by classification then name.
// Returns nil, false if there is nothing to reorganize (fewer than two
// import statements, or they're already in the target order).
func OrganizeImports(res *resolver.Resolver, fromFile string, module *syntax.Node) ([]Edit, bool) {
	var stmts []*syntax.Node
	for _, n := range module.Body {
		if n.Kind == syntax.KImport || n.Kind == syntax.KImportFrom {
			stmts = append(stmts, n)
		} else if len(stmts) > 0 {
			break // only the leading contiguous import block is reorganized
		}
	}
	if len(stmts) < 2 {
		return nil, false
	}

	type line struct {
		group importGroup
		sortKey string
		text  string
	}
	lines := make([]line, 0, len(stmts))
	for _, n := range stmts {
		ref, text := importKey(n)
		group := classify(res, fromFile, ref)
		lines = append(lines, line{group: group, sortKey: text, text: text})
	}
	less := func(i, j int) bool {
		if lines[i].group != lines[j].group {
			return lines[i].group < lines[j].group
		}
		return lines[i].sortKey < lines[j].sortKey
	}
	if sort.SliceIsSorted(lines, less) {
		return nil, false
	}
	sort.SliceStable(lines, less)

	var sb strings.Builder
	lastGroup := importGroup(-1)
	for _, l := range lines {
		if lastGroup != -1 && l.group != lastGroup {
			sb.WriteString("\n")
		}
		sb.WriteString(l.text)
		sb.WriteString("\n")
		lastGroup = l.group
	}

	start := stmts[0].Range.Start
	end := stmts[len(stmts)-1].Range.End
	edit := Edit{Range: token.Range{Start: start, End: end}, NewText: strings.TrimSuffix(sb.String(), "\n")}
	return []Edit{edit}, true
}

func importKey(n *syntax.Node) (resolver.Reference, string) {
	if n.Kind == syntax.KImportFrom {
		ref := resolver.Reference{Parts: n.ModuleParts, Level: n.Level}
		names := make([]string, 0, len(n.Names))
		for _, alias := range n.Names {
			if alias.Alias != "" {
				names = append(names, alias.Name+" as "+alias.Alias)
			} else {
				names = append(names, alias.Name)
			}
		}
		text := fmt.Sprintf("from %s%s import %s", strings.Repeat(".", n.Level), strings.Join(n.ModuleParts, "."), strings.Join(names, ", "))
		return ref, text
	}
	// KImport may carry several dotted-name aliases; every clause is
	// rendered, but the statement is classified by the first (matching
	// Python's own convention of one module per clause being the common case
	// this quick action optimizes for).
	var parts []string
	var clauses []string
	for _, alias := range n.Names {
		if len(parts) == 0 {
			parts = alias.ModuleParts
		}
		clause := strings.Join(alias.ModuleParts, ".")
		if alias.Alias != "" {
			clause += " as " + alias.Alias
		}
		clauses = append(clauses, clause)
	}
	ref := resolver.Reference{Parts: parts}
	text := "import " + strings.Join(clauses, ", ")
	return ref, text
}

func classify(res *resolver.Resolver, fromFile string, ref resolver.Reference) importGroup {
	resolution := res.Resolve(fromFile, ref)
	switch resolution.ImportType {
	case resolver.ImportBuiltin:
		return groupBuiltin
	case resolver.ImportStdlib:
		return groupStdlib
	case resolver.ImportThirdParty:
		return groupThirdParty
	default:
		return groupLocal
	}
}

// AddOptionalAnnotation computes the edit that widens a parameter's
// annotation to include `| None` when its default is None but the
// annotation omits it (SPEC_FULL.md §4.10.F, mirroring the
// reportImplicitOptional rule in internal/checker). Returns nil, false if
// param's annotation already admits None or there is nothing to widen.
func AddOptionalAnnotation(eval *evaluator.Evaluator, param *syntax.Node) ([]Edit, bool) {
	if param == nil || param.Annotation == nil {
		return nil, false
	}
	t := eval.AnnotationType(param.Annotation)
	if hasNone(t) {
		return nil, false
	}
	edit := Edit{
		Range:   token.Range{Start: param.Annotation.Range.Start, End: param.Annotation.Range.End},
		NewText: fmt.Sprintf("%s | None", annotationText(param.Annotation)),
	}
	return []Edit{edit}, true
}

func hasNone(t *types.Type) bool {
	if t.Kind == types.KNone {
		return true
	}
	if t.Kind != types.KUnion {
		return false
	}
	for _, m := range t.Members {
		if m.Kind == types.KNone {
			return true
		}
	}
	return false
}

// annotationText re-renders the annotation's source text from its parse-tree
// node, since the parse tree does not retain raw source slices per node;
// this is a best-effort rendering adequate for simple name/attribute/
// subscript annotations, the common shape a None default appears on, and
// any other node kind renders as "object".
func annotationText(ann *syntax.Node) string {
	switch ann.Kind {
	case syntax.KName:
		return ann.Name
	case syntax.KAttribute:
		return annotationText(ann.Obj) + "." + ann.Attr
	case syntax.KSubscript:
		return annotationText(ann.Obj) + "[" + annotationText(ann.Value) + "]"
	case syntax.KTuple:
		parts := make([]string, len(ann.Body))
		for i, e := range ann.Body {
			parts[i] = annotationText(e)
		}
		return strings.Join(parts, ", ")
	default:
		return "object"
	}
}

// CreateStub delegates to the stub writer for one fully evaluated module
// (spec.md §6 `--createstub IMPORT`), returning the stub text rather than an
// Edit list since it targets a new sibling `.pyi` file, not an in-place
// splice of the source.
func CreateStub(bound *binder.BoundModule, eval *evaluator.Evaluator) string {
	return stubwriter.Generate(bound, eval)
}

// StubDiff previews a create-stub quick action against an existing stub
// file's content.
func StubDiff(existing, generated, path string) string {
	return stubwriter.Diff(existing, generated, path)
}
