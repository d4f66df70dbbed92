// Package langserver implements spec.md §5's query surface over the
// Program driver: hover, gotoDefinition, completion, signatureHelp,
// documentSymbols, references, rename, and the quick actions from
// SPEC_FULL.md §4.10.F, each triggering only on-demand evaluation for the
// touched file and its direct dependencies (spec.md §4.7 "never force
// full-program analysis"). No LSP library appears anywhere in the example
// corpus, so the JSON-RPC transport (server.go) is hand-rolled against the
// standard library rather than adopting an out-of-pack dependency; see
// DESIGN.md.
package langserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/program"
	"github.com/oxhq/pytype/internal/resolver"
	"github.com/oxhq/pytype/internal/sourcefile"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/types"
	"github.com/oxhq/pytype/internal/writer"
)

// CodeActionKind names one of the quick actions SPEC_FULL.md §4.10.F lists.
type CodeActionKind string

const (
	ActionOrganizeImports       CodeActionKind = "source.organizeImports"
	ActionAddOptionalAnnotation CodeActionKind = "quickfix.addOptionalAnnotation"
	ActionCreateStub            CodeActionKind = "source.createStub"
)

// Queries bundles the Program plus the resolver/writer every handler needs,
// constructed once per server instance (see Server in server.go).
type Queries struct {
	Prog *program.Program
	Res  *resolver.Resolver
	W    *writer.Writer
}

func (q *Queries) checked(path string) (*sourcefile.SourceFile, bool) {
	q.Prog.EnsureChecked(path)
	sf, ok := q.Prog.File(path)
	if !ok || sf.Bound == nil || sf.Eval == nil {
		return nil, false
	}
	return sf, true
}

// Hover implements textDocument/hover: the type of the Name under pos,
// or a class/function's rendered signature if pos lands on its definition.
func (q *Queries) Hover(path string, pos Position) (*Hover, error) {
	sf, ok := q.checked(path)
	if !ok {
		return nil, fmt.Errorf("langserver: %s not checkable", path)
	}
	name := findNameAt(sf.Module, pos)
	if name == nil {
		return nil, nil
	}
	scope := enclosingScope(sf.Module, sf.Bound, pos)
	sym := scope.Lookup(name.Name)
	var t *types.Type
	if sym != nil {
		t = sf.Eval.DeclaredType(sym)
	} else {
		t = sf.Eval.GetType(name)
	}
	return &Hover{
		Contents: fmt.Sprintf("%s: %s", name.Name, types.Display(t)),
		Range:    diagnostic.FromTokenRange(name.Range),
	}, nil
}

// Definition implements textDocument/definition: the range of sym's first
// declaration, the same symbol table hover resolves through.
func (q *Queries) Definition(path string, pos Position) (*Location, error) {
	sf, ok := q.checked(path)
	if !ok {
		return nil, fmt.Errorf("langserver: %s not checkable", path)
	}
	name := findNameAt(sf.Module, pos)
	if name == nil {
		return nil, nil
	}
	scope := enclosingScope(sf.Module, sf.Bound, pos)
	sym := scope.Lookup(name.Name)
	if sym == nil || len(sym.Decls) == 0 {
		return nil, nil
	}
	decl := sym.Decls[0]
	return &Location{URI: path, Range: diagnostic.FromTokenRange(decl.Node.Range)}, nil
}

// References implements textDocument/references: every Name node in path
// resolving to the same symbol as the one under pos, plus its declarations.
func (q *Queries) References(path string, pos Position) ([]Location, error) {
	sf, ok := q.checked(path)
	if !ok {
		return nil, fmt.Errorf("langserver: %s not checkable", path)
	}
	name := findNameAt(sf.Module, pos)
	if name == nil {
		return nil, nil
	}
	scope := enclosingScope(sf.Module, sf.Bound, pos)
	sym := scope.Lookup(name.Name)
	if sym == nil {
		return nil, nil
	}
	var locs []Location
	for _, d := range sym.Decls {
		locs = append(locs, Location{URI: path, Range: diagnostic.FromTokenRange(d.Node.Range)})
	}
	syntax.Walk(sf.Module, func(n *syntax.Node) {
		if n.Kind != syntax.KName || n.Name != sym.Name {
			return
		}
		useScope := enclosingScope(sf.Module, sf.Bound, Position{Line: n.Range.StartLine - 1, Character: n.Range.StartCol - 1})
		if useScope.Lookup(n.Name) != sym {
			return
		}
		locs = append(locs, Location{URI: path, Range: diagnostic.FromTokenRange(n.Range)})
	})
	return dedupeLocations(locs), nil
}

func dedupeLocations(locs []Location) []Location {
	seen := map[string]bool{}
	var out []Location
	for _, l := range locs {
		key := fmt.Sprintf("%s:%d:%d", l.URI, l.Range.Start.Line, l.Range.Start.Character)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

// Rename implements textDocument/rename: a WorkspaceEdit replacing every
// reference References finds with newName.
func (q *Queries) Rename(path string, pos Position, newName string) (*WorkspaceEdit, error) {
	locs, err := q.References(path, pos)
	if err != nil || len(locs) == 0 {
		return nil, err
	}
	edits := make([]TextEdit, 0, len(locs))
	for _, l := range locs {
		edits = append(edits, TextEdit{Range: l.Range, NewText: newName})
	}
	return &WorkspaceEdit{Changes: map[string][]TextEdit{path: edits}}, nil
}

// DocumentSymbols implements textDocument/documentSymbol: every module-level
// class/function/variable, with class members nested as Children.
func (q *Queries) DocumentSymbols(path string) ([]DocumentSymbol, error) {
	sf, ok := q.checked(path)
	if !ok {
		return nil, fmt.Errorf("langserver: %s not checkable", path)
	}
	var out []DocumentSymbol
	names := make([]string, 0, len(sf.Bound.ModuleScope.Symbols))
	for n := range sf.Bound.ModuleScope.Symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := sf.Bound.ModuleScope.Symbols[name]
		if len(sym.Decls) == 0 {
			continue
		}
		sy := DocumentSymbol{Name: name, Kind: symbolKindName(sym.Kind), Range: diagnostic.FromTokenRange(sym.Decls[0].Node.Range)}
		if sym.Kind == binder.SymClass {
			sy.Children = classMemberSymbols(sf.Eval.ClassRefFor(sym.Decls[0].Node))
		}
		out = append(out, sy)
	}
	return out, nil
}

func classMemberSymbols(class *types.ClassRef) []DocumentSymbol {
	names := make([]string, 0, len(class.Own))
	for n := range class.Own {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]DocumentSymbol, 0, len(names))
	for _, n := range names {
		m := class.Own[n]
		kind := "field"
		if m.Type.Kind == types.KFunction || m.Type.Kind == types.KOverloaded {
			kind = "method"
		}
		out = append(out, DocumentSymbol{Name: n, Kind: kind})
	}
	return out
}

func symbolKindName(k binder.SymbolKind) string {
	switch k {
	case binder.SymFunction:
		return "function"
	case binder.SymClass:
		return "class"
	case binder.SymImport:
		return "import"
	case binder.SymModule:
		return "module"
	case binder.SymParameter:
		return "parameter"
	default:
		return "variable"
	}
}

// Completion implements textDocument/completion: every name visible from
// pos's enclosing scope, walking outward through parents (spec.md §4.3 LEGB
// lookup order).
func (q *Queries) Completion(path string, pos Position) ([]CompletionItem, error) {
	sf, ok := q.checked(path)
	if !ok {
		return nil, fmt.Errorf("langserver: %s not checkable", path)
	}
	scope := enclosingScope(sf.Module, sf.Bound, pos)
	seen := map[string]bool{}
	var items []CompletionItem
	for s := scope; s != nil; s = parentOf(s) {
		names := make([]string, 0, len(symbolsOf(s)))
		for n := range symbolsOf(s) {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if seen[n] || n == "" {
				continue
			}
			seen[n] = true
			sym := symbolsOf(s)[n]
			items = append(items, CompletionItem{
				Label:  n,
				Kind:   symbolKindName(sym.Kind),
				Detail: types.Display(sf.Eval.DeclaredType(sym)),
			})
		}
	}
	return items, nil
}

func symbolsOf(s *binder.Scope) map[string]*binder.Symbol { return s.Symbols }
func parentOf(s *binder.Scope) *binder.Scope              { return s.Parent }

// SignatureHelp implements textDocument/signatureHelp: the enclosing Call's
// callee signature and which parameter pos falls under.
func (q *Queries) SignatureHelp(path string, pos Position) (*SignatureHelp, error) {
	sf, ok := q.checked(path)
	if !ok {
		return nil, fmt.Errorf("langserver: %s not checkable", path)
	}
	call := enclosingCall(sf.Module, pos)
	if call == nil {
		return nil, nil
	}
	t := sf.Eval.GetType(call.Func)
	sig := t.Func
	if t.Kind == types.KOverloaded && len(t.Overloads) > 0 {
		sig = t.Overloads[0]
	}
	if sig == nil {
		return nil, nil
	}
	params := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = p.Name
	}
	active := 0
	for i, arg := range call.Args {
		if before(Position{Line: arg.Range.StartLine - 1, Character: arg.Range.StartCol - 1}, pos) {
			active = i
		}
	}
	return &SignatureHelp{
		Label:           fmt.Sprintf("%s(%s)", sig.Name, strings.Join(params, ", ")),
		Parameters:      params,
		ActiveParameter: active,
	}, nil
}

func enclosingCall(module *syntax.Node, pos Position) *syntax.Node {
	var best *syntax.Node
	syntax.Walk(module, func(n *syntax.Node) {
		if n.Kind != syntax.KCall || !contains(n.Range, pos) {
			return
		}
		if best == nil || narrower(n.Range, best.Range) {
			best = n
		}
	})
	return best
}

// CodeAction implements textDocument/codeAction for the three quick actions
// SPEC_FULL.md §4.10.F names: organizeImports (file-wide), addOptionalAnnotation
// (over a parameter), and createStub (over a module). pos selects the
// narrowest applicable node; kind disambiguates when more than one applies.
func (q *Queries) CodeAction(path string, pos Position, kind CodeActionKind) (*WorkspaceEdit, error) {
	sf, ok := q.checked(path)
	if !ok {
		return nil, fmt.Errorf("langserver: %s not checkable", path)
	}
	switch kind {
	case ActionOrganizeImports:
		edits, ok := writer.OrganizeImports(q.Res, path, sf.Module)
		if !ok {
			return nil, nil
		}
		return toWorkspaceEdit(path, edits), nil
	case ActionAddOptionalAnnotation:
		param := findNodeAt(sf.Module, pos)
		if param == nil || param.Kind != syntax.KParameter {
			return nil, nil
		}
		edits, ok := writer.AddOptionalAnnotation(sf.Eval, param)
		if !ok {
			return nil, nil
		}
		return toWorkspaceEdit(path, edits), nil
	case ActionCreateStub:
		return nil, fmt.Errorf("langserver: createStub writes a .pyi sibling file, not staged as a WorkspaceEdit; use CreateStubFile")
	default:
		return nil, fmt.Errorf("langserver: unknown code action %q", kind)
	}
}

// CreateStubFile implements the createStub quick action: it returns the
// generated stub text directly rather than a WorkspaceEdit, since it targets
// a new/overwritten .pyi file alongside path rather than an edit within it.
func (q *Queries) CreateStubFile(path string) (string, error) {
	sf, ok := q.checked(path)
	if !ok {
		return "", fmt.Errorf("langserver: %s not checkable", path)
	}
	return writer.CreateStub(sf.Bound, sf.Eval), nil
}

func toWorkspaceEdit(path string, edits []writer.Edit) *WorkspaceEdit {
	out := make([]TextEdit, 0, len(edits))
	for _, e := range edits {
		out = append(out, TextEdit{Range: diagnostic.FromTokenRange(e.Range), NewText: e.NewText})
	}
	return &WorkspaceEdit{Changes: map[string][]TextEdit{path: out}}
}
