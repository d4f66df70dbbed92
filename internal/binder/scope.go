package binder

import "github.com/oxhq/pytype/internal/syntax"

// ScopeKind distinguishes the Python scope forms relevant to name
// resolution. Comprehension scopes are skipped when a binding form targets
// "the innermost non-comprehension scope" (spec.md §4.3 bullet 2).
type ScopeKind int

const (
	ScopeBuiltins ScopeKind = iota
	ScopeModule
	ScopeFunction
	ScopeLambda
	ScopeClass
	ScopeComprehension
)

// Scope is one node of the scope tree built during binding. It is not
// mutated after Bind returns, so the evaluator can read it freely.
type Scope struct {
	Kind   ScopeKind
	Parent *Scope
	Node   *syntax.Node // defining Def/Lambda/Comprehension node; nil for module/builtins

	Symbols  map[string]*Symbol
	Children []*Scope

	// names redirected by an explicit `global`/`nonlocal` directive in this
	// scope: declare() writes to the module/enclosing-function scope instead
	// of here.
	globalNames   map[string]bool
	nonlocalNames map[string]bool
}

func newScope(kind ScopeKind, parent *Scope, node *syntax.Node) *Scope {
	return &Scope{
		Kind:          kind,
		Parent:        parent,
		Node:          node,
		Symbols:       make(map[string]*Symbol),
		globalNames:   make(map[string]bool),
		nonlocalNames: make(map[string]bool),
	}
}

func (s *Scope) addChild(c *Scope) { s.Children = append(s.Children, c) }

// declScope returns the scope a new binding in s actually belongs to,
// honoring global/nonlocal redirection and skipping comprehension scopes
// (spec.md §4.3 bullet 2).
func (s *Scope) declScope(name string) *Scope {
	if s.globalNames[name] {
		m := s.moduleScope()
		return m
	}
	if s.nonlocalNames[name] {
		if target := s.enclosingFunctionScope(name); target != nil {
			return target
		}
		// unresolvable nonlocal: fall back to local scope so binding still
		// completes; the missing-binding diagnostic is reported separately.
	}
	target := s
	for target.Kind == ScopeComprehension {
		target = target.Parent
	}
	return target
}

func (s *Scope) moduleScope() *Scope {
	cur := s
	for cur.Parent != nil && cur.Kind != ScopeModule {
		cur = cur.Parent
	}
	return cur
}

// enclosingFunctionScope finds the nearest enclosing function scope (above
// s, not counting s itself) that already declares name, per the `nonlocal`
// binding requirement.
func (s *Scope) enclosingFunctionScope(name string) *Scope {
	cur := s.Parent
	for cur != nil && cur.Kind != ScopeModule && cur.Kind != ScopeBuiltins {
		if cur.Kind == ScopeFunction || cur.Kind == ScopeLambda {
			if _, ok := cur.Symbols[name]; ok {
				return cur
			}
		}
		cur = cur.Parent
	}
	return nil
}

func (s *Scope) declare(name string, kind SymbolKind, node *syntax.Node, declKind DeclKind) *Symbol {
	return s.declScope(name).declareHere(name, kind, node, declKind)
}

// declareHere binds name directly into s, bypassing the comprehension-skip
// and global/nonlocal redirection declare() applies. Used for a
// comprehension's own `for` target, which is scoped to the comprehension
// itself (unlike a walrus target lexically inside one, which leaks to the
// enclosing non-comprehension scope per spec.md §4.3 bullet 2 / PEP 572).
func (s *Scope) declareHere(name string, kind SymbolKind, node *syntax.Node, declKind DeclKind) *Symbol {
	sym, ok := s.Symbols[name]
	if !ok {
		sym = &Symbol{Name: name, Kind: kind, Scope: s}
		s.Symbols[name] = sym
	}
	sym.addDecl(node, declKind)
	return sym
}

// lookup resolves a name read, per normal Python LEGB rules: class scopes
// are transparent to the class body itself but invisible to nested
// functions (methods must go through `self`/the class object, never a bare
// name lookup into the enclosing class's namespace).
// Lookup is the exported form of lookup, used by the evaluator to resolve a
// Name node against the scope the binder placed it in (spec.md §4.5
// "Declaration resolution").
func (s *Scope) Lookup(name string) *Symbol { return s.lookup(name) }

func (s *Scope) lookup(name string) *Symbol {
	cur := s
	first := true
	for cur != nil {
		if cur.Kind == ScopeClass && !first {
			cur = cur.Parent
			continue
		}
		if sym, ok := cur.Symbols[name]; ok {
			return sym
		}
		first = false
		cur = cur.Parent
	}
	return nil
}
