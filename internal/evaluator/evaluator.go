// Package evaluator computes a Type for every expression node on demand,
// narrows types along flow edges, and checks assignability (spec.md §4.5).
// It consumes a binder.BoundModule; it never mutates it.
package evaluator

import (
	"fmt"

	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/token"
	"github.com/oxhq/pytype/internal/types"
)

// Evaluator is the per-SourceFile evaluation context (spec.md §4.5
// "Evaluation is lazy and memoized"). Cross-module lookups go through
// Imports, supplied by the Program once dependency SourceFiles reach at
// least Bound (spec.md §4.7 "evaluation to read a still-binding
// dependency's top-level declarations").
type Evaluator struct {
	file     string
	bound    *binder.BoundModule
	builtins *Builtins
	parents  *syntax.ParentIndex

	cache   map[int]*types.Type
	classes map[int]*types.ClassRef // KClassDef node ID -> interned ClassRef
	inProgress map[int]bool         // reentrancy guard (spec.md §4.5 "cyclic reentrance" -> Unknown)

	diags diagnostic.Bag

	// Imports resolves a module name reached through an Import/ImportFrom
	// declaration to a Module-level symbol table. nil entries degrade every
	// lookup through that import to Unknown (spec.md §4.5 failure model).
	Imports map[string]*ModuleExports
}

// ModuleExports is what the Program exposes about a dependency module: its
// top-level scope and evaluator, so cross-module Name resolution can walk
// into it (spec.md §4.7 "read a still-binding dependency's top-level
// declarations").
type ModuleExports struct {
	Scope *binder.Scope
	Eval  *Evaluator // nil while the dependency is only Bound, not yet Evaluated
}

func New(file string, bound *binder.BoundModule, builtins *Builtins) *Evaluator {
	return &Evaluator{
		file:       file,
		bound:      bound,
		builtins:   builtins,
		parents:    syntax.BuildParentIndex(bound.Module),
		cache:      make(map[int]*types.Type),
		classes:    make(map[int]*types.ClassRef),
		inProgress: make(map[int]bool),
		Imports:    make(map[string]*ModuleExports),
	}
}

func (e *Evaluator) Diagnostics() []diagnostic.Diagnostic { return e.diags.All() }

// GetType returns the memoized type of n, computing it on first request
// (spec.md §4.5 `getType(node) → Type`).
func (e *Evaluator) GetType(n *syntax.Node) *types.Type {
	if n == nil {
		return types.Unknown()
	}
	if t, ok := e.cache[n.ID]; ok {
		return t
	}
	if e.inProgress[n.ID] {
		// cyclic reentrance (spec.md §4.5 failure model).
		return types.Unknown()
	}
	e.inProgress[n.ID] = true
	t := e.evaluate(n)
	delete(e.inProgress, n.ID)
	e.cache[n.ID] = t
	return t
}

// ScopeFor exposes scopeFor to language-service callers (hover/definition/
// completion need the scope a cursor position's enclosing node resolves
// names against, the same lookup GetType performs internally for KName).
func (e *Evaluator) ScopeFor(n *syntax.Node) *binder.Scope { return e.scopeFor(n) }

// scopeFor finds the innermost Def/Lambda/Comprehension scope enclosing n by
// walking parent pointers until hitting a node recorded in bm.Scopes,
// falling back to the module scope (binder.BoundModule.Scopes only records
// scope-introducing nodes, spec.md §4.3).
func (e *Evaluator) scopeFor(n *syntax.Node) *binder.Scope {
	cur := n
	for cur != nil {
		if s, ok := e.bound.Scopes[cur.ID]; ok {
			return s
		}
		cur = e.parents.Parent(cur)
	}
	return e.bound.ModuleScope
}

func (e *Evaluator) evaluate(n *syntax.Node) *types.Type {
	switch n.Kind {
	case syntax.KConstant:
		return e.evalConstant(n)
	case syntax.KName:
		return e.evalName(n)
	case syntax.KTuple:
		return e.evalTuple(n)
	case syntax.KList, syntax.KSet:
		return e.evalContainerLiteral(n)
	case syntax.KDict:
		return e.builtins.instance(e.builtins.Dict)
	case syntax.KBinaryOp:
		return e.evalBinaryOp(n)
	case syntax.KBoolOp:
		return types.Union(e.GetType(n.Left), e.evalAllComparators(n)...)
	case syntax.KUnaryOp:
		if n.Op == token.OpNone {
			return e.builtins.instance(e.builtins.Bool) // `not x` always yields bool
		}
		return e.GetType(n.Value)
	case syntax.KCompare:
		return e.builtins.instance(e.builtins.Bool)
	case syntax.KIfExp:
		return types.Union(e.GetType(n.Body[0]), e.GetType(n.OrElse[0]))
	case syntax.KCall:
		return e.evalCall(n)
	case syntax.KAttribute:
		return e.evalAttribute(n)
	case syntax.KSubscript:
		return e.evalSubscript(n)
	case syntax.KNamedExpr:
		return e.GetType(n.Value)
	case syntax.KStarred:
		return e.GetType(n.Value)
	case syntax.KLambda:
		return e.evalLambda(n)
	case syntax.KListComp, syntax.KSetComp, syntax.KGeneratorExp:
		return e.evalComprehension(n)
	case syntax.KDictComp:
		return e.builtins.instance(e.builtins.Dict)
	case syntax.KYield, syntax.KYieldFrom, syntax.KAwait:
		return e.GetType(n.Value)
	case syntax.KJoinedStr:
		return e.builtins.instance(e.builtins.Str)
	case syntax.KError:
		return types.Unknown()
	default:
		return types.Unknown()
	}
}

func (e *Evaluator) evalAllComparators(n *syntax.Node) []*types.Type {
	out := make([]*types.Type, 0, len(n.Comparators))
	for _, c := range n.Comparators {
		out = append(out, e.GetType(c))
	}
	return out
}

func (e *Evaluator) evalConstant(n *syntax.Node) *types.Type {
	switch n.ConstKind {
	case syntax.ConstNone:
		return types.None()
	case syntax.ConstBool:
		return types.Literal(e.builtins.instance(e.builtins.Bool), fmt.Sprintf("%v", n.IntValue != 0))
	case syntax.ConstInt:
		return types.Literal(e.builtins.instance(e.builtins.Int), fmt.Sprintf("%d", n.IntValue))
	case syntax.ConstFloat:
		return e.builtins.instance(e.builtins.Float)
	case syntax.ConstImaginary:
		return e.builtins.instance(e.builtins.Complex)
	case syntax.ConstStr:
		return types.Literal(e.builtins.instance(e.builtins.Str), fmt.Sprintf("%q", n.StringValue))
	case syntax.ConstBytes:
		return e.builtins.instance(e.builtins.Bytes)
	case syntax.ConstEllipsis:
		return types.Any()
	default:
		return types.Unknown()
	}
}

func (e *Evaluator) evalTuple(n *syntax.Node) *types.Type {
	elems := make([]*types.Type, 0, len(n.Body))
	for _, el := range n.Body {
		elems = append(elems, e.GetType(el))
	}
	return types.TupleType(elems, false)
}

func (e *Evaluator) evalContainerLiteral(n *syntax.Node) *types.Type {
	if n.Kind == syntax.KSet {
		return e.builtins.instance(e.builtins.Set)
	}
	return e.builtins.instance(e.builtins.List)
}

func (e *Evaluator) evalBinaryOp(n *syntax.Node) *types.Type {
	lt := e.GetType(n.Left)
	var rt *types.Type
	if len(n.Comparators) > 0 {
		rt = e.GetType(n.Comparators[0])
	}
	t := arithmeticResult(e.builtins, n.Op, lt, rt)
	if t.Kind == types.KNever && n.Op == token.OpPlus {
		e.diags.Addf(e.file, n.Range, diagnostic.RuleGeneralTypeIssues,
			"Operator \"+\" not supported for types %q and %q", underlyingClass(lt).Name, underlyingClass(rt).Name)
	}
	return t
}

// arithmeticResult implements a small closed-form set of numeric-tower
// promotion rules (spec.md §8 scenario 1 needs `int + str` to be an error,
// not silently Unknown).
func arithmeticResult(b *Builtins, op token.OpKind, lt, rt *types.Type) *types.Type {
	lc := underlyingClass(lt)
	rc := underlyingClass(rt)
	if lc == nil || rc == nil {
		return types.Unknown()
	}
	if lc == b.Str && rc == b.Str && op == token.OpPlus {
		return types.Instance(b.Str)
	}
	if (lc == b.Str) != (rc == b.Str) {
		return types.Never() // evalBinaryOp reports reportGeneralTypeIssues for `+`
	}
	numeric := func(c *types.ClassRef) int {
		switch c {
		case b.Bool, b.Int:
			return 1
		case b.Float:
			return 2
		case b.Complex:
			return 3
		}
		return 0
	}
	ln, rn := numeric(lc), numeric(rc)
	if ln == 0 || rn == 0 {
		return types.Unknown()
	}
	if ln >= rn {
		return types.Instance(promoteInt(b, lc))
	}
	return types.Instance(promoteInt(b, rc))
}

func promoteInt(b *Builtins, c *types.ClassRef) *types.ClassRef {
	if c == b.Bool {
		return b.Int
	}
	return c
}

func underlyingClass(t *types.Type) *types.ClassRef {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case types.KInstance:
		return t.Class
	case types.KLiteral:
		return underlyingClass(t.LiteralBase)
	default:
		return nil
	}
}

func (e *Evaluator) evalLambda(n *syntax.Node) *types.Type {
	sig := &types.FunctionSig{Return: e.GetType(n.LambdaBody)}
	for _, p := range n.LambdaParams {
		sig.Params = append(sig.Params, &types.Param{Name: p.Name, Kind: paramKind(p.ParamKind), HasDefault: p.HasDefault})
	}
	return types.FunctionType(sig)
}

func (e *Evaluator) evalComprehension(n *syntax.Node) *types.Type {
	if n.Kind == syntax.KGeneratorExp {
		return types.Instance(e.builtins.Object) // generator protocol, approximated
	}
	if n.Kind == syntax.KSetComp {
		return e.builtins.instance(e.builtins.Set)
	}
	return e.builtins.instance(e.builtins.List)
}

func paramKind(k syntax.ParamKind) types.ParamKind {
	switch k {
	case syntax.ParamPositionalOnly:
		return types.ParamPositionalOnly
	case syntax.ParamVarPositional:
		return types.ParamVarPositional
	case syntax.ParamKeywordOnly:
		return types.ParamKeywordOnly
	case syntax.ParamVarKeyword:
		return types.ParamVarKeyword
	default:
		return types.ParamPositionalOrKeyword
	}
}

// CheckAssignable implements `checkAssignable(dst, src, context) → Ok |
// Errors` (spec.md §4.5), recording a reportGeneralTypeIssues diagnostic at
// the given node on failure.
func (e *Evaluator) CheckAssignable(dst, src *types.Type, at *syntax.Node) bool {
	if types.Assignable(dst, src) {
		return true
	}
	e.diags.Addf(e.file, at.Range, diagnostic.RuleGeneralTypeIssues,
		"Type %q is not assignable to declared type %q", types.Display(src), types.Display(dst))
	return false
}
