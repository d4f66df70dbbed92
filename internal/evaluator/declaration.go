package evaluator

import (
	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/token"
	"github.com/oxhq/pytype/internal/types"
)

// evalName implements spec.md §4.5 "Declaration resolution": walk from the
// Name's binding-time symbol to the effective declarations active at its
// flow position, narrowing along the way.
func (e *Evaluator) evalName(n *syntax.Node) *types.Type {
	scope := e.scopeFor(n)
	sym := scope.Lookup(n.Name)
	if sym == nil {
		return types.Unknown()
	}
	declared := e.declaredType(sym)
	if ante, ok := e.bound.Antecedent[n.ID]; ok {
		if narrowed, ok := e.narrow(ante, n.Name, declared); ok {
			return narrowed
		}
	}
	return declared
}

// declaredType unions the type contributed by every Declaration of sym
// (spec.md §4.5 "For each declaration, determine a declared type (if
// annotated) or an inferred type (from the RHS expression). Union these.").
func (e *Evaluator) declaredType(sym *binder.Symbol) *types.Type {
	switch sym.Kind {
	case binder.SymFunction:
		return e.functionSymbolType(sym)
	case binder.SymClass:
		return e.classSymbolType(sym)
	case binder.SymModule:
		return types.ModuleType(sym.Name)
	}

	var members []*types.Type
	for _, d := range sym.Decls {
		members = append(members, e.declType(d))
	}
	return types.Union(members...)
}

func (e *Evaluator) declType(d *binder.Declaration) *types.Type {
	n := d.Node
	switch d.Kind {
	case binder.DeclAnnotation:
		if n.Annotation != nil {
			return e.evaluateAnnotation(n.Annotation)
		}
		if n.Value != nil {
			return e.GetType(n.Value)
		}
		return types.Unknown()
	case binder.DeclParameter:
		if n.Annotation != nil {
			return e.evaluateAnnotation(n.Annotation)
		}
		if n.HasDefault && n.Default != nil {
			return e.GetType(n.Default)
		}
		return types.Unknown()
	case binder.DeclAssignment, binder.DeclWalrus:
		if n.Value != nil {
			return e.GetType(n.Value)
		}
		return types.Unknown()
	case binder.DeclAugAssignment:
		if n.Value != nil {
			return e.GetType(n.Value)
		}
		return types.Unknown()
	case binder.DeclFor, binder.DeclComprehensionTarget:
		return e.iterationElementType(n.Iter)
	case binder.DeclWithAs:
		// the context manager's __enter__ return; approximated as the
		// manager expression's own type absent a resolved __enter__ member.
		return e.GetType(n.Value)
	case binder.DeclExceptAs:
		if n.ExceptType != nil {
			t := e.evaluateAnnotation(n.ExceptType)
			if t.Kind == types.KClass {
				return types.Instance(t.Class)
			}
			return t
		}
		return types.Instance(e.builtins.Object)
	case binder.DeclImport, binder.DeclImportFrom:
		return e.importedSymbolType(n)
	default:
		return types.Unknown()
	}
}

// iterationElementType types a `for x in EXPR`/comprehension target as the
// union of EXPR's element types when EXPR is a tuple, else Unknown (lists,
// sets and other iterables are not inspected; there is no
// `__iter__`/`__next__` protocol walk).
func (e *Evaluator) iterationElementType(iter *syntax.Node) *types.Type {
	if iter == nil {
		return types.Unknown()
	}
	it := e.GetType(iter)
	if it.Kind == types.KTuple && len(it.TupleElems) > 0 {
		return types.Union(it.TupleElems...)
	}
	return types.Unknown()
}

func (e *Evaluator) importedSymbolType(n *syntax.Node) *types.Type {
	modName := ""
	if len(n.ModuleParts) > 0 {
		modName = n.ModuleParts[len(n.ModuleParts)-1]
	} else if n.Name != "" {
		modName = n.Name
	}
	mod, ok := e.Imports[modName]
	if !ok || mod == nil || mod.Eval == nil {
		return types.Unknown()
	}
	target := n.Name
	if n.Alias != "" {
		target = n.Alias
	}
	if sym := mod.Scope.Lookup(target); sym != nil {
		return mod.Eval.declaredType(sym)
	}
	return types.ModuleType(modName)
}

// evaluateAnnotation evaluates a type annotation expression into a Type.
// Annotations are themselves expressions (`int`, `str | None`,
// `list[int]`, a forward-ref string) — spec.md §3 "Declaration ...the type
// annotation expression (if any) un-evaluated" defers this until asked,
// which is exactly what calling GetType lazily here achieves, with the
// class-object -> instance-type conversion annotations require.
func (e *Evaluator) evaluateAnnotation(ann *syntax.Node) *types.Type {
	if ann == nil {
		return types.Unknown()
	}
	if ann.Kind == syntax.KConstant && ann.ConstKind == syntax.ConstNone {
		return types.None()
	}
	if ann.Kind == syntax.KConstant && ann.ConstKind == syntax.ConstStr {
		// forward reference: `"Foo"` — resolved the same way a bare Name
		// would be, from the annotation's own lexical scope.
		scope := e.scopeFor(ann)
		if sym := scope.Lookup(ann.StringValue); sym != nil {
			t := e.declaredType(sym)
			if t.Kind == types.KClass {
				return types.Instance(t.Class)
			}
			return t
		}
		return types.Unknown()
	}
	if ann.Kind == syntax.KBinaryOp && ann.Op == token.OpPipe {
		return types.Union(e.evaluateAnnotation(ann.Left), e.evaluateAnnotation(ann.Comparators[0]))
	}
	if ann.Kind == syntax.KSubscript {
		return e.evaluateGenericAnnotation(ann)
	}
	t := e.GetType(ann)
	if t.Kind == types.KClass {
		return types.Instance(t.Class)
	}
	return t
}

// evaluateGenericAnnotation handles `list[int]`, `dict[str, int]`, `Optional[X]`
// and `Union[A, B]` subscript forms (spec.md §4.5 "Generic instantiation").
func (e *Evaluator) evaluateGenericAnnotation(ann *syntax.Node) *types.Type {
	base := e.GetType(ann.Obj)
	var args []*types.Type
	if ann.Value != nil {
		if ann.Value.Kind == syntax.KTuple {
			for _, a := range ann.Value.Body {
				args = append(args, e.evaluateAnnotation(a))
			}
		} else {
			args = append(args, e.evaluateAnnotation(ann.Value))
		}
	}
	if base.Kind == types.KClass && base.Class != nil {
		name := base.Class.Name
		if name == "Optional" && len(args) == 1 {
			return types.Union(args[0], types.None())
		}
		if name == "Union" {
			return types.Union(args...)
		}
		return types.Instance(base.Class, args...)
	}
	return types.Unknown()
}

func (e *Evaluator) functionSymbolType(sym *binder.Symbol) *types.Type {
	var sigs []*types.FunctionSig
	var overloaded bool
	for _, d := range sym.Decls {
		if d.Kind != binder.DeclFunctionDef {
			continue
		}
		sig := e.buildFunctionSig(d.Node)
		if hasDecorator(d.Node, "overload") {
			overloaded = true
		}
		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		return types.Unknown()
	}
	if overloaded || len(sigs) > 1 {
		return types.Overloaded(sigs)
	}
	return types.FunctionType(sigs[0])
}

func (e *Evaluator) buildFunctionSig(def *syntax.Node) *types.FunctionSig {
	sig := &types.FunctionSig{Name: def.Name}
	for _, p := range def.Params {
		param := &types.Param{Name: p.Name, Kind: paramKind(p.ParamKind), HasDefault: p.HasDefault}
		if p.Annotation != nil {
			param.Annotation = e.evaluateAnnotation(p.Annotation)
		} else {
			param.Annotation = types.Unknown()
		}
		sig.Params = append(sig.Params, param)
	}
	if def.Returns != nil {
		sig.Return = e.evaluateAnnotation(def.Returns)
	} else {
		sig.Return = types.Unknown()
	}
	if typeGuardTarget, ok := typeGuardOf(sig.Return); ok {
		sig.IsTypeGuard = true
		sig.TypeGuardTarget = typeGuardTarget
		if len(sig.Params) > 0 {
			_ = sig.Params[0] // narrowed param is Params[0] (or Params[1] for methods); checker resolves per call site
		}
	}
	if hasDecorator(def, "abstractmethod") {
		// abstract-ness is recorded on the ClassRef Member, not the bare
		// FunctionSig; the class builder re-derives it from the decorator.
	}
	return sig
}

func typeGuardOf(ret *types.Type) (*types.Type, bool) {
	if ret == nil || ret.Kind != types.KInstance || ret.Class == nil {
		return nil, false
	}
	if ret.Class.Name == "TypeGuard" && len(ret.TypeArgs) == 1 {
		return ret.TypeArgs[0], true
	}
	return nil, false
}

func hasDecorator(def *syntax.Node, name string) bool {
	for _, d := range def.Decorators {
		target := d
		if target.Kind == syntax.KCall {
			target = target.Func
		}
		if target.Kind == syntax.KName && target.Name == name {
			return true
		}
		if target.Kind == syntax.KAttribute && target.Attr == name {
			return true
		}
	}
	return false
}

func (e *Evaluator) classSymbolType(sym *binder.Symbol) *types.Type {
	for _, d := range sym.Decls {
		if d.Kind == binder.DeclClassDef {
			return types.ClassValue(e.classRefFor(d.Node))
		}
	}
	return types.Unknown()
}
