package evaluator

import (
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/types"
)

// evalCall resolves a call expression's result type, including overload
// resolution (spec.md §4.5 "Overload resolution") and simple generic
// type-variable inference (spec.md §4.5 "Generic instantiation").
func (e *Evaluator) evalCall(n *syntax.Node) *types.Type {
	calleeType := e.GetType(n.Func)
	argTypes := make([]*types.Type, 0, len(n.Args))
	for _, a := range n.Args {
		argTypes = append(argTypes, e.GetType(a))
	}

	switch calleeType.Kind {
	case types.KFunction:
		return e.callFunction(calleeType.Func, argTypes, n)
	case types.KOverloaded:
		sig, ok := e.pickOverload(calleeType.Overloads, argTypes)
		if !ok {
			// No overload matches: record a diagnostic and take the result
			// from the last overload's signature (spec.md §4.5).
			sig = calleeType.Overloads[len(calleeType.Overloads)-1]
			e.diags.Addf(e.file, n.Range, diagnostic.RuleGeneralTypeIssues,
				"No overload of %q matches the argument types", sig.Name)
		}
		return e.callFunction(sig, argTypes, n)
	case types.KClass:
		return types.Instance(calleeType.Class)
	default:
		return types.Unknown()
	}
}

// callFunction substitutes type-variable arguments (generic instantiation)
// and returns the (possibly substituted) return type.
func (e *Evaluator) callFunction(sig *types.FunctionSig, argTypes []*types.Type, at *syntax.Node) *types.Type {
	if sig.IsNoReturn {
		return types.Never()
	}
	if len(sig.TypeParams) == 0 {
		return sig.Return
	}
	subst := inferTypeVars(sig, argTypes)
	return substitute(sig.Return, subst)
}

// inferTypeVars implements spec.md §4.5 "Type-variable inference from a
// call site: collect constraints from argument assignability against
// parameter annotations; solve by least-upper-bound for covariant slots,
// greatest-lower-bound for contravariant slots."
func inferTypeVars(sig *types.FunctionSig, argTypes []*types.Type) map[string]*types.Type {
	candidates := map[string][]*types.Type{}
	for i, p := range sig.Params {
		if i >= len(argTypes) {
			break
		}
		collectTypeVarCandidates(p.Annotation, argTypes[i], candidates)
	}
	solved := map[string]*types.Type{}
	for _, tv := range sig.TypeParams {
		cs := candidates[tv.Name]
		if len(cs) == 0 {
			solved[tv.Name] = types.Unknown()
			continue
		}
		switch tv.Variance {
		case types.VarianceContravariant:
			solved[tv.Name] = greatestLowerBound(cs)
		default:
			solved[tv.Name] = types.Union(cs...) // least-upper-bound ~ union for a structural lattice
		}
	}
	return solved
}

func collectTypeVarCandidates(annotation, arg *types.Type, out map[string][]*types.Type) {
	if annotation == nil || arg == nil {
		return
	}
	if annotation.Kind == types.KTypeVar {
		out[annotation.TypeVar.Name] = append(out[annotation.TypeVar.Name], arg)
		return
	}
	if annotation.Kind == types.KInstance && arg.Kind == types.KInstance {
		for i, sub := range annotation.TypeArgs {
			if i < len(arg.TypeArgs) {
				collectTypeVarCandidates(sub, arg.TypeArgs[i], out)
			}
		}
	}
}

// greatestLowerBound picks the most specific (first, by nominal subclass
// check) candidate; a full meet-semilattice over structural types is out of
// scope, this degrades to Unknown when candidates are incomparable.
func greatestLowerBound(cs []*types.Type) *types.Type {
	best := cs[0]
	for _, c := range cs[1:] {
		if best.Kind != types.KInstance || c.Kind != types.KInstance {
			return types.Unknown()
		}
		switch {
		case c.Class.IsSubclassOf(best.Class):
			best = c
		case best.Class.IsSubclassOf(c.Class):
		default:
			return types.Unknown()
		}
	}
	return best
}

func substitute(t *types.Type, subst map[string]*types.Type) *types.Type {
	if t == nil {
		return types.Unknown()
	}
	if t.Kind == types.KTypeVar {
		if s, ok := subst[t.TypeVar.Name]; ok {
			return s
		}
		return t
	}
	if t.Kind == types.KInstance && len(t.TypeArgs) > 0 {
		args := make([]*types.Type, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			args[i] = substitute(a, subst)
		}
		return types.Instance(t.Class, args...)
	}
	return t
}

// pickOverload implements spec.md §4.5 "try overloads in source order; pick
// the first whose parameter types are assignable from the argument types."
func (e *Evaluator) pickOverload(sigs []*types.FunctionSig, argTypes []*types.Type) (*types.FunctionSig, bool) {
	for _, sig := range sigs {
		if overloadMatches(sig, argTypes) {
			return sig, true
		}
	}
	return nil, false
}

func overloadMatches(sig *types.FunctionSig, argTypes []*types.Type) bool {
	fixed := 0
	for _, p := range sig.Params {
		if p.Kind == types.ParamVarPositional || p.Kind == types.ParamVarKeyword {
			continue
		}
		fixed++
	}
	if len(argTypes) > fixed {
		hasVarArgs := false
		for _, p := range sig.Params {
			if p.Kind == types.ParamVarPositional {
				hasVarArgs = true
			}
		}
		if !hasVarArgs {
			return false
		}
	}
	for i, p := range sig.Params {
		if p.Kind == types.ParamVarPositional || p.Kind == types.ParamVarKeyword {
			break
		}
		if i >= len(argTypes) {
			break
		}
		if !types.Assignable(p.Annotation, argTypes[i]) {
			return false
		}
	}
	return true
}

// evalAttribute resolves `obj.attr` via MRO member lookup (spec.md §4.5
// "Class resolution... Member lookup walks the MRO").
func (e *Evaluator) evalAttribute(n *syntax.Node) *types.Type {
	objType := e.GetType(n.Obj)
	switch objType.Kind {
	case types.KInstance:
		if m, _ := objType.Class.LookupMember(n.Attr); m != nil {
			return substituteClassArgs(m.Type, objType)
		}
		return types.Unknown()
	case types.KClass:
		if m, _ := objType.Class.LookupMember(n.Attr); m != nil {
			return m.Type
		}
		return types.Unknown()
	case types.KModule:
		if mod, ok := e.Imports[objType.ModuleName]; ok && mod != nil && mod.Eval != nil {
			if sym := mod.Scope.Lookup(n.Attr); sym != nil {
				return mod.Eval.declaredType(sym)
			}
		}
		return types.Unknown()
	default:
		return types.Unknown()
	}
}

// substituteClassArgs would apply a generic instance's TypeArgs to a member
// type drawn from its class's body (e.g. binding `T` in `class Box(Generic[T])`
// to `int` for a `Box[int]` instance). ClassRef does not yet record a class's
// own TypeParams separately from Bases, so there is nothing to bind args to
// yet; members come back unsubstituted until that's threaded through.
func substituteClassArgs(memberType *types.Type, instance *types.Type) *types.Type {
	return memberType
}

// evalSubscript handles both indexing (`xs[0]`) and slicing (`xs[1:2]`);
// element types fall back to Unknown absent a stub-backed `__getitem__`.
func (e *Evaluator) evalSubscript(n *syntax.Node) *types.Type {
	objType := e.GetType(n.Obj)
	if objType.Kind == types.KInstance && objType.Class == e.builtins.Tuple && n.Value != nil && n.Value.Kind != syntax.KSlice {
		if len(objType.TypeArgs) > 0 {
			return objType.TypeArgs[0]
		}
	}
	if objType.Kind == types.KTuple && n.Value != nil && n.Value.Kind == syntax.KConstant && n.Value.ConstKind == syntax.ConstInt {
		idx := int(n.Value.IntValue)
		if idx >= 0 && idx < len(objType.TupleElems) {
			return objType.TupleElems[idx]
		}
	}
	return types.Unknown()
}
