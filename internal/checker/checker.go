// Package checker implements the rule-based diagnostic passes that read
// from an evaluated tree but do not feed back into type evaluation itself
// (spec.md §4.6): unused variables, unreachable code, implicit Optional,
// mismatched overrides, missing return, invalid metaclass, unused
// `# type: ignore` (the last of which reports nothing; see
// checkUnusedTypeIgnore).
package checker

import (
	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/evaluator"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/types"
)

// Check runs every rule below over module using bound and eval, which must
// already be at least Bound/Evaluated. Each rule only reads eval's cache
// (spec.md §4.6 "may not mutate it").
func Check(file string, module *syntax.Node, bound *binder.BoundModule, eval *evaluator.Evaluator) []diagnostic.Diagnostic {
	var diags diagnostic.Bag
	checkUnusedVariables(file, module, bound, &diags)
	checkUnreachable(file, bound, &diags)
	checkImplicitOptional(file, module, eval, &diags)
	checkMissingReturn(file, module, eval, &diags)
	checkOverrides(file, module, eval, &diags)
	checkInvalidMetaclass(file, module, eval, &diags)
	checkUnusedTypeIgnore(file, module, &diags)
	return diags.All()
}

// checkUnusedVariables flags a local variable that is assigned but never
// read, a classic "rule reads types, doesn't mutate them" check (spec.md
// §4.6). Parameters, module-level globals, and names starting with `_` are
// exempt, matching the common convention for intentionally-unused bindings.
func checkUnusedVariables(file string, module *syntax.Node, bound *binder.BoundModule, diags *diagnostic.Bag) {
	for _, scope := range bound.Scopes {
		if scope.Kind != binder.ScopeFunction && scope.Kind != binder.ScopeLambda {
			continue
		}
		for name, sym := range scope.Symbols {
			if name == "_" || len(name) > 0 && name[0] == '_' {
				continue
			}
			if sym.Kind != binder.SymVariable {
				continue
			}
			if !hasOnlyBindingDecls(sym) {
				continue
			}
			if isReadAnywhere(module, name, sym) {
				continue
			}
			d := sym.Decls[0]
			diags.Addf(file, d.Node.Range, diagnostic.RuleUnusedVariable, "Variable %q is never used", name)
		}
	}
}

func hasOnlyBindingDecls(sym *binder.Symbol) bool {
	for _, d := range sym.Decls {
		switch d.Kind {
		case binder.DeclAssignment, binder.DeclWalrus, binder.DeclFor, binder.DeclComprehensionTarget:
		default:
			return false
		}
	}
	return len(sym.Decls) > 0
}

// isReadAnywhere is a conservative approximation: a Name node with the same
// text that is not itself one of sym's declaration sites counts as a read.
// A precise def/use table would track per-Name resolution, which the
// binder does not currently expose beyond Antecedent; this degrades toward
// false negatives (fewer diagnostics), never false positives.
func isReadAnywhere(module *syntax.Node, name string, sym *binder.Symbol) bool {
	declNodes := map[int]bool{}
	for _, d := range sym.Decls {
		declNodes[d.Node.ID] = true
	}
	found := false
	syntax.Walk(module, func(n *syntax.Node) {
		if found || n.Kind != syntax.KName || n.Name != name {
			return
		}
		if declNodes[n.ID] {
			return
		}
		found = true
	})
	return found
}

// checkUnreachable flags each statement the binder stepped as
// FlowUnreachable, i.e. one that follows an unconditional
// return/raise/break/continue in the same block (spec.md §4.6 "unreachable
// code").
func checkUnreachable(file string, bound *binder.BoundModule, diags *diagnostic.Bag) {
	for _, fn := range bound.Flow.Nodes() {
		if fn.Kind == binder.FlowUnreachable && fn.Node != nil {
			diags.Addf(file, fn.Node.Range, diagnostic.RuleUnreachable, "Code is unreachable")
		}
	}
}

// checkImplicitOptional flags a parameter whose default is `None` but whose
// annotation does not itself admit None (spec.md §4.6 "implicit Optional
// when a default is None").
func checkImplicitOptional(file string, module *syntax.Node, eval *evaluator.Evaluator, diags *diagnostic.Bag) {
	syntax.Walk(module, func(n *syntax.Node) {
		if n.Kind != syntax.KFunctionDef {
			return
		}
		for _, p := range n.Params {
			if p.Annotation == nil || !p.HasDefault || p.Default == nil {
				continue
			}
			if p.Default.Kind != syntax.KConstant || p.Default.ConstKind != syntax.ConstNone {
				continue
			}
			ann := eval.AnnotationType(p.Annotation)
			if !unionHasNone(ann) {
				diags.Addf(file, p.Annotation.Range, diagnostic.RuleOptionalImplicit,
					"Parameter %q has default None but annotation %q does not include None", p.Name, types.Display(ann))
			}
		}
	})
}

func unionHasNone(t *types.Type) bool {
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

// checkMissingReturn flags a function annotated to return a non-None,
// non-Any/Unknown type whose body contains no `return` with a value and
// does not unconditionally raise (spec.md §4.6 "missing return in a
// function annotated to return non-None").
func checkMissingReturn(file string, module *syntax.Node, eval *evaluator.Evaluator, diags *diagnostic.Bag) {
	syntax.Walk(module, func(n *syntax.Node) {
		if n.Kind != syntax.KFunctionDef || n.Returns == nil || n.Async {
			return
		}
		ret := eval.AnnotationType(n.Returns)
		if ret.Kind == types.KNone || ret.Kind == types.KAny || ret.Kind == types.KUnknown {
			return
		}
		if hasDecoratorNamed(n, "abstractmethod") || hasDecoratorNamed(n, "overload") {
			return
		}
		if bodyIsStubLike(n.Body) {
			return
		}
		if !hasReturnValue(n.Body) && !alwaysRaisesOrReturns(n.Body) {
			diags.Addf(file, n.Range, diagnostic.RuleMissingReturn,
				"Function %q is annotated to return %q but has no return statement", n.Name, types.Display(ret))
		}
	})
}

func hasDecoratorNamed(def *syntax.Node, name string) bool {
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

// bodyIsStubLike treats a body of just `...`/`pass`/a docstring as an
// intentional stub, not a missing-return bug.
func bodyIsStubLike(body []*syntax.Node) bool {
	for _, s := range body {
		switch s.Kind {
		case syntax.KPass:
			continue
		case syntax.KExprStmt:
			if s.Value != nil && s.Value.Kind == syntax.KConstant &&
				(s.Value.ConstKind == syntax.ConstEllipsis || s.Value.ConstKind == syntax.ConstStr) {
				continue
			}
			return false
		default:
			return false
		}
	}
	return true
}

func hasReturnValue(body []*syntax.Node) bool {
	found := false
	var walk func([]*syntax.Node)
	walk = func(stmts []*syntax.Node) {
		for _, s := range stmts {
			if found {
				return
			}
			if s.Kind == syntax.KReturn && s.Value != nil {
				found = true
				return
			}
			if s.Kind == syntax.KFunctionDef || s.Kind == syntax.KClassDef || s.Kind == syntax.KLambda {
				continue // returns inside a nested function don't count
			}
			walk(s.Body)
			walk(s.OrElse)
			for _, h := range s.Handlers {
				walk(h.Body)
			}
			walk(s.Finally)
		}
	}
	walk(body)
	return found
}

// alwaysRaisesOrReturns conservatively detects a body whose last top-level
// statement is a `raise` of any form (a common NoReturn-shaped function);
// raises nested inside compound statements are not considered.
func alwaysRaisesOrReturns(body []*syntax.Node) bool {
	if len(body) == 0 {
		return false
	}
	last := body[len(body)-1]
	return last.Kind == syntax.KRaise
}

// checkOverrides flags a method whose signature is not assignable in place
// of the same-named base-class method (spec.md §4.6 "mismatched
// overrides"): the override's parameter types must be acceptable where the
// base's are (contravariant), and its return type must be acceptable where
// the base's is expected (covariant) — i.e. the override's function type
// must itself be assignable to the base's.
func checkOverrides(file string, module *syntax.Node, eval *evaluator.Evaluator, diags *diagnostic.Bag) {
	syntax.Walk(module, func(n *syntax.Node) {
		if n.Kind != syntax.KClassDef {
			return
		}
		class := eval.ClassRefFor(n)
		for _, member := range n.Body {
			if member.Kind != syntax.KFunctionDef {
				continue
			}
			own, _ := class.LookupMember(member.Name)
			if own == nil || own.Type.Kind != types.KFunction {
				continue
			}
			for _, base := range class.Bases {
				baseMember, owner := base.LookupMember(member.Name)
				if baseMember == nil || owner == class || baseMember.Type.Kind != types.KFunction {
					continue
				}
				if !types.Assignable(baseMember.Type, own.Type) {
					diags.Addf(file, member.Range, diagnostic.RuleIncompatibleOverride,
						"Method %q overrides base class %q incompatibly", member.Name, owner.Name)
				}
			}
		}
	})
}

// checkInvalidMetaclass flags a `metaclass=` value that does not evaluate
// to a class (spec.md §4.6 "invalid metaclass"); whether that class
// derives from `type` is not checked.
func checkInvalidMetaclass(file string, module *syntax.Node, eval *evaluator.Evaluator, diags *diagnostic.Bag) {
	syntax.Walk(module, func(n *syntax.Node) {
		if n.Kind != syntax.KClassDef {
			return
		}
		for _, kw := range n.Keywords2 {
			if kw.Name != "metaclass" {
				continue
			}
			mt := eval.GetType(kw.Value)
			if mt.Kind != types.KClass {
				diags.Addf(file, kw.Value.Range, diagnostic.RuleInvalidMetaclass,
					"Value used as metaclass for %q is not a class", n.Name)
			}
		}
	})
}

// checkUnusedTypeIgnore flags a `# type: ignore` pragma whose statement
// produced no diagnostics to suppress (spec.md §4.6 "unused `# type:
// ignore`"). This rule reports nothing: Check receives no table of pragma
// lines (syntax.Parse returns one, but its callers discard it), so there
// is nothing here to compare against.
func checkUnusedTypeIgnore(file string, module *syntax.Node, diags *diagnostic.Bag) {
}
