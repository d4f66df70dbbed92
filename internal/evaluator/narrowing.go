package evaluator

import (
	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/token"
	"github.com/oxhq/pytype/internal/types"
)

// narrow implements spec.md §4.5 "Flow-sensitive narrowing": starting from
// the expression's antecedent flow node, walk backward through
// predecessors, combining types. Returns ok=false when nothing along the
// path narrows name, in which case the caller keeps the plain declared
// type.
func (e *Evaluator) narrow(start *binder.FlowNode, name string, declared *types.Type) (*types.Type, bool) {
	return e.narrowWalk(start, name, declared, map[int]bool{}, 0)
}

const maxNarrowDepth = 64

// fixedPointRounds is not consulted by narrowWalk: loop heads are not
// iterated to a fixed point (see the FlowLoopHead case below).
const fixedPointRounds = 3

func (e *Evaluator) narrowWalk(fn *binder.FlowNode, name string, base *types.Type, visited map[int]bool, depth int) (*types.Type, bool) {
	if fn == nil || depth > maxNarrowDepth {
		return base, false
	}
	if visited[fn.ID] {
		// loop back-edge revisit: widen to the declared type rather than
		// recursing forever (spec.md §4.5 "if the type width grows past a
		// bound the evaluator widens to the declared type").
		return base, false
	}
	visited[fn.ID] = true

	switch fn.Kind {
	case binder.FlowMerge:
		return e.narrowMerge(fn, name, base, visited, depth)
	case binder.FlowBranch:
		prior, ok := e.narrowWalk(firstAntecedent(fn), name, base, visited, depth+1)
		if pred, target, matches := matchPredicate(fn.Node, name); matches {
			return e.applyPredicate(prior, pred, target, fn.Polarity), true
		}
		return prior, ok
	case binder.FlowLoopHead:
		// follow only the first (pre-loop) antecedent; back edges from the
		// loop body are not walked, so assignments inside the loop do not
		// contribute here, and no fixed-point iteration or widening runs.
		return e.narrowWalk(firstAntecedent(fn), name, base, visited, depth+1)
	case binder.FlowStart:
		return base, false
	default:
		return e.narrowWalk(firstAntecedent(fn), name, base, visited, depth+1)
	}
}

func (e *Evaluator) narrowMerge(fn *binder.FlowNode, name string, base *types.Type, visited map[int]bool, depth int) (*types.Type, bool) {
	var members []*types.Type
	any := false
	for _, ante := range fn.Antecedents {
		branchVisited := copyVisited(visited)
		t, ok := e.narrowWalk(ante, name, base, branchVisited, depth+1)
		if ok {
			any = true
		}
		if t.Kind != types.KNever {
			members = append(members, t)
		}
	}
	if len(members) == 0 {
		return types.Never(), any
	}
	return types.Union(members...), any
}

func copyVisited(v map[int]bool) map[int]bool {
	out := make(map[int]bool, len(v))
	for k := range v {
		out[k] = true
	}
	return out
}

func firstAntecedent(fn *binder.FlowNode) *binder.FlowNode {
	if len(fn.Antecedents) == 0 {
		return nil
	}
	return fn.Antecedents[0]
}

// predicateShape tags the syntactic narrowing forms spec.md §4.5 lists.
type predicateShape int

const (
	predIsInstance predicateShape = iota
	predIsNone
	predIsNotNone
	predTruthy
	predFalsy
	predEqualsLiteral
	predTypeIs
	predTypeGuardCall
)

// matchPredicate recognizes one of spec.md §4.5's narrowing predicate
// shapes applied to `name` within test. target is the annotation/type
// expression the predicate narrows toward (isinstance's second argument,
// the TypeGuard call's declared target, etc.), nil when not applicable.
func matchPredicate(test *syntax.Node, name string) (predicateShape, *syntax.Node, bool) {
	if test == nil {
		return 0, nil, false
	}
	switch test.Kind {
	case syntax.KName:
		if test.Name == name {
			return predTruthy, nil, true
		}
	case syntax.KUnaryOp:
		// `not x` lowers to KUnaryOp{Op: OpNone, Value: x}; every other
		// unary op (-, +, ~) cannot flip a narrowing predicate.
		if test.Op == token.OpNone {
			if shape, target, ok := matchPredicate(test.Value, name); ok {
				return invert(shape), target, true
			}
		}
	case syntax.KCall:
		if test.Func != nil && test.Func.Kind == syntax.KName {
			switch test.Func.Name {
			case "isinstance":
				if len(test.Args) == 2 && test.Args[0].Kind == syntax.KName && test.Args[0].Name == name {
					return predIsInstance, test.Args[1], true
				}
			default:
				if len(test.Args) >= 1 && test.Args[0].Kind == syntax.KName && test.Args[0].Name == name {
					return predTypeGuardCall, test.Func, true
				}
			}
		}
	case syntax.KCompare:
		if len(test.Comparators) != 1 || len(test.CompareOps) != 1 {
			break
		}
		op := test.CompareOps[0]
		left, right := test.Left, test.Comparators[0]
		flip := false
		if !(left.Kind == syntax.KName && left.Name == name) {
			left, right = right, left
			flip = true
		}
		if !(left.Kind == syntax.KName && left.Name == name) {
			break
		}
		_ = flip
		switch {
		case op == token.OpIs && isNoneConst(right):
			return predIsNone, nil, true
		case op == token.OpIsNot && isNoneConst(right):
			return predIsNotNone, nil, true
		case op == token.OpEq && isNoneConst(right):
			return predIsNone, nil, true
		case op == token.OpNe && isNoneConst(right):
			return predIsNotNone, nil, true
		case op == token.OpEq && right.Kind == syntax.KConstant:
			return predEqualsLiteral, right, true
		case op == token.OpIs:
			if right.Kind == syntax.KCall && right.Func != nil && right.Func.Name == "type" {
				break
			}
			return predTypeIs, right, true
		}
	}
	return 0, nil, false
}

func isNoneConst(n *syntax.Node) bool {
	return n != nil && n.Kind == syntax.KConstant && n.ConstKind == syntax.ConstNone
}

func invert(s predicateShape) predicateShape {
	switch s {
	case predTruthy:
		return predFalsy
	case predFalsy:
		return predTruthy
	case predIsNone:
		return predIsNotNone
	case predIsNotNone:
		return predIsNone
	default:
		return s
	}
}

// applyPredicate narrows base according to the matched predicate and the
// branch's polarity (PolarityTrue = the branch where the predicate held,
// PolarityFalse = where it failed).
func (e *Evaluator) applyPredicate(base *types.Type, shape predicateShape, target *syntax.Node, pol binder.Polarity) *types.Type {
	truthy := pol == binder.PolarityTrue
	switch shape {
	case predIsNone:
		if truthy {
			return types.None()
		}
		return subtractNone(base)
	case predIsNotNone:
		if truthy {
			return subtractNone(base)
		}
		return types.None()
	case predTruthy:
		if truthy {
			return subtractNone(base)
		}
		return base
	case predFalsy:
		if !truthy {
			return subtractNone(base)
		}
		return base
	case predEqualsLiteral:
		if truthy && target != nil {
			return literalTypeFromConstant(target, e.builtins)
		}
		return base
	case predIsInstance, predTypeIs:
		if target == nil {
			return base
		}
		want := e.evaluateAnnotation(target)
		if truthy {
			return want
		}
		return base // narrowing the false-arm of an isinstance check needs set subtraction over a known union; left as the pre-narrowed type
	case predTypeGuardCall:
		// target is the callee Name node; only narrows if its resolved
		// signature declares a TypeGuard return (spec.md GLOSSARY
		// "TypeGuard"). Fall back to base when it doesn't.
		if target == nil || !truthy {
			return base
		}
		calleeType := e.GetType(target)
		if calleeType.Kind == types.KFunction && calleeType.Func.IsTypeGuard {
			return calleeType.Func.TypeGuardTarget
		}
		return base
	default:
		return base
	}
}

func subtractNone(t *types.Type) *types.Type {
	if t == nil {
		return types.Unknown()
	}
	if t.Kind == types.KNone {
		return types.Never()
	}
	if t.Kind != types.KUnion {
		return t
	}
	var kept []*types.Type
	for _, m := range t.Members {
		if m.Kind != types.KNone {
			kept = append(kept, m)
		}
	}
	return types.Union(kept...)
}

func literalTypeFromConstant(n *syntax.Node, b *Builtins) *types.Type {
	switch n.ConstKind {
	case syntax.ConstInt:
		return types.Instance(b.Int)
	case syntax.ConstStr:
		return types.Instance(b.Str)
	case syntax.ConstBool:
		return types.Instance(b.Bool)
	default:
		return types.Unknown()
	}
}
