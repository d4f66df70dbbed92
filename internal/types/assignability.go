package types

// Protocol marks a ClassRef as structurally checked (PEP 544) rather than
// nominally (spec.md §4.5 "Assignability").
type Protocol struct {
	Class *ClassRef
}

var protocolClasses = map[*ClassRef]bool{}

// MarkProtocol records c as a Protocol; called by the evaluator when it sees
// a class base on `typing.Protocol`.
func MarkProtocol(c *ClassRef) { protocolClasses[c] = true }

func IsProtocol(c *ClassRef) bool { return protocolClasses[c] }

// Assignable reports whether src is assignable to dst (spec.md §4.5
// "Assignability", §8 "Assignability transitivity"). Any is bidirectional
// and absorbing; Unknown behaves like Any for assignability purposes
// (spec.md §3 Type invariants) but callers distinguish it for strict-mode
// diagnostics separately.
func Assignable(dst, src *Type) bool {
	if dst == nil || src == nil {
		return true
	}
	if dst.Kind == KAny || src.Kind == KAny || dst.Kind == KUnknown || src.Kind == KUnknown {
		return true
	}
	if src.Kind == KNever {
		return true
	}
	if dst.Kind == KUnion {
		for _, m := range dst.Members {
			if Assignable(m, src) {
				return true
			}
		}
		return false
	}
	if src.Kind == KUnion {
		for _, m := range src.Members {
			if !Assignable(dst, m) {
				return false
			}
		}
		return true
	}
	if src.Kind == KLiteral {
		if dst.Kind == KLiteral {
			return dst.LiteralValue == src.LiteralValue && Assignable(dst.LiteralBase, src.LiteralBase)
		}
		return Assignable(dst, src.LiteralBase)
	}
	switch dst.Kind {
	case KNone:
		return src.Kind == KNone
	case KInstance:
		if src.Kind != KInstance {
			return false
		}
		if IsProtocol(dst.Class) {
			return assignableToProtocol(dst, src)
		}
		return assignableNominal(dst, src)
	case KClass:
		return src.Kind == KClass && src.Class.IsSubclassOf(dst.Class)
	case KFunction:
		return assignableFunction(dst, src)
	case KOverloaded:
		if src.Kind != KFunction && src.Kind != KOverloaded {
			return false
		}
		return true // overload-set assignability is checked per call site, not structurally here
	case KTuple:
		return assignableTuple(dst, src)
	case KModule:
		return src.Kind == KModule && src.ModuleName == dst.ModuleName
	case KTypeVar:
		if dst.TypeVar.Bound != nil {
			return Assignable(dst.TypeVar.Bound, src)
		}
		return true
	default:
		return false
	}
}

func assignableNominal(dst, src *Type) bool {
	if !src.Class.IsSubclassOf(dst.Class) {
		return false
	}
	for i, darg := range dst.TypeArgs {
		if i >= len(src.TypeArgs) {
			return false
		}
		sarg := src.TypeArgs[i]
		variance := VarianceInvariant
		if tv := classTypeParamVariance(dst.Class, i); tv != nil {
			variance = tv.Variance
		}
		if !assignableWithVariance(darg, sarg, variance) {
			return false
		}
	}
	return true
}

func assignableWithVariance(dst, src *Type, v Variance) bool {
	switch v {
	case VarianceCovariant:
		return Assignable(dst, src)
	case VarianceContravariant:
		return Assignable(src, dst)
	default:
		return Assignable(dst, src) && Assignable(src, dst)
	}
}

// classTypeParamVariance is a hook for classes whose declared TypeParams
// carry variance; ClassRef does not yet record per-slot variance, so this
// conservatively reports invariant (nil) until generic class declarations
// thread it through.
func classTypeParamVariance(*ClassRef, int) *TypeVarInfo { return nil }

// assignableToProtocol implements structural subtyping (spec.md §4.5
// "Assignability... structural for protocol-marked classes: a type S is
// assignable to protocol P iff every attribute of P is present in S with an
// assignable type at the right variance").
func assignableToProtocol(dst, src *Type) bool {
	dstMRO, _ := dst.Class.MRO()
	for _, anc := range dstMRO {
		for name, want := range anc.Own {
			have, _ := src.Class.LookupMember(name)
			if have == nil {
				return false
			}
			if !Assignable(want.Type, have.Type) {
				return false
			}
		}
	}
	return true
}

func assignableFunction(dst, src *Type) bool {
	if src.Kind != KFunction {
		return false
	}
	d, s := dst.Func, src.Func
	if len(d.Params) != len(s.Params) {
		// permissive: Python call sites commonly differ in *args/**kwargs
		// shape; only a hard arity mismatch on fixed params is rejected.
		if countFixed(d.Params) != countFixed(s.Params) {
			return false
		}
	}
	for i := range min(len(d.Params), len(s.Params)) {
		// parameters are contravariant: src's parameter must accept
		// everything dst's parameter accepts.
		if !Assignable(s.Params[i].Annotation, d.Params[i].Annotation) {
			return false
		}
	}
	return Assignable(d.Return, s.Return)
}

func countFixed(params []*Param) int {
	n := 0
	for _, p := range params {
		if p.Kind == ParamPositionalOnly || p.Kind == ParamPositionalOrKeyword {
			n++
		}
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func assignableTuple(dst, src *Type) bool {
	if src.Kind != KTuple {
		return false
	}
	if !dst.TupleVariadic && len(dst.TupleElems) != len(src.TupleElems) {
		return false
	}
	for i, d := range dst.TupleElems {
		if i >= len(src.TupleElems) {
			return dst.TupleVariadic
		}
		if !Assignable(d, src.TupleElems[i]) {
			return false
		}
	}
	return true
}
