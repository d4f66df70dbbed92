// Package types defines the evaluator's Type tagged union and the
// declaration-level shapes (function signatures, class references) it is
// built from (spec.md §3 "Type").
package types

import "fmt"

// Kind tags a Type with its variant (spec.md §3). Dispatch is table-driven
// by Kind throughout the evaluator and checker (DESIGN NOTES §9), never via
// an interface hierarchy.
type Kind int

const (
	KUnknown Kind = iota
	KAny
	KNone
	KNever
	KLiteral
	KInstance
	KClass
	KFunction
	KOverloaded
	KUnion
	KTypeVar
	KModule
	KTuple
)

// Type is the single flat tagged-variant value the evaluator produces for
// every expression node (spec.md §4.5 `getType(node) → Type`).
type Type struct {
	Kind Kind

	// KInstance/KClass: the class this instance is of, or the class value
	// itself. KInstance also carries substituted generic arguments.
	Class   *ClassRef
	TypeArgs []*Type

	// KLiteral: the underlying base type (e.g. `int` for a literal `1`) plus
	// the literal's own value, rendered for display/equality.
	LiteralBase  *Type
	LiteralValue string

	// KFunction: one signature. KOverloaded: every candidate signature in
	// declaration order (spec.md §4.5 "Overload resolution").
	Func      *FunctionSig
	Overloads []*FunctionSig

	// KUnion: members are kept in first-seen order for stable display, but
	// equality/assignability treat the set as unordered (spec.md §3 Type
	// invariants). Always ≥2 members; a union of one Flatten()s to a bare
	// Type and a union swallowing Any/Never/duplicate members loses them.
	Members []*Type

	// KTypeVar
	TypeVar *TypeVarInfo

	// KModule
	ModuleName string

	// KTuple
	TupleElems    []*Type
	TupleVariadic bool // true when the last element is `*Ts` / unbounded
}

// TypeVarInfo is the payload for a KTypeVar type (spec.md §3 "TypeVar(id,
// variance, bound, constraints)").
type Variance int

const (
	VarianceInvariant Variance = iota
	VarianceCovariant
	VarianceContravariant
)

type TypeVarInfo struct {
	Name        string
	Variance    Variance
	Bound       *Type   // nil if unbounded
	Constraints []*Type // mutually exclusive with Bound in well-formed input
}

func Unknown() *Type { return &Type{Kind: KUnknown} }
func Any() *Type      { return &Type{Kind: KAny} }
func None() *Type     { return &Type{Kind: KNone} }
func Never() *Type    { return &Type{Kind: KNever} }

func Instance(c *ClassRef, args ...*Type) *Type {
	return &Type{Kind: KInstance, Class: c, TypeArgs: args}
}

func ClassValue(c *ClassRef) *Type { return &Type{Kind: KClass, Class: c} }

func FunctionType(sig *FunctionSig) *Type { return &Type{Kind: KFunction, Func: sig} }

func Overloaded(sigs []*FunctionSig) *Type { return &Type{Kind: KOverloaded, Overloads: sigs} }

func Literal(base *Type, value string) *Type {
	return &Type{Kind: KLiteral, LiteralBase: base, LiteralValue: value}
}

func ModuleType(name string) *Type { return &Type{Kind: KModule, ModuleName: name} }

func TupleType(elems []*Type, variadic bool) *Type {
	return &Type{Kind: KTuple, TupleElems: elems, TupleVariadic: variadic}
}

func TypeVarType(info *TypeVarInfo) *Type { return &Type{Kind: KTypeVar, TypeVar: info} }

// Union builds a flat, deduplicated union (spec.md §3 Type invariants). An
// Any member absorbs the whole union and Never members are dropped. A
// single remaining member after flattening/deduplication is returned bare,
// not wrapped in a one-element KUnion.
func Union(members ...*Type) *Type {
	var flat []*Type
	seen := map[string]bool{}
	for _, m := range members {
		if m == nil {
			continue
		}
		if m.Kind == KUnion {
			flat = append(flat, m.Members...)
			continue
		}
		flat = append(flat, m)
	}
	var out []*Type
	for _, m := range flat {
		if m.Kind == KAny {
			return Any()
		}
		if m.Kind == KNever {
			continue
		}
		key := Display(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return Never()
	}
	if len(out) == 1 {
		return out[0]
	}
	return &Type{Kind: KUnion, Members: out}
}

// Display renders a Type the way diagnostics quote it (spec.md §8 scenario 3:
// `"Type is 'int'"`).
func Display(t *Type) string {
	if t == nil {
		return "Unknown"
	}
	switch t.Kind {
	case KUnknown:
		return "Unknown"
	case KAny:
		return "Any"
	case KNone:
		return "None"
	case KNever:
		return "Never"
	case KLiteral:
		return fmt.Sprintf("Literal[%s]", t.LiteralValue)
	case KInstance:
		if len(t.TypeArgs) == 0 {
			return t.Class.Name
		}
		args := ""
		for i, a := range t.TypeArgs {
			if i > 0 {
				args += ", "
			}
			args += Display(a)
		}
		return fmt.Sprintf("%s[%s]", t.Class.Name, args)
	case KClass:
		return fmt.Sprintf("type[%s]", t.Class.Name)
	case KFunction:
		return fmt.Sprintf("(%s) -> %s", paramList(t.Func), Display(t.Func.Return))
	case KOverloaded:
		return "Overload"
	case KUnion:
		out := ""
		for i, m := range t.Members {
			if i > 0 {
				out += " | "
			}
			out += Display(m)
		}
		return out
	case KTypeVar:
		return t.TypeVar.Name
	case KModule:
		return fmt.Sprintf("Module(%q)", t.ModuleName)
	case KTuple:
		out := "tuple["
		for i, e := range t.TupleElems {
			if i > 0 {
				out += ", "
			}
			out += Display(e)
		}
		if t.TupleVariadic {
			out += ", ..."
		}
		return out + "]"
	default:
		return "Unknown"
	}
}

func paramList(sig *FunctionSig) string {
	out := ""
	for i, p := range sig.Params {
		if i > 0 {
			out += ", "
		}
		out += Display(p.Annotation)
	}
	return out
}
