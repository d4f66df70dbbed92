package evaluator

import "github.com/oxhq/pytype/internal/types"

// Builtins interns the handful of builtin ClassRefs the evaluator needs to
// type literals and common expressions without a typeshed stub loaded
// (spec.md §3 "Ownership": ClassRefs are interned and shared, lifetime
// equals the Program's). A real stub-backed `object`/`int`/... still wins
// once the import resolver supplies one; these are the fallback the
// evaluator degrades to.
type Builtins struct {
	Object, Bool, Int, Float, Complex, Str, Bytes, NoneType *types.ClassRef
	List, Dict, Tuple, Set, FrozenSet                       *types.ClassRef
}

// NewBuiltins constructs one Builtins table. Each Program owns exactly one
// (spec.md §9 "Global state... per-Program, not process-wide").
func NewBuiltins() *Builtins {
	object := types.NewClassRef("builtins", "object")
	b := &Builtins{Object: object}
	mk := func(name string) *types.ClassRef { return types.NewClassRef("builtins", name, object) }
	b.Bool = mk("bool")
	b.Int = mk("int")
	b.Float = mk("float")
	b.Complex = mk("complex")
	b.Str = mk("str")
	b.Bytes = mk("bytes")
	b.NoneType = mk("NoneType")
	b.List = mk("list")
	b.Dict = mk("dict")
	b.Tuple = mk("tuple")
	b.Set = mk("set")
	b.FrozenSet = mk("frozenset")
	// bool is a subtype of int in the language's actual type hierarchy.
	b.Bool.Bases = []*types.ClassRef{b.Int}
	return b
}

func (b *Builtins) instance(c *types.ClassRef) *types.Type { return types.Instance(c) }
