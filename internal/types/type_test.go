package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnionFlattensSingleMember(t *testing.T) {
	u := Union(Instance(NewClassRef("m", "Foo")))
	assert.Equal(t, KInstance, u.Kind)
}

func TestUnionSwallowsAnyAndDuplicates(t *testing.T) {
	foo := NewClassRef("m", "Foo")
	u := Union(Instance(foo), Instance(foo), Any())
	assert.Equal(t, KAny, u.Kind, "Any absorbs a union (spec.md §3 Type invariants)")
}

func TestUnionKeepsFirstSeenOrder(t *testing.T) {
	a := Instance(NewClassRef("m", "A"))
	b := Instance(NewClassRef("m", "B"))
	u := Union(b, a, b)
	require.Equal(t, KUnion, u.Kind)
	require.Len(t, u.Members, 2)
	assert.Same(t, b.Class, u.Members[0].Class)
	assert.Same(t, a.Class, u.Members[1].Class)
}

func TestDisplayRendersLiteralAndUnion(t *testing.T) {
	intCls := NewClassRef("builtins", "int")
	lit := Literal(Instance(intCls), "1")
	assert.Equal(t, `Literal[1]`, Display(lit))

	u := Union(Instance(intCls), None())
	assert.Contains(t, Display(u), "int")
	assert.Contains(t, Display(u), "None")
}

func TestDisplayNilIsUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Display(nil))
}

func TestMROLinearizesDiamond(t *testing.T) {
	object := NewClassRef("builtins", "object")
	a := NewClassRef("m", "A", object)
	b := NewClassRef("m", "B", object)
	c := NewClassRef("m", "C", a, b)

	mro, ok := c.MRO()
	require.True(t, ok)
	names := make([]string, len(mro))
	for i, cls := range mro {
		names[i] = cls.Name
	}
	assert.Equal(t, []string{"C", "A", "B", "object"}, names)
}

func TestMROFailsOnInconsistentBases(t *testing.T) {
	object := NewClassRef("builtins", "object")
	x := NewClassRef("m", "X", object)
	y := NewClassRef("m", "Y", object)
	// A forces X before Y, B forces Y before X: no linearization exists.
	a := NewClassRef("m", "A", x, y)
	b := NewClassRef("m", "B", y, x)
	bad := NewClassRef("m", "Bad", a, b)

	_, ok := bad.MRO()
	assert.False(t, ok, "spec.md §8 MRO well-formedness: inconsistent bases must fail, not silently pick one order")
}

func TestIsSubclassOfWalksMRO(t *testing.T) {
	object := NewClassRef("builtins", "object")
	base := NewClassRef("m", "Base", object)
	derived := NewClassRef("m", "Derived", base)
	assert.True(t, derived.IsSubclassOf(base))
	assert.True(t, derived.IsSubclassOf(object))
	assert.False(t, base.IsSubclassOf(derived))
}

func TestAssignableInstanceRespectsSubclassing(t *testing.T) {
	object := NewClassRef("builtins", "object")
	base := NewClassRef("m", "Base", object)
	derived := NewClassRef("m", "Derived", base)

	assert.True(t, Assignable(Instance(base), Instance(derived)))
	assert.False(t, Assignable(Instance(derived), Instance(base)))
}

func TestAssignableAnyIsUniversal(t *testing.T) {
	base := NewClassRef("m", "Base")
	assert.True(t, Assignable(Instance(base), Any()))
	assert.True(t, Assignable(Any(), Instance(base)))
}

func TestAssignableToUnionAcceptsAnyMember(t *testing.T) {
	object := NewClassRef("builtins", "object")
	base := NewClassRef("m", "Base", object)
	other := NewClassRef("m", "Other", object)

	dst := Union(Instance(base), Instance(other))
	assert.True(t, Assignable(dst, Instance(base)))
	assert.True(t, Assignable(dst, Instance(other)))

	unrelated := NewClassRef("m", "Unrelated", object)
	assert.False(t, Assignable(dst, Instance(unrelated)))
}

func TestFunctionSigParamByName(t *testing.T) {
	sig := &FunctionSig{Params: []*Param{{Name: "a"}, {Name: "b"}}}
	p := sig.ParamByName("b")
	require.NotNil(t, p)
	assert.Equal(t, "b", p.Name)
	assert.Nil(t, sig.ParamByName("missing"))
}
