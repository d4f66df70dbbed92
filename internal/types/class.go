package types

import "fmt"

// Member is one entry of a ClassRef's member table: an attribute, method, or
// property resolved from a class body (spec.md §3 "ClassRef").
type Member struct {
	Name       string
	Type       *Type
	OwnerClass *ClassRef // the MRO entry that actually declares it
	IsOverride bool      // true when a base class already declares the same name
	IsAbstract bool      // spec.md §4.5 "Abstract methods propagate if unimplemented"
	// IsDescriptor is true when Type's underlying function-or-class exposes
	// `__get__` (spec.md §4.5 "descriptors ... recognized by the presence of
	// __get__"); property/classmethod/staticmethod wrappers set this.
	IsDescriptor bool
}

// ClassRef is a resolved class (spec.md §3 "ClassRef"). Interned per-Program
// (spec.md §3 "Ownership"): two references to the same declared class must
// be the same *ClassRef so identity comparisons and MRO caching work.
type ClassRef struct {
	ModulePath string
	Name       string

	Bases     []*ClassRef
	Metaclass *ClassRef
	Slots     []string

	// Own is this class's own member table, populated by the binder/evaluator
	// from the class body (not including inherited members).
	Own map[string]*Member

	// mro is computed lazily by MRO() and cached; nil means "not computed
	// yet", an empty non-nil slice (after a failed linearization) means
	// "fell back to [self, object]" (spec.md §8 "MRO well-formedness").
	mro       []*ClassRef
	mroFailed bool
}

// NewClassRef constructs an uninterned ClassRef; callers intern through the
// Program's class table.
func NewClassRef(modulePath, name string, bases ...*ClassRef) *ClassRef {
	return &ClassRef{
		ModulePath: modulePath,
		Name:       name,
		Bases:      bases,
		Own:        make(map[string]*Member),
	}
}

// QualifiedName renders "module.Class" for diagnostics and stub emission.
func (c *ClassRef) QualifiedName() string {
	if c.ModulePath == "" {
		return c.Name
	}
	return fmt.Sprintf("%s.%s", c.ModulePath, c.Name)
}

// MRO computes (and caches) the C3 linearization of c's ancestor classes
// (spec.md §4.5 "Class resolution", §8 "MRO well-formedness"). On failure it
// falls back to [c, object] and records mroFailed so the checker can emit
// reportInconsistentMro (spec.md §8 scenario 4) without recomputing.
func (c *ClassRef) MRO() ([]*ClassRef, bool) {
	if c.mro != nil || c.mroFailed {
		return c.mro, !c.mroFailed
	}
	lin, ok := c3Linearize(c)
	if !ok {
		c.mroFailed = true
		c.mro = []*ClassRef{c, objectClassRef(c)}
		return c.mro, false
	}
	c.mro = lin
	return c.mro, true
}

// objectClassRef finds `object` among c's ancestors to use as the MRO
// fallback's tail, or synthesizes one if the class hierarchy never declared
// it (e.g. tests with hand-built ClassRefs).
func objectClassRef(c *ClassRef) *ClassRef {
	var walk func(*ClassRef) *ClassRef
	visited := map[*ClassRef]bool{}
	walk = func(cur *ClassRef) *ClassRef {
		if cur == nil || visited[cur] {
			return nil
		}
		visited[cur] = true
		if cur.Name == "object" && cur.ModulePath == "builtins" {
			return cur
		}
		for _, b := range cur.Bases {
			if found := walk(b); found != nil {
				return found
			}
		}
		return nil
	}
	if found := walk(c); found != nil {
		return found
	}
	return NewClassRef("builtins", "object")
}

// c3Linearize implements the standard C3 merge algorithm: L[C] = C + merge(L[B1], ..., L[Bn], [B1..Bn]).
func c3Linearize(c *ClassRef) ([]*ClassRef, bool) {
	if len(c.Bases) == 0 {
		return []*ClassRef{c}, true
	}
	var sequences [][]*ClassRef
	for _, b := range c.Bases {
		lin, ok := b.MRO()
		if !ok {
			return nil, false
		}
		sequences = append(sequences, append([]*ClassRef(nil), lin...))
	}
	sequences = append(sequences, append([]*ClassRef(nil), c.Bases...))

	result := []*ClassRef{c}
	for {
		sequences = dropEmpty(sequences)
		if len(sequences) == 0 {
			return result, true
		}
		var head *ClassRef
		for _, seq := range sequences {
			candidate := seq[0]
			if !appearsInTail(candidate, sequences) {
				head = candidate
				break
			}
		}
		if head == nil {
			return nil, false // no consistent linearization
		}
		result = append(result, head)
		for i, seq := range sequences {
			sequences[i] = removeFirstOccurrence(seq, head)
		}
	}
}

func dropEmpty(seqs [][]*ClassRef) [][]*ClassRef {
	out := seqs[:0]
	for _, s := range seqs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func appearsInTail(c *ClassRef, seqs [][]*ClassRef) bool {
	for _, seq := range seqs {
		for _, x := range seq[1:] {
			if x == c {
				return true
			}
		}
	}
	return false
}

func removeFirstOccurrence(seq []*ClassRef, c *ClassRef) []*ClassRef {
	out := make([]*ClassRef, 0, len(seq))
	for _, x := range seq {
		if x == c {
			continue
		}
		out = append(out, x)
	}
	return out
}

// LookupMember walks the MRO, returning the first class that declares name
// (spec.md §4.5 "Member lookup walks the MRO").
func (c *ClassRef) LookupMember(name string) (*Member, *ClassRef) {
	mro, _ := c.MRO()
	for _, anc := range mro {
		if m, ok := anc.Own[name]; ok {
			return m, anc
		}
	}
	return nil, nil
}

// IsSubclassOf reports whether c appears in target's... no: whether target
// appears in c's own MRO, i.e. c is-a target.
func (c *ClassRef) IsSubclassOf(target *ClassRef) bool {
	mro, _ := c.MRO()
	for _, anc := range mro {
		if anc == target {
			return true
		}
	}
	return false
}
