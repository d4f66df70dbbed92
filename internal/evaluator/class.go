package evaluator

import (
	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/types"
)

// ClassRefFor exposes classRefFor to other packages (the checker resolves a
// class body's own ClassRef directly, rather than through a Name lookup, to
// check method overrides against the MRO).
func (e *Evaluator) ClassRefFor(def *syntax.Node) *types.ClassRef { return e.classRefFor(def) }

// DeclaredType exposes declaredType to other packages (the stub writer
// needs a module-level symbol's type without walking through a Name use
// site, since a stub is emitted from the symbol table, not an expression).
func (e *Evaluator) DeclaredType(sym *binder.Symbol) *types.Type { return e.declaredType(sym) }

// AnnotationType exposes evaluateAnnotation to other packages. checker rules
// that inspect a parameter's or function's annotation expression (implicit
// Optional, missing return) need annotation semantics — `X | Y`, `Optional[X]`,
// a forward-ref string — not the bare expression-evaluation GetType gives a
// value context.
func (e *Evaluator) AnnotationType(ann *syntax.Node) *types.Type { return e.evaluateAnnotation(ann) }

// classRefFor interns a types.ClassRef for a KClassDef node, resolving bases
// and populating Own from the class body's scope (spec.md §3 "ClassRef",
// §4.5 "Class resolution"). Results are cached on the Evaluator so repeated
// references to the same class share one *ClassRef, as MRO caching and
// identity-based assignability checks require.
func (e *Evaluator) classRefFor(def *syntax.Node) *types.ClassRef {
	if c, ok := e.classes[def.ID]; ok {
		return c
	}
	c := types.NewClassRef(e.file, def.Name)
	e.classes[def.ID] = c // store before recursing: a self-referential base resolves to this same ref

	for _, b := range def.Bases {
		bt := e.GetType(b)
		switch bt.Kind {
		case types.KClass:
			if bt.Class.Name == "Protocol" {
				types.MarkProtocol(c)
				continue
			}
			c.Bases = append(c.Bases, bt.Class)
		}
	}
	for _, kw := range def.Keywords2 {
		if kw.Name == "metaclass" {
			mt := e.GetType(kw.Value)
			if mt.Kind == types.KClass {
				c.Metaclass = mt.Class
			}
		}
	}
	if len(c.Bases) == 0 {
		c.Bases = []*types.ClassRef{e.builtins.Object}
	}

	e.populateClassMembers(c, def)
	return c
}

// populateClassMembers walks the class's own scope (not the MRO) to build
// Own, recording override/abstract/descriptor facts a single pass over the
// class body can determine (spec.md §4.5 "Member lookup", "Abstract methods
// propagate if unimplemented", "descriptors ... recognized by __get__").
func (e *Evaluator) populateClassMembers(c *types.ClassRef, def *syntax.Node) {
	scope, ok := e.bound.Scopes[def.ID]
	if !ok {
		return
	}
	for name, sym := range scope.Symbols {
		m := &types.Member{
			Name:       name,
			Type:       e.declaredType(sym),
			OwnerClass: c,
		}
		for _, base := range c.Bases {
			if baseMember, _ := base.LookupMember(name); baseMember != nil {
				m.IsOverride = true
				break
			}
		}
		if sym.Kind == binder.SymFunction {
			for _, d := range sym.Decls {
				if d.Kind != binder.DeclFunctionDef {
					continue
				}
				if hasDecorator(d.Node, "abstractmethod") {
					m.IsAbstract = true
				}
				if hasDecorator(d.Node, "property") || hasDecorator(d.Node, "classmethod") || hasDecorator(d.Node, "staticmethod") {
					m.IsDescriptor = true
				}
			}
		}
		c.Own[name] = m
	}
}
