// Package binder implements the single left-to-right pass that turns a
// parse tree into scopes, symbols, and a flow graph (spec.md §4.3).
package binder

import "github.com/oxhq/pytype/internal/syntax"

// SymbolKind classifies what a Symbol's declarations collectively describe.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymParameter
	SymFunction
	SymClass
	SymImport
	SymModule
)

// DeclKind tags the statement form that produced a Declaration.
type DeclKind int

const (
	DeclAssignment DeclKind = iota
	DeclAugAssignment
	DeclAnnotation
	DeclParameter
	DeclFunctionDef
	DeclClassDef
	DeclImport
	DeclImportFrom
	DeclFor
	DeclWithAs
	DeclExceptAs
	DeclWalrus
	DeclComprehensionTarget
	DeclGlobal
	DeclNonlocal
	DeclPatternCapture
)

// Declaration is one binding site for a Symbol.
type Declaration struct {
	Node *syntax.Node
	Kind DeclKind
}

// Symbol accumulates every declaration of a name within one Scope.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Scope *Scope
	Decls []*Declaration
}

func (s *Symbol) addDecl(node *syntax.Node, kind DeclKind) {
	s.Decls = append(s.Decls, &Declaration{Node: node, Kind: kind})
}
