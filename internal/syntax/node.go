// Package syntax defines the parse tree (tagged-variant node) and the
// recursive-descent parser that builds it from a token stream.
package syntax

import "github.com/oxhq/pytype/internal/token"

// Kind tags a Node with its grammar production. Dispatch on Kind is
// table-driven throughout the binder/evaluator (DESIGN NOTES §9), never via
// a type hierarchy.
type Kind int

const (
	KInvalid Kind = iota
	KModule
	KFunctionDef
	KClassDef
	KParameter
	KArguments
	KDecorator

	KIf
	KFor
	KWhile
	KTry
	KExceptHandler
	KWith
	KWithItem

	KAssign
	KAugAssign
	KAnnAssign
	KReturn
	KRaise
	KPass
	KBreak
	KContinue
	KGlobal
	KNonlocal
	KAssert
	KDelete
	KExprStmt
	KImport
	KImportFrom
	KImportAlias

	KName
	KCall
	KKeywordArg
	KAttribute
	KSubscript
	KBinaryOp
	KUnaryOp
	KBoolOp
	KCompare
	KIfExp
	KLambda
	KTuple
	KList
	KDict
	KSet
	KListComp
	KSetComp
	KDictComp
	KGeneratorExp
	KComprehension // a single `for ... in ... if ...` clause
	KYield
	KYieldFrom
	KAwait
	KStarred
	KConstant
	KFormattedValue
	KJoinedStr // f-string as a sequence of literal/FormattedValue parts
	KSlice
	KNamedExpr // walrus `:=`
	KMatch
	KMatchCase

	KError // unparsable region; binder/evaluator treat as Unknown
)

// ConstantKind distinguishes literal forms carried by KConstant.
type ConstantKind int

const (
	ConstNone ConstantKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstImaginary
	ConstStr
	ConstBytes
	ConstEllipsis
)

// Node is the single flat tagged-variant parse tree node. Only the fields
// relevant to Kind are populated; see the per-kind comments below. Invariant
// (spec.md §3): the tree is a pure tree, no shared children, and ranges
// nest strictly along parent/child edges. Parent pointers are NOT stored
// here (DESIGN NOTES §9) — see ParentIndex.
type Node struct {
	ID    int
	Kind  Kind
	Range token.Range

	// KName, KFunctionDef, KClassDef, KParameter, KImportAlias, KGlobal,
	// KNonlocal member names, KKeywordArg key.
	Name string

	// KFunctionDef/KClassDef/KWith/KFor "async" marker.
	Async bool

	// Generic statement/element sequence: Module.Body, suite bodies,
	// List/Tuple/Set elements, Dict key or value lists (see DictKeys),
	// Import aliases, Global/Nonlocal names-as-KName children.
	Body []*Node

	// KIf/KWhile/KFor "orelse" (else clause), KTry "orelse".
	OrElse []*Node

	// KTry
	Handlers []*Node // KExceptHandler
	Finally  []*Node

	// KExceptHandler
	ExceptType *Node
	ExceptName string

	// KIf/KWhile condition, KAssert test, comprehension filter, KIfExp test.
	Test *Node

	// KFor/KComprehension target and iterable.
	Target *Node
	Iter   *Node
	Ifs    []*Node // KComprehension filter clauses

	// KAssign targets (supports tuple/starred targets), KAnnAssign/KAugAssign
	// single target via Target.
	Targets []*Node

	// RHS value: Assign/AnnAssign/AugAssign/Return/Yield/NamedExpr/KKeywordArg.
	Value *Node

	// KAnnAssign/KParameter annotation expression, unevaluated.
	Annotation *Node

	// `# type: T` comment attached to this statement (spec.md §4.2).
	TypeComment string

	// KAugAssign/KBinaryOp/KUnaryOp/KBoolOp operator.
	Op token.OpKind

	// KBinaryOp/KBoolOp/KCompare left-to-right operand chain: Left is the
	// first operand, Comparators the rest, CompareOps the operator between
	// each consecutive pair. A plain BinaryOp/BoolOp has exactly one entry
	// in CompareOps (redundant with Op, kept for uniform handling).
	Left         *Node
	Comparators  []*Node
	CompareOps   []token.OpKind

	// KCall func + args; KSubscript value + index (Slice or expr).
	Func    *Node
	Args    []*Node
	Keywords []*Node // KKeywordArg

	// KAttribute/KSubscript value.
	Obj  *Node
	Attr string

	// KSlice
	Lower, Upper, Step *Node

	// KFunctionDef
	Params     []*Node // KParameter
	Returns    *Node   // return type annotation
	Decorators []*Node
	TypeParams []string // PEP-695 `def f[T](...)`

	// KClassDef
	Bases      []*Node
	Keywords2  []*Node // metaclass=... and other class keyword args

	// KParameter
	ParamKind    ParamKind
	Default      *Node
	HasDefault   bool

	// KLambda
	LambdaParams []*Node
	LambdaBody   *Node

	// KDict: Keys[i] paired with Body[i] as values; a nil Keys[i] marks a
	// `**expr` dict-unpacking entry whose value is Body[i].
	Keys []*Node

	// KImport/KImportFrom
	ModuleParts []string
	Level       int // leading-dots count
	Alias       string
	Names       []*Node // KImportAlias children for `from x import a, b as c`
	IsWildcard  bool     // `from x import *`

	// KConstant
	ConstKind   ConstantKind
	IntValue    int64
	FloatValue  float64
	StringValue string
	StringFlags *token.StringPayload

	// KJoinedStr parts (KConstant literal segments interleaved with
	// KFormattedValue), preserving original source ranges per spec.md §4.1.
	Parts []*Node

	// KFormattedValue
	FormatSpec *Node
	Conversion byte // 's', 'r', 'a', or 0

	// Flags
	IsError    bool // an Error child: could not be parsed; treat as Unknown
	IsYieldFrom bool
	IsAwaitIter bool // `async for` / `async with`
}

// ParamKind classifies a function parameter per spec.md §3 "Function
// signature".
type ParamKind int

const (
	ParamPositionalOnly ParamKind = iota
	ParamPositionalOrKeyword
	ParamVarPositional
	ParamKeywordOnly
	ParamVarKeyword
)

// ParentIndex is a side table mapping node ID -> parent node, built once
// after parse (DESIGN NOTES §9: parent pointers are not stored in the tree
// itself). The binder and evaluator consult it for scope/flow lookups that
// need to walk upward.
type ParentIndex struct {
	parents map[int]*Node
}

func BuildParentIndex(root *Node) *ParentIndex {
	idx := &ParentIndex{parents: make(map[int]*Node)}
	idx.walk(root, nil)
	return idx
}

func (idx *ParentIndex) walk(n, parent *Node) {
	if n == nil {
		return
	}
	if parent != nil {
		idx.parents[n.ID] = parent
	}
	for _, c := range n.children() {
		idx.walk(c, n)
	}
}

func (idx *ParentIndex) Parent(n *Node) *Node {
	if n == nil {
		return nil
	}
	return idx.parents[n.ID]
}

// children enumerates every non-nil child across all kind-specific slots,
// used for tree walks (parent index, validators, the stub writer) so a new
// field added to Node only needs to be listed here once.
func (n *Node) children() []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	add := func(c *Node) {
		if c != nil {
			out = append(out, c)
		}
	}
	addAll := func(cs []*Node) {
		for _, c := range cs {
			add(c)
		}
	}
	addAll(n.Body)
	addAll(n.OrElse)
	addAll(n.Handlers)
	addAll(n.Finally)
	add(n.ExceptType)
	add(n.Test)
	add(n.Target)
	add(n.Iter)
	addAll(n.Ifs)
	addAll(n.Targets)
	add(n.Value)
	add(n.Annotation)
	add(n.Left)
	addAll(n.Comparators)
	add(n.Func)
	addAll(n.Args)
	addAll(n.Keywords)
	add(n.Obj)
	add(n.Lower)
	add(n.Upper)
	add(n.Step)
	addAll(n.Params)
	add(n.Returns)
	addAll(n.Decorators)
	addAll(n.Bases)
	addAll(n.Keywords2)
	add(n.Default)
	addAll(n.LambdaParams)
	add(n.LambdaBody)
	addAll(n.Keys)
	addAll(n.Names)
	addAll(n.Parts)
	add(n.FormatSpec)
	return out
}

// Walk visits root and every descendant in pre-order.
func Walk(root *Node, visit func(*Node)) {
	if root == nil {
		return
	}
	visit(root)
	for _, c := range root.children() {
		Walk(c, visit)
	}
}
