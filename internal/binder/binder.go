package binder

import (
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/syntax"
)

// BoundModule is the output of Bind: the scope tree, the flow graph, name
// resolution results, and any binder-detected diagnostics (spec.md §4.3).
type BoundModule struct {
	Module      *syntax.Node
	ModuleScope *Scope
	Flow        *FlowGraph

	// Scopes maps a Def/Lambda/Comprehension node ID to the Scope it
	// introduces.
	Scopes map[int]*Scope

	// Antecedent maps a Name-use node ID to the flow point immediately
	// before it, the starting point for flow-sensitive narrowing.
	Antecedent map[int]*FlowNode

	// Unresolved holds Name-use node IDs that did not resolve to any
	// symbol (spec.md §4.3 invariant: "flagged unresolved", never dangling).
	Unresolved map[int]bool

	// All holds __all__'s statically-resolved string elements, if the
	// module assigns `__all__` a literal list/tuple of string constants.
	All []string

	Diagnostics []diagnostic.Diagnostic
}

type binder struct {
	file  string
	diags diagnostic.Bag

	flow   *FlowGraph
	scopes map[int]*Scope
	ante   map[int]*FlowNode
	unres  map[int]bool

	cur     *Scope
	curFlow *FlowNode

	funcDepth  int
	loopDepth  int
	funcStack  []*funcState
	allLiteral []string

	// terminated is set once the current straight-line block has executed
	// an unconditional return/raise/break/continue; every subsequent
	// statement in that same block is stepped as FlowUnreachable instead
	// of FlowLabel (spec.md §4.6 "unreachable code"). Saved/restored
	// around each independent branch so termination in one arm of an
	// if/try/loop never marks a sibling arm unreachable.
	terminated bool
}

type funcState struct {
	async        bool
	sawYield     bool
	sawReturnVal bool
}

// Bind performs the single left-to-right pass described in spec.md §4.3,
// producing scopes, a flow graph, and antecedent pointers for every name
// use. builtins is normally NewBuiltinsScope(), threaded through so tests
// can substitute a smaller fixture.
func Bind(file string, module *syntax.Node, builtins *Scope) *BoundModule {
	b := &binder{
		file:   file,
		flow:   newFlowGraph(),
		scopes: make(map[int]*Scope),
		ante:   make(map[int]*FlowNode),
		unres:  make(map[int]bool),
	}

	moduleScope := newScope(ScopeModule, builtins, module)
	b.cur = moduleScope
	b.curFlow = b.flow.new(FlowStart, module)

	b.bindBody(module.Body)

	return &BoundModule{
		Module:      module,
		ModuleScope: moduleScope,
		Flow:        b.flow,
		Scopes:      b.scopes,
		Antecedent:  b.ante,
		Unresolved:  b.unres,
		All:         b.allLiteral,
		Diagnostics: b.diags.All(),
	}
}

func (b *binder) step(n *syntax.Node) {
	kind := FlowLabel
	if b.terminated {
		kind = FlowUnreachable
	}
	b.curFlow = b.flow.new(kind, n, b.curFlow)
}

func (b *binder) bindBody(stmts []*syntax.Node) {
	for _, s := range stmts {
		b.bindStatement(s)
	}
}

func (b *binder) bindStatement(n *syntax.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KModule: // synthetic `;`-joined statement wrapper from the parser
		b.bindBody(n.Body)
		return
	case syntax.KFunctionDef:
		b.bindFunctionDef(n)
		return
	case syntax.KClassDef:
		b.bindClassDef(n)
		return
	}

	b.step(n)

	switch n.Kind {
	case syntax.KAssign:
		b.bindExpr(n.Value)
		for _, t := range n.Targets {
			b.bindTarget(t, DeclAssignment)
		}
		if n.TypeComment != "" {
			// deferred: type comments are parsed, evaluated lazily (spec.md
			// §4.3 bullet 5); nothing to resolve here.
			_ = n.TypeComment
		}
		b.checkAllAssignment(n)
	case syntax.KAugAssign:
		b.bindExpr(n.Value)
		b.bindTarget(n.Target, DeclAugAssignment)
	case syntax.KAnnAssign:
		// annotation expression evaluation is deferred (spec.md §4.3 bullet
		// 5); the binder only records the target declaration.
		if n.Value != nil {
			b.bindExpr(n.Value)
		}
		b.bindTarget(n.Target, DeclAnnotation)
	case syntax.KReturn:
		if b.funcDepth == 0 {
			b.diags.Addf(b.file, n.Range, diagnostic.RuleSyntaxError, "'return' outside function")
		} else if len(b.funcStack) > 0 {
			fs := b.funcStack[len(b.funcStack)-1]
			if n.Value != nil {
				fs.sawReturnVal = true
			}
		}
		if n.Value != nil {
			b.bindExpr(n.Value)
		}
		b.terminated = true
	case syntax.KRaise:
		if n.Value != nil {
			b.bindExpr(n.Value)
		}
		if n.Left != nil {
			b.bindExpr(n.Left)
		}
		b.terminated = true
	case syntax.KAssert:
		b.bindExpr(n.Test)
		if n.Value != nil {
			b.bindExpr(n.Value)
		}
	case syntax.KDelete:
		for _, t := range n.Targets {
			b.bindExpr(t)
		}
	case syntax.KExprStmt:
		b.bindExpr(n.Value)
	case syntax.KImport:
		for _, alias := range n.Names {
			name := alias.Alias
			if name == "" {
				name = alias.ModuleParts[0]
			}
			b.cur.declare(name, SymImport, alias, DeclImport)
		}
	case syntax.KImportFrom:
		for _, alias := range n.Names {
			name := alias.Alias
			if name == "" {
				name = alias.Name
			}
			b.cur.declare(name, SymImport, alias, DeclImportFrom)
		}
	case syntax.KGlobal:
		for _, nameNode := range n.Body {
			b.cur.globalNames[nameNode.Name] = true
		}
	case syntax.KNonlocal:
		for _, nameNode := range n.Body {
			b.cur.nonlocalNames[nameNode.Name] = true
			if b.cur.enclosingFunctionScope(nameNode.Name) == nil {
				b.diags.Addf(b.file, n.Range, diagnostic.RuleSyntaxError,
					"no binding for nonlocal %q found in any enclosing function scope", nameNode.Name)
			}
		}
	case syntax.KIf:
		b.bindIf(n)
	case syntax.KWhile:
		b.bindWhile(n)
	case syntax.KFor:
		b.bindFor(n)
	case syntax.KTry:
		b.bindTry(n)
	case syntax.KWith:
		b.bindWith(n)
	case syntax.KBreak, syntax.KContinue:
		// no declarations, no sub-expressions
		b.terminated = true
	case syntax.KPass:
		// no declarations, no sub-expressions
	case syntax.KError:
		// unparsable region: nothing to bind, already diagnosed by the parser
	}
}

// bindTarget records a declaration for every Name leaf in an assignment
// target, recursing through tuple/list/starred targets and attribute/
// subscript targets (which are uses of their object, not declarations).
func (b *binder) bindTarget(t *syntax.Node, kind DeclKind) {
	b.bindTargetIn(t, kind, false)
}

// bindComprehensionTarget declares a comprehension's own `for` target
// directly into the current (comprehension) scope rather than skipping it,
// since the target is local to the comprehension itself.
func (b *binder) bindComprehensionTarget(t *syntax.Node) {
	b.bindTargetIn(t, DeclComprehensionTarget, true)
}

func (b *binder) bindTargetIn(t *syntax.Node, kind DeclKind, direct bool) {
	if t == nil {
		return
	}
	switch t.Kind {
	case syntax.KName:
		if direct {
			b.cur.declareHere(t.Name, SymVariable, t, kind)
		} else {
			b.cur.declare(t.Name, SymVariable, t, kind)
		}
	case syntax.KTuple, syntax.KList:
		for _, elt := range t.Body {
			b.bindTargetIn(elt, kind, direct)
		}
	case syntax.KStarred:
		b.bindTargetIn(t.Value, kind, direct)
	case syntax.KAttribute:
		b.bindExpr(t.Obj)
	case syntax.KSubscript:
		b.bindExpr(t.Obj)
		b.bindExpr(t.Value)
	default:
		b.bindExpr(t)
	}
}

// checkAllAssignment records `__all__`'s elements when assigned a literal
// list/tuple of string constants at module scope (spec.md §4.3: "resolution
// of __all__ if present").
func (b *binder) checkAllAssignment(n *syntax.Node) {
	if b.cur.Kind != ScopeModule || len(n.Targets) != 1 {
		return
	}
	target := n.Targets[0]
	if target.Kind != syntax.KName || target.Name != "__all__" {
		return
	}
	if n.Value == nil || (n.Value.Kind != syntax.KList && n.Value.Kind != syntax.KTuple) {
		return
	}
	var names []string
	for _, elt := range n.Value.Body {
		if elt.Kind != syntax.KConstant || elt.ConstKind != syntax.ConstStr {
			return // not statically resolvable; leave All empty
		}
		names = append(names, elt.StringValue)
	}
	b.allLiteral = names
}

func (b *binder) bindIf(n *syntax.Node) {
	branch := b.curFlow
	b.bindExpr(n.Test)
	entryTerminated := b.terminated

	thenEntry := b.flow.newBranch(n.Test, PolarityTrue, branch)
	b.curFlow = thenEntry
	b.terminated = entryTerminated
	b.bindBody(n.Body)
	thenExit := b.curFlow

	elseEntry := b.flow.newBranch(n.Test, PolarityFalse, branch)
	b.curFlow = elseEntry
	b.terminated = entryTerminated
	b.bindBody(n.OrElse)
	elseExit := b.curFlow

	b.curFlow = b.flow.new(FlowMerge, n, thenExit, elseExit)
	// conservative: code after the merge is never marked unreachable even
	// when both arms terminate (spec.md §4.6 degrades toward false
	// negatives, never false positives).
	b.terminated = entryTerminated
}

func (b *binder) bindWhile(n *syntax.Node) {
	head := b.flow.new(FlowLoopHead, n, b.curFlow)
	b.bindExpr(n.Test)
	entryTerminated := b.terminated

	b.loopDepth++
	bodyEntry := b.flow.newBranch(n.Test, PolarityTrue, head)
	b.curFlow = bodyEntry
	b.terminated = entryTerminated
	b.bindBody(n.Body)
	loopBack := b.flow.new(FlowLoopBack, n, b.curFlow)
	b.flow.addAntecedent(head, loopBack)
	b.loopDepth--

	elseEntry := b.flow.newBranch(n.Test, PolarityFalse, head)
	b.curFlow = elseEntry
	b.terminated = entryTerminated
	b.bindBody(n.OrElse)

	b.curFlow = b.flow.new(FlowMerge, n, head, b.curFlow)
	b.terminated = entryTerminated
}

func (b *binder) bindFor(n *syntax.Node) {
	b.bindExpr(n.Iter)
	head := b.flow.new(FlowLoopHead, n, b.curFlow)
	entryTerminated := b.terminated

	b.loopDepth++
	bodyEntry := b.flow.new(FlowBranch, n, head)
	b.curFlow = bodyEntry
	b.terminated = entryTerminated
	b.bindTarget(n.Target, DeclFor)
	b.bindBody(n.Body)
	loopBack := b.flow.new(FlowLoopBack, n, b.curFlow)
	b.flow.addAntecedent(head, loopBack)
	b.loopDepth--

	elseEntry := b.flow.new(FlowBranch, n, head)
	b.curFlow = elseEntry
	b.terminated = entryTerminated
	b.bindBody(n.OrElse)

	b.curFlow = b.flow.new(FlowMerge, n, head, b.curFlow)
	b.terminated = entryTerminated
}

func (b *binder) bindTry(n *syntax.Node) {
	entry := b.curFlow
	entryTerminated := b.terminated
	b.curFlow = b.flow.new(FlowLabel, n, entry)
	b.bindBody(n.Body)
	tryExit := b.curFlow
	tryTerminated := b.terminated

	exits := []*FlowNode{tryExit}
	allHandlersTerminated := true
	for _, h := range n.Handlers {
		b.curFlow = b.flow.new(FlowBranch, h, entry)
		b.terminated = entryTerminated
		if h.ExceptType != nil {
			b.bindExpr(h.ExceptType)
		}
		if h.ExceptName != "" {
			b.cur.declare(h.ExceptName, SymVariable, h, DeclExceptAs)
		}
		b.bindBody(h.Body)
		exits = append(exits, b.curFlow)
		allHandlersTerminated = allHandlersTerminated && b.terminated
	}

	b.curFlow = b.flow.new(FlowMerge, n, exits...)
	b.terminated = tryTerminated && (len(n.Handlers) == 0 || allHandlersTerminated)
	if len(n.OrElse) > 0 {
		b.bindBody(n.OrElse)
	}
	if len(n.Finally) > 0 {
		b.curFlow = b.flow.new(FlowFinally, n, b.curFlow)
		b.terminated = entryTerminated
		b.bindBody(n.Finally)
	}
}

func (b *binder) bindWith(n *syntax.Node) {
	for _, item := range n.Body { // n.Body holds KWithItem entries
		b.bindExpr(item.Value)
		if item.Target != nil {
			b.bindTarget(item.Target, DeclWithAs)
		}
	}
	b.bindBody(n.OrElse) // n.OrElse holds the with-suite, see syntax.parseWith
}

func (b *binder) bindFunctionDef(n *syntax.Node) {
	for _, d := range n.Decorators {
		b.bindExpr(d)
	}
	for _, param := range n.Params {
		if param.Annotation != nil {
			b.bindExpr(param.Annotation)
		}
		if param.Default != nil {
			b.bindExpr(param.Default)
		}
	}
	if n.Returns != nil {
		b.bindExpr(n.Returns)
	}
	b.cur.declare(n.Name, SymFunction, n, DeclFunctionDef)

	outer := b.cur
	outerFlow := b.curFlow
	outerTerminated := b.terminated
	fnScope := newScope(ScopeFunction, outer, n)
	outer.addChild(fnScope)
	b.scopes[n.ID] = fnScope

	seen := map[string]bool{}
	for _, param := range n.Params {
		if seen[param.Name] {
			b.diags.Addf(b.file, param.Range, diagnostic.RuleSyntaxError,
				"duplicate parameter %q", param.Name)
		}
		seen[param.Name] = true
		fnScope.Symbols[param.Name] = &Symbol{Name: param.Name, Kind: SymParameter, Scope: fnScope}
		fnScope.Symbols[param.Name].addDecl(param, DeclParameter)
	}

	b.cur = fnScope
	b.curFlow = b.flow.new(FlowStart, n)
	b.terminated = false
	b.funcDepth++
	fs := &funcState{async: n.Async}
	b.funcStack = append(b.funcStack, fs)

	b.bindBody(n.Body)

	if fs.async && fs.sawYield && fs.sawReturnVal {
		b.diags.Addf(b.file, n.Range, diagnostic.RuleSyntaxError,
			"'return' with a value is not allowed in async generator %q", n.Name)
	}

	b.funcStack = b.funcStack[:len(b.funcStack)-1]
	b.funcDepth--
	b.cur = outer
	b.curFlow = outerFlow
	b.terminated = outerTerminated
}

func (b *binder) bindClassDef(n *syntax.Node) {
	for _, d := range n.Decorators {
		b.bindExpr(d)
	}
	for _, base := range n.Bases {
		b.bindExpr(base)
	}
	for _, kw := range n.Keywords2 {
		b.bindExpr(kw.Value)
	}
	b.cur.declare(n.Name, SymClass, n, DeclClassDef)

	outer := b.cur
	classScope := newScope(ScopeClass, outer, n)
	outer.addChild(classScope)
	b.scopes[n.ID] = classScope

	b.cur = classScope
	b.step(n)
	b.bindBody(n.Body)
	b.cur = outer
}

// bindExpr walks an expression, recording a Name-use's antecedent and
// resolving it against the current scope (spec.md §4.3 bullets 4 and the
// invariant that every Name either resolves or is flagged unresolved).
func (b *binder) bindExpr(n *syntax.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KName:
		b.ante[n.ID] = b.curFlow
		if sym := b.cur.lookup(n.Name); sym == nil {
			b.unres[n.ID] = true
		}
		return
	case syntax.KNamedExpr:
		b.bindExpr(n.Value)
		b.bindTarget(n.Target, DeclWalrus)
		return
	case syntax.KLambda:
		b.bindLambda(n)
		return
	case syntax.KListComp, syntax.KSetComp, syntax.KGeneratorExp:
		b.bindComprehension(n, n.Value, nil, nil)
		return
	case syntax.KDictComp:
		b.bindComprehension(n, n.Target, n.Value, nil)
		return
	}

	for _, c := range n.Comparators {
		b.bindExpr(c)
	}
	b.bindExpr(n.Left)
	b.bindExpr(n.Test)
	b.bindExpr(n.Value)
	b.bindExpr(n.Func)
	for _, a := range n.Args {
		b.bindExpr(a)
	}
	for _, kw := range n.Keywords {
		b.bindExpr(kw.Value)
	}
	b.bindExpr(n.Obj)
	b.bindExpr(n.Lower)
	b.bindExpr(n.Upper)
	b.bindExpr(n.Step)
	if n.Kind != syntax.KDict {
		for _, elt := range n.Body {
			b.bindExpr(elt)
		}
	}
	for i, k := range n.Keys {
		if k != nil {
			b.bindExpr(k)
		}
		if i < len(n.Body) {
			b.bindExpr(n.Body[i])
		}
	}
	for _, part := range n.Parts {
		b.bindExpr(part)
	}
	if n.FormatSpec != nil {
		b.bindExpr(n.FormatSpec)
	}

	if n.Kind == syntax.KYield && b.funcDepth > 0 && len(b.funcStack) > 0 {
		b.funcStack[len(b.funcStack)-1].sawYield = true
	}
	if n.Kind == syntax.KYieldFrom && b.funcDepth > 0 && len(b.funcStack) > 0 {
		b.funcStack[len(b.funcStack)-1].sawYield = true
	}
}

func (b *binder) bindLambda(n *syntax.Node) {
	for _, param := range n.LambdaParams {
		if param.Default != nil {
			b.bindExpr(param.Default)
		}
	}
	outer := b.cur
	lamScope := newScope(ScopeLambda, outer, n)
	outer.addChild(lamScope)
	b.scopes[n.ID] = lamScope
	for _, param := range n.LambdaParams {
		lamScope.Symbols[param.Name] = &Symbol{Name: param.Name, Kind: SymParameter, Scope: lamScope}
		lamScope.Symbols[param.Name].addDecl(param, DeclParameter)
	}
	b.cur = lamScope
	b.bindExpr(n.LambdaBody)
	b.cur = outer
}

// bindComprehension binds a list/set/dict/generator comprehension, whose
// first `for` clause's iterable is evaluated in the *enclosing* scope while
// everything else (including the element/key/value expressions and
// subsequent clauses) lives in a new comprehension scope, matching CPython.
func (b *binder) bindComprehension(n *syntax.Node, elt, value, _ *syntax.Node) {
	clauses := n.Body
	if len(clauses) == 0 {
		return
	}
	b.bindExpr(clauses[0].Iter)

	outer := b.cur
	compScope := newScope(ScopeComprehension, outer, n)
	outer.addChild(compScope)
	b.scopes[n.ID] = compScope
	b.cur = compScope

	for i, clause := range clauses {
		if i > 0 {
			b.bindExpr(clause.Iter)
		}
		b.bindComprehensionTarget(clause.Target)
		for _, cond := range clause.Ifs {
			b.bindExpr(cond)
		}
	}
	b.bindExpr(elt)
	if value != nil {
		b.bindExpr(value)
	}

	b.cur = outer
}
