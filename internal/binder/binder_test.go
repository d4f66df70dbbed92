package binder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/token"
)

func bindSource(t *testing.T, src string) *BoundModule {
	t.Helper()
	toks, _, diags := token.Tokenize("t.py", []byte(src))
	require.Empty(t, diags)
	mod, pdiags, _ := syntax.Parse("t.py", toks, syntax.DefaultDialect())
	require.Empty(t, pdiags)
	return Bind("t.py", mod, NewBuiltinsScope())
}

func findName(root *syntax.Node, name string) *syntax.Node {
	var found *syntax.Node
	syntax.Walk(root, func(n *syntax.Node) {
		if n.Kind == syntax.KName && n.Name == name && found == nil {
			found = n
		}
	})
	return found
}

func TestBindSimpleAssignmentDeclaresAndResolves(t *testing.T) {
	bm := bindSource(t, "x = 1\ny = x\n")
	sym, ok := bm.ModuleScope.Symbols["x"]
	require.True(t, ok)
	assert.Equal(t, SymVariable, sym.Kind)
	require.Len(t, sym.Decls, 1)

	use := findName(bm.Module, "x")
	require.NotNil(t, use)
	// the read of x on line 2 should not be flagged unresolved
	var readUse *syntax.Node
	syntax.Walk(bm.Module, func(n *syntax.Node) {
		if n.Kind == syntax.KAssign && len(n.Targets) == 1 && n.Targets[0].Name == "y" {
			readUse = n.Value
		}
	})
	require.NotNil(t, readUse)
	assert.False(t, bm.Unresolved[readUse.ID])
}

func TestBindUnresolvedNameIsFlagged(t *testing.T) {
	bm := bindSource(t, "print(undefined_name)\n")
	use := findName(bm.Module, "undefined_name")
	require.NotNil(t, use)
	assert.True(t, bm.Unresolved[use.ID])
}

func TestBindFunctionCreatesScopeWithParameters(t *testing.T) {
	bm := bindSource(t, "def f(a, b=1):\n    return a + b\n")
	fnSym, ok := bm.ModuleScope.Symbols["f"]
	require.True(t, ok)
	assert.Equal(t, SymFunction, fnSym.Kind)

	var fnNode *syntax.Node
	syntax.Walk(bm.Module, func(n *syntax.Node) {
		if n.Kind == syntax.KFunctionDef {
			fnNode = n
		}
	})
	require.NotNil(t, fnNode)
	fnScope, ok := bm.Scopes[fnNode.ID]
	require.True(t, ok)
	assert.Equal(t, ScopeFunction, fnScope.Kind)
	_, hasA := fnScope.Symbols["a"]
	_, hasB := fnScope.Symbols["b"]
	assert.True(t, hasA)
	assert.True(t, hasB)
}

func TestBindDuplicateParameterNameIsDiagnosed(t *testing.T) {
	bm := bindSource(t, "def f(a, a):\n    pass\n")
	require.NotEmpty(t, bm.Diagnostics)
}

func TestBindReturnOutsideFunctionIsDiagnosed(t *testing.T) {
	bm := bindSource(t, "return 1\n")
	require.NotEmpty(t, bm.Diagnostics)
}

func TestBindNonlocalWithoutBindingIsDiagnosed(t *testing.T) {
	bm := bindSource(t, "def outer():\n    def inner():\n        nonlocal missing\n        missing = 1\n    inner()\n")
	require.NotEmpty(t, bm.Diagnostics)
}

func TestBindGlobalRedirectsAssignmentToModuleScope(t *testing.T) {
	bm := bindSource(t, "x = 0\ndef f():\n    global x\n    x = 1\n")
	sym := bm.ModuleScope.Symbols["x"]
	require.NotNil(t, sym)
	assert.Len(t, sym.Decls, 2) // module-level `x = 0` and the redirected `x = 1`
}

func TestBindClassScopeNotVisibleToNestedMethod(t *testing.T) {
	bm := bindSource(t, "class C:\n    attr = 1\n    def m(self):\n        return attr\n")
	var useInMethod *syntax.Node
	syntax.Walk(bm.Module, func(n *syntax.Node) {
		if n.Kind == syntax.KReturn {
			useInMethod = n.Value
		}
	})
	require.NotNil(t, useInMethod)
	assert.True(t, bm.Unresolved[useInMethod.ID])
}

func TestBindComprehensionScopeIsolatesTarget(t *testing.T) {
	bm := bindSource(t, "xs = [y for y in range(3)]\n")
	var comp *syntax.Node
	syntax.Walk(bm.Module, func(n *syntax.Node) {
		if n.Kind == syntax.KListComp {
			comp = n
		}
	})
	require.NotNil(t, comp)
	scope, ok := bm.Scopes[comp.ID]
	require.True(t, ok)
	assert.Equal(t, ScopeComprehension, scope.Kind)
	_, hasY := scope.Symbols["y"]
	assert.True(t, hasY)
	_, hasYAtModule := bm.ModuleScope.Symbols["y"]
	assert.False(t, hasYAtModule)
}

func TestBindAllLiteralResolution(t *testing.T) {
	bm := bindSource(t, `__all__ = ["a", "b"]` + "\n")
	assert.Equal(t, []string{"a", "b"}, bm.All)
}

func TestBindIfElseCreatesMergeFlowNode(t *testing.T) {
	bm := bindSource(t, "if cond:\n    x = 1\nelse:\n    x = 2\ny = x\n")
	var sawMerge bool
	for _, fn := range bm.Flow.Nodes() {
		if fn.Kind == FlowMerge {
			sawMerge = true
			assert.True(t, len(fn.Antecedents) >= 2)
		}
	}
	assert.True(t, sawMerge)
}

func TestBindForLoopCreatesLoopHeadWithBackEdge(t *testing.T) {
	bm := bindSource(t, "for i in range(3):\n    pass\n")
	var head *FlowNode
	for _, fn := range bm.Flow.Nodes() {
		if fn.Kind == FlowLoopHead {
			head = fn
		}
	}
	require.NotNil(t, head)
	var sawBackEdge bool
	for _, ante := range head.Antecedents {
		if ante.Kind == FlowLoopBack {
			sawBackEdge = true
		}
	}
	assert.True(t, sawBackEdge)
}

func TestBindExceptAsDeclaresNameInEnclosingScope(t *testing.T) {
	bm := bindSource(t, "try:\n    pass\nexcept Exception as e:\n    print(e)\n")
	sym := bm.ModuleScope.Symbols["e"]
	require.NotNil(t, sym)
	require.Len(t, sym.Decls, 1)
	assert.Equal(t, DeclExceptAs, sym.Decls[0].Kind)
}

func TestBindImportDeclaresName(t *testing.T) {
	bm := bindSource(t, "import os\nimport numpy as np\n")
	_, hasOS := bm.ModuleScope.Symbols["os"]
	_, hasNP := bm.ModuleScope.Symbols["np"]
	assert.True(t, hasOS)
	assert.True(t, hasNP)
}

func TestBindWithAsTarget(t *testing.T) {
	bm := bindSource(t, "with open('f') as fh:\n    fh.read()\n")
	sym := bm.ModuleScope.Symbols["fh"]
	require.NotNil(t, sym)
	assert.Equal(t, DeclWithAs, sym.Decls[0].Kind)
}

func TestBindCodeAfterReturnIsUnreachable(t *testing.T) {
	bm := bindSource(t, "def f():\n    return 1\n    y = x\n")
	use := findName(bm.Module, "x")
	require.NotNil(t, use)
	ante, ok := bm.Antecedent[use.ID]
	require.True(t, ok)
	assert.Equal(t, FlowUnreachable, ante.Kind)
}

func TestBindCodeAfterRaiseIsUnreachable(t *testing.T) {
	bm := bindSource(t, "def f():\n    raise ValueError()\n    y = x\n")
	use := findName(bm.Module, "x")
	require.NotNil(t, use)
	ante, ok := bm.Antecedent[use.ID]
	require.True(t, ok)
	assert.Equal(t, FlowUnreachable, ante.Kind)
}

func TestBindElseBranchNotMarkedUnreachableAfterIfReturns(t *testing.T) {
	bm := bindSource(t, "def f(cond):\n    if cond:\n        return 1\n    else:\n        y = x\n")
	use := findName(bm.Module, "x")
	require.NotNil(t, use)
	ante, ok := bm.Antecedent[use.ID]
	require.True(t, ok)
	assert.NotEqual(t, FlowUnreachable, ante.Kind)
}

func TestBindCodeAfterIfElseBothReturnIsNotMarkedUnreachable(t *testing.T) {
	// conservative: the merge point itself is never treated as terminated,
	// even when both arms return (degrades toward false negatives).
	bm := bindSource(t, "def f(cond):\n    if cond:\n        return 1\n    else:\n        return 2\n    y = x\n")
	use := findName(bm.Module, "x")
	require.NotNil(t, use)
	ante, ok := bm.Antecedent[use.ID]
	require.True(t, ok)
	assert.NotEqual(t, FlowUnreachable, ante.Kind)
}

func TestBindCodeAfterLoopBreakInSiblingStatementNotUnreachable(t *testing.T) {
	bm := bindSource(t, "def f():\n    for i in range(3):\n        break\n    y = x\n")
	use := findName(bm.Module, "x")
	require.NotNil(t, use)
	ante, ok := bm.Antecedent[use.ID]
	require.True(t, ok)
	assert.NotEqual(t, FlowUnreachable, ante.Kind)
}

func TestBindCodeAfterTryExceptBothTerminateIsUnreachable(t *testing.T) {
	bm := bindSource(t, "def f():\n    try:\n        return 1\n    except Exception:\n        return 2\n    y = x\n")
	use := findName(bm.Module, "x")
	require.NotNil(t, use)
	ante, ok := bm.Antecedent[use.ID]
	require.True(t, ok)
	assert.Equal(t, FlowUnreachable, ante.Kind)
}

func TestBindCodeAfterFunctionDefNotAffectedByBodyReturn(t *testing.T) {
	bm := bindSource(t, "def f():\n    return 1\ny = x\n")
	use := findName(bm.Module, "x")
	require.NotNil(t, use)
	ante, ok := bm.Antecedent[use.ID]
	require.True(t, ok)
	assert.NotEqual(t, FlowUnreachable, ante.Kind)
}
