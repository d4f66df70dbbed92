package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/token"
)

func parse(t *testing.T, src string) *Node {
	t.Helper()
	toks, _, diags := token.Tokenize("t.py", []byte(src))
	require.Empty(t, diags)
	mod, pdiags, _ := Parse("t.py", toks, DefaultDialect())
	require.Empty(t, pdiags)
	return mod
}

func TestParseSimpleAssignment(t *testing.T) {
	mod := parse(t, "x = 1\n")
	require.Len(t, mod.Body, 1)
	assign := mod.Body[0]
	assert.Equal(t, KAssign, assign.Kind)
	require.Len(t, assign.Targets, 1)
	assert.Equal(t, KName, assign.Targets[0].Kind)
	assert.Equal(t, "x", assign.Targets[0].Name)
	assert.Equal(t, ConstInt, assign.Value.ConstKind)
	assert.Equal(t, int64(1), assign.Value.IntValue)
}

func TestParseChainedAssignment(t *testing.T) {
	mod := parse(t, "a = b = 1\n")
	assign := mod.Body[0]
	require.Len(t, assign.Targets, 2)
	assert.Equal(t, "a", assign.Targets[0].Name)
	assert.Equal(t, "b", assign.Targets[1].Name)
}

func TestParseAnnAssignWithTypeComment(t *testing.T) {
	mod := parse(t, "x: int = 1  # type: int\n")
	n := mod.Body[0]
	assert.Equal(t, KAnnAssign, n.Kind)
	assert.Equal(t, "int", n.Annotation.Name)
	assert.Equal(t, "int", n.TypeComment)
}

func TestParseAugAssign(t *testing.T) {
	mod := parse(t, "x += 1\n")
	n := mod.Body[0]
	assert.Equal(t, KAugAssign, n.Kind)
	assert.Equal(t, token.OpPlus, n.Op)
}

func TestParseIfElifElse(t *testing.T) {
	mod := parse(t, "if a:\n    pass\nelif b:\n    pass\nelse:\n    pass\n")
	n := mod.Body[0]
	assert.Equal(t, KIf, n.Kind)
	require.Len(t, n.OrElse, 1)
	elif := n.OrElse[0]
	assert.Equal(t, KIf, elif.Kind)
	assert.Equal(t, "b", elif.Test.Name)
	require.Len(t, elif.OrElse, 1)
	assert.Equal(t, KPass, elif.OrElse[0].Kind)
}

func TestParseFunctionDefWithAnnotationsAndDefaults(t *testing.T) {
	mod := parse(t, "def f(a: int, b: str = 'x', *args, **kwargs) -> bool:\n    return True\n")
	fn := mod.Body[0]
	assert.Equal(t, KFunctionDef, fn.Kind)
	assert.Equal(t, "f", fn.Name)
	require.Len(t, fn.Params, 4)
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Equal(t, "int", fn.Params[0].Annotation.Name)
	assert.Equal(t, "b", fn.Params[1].Name)
	assert.True(t, fn.Params[1].HasDefault)
	assert.Equal(t, ParamVarPositional, fn.Params[2].ParamKind)
	assert.Equal(t, "args", fn.Params[2].Name)
	assert.Equal(t, ParamVarKeyword, fn.Params[3].ParamKind)
	assert.Equal(t, "kwargs", fn.Params[3].Name)
	assert.Equal(t, "bool", fn.Returns.Name)
	require.Len(t, fn.Body, 1)
	assert.Equal(t, KReturn, fn.Body[0].Kind)
}

func TestParseClassDefWithBasesAndKeyword(t *testing.T) {
	mod := parse(t, "class C(Base, metaclass=Meta):\n    pass\n")
	cls := mod.Body[0]
	assert.Equal(t, KClassDef, cls.Kind)
	require.Len(t, cls.Bases, 1)
	assert.Equal(t, "Base", cls.Bases[0].Name)
	require.Len(t, cls.Keywords2, 1)
	assert.Equal(t, "metaclass", cls.Keywords2[0].Name)
}

func TestParseDecoratedFunction(t *testing.T) {
	mod := parse(t, "@decorator\ndef f():\n    pass\n")
	fn := mod.Body[0]
	require.Len(t, fn.Decorators, 1)
	assert.Equal(t, "decorator", fn.Decorators[0].Name)
}

func TestParseForElse(t *testing.T) {
	mod := parse(t, "for x in y:\n    pass\nelse:\n    pass\n")
	n := mod.Body[0]
	assert.Equal(t, KFor, n.Kind)
	assert.Equal(t, "x", n.Target.Name)
	assert.Equal(t, "y", n.Iter.Name)
	require.Len(t, n.OrElse, 1)
}

func TestParseTryExceptFinally(t *testing.T) {
	mod := parse(t, "try:\n    pass\nexcept ValueError as e:\n    pass\nfinally:\n    pass\n")
	n := mod.Body[0]
	assert.Equal(t, KTry, n.Kind)
	require.Len(t, n.Handlers, 1)
	h := n.Handlers[0]
	assert.Equal(t, "ValueError", h.ExceptType.Name)
	assert.Equal(t, "e", h.ExceptName)
	require.Len(t, n.Finally, 1)
}

func TestParseWithStatement(t *testing.T) {
	mod := parse(t, "with open('f') as fh:\n    pass\n")
	n := mod.Body[0]
	assert.Equal(t, KWith, n.Kind)
	require.Len(t, n.Body, 1)
	item := n.Body[0]
	assert.Equal(t, KWithItem, item.Kind)
	assert.Equal(t, "fh", item.Target.Name)
	require.Len(t, n.OrElse, 1) // with-body
}

func TestParseImportAndFromImport(t *testing.T) {
	mod := parse(t, "import os\nfrom typing import Optional, List as L\nfrom . import sibling\n")
	require.Len(t, mod.Body, 3)
	imp := mod.Body[0]
	assert.Equal(t, KImport, imp.Kind)
	assert.Equal(t, []string{"os"}, imp.Names[0].ModuleParts)

	from := mod.Body[1]
	assert.Equal(t, KImportFrom, from.Kind)
	assert.Equal(t, []string{"typing"}, from.ModuleParts)
	require.Len(t, from.Names, 2)
	assert.Equal(t, "Optional", from.Names[0].Name)
	assert.Equal(t, "List", from.Names[1].Name)
	assert.Equal(t, "L", from.Names[1].Alias)

	rel := mod.Body[2]
	assert.Equal(t, 1, rel.Level)
}

func TestParseChainedComparisonStaysFlat(t *testing.T) {
	mod := parse(t, "x = a < b < c\n")
	assign := mod.Body[0]
	cmp := assign.Value
	assert.Equal(t, KCompare, cmp.Kind)
	assert.Equal(t, "a", cmp.Left.Name)
	require.Len(t, cmp.Comparators, 2)
	require.Len(t, cmp.CompareOps, 2)
	assert.Equal(t, token.OpLt, cmp.CompareOps[0])
	assert.Equal(t, token.OpLt, cmp.CompareOps[1])
}

func TestParseListDictSetComprehension(t *testing.T) {
	mod := parse(t, "x = [a for a in b if a]\n")
	lc := mod.Body[0].Value
	assert.Equal(t, KListComp, lc.Kind)
	assert.Equal(t, "a", lc.Value.Name)
	require.Len(t, lc.Body, 1)
	clause := lc.Body[0]
	assert.Equal(t, KComprehension, clause.Kind)
	require.Len(t, clause.Ifs, 1)

	mod2 := parse(t, "x = {a: b for a, b in items}\n")
	dc := mod2.Body[0].Value
	assert.Equal(t, KDictComp, dc.Kind)

	mod3 := parse(t, "x = {a for a in b}\n")
	sc := mod3.Body[0].Value
	assert.Equal(t, KSetComp, sc.Kind)
}

func TestParseLambdaAndTernary(t *testing.T) {
	mod := parse(t, "f = lambda x, y=1: x + y\n")
	lam := mod.Body[0].Value
	assert.Equal(t, KLambda, lam.Kind)
	require.Len(t, lam.LambdaParams, 2)
	assert.True(t, lam.LambdaParams[1].HasDefault)

	mod2 := parse(t, "x = a if cond else b\n")
	ifexp := mod2.Body[0].Value
	assert.Equal(t, KIfExp, ifexp.Kind)
}

func TestParseWalrus(t *testing.T) {
	mod := parse(t, "if (n := len(a)) > 0:\n    pass\n")
	n := mod.Body[0]
	assert.Equal(t, KIf, n.Kind)
	assert.Equal(t, KCompare, n.Test.Kind)
	assert.Equal(t, KNamedExpr, n.Test.Left.Kind)
	assert.Equal(t, "n", n.Test.Left.Target.Name)
}

func TestParseCallWithKeywordsAndStar(t *testing.T) {
	mod := parse(t, "f(1, *args, key=2, **kwargs)\n")
	call := mod.Body[0].Value
	assert.Equal(t, KCall, call.Kind)
	require.Len(t, call.Args, 2)
	assert.Equal(t, KStarred, call.Args[1].Kind)
	require.Len(t, call.Keywords, 2)
	assert.Equal(t, "key", call.Keywords[0].Name)
}

func TestParseSliceSubscript(t *testing.T) {
	mod := parse(t, "x = a[1:2:3]\n")
	sub := mod.Body[0].Value
	assert.Equal(t, KSubscript, sub.Kind)
	slice := sub.Value
	assert.Equal(t, KSlice, slice.Kind)
	assert.Equal(t, int64(1), slice.Lower.IntValue)
	assert.Equal(t, int64(2), slice.Upper.IntValue)
	assert.Equal(t, int64(3), slice.Step.IntValue)
}

func TestParseFStringSplitsLiteralsAndExpressions(t *testing.T) {
	mod := parse(t, `x = f"hello {name!r:>10} end"` + "\n")
	joined := mod.Body[0].Value
	assert.Equal(t, KJoinedStr, joined.Kind)
	require.True(t, len(joined.Parts) >= 2)

	var sawFormatted bool
	for _, part := range joined.Parts {
		if part.Kind == KFormattedValue {
			sawFormatted = true
			assert.Equal(t, "name", part.Value.Name)
			assert.Equal(t, byte('r'), part.Conversion)
			require.NotNil(t, part.FormatSpec)
			assert.Equal(t, ">10", part.FormatSpec.StringValue)
		}
	}
	assert.True(t, sawFormatted)
}

func TestParseStarredAssignmentTarget(t *testing.T) {
	mod := parse(t, "a, *rest = values\n")
	assign := mod.Body[0]
	require.Len(t, assign.Targets, 1)
	tup := assign.Targets[0]
	assert.Equal(t, KTuple, tup.Kind)
	require.Len(t, tup.Body, 2)
	assert.Equal(t, KStarred, tup.Body[1].Kind)
}

func TestParseSyntaxErrorProducesErrorNode(t *testing.T) {
	toks, _, diags := token.Tokenize("t.py", []byte("x = )\n"))
	require.Empty(t, diags)
	mod, pdiags, _ := Parse("t.py", toks, DefaultDialect())
	assert.NotEmpty(t, pdiags)
	require.Len(t, mod.Body, 1)
	assert.True(t, mod.Body[0].Value.IsError || mod.Body[0].Value.Kind == KError)
}
