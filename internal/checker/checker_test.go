package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/evaluator"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/token"
)

func checkSource(t *testing.T, src string) []diagnostic.Diagnostic {
	t.Helper()
	toks, _, diags := token.Tokenize("t.py", []byte(src))
	require.Empty(t, diags)
	mod, pdiags, _ := syntax.Parse("t.py", toks, syntax.DefaultDialect())
	require.Empty(t, pdiags)
	bm := binder.Bind("t.py", mod, binder.NewBuiltinsScope())
	eval := evaluator.New("t.py", bm, evaluator.NewBuiltins())
	return Check("t.py", mod, bm, eval)
}

func hasRule(diags []diagnostic.Diagnostic, rule diagnostic.Rule) bool {
	for _, d := range diags {
		if d.Rule == rule {
			return true
		}
	}
	return false
}

func TestCheckUnusedVariableFlagsNeverReadLocal(t *testing.T) {
	diags := checkSource(t, "def f():\n    x = 1\n    return 2\n")
	assert.True(t, hasRule(diags, diagnostic.RuleUnusedVariable))
}

func TestCheckUnusedVariableIgnoresUnderscorePrefixed(t *testing.T) {
	diags := checkSource(t, "def f():\n    _x = 1\n    return 2\n")
	assert.False(t, hasRule(diags, diagnostic.RuleUnusedVariable))
}

func TestCheckUnusedVariableIgnoresReadLocal(t *testing.T) {
	diags := checkSource(t, "def f():\n    x = 1\n    return x\n")
	assert.False(t, hasRule(diags, diagnostic.RuleUnusedVariable))
}

func TestCheckUnreachableFlagsCodeAfterReturn(t *testing.T) {
	diags := checkSource(t, "def f():\n    return 1\n    y = x\n")
	assert.True(t, hasRule(diags, diagnostic.RuleUnreachable))
}

func TestCheckUnreachableDoesNotFlagElseBranch(t *testing.T) {
	diags := checkSource(t, "def f(cond):\n    if cond:\n        return 1\n    else:\n        y = x\n")
	assert.False(t, hasRule(diags, diagnostic.RuleUnreachable))
}

func TestCheckImplicitOptionalFlagsNoneDefaultWithoutOptionalAnnotation(t *testing.T) {
	diags := checkSource(t, "def f(x: int = None):\n    pass\n")
	assert.True(t, hasRule(diags, diagnostic.RuleOptionalImplicit))
}

func TestCheckImplicitOptionalAllowsUnionWithNone(t *testing.T) {
	diags := checkSource(t, "def f(x: int | None = None):\n    pass\n")
	assert.False(t, hasRule(diags, diagnostic.RuleOptionalImplicit))
}

func TestCheckMissingReturnFlagsAnnotatedBodyWithoutReturn(t *testing.T) {
	diags := checkSource(t, "def f() -> int:\n    x = 1\n")
	assert.True(t, hasRule(diags, diagnostic.RuleMissingReturn))
}

func TestCheckMissingReturnAllowsStubBody(t *testing.T) {
	diags := checkSource(t, "def f() -> int:\n    ...\n")
	assert.False(t, hasRule(diags, diagnostic.RuleMissingReturn))
}

func TestCheckMissingReturnAllowsBodyThatAlwaysRaises(t *testing.T) {
	diags := checkSource(t, "def f() -> int:\n    raise NotImplementedError()\n")
	assert.False(t, hasRule(diags, diagnostic.RuleMissingReturn))
}

func TestCheckMissingReturnAllowsAbstractMethod(t *testing.T) {
	diags := checkSource(t, "class C:\n    @abstractmethod\n    def f(self) -> int:\n        ...\n")
	assert.False(t, hasRule(diags, diagnostic.RuleMissingReturn))
}

func TestCheckInvalidMetaclassFlagsNonClassValue(t *testing.T) {
	diags := checkSource(t, "m = 1\nclass C(metaclass=m):\n    pass\n")
	assert.True(t, hasRule(diags, diagnostic.RuleInvalidMetaclass))
}

func TestCheckInvalidMetaclassAllowsTypeSubclass(t *testing.T) {
	diags := checkSource(t, "class Meta(type):\n    pass\nclass C(metaclass=Meta):\n    pass\n")
	assert.False(t, hasRule(diags, diagnostic.RuleInvalidMetaclass))
}

func TestCheckUnusedTypeIgnoreRemainsNoop(t *testing.T) {
	diags := checkSource(t, "x = 1  # type: ignore\n")
	assert.False(t, hasRule(diags, diagnostic.RuleUnusedTypeIgnore))
}
