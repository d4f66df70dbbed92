package stubwriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/evaluator"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/token"
)

func genStub(t *testing.T, src string) string {
	t.Helper()
	toks, _, diags := token.Tokenize("t.py", []byte(src))
	require.Empty(t, diags)
	mod, pdiags, _ := syntax.Parse("t.py", toks, syntax.DefaultDialect())
	require.Empty(t, pdiags)
	bm := binder.Bind("t.py", mod, binder.NewBuiltinsScope())
	eval := evaluator.New("t.py", bm, evaluator.NewBuiltins())
	return Generate(bm, eval)
}

func TestGenerateEmitsModuleVariableWithInferredType(t *testing.T) {
	stub := genStub(t, "x = 1\n")
	assert.Contains(t, stub, "x: ")
}

func TestGenerateOmitsPrivateAndImportedNames(t *testing.T) {
	stub := genStub(t, "import os\n_private = 1\npublic = 2\n")
	assert.NotContains(t, stub, "os")
	assert.NotContains(t, stub, "_private")
	assert.Contains(t, stub, "public")
}

func TestGenerateEmitsFunctionSignature(t *testing.T) {
	stub := genStub(t, "def f(a, b=1):\n    return a\n")
	assert.Contains(t, stub, "def f(a, b = ...)")
}

func TestGenerateEmitsClassWithBaseAndMembers(t *testing.T) {
	stub := genStub(t, "class Base:\n    pass\nclass C(Base):\n    def m(self):\n        return 1\n")
	assert.Contains(t, stub, "class C(Base):")
	assert.Contains(t, stub, "def m(self")
}

func TestGenerateEmitsEmptyClassBodyAsEllipsis(t *testing.T) {
	stub := genStub(t, "class Empty:\n    pass\n")
	assert.Contains(t, stub, "class Empty:")
	assert.Contains(t, stub, "...")
}

func TestGenerateIsDeterministicallySorted(t *testing.T) {
	stub := genStub(t, "z = 1\na = 2\nm = 3\n")
	ia := indexOf(stub, "a:")
	im := indexOf(stub, "m:")
	iz := indexOf(stub, "z:")
	require.True(t, ia >= 0 && im >= 0 && iz >= 0)
	assert.True(t, ia < im)
	assert.True(t, im < iz)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestDiffReturnsEmptyWhenStubsIdentical(t *testing.T) {
	assert.Equal(t, "", Diff("x: int\n", "x: int\n", "a.pyi"))
}

func TestDiffRendersUnifiedDiffHeader(t *testing.T) {
	diff := Diff("x: int\n", "x: str\n", "a.pyi")
	assert.Contains(t, diff, "a.pyi")
	assert.Contains(t, diff, "-x: int")
	assert.Contains(t, diff, "+x: str")
}
