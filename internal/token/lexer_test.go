package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeSimpleAssignment(t *testing.T) {
	toks, _, diags := Tokenize("t.py", []byte("x = 1\n"))
	require.Empty(t, diags)
	assert.Equal(t, []Kind{Identifier, Operator, Int, Newline, EOF}, kinds(toks))
	assert.Equal(t, int64(1), toks[2].IntValue)
}

func TestTokenizeIndentDedent(t *testing.T) {
	src := "if x:\n    y = 1\nz = 2\n"
	toks, _, diags := Tokenize("t.py", []byte(src))
	require.Empty(t, diags)

	var sawIndent, sawDedent bool
	for _, tok := range toks {
		if tok.Kind == Indent {
			sawIndent = true
		}
		if tok.Kind == Dedent {
			sawDedent = true
		}
	}
	assert.True(t, sawIndent)
	assert.True(t, sawDedent)
}

func TestTokenizeImplicitContinuationInsideBrackets(t *testing.T) {
	src := "x = (\n    1,\n    2,\n)\n"
	toks, _, diags := Tokenize("t.py", []byte(src))
	require.Empty(t, diags)

	newlineCount := 0
	for _, tok := range toks {
		if tok.Kind == Newline {
			newlineCount++
		}
	}
	// only the trailing newline after the closing paren should survive
	assert.Equal(t, 1, newlineCount)
}

func TestTokenizeBackslashContinuation(t *testing.T) {
	src := "x = 1 + \\\n    2\n"
	toks, _, diags := Tokenize("t.py", []byte(src))
	require.Empty(t, diags)

	newlineCount := 0
	for _, tok := range toks {
		if tok.Kind == Newline {
			newlineCount++
		}
	}
	assert.Equal(t, 1, newlineCount)
}

func TestTokenizeUnterminatedStringProducesErrorToken(t *testing.T) {
	toks, _, diags := Tokenize("t.py", []byte("x = 'abc\n"))
	require.NotEmpty(t, diags)

	var sawError bool
	for _, tok := range toks {
		if tok.Kind == Error {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestTokenizeTypeIgnorePragma(t *testing.T) {
	toks, _, diags := Tokenize("t.py", []byte("x = f()  # type: ignore[arg-type]\n"))
	require.Empty(t, diags)

	var found *Token
	for i := range toks {
		if toks[i].Kind == TypeIgnorePragma {
			found = &toks[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, []string{"arg-type"}, found.Pragma.Codes)
}

func TestTokenizeTypeCommentPragma(t *testing.T) {
	toks, _, _ := Tokenize("t.py", []byte("x = []  # type: List[int]\n"))
	var found *Token
	for i := range toks {
		if toks[i].Kind == TypeCommentPragma {
			found = &toks[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "List[int]", found.Pragma.Text)
}

func TestTokenizeFString(t *testing.T) {
	toks, _, diags := Tokenize("t.py", []byte(`x = f"hello {name}"` + "\n"))
	require.Empty(t, diags)

	var sawFStringStart bool
	for _, tok := range toks {
		if tok.Kind == FStringStart {
			sawFStringStart = true
		}
	}
	assert.True(t, sawFStringStart)
}

func TestTokenizeNumericLiteralsWithUnderscores(t *testing.T) {
	toks, _, diags := Tokenize("t.py", []byte("x = 1_000_000\ny = 1_0.5\nz = 3j\n"))
	require.Empty(t, diags)
	assert.Equal(t, int64(1000000), toks[2].IntValue)

	var sawFloat, sawImaginary bool
	for _, tok := range toks {
		if tok.Kind == Float {
			sawFloat = true
		}
		if tok.Kind == Imaginary {
			sawImaginary = true
		}
	}
	assert.True(t, sawFloat)
	assert.True(t, sawImaginary)
}

func TestLineOffsets(t *testing.T) {
	offsets := LineOffsets([]byte("ab\ncd\n"))
	assert.Equal(t, []int{0, 3, 6}, offsets)
}
