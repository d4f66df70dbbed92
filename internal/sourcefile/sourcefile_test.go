package sourcefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/evaluator"
	"github.com/oxhq/pytype/internal/syntax"
)

func TestNewStartsUnparsedWithContentHash(t *testing.T) {
	sf := New("a.py", []byte("x = 1\n"))
	assert.Equal(t, Unparsed, sf.State)
	assert.NotEmpty(t, sf.ContentHash)
}

func TestParseAdvancesToParsedAndBuildsParentIndex(t *testing.T) {
	sf := New("a.py", []byte("x = 1\n"))
	sf.Parse(syntax.DefaultDialect())
	assert.Equal(t, Parsed, sf.State)
	require.NotNil(t, sf.Module)
	require.NotNil(t, sf.ParentIndex)
}

func TestBindAdvancesToBoundAndCollectsImports(t *testing.T) {
	sf := New("a.py", []byte("import os\nx = 1\n"))
	sf.Parse(syntax.DefaultDialect())
	sf.Bind(binder.NewBuiltinsScope())
	assert.Equal(t, Bound, sf.State)
	require.NotNil(t, sf.Bound)
	assert.Equal(t, []string{"os"}, sf.Imports)
}

func TestCheckPopulatesDiagnosticsAndAdvancesToChecked(t *testing.T) {
	sf := New("a.py", []byte("x = 1 + 1\n"))
	sf.Parse(syntax.DefaultDialect())
	sf.Bind(binder.NewBuiltinsScope())
	sf.Evaluate(evaluator.NewBuiltins())
	sf.Check()
	assert.Equal(t, Checked, sf.State)
}

func TestSetContentResetsDownstreamArtifacts(t *testing.T) {
	sf := New("a.py", []byte("x = 1\n"))
	sf.Parse(syntax.DefaultDialect())
	sf.Bind(binder.NewBuiltinsScope())
	require.Equal(t, Bound, sf.State)

	sf.SetContent([]byte("y = 2\n"))
	assert.Equal(t, Unparsed, sf.State)
	assert.Nil(t, sf.Module)
	assert.Nil(t, sf.Bound)
}

func TestMarkDirtyContentChangedRestartsFromUnparsed(t *testing.T) {
	sf := New("a.py", []byte("x = 1\n"))
	sf.Parse(syntax.DefaultDialect())
	sf.Bind(binder.NewBuiltinsScope())
	sf.Evaluate(evaluator.NewBuiltins())
	sf.Check()
	require.Equal(t, Checked, sf.State)

	sf.MarkDirty(ContentChanged)
	assert.Equal(t, Unparsed, sf.State)
}

func TestMarkDirtyDepChangedMovesCheckedToCheckDeferred(t *testing.T) {
	sf := New("a.py", []byte("x = 1\n"))
	sf.Parse(syntax.DefaultDialect())
	sf.Bind(binder.NewBuiltinsScope())
	sf.Evaluate(evaluator.NewBuiltins())
	sf.Check()
	require.Equal(t, Checked, sf.State)

	sf.MarkDirty(DepChanged)
	assert.Equal(t, CheckDeferred, sf.State)
	assert.NotNil(t, sf.Bound, "dep-changed must preserve parse/bind artifacts")
}

func TestMarkDirtyDepChangedIsNoopWhenNotChecked(t *testing.T) {
	sf := New("a.py", []byte("x = 1\n"))
	sf.Parse(syntax.DefaultDialect())
	sf.MarkDirty(DepChanged)
	assert.Equal(t, Parsed, sf.State)
}

func TestContentHashChangesWithContent(t *testing.T) {
	sf := New("a.py", []byte("x = 1\n"))
	h1 := sf.ContentHash
	sf.SetContent([]byte("x = 2\n"))
	assert.NotEqual(t, h1, sf.ContentHash)
}

func TestStateStringNames(t *testing.T) {
	assert.Equal(t, "unparsed", Unparsed.String())
	assert.Equal(t, "parsed", Parsed.String())
	assert.Equal(t, "bound", Bound.String())
	assert.Equal(t, "check-deferred", CheckDeferred.String())
	assert.Equal(t, "checked", Checked.String())
}
