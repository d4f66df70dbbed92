package langserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/fsutil"
	"github.com/oxhq/pytype/internal/program"
	"github.com/oxhq/pytype/internal/resolver"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/writer"
)

func newTestQueries(t *testing.T, files map[string]string) (*Queries, string) {
	t.Helper()
	mem := fsutil.NewMemory()
	var paths []string
	for path, content := range files {
		mem.Put(path, []byte(content))
		paths = append(paths, path)
	}
	res := resolver.New(mem, resolver.Roots{SourceRoots: []string{"."}})
	prog := program.New(mem, res, syntax.DefaultDialect())
	require.NoError(t, prog.SetTrackedFiles(paths))
	return &Queries{Prog: prog, Res: res, W: writer.New(mem)}, paths[0]
}

func TestHoverReportsVariableType(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\nprint(x)\n"})
	h, err := q.Hover("a.py", Position{Line: 1, Character: 6})
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Contains(t, h.Contents, "x:")
}

func TestHoverReturnsNilWhenNotOverAName(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\n"})
	h, err := q.Hover("a.py", Position{Line: 0, Character: 1})
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestHoverReturnsErrorForUntrackedFile(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\n"})
	_, err := q.Hover("missing.py", Position{Line: 0, Character: 0})
	assert.Error(t, err)
}

func TestDefinitionResolvesToFirstDeclaration(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\nprint(x)\n"})
	loc, err := q.Definition("a.py", Position{Line: 1, Character: 6})
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, 0, loc.Range.Start.Line)
}

func TestReferencesFindsEveryUseOfASymbol(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\nprint(x)\nprint(x)\n"})
	locs, err := q.References("a.py", Position{Line: 0, Character: 0})
	require.NoError(t, err)
	assert.Len(t, locs, 3)
}

func TestReferencesDedupesRepeatedLocations(t *testing.T) {
	locs := dedupeLocations([]Location{
		{URI: "a.py", Range: Range{Start: Position{Line: 1, Character: 2}}},
		{URI: "a.py", Range: Range{Start: Position{Line: 1, Character: 2}}},
		{URI: "a.py", Range: Range{Start: Position{Line: 2, Character: 0}}},
	})
	assert.Len(t, locs, 2)
}

func TestRenameReplacesEveryReferenceWithNewName(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\nprint(x)\n"})
	edit, err := q.Rename("a.py", Position{Line: 0, Character: 0}, "y")
	require.NoError(t, err)
	require.NotNil(t, edit)
	edits := edit.Changes["a.py"]
	require.Len(t, edits, 2)
	for _, e := range edits {
		assert.Equal(t, "y", e.NewText)
	}
}

func TestRenameReturnsNilWhenNoReferencesFound(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\n"})
	edit, err := q.Rename("a.py", Position{Line: 5, Character: 0}, "y")
	require.NoError(t, err)
	assert.Nil(t, edit)
}

func TestDocumentSymbolsListsModuleLevelDeclarationsSorted(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "def f():\n    pass\nclass C:\n    pass\nx = 1\n"})
	syms, err := q.DocumentSymbols("a.py")
	require.NoError(t, err)
	var names []string
	for _, s := range syms {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"C", "f", "x"}, names)
}

func TestDocumentSymbolsNestsClassMembersAsChildren(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "class C:\n    def m(self):\n        pass\n"})
	syms, err := q.DocumentSymbols("a.py")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	require.Len(t, syms[0].Children, 1)
	assert.Equal(t, "m", syms[0].Children[0].Name)
	assert.Equal(t, "method", syms[0].Children[0].Kind)
}

func TestCompletionListsNamesVisibleInEnclosingScopeWithoutDuplicates(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\ndef f(y):\n    pass\n"})
	items, err := q.Completion("a.py", Position{Line: 1, Character: 10})
	require.NoError(t, err)
	var labels []string
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	assert.Contains(t, labels, "x")
	assert.Contains(t, labels, "y")
	assert.Contains(t, labels, "f")
}

func TestSignatureHelpReportsActiveParameter(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "def f(a, b):\n    pass\nf(1, 2)\n"})
	help, err := q.SignatureHelp("a.py", Position{Line: 2, Character: 6})
	require.NoError(t, err)
	require.NotNil(t, help)
	assert.Equal(t, []string{"a", "b"}, help.Parameters)
	assert.Equal(t, 1, help.ActiveParameter)
}

func TestSignatureHelpReturnsNilOutsideACall(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "def f(a, b):\n    pass\nx = 1\n"})
	help, err := q.SignatureHelp("a.py", Position{Line: 2, Character: 0})
	require.NoError(t, err)
	assert.Nil(t, help)
}

func TestCodeActionOrganizeImportsReturnsGroupedEdit(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "import requests\nimport sys\n"})
	edit, err := q.CodeAction("a.py", Position{Line: 0, Character: 0}, ActionOrganizeImports)
	require.NoError(t, err)
	require.NotNil(t, edit)
	assert.Contains(t, edit.Changes, "a.py")
}

func TestCodeActionAddOptionalAnnotationOnlyAppliesOverAParameter(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "def f(x: int = None):\n    pass\n"})
	edit, err := q.CodeAction("a.py", Position{Line: 0, Character: 6}, ActionAddOptionalAnnotation)
	require.NoError(t, err)
	require.NotNil(t, edit)
	edits := edit.Changes["a.py"]
	require.Len(t, edits, 1)
	assert.Equal(t, "int | None", edits[0].NewText)
}

func TestCodeActionAddOptionalAnnotationReturnsNilOffAParameter(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "def f(x: int = None):\n    pass\n"})
	edit, err := q.CodeAction("a.py", Position{Line: 1, Character: 1}, ActionAddOptionalAnnotation)
	require.NoError(t, err)
	assert.Nil(t, edit)
}

func TestCodeActionCreateStubIsRejectedAsAWorkspaceEdit(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\n"})
	_, err := q.CodeAction("a.py", Position{Line: 0, Character: 0}, ActionCreateStub)
	assert.Error(t, err)
}

func TestCreateStubFileReturnsGeneratedStubText(t *testing.T) {
	q, _ := newTestQueries(t, map[string]string{"a.py": "x = 1\n"})
	stub, err := q.CreateStubFile("a.py")
	require.NoError(t, err)
	assert.Contains(t, stub, "x:")
}
