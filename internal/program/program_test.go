package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/fsutil"
	"github.com/oxhq/pytype/internal/resolver"
	"github.com/oxhq/pytype/internal/sourcefile"
	"github.com/oxhq/pytype/internal/syntax"
)

func newTestProgram(t *testing.T, files map[string]string) (*Program, *fsutil.Memory) {
	t.Helper()
	mem := fsutil.NewMemory()
	for path, content := range files {
		mem.Put(path, []byte(content))
	}
	res := resolver.New(mem, resolver.Roots{SourceRoots: []string{"proj"}})
	p := New(mem, res, syntax.DefaultDialect())
	return p, mem
}

func TestAnalyzeAllDrivesEveryTrackedFileToChecked(t *testing.T) {
	p, _ := newTestProgram(t, map[string]string{
		"proj/a.py": "x = 1\n",
	})
	require.NoError(t, p.SetTrackedFiles([]string{"proj/a.py"}))
	p.AnalyzeAll()

	sf, ok := p.File("proj/a.py")
	require.True(t, ok)
	assert.Equal(t, sourcefile.Checked, sf.State)
}

func TestAnalyzeReturnsFalseOnceQueueIsEmpty(t *testing.T) {
	p, _ := newTestProgram(t, map[string]string{"proj/a.py": "x = 1\n"})
	require.NoError(t, p.SetTrackedFiles([]string{"proj/a.py"}))
	for p.Analyze() {
	}
	assert.False(t, p.Analyze())
}

func TestSetTrackedFilesDropsUntrackedAndKeepsExisting(t *testing.T) {
	p, _ := newTestProgram(t, map[string]string{
		"proj/a.py": "x = 1\n",
		"proj/b.py": "y = 2\n",
	})
	require.NoError(t, p.SetTrackedFiles([]string{"proj/a.py", "proj/b.py"}))
	p.AnalyzeAll()

	require.NoError(t, p.SetTrackedFiles([]string{"proj/a.py"}))
	_, ok := p.File("proj/b.py")
	assert.False(t, ok)
	_, ok = p.File("proj/a.py")
	assert.True(t, ok, "a.py must not be re-read/reset when it stays tracked")
}

func TestMarkDirtyContentChangedRereadsFromFS(t *testing.T) {
	p, mem := newTestProgram(t, map[string]string{"proj/a.py": "x = 1\n"})
	require.NoError(t, p.SetTrackedFiles([]string{"proj/a.py"}))
	p.AnalyzeAll()

	mem.Put("proj/a.py", []byte("x = 2\n"))
	require.NoError(t, p.MarkDirty("proj/a.py", sourcefile.ContentChanged))

	sf, _ := p.File("proj/a.py")
	assert.Equal(t, sourcefile.Unparsed, sf.State)
	assert.Equal(t, "x = 2\n", string(sf.Content))
}

func TestMarkDirtyDependentsCascadeOnImportedFileChange(t *testing.T) {
	p, mem := newTestProgram(t, map[string]string{
		"proj/a.py": "import b\nx = b.y\n",
		"proj/b.py": "y = 1\n",
	})
	require.NoError(t, p.SetTrackedFiles([]string{"proj/a.py", "proj/b.py"}))
	p.AnalyzeAll()

	aSF, _ := p.File("proj/a.py")
	require.Equal(t, sourcefile.Checked, aSF.State)

	mem.Put("proj/b.py", []byte("y = 2\n"))
	require.NoError(t, p.MarkDirty("proj/b.py", sourcefile.ContentChanged))

	assert.Equal(t, sourcefile.CheckDeferred, aSF.State, "a dependent of a changed file should be deferred, not fully reset")
}

func TestDiagnosticsEmptyBeforeChecked(t *testing.T) {
	p, _ := newTestProgram(t, map[string]string{"proj/a.py": "x = 1\n"})
	require.NoError(t, p.SetTrackedFiles([]string{"proj/a.py"}))
	assert.Empty(t, p.Diagnostics("proj/a.py"))
}

func TestEnsureCheckedDrivesOnlyRequestedFile(t *testing.T) {
	p, _ := newTestProgram(t, map[string]string{
		"proj/a.py": "x = 1\n",
		"proj/b.py": "y = 2\n",
	})
	require.NoError(t, p.SetTrackedFiles([]string{"proj/a.py", "proj/b.py"}))
	p.EnsureChecked("proj/a.py")

	aSF, _ := p.File("proj/a.py")
	bSF, _ := p.File("proj/b.py")
	assert.Equal(t, sourcefile.Checked, aSF.State)
	assert.NotEqual(t, sourcefile.Checked, bSF.State)
}

func TestEnsureCheckedOnUnknownPathIsNoop(t *testing.T) {
	p, _ := newTestProgram(t, map[string]string{"proj/a.py": "x = 1\n"})
	require.NoError(t, p.SetTrackedFiles([]string{"proj/a.py"}))
	p.EnsureChecked("proj/missing.py")
	_, ok := p.File("proj/missing.py")
	assert.False(t, ok)
}
