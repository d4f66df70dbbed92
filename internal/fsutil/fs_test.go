package fsutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobMatchesDoublestarPattern(t *testing.T) {
	assert.True(t, Glob([]string{"**/*.py"}, "pkg/mod.py"))
	assert.False(t, Glob([]string{"**/*.pyi"}, "pkg/mod.py"))
}

func TestMemoryReadWriteRoundtrip(t *testing.T) {
	m := NewMemory()
	m.Put("proj/a.py", []byte("x = 1\n"))

	data, err := m.ReadFile("proj/a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(data))

	assert.True(t, m.Exists("proj/a.py"))
	assert.True(t, m.Exists("proj"), "a directory implied by a file under it should exist")
	assert.False(t, m.Exists("proj/missing.py"))
}

func TestMemoryReadDirListsImmediateChildrenOnly(t *testing.T) {
	m := NewMemory()
	m.Put("proj/a.py", nil)
	m.Put("proj/sub/b.py", nil)

	entries, err := m.ReadDir("proj")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.py", entries[0].Name())
	assert.False(t, entries[0].IsDir())
	assert.Equal(t, "sub", entries[1].Name())
	assert.True(t, entries[1].IsDir())
}

func TestWalkFilesAppliesIncludeExcludeIgnoreAndExtensionFilter(t *testing.T) {
	m := NewMemory()
	m.Put("proj/a.py", nil)
	m.Put("proj/b.pyi", nil)
	m.Put("proj/skip.py", nil)
	m.Put("proj/readme.md", nil)
	m.Put("proj/.venv/dep.py", nil)

	out, err := WalkFiles(m, "proj", nil, []string{"**/skip.py"}, []string{"**/.venv/**"})
	require.NoError(t, err)
	assert.Equal(t, []string{"proj/a.py", "proj/b.pyi"}, out)
}

func TestWalkFilesHonorsExplicitInclude(t *testing.T) {
	m := NewMemory()
	m.Put("proj/src/a.py", nil)
	m.Put("proj/tests/b.py", nil)

	out, err := WalkFiles(m, "proj", []string{"**/src/**"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"proj/src/a.py"}, out)
}
