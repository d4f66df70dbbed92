package langserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/fsutil"
)

func TestOverlayReadFilePrefersOpenBufferOverDisk(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("a.py", []byte("x = 1\n"))
	o := newOverlayFS(mem)

	o.Open("a.py", []byte("x = 2\n"))
	got, err := o.ReadFile("a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 2\n", string(got))
}

func TestOverlayReadFileFallsBackToDiskWhenNotOpen(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("a.py", []byte("x = 1\n"))
	o := newOverlayFS(mem)

	got, err := o.ReadFile("a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(got))
}

func TestOverlayChangeReplacesOpenBufferContent(t *testing.T) {
	mem := fsutil.NewMemory()
	o := newOverlayFS(mem)
	o.Open("a.py", []byte("x = 1\n"))
	o.Change("a.py", []byte("x = 3\n"))

	got, err := o.ReadFile("a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 3\n", string(got))
}

func TestOverlayCloseDropsTheOpenBuffer(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("a.py", []byte("x = 1\n"))
	o := newOverlayFS(mem)
	o.Open("a.py", []byte("x = 2\n"))
	o.Close("a.py")

	assert.True(t, o.Exists("a.py")) // still present on disk after the buffer closes
	got, err := o.ReadFile("a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(got))
}

func TestOverlayExistsTrueForOpenBufferNotOnDisk(t *testing.T) {
	mem := fsutil.NewMemory()
	o := newOverlayFS(mem)
	assert.False(t, o.Exists("new.py"))
	o.Open("new.py", []byte("x = 1\n"))
	assert.True(t, o.Exists("new.py"))
}
