package langserver

import (
	"io/fs"
	"sync"

	"github.com/oxhq/pytype/internal/fsutil"
)

// overlayFS layers an editor's in-memory buffers (from didOpen/didChange)
// over the real disk, the same "prefer the live buffer, fall back to disk"
// shape an LSP server needs so Program never reads a stale on-disk copy of
// a file the editor has unsaved changes for.
type overlayFS struct {
	disk fsutil.Writable

	mu   sync.RWMutex
	open map[string][]byte
}

func newOverlayFS(disk fsutil.Writable) *overlayFS {
	return &overlayFS{disk: disk, open: make(map[string][]byte)}
}

func (o *overlayFS) Open(path string, content []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open[path] = content
}

func (o *overlayFS) Change(path string, content []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open[path] = content
}

func (o *overlayFS) Close(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.open, path)
}

func (o *overlayFS) ReadFile(path string) ([]byte, error) {
	o.mu.RLock()
	content, ok := o.open[path]
	o.mu.RUnlock()
	if ok {
		return content, nil
	}
	return o.disk.ReadFile(path)
}

func (o *overlayFS) Stat(path string) (fs.FileInfo, error) { return o.disk.Stat(path) }

func (o *overlayFS) ReadDir(path string) ([]fs.DirEntry, error) { return o.disk.ReadDir(path) }

func (o *overlayFS) Exists(path string) bool {
	o.mu.RLock()
	_, ok := o.open[path]
	o.mu.RUnlock()
	return ok || o.disk.Exists(path)
}
