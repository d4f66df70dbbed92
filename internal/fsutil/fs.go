// Package fsutil provides the filesystem abstraction every path-touching
// component (import resolver, program driver, cache, stub writer) is built
// against, so tests run over an in-memory fixture tree instead of real disk
// (spec.md §4.4 "injected filesystem abstraction", §5 "File I/O is
// synchronous from the core's perspective (fed through an injected
// filesystem abstraction ...)"). Grounded on the teacher's core.FileWalker,
// which keeps directory traversal decoupled from direct os calls.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// FS is the minimal surface the core needs from a filesystem: existence
// checks, reads, and directory listing. Real usage is backed by OS; tests
// use Memory.
type FS interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
	ReadDir(path string) ([]fs.DirEntry, error)
	Exists(path string) bool
}

// Writable is implemented by filesystems that also support the atomic
// write pattern the stub writer and quick-action writer need.
type Writable interface {
	FS
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error
}

// OS is the real-disk FS implementation used by cmd/pytype and cmd/pytype-ls.
type OS struct{}

func (OS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

func (OS) ReadDir(path string) ([]fs.DirEntry, error) { return os.ReadDir(path) }

func (OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteFileAtomic writes via temp-file-plus-rename so a crash mid-write
// never corrupts the target (spec.md §4.8 "Concurrent processes coordinate
// by writing atomically (temp file + rename)"; SPEC_FULL.md §4.10.F quick
// actions reuse the same durability property).
func (OS) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".pytype-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}

// Glob matches name against any pattern in patterns using doublestar
// (`**` recursive matching), mirroring the teacher's FileWalker include/
// exclude filtering (SPEC_FULL.md §4.4.F).
func Glob(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, filepath.ToSlash(name)); ok {
			return true
		}
	}
	return false
}

// WalkFiles lists every regular file reachable from root, in deterministic
// (sorted) order, applying include/exclude/ignore glob sets the way
// spec.md §6's `include`/`exclude`/`ignore` config options are unioned and
// differenced.
func WalkFiles(f FS, root string, include, exclude, ignore []string) ([]string, error) {
	var out []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := f.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", dir, err)
		}
		names := make([]string, 0, len(entries))
		byName := map[string]fs.DirEntry{}
		for _, e := range entries {
			names = append(names, e.Name())
			byName[e.Name()] = e
		}
		sort.Strings(names)
		for _, name := range names {
			e := byName[name]
			full := filepath.Join(dir, name)
			if Glob(ignore, full) {
				continue
			}
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			if len(include) > 0 && !Glob(include, full) {
				continue
			}
			if Glob(exclude, full) {
				continue
			}
			if !strings.HasSuffix(name, ".py") && !strings.HasSuffix(name, ".pyi") {
				continue
			}
			out = append(out, full)
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

// Memory is an in-memory FS fixture for tests (spec.md §4.4, SPEC_FULL.md
// §4.4.F "tests run against an in-memory fixture tree instead of real
// disk").
type Memory struct {
	Files map[string][]byte
	mtimes map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{Files: make(map[string][]byte), mtimes: make(map[string]time.Time)}
}

func (m *Memory) Put(path string, data []byte) {
	m.Files[path] = data
	m.mtimes[path] = time.Now()
}

func (m *Memory) ReadFile(path string) ([]byte, error) {
	data, ok := m.Files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return data, nil
}

func (m *Memory) Stat(path string) (fs.FileInfo, error) {
	data, ok := m.Files[path]
	if !ok {
		if m.hasDirPrefix(path) {
			return memDirInfo{name: filepath.Base(path)}, nil
		}
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return memFileInfo{name: filepath.Base(path), size: int64(len(data)), mtime: m.mtimes[path]}, nil
}

func (m *Memory) hasDirPrefix(dir string) bool {
	prefix := dir
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	for p := range m.Files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (m *Memory) ReadDir(dir string) ([]fs.DirEntry, error) {
	prefix := dir
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	seen := map[string]bool{}
	var out []fs.DirEntry
	for p := range m.Files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		parts := strings.SplitN(rest, "/", 2)
		name := parts[0]
		if seen[name] {
			continue
		}
		seen[name] = true
		isDir := len(parts) > 1
		out = append(out, memDirEntry{name: name, isDir: isDir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (m *Memory) Exists(path string) bool {
	if _, ok := m.Files[path]; ok {
		return true
	}
	return m.hasDirPrefix(path)
}

func (m *Memory) WriteFileAtomic(path string, data []byte, _ os.FileMode) error {
	m.Put(path, data)
	return nil
}

type memFileInfo struct {
	name  string
	size  int64
	mtime time.Time
}

func (i memFileInfo) Name() string       { return i.name }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() fs.FileMode  { return 0o644 }
func (i memFileInfo) ModTime() time.Time { return i.mtime }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() any           { return nil }

type memDirInfo struct{ name string }

func (i memDirInfo) Name() string       { return i.name }
func (i memDirInfo) Size() int64        { return 0 }
func (i memDirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o755 }
func (i memDirInfo) ModTime() time.Time { return time.Time{} }
func (i memDirInfo) IsDir() bool        { return true }
func (i memDirInfo) Sys() any           { return nil }

type memDirEntry struct {
	name  string
	isDir bool
}

func (e memDirEntry) Name() string { return e.name }
func (e memDirEntry) IsDir() bool  { return e.isDir }
func (e memDirEntry) Type() fs.FileMode {
	if e.isDir {
		return fs.ModeDir
	}
	return 0
}
func (e memDirEntry) Info() (fs.FileInfo, error) {
	if e.isDir {
		return memDirInfo{name: e.name}, nil
	}
	return memFileInfo{name: e.name}, nil
}
