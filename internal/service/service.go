// Package service is the outer facade spec.md §2 assigns ~3% of the system
// to: config loading, the file-watch bridge, and batching edits into
// program updates. It owns nothing the Program doesn't already own —
// Service only decides *when* to call Program.SetTrackedFiles/MarkDirty/
// Analyze.
package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oxhq/pytype/internal/config"
	"github.com/oxhq/pytype/internal/fsutil"
	"github.com/oxhq/pytype/internal/program"
	"github.com/oxhq/pytype/internal/sourcefile"
)

// Service wires a loaded Config to a running Program, optionally bridging
// filesystem change events into Program.MarkDirty calls for `--watch`
// (spec.md §6). The watch loop is grounded on the teacher corpus's own
// fsnotify-based watcher shape (a debounced event channel feeding a single
// reindex/re-analyze call), not on anything in the teacher repo itself,
// which has no watch mode.
type Service struct {
	cfg  *config.Config
	prog *program.Program

	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
	running bool
	stopCh  chan struct{}

	// OnDirty is invoked (if non-nil) after each debounced batch of edits is
	// applied to the Program, so an embedder (the LSP host) can push fresh
	// diagnostics without polling.
	OnDirty func(paths []string)
}

// New constructs a Service bound to an already-configured Program.
func New(cfg *config.Config, prog *program.Program) *Service {
	return &Service{
		cfg:      cfg,
		prog:     prog,
		debounce: 150 * time.Millisecond,
		pending:  make(map[string]time.Time),
	}
}

// LoadTrackedFiles walks cfg's include/exclude/ignore globs under root and
// installs the result as the Program's working set (spec.md §4.7
// `setTrackedFiles`).
func (s *Service) LoadTrackedFiles(fs fsutil.FS, root string) ([]string, error) {
	files, err := fsutil.WalkFiles(fs, root, s.cfg.Include, s.cfg.Exclude, s.cfg.Ignore)
	if err != nil {
		return nil, fmt.Errorf("service: walking %s: %w", root, err)
	}
	if err := s.prog.SetTrackedFiles(files); err != nil {
		return nil, fmt.Errorf("service: tracking files: %w", err)
	}
	return files, nil
}

// Watch starts an fsnotify-backed bridge: file writes under any of roots are
// debounced and turned into Program.MarkDirty(path, ContentChanged) calls,
// batched per debounce window (spec.md §6 `--watch`). Events are kept for
// `.py`/`.pyi` files only; cfg's ignore globs prune the watched
// directories, and its include/exclude globs are not applied to events.
func (s *Service) Watch(roots []string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("service: create watcher: %w", err)
	}
	s.watcher = w
	s.stopCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	for _, root := range roots {
		if err := addTreeToWatcher(w, root, s.cfg.Ignore); err != nil {
			return fmt.Errorf("service: watch %s: %w", root, err)
		}
	}

	go s.processEvents()
	go s.processDebounced()
	return nil
}

// Stop tears down the watch bridge; a no-op if Watch was never called.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	return s.watcher.Close()
}

func addTreeToWatcher(w *fsnotify.Watcher, root string, ignore []string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if fsutil.Glob(ignore, path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func (s *Service) processEvents() {
	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isTrackedExt(event.Name) {
				continue
			}
			s.mu.Lock()
			s.pending[event.Name] = time.Now()
			s.mu.Unlock()
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func isTrackedExt(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".py" || ext == ".pyi"
}

func (s *Service) processDebounced() {
	ticker := time.NewTicker(s.debounce)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.flushPending()
		}
	}
}

func (s *Service) flushPending() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	cutoff := time.Now().Add(-s.debounce)
	var ready []string
	for path, seen := range s.pending {
		if seen.Before(cutoff) {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(s.pending, path)
	}
	s.mu.Unlock()

	if len(ready) == 0 {
		return
	}
	for _, path := range ready {
		s.prog.MarkDirty(path, sourcefile.ContentChanged)
	}
	s.prog.AnalyzeAll()
	if s.OnDirty != nil {
		s.OnDirty(ready)
	}
}
