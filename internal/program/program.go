// Package program implements the module-graph driver and cooperative
// scheduler described in spec.md §4.7: a single-threaded engine that does a
// bounded unit of work per Analyze call so it can be embedded in both a
// batch CLI and an LSP event loop (spec.md §5).
package program

import (
	"sort"

	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/evaluator"
	"github.com/oxhq/pytype/internal/fsutil"
	"github.com/oxhq/pytype/internal/resolver"
	"github.com/oxhq/pytype/internal/sourcefile"
	"github.com/oxhq/pytype/internal/syntax"
)

// Program owns every tracked SourceFile, keyed by canonical path, and never
// hands out direct cross-file references — only the path, looked up through
// Program (spec.md §9 "Graph ownership": "express imports/dependents as
// sets of those keys, never as direct references").
type Program struct {
	fs       fsutil.FS
	resolver *resolver.Resolver
	dialect  syntax.Dialect
	builtinsScope *binder.Scope
	builtins      *evaluator.Builtins

	files map[string]*sourcefile.SourceFile
	queue []string // tracked paths in insertion order, the scheduler's working set

	// dependents maps a module name to the set of file paths that import it,
	// used to find reverse dependencies on an edit (spec.md §4.7 "Incremental
	// re-check").
	dependents map[string]map[string]bool
}

// New constructs a Program. fs and res are injected so tests run against an
// in-memory fixture tree (spec.md §4.4, §5).
func New(fs fsutil.FS, res *resolver.Resolver, dialect syntax.Dialect) *Program {
	return &Program{
		fs:            fs,
		resolver:      res,
		dialect:       dialect,
		builtinsScope: binder.NewBuiltinsScope(),
		builtins:      evaluator.NewBuiltins(),
		files:         make(map[string]*sourcefile.SourceFile),
		dependents:    make(map[string]map[string]bool),
	}
}

// SetTrackedFiles installs the working set (spec.md §4.7 `setTrackedFiles`).
// Files no longer tracked are dropped; new ones are read from fs and start
// Unparsed.
func (p *Program) SetTrackedFiles(paths []string) error {
	wanted := make(map[string]bool, len(paths))
	for _, path := range paths {
		wanted[path] = true
		if _, ok := p.files[path]; ok {
			continue
		}
		content, err := p.fs.ReadFile(path)
		if err != nil {
			return err
		}
		p.files[path] = sourcefile.New(path, content)
	}
	for path := range p.files {
		if !wanted[path] {
			delete(p.files, path)
		}
	}
	p.queue = append(p.queue[:0], paths...)
	sort.Strings(p.queue)
	return nil
}

// MarkDirty implements spec.md §4.7 `markDirty`. A content change restarts
// the file at Unparsed by re-reading it from fs; dep/config changes move
// Checked files back to CheckDeferred.
func (p *Program) MarkDirty(path string, reason sourcefile.DirtyReason) error {
	sf, ok := p.files[path]
	if !ok {
		return nil
	}
	if reason == sourcefile.ContentChanged {
		content, err := p.fs.ReadFile(path)
		if err != nil {
			return err
		}
		sf.SetContent(content)
		p.markDependentsDirty(path)
		return nil
	}
	if reason == sourcefile.ConfigChanged {
		for _, f := range p.files {
			f.MarkDirty(sourcefile.ConfigChanged)
		}
		p.resolver.InvalidateAll()
		return nil
	}
	sf.MarkDirty(reason)
	return nil
}

// markDependentsDirty implements spec.md §4.7 scenario 5: files that
// imported a symbol from path move to CheckDeferred, keeping parse/bind
// artifacts, re-running only evaluation and checking.
func (p *Program) markDependentsDirty(path string) {
	sf, ok := p.files[path]
	if !ok {
		return
	}
	moduleName := moduleNameOf(sf.Path)
	for dep := range p.dependents[moduleName] {
		if dsf, ok := p.files[dep]; ok {
			dsf.MarkDirty(sourcefile.DepChanged)
		}
	}
}

// Analyze does one bounded unit of work and reports whether the queue is
// still non-empty (spec.md §4.7 `analyze(deadline) → moreWork?`). The
// scheduling policy is: parse any Unparsed file, else bind any Parsed file,
// else evaluate/check any Bound file whose direct dependencies are at
// least Bound.
func (p *Program) Analyze() (moreWork bool) {
	for _, want := range []sourcefile.State{sourcefile.Unparsed, sourcefile.Parsed, sourcefile.Bound} {
		for _, path := range p.queue {
			sf := p.files[path]
			if sf == nil || (sf.State != want && !(want == sourcefile.Bound && sf.State == sourcefile.CheckDeferred)) {
				continue
			}
			if want == sourcefile.Bound && !p.dependenciesAtLeastBound(sf) {
				continue
			}
			p.step(sf)
			return p.hasMoreWork()
		}
	}
	return false
}

// AnalyzeAll drives Analyze to completion, for batch/CLI use (spec.md §5
// "a CLI that runs the loop until completion").
func (p *Program) AnalyzeAll() {
	for p.Analyze() {
	}
}

func (p *Program) hasMoreWork() bool {
	for _, sf := range p.files {
		if sf.State != sourcefile.Checked {
			return true
		}
	}
	return false
}

func (p *Program) step(sf *sourcefile.SourceFile) {
	switch sf.State {
	case sourcefile.Unparsed:
		sf.Parse(p.dialect)
	case sourcefile.Parsed:
		sf.Bind(p.builtinsScope)
		p.registerDependencies(sf)
	case sourcefile.Bound, sourcefile.CheckDeferred:
		if !p.dependenciesAtLeastBound(sf) {
			return
		}
		sf.Evaluate(p.builtins)
		p.wireImports(sf)
		sf.Check()
	}
}

func (p *Program) registerDependencies(sf *sourcefile.SourceFile) {
	for _, mod := range sf.Imports {
		if p.dependents[mod] == nil {
			p.dependents[mod] = make(map[string]bool)
		}
		p.dependents[mod][sf.Path] = true
	}
}

// dependenciesAtLeastBound implements the cross-module cycle-breaking rule
// (spec.md §4.7: "permitting evaluation to read a still-binding dependency's
// top-level declarations ... while deferring any queries that require
// evaluator-computed types of that dependency"). A dependency that the
// resolver cannot resolve at all does not block evaluation; it simply
// degrades to Unknown (spec.md §4.5 failure model).
func (p *Program) dependenciesAtLeastBound(sf *sourcefile.SourceFile) bool {
	for _, mod := range sf.Imports {
		dep := p.findTrackedModule(mod)
		if dep == nil {
			continue
		}
		if dep.State == sourcefile.Unparsed || dep.State == sourcefile.Parsed {
			return false
		}
	}
	return true
}

// wireImports connects sf's Evaluator.Imports to every dependency module's
// exported scope/evaluator (spec.md §4.5 "cross-module lookups go through
// Imports, supplied by the Program").
func (p *Program) wireImports(sf *sourcefile.SourceFile) {
	for _, mod := range sf.Imports {
		dep := p.findTrackedModule(mod)
		if dep == nil || dep.Bound == nil {
			continue
		}
		sf.Eval.Imports[mod] = &evaluator.ModuleExports{Scope: dep.Bound.ModuleScope, Eval: dep.Eval}
	}
}

func (p *Program) findTrackedModule(name string) *sourcefile.SourceFile {
	for _, sf := range p.files {
		if moduleNameOf(sf.Path) == name {
			return sf
		}
	}
	return nil
}

func moduleNameOf(path string) string {
	base := path
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}

// Diagnostics returns path's accumulated diagnostics, empty if not yet
// Checked (spec.md §4.7 `getDiagnostics(path)`).
func (p *Program) Diagnostics(path string) []diagnostic.Diagnostic {
	sf, ok := p.files[path]
	if !ok {
		return nil
	}
	return sf.Diagnostics
}

// File exposes a tracked SourceFile for language-service queries (spec.md
// §4.7 "hover/gotoDefinition/completion ... may trigger on-demand
// evaluation for the touched file and its direct dependencies but never
// force full-program analysis").
func (p *Program) File(path string) (*sourcefile.SourceFile, bool) {
	sf, ok := p.files[path]
	return sf, ok
}

// EnsureChecked drives just path to Checked, without touching the rest of
// the program (spec.md §4.7 "never force full-program analysis"). It does
// not step path's dependencies: when one of them is not yet Bound, it
// returns with path still short of Checked.
func (p *Program) EnsureChecked(path string) {
	sf, ok := p.files[path]
	if !ok {
		return
	}
	for sf.State != sourcefile.Checked {
		before := sf.State
		p.step(sf)
		if sf.State == before {
			break // blocked on a dependency; caller may retry after driving it
		}
	}
}
