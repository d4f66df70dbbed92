// Package resolver maps an import reference plus a "from file" context to a
// canonical on-disk path, following the precedence order spec.md §4.4
// mandates: local stub, typeshed/typing-stub packages, in-tree source,
// bundled fallback stubs, third-party installed packages.
package resolver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oxhq/pytype/internal/fsutil"
)

// ImportType classifies a resolution per spec.md §4.4.
type ImportType int

const (
	ImportLocal ImportType = iota
	ImportThirdParty
	ImportBuiltin
	ImportStdlib
)

// Roots names every search path the resolver consults, in the precedence
// order spec.md §4.4 fixes: local stub sibling, typeshed stub packages,
// in-tree source roots, a bundled fallback stub corpus, then third-party
// installed package roots.
type Roots struct {
	StubRoots       []string // typing stub packages declared in config
	TypeshedRoot    string
	SourceRoots     []string // in-tree search roots
	BundledStubRoot string
	ThirdPartyRoots []string // consulted only if UseThirdParty
	UseThirdParty   bool
}

// Resolution is the result of one resolve call (spec.md §4.4).
type Resolution struct {
	ResolvedPath       string
	Unresolved         bool
	IsStub             bool
	IsNamespacePackage bool
	// NamespaceDirs lists every contributing directory when
	// IsNamespacePackage is true (spec.md §4.4 "a synthetic module whose
	// symbols union across all contributing directories").
	NamespaceDirs []string
	ImportType    ImportType
}

// Reference is one import statement's target: module parts plus leading-dot
// count for relative imports (spec.md §4.4).
type Reference struct {
	Parts []string
	Level int // leading-dots count; 0 for absolute imports
}

type cacheKey struct {
	fromFile string
	ref      string
}

// Resolver is pure given a filesystem snapshot; results are memoized per
// (fromFile, reference) and invalidated by Invalidate (spec.md §4.4 "The
// resolver is pure given the file system snapshot; results are memoized ...
// and invalidated whenever the search-path configuration changes or any
// previously-probed path's existence flips").
type Resolver struct {
	fs    fsutil.FS
	roots Roots
	cache map[cacheKey]Resolution
}

func New(fs fsutil.FS, roots Roots) *Resolver {
	return &Resolver{fs: fs, roots: roots, cache: make(map[cacheKey]Resolution)}
}

// InvalidateAll drops every memoized resolution, used when the search-path
// configuration changes (spec.md §4.4).
func (r *Resolver) InvalidateAll() { r.cache = make(map[cacheKey]Resolution) }

// Invalidate drops memoized resolutions whose resolved path is path. The
// Program itself only calls InvalidateAll.
func (r *Resolver) Invalidate(path string) {
	for k, v := range r.cache {
		if v.ResolvedPath == path {
			delete(r.cache, k)
		}
	}
}

func refKey(ref Reference) string {
	return fmt.Sprintf("%d:%s", ref.Level, strings.Join(ref.Parts, "."))
}

// Resolve implements the precedence chain (spec.md §4.4 bullets 1-5).
func (r *Resolver) Resolve(fromFile string, ref Reference) Resolution {
	key := cacheKey{fromFile: fromFile, ref: refKey(ref)}
	if cached, ok := r.cache[key]; ok {
		return cached
	}
	res := r.resolveUncached(fromFile, ref)
	r.cache[key] = res
	return res
}

func (r *Resolver) resolveUncached(fromFile string, ref Reference) Resolution {
	if ref.Level > 0 {
		return r.resolveRelative(fromFile, ref)
	}
	if isBuiltinModule(ref.Parts) {
		return Resolution{ResolvedPath: "<builtins>", ImportType: ImportBuiltin}
	}

	rel := filepath.Join(ref.Parts...)

	// 1. Local stub file sibling to a same-named source file.
	for _, root := range r.roots.SourceRoots {
		stubPath := filepath.Join(root, rel+".pyi")
		if r.fs.Exists(stubPath) {
			return Resolution{ResolvedPath: stubPath, IsStub: true, ImportType: r.classify(stubPath)}
		}
	}

	// 2. Typing stub packages declared in config.
	for _, root := range r.roots.StubRoots {
		if res, ok := r.probeDir(root, rel, true); ok {
			return res
		}
	}
	if r.roots.TypeshedRoot != "" {
		if res, ok := r.probeDir(r.roots.TypeshedRoot, rel, true); ok {
			res.ImportType = ImportStdlib
			return res
		}
	}

	// 3. In-tree source file.
	for _, root := range r.roots.SourceRoots {
		if res, ok := r.probeDir(root, rel, false); ok {
			return res
		}
		if res, ok := r.probeNamespacePackage(root, rel); ok {
			return res
		}
	}

	// 4. Bundled fallback stub corpus.
	if r.roots.BundledStubRoot != "" {
		if res, ok := r.probeDir(r.roots.BundledStubRoot, rel, true); ok {
			return res
		}
	}

	// 5. Third-party installed packages, if configured to consult them.
	if r.roots.UseThirdParty {
		for _, root := range r.roots.ThirdPartyRoots {
			if res, ok := r.probeDir(root, rel, false); ok {
				res.ImportType = ImportThirdParty
				return res
			}
		}
	}

	return Resolution{Unresolved: true}
}

func (r *Resolver) probeDir(root, rel string, isStub bool) (Resolution, bool) {
	ext := ".py"
	if isStub {
		ext = ".pyi"
	}
	modPath := filepath.Join(root, rel+ext)
	if r.fs.Exists(modPath) {
		return Resolution{ResolvedPath: modPath, IsStub: isStub, ImportType: r.classify(modPath)}, true
	}
	initPath := filepath.Join(root, rel, "__init__"+ext)
	if r.fs.Exists(initPath) {
		return Resolution{ResolvedPath: initPath, IsStub: isStub, ImportType: r.classify(initPath)}, true
	}
	return Resolution{}, false
}

// probeNamespacePackage recognizes a directory with no __init__ file as a
// namespace package (spec.md §4.4 "Namespace packages (no __init__) are
// represented as a synthetic module whose symbols union across all
// contributing directories").
func (r *Resolver) probeNamespacePackage(root, rel string) (Resolution, bool) {
	dir := filepath.Join(root, rel)
	if !r.fs.Exists(dir) {
		return Resolution{}, false
	}
	entries, err := r.fs.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return Resolution{}, false
	}
	return Resolution{
		ResolvedPath:       dir,
		IsNamespacePackage: true,
		NamespaceDirs:      []string{dir},
		ImportType:         ImportLocal,
	}, true
}

// resolveRelative handles `from . import x` / `from ..pkg import y`. level
// dots climb from fromFile's containing package.
func (r *Resolver) resolveRelative(fromFile string, ref Reference) Resolution {
	dir := filepath.Dir(fromFile)
	for i := 1; i < ref.Level; i++ {
		dir = filepath.Dir(dir)
	}
	rel := filepath.Join(ref.Parts...)
	if res, ok := r.probeDir(dir, rel, true); ok {
		return res
	}
	if res, ok := r.probeDir(dir, rel, false); ok {
		return res
	}
	if res, ok := r.probeNamespacePackage(dir, rel); ok {
		return res
	}
	return Resolution{Unresolved: true}
}

func (r *Resolver) classify(path string) ImportType {
	if r.roots.TypeshedRoot != "" && strings.HasPrefix(path, r.roots.TypeshedRoot) {
		return ImportStdlib
	}
	for _, root := range r.roots.ThirdPartyRoots {
		if strings.HasPrefix(path, root) {
			return ImportThirdParty
		}
	}
	return ImportLocal
}

var builtinModules = map[string]bool{
	"builtins": true, "sys": true, "typing": true, "abc": true,
}

func isBuiltinModule(parts []string) bool {
	return len(parts) == 1 && builtinModules[parts[0]]
}
