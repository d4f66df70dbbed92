package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/fsutil"
)

func TestResolveBuiltinModuleShortCircuits(t *testing.T) {
	r := New(fsutil.NewMemory(), Roots{})
	res := r.Resolve("proj/a.py", Reference{Parts: []string{"sys"}})
	assert.Equal(t, "<builtins>", res.ResolvedPath)
	assert.Equal(t, ImportBuiltin, res.ImportType)
}

func TestResolveLocalStubSiblingBeatsSourceFile(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("proj/pkg/mod.py", nil)
	mem.Put("proj/pkg/mod.pyi", nil)
	r := New(mem, Roots{SourceRoots: []string{"proj"}})

	res := r.Resolve("proj/main.py", Reference{Parts: []string{"pkg", "mod"}})
	assert.Equal(t, "proj/pkg/mod.pyi", res.ResolvedPath)
	assert.True(t, res.IsStub)
	assert.Equal(t, ImportLocal, res.ImportType)
}

func TestResolveStubRootsBeatTypeshed(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("stubs/requests.pyi", nil)
	mem.Put("typeshed/requests.pyi", nil)
	r := New(mem, Roots{StubRoots: []string{"stubs"}, TypeshedRoot: "typeshed"})

	res := r.Resolve("proj/main.py", Reference{Parts: []string{"requests"}})
	assert.Equal(t, "stubs/requests.pyi", res.ResolvedPath)
	assert.True(t, res.IsStub)
}

func TestResolveTypeshedClassifiesAsStdlib(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("typeshed/os.pyi", nil)
	r := New(mem, Roots{TypeshedRoot: "typeshed"})

	res := r.Resolve("proj/main.py", Reference{Parts: []string{"os"}})
	assert.Equal(t, "typeshed/os.pyi", res.ResolvedPath)
	assert.Equal(t, ImportStdlib, res.ImportType)
}

func TestResolveInTreeSourceFileAndPackageInit(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("proj/util.py", nil)
	mem.Put("proj/pkg/__init__.py", nil)
	r := New(mem, Roots{SourceRoots: []string{"proj"}})

	res := r.Resolve("proj/main.py", Reference{Parts: []string{"util"}})
	assert.Equal(t, "proj/util.py", res.ResolvedPath)
	assert.False(t, res.IsStub)
	assert.Equal(t, ImportLocal, res.ImportType)

	res = r.Resolve("proj/main.py", Reference{Parts: []string{"pkg"}})
	assert.Equal(t, "proj/pkg/__init__.py", res.ResolvedPath)
}

func TestResolveNamespacePackageWhenNoInitFile(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("proj/ns/mod.py", nil)
	r := New(mem, Roots{SourceRoots: []string{"proj"}})

	res := r.Resolve("proj/main.py", Reference{Parts: []string{"ns"}})
	assert.True(t, res.IsNamespacePackage)
	assert.Equal(t, []string{"proj/ns"}, res.NamespaceDirs)
	assert.Equal(t, ImportLocal, res.ImportType)
}

func TestResolveBundledStubFallback(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("bundled/requests.pyi", nil)
	r := New(mem, Roots{SourceRoots: []string{"proj"}, BundledStubRoot: "bundled"})

	res := r.Resolve("proj/main.py", Reference{Parts: []string{"requests"}})
	assert.Equal(t, "bundled/requests.pyi", res.ResolvedPath)
	assert.True(t, res.IsStub)
}

func TestResolveThirdPartyOnlyWhenEnabled(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("site-packages/numpy.py", nil)
	r := New(mem, Roots{SourceRoots: []string{"proj"}, ThirdPartyRoots: []string{"site-packages"}})

	res := r.Resolve("proj/main.py", Reference{Parts: []string{"numpy"}})
	assert.True(t, res.Unresolved, "third-party roots must not be consulted when UseThirdParty is false")

	r2 := New(mem, Roots{SourceRoots: []string{"proj"}, ThirdPartyRoots: []string{"site-packages"}, UseThirdParty: true})
	res2 := r2.Resolve("proj/main.py", Reference{Parts: []string{"numpy"}})
	assert.Equal(t, "site-packages/numpy.py", res2.ResolvedPath)
	assert.Equal(t, ImportThirdParty, res2.ImportType)
}

func TestResolveUnresolvedWhenNothingMatches(t *testing.T) {
	r := New(fsutil.NewMemory(), Roots{SourceRoots: []string{"proj"}})
	res := r.Resolve("proj/main.py", Reference{Parts: []string{"missing"}})
	assert.True(t, res.Unresolved)
}

func TestResolveRelativeImportClimbsByLevel(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("proj/pkg/sub/sibling.py", nil)
	mem.Put("proj/pkg/cousin.py", nil)
	r := New(mem, Roots{SourceRoots: []string{"proj"}})

	res := r.Resolve("proj/pkg/sub/mod.py", Reference{Parts: []string{"sibling"}, Level: 1})
	assert.Equal(t, "proj/pkg/sub/sibling.py", res.ResolvedPath)

	res = r.Resolve("proj/pkg/sub/mod.py", Reference{Parts: []string{"cousin"}, Level: 2})
	assert.Equal(t, "proj/pkg/cousin.py", res.ResolvedPath)
}

func TestResolveMemoizesPerFromFileAndReference(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("proj/util.py", nil)
	r := New(mem, Roots{SourceRoots: []string{"proj"}})

	first := r.Resolve("proj/main.py", Reference{Parts: []string{"util"}})
	require.Len(t, r.cache, 1)

	delete(mem.Files, "proj/util.py")
	second := r.Resolve("proj/main.py", Reference{Parts: []string{"util"}})
	assert.Equal(t, first, second, "a cached resolution must not reflect a later filesystem change until invalidated")
}

func TestInvalidateDropsOnlyMatchingResolvedPath(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("proj/a.py", nil)
	mem.Put("proj/b.py", nil)
	r := New(mem, Roots{SourceRoots: []string{"proj"}})

	r.Resolve("proj/main.py", Reference{Parts: []string{"a"}})
	r.Resolve("proj/main.py", Reference{Parts: []string{"b"}})
	require.Len(t, r.cache, 2)

	r.Invalidate("proj/a.py")
	assert.Len(t, r.cache, 1)

	delete(mem.Files, "proj/a.py")
	res := r.Resolve("proj/main.py", Reference{Parts: []string{"a"}})
	assert.True(t, res.Unresolved, "invalidated entry must be re-probed against current filesystem state")
}

func TestInvalidateAllClearsEntireCache(t *testing.T) {
	mem := fsutil.NewMemory()
	mem.Put("proj/a.py", nil)
	r := New(mem, Roots{SourceRoots: []string{"proj"}})

	r.Resolve("proj/main.py", Reference{Parts: []string{"a"}})
	require.Len(t, r.cache, 1)

	r.InvalidateAll()
	assert.Len(t, r.cache, 0)
}
