// Package sourcefile implements the per-file state machine the Program
// schedules work against (spec.md §3 "SourceFile state", §4.7).
package sourcefile

import (
	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/checker"
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/evaluator"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/token"
)

// State is one of the five pipeline stages a file can be in (spec.md §4.7
// scheduling policy: "parse any Unparsed ... bind any Parsed ... evaluate/
// check any Bound file").
type State int

const (
	Unparsed State = iota
	Parsed
	Bound
	CheckDeferred // re-entered from Checked on an edit to a dependency, not this file
	Checked
)

func (s State) String() string {
	switch s {
	case Unparsed:
		return "unparsed"
	case Parsed:
		return "parsed"
	case Bound:
		return "bound"
	case CheckDeferred:
		return "check-deferred"
	case Checked:
		return "checked"
	default:
		return "unknown"
	}
}

// DirtyReason records why a file was marked dirty (spec.md §4.7
// `markDirty(path, reason)`).
type DirtyReason int

const (
	ContentChanged DirtyReason = iota
	DepChanged
	ConfigChanged
)

// SourceFile tracks one tracked file's pipeline artifacts. Artifacts from
// earlier stages are retained as later stages complete (spec.md §5 "parse
// tree and bind artifacts are retained"); only the token stream is dropped
// after binding to bound it bounds peak memory (spec.md §5 "A SourceFile
// may drop its token stream after binding").
type SourceFile struct {
	Path    string
	State   State
	Content []byte

	tokens []token.Token

	Module      *syntax.Node
	ParentIndex *syntax.ParentIndex
	ParseDiags  []diagnostic.Diagnostic

	Bound *binder.BoundModule
	Eval  *evaluator.Evaluator

	Diagnostics []diagnostic.Diagnostic

	// Imports is the set of module names this file references, filled in
	// during binding by scanning Import/ImportFrom statements; the Program
	// consults it to build the module graph (spec.md §4.7 "module graph").
	Imports []string

	// ContentHash is recomputed on every content assignment; used both by
	// the reverse-dependency scheduler and the persistent cache key (spec.md
	// §4.8 "hash(toolVersion || configHash || contentHash)").
	ContentHash string
}

// New creates a SourceFile in the Unparsed state for path with the given
// initial content.
func New(path string, content []byte) *SourceFile {
	sf := &SourceFile{Path: path, State: Unparsed}
	sf.SetContent(content)
	return sf
}

// SetContent replaces the file's text and resets it to Unparsed, discarding
// every downstream artifact (spec.md §4.7 "a content edit marks the edited
// file Unparsed").
func (sf *SourceFile) SetContent(content []byte) {
	sf.Content = content
	sf.ContentHash = hashContent(content)
	sf.State = Unparsed
	sf.tokens = nil
	sf.Module = nil
	sf.ParentIndex = nil
	sf.ParseDiags = nil
	sf.Bound = nil
	sf.Eval = nil
	sf.Diagnostics = nil
	sf.Imports = nil
}

// MarkDirty transitions sf in response to an edit or dependency change
// (spec.md §4.7). ContentChanged always restarts from Unparsed.
// DepChanged/ConfigChanged move a Checked file back to CheckDeferred,
// keeping its parse/bind artifacts intact (spec.md §4.7 "keep their
// parse/bind artifacts and only re-run evaluation and checking").
func (sf *SourceFile) MarkDirty(reason DirtyReason) {
	switch reason {
	case ContentChanged:
		sf.SetContent(sf.Content)
	case DepChanged, ConfigChanged:
		if sf.State == Checked {
			sf.State = CheckDeferred
		}
	}
}

// Parse runs the tokenizer and parser, recording results and advancing to
// Parsed regardless of whether diagnostics were produced (spec.md §4.1-4.2;
// recovery inserts Error nodes rather than failing the whole file).
func (sf *SourceFile) Parse(dialect syntax.Dialect) {
	toks, _, lexDiags := token.Tokenize(sf.Path, sf.Content)
	sf.tokens = toks
	module, parseDiags, _ := syntax.Parse(sf.Path, toks, dialect)
	sf.Module = module
	sf.ParentIndex = syntax.BuildParentIndex(module)
	sf.ParseDiags = append(append([]diagnostic.Diagnostic(nil), lexDiags...), parseDiags...)
	sf.State = Parsed
}

// Bind runs the binder against the parsed tree and advances to Bound. It
// also extracts this file's import references for the Program's module
// graph (spec.md §4.7).
func (sf *SourceFile) Bind(builtins *binder.Scope) {
	sf.Bound = binder.Bind(sf.Path, sf.Module, builtins)
	sf.Imports = collectImports(sf.Module)
	sf.tokens = nil // spec.md §5: drop the token stream once bound
	sf.State = Bound
}

// Evaluate constructs this file's Evaluator. Called once dependencies are
// at least Bound (spec.md §4.7 scheduling policy item 3); cross-module name
// resolution is wired in separately by the Program via Eval.Imports.
func (sf *SourceFile) Evaluate(builtins *evaluator.Builtins) {
	sf.Eval = evaluator.New(sf.Path, sf.Bound, builtins)
}

// Check runs every expression through the evaluator to populate its
// diagnostic cache, adds the checker package's rule-level diagnostics by
// calling it over sf.Eval, then advances to Checked.
func (sf *SourceFile) Check() {
	syntax.Walk(sf.Module, func(n *syntax.Node) {
		sf.Eval.GetType(n)
	})
	sf.Diagnostics = append(append([]diagnostic.Diagnostic(nil), sf.ParseDiags...), sf.Bound.Diagnostics...)
	sf.Diagnostics = append(sf.Diagnostics, sf.Eval.Diagnostics()...)
	sf.Diagnostics = append(sf.Diagnostics, checker.Check(sf.Path, sf.Module, sf.Bound, sf.Eval)...)
	sf.State = Checked
}

func collectImports(module *syntax.Node) []string {
	var out []string
	syntax.Walk(module, func(n *syntax.Node) {
		switch n.Kind {
		case syntax.KImport:
			for _, alias := range n.Names {
				if len(alias.ModuleParts) > 0 {
					out = append(out, alias.ModuleParts[0])
				}
			}
		case syntax.KImportFrom:
			if len(n.ModuleParts) > 0 {
				out = append(out, n.ModuleParts[0])
			}
		}
	})
	return out
}

func hashContent(content []byte) string {
	h := fnv64a(content)
	return uint64ToHex(h)
}

// fnv64a is a tiny non-cryptographic content hash; the cache key (spec.md
// §4.8) only needs change-detection, not collision resistance against an
// adversary.
func fnv64a(data []byte) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, b := range data {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

func uint64ToHex(v uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf)
}
