package langserver

import (
	"github.com/oxhq/pytype/internal/binder"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/token"
)

// Position is the wire (0-based line/character) shape every LSP request and
// response uses (spec.md §5 query surface), matching diagnostic.Position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func before(a, b Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

// contains reports whether pos falls within r, converting r's 1-based
// line/col fields to the 0-based wire convention at the comparison site
// rather than threading a second range type through the tree.
func contains(r token.Range, pos Position) bool {
	start := Position{Line: r.StartLine - 1, Character: r.StartCol - 1}
	end := Position{Line: r.EndLine - 1, Character: r.EndCol - 1}
	return !before(pos, start) && before(pos, end)
}

// findNameAt returns the innermost KName node whose range contains pos, or
// nil if the cursor isn't over an identifier.
func findNameAt(module *syntax.Node, pos Position) *syntax.Node {
	var found *syntax.Node
	syntax.Walk(module, func(n *syntax.Node) {
		if n.Kind != syntax.KName || !contains(n.Range, pos) {
			return
		}
		if found == nil || narrower(n.Range, found.Range) {
			found = n
		}
	})
	return found
}

// findNodeAt returns the innermost node of any kind containing pos, used by
// CodeAction to locate the parameter under the cursor.
func findNodeAt(module *syntax.Node, pos Position) *syntax.Node {
	var found *syntax.Node
	syntax.Walk(module, func(n *syntax.Node) {
		if !contains(n.Range, pos) {
			return
		}
		if found == nil || narrower(n.Range, found.Range) {
			found = n
		}
	})
	return found
}

func narrower(a, b token.Range) bool {
	widthA := (a.EndLine-a.StartLine)*100000 + (a.EndCol - a.StartCol)
	widthB := (b.EndLine-b.StartLine)*100000 + (b.EndCol - b.StartCol)
	return widthA < widthB
}

// enclosingScope finds the innermost Def/Lambda/Comprehension scope whose
// defining node contains pos (spec.md §4.3 scope nesting), falling back to
// the module scope for a position outside any nested scope. bound.Scopes
// only records scope-introducing nodes, so this is a full-tree scan rather
// than a pruned descent — acceptable for a per-request LSP query, which
// touches one file at a time, not the whole program.
func enclosingScope(module *syntax.Node, bound *binder.BoundModule, pos Position) *binder.Scope {
	best := bound.ModuleScope
	bestRange := module.Range
	syntax.Walk(module, func(n *syntax.Node) {
		s, ok := bound.Scopes[n.ID]
		if !ok || !contains(n.Range, pos) {
			return
		}
		if narrower(n.Range, bestRange) {
			best = s
			bestRange = n.Range
		}
	})
	return best
}
