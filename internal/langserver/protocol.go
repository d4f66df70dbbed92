package langserver

import "github.com/oxhq/pytype/internal/diagnostic"

// Range is the wire range shape (spec.md §5 JSON-RPC query surface), reused
// from internal/diagnostic so hover/definition/etc. report positions the
// same way diagnostics do.
type Range = diagnostic.RangeJSON

// Location pairs a file with a range, the shape gotoDefinition/references
// return (LSP's textDocument/definition and textDocument/references).
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// Hover is the shape textDocument/hover returns: rendered type/signature
// text plus the range of the symbol it describes.
type Hover struct {
	Contents string `json:"contents"`
	Range    Range  `json:"range"`
}

// DocumentSymbol is one entry of textDocument/documentSymbol's flat list
// (spec.md §5 "documentSymbols"); nested via Children the way class members
// sit under their class.
type DocumentSymbol struct {
	Name     string           `json:"name"`
	Kind     string           `json:"kind"`
	Range    Range            `json:"range"`
	Children []DocumentSymbol `json:"children,omitempty"`
}

// CompletionItem is one entry of textDocument/completion's result list.
type CompletionItem struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
	Kind   string `json:"kind"`
}

// SignatureHelp is textDocument/signatureHelp's result: the active call's
// rendered signature plus which parameter the cursor is over.
type SignatureHelp struct {
	Label          string   `json:"label"`
	Parameters     []string `json:"parameters"`
	ActiveParameter int     `json:"activeParameter"`
}

// TextEdit is one replacement within a WorkspaceEdit (LSP shape), reusing
// the same Range the rest of the query surface returns.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// WorkspaceEdit maps a file URI to the edits textDocument/rename or a quick
// action (organizeImports/addOptionalAnnotation) produces; createStub does
// not go through a WorkspaceEdit.
type WorkspaceEdit struct {
	Changes map[string][]TextEdit `json:"changes"`
}
