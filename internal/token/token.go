package token

// Range is a byte-offset span plus its 1-based line/column start.
// End is exclusive.
type Range struct {
	Start, End     int
	StartLine, StartCol int
	EndLine, EndCol     int
}

// StringPayload carries a string/f-string literal's prefix, raw source text
// and escape-expanded value.
type StringPayload struct {
	Prefix   string // "", "r", "b", "u", "f", or a combination e.g. "rb"
	Raw      string // the literal source text, quotes included
	Value    string // escape-expanded value (meaningless for f-strings)
	IsFString bool
	IsRaw     bool
	IsBytes   bool
	Triple    bool // long (triple-quoted) form
}

// PragmaPayload carries the structured content of a `# type: ...` style
// comment recognized as a distinct token kind.
type PragmaPayload struct {
	Codes []string // for `# type: ignore[code1,code2]` / `# pyright: ignore[...]`
	Text  string    // for `# type: T` the raw type expression text
}

// Token is one lexical unit.
type Token struct {
	Kind  Kind
	Range Range
	Text  string // verbatim source text for the token

	Op    OpKind
	AugOp OpKind // base operator for an augmented-assignment operator token

	IntValue   int64
	FloatValue float64

	String *StringPayload
	Pragma *PragmaPayload
}

func (t Token) IsKeyword(word string) bool {
	return t.Kind == Keyword && t.Text == word
}
