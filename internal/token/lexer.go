package token

import (
	"strconv"
	"strings"

	"github.com/oxhq/pytype/internal/diagnostic"
)

// Lexer converts source text into a token stream. Contract per spec.md
// §4.1: Tokenize never aborts; unterminated strings or illegal characters
// produce a diagnostic plus a stub Error token so the parser can continue.
type Lexer struct {
	file string
	src  []byte

	pos  int
	line int // 1-based
	col  int // 1-based

	indentStack []int
	parenDepth  int // implicit line-continuation inside brackets
	atLineStart bool

	lineOffsets []int
	diags       diagnostic.Bag
}

// LineOffsets reports the byte offset of line i+1, per spec.md §4.1.
func LineOffsets(src []byte) []int {
	offsets := []int{0}
	for i, b := range src {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// Tokenize runs the full lexer over source text, per the
// `tokenize(text) -> (tokens, lineOffsets, diagnostics)` contract.
func Tokenize(file string, src []byte) ([]Token, []int, []diagnostic.Diagnostic) {
	l := &Lexer{
		file:        file,
		src:         src,
		line:        1,
		col:         1,
		indentStack: []int{0},
		atLineStart: true,
		lineOffsets: LineOffsets(src),
	}
	toks := l.run()
	return toks, l.lineOffsets, l.diags.All()
}

func (l *Lexer) run() []Token {
	var out []Token
	for {
		if l.atLineStart && l.parenDepth == 0 {
			out = append(out, l.handleIndentation()...)
			if l.pos >= len(l.src) {
				break
			}
		}
		tok, ok := l.next()
		if !ok {
			break
		}
		if tok.Kind == Newline && l.parenDepth > 0 {
			// implicit continuation inside brackets: suppress the newline token
			continue
		}
		out = append(out, tok)
	}
	for i := len(l.indentStack) - 1; i > 0; i-- {
		out = append(out, l.mk(Dedent, l.pos, l.pos))
	}
	out = append(out, l.mk(EOF, l.pos, l.pos))
	return out
}

// handleIndentation measures leading whitespace at a line start (tabs
// expand to 8-space stops for the comparison only, per spec.md §4.1) and
// emits Indent/Dedent tokens. Blank lines and comment-only lines produce no
// indent change.
func (l *Lexer) handleIndentation() []Token {
	start := l.pos
	width := 0
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ':
			width++
			l.advance()
			continue
		case '\t':
			width += 8 - (width % 8)
			l.advance()
			continue
		}
		break
	}
	l.atLineStart = false

	if l.pos >= len(l.src) {
		return nil
	}
	// Blank line or comment-only line: no indent change, consumed by next().
	if l.src[l.pos] == '\n' || l.src[l.pos] == '#' || l.src[l.pos] == '\r' {
		return nil
	}

	cur := l.indentStack[len(l.indentStack)-1]
	var out []Token
	if width > cur {
		l.indentStack = append(l.indentStack, width)
		out = append(out, l.mk(Indent, start, l.pos))
	} else {
		for width < l.indentStack[len(l.indentStack)-1] {
			l.indentStack = l.indentStack[:len(l.indentStack)-1]
			out = append(out, l.mk(Dedent, start, l.pos))
		}
		if width != l.indentStack[len(l.indentStack)-1] {
			l.diags.Addf(l.file, l.rangeAt(start, l.pos), diagnostic.RuleSyntaxError,
				"unindent does not match any outer indentation level")
		}
	}
	return out
}

func (l *Lexer) advance() {
	if l.pos >= len(l.src) {
		return
	}
	if l.src[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) mk(k Kind, start, end int) Token {
	r := l.rangeAt(start, end)
	return Token{Kind: k, Range: r, Text: string(l.src[start:end])}
}

func (l *Lexer) rangeAt(start, end int) tokenRangeT {
	sl, sc := l.posAt(start)
	el, ec := l.posAt(end)
	return Range{Start: start, End: end, StartLine: sl, StartCol: sc, EndLine: el, EndCol: ec}
}

type tokenRangeT = Range

func (l *Lexer) posAt(offset int) (line, col int) {
	// binary-search-free linear scan is fine: callers operate on the token
	// they just scanned, so offset is always near l.pos's last value.
	line = 1
	lastNL := -1
	for i := 0; i < offset && i < len(l.src); i++ {
		if l.src[i] == '\n' {
			line++
			lastNL = i
		}
	}
	col = offset - lastNL
	return line, col
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

// next scans exactly one token starting at l.pos, skipping spaces/tabs and
// backslash line continuations first.
func (l *Lexer) next() (Token, bool) {
	for {
		c := l.peek()
		if c == ' ' || c == '\t' || c == '\r' {
			l.advance()
			continue
		}
		if c == '\\' && l.peekAt(1) == '\n' {
			l.advance()
			l.advance()
			continue
		}
		break
	}

	if l.pos >= len(l.src) {
		return Token{}, false
	}

	start := l.pos
	c := l.peek()

	switch {
	case c == '\n':
		l.advance()
		l.atLineStart = true
		return l.mk(Newline, start, l.pos), true
	case c == '#':
		return l.scanComment(start), true
	case isIdentStart(c):
		return l.scanIdentOrStringPrefix(start), true
	case c >= '0' && c <= '9':
		return l.scanNumber(start), true
	case c == '.' && l.peekAt(1) >= '0' && l.peekAt(1) <= '9':
		return l.scanNumber(start), true
	case c == '"' || c == '\'':
		return l.scanString(start, ""), true
	default:
		return l.scanOperator(start), true
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *Lexer) scanComment(start int) Token {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.advance()
	}
	text := string(l.src[start:l.pos])
	body := strings.TrimSpace(strings.TrimPrefix(text, "#"))

	switch {
	case strings.HasPrefix(body, "type: ignore"):
		codes := extractBracketCodes(body)
		tok := l.mk(TypeIgnorePragma, start, l.pos)
		tok.Pragma = &PragmaPayload{Codes: codes}
		return tok
	case strings.HasPrefix(body, "pyright: ignore"):
		codes := extractBracketCodes(body)
		tok := l.mk(PyrightIgnorePragma, start, l.pos)
		tok.Pragma = &PragmaPayload{Codes: codes}
		return tok
	case strings.HasPrefix(body, "type:"):
		rest := strings.TrimSpace(strings.TrimPrefix(body, "type:"))
		tok := l.mk(TypeCommentPragma, start, l.pos)
		tok.Pragma = &PragmaPayload{Text: rest}
		return tok
	default:
		return l.mk(Comment, start, l.pos)
	}
}

func extractBracketCodes(body string) []string {
	lb := strings.IndexByte(body, '[')
	rb := strings.IndexByte(body, ']')
	if lb < 0 || rb < 0 || rb < lb {
		return nil
	}
	parts := strings.Split(body[lb+1:rb], ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// scanIdentOrStringPrefix handles both plain identifiers/keywords and
// string-prefix forms like r"...", b'...', rb"...", f"...".
func (l *Lexer) scanIdentOrStringPrefix(start int) Token {
	for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
		l.advance()
	}
	text := string(l.src[start:l.pos])

	if (l.peek() == '"' || l.peek() == '\'') && isValidStringPrefix(text) {
		return l.scanString(start, strings.ToLower(text))
	}

	if Keywords[text] {
		return l.mk(Keyword, start, l.pos)
	}
	return l.mk(Identifier, start, l.pos)
}

func isValidStringPrefix(s string) bool {
	if len(s) == 0 || len(s) > 2 {
		return false
	}
	seen := map[byte]bool{}
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20
		if c != 'r' && c != 'b' && c != 'u' && c != 'f' {
			return false
		}
		if seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

func (l *Lexer) scanString(start int, prefix string) Token {
	quote := l.peek()
	triple := l.peekAt(1) == quote && l.peekAt(2) == quote
	isRaw := strings.ContainsRune(prefix, 'r')
	isBytes := strings.ContainsRune(prefix, 'b')
	isF := strings.ContainsRune(prefix, 'f')

	if triple {
		l.advance()
		l.advance()
		l.advance()
	} else {
		l.advance()
	}

	var value strings.Builder
	closed := false
	for l.pos < len(l.src) {
		c := l.peek()
		if c == '\\' && !isRaw {
			l.advance()
			if l.pos < len(l.src) {
				value.WriteByte(l.decodeEscape())
			}
			continue
		}
		if c == '\\' && isRaw {
			value.WriteByte(c)
			l.advance()
			if l.pos < len(l.src) {
				value.WriteByte(l.peek())
				l.advance()
			}
			continue
		}
		if c == quote {
			if triple {
				if l.peekAt(1) == quote && l.peekAt(2) == quote {
					l.advance()
					l.advance()
					l.advance()
					closed = true
					break
				}
				value.WriteByte(c)
				l.advance()
				continue
			}
			l.advance()
			closed = true
			break
		}
		if c == '\n' && !triple {
			break // unterminated single-line string
		}
		value.WriteByte(c)
		l.advance()
	}

	if !closed {
		l.diags.Addf(l.file, l.rangeAt(start, l.pos), diagnostic.RuleSyntaxError,
			"unterminated string literal")
		tok := l.mk(Error, start, l.pos)
		return tok
	}

	kind := String
	if isF {
		kind = FStringStart // the parser re-scans the interior for nested expressions
	}
	tok := l.mk(kind, start, l.pos)
	tok.String = &StringPayload{
		Prefix: prefix, Raw: tok.Text, Value: value.String(),
		IsFString: isF, IsRaw: isRaw, IsBytes: isBytes, Triple: triple,
	}
	return tok
}

func (l *Lexer) decodeEscape() byte {
	c := l.peek()
	l.advance()
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '\\':
		return '\\'
	case '\'':
		return '\''
	case '"':
		return '"'
	case '0':
		return 0
	default:
		return c
	}
}

func (l *Lexer) scanNumber(start int) Token {
	isFloat := false
	scanDigits := func() {
		for l.pos < len(l.src) && (l.src[l.pos] == '_' || (l.src[l.pos] >= '0' && l.src[l.pos] <= '9')) {
			l.advance()
		}
	}
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X' || l.peekAt(1) == 'o' || l.peekAt(1) == 'O' || l.peekAt(1) == 'b' || l.peekAt(1) == 'B') {
		l.advance()
		l.advance()
		for l.pos < len(l.src) && (isIdentCont(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.advance()
		}
	} else {
		scanDigits()
		if l.peek() == '.' {
			isFloat = true
			l.advance()
			scanDigits()
		}
		if l.peek() == 'e' || l.peek() == 'E' {
			isFloat = true
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			scanDigits()
		}
	}
	isImaginary := l.peek() == 'j' || l.peek() == 'J'
	if isImaginary {
		l.advance()
	}

	text := string(l.src[start:l.pos])
	clean := strings.ReplaceAll(strings.TrimSuffix(strings.TrimSuffix(text, "j"), "J"), "_", "")

	tok := l.mk(Int, start, l.pos)
	switch {
	case isImaginary:
		tok.Kind = Imaginary
		tok.FloatValue, _ = strconv.ParseFloat(clean, 64)
	case isFloat:
		tok.Kind = Float
		tok.FloatValue, _ = strconv.ParseFloat(clean, 64)
	default:
		tok.Kind = Int
		tok.IntValue, _ = strconv.ParseInt(clean, 0, 64)
	}
	return tok
}

var threeCharOps = map[string]OpKind{
	"**=": OpAugAssign, "//=": OpAugAssign, ">>=": OpAugAssign, "<<=": OpAugAssign,
	"...": OpEllipsis,
}

var twoCharOps = map[string]OpKind{
	"**": OpDoubleStar, "//": OpDoubleSlash, "<<": OpLShift, ">>": OpRShift,
	"<=": OpLe, ">=": OpGe, "==": OpEq, "!=": OpNe, ":=": OpWalrus, "->": OpArrow,
	"+=": OpAugAssign, "-=": OpAugAssign, "*=": OpAugAssign, "/=": OpAugAssign,
	"%=": OpAugAssign, "&=": OpAugAssign, "|=": OpAugAssign, "^=": OpAugAssign,
	"@=": OpAugAssign,
}

var oneCharOps = map[byte]OpKind{
	'+': OpPlus, '-': OpMinus, '*': OpStar, '/': OpSlash, '%': OpPercent,
	'@': OpAt, '&': OpAmp, '|': OpPipe, '^': OpCaret, '~': OpTilde,
	'<': OpLt, '>': OpGt, '=': OpAssign, ':': OpColon, ';': OpSemicolon,
	',': OpComma, '.': OpDot,
	'(': OpLParen, ')': OpRParen, '[': OpLBracket, ']': OpRBracket,
	'{': OpLBrace, '}': OpRBrace,
}

func (l *Lexer) scanOperator(start int) Token {
	rest := string(l.src[start:min(len(l.src), start+3)])
	if op, ok := threeCharOps[rest]; ok {
		l.advance()
		l.advance()
		l.advance()
		tok := l.mk(Operator, start, l.pos)
		tok.Op = op
		if op == OpAugAssign {
			tok.AugOp = baseAugOp(tok.Text)
		}
		return tok
	}
	rest2 := string(l.src[start:min(len(l.src), start+2)])
	if op, ok := twoCharOps[rest2]; ok {
		l.advance()
		l.advance()
		tok := l.mk(Operator, start, l.pos)
		tok.Op = op
		if op == OpAugAssign {
			tok.AugOp = baseAugOp(tok.Text)
		}
		return tok
	}

	c := l.src[start]
	if op, ok := oneCharOps[c]; ok {
		l.advance()
		tok := l.mk(Operator, start, l.pos)
		tok.Op = op
		switch c {
		case '(', '[', '{':
			l.parenDepth++
		case ')', ']', '}':
			if l.parenDepth > 0 {
				l.parenDepth--
			}
		}
		return tok
	}

	l.advance()
	l.diags.Addf(l.file, l.rangeAt(start, l.pos), diagnostic.RuleSyntaxError,
		"invalid character %q", string(c))
	return l.mk(Error, start, l.pos)
}

func baseAugOp(text string) OpKind {
	switch strings.TrimSuffix(text, "=") {
	case "+":
		return OpPlus
	case "-":
		return OpMinus
	case "*":
		return OpStar
	case "**":
		return OpDoubleStar
	case "/":
		return OpSlash
	case "//":
		return OpDoubleSlash
	case "%":
		return OpPercent
	case "@":
		return OpAt
	case "&":
		return OpAmp
	case "|":
		return OpPipe
	case "^":
		return OpCaret
	case "<<":
		return OpLShift
	case ">>":
		return OpRShift
	default:
		return OpNone
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
