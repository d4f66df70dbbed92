package syntax

import (
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/token"
)

// Parser is a recursive-descent parser over a pre-tokenized stream.
// Contract per spec.md §4.2: parse(tokens, dialect) -> (module, diagnostics,
// typeIgnoreLines).
type Parser struct {
	file    string
	toks    []token.Token
	pos     int
	nextID  int
	dialect Dialect
	diags   diagnostic.Bag

	typeIgnoreLines map[int][]string
}

// Parse builds a parse tree from a token stream. It never aborts: malformed
// input yields Error nodes plus diagnostics, and the parser resynchronizes
// at the next statement boundary.
func Parse(file string, toks []token.Token, dialect Dialect) (*Node, []diagnostic.Diagnostic, map[int][]string) {
	p := &Parser{file: file, toks: toks, dialect: dialect, typeIgnoreLines: map[int][]string{}}
	mod := p.parseModule()
	return mod, p.diags.All(), p.typeIgnoreLines
}

func (p *Parser) newID() int {
	p.nextID++
	return p.nextID
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[p.pos]
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) atKeyword(word string) bool {
	return p.cur().Kind == token.Keyword && p.cur().Text == word
}

func (p *Parser) atOp(op token.OpKind) bool {
	return p.cur().Kind == token.Operator && p.cur().Op == op
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// skipTrivia consumes comment and ignore-pragma tokens that the statement
// grammar doesn't otherwise consume, recording the codes of each
// `# type: ignore` / `# pyright: ignore` pragma against its line.
func (p *Parser) skipTrivia() {
	for {
		switch p.cur().Kind {
		case token.Comment:
			p.advance()
		case token.TypeIgnorePragma, token.PyrightIgnorePragma:
			line := p.cur().Range.StartLine
			p.typeIgnoreLines[line] = append(p.typeIgnoreLines[line], p.cur().Pragma.Codes...)
			p.advance()
		default:
			return
		}
	}
}

func (p *Parser) expectOp(op token.OpKind, what string) (token.Token, bool) {
	p.skipTrivia()
	if p.atOp(op) {
		return p.advance(), true
	}
	p.errorf("expected %s", what)
	return p.cur(), false
}

func (p *Parser) expectKeyword(word string) bool {
	p.skipTrivia()
	if p.atKeyword(word) {
		p.advance()
		return true
	}
	p.errorf("expected keyword %q", word)
	return false
}

func (p *Parser) expectIdent() (string, token.Range, bool) {
	p.skipTrivia()
	if p.at(token.Identifier) {
		t := p.advance()
		return t.Text, t.Range, true
	}
	p.errorf("expected identifier")
	return "", p.cur().Range, false
}

func (p *Parser) errorf(format string, args ...any) {
	p.diags.Addf(p.file, p.cur().Range, diagnostic.RuleSyntaxError, format, args...)
}

// resync skips to the next statement boundary: a Newline/Dedent at the
// current indent level or a recognized statement keyword.
func (p *Parser) resync() {
	for {
		switch p.cur().Kind {
		case token.EOF, token.Newline, token.Dedent, token.Indent:
			return
		case token.Keyword:
			switch p.cur().Text {
			case "def", "class", "if", "for", "while", "return", "import", "from",
				"try", "with", "pass", "break", "continue", "raise", "global", "nonlocal":
				return
			}
		}
		p.advance()
	}
}

func (p *Parser) errorNode(start token.Range) *Node {
	return &Node{ID: p.newID(), Kind: KError, Range: start, IsError: true}
}

// ---- module & suite ----

func (p *Parser) parseModule() *Node {
	mod := &Node{ID: p.newID(), Kind: KModule}
	for !p.at(token.EOF) {
		p.skipTrivia()
		if p.at(token.Newline) {
			p.advance()
			continue
		}
		if p.at(token.EOF) {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			mod.Body = append(mod.Body, stmt)
		}
	}
	return mod
}

// parseSuite parses either a single simple-statement line or an indented
// block following a ':'.
func (p *Parser) parseSuite() []*Node {
	p.skipTrivia()
	if p.at(token.Newline) {
		p.advance()
		p.skipTrivia()
		if !p.at(token.Indent) {
			p.errorf("expected indented block")
			return nil
		}
		p.advance()
		var body []*Node
		for !p.at(token.Dedent) && !p.at(token.EOF) {
			p.skipTrivia()
			if p.at(token.Newline) {
				p.advance()
				continue
			}
			if p.at(token.Dedent) || p.at(token.EOF) {
				break
			}
			stmt := p.parseStatement()
			if stmt != nil {
				body = append(body, stmt)
			}
		}
		if p.at(token.Dedent) {
			p.advance()
		}
		return body
	}
	// simple statement(s) on the same line, ';'-separated
	var body []*Node
	for {
		stmt := p.parseSimpleStatement()
		if stmt != nil {
			body = append(body, stmt)
		}
		if p.atOp(token.OpSemicolon) {
			p.advance()
			continue
		}
		break
	}
	p.skipTrivia()
	if p.at(token.Newline) {
		p.advance()
	}
	return body
}

// ---- statements ----

func (p *Parser) parseStatement() *Node {
	p.skipTrivia()
	tok := p.cur()

	if tok.Kind == token.Keyword {
		switch tok.Text {
		case "def":
			return p.parseFunctionDef(false, nil)
		case "class":
			return p.parseClassDef(nil)
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor(false)
		case "while":
			return p.parseWhile()
		case "try":
			return p.parseTry()
		case "with":
			return p.parseWith(false)
		case "async":
			return p.parseAsync()
		}
	}
	if tok.Kind == token.Operator && tok.Op == token.OpAt {
		return p.parseDecorated()
	}

	stmts := p.parseSimpleStatementLine()
	if len(stmts) == 0 {
		return nil
	}
	if len(stmts) == 1 {
		return stmts[0]
	}
	// multiple ';'-separated simple statements collapse into a synthetic
	// block so callers keep a single *Node per line.
	return &Node{ID: p.newID(), Kind: KModule, Body: stmts}
}

func (p *Parser) parseSimpleStatementLine() []*Node {
	var out []*Node
	for {
		stmt := p.parseSimpleStatement()
		if stmt != nil {
			out = append(out, stmt)
		}
		if p.atOp(token.OpSemicolon) {
			p.advance()
			continue
		}
		break
	}
	p.skipTrivia()
	if p.at(token.Newline) {
		p.advance()
	} else if !p.at(token.EOF) && !p.at(token.Dedent) {
		p.errorf("expected newline")
		p.resync()
		if p.at(token.Newline) {
			p.advance()
		}
	}
	return out
}

func (p *Parser) parseSimpleStatement() *Node {
	p.skipTrivia()
	tok := p.cur()
	start := tok.Range

	if tok.Kind == token.Keyword {
		switch tok.Text {
		case "pass":
			p.advance()
			return &Node{ID: p.newID(), Kind: KPass, Range: start}
		case "break":
			p.advance()
			return &Node{ID: p.newID(), Kind: KBreak, Range: start}
		case "continue":
			p.advance()
			return &Node{ID: p.newID(), Kind: KContinue, Range: start}
		case "return":
			p.advance()
			n := &Node{ID: p.newID(), Kind: KReturn, Range: start}
			if !p.atStmtEnd() {
				n.Value = p.parseExprOrTupleList()
			}
			return n
		case "raise":
			p.advance()
			n := &Node{ID: p.newID(), Kind: KRaise, Range: start}
			if !p.atStmtEnd() {
				n.Value = p.parseExpr()
				if p.atKeyword("from") {
					p.advance()
					n.Left = p.parseExpr()
				}
			}
			return n
		case "import":
			return p.parseImport()
		case "from":
			return p.parseImportFrom()
		case "global":
			p.advance()
			return p.parseNameList(KGlobal, start)
		case "nonlocal":
			p.advance()
			return p.parseNameList(KNonlocal, start)
		case "assert":
			p.advance()
			n := &Node{ID: p.newID(), Kind: KAssert, Range: start}
			n.Test = p.parseExpr()
			if p.atOp(token.OpComma) {
				p.advance()
				n.Value = p.parseExpr()
			}
			return n
		case "del":
			p.advance()
			n := &Node{ID: p.newID(), Kind: KDelete, Range: start}
			n.Targets = p.parseExprList()
			return n
		case "yield":
			// bare `yield` as a statement
			expr := p.parseExpr()
			return &Node{ID: p.newID(), Kind: KExprStmt, Range: start, Value: expr}
		}
	}

	return p.parseExprOrAssignStatement()
}

func (p *Parser) atStmtEnd() bool {
	return p.at(token.Newline) || p.atOp(token.OpSemicolon) || p.at(token.EOF) || p.at(token.Dedent)
}

func (p *Parser) parseNameList(kind Kind, start token.Range) *Node {
	n := &Node{ID: p.newID(), Kind: kind, Range: start}
	for {
		name, _, ok := p.expectIdent()
		if ok {
			n.Body = append(n.Body, &Node{ID: p.newID(), Kind: KName, Name: name})
		}
		if p.atOp(token.OpComma) {
			p.advance()
			continue
		}
		break
	}
	return n
}

func (p *Parser) parseImport() *Node {
	start := p.cur().Range
	p.advance() // 'import'
	n := &Node{ID: p.newID(), Kind: KImport, Range: start}
	for {
		alias := p.parseDottedNameAlias()
		n.Names = append(n.Names, alias)
		if p.atOp(token.OpComma) {
			p.advance()
			continue
		}
		break
	}
	return n
}

func (p *Parser) parseDottedNameAlias() *Node {
	var parts []string
	name, rng, _ := p.expectIdent()
	parts = append(parts, name)
	for p.atOp(token.OpDot) {
		p.advance()
		n, _, _ := p.expectIdent()
		parts = append(parts, n)
	}
	alias := &Node{ID: p.newID(), Kind: KImportAlias, Range: rng, ModuleParts: parts}
	if p.atKeyword("as") {
		p.advance()
		as, _, _ := p.expectIdent()
		alias.Alias = as
	}
	return alias
}

func (p *Parser) parseImportFrom() *Node {
	start := p.cur().Range
	p.advance() // 'from'
	n := &Node{ID: p.newID(), Kind: KImportFrom, Range: start}

	for p.atOp(token.OpDot) || p.atOp(token.OpEllipsis) {
		if p.atOp(token.OpEllipsis) {
			n.Level += 3
		} else {
			n.Level++
		}
		p.advance()
	}
	if p.at(token.Identifier) {
		var parts []string
		name, _, _ := p.expectIdent()
		parts = append(parts, name)
		for p.atOp(token.OpDot) {
			p.advance()
			m, _, _ := p.expectIdent()
			parts = append(parts, m)
		}
		n.ModuleParts = parts
	}
	p.expectKeyword("import")
	if p.atOp(token.OpStar) {
		p.advance()
		n.IsWildcard = true
		return n
	}
	paren := p.atOp(token.OpLParen)
	if paren {
		p.advance()
	}
	for {
		p.skipTrivia()
		if p.at(token.Newline) && paren {
			p.advance()
			continue
		}
		if paren && p.atOp(token.OpRParen) {
			break
		}
		name, rng, ok := p.expectIdent()
		if !ok {
			break
		}
		alias := &Node{ID: p.newID(), Kind: KImportAlias, Range: rng, Name: name}
		if p.atKeyword("as") {
			p.advance()
			as, _, _ := p.expectIdent()
			alias.Alias = as
		}
		n.Names = append(n.Names, alias)
		if p.atOp(token.OpComma) {
			p.advance()
			continue
		}
		break
	}
	if paren {
		p.expectOp(token.OpRParen, "')'")
	}
	return n
}

// parseExprOrAssignStatement handles expression statements, assignments
// (including chained `a = b = c`), annotated assignments, and augmented
// assignments.
func (p *Parser) parseExprOrAssignStatement() *Node {
	start := p.cur().Range
	first := p.parseExprOrTupleList()

	if p.atOp(token.OpColon) {
		p.advance()
		n := &Node{ID: p.newID(), Kind: KAnnAssign, Range: start, Target: first}
		n.Annotation = p.parseExpr()
		if p.atOp(token.OpAssign) {
			p.advance()
			n.Value = p.parseExprOrTupleList()
		}
		p.attachTypeComment(n)
		return n
	}

	if p.cur().Kind == token.Operator && p.cur().Op == token.OpAugAssign {
		op := p.cur().AugOp
		p.advance()
		n := &Node{ID: p.newID(), Kind: KAugAssign, Range: start, Target: first, Op: op}
		n.Value = p.parseExprOrTupleList()
		p.attachTypeComment(n)
		return n
	}

	if p.atOp(token.OpAssign) {
		targets := []*Node{first}
		var value *Node
		for p.atOp(token.OpAssign) {
			p.advance()
			rhs := p.parseExprOrTupleList()
			targets = append(targets, rhs)
		}
		value = targets[len(targets)-1]
		targets = targets[:len(targets)-1]
		n := &Node{ID: p.newID(), Kind: KAssign, Range: start, Targets: targets, Value: value}
		p.attachTypeComment(n)
		return n
	}

	return &Node{ID: p.newID(), Kind: KExprStmt, Range: start, Value: first}
}

// attachTypeComment reads a `# type: T` pragma immediately trailing the
// statement and records it as an auxiliary annotation (spec.md §4.2).
func (p *Parser) attachTypeComment(n *Node) {
	if p.at(token.TypeCommentPragma) {
		n.TypeComment = p.cur().Pragma.Text
		p.advance()
	}
}

func (p *Parser) parseIf() *Node {
	start := p.cur().Range
	p.advance() // 'if'
	n := &Node{ID: p.newID(), Kind: KIf, Range: start}
	n.Test = p.parseExpr()
	p.expectOp(token.OpColon, "':'")
	n.Body = p.parseSuite()

	p.skipTrivia()
	if p.atKeyword("elif") {
		n.OrElse = []*Node{p.parseIf1("elif")}
	} else if p.atKeyword("else") {
		p.advance()
		p.expectOp(token.OpColon, "':'")
		n.OrElse = p.parseSuite()
	}
	return n
}

func (p *Parser) parseIf1(kw string) *Node {
	start := p.cur().Range
	p.advance() // 'elif'
	n := &Node{ID: p.newID(), Kind: KIf, Range: start}
	n.Test = p.parseExpr()
	p.expectOp(token.OpColon, "':'")
	n.Body = p.parseSuite()
	p.skipTrivia()
	if p.atKeyword("elif") {
		n.OrElse = []*Node{p.parseIf1("elif")}
	} else if p.atKeyword("else") {
		p.advance()
		p.expectOp(token.OpColon, "':'")
		n.OrElse = p.parseSuite()
	}
	return n
}

func (p *Parser) parseWhile() *Node {
	start := p.cur().Range
	p.advance()
	n := &Node{ID: p.newID(), Kind: KWhile, Range: start}
	n.Test = p.parseExpr()
	p.expectOp(token.OpColon, "':'")
	n.Body = p.parseSuite()
	p.skipTrivia()
	if p.atKeyword("else") {
		p.advance()
		p.expectOp(token.OpColon, "':'")
		n.OrElse = p.parseSuite()
	}
	return n
}

func (p *Parser) parseFor(async bool) *Node {
	start := p.cur().Range
	p.advance() // 'for'
	n := &Node{ID: p.newID(), Kind: KFor, Range: start, Async: async}
	n.Target = p.parseTargetList()
	p.expectKeyword("in")
	n.Iter = p.parseExprOrTupleList()
	p.expectOp(token.OpColon, "':'")
	n.Body = p.parseSuite()
	p.skipTrivia()
	if p.atKeyword("else") {
		p.advance()
		p.expectOp(token.OpColon, "':'")
		n.OrElse = p.parseSuite()
	}
	return n
}

func (p *Parser) parseTargetList() *Node {
	first := p.parseTarget()
	if !p.atOp(token.OpComma) {
		return first
	}
	elts := []*Node{first}
	for p.atOp(token.OpComma) {
		p.advance()
		if p.atKeyword("in") || p.atOp(token.OpColon) {
			break
		}
		elts = append(elts, p.parseTarget())
	}
	return &Node{ID: p.newID(), Kind: KTuple, Body: elts}
}

func (p *Parser) parseTarget() *Node {
	if p.atOp(token.OpStar) {
		start := p.cur().Range
		p.advance()
		inner := p.parseTarget()
		return &Node{ID: p.newID(), Kind: KStarred, Range: start, Value: inner}
	}
	if p.atOp(token.OpLParen) || p.atOp(token.OpLBracket) {
		closer := token.OpRParen
		if p.atOp(token.OpLBracket) {
			closer = token.OpRBracket
		}
		p.advance()
		var elts []*Node
		for !p.atOp(closer) && !p.at(token.EOF) {
			elts = append(elts, p.parseTarget())
			if p.atOp(token.OpComma) {
				p.advance()
				continue
			}
			break
		}
		p.expectOp(closer, "closing bracket")
		return &Node{ID: p.newID(), Kind: KTuple, Body: elts}
	}
	return p.parseExpr()
}

func (p *Parser) parseTry() *Node {
	start := p.cur().Range
	p.advance() // 'try'
	n := &Node{ID: p.newID(), Kind: KTry, Range: start}
	p.expectOp(token.OpColon, "':'")
	n.Body = p.parseSuite()

	for p.atKeyword("except") {
		hstart := p.cur().Range
		p.advance()
		h := &Node{ID: p.newID(), Kind: KExceptHandler, Range: hstart}
		if p.atOp(token.OpStar) { // except* (exception groups)
			p.advance()
		}
		if !p.atOp(token.OpColon) {
			h.ExceptType = p.parseExpr()
			if p.atKeyword("as") {
				p.advance()
				name, _, _ := p.expectIdent()
				h.ExceptName = name
			}
		}
		p.expectOp(token.OpColon, "':'")
		h.Body = p.parseSuite()
		n.Handlers = append(n.Handlers, h)
	}
	p.skipTrivia()
	if p.atKeyword("else") {
		p.advance()
		p.expectOp(token.OpColon, "':'")
		n.OrElse = p.parseSuite()
	}
	p.skipTrivia()
	if p.atKeyword("finally") {
		p.advance()
		p.expectOp(token.OpColon, "':'")
		n.Finally = p.parseSuite()
	}
	return n
}

func (p *Parser) parseWith(async bool) *Node {
	start := p.cur().Range
	p.advance() // 'with'
	n := &Node{ID: p.newID(), Kind: KWith, Range: start, Async: async}
	parenthesized := p.atOp(token.OpLParen)
	if parenthesized {
		p.advance()
	}
	for {
		item := &Node{ID: p.newID(), Kind: KWithItem}
		item.Value = p.parseExpr()
		if p.atKeyword("as") {
			p.advance()
			item.Target = p.parseTarget()
		}
		n.Body = append(n.Body, item)
		if p.atOp(token.OpComma) {
			p.advance()
			continue
		}
		break
	}
	if parenthesized && p.atOp(token.OpRParen) {
		p.advance()
	}
	p.expectOp(token.OpColon, "':'")
	n.OrElse = p.parseSuite() // with-body stored in OrElse to keep Body as the item list
	return n
}

func (p *Parser) parseAsync() *Node {
	p.advance() // 'async'
	switch {
	case p.atKeyword("def"):
		return p.parseFunctionDef(true, nil)
	case p.atKeyword("for"):
		return p.parseFor(true)
	case p.atKeyword("with"):
		return p.parseWith(true)
	default:
		p.errorf("expected 'def', 'for', or 'with' after 'async'")
		return p.errorNode(p.cur().Range)
	}
}

func (p *Parser) parseDecorated() *Node {
	var decorators []*Node
	for p.atOp(token.OpAt) {
		p.advance()
		decorators = append(decorators, p.parseExpr())
		p.skipTrivia()
		if p.at(token.Newline) {
			p.advance()
		}
		p.skipTrivia()
	}
	if p.atKeyword("async") {
		p.advance()
		return p.parseFunctionDef(true, decorators)
	}
	if p.atKeyword("def") {
		return p.parseFunctionDef(false, decorators)
	}
	if p.atKeyword("class") {
		return p.parseClassDef(decorators)
	}
	p.errorf("expected 'def' or 'class' after decorator")
	return p.errorNode(p.cur().Range)
}

func (p *Parser) parseFunctionDef(async bool, decorators []*Node) *Node {
	start := p.cur().Range
	p.advance() // 'def'
	n := &Node{ID: p.newID(), Kind: KFunctionDef, Range: start, Async: async, Decorators: decorators}
	name, _, _ := p.expectIdent()
	n.Name = name

	if p.dialect.SupportsTypeAlias() && p.atOp(token.OpLBracket) {
		p.advance()
		for !p.atOp(token.OpRBracket) && !p.at(token.EOF) {
			tp, _, ok := p.expectIdent()
			if ok {
				n.TypeParams = append(n.TypeParams, tp)
			}
			if p.atOp(token.OpComma) {
				p.advance()
				continue
			}
			break
		}
		p.expectOp(token.OpRBracket, "']'")
	}

	p.expectOp(token.OpLParen, "'('")
	n.Params = p.parseParameters()
	p.expectOp(token.OpRParen, "')'")

	if p.atOp(token.OpArrow) {
		p.advance()
		n.Returns = p.parseExpr()
	}
	p.expectOp(token.OpColon, "':'")
	n.Body = p.parseSuite()
	return n
}

func (p *Parser) parseParameters() []*Node {
	var params []*Node
	seenStar := false
	for !p.atOp(token.OpRParen) && !p.at(token.EOF) {
		if p.atOp(token.OpSlash) {
			p.advance()
			for _, pm := range params {
				pm.ParamKind = ParamPositionalOnly
			}
			if p.atOp(token.OpComma) {
				p.advance()
			}
			continue
		}
		if p.atOp(token.OpStar) {
			p.advance()
			seenStar = true
			if p.at(token.Identifier) {
				pm := p.parseOneParameter(ParamVarPositional)
				params = append(params, pm)
			}
			if p.atOp(token.OpComma) {
				p.advance()
			}
			continue
		}
		if p.atOp(token.OpDoubleStar) {
			p.advance()
			pm := p.parseOneParameter(ParamVarKeyword)
			params = append(params, pm)
			if p.atOp(token.OpComma) {
				p.advance()
			}
			continue
		}
		kind := ParamPositionalOrKeyword
		if seenStar {
			kind = ParamKeywordOnly
		}
		pm := p.parseOneParameter(kind)
		params = append(params, pm)
		if p.atOp(token.OpComma) {
			p.advance()
			continue
		}
		break
	}
	return params
}

func (p *Parser) parseOneParameter(kind ParamKind) *Node {
	start := p.cur().Range
	name, _, _ := p.expectIdent()
	pm := &Node{ID: p.newID(), Kind: KParameter, Range: start, Name: name, ParamKind: kind}
	if p.atOp(token.OpColon) {
		p.advance()
		pm.Annotation = p.parseExpr()
	}
	if p.atOp(token.OpAssign) {
		p.advance()
		pm.Default = p.parseExpr()
		pm.HasDefault = true
	}
	return pm
}

func (p *Parser) parseClassDef(decorators []*Node) *Node {
	start := p.cur().Range
	p.advance() // 'class'
	n := &Node{ID: p.newID(), Kind: KClassDef, Range: start, Decorators: decorators}
	name, _, _ := p.expectIdent()
	n.Name = name

	if p.atOp(token.OpLParen) {
		p.advance()
		for !p.atOp(token.OpRParen) && !p.at(token.EOF) {
			if p.at(token.Identifier) && p.peekIsKeywordEq() {
				kw := &Node{ID: p.newID(), Kind: KKeywordArg}
				kw.Name, _, _ = p.expectIdent()
				p.expectOp(token.OpAssign, "'='")
				kw.Value = p.parseExpr()
				n.Keywords2 = append(n.Keywords2, kw)
			} else {
				n.Bases = append(n.Bases, p.parseExpr())
			}
			if p.atOp(token.OpComma) {
				p.advance()
				continue
			}
			break
		}
		p.expectOp(token.OpRParen, "')'")
	}
	p.expectOp(token.OpColon, "':'")
	n.Body = p.parseSuite()
	return n
}

func (p *Parser) peekIsKeywordEq() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	nt := p.toks[p.pos+1]
	return nt.Kind == token.Operator && nt.Op == token.OpAssign
}

// ---- expressions ----
// Precedence, low to high: lambda/ternary > or > and > not > comparison >
// bitwise-or > bitwise-xor > bitwise-and > shift > add/sub > mul/div/mod >
// unary > power > await > atom-trailer > atom.

func (p *Parser) parseExprOrTupleList() *Node {
	first := p.parseExprAllowStarred()
	if !p.atOp(token.OpComma) {
		return first
	}
	elts := []*Node{first}
	for p.atOp(token.OpComma) {
		p.advance()
		if p.atStmtEnd() || p.atOp(token.OpAssign) || p.atOp(token.OpColon) {
			break
		}
		elts = append(elts, p.parseExprAllowStarred())
	}
	return &Node{ID: p.newID(), Kind: KTuple, Body: elts}
}

func (p *Parser) parseExprAllowStarred() *Node {
	if p.atOp(token.OpStar) {
		start := p.cur().Range
		p.advance()
		v := p.parseExpr()
		return &Node{ID: p.newID(), Kind: KStarred, Range: start, Value: v}
	}
	return p.parseExpr()
}

func (p *Parser) parseExprList() []*Node {
	var out []*Node
	out = append(out, p.parseExprAllowStarred())
	for p.atOp(token.OpComma) {
		p.advance()
		if p.atStmtEnd() {
			break
		}
		out = append(out, p.parseExprAllowStarred())
	}
	return out
}

// parseExpr parses one expression including lambda, ternary, walrus, and
// the boolean/comparison/arithmetic cascade.
func (p *Parser) parseExpr() *Node {
	if p.atKeyword("lambda") {
		return p.parseLambda()
	}
	expr := p.parseOrTest()
	if p.atKeyword("if") {
		start := p.cur().Range
		p.advance()
		cond := p.parseOrTest()
		p.expectKeyword("else")
		elseExpr := p.parseExpr()
		return &Node{ID: p.newID(), Kind: KIfExp, Range: start, Test: cond, Left: expr, Value: elseExpr}
	}
	if p.dialect.SupportsWalrus() && p.atOp(token.OpWalrus) {
		start := p.cur().Range
		p.advance()
		val := p.parseExpr()
		return &Node{ID: p.newID(), Kind: KNamedExpr, Range: start, Target: expr, Value: val}
	}
	return expr
}

func (p *Parser) parseLambda() *Node {
	start := p.cur().Range
	p.advance() // 'lambda'
	n := &Node{ID: p.newID(), Kind: KLambda, Range: start}
	for !p.atOp(token.OpColon) && !p.at(token.EOF) {
		pm := &Node{ID: p.newID(), Kind: KParameter}
		pm.Name, _, _ = p.expectIdent()
		if p.atOp(token.OpAssign) {
			p.advance()
			pm.Default = p.parseExpr()
			pm.HasDefault = true
		}
		n.LambdaParams = append(n.LambdaParams, pm)
		if p.atOp(token.OpComma) {
			p.advance()
			continue
		}
		break
	}
	p.expectOp(token.OpColon, "':'")
	n.LambdaBody = p.parseExpr()
	return n
}

func (p *Parser) parseOrTest() *Node {
	left := p.parseAndTest()
	for p.atKeyword("or") {
		start := p.cur().Range
		p.advance()
		right := p.parseAndTest()
		left = &Node{ID: p.newID(), Kind: KBoolOp, Range: start, Op: token.OpPipe, Left: left, Comparators: []*Node{right}}
	}
	return left
}

func (p *Parser) parseAndTest() *Node {
	left := p.parseNotTest()
	for p.atKeyword("and") {
		start := p.cur().Range
		p.advance()
		right := p.parseNotTest()
		left = &Node{ID: p.newID(), Kind: KBoolOp, Range: start, Op: token.OpAmp, Left: left, Comparators: []*Node{right}}
	}
	return left
}

func (p *Parser) parseNotTest() *Node {
	if p.atKeyword("not") {
		start := p.cur().Range
		p.advance()
		v := p.parseNotTest()
		return &Node{ID: p.newID(), Kind: KUnaryOp, Range: start, Op: token.OpNone, Value: v}
	}
	return p.parseComparison()
}

// parseComparison builds a single KCompare node with the full chained
// operand list (spec.md §4.2: "chained comparisons expand into pairwise
// conjunctions during type evaluation, not during parse").
func (p *Parser) parseComparison() *Node {
	first := p.parseBitOr()
	var ops []token.OpKind
	var rest []*Node
	for {
		op, ok := p.compareOp()
		if !ok {
			break
		}
		rest = append(rest, p.parseBitOr())
		ops = append(ops, op)
	}
	if len(rest) == 0 {
		return first
	}
	return &Node{ID: p.newID(), Kind: KCompare, Left: first, Comparators: rest, CompareOps: ops}
}

func (p *Parser) compareOp() (token.OpKind, bool) {
	if p.cur().Kind == token.Operator {
		switch p.cur().Op {
		case token.OpLt, token.OpGt, token.OpLe, token.OpGe, token.OpEq, token.OpNe:
			op := p.cur().Op
			p.advance()
			return op, true
		}
	}
	if p.atKeyword("in") {
		p.advance()
		return token.OpIn, true
	}
	if p.atKeyword("not") && p.peekKeyword(1, "in") {
		p.advance()
		p.advance()
		return token.OpNotIn, true
	}
	if p.atKeyword("is") {
		p.advance()
		if p.atKeyword("not") {
			p.advance()
			return token.OpIsNot, true
		}
		return token.OpIs, true
	}
	return token.OpNone, false
}

func (p *Parser) peekKeyword(n int, word string) bool {
	if p.pos+n >= len(p.toks) {
		return false
	}
	t := p.toks[p.pos+n]
	return t.Kind == token.Keyword && t.Text == word
}

func (p *Parser) parseBitOr() *Node {
	left := p.parseBitXor()
	for p.atOp(token.OpPipe) {
		start := p.cur().Range
		p.advance()
		right := p.parseBitXor()
		left = &Node{ID: p.newID(), Kind: KBinaryOp, Range: start, Op: token.OpPipe, Left: left, Comparators: []*Node{right}}
	}
	return left
}

func (p *Parser) parseBitXor() *Node {
	left := p.parseBitAnd()
	for p.atOp(token.OpCaret) {
		start := p.cur().Range
		p.advance()
		right := p.parseBitAnd()
		left = &Node{ID: p.newID(), Kind: KBinaryOp, Range: start, Op: token.OpCaret, Left: left, Comparators: []*Node{right}}
	}
	return left
}

func (p *Parser) parseBitAnd() *Node {
	left := p.parseShift()
	for p.atOp(token.OpAmp) {
		start := p.cur().Range
		p.advance()
		right := p.parseShift()
		left = &Node{ID: p.newID(), Kind: KBinaryOp, Range: start, Op: token.OpAmp, Left: left, Comparators: []*Node{right}}
	}
	return left
}

func (p *Parser) parseShift() *Node {
	left := p.parseArith()
	for p.atOp(token.OpLShift) || p.atOp(token.OpRShift) {
		op := p.cur().Op
		start := p.cur().Range
		p.advance()
		right := p.parseArith()
		left = &Node{ID: p.newID(), Kind: KBinaryOp, Range: start, Op: op, Left: left, Comparators: []*Node{right}}
	}
	return left
}

func (p *Parser) parseArith() *Node {
	left := p.parseTerm()
	for p.atOp(token.OpPlus) || p.atOp(token.OpMinus) {
		op := p.cur().Op
		start := p.cur().Range
		p.advance()
		right := p.parseTerm()
		left = &Node{ID: p.newID(), Kind: KBinaryOp, Range: start, Op: op, Left: left, Comparators: []*Node{right}}
	}
	return left
}

func (p *Parser) parseTerm() *Node {
	left := p.parseFactor()
	for p.atOp(token.OpStar) || p.atOp(token.OpSlash) || p.atOp(token.OpDoubleSlash) ||
		p.atOp(token.OpPercent) || p.atOp(token.OpAt) {
		op := p.cur().Op
		start := p.cur().Range
		p.advance()
		right := p.parseFactor()
		left = &Node{ID: p.newID(), Kind: KBinaryOp, Range: start, Op: op, Left: left, Comparators: []*Node{right}}
	}
	return left
}

func (p *Parser) parseFactor() *Node {
	if p.atOp(token.OpPlus) || p.atOp(token.OpMinus) || p.atOp(token.OpTilde) {
		op := p.cur().Op
		start := p.cur().Range
		p.advance()
		v := p.parseFactor()
		return &Node{ID: p.newID(), Kind: KUnaryOp, Range: start, Op: op, Value: v}
	}
	return p.parsePower()
}

func (p *Parser) parsePower() *Node {
	left := p.parseAwaitUnary()
	if p.atOp(token.OpDoubleStar) {
		start := p.cur().Range
		p.advance()
		right := p.parseFactor()
		return &Node{ID: p.newID(), Kind: KBinaryOp, Range: start, Op: token.OpDoubleStar, Left: left, Comparators: []*Node{right}}
	}
	return left
}

func (p *Parser) parseAwaitUnary() *Node {
	if p.atKeyword("await") {
		start := p.cur().Range
		p.advance()
		v := p.parseAwaitUnary()
		return &Node{ID: p.newID(), Kind: KAwait, Range: start, Value: v}
	}
	return p.parseTrailer()
}

// parseTrailer parses an atom followed by any chain of call/attribute/
// subscript trailers.
func (p *Parser) parseTrailer() *Node {
	n := p.parseAtom()
	for {
		switch {
		case p.atOp(token.OpLParen):
			n = p.parseCallTrailer(n)
		case p.atOp(token.OpDot):
			start := p.cur().Range
			p.advance()
			attr, _, _ := p.expectIdent()
			n = &Node{ID: p.newID(), Kind: KAttribute, Range: start, Obj: n, Attr: attr}
		case p.atOp(token.OpLBracket):
			n = p.parseSubscriptTrailer(n)
		default:
			return n
		}
	}
}

func (p *Parser) parseCallTrailer(fn *Node) *Node {
	start := p.cur().Range
	p.advance() // '('
	n := &Node{ID: p.newID(), Kind: KCall, Range: start, Func: fn}
	for !p.atOp(token.OpRParen) && !p.at(token.EOF) {
		if p.atOp(token.OpDoubleStar) {
			p.advance()
			kw := &Node{ID: p.newID(), Kind: KKeywordArg}
			kw.Value = p.parseExpr()
			n.Keywords = append(n.Keywords, kw)
		} else if p.atOp(token.OpStar) {
			p.advance()
			v := p.parseExpr()
			n.Args = append(n.Args, &Node{ID: p.newID(), Kind: KStarred, Value: v})
		} else if p.at(token.Identifier) && p.peekIsKeywordEq() {
			kw := &Node{ID: p.newID(), Kind: KKeywordArg}
			kw.Name, _, _ = p.expectIdent()
			p.expectOp(token.OpAssign, "'='")
			kw.Value = p.parseExpr()
			n.Keywords = append(n.Keywords, kw)
		} else {
			n.Args = append(n.Args, p.parseExprOrGeneratorArg(n))
		}
		if p.atOp(token.OpComma) {
			p.advance()
			continue
		}
		break
	}
	p.expectOp(token.OpRParen, "')'")
	return n
}

// parseExprOrGeneratorArg parses a call argument, recognizing a bare
// generator expression (`f(x for x in y)`) when it is the sole argument.
func (p *Parser) parseExprOrGeneratorArg(call *Node) *Node {
	expr := p.parseExpr()
	if p.atKeyword("for") && len(call.Args) == 0 {
		return p.finishComprehension(KGeneratorExp, expr)
	}
	return expr
}

func (p *Parser) parseSubscriptTrailer(obj *Node) *Node {
	start := p.cur().Range
	p.advance() // '['
	index := p.parseSubscriptIndex()
	p.expectOp(token.OpRBracket, "']'")
	return &Node{ID: p.newID(), Kind: KSubscript, Range: start, Obj: obj, Value: index}
}

func (p *Parser) parseSubscriptIndex() *Node {
	first := p.parseSliceOrExpr()
	if !p.atOp(token.OpComma) {
		return first
	}
	elts := []*Node{first}
	for p.atOp(token.OpComma) {
		p.advance()
		if p.atOp(token.OpRBracket) {
			break
		}
		elts = append(elts, p.parseSliceOrExpr())
	}
	return &Node{ID: p.newID(), Kind: KTuple, Body: elts}
}

func (p *Parser) parseSliceOrExpr() *Node {
	start := p.cur().Range
	var lower *Node
	if !p.atOp(token.OpColon) {
		lower = p.parseExpr()
	}
	if !p.atOp(token.OpColon) {
		return lower
	}
	s := &Node{ID: p.newID(), Kind: KSlice, Range: start, Lower: lower}
	p.advance() // ':'
	if !p.atOp(token.OpColon) && !p.atOp(token.OpRBracket) && !p.atOp(token.OpComma) {
		s.Upper = p.parseExpr()
	}
	if p.atOp(token.OpColon) {
		p.advance()
		if !p.atOp(token.OpRBracket) && !p.atOp(token.OpComma) {
			s.Step = p.parseExpr()
		}
	}
	return s
}

func (p *Parser) parseAtom() *Node {
	p.skipTrivia()
	tok := p.cur()
	start := tok.Range

	switch tok.Kind {
	case token.Identifier:
		p.advance()
		return &Node{ID: p.newID(), Kind: KName, Range: start, Name: tok.Text}
	case token.Int:
		p.advance()
		return &Node{ID: p.newID(), Kind: KConstant, Range: start, ConstKind: ConstInt, IntValue: tok.IntValue}
	case token.Float:
		p.advance()
		return &Node{ID: p.newID(), Kind: KConstant, Range: start, ConstKind: ConstFloat, FloatValue: tok.FloatValue}
	case token.Imaginary:
		p.advance()
		return &Node{ID: p.newID(), Kind: KConstant, Range: start, ConstKind: ConstImaginary, FloatValue: tok.FloatValue}
	case token.String:
		return p.parseStringAtom(start)
	case token.FStringStart:
		return p.parseFString()
	}

	if tok.Kind == token.Keyword {
		switch tok.Text {
		case "True":
			p.advance()
			return &Node{ID: p.newID(), Kind: KConstant, Range: start, ConstKind: ConstBool, IntValue: 1}
		case "False":
			p.advance()
			return &Node{ID: p.newID(), Kind: KConstant, Range: start, ConstKind: ConstBool, IntValue: 0}
		case "None":
			p.advance()
			return &Node{ID: p.newID(), Kind: KConstant, Range: start, ConstKind: ConstNone}
		case "yield":
			return p.parseYield()
		case "lambda":
			return p.parseLambda()
		case "await":
			return p.parseAwaitUnary()
		}
	}

	if tok.Kind == token.Operator {
		switch tok.Op {
		case token.OpLParen:
			return p.parseParenOrTupleOrGenerator()
		case token.OpLBracket:
			return p.parseListOrComp()
		case token.OpLBrace:
			return p.parseDictOrSetOrComp()
		case token.OpEllipsis:
			p.advance()
			return &Node{ID: p.newID(), Kind: KConstant, Range: start, ConstKind: ConstEllipsis}
		}
	}

	p.errorf("unexpected token %q", tok.Text)
	p.advance()
	return p.errorNode(start)
}

func (p *Parser) parseStringAtom(start token.Range) *Node {
	tok := p.advance()
	n := &Node{
		ID: p.newID(), Kind: KConstant, Range: start,
		ConstKind:   ConstStr,
		StringValue: tok.String.Value,
		StringFlags: tok.String,
	}
	if tok.String.IsBytes {
		n.ConstKind = ConstBytes
	}
	// adjacent string literal concatenation
	for p.at(token.String) {
		t2 := p.advance()
		n.StringValue += t2.String.Value
	}
	return n
}

// parseFString re-enters the expression parser for each nested expression
// range inside an f-string, per spec.md §4.1/§4.2. The tokenizer already
// delimited the f-string as FStringStart; for simplicity the full
// interior (literal text plus `{expr}` placeholders) is re-lexed from the
// raw source text captured on the token.
func (p *Parser) parseFString() *Node {
	tok := p.advance()
	start := tok.Range
	raw := tok.String.Raw
	inner := stripFStringQuotes(raw, tok.String.Triple)

	n := &Node{ID: p.newID(), Kind: KJoinedStr, Range: start}
	lit := ""
	i := 0
	for i < len(inner) {
		c := inner[i]
		if c == '{' && i+1 < len(inner) && inner[i+1] == '{' {
			lit += "{"
			i += 2
			continue
		}
		if c == '}' && i+1 < len(inner) && inner[i+1] == '}' {
			lit += "}"
			i += 2
			continue
		}
		if c == '{' {
			if lit != "" {
				n.Parts = append(n.Parts, &Node{ID: p.newID(), Kind: KConstant, ConstKind: ConstStr, StringValue: lit})
				lit = ""
			}
			depth := 1
			j := i + 1
			for j < len(inner) && depth > 0 {
				if inner[j] == '{' {
					depth++
				} else if inner[j] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
				j++
			}
			exprSrc := inner[i+1 : j]
			conv := byte(0)
			spec := ""
			// format spec comes after the top-level ':' and must be split
			// off before looking for a '!conversion', since the spec itself
			// may contain ':' or '!' characters (e.g. nested format specs).
			if colon := indexByte(exprSrc, ':'); colon >= 0 {
				spec = exprSrc[colon+1:]
				exprSrc = exprSrc[:colon]
			}
			if bang := indexByte(exprSrc, '!'); bang >= 0 && bang+1 < len(exprSrc) {
				conv = exprSrc[bang+1]
				exprSrc = exprSrc[:bang]
			}
			sub := p.reparseExprSource(exprSrc)
			fv := &Node{ID: p.newID(), Kind: KFormattedValue, Value: sub, Conversion: conv}
			if spec != "" {
				fv.FormatSpec = &Node{ID: p.newID(), Kind: KConstant, ConstKind: ConstStr, StringValue: spec}
			}
			n.Parts = append(n.Parts, fv)
			i = j + 1
			continue
		}
		lit += string(c)
		i++
	}
	if lit != "" {
		n.Parts = append(n.Parts, &Node{ID: p.newID(), Kind: KConstant, ConstKind: ConstStr, StringValue: lit})
	}
	return n
}

func stripFStringQuotes(raw string, triple bool) string {
	// drop the prefix up to (and including) the opening quote run, and the
	// closing quote run.
	i := 0
	for i < len(raw) && raw[i] != '"' && raw[i] != '\'' {
		i++
	}
	quoteLen := 1
	if triple {
		quoteLen = 3
	}
	if i+quoteLen > len(raw) {
		return ""
	}
	body := raw[i+quoteLen:]
	if len(body) >= quoteLen {
		body = body[:len(body)-quoteLen]
	}
	return body
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// reparseExprSource tokenizes and parses a nested f-string expression
// fragment independently, preserving its own diagnostics under the same
// file name; a failure degrades to an Error node rather than aborting the
// outer parse.
func (p *Parser) reparseExprSource(src string) *Node {
	toks, _, _ := tokenizeFragment(src)
	sub := &Parser{file: p.file, toks: toks, dialect: p.dialect, nextID: p.nextID, typeIgnoreLines: map[int][]string{}}
	expr := sub.parseExpr()
	p.nextID = sub.nextID
	for _, d := range sub.diags.All() {
		p.diags.Add(d)
	}
	return expr
}

func (p *Parser) parseYield() *Node {
	start := p.cur().Range
	p.advance() // 'yield'
	if p.atKeyword("from") {
		p.advance()
		v := p.parseExpr()
		return &Node{ID: p.newID(), Kind: KYieldFrom, Range: start, Value: v}
	}
	n := &Node{ID: p.newID(), Kind: KYield, Range: start}
	if !p.atStmtEnd() && !p.atOp(token.OpRParen) {
		n.Value = p.parseExprOrTupleList()
	}
	return n
}

// parseParenOrTupleOrGenerator handles `(expr)`, `()`, `(a, b)`, and
// `(x for x in y)`. Parenthesized "starred" targets in assignments are
// recognized through parseTarget, not here.
func (p *Parser) parseParenOrTupleOrGenerator() *Node {
	start := p.cur().Range
	p.advance() // '('
	if p.atOp(token.OpRParen) {
		p.advance()
		return &Node{ID: p.newID(), Kind: KTuple, Range: start}
	}
	first := p.parseExprAllowStarred()
	if p.atKeyword("for") {
		n := p.finishComprehension(KGeneratorExp, first)
		p.expectOp(token.OpRParen, "')'")
		return n
	}
	if !p.atOp(token.OpComma) {
		p.expectOp(token.OpRParen, "')'")
		return first // parenthesized single expr: ranges still nest correctly
	}
	elts := []*Node{first}
	for p.atOp(token.OpComma) {
		p.advance()
		if p.atOp(token.OpRParen) {
			break
		}
		elts = append(elts, p.parseExprAllowStarred())
	}
	p.expectOp(token.OpRParen, "')'")
	return &Node{ID: p.newID(), Kind: KTuple, Range: start, Body: elts}
}

func (p *Parser) parseListOrComp() *Node {
	start := p.cur().Range
	p.advance() // '['
	if p.atOp(token.OpRBracket) {
		p.advance()
		return &Node{ID: p.newID(), Kind: KList, Range: start}
	}
	first := p.parseExprAllowStarred()
	if p.atKeyword("for") {
		n := p.finishComprehension(KListComp, first)
		p.expectOp(token.OpRBracket, "']'")
		return n
	}
	elts := []*Node{first}
	for p.atOp(token.OpComma) {
		p.advance()
		if p.atOp(token.OpRBracket) {
			break
		}
		elts = append(elts, p.parseExprAllowStarred())
	}
	p.expectOp(token.OpRBracket, "']'")
	return &Node{ID: p.newID(), Kind: KList, Range: start, Body: elts}
}

func (p *Parser) parseDictOrSetOrComp() *Node {
	start := p.cur().Range
	p.advance() // '{'
	if p.atOp(token.OpRBrace) {
		p.advance()
		return &Node{ID: p.newID(), Kind: KDict, Range: start}
	}
	if p.atOp(token.OpDoubleStar) {
		p.advance()
		first := p.parseOr()
		return p.finishDict(start, nil, first)
	}
	firstKeyOrElt := p.parseExprAllowStarred()
	if p.atOp(token.OpColon) {
		p.advance()
		firstVal := p.parseExpr()
		if p.atKeyword("for") {
			pair := &Node{ID: p.newID(), Kind: KDictComp, Target: firstKeyOrElt, Value: firstVal}
			n := p.finishComprehensionDict(pair)
			p.expectOp(token.OpRBrace, "'}'")
			return n
		}
		return p.finishDict(start, []*Node{firstKeyOrElt}, firstVal)
	}
	if p.atKeyword("for") {
		n := p.finishComprehension(KSetComp, firstKeyOrElt)
		p.expectOp(token.OpRBrace, "'}'")
		return n
	}
	elts := []*Node{firstKeyOrElt}
	for p.atOp(token.OpComma) {
		p.advance()
		if p.atOp(token.OpRBrace) {
			break
		}
		elts = append(elts, p.parseExprAllowStarred())
	}
	p.expectOp(token.OpRBrace, "'}'")
	return &Node{ID: p.newID(), Kind: KSet, Range: start, Body: elts}
}

func (p *Parser) finishDict(start token.Range, keys []*Node, firstVal *Node) *Node {
	n := &Node{ID: p.newID(), Kind: KDict, Range: start}
	n.Keys = keys
	n.Body = []*Node{firstVal}
	for p.atOp(token.OpComma) {
		p.advance()
		if p.atOp(token.OpRBrace) {
			break
		}
		if p.atOp(token.OpDoubleStar) {
			p.advance()
			v := p.parseOr()
			n.Keys = append(n.Keys, nil)
			n.Body = append(n.Body, v)
			continue
		}
		k := p.parseExpr()
		p.expectOp(token.OpColon, "':'")
		v := p.parseExpr()
		n.Keys = append(n.Keys, k)
		n.Body = append(n.Body, v)
	}
	p.expectOp(token.OpRBrace, "'}'")
	return n
}

func (p *Parser) parseOr() *Node { return p.parseOrTest() }

// finishComprehension parses the `for target in iter (if cond)*` clauses
// trailing a just-parsed element expression.
func (p *Parser) finishComprehension(kind Kind, elt *Node) *Node {
	n := &Node{ID: p.newID(), Kind: kind, Value: elt}
	for p.atKeyword("for") || p.atKeyword("async") {
		async := false
		if p.atKeyword("async") {
			p.advance()
			async = true
		}
		p.expectKeyword("for")
		clause := &Node{ID: p.newID(), Kind: KComprehension, Async: async}
		clause.Target = p.parseTargetList()
		p.expectKeyword("in")
		clause.Iter = p.parseOrTest()
		for p.atKeyword("if") {
			p.advance()
			clause.Ifs = append(clause.Ifs, p.parseOrTest())
		}
		n.Body = append(n.Body, clause)
	}
	return n
}

func (p *Parser) finishComprehensionDict(pair *Node) *Node {
	n := pair
	for p.atKeyword("for") || p.atKeyword("async") {
		async := false
		if p.atKeyword("async") {
			p.advance()
			async = true
		}
		p.expectKeyword("for")
		clause := &Node{ID: p.newID(), Kind: KComprehension, Async: async}
		clause.Target = p.parseTargetList()
		p.expectKeyword("in")
		clause.Iter = p.parseOrTest()
		for p.atKeyword("if") {
			p.advance()
			clause.Ifs = append(clause.Ifs, p.parseOrTest())
		}
		n.Body = append(n.Body, clause)
	}
	return n
}

// tokenizeFragment lexes an isolated expression fragment (used for f-string
// interiors) with the ordinary tokenizer, under the file name "<fstring>".
func tokenizeFragment(src string) ([]token.Token, []int, []diagnostic.Diagnostic) {
	return token.Tokenize("<fstring>", []byte(src))
}
