package jsdata

import (
	"fmt"
)

type node interface {
	pos() int
}

type (
	literalNode struct {
		offset int
		value  any
	}
	identNode struct {
		offset int
		name   string
	}
	memberNode struct {
		offset int
		object node
		// property is used when computed is nil
		property string
		computed node
	}
	callNode struct {
		offset int
		callee node
		args   []node
	}
	objectNode struct {
		offset int
		keys   []string
		values []node
	}
	arrayNode struct {
		offset   int
		elements []node
	}
	unaryNode struct {
		offset   int
		operator string
		operand  node
	}
	assignNode struct {
		offset int
		target node
		value  node
	}
	declNode struct {
		offset int
		name   string
		// value is nil for `var x;`
		value node
	}
	exprStmt struct {
		offset int
		expr   node
	}
)

func (n literalNode) pos() int { return n.offset }
func (n identNode) pos() int   { return n.offset }
func (n memberNode) pos() int  { return n.offset }
func (n callNode) pos() int    { return n.offset }
func (n objectNode) pos() int  { return n.offset }
func (n arrayNode) pos() int   { return n.offset }
func (n unaryNode) pos() int   { return n.offset }
func (n assignNode) pos() int  { return n.offset }
func (n declNode) pos() int    { return n.offset }
func (n exprStmt) pos() int    { return n.offset }

// maxDepth bounds expression nesting so hostile input cannot exhaust the stack.
const maxDepth = 512

type parser struct {
	tokens []token
	pos    int
	depth  int
}

func parseProgram(src string) ([]node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.program()
}

// parseReference parses a variable reference such as `lessonJSONs` or
// `window.lessonId2Counts`.
func parseReference(src string) (node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	ident := p.peek()
	if ident.kind != tokenIdent {
		return nil, p.unexpected(ident)
	}
	p.advance()

	var ref node = identNode{offset: ident.offset, name: ident.text}
	for p.isPunct(".") {
		dot := p.advance()
		prop := p.peek()
		if prop.kind != tokenIdent {
			return nil, p.unexpected(prop)
		}
		p.advance()
		ref = memberNode{offset: dot.offset, object: ref, property: prop.text}
	}
	if p.peek().kind != tokenEOF {
		return nil, p.unexpected(p.peek())
	}
	return ref, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isPunct(text string) bool {
	tok := p.peek()
	return tok.kind == tokenPunct && tok.text == text
}

func (p *parser) isKeyword(word string) bool {
	tok := p.peek()
	return tok.kind == tokenIdent && tok.text == word
}

func (p *parser) expectPunct(text string) (token, error) {
	if !p.isPunct(text) {
		return token{}, &SyntaxError{
			Offset:  p.peek().offset,
			Message: fmt.Sprintf("expected %q but got %s", text, p.peek()),
		}
	}
	return p.advance(), nil
}

func (p *parser) unexpected(tok token) error {
	return &SyntaxError{Offset: tok.offset, Message: fmt.Sprintf("unexpected %s", tok)}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return &SyntaxError{Offset: p.peek().offset, Message: "expression nested too deeply"}
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

var unsupportedKeywords = map[string]bool{
	"function": true, "if": true, "for": true, "while": true, "do": true,
	"return": true, "new": true, "class": true, "switch": true, "try": true,
	"throw": true, "delete": true, "typeof": true, "import": true, "export": true,
	"with": true, "this": true,
}

func (p *parser) program() ([]node, error) {
	var statements []node
	for p.peek().kind != tokenEOF {
		if p.isPunct(";") {
			p.advance()
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmts...)
	}
	return statements, nil
}

func (p *parser) statement() ([]node, error) {
	tok := p.peek()
	if tok.kind == tokenIdent && unsupportedKeywords[tok.text] {
		return nil, &SyntaxError{Offset: tok.offset, Message: fmt.Sprintf("unsupported statement %q", tok.text)}
	}

	var statements []node
	if p.isKeyword("var") || p.isKeyword("let") || p.isKeyword("const") {
		p.advance()
		for {
			name := p.peek()
			if name.kind != tokenIdent {
				return nil, p.unexpected(name)
			}
			p.advance()

			decl := declNode{offset: name.offset, name: name.text}
			if p.isPunct("=") {
				p.advance()
				value, err := p.expression()
				if err != nil {
					return nil, err
				}
				decl.value = value
			}
			statements = append(statements, decl)

			if !p.isPunct(",") {
				break
			}
			p.advance()
		}
	} else {
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		statements = append(statements, exprStmt{offset: tok.offset, expr: expr})
	}

	err := p.endOfStatement()
	if err != nil {
		return nil, err
	}
	return statements, nil
}

// endOfStatement implements the subset of automatic semicolon insertion
// needed by the portal's scripts.
func (p *parser) endOfStatement() error {
	next := p.peek()
	switch {
	case p.isPunct(";"):
		p.advance()
		return nil
	case next.kind == tokenEOF, next.newlineBefore:
		return nil
	}
	return p.unexpected(next)
}

func (p *parser) expression() (node, error) {
	err := p.enter()
	if err != nil {
		return nil, err
	}
	defer p.leave()

	start := p.peek()
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	if !p.isPunct("=") {
		return left, nil
	}

	switch left.(type) {
	case identNode, memberNode:
	default:
		return nil, &SyntaxError{Offset: start.offset, Message: "invalid assignment target"}
	}
	eq := p.advance()
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	return assignNode{offset: eq.offset, target: left, value: value}, nil
}

func (p *parser) unary() (node, error) {
	tok := p.peek()
	if tok.kind == tokenPunct && (tok.text == "-" || tok.text == "+" || tok.text == "!") {
		err := p.enter()
		if err != nil {
			return nil, err
		}
		defer p.leave()

		p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unaryNode{offset: tok.offset, operator: tok.text, operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (node, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		switch {
		case p.isPunct("."):
			p.advance()
			prop := p.peek()
			if prop.kind != tokenIdent {
				return nil, p.unexpected(prop)
			}
			p.advance()
			expr = memberNode{offset: tok.offset, object: expr, property: prop.text}
		case p.isPunct("["):
			p.advance()
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			_, err = p.expectPunct("]")
			if err != nil {
				return nil, err
			}
			expr = memberNode{offset: tok.offset, object: expr, computed: index}
		case p.isPunct("("):
			p.advance()
			args, err := p.list(")")
			if err != nil {
				return nil, err
			}
			expr = callNode{offset: tok.offset, callee: expr, args: args}
		default:
			return expr, nil
		}
	}
}

// list parses comma separated expressions up to and including the closing punctuator,
// a trailing comma is allowed.
func (p *parser) list(closing string) ([]node, error) {
	var items []node
	for !p.isPunct(closing) {
		item, err := p.expression()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		if !p.isPunct(closing) {
			return nil, p.unexpected(p.peek())
		}
	}
	p.advance()
	return items, nil
}

func (p *parser) primary() (node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokenNumber:
		p.advance()
		return literalNode{offset: tok.offset, value: tok.number}, nil
	case tokenString:
		p.advance()
		return literalNode{offset: tok.offset, value: tok.text}, nil
	case tokenIdent:
		switch tok.text {
		case "true":
			p.advance()
			return literalNode{offset: tok.offset, value: true}, nil
		case "false":
			p.advance()
			return literalNode{offset: tok.offset, value: false}, nil
		case "null":
			p.advance()
			return literalNode{offset: tok.offset, value: nil}, nil
		case "undefined":
			p.advance()
			return literalNode{offset: tok.offset, value: Undefined}, nil
		}
		if unsupportedKeywords[tok.text] {
			return nil, &SyntaxError{Offset: tok.offset, Message: fmt.Sprintf("unsupported expression %q", tok.text)}
		}
		p.advance()
		return identNode{offset: tok.offset, name: tok.text}, nil
	case tokenPunct:
		switch tok.text {
		case "(":
			p.advance()
			expr, err := p.expression()
			if err != nil {
				return nil, err
			}
			_, err = p.expectPunct(")")
			if err != nil {
				return nil, err
			}
			return expr, nil
		case "[":
			return p.array()
		case "{":
			return p.object()
		}
	}
	return nil, p.unexpected(tok)
}

func (p *parser) array() (node, error) {
	err := p.enter()
	if err != nil {
		return nil, err
	}
	defer p.leave()

	open := p.advance()
	elements, err := p.list("]")
	if err != nil {
		return nil, err
	}
	return arrayNode{offset: open.offset, elements: elements}, nil
}

func (p *parser) object() (node, error) {
	err := p.enter()
	if err != nil {
		return nil, err
	}
	defer p.leave()

	open := p.advance()
	obj := objectNode{offset: open.offset}
	for !p.isPunct("}") {
		keyTok := p.peek()
		var key string
		switch keyTok.kind {
		case tokenIdent, tokenString:
			key = keyTok.text
		case tokenNumber:
			key = formatNumber(keyTok.number)
		default:
			return nil, p.unexpected(keyTok)
		}
		p.advance()

		_, err := p.expectPunct(":")
		if err != nil {
			return nil, err
		}
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		obj.keys = append(obj.keys, key)
		obj.values = append(obj.values, value)

		if p.isPunct(",") {
			p.advance()
			continue
		}
		if !p.isPunct("}") {
			return nil, p.unexpected(p.peek())
		}
	}
	p.advance()
	return obj, nil
}
