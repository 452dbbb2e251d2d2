// Package parser implements the xq filter language parser.
//
// The parser is a hand-written recursive descent over the token stream
// produced by the Lexer. It builds the immutable program tree the evaluator
// executes and reports syntax errors with source positions.
//
// # Example
//
//	expr, err := parser.Parse(".items[] | .price")
//	if err != nil {
//	    log.Fatal(err)
//	}
package parser

import (
	"fmt"

	"github.com/jayvdb/xq/pkg/types"
)

// ParseError is a syntax error with the offending source position.
type ParseError struct {
	Pos int
	Msg string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Msg)
}

// Parse compiles a query string into an Expression.
func Parse(query string) (*types.Expression, error) {
	p := &parser{lexer: NewLexer(query)}
	p.advance()
	root, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != TokenEOF {
		return nil, p.unexpected("end of query")
	}
	return types.NewExpression(root, query), nil
}

// Compile is an alias for Parse, for API symmetry with the root package.
func Compile(query string) (*types.Expression, error) {
	return Parse(query)
}

type parser struct {
	lexer  *Lexer
	tok    Token
	peeked *Token
}

func (p *parser) advance() {
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return
	}
	p.tok = p.lexer.Next()
}

func (p *parser) peek() Token {
	if p.peeked == nil {
		t := p.lexer.Next()
		p.peeked = &t
	}
	return *p.peeked
}

func (p *parser) errf(pos int, format string, args ...interface{}) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected(wanted string) error {
	if p.tok.Type == TokenError {
		return &ParseError{Pos: p.tok.Pos, Msg: p.tok.Text}
	}
	return p.errf(p.tok.Pos, "expected %s but found %s", wanted, p.tok)
}

func (p *parser) expect(tt TokenType, what string) (Token, error) {
	if p.tok.Type != tt {
		return Token{}, p.unexpected(what)
	}
	t := p.tok
	p.advance()
	return t, nil
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.Type == TokenName && p.tok.Text == kw
}

// parsePipe parses the lowest-precedence level: function definitions,
// `E as $x | B` bindings and `A | B` pipes (right-associative).
func (p *parser) parsePipe() (*types.Node, error) {
	if p.isKeyword("def") {
		return p.parseFuncDef()
	}
	lhs, err := p.parseComma()
	if err != nil {
		return nil, err
	}
	if p.tok.Type == TokenPipe {
		pos := p.tok.Pos
		p.advance()
		rhs, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		n := types.NewNode(types.NodePipe, pos)
		n.LHS, n.RHS = lhs, rhs
		return n, nil
	}
	return lhs, nil
}

// parseFuncDef parses `def name(a; b): body; rest`.
func (p *parser) parseFuncDef() (*types.Node, error) {
	pos := p.tok.Pos
	p.advance() // def
	name, err := p.expect(TokenName, "a function name")
	if err != nil {
		return nil, err
	}
	var params []string
	if p.tok.Type == TokenParenOpen {
		p.advance()
		for {
			param, err := p.expect(TokenName, "a parameter name")
			if err != nil {
				return nil, err
			}
			params = append(params, param.Text)
			if p.tok.Type != TokenSemicolon {
				break
			}
			p.advance()
		}
		if _, err := p.expect(TokenParenClose, "')'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenColon, "':'"); err != nil {
		return nil, err
	}
	body, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon, "';'"); err != nil {
		return nil, err
	}
	rest, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	n := types.NewNode(types.NodeFuncDef, pos)
	n.Str = name.Text
	n.Params = params
	n.Body = body
	n.RHS = rest
	return n, nil
}

// parseComma parses `A , B , C` as a left-leaning chain; each operand may be
// an `as` binding that consumes the rest of the pipeline.
func (p *parser) parseComma() (*types.Node, error) {
	lhs, err := p.parseBindTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == TokenComma {
		pos := p.tok.Pos
		p.advance()
		rhs, err := p.parseBindTerm()
		if err != nil {
			return nil, err
		}
		n := types.NewNode(types.NodeComma, pos)
		n.LHS, n.RHS = lhs, rhs
		lhs = n
	}
	return lhs, nil
}

func (p *parser) parseBindTerm() (*types.Node, error) {
	e, err := p.parseAlt()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("as") {
		return e, nil
	}
	pos := p.tok.Pos
	p.advance()
	v, err := p.expect(TokenVariable, "a variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenPipe, "'|'"); err != nil {
		return nil, err
	}
	body, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	n := types.NewNode(types.NodeBind, pos)
	n.Str = v.Text
	n.LHS = e
	n.RHS = body
	return n, nil
}

func (p *parser) parseAlt() (*types.Node, error) {
	return p.parseBinaryChain(
		func() (*types.Node, error) { return p.parseOr() },
		func() (string, bool) {
			if p.tok.Type == TokenAlt {
				return "//", true
			}
			return "", false
		},
	)
}

func (p *parser) parseOr() (*types.Node, error) {
	return p.parseBinaryChain(
		func() (*types.Node, error) { return p.parseAnd() },
		func() (string, bool) {
			if p.isKeyword("or") {
				return "or", true
			}
			return "", false
		},
	)
}

func (p *parser) parseAnd() (*types.Node, error) {
	return p.parseBinaryChain(
		func() (*types.Node, error) { return p.parseCompare() },
		func() (string, bool) {
			if p.isKeyword("and") {
				return "and", true
			}
			return "", false
		},
	)
}

func (p *parser) parseBinaryChain(next func() (*types.Node, error), match func() (string, bool)) (*types.Node, error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := match()
		if !ok {
			return lhs, nil
		}
		pos := p.tok.Pos
		p.advance()
		rhs, err := next()
		if err != nil {
			return nil, err
		}
		n := types.NewNode(types.NodeBinary, pos)
		n.Str = op
		n.LHS, n.RHS = lhs, rhs
		lhs = n
	}
}

var compareOps = map[TokenType]string{
	TokenEqual:        "==",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
}

// parseCompare parses a non-associative comparison.
func (p *parser) parseCompare() (*types.Node, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := compareOps[p.tok.Type]
	if !ok {
		return lhs, nil
	}
	pos := p.tok.Pos
	p.advance()
	rhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	n := types.NewNode(types.NodeBinary, pos)
	n.Str = op
	n.LHS, n.RHS = lhs, rhs
	return n, nil
}

func (p *parser) parseAdditive() (*types.Node, error) {
	return p.parseBinaryChain(
		func() (*types.Node, error) { return p.parseMultiplicative() },
		func() (string, bool) {
			switch p.tok.Type {
			case TokenPlus:
				return "+", true
			case TokenMinus:
				return "-", true
			}
			return "", false
		},
	)
}

func (p *parser) parseMultiplicative() (*types.Node, error) {
	return p.parseBinaryChain(
		func() (*types.Node, error) { return p.parseUnary() },
		func() (string, bool) {
			switch p.tok.Type {
			case TokenMult:
				return "*", true
			case TokenDiv:
				return "/", true
			case TokenMod:
				return "%", true
			}
			return "", false
		},
	)
}

func (p *parser) parseUnary() (*types.Node, error) {
	if p.tok.Type == TokenMinus {
		pos := p.tok.Pos
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := types.NewNode(types.NodeUnary, pos)
		n.Str = "-"
		n.RHS = operand
		return n, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary followed by any chain of `.name`, `[...]`
// and `?` suffixes.
func (p *parser) parsePostfix() (*types.Node, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parseSuffixes(e)
}

func (p *parser) parseSuffixes(e *types.Node) (*types.Node, error) {
	for {
		switch p.tok.Type {
		case TokenDot:
			if p.peek().Type != TokenName {
				return e, nil
			}
			pos := p.tok.Pos
			p.advance()
			name := p.tok
			p.advance()
			e = fieldIndex(e, name.Text, pos)
		case TokenBracketOpen:
			var err error
			e, err = p.parseBracketSuffix(e)
			if err != nil {
				return nil, err
			}
		case TokenQuestion:
			n := types.NewNode(types.NodeTry, p.tok.Pos)
			n.LHS = e
			p.advance()
			e = n
		default:
			return e, nil
		}
	}
}

func fieldIndex(base *types.Node, name string, pos int) *types.Node {
	key := types.NewNode(types.NodeLiteral, pos)
	key.Literal = types.String(name)
	n := types.NewNode(types.NodeIndex, pos)
	n.LHS = base
	n.Key = key
	return n
}

// parseBracketSuffix parses `[]`, `[e]`, `[a:b]`, `[:b]` and `[a:]`.
func (p *parser) parseBracketSuffix(base *types.Node) (*types.Node, error) {
	pos := p.tok.Pos
	p.advance() // '['

	switch p.tok.Type {
	case TokenBracketClose:
		p.advance()
		n := types.NewNode(types.NodeIterate, pos)
		n.LHS = base
		return n, nil
	case TokenColon:
		p.advance()
		end, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenBracketClose, "']'"); err != nil {
			return nil, err
		}
		n := types.NewNode(types.NodeSlice, pos)
		n.LHS = base
		n.End = end
		return n, nil
	}

	first, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	switch p.tok.Type {
	case TokenBracketClose:
		p.advance()
		n := types.NewNode(types.NodeIndex, pos)
		n.LHS = base
		n.Key = first
		return n, nil
	case TokenColon:
		p.advance()
		var end *types.Node
		if p.tok.Type != TokenBracketClose {
			end, err = p.parsePipe()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(TokenBracketClose, "']'"); err != nil {
			return nil, err
		}
		n := types.NewNode(types.NodeSlice, pos)
		n.LHS = base
		n.Start = first
		n.End = end
		return n, nil
	default:
		return nil, p.unexpected("']' or ':'")
	}
}

func (p *parser) parsePrimary() (*types.Node, error) {
	pos := p.tok.Pos
	switch p.tok.Type {
	case TokenNumber:
		n := types.NewNode(types.NodeLiteral, pos)
		n.Literal = types.Number(p.tok.Num)
		p.advance()
		return n, nil
	case TokenString:
		n := types.NewNode(types.NodeLiteral, pos)
		n.Literal = types.String(p.tok.Text)
		p.advance()
		return n, nil
	case TokenDot:
		p.advance()
		if p.tok.Type == TokenName {
			name := p.tok
			p.advance()
			return fieldIndex(types.NewNode(types.NodeIdentity, pos), name.Text, pos), nil
		}
		return types.NewNode(types.NodeIdentity, pos), nil
	case TokenVariable:
		n := types.NewNode(types.NodeVariable, pos)
		n.Str = p.tok.Text
		p.advance()
		return n, nil
	case TokenParenOpen:
		p.advance()
		inner, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenParenClose, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenBracketOpen:
		return p.parseArrayConstruct()
	case TokenBraceOpen:
		return p.parseObjectConstruct()
	case TokenName:
		return p.parseNamePrimary()
	case TokenError:
		return nil, &ParseError{Pos: p.tok.Pos, Msg: p.tok.Text}
	default:
		return nil, p.unexpected("a filter expression")
	}
}

func (p *parser) parseNamePrimary() (*types.Node, error) {
	pos := p.tok.Pos
	name := p.tok.Text
	switch name {
	case "true", "false":
		n := types.NewNode(types.NodeLiteral, pos)
		n.Literal = types.Bool(name == "true")
		p.advance()
		return n, nil
	case "null":
		n := types.NewNode(types.NodeLiteral, pos)
		n.Literal = types.NullValue
		p.advance()
		return n, nil
	case "if":
		return p.parseIf()
	case "try":
		return p.parseTry()
	case "def":
		return p.parseFuncDef()
	case "then", "elif", "else", "end", "catch", "as", "and", "or":
		return nil, p.errf(pos, "unexpected keyword %q", name)
	}

	p.advance()
	n := types.NewNode(types.NodeCall, pos)
	n.Str = name
	if p.tok.Type == TokenParenOpen {
		p.advance()
		for {
			arg, err := p.parsePipe()
			if err != nil {
				return nil, err
			}
			n.Args = append(n.Args, arg)
			if p.tok.Type != TokenSemicolon {
				break
			}
			p.advance()
		}
		if _, err := p.expect(TokenParenClose, "')'"); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *parser) parseIf() (*types.Node, error) {
	pos := p.tok.Pos
	p.advance() // if
	cond, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("then") {
		return nil, p.unexpected("'then'")
	}
	p.advance()
	then, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	n := types.NewNode(types.NodeIf, pos)
	n.Cond = cond
	n.Then = then
	switch {
	case p.isKeyword("elif"):
		// Desugar `elif` to a nested conditional in the else branch.
		elsePart, err := p.parseIf() // reuses the elif token as its `if`
		if err != nil {
			return nil, err
		}
		n.Else = elsePart
		return n, nil
	case p.isKeyword("else"):
		p.advance()
		elsePart, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		n.Else = elsePart
	}
	if !p.isKeyword("end") {
		return nil, p.unexpected("'end'")
	}
	p.advance()
	return n, nil
}

func (p *parser) parseTry() (*types.Node, error) {
	pos := p.tok.Pos
	p.advance() // try
	body, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	n := types.NewNode(types.NodeTry, pos)
	n.LHS = body
	if p.isKeyword("catch") {
		p.advance()
		handler, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n.RHS = handler
	}
	return n, nil
}

func (p *parser) parseArrayConstruct() (*types.Node, error) {
	pos := p.tok.Pos
	p.advance() // '['
	n := types.NewNode(types.NodeArray, pos)
	if p.tok.Type == TokenBracketClose {
		p.advance()
		return n, nil
	}
	inner, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenBracketClose, "']'"); err != nil {
		return nil, err
	}
	n.LHS = inner
	return n, nil
}

func (p *parser) parseObjectConstruct() (*types.Node, error) {
	pos := p.tok.Pos
	p.advance() // '{'
	n := types.NewNode(types.NodeObject, pos)
	if p.tok.Type == TokenBraceClose {
		p.advance()
		return n, nil
	}
	for {
		entry, err := p.parseObjectEntry()
		if err != nil {
			return nil, err
		}
		n.Entries = append(n.Entries, entry)
		if p.tok.Type != TokenComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(TokenBraceClose, "'}'"); err != nil {
		return nil, err
	}
	return n, nil
}

// parseObjectEntry parses one `key: value` field. Keys may be identifiers,
// strings or parenthesized expressions; `{name}`, `{"name"}` and `{$var}`
// shorthands are supported.
func (p *parser) parseObjectEntry() (types.ObjectEntry, error) {
	var key *types.Node
	var shorthand *types.Node

	pos := p.tok.Pos
	switch p.tok.Type {
	case TokenName, TokenString:
		key = types.NewNode(types.NodeLiteral, pos)
		key.Literal = types.String(p.tok.Text)
		shorthand = fieldIndex(types.NewNode(types.NodeIdentity, pos), p.tok.Text, pos)
		p.advance()
	case TokenVariable:
		key = types.NewNode(types.NodeLiteral, pos)
		key.Literal = types.String(p.tok.Text)
		shorthand = types.NewNode(types.NodeVariable, pos)
		shorthand.Str = p.tok.Text
		p.advance()
	case TokenParenOpen:
		p.advance()
		inner, err := p.parsePipe()
		if err != nil {
			return types.ObjectEntry{}, err
		}
		if _, err := p.expect(TokenParenClose, "')'"); err != nil {
			return types.ObjectEntry{}, err
		}
		key = inner
	default:
		return types.ObjectEntry{}, p.unexpected("an object key")
	}

	if p.tok.Type != TokenColon {
		if shorthand == nil {
			return types.ObjectEntry{}, p.unexpected("':'")
		}
		return types.ObjectEntry{Key: key, Value: shorthand}, nil
	}
	p.advance()
	value, err := p.parseAlt()
	if err != nil {
		return types.ObjectEntry{}, err
	}
	return types.ObjectEntry{Key: key, Value: value}, nil
}
