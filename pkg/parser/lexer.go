package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// Lexer converts a filter query into a sequence of tokens.
type Lexer struct {
	input   string
	current int
}

// NewLexer creates a lexer over input. Tokens are produced by successive
// calls to Next.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token. Once the input is exhausted, every call
// returns TokenEOF.
func (l *Lexer) Next() Token {
	l.skipWhitespaceAndComments()

	pos := l.current
	if l.current >= len(l.input) {
		return Token{Type: TokenEOF, Pos: pos}
	}

	ch := l.input[l.current]

	if l.current+1 < len(l.input) {
		if tt, ok := symbol2[l.input[l.current:l.current+2]]; ok {
			l.current += 2
			return Token{Type: tt, Text: l.input[pos : pos+2], Pos: pos}
		}
	}
	if tt, ok := symbol1[ch]; ok {
		l.current++
		return Token{Type: tt, Text: l.input[pos : pos+1], Pos: pos}
	}

	switch {
	case ch == '"':
		return l.scanString(pos)
	case ch >= '0' && ch <= '9':
		return l.scanNumber(pos)
	case ch == '$':
		l.current++
		name := l.scanIdent()
		if name == "" {
			return l.errorToken(pos, "expected a variable name after '$'")
		}
		return Token{Type: TokenVariable, Text: name, Pos: pos}
	case isIdentStart(rune(ch)):
		name := l.scanIdent()
		return Token{Type: TokenName, Text: name, Pos: pos}
	default:
		r, _ := utf8.DecodeRuneInString(l.input[l.current:])
		return l.errorToken(pos, fmt.Sprintf("unexpected character %q", r))
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.current < len(l.input) {
		ch := l.input[l.current]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.current++
		case ch == '#':
			for l.current < len(l.input) && l.input[l.current] != '\n' {
				l.current++
			}
		default:
			return
		}
	}
}

func (l *Lexer) scanIdent() string {
	start := l.current
	for l.current < len(l.input) {
		r, w := utf8.DecodeRuneInString(l.input[l.current:])
		if !isIdentPart(r) {
			break
		}
		l.current += w
	}
	return l.input[start:l.current]
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *Lexer) scanNumber(pos int) Token {
	start := l.current
	for l.current < len(l.input) && isDigit(l.input[l.current]) {
		l.current++
	}
	if l.current < len(l.input) && l.input[l.current] == '.' &&
		l.current+1 < len(l.input) && isDigit(l.input[l.current+1]) {
		l.current++
		for l.current < len(l.input) && isDigit(l.input[l.current]) {
			l.current++
		}
	}
	if l.current < len(l.input) && (l.input[l.current] == 'e' || l.input[l.current] == 'E') {
		mark := l.current
		l.current++
		if l.current < len(l.input) && (l.input[l.current] == '+' || l.input[l.current] == '-') {
			l.current++
		}
		if l.current < len(l.input) && isDigit(l.input[l.current]) {
			for l.current < len(l.input) && isDigit(l.input[l.current]) {
				l.current++
			}
		} else {
			l.current = mark
		}
	}
	text := l.input[start:l.current]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return l.errorToken(pos, fmt.Sprintf("invalid number %q", text))
	}
	return Token{Type: TokenNumber, Num: n, Text: text, Pos: pos}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func (l *Lexer) scanString(pos int) Token {
	l.current++ // opening quote
	var b strings.Builder
	for l.current < len(l.input) {
		ch := l.input[l.current]
		switch ch {
		case '"':
			l.current++
			return Token{Type: TokenString, Text: b.String(), Pos: pos}
		case '\\':
			l.current++
			if l.current >= len(l.input) {
				return l.errorToken(pos, "unterminated string literal")
			}
			esc := l.input[l.current]
			l.current++
			switch esc {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case '/':
				b.WriteByte('/')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				r, ok := l.scanUnicodeEscape()
				if !ok {
					return l.errorToken(pos, "invalid \\u escape")
				}
				b.WriteRune(r)
			default:
				return l.errorToken(pos, fmt.Sprintf("unsupported escape \\%c", esc))
			}
		default:
			r, w := utf8.DecodeRuneInString(l.input[l.current:])
			b.WriteRune(r)
			l.current += w
		}
	}
	return l.errorToken(pos, "unterminated string literal")
}

// scanUnicodeEscape reads the 4 hex digits of a \uXXXX escape, pairing UTF-16
// surrogates when a second escape follows.
func (l *Lexer) scanUnicodeEscape() (rune, bool) {
	u1, ok := l.scanHex4()
	if !ok {
		return 0, false
	}
	if utf16.IsSurrogate(rune(u1)) &&
		l.current+1 < len(l.input) && l.input[l.current] == '\\' && l.input[l.current+1] == 'u' {
		mark := l.current
		l.current += 2
		if u2, ok := l.scanHex4(); ok {
			if r := utf16.DecodeRune(rune(u1), rune(u2)); r != utf8.RuneError {
				return r, true
			}
		}
		l.current = mark
	}
	if utf16.IsSurrogate(rune(u1)) {
		return utf8.RuneError, true
	}
	return rune(u1), true
}

func (l *Lexer) scanHex4() (uint32, bool) {
	if l.current+4 > len(l.input) {
		return 0, false
	}
	v, err := strconv.ParseUint(l.input[l.current:l.current+4], 16, 32)
	if err != nil {
		return 0, false
	}
	l.current += 4
	return uint32(v), true
}

func (l *Lexer) errorToken(pos int, msg string) Token {
	l.current = len(l.input) // stop producing tokens
	return Token{Type: TokenError, Text: msg, Pos: pos}
}
