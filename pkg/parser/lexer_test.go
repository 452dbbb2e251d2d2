package parser

import "testing"

func lex(t *testing.T, input string) []Token {
	t.Helper()
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.Next()
		if tok.Type == TokenEOF {
			return toks
		}
		toks = append(toks, tok)
		if tok.Type == TokenError {
			return toks
		}
	}
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{"identity", `.`, []TokenType{TokenDot}},
		{"field chain", `.a.b`, []TokenType{TokenDot, TokenName, TokenDot, TokenName}},
		{"pipe and comma", `. | ., .`, []TokenType{TokenDot, TokenPipe, TokenDot, TokenComma, TokenDot}},
		{"two-char before one-char", `1 // 2`, []TokenType{TokenNumber, TokenAlt, TokenNumber}},
		{"division stays one char", `1 / 2`, []TokenType{TokenNumber, TokenDiv, TokenNumber}},
		{"comparisons", `1 <= 2 == 3 != 4`, []TokenType{TokenNumber, TokenLessEqual, TokenNumber, TokenEqual, TokenNumber, TokenNotEqual, TokenNumber}},
		{"variable", `$foo`, []TokenType{TokenVariable}},
		{"comment to end of line", ". # trailing\n.", []TokenType{TokenDot, TokenDot}},
		{"brackets and braces", `[{}]`, []TokenType{TokenBracketOpen, TokenBraceOpen, TokenBraceClose, TokenBracketClose}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lex(t, tt.input)
			if len(toks) != len(tt.want) {
				t.Fatalf("got %d tokens %v, want %d", len(toks), toks, len(tt.want))
			}
			for i, w := range tt.want {
				if toks[i].Type != w {
					t.Errorf("token %d: got %s, want type %d", i, toks[i], w)
				}
			}
		})
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{`0`, 0},
		{`42`, 42},
		{`3.14`, 3.14},
		{`1e3`, 1000},
		{`2.5e-1`, 0.25},
	}
	for _, tt := range tests {
		toks := lex(t, tt.input)
		if len(toks) != 1 || toks[0].Type != TokenNumber {
			t.Errorf("%q: got %v, want one number token", tt.input, toks)
			continue
		}
		if toks[0].Num != tt.want {
			t.Errorf("%q: got %v, want %v", tt.input, toks[0].Num, tt.want)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `"hello"`, "hello"},
		{"escapes", `"a\n\t\"b\\"`, "a\n\t\"b\\"},
		{"unicode escape", "\"\\u00e9\"", "é"},
		{"surrogate pair", "\"\\ud83d\\ude00\"", "😀"},
		{"utf8 passthrough", `"héllo"`, "héllo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lex(t, tt.input)
			if len(toks) != 1 || toks[0].Type != TokenString {
				t.Fatalf("got %v, want one string token", toks)
			}
			if toks[0].Text != tt.want {
				t.Errorf("got %q, want %q", toks[0].Text, tt.want)
			}
		})
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated string", `"abc`},
		{"bad escape", `"\q"`},
		{"bare dollar", `$ `},
		{"unknown rune", `^`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lex(t, tt.input)
			if len(toks) == 0 || toks[len(toks)-1].Type != TokenError {
				t.Errorf("got %v, want trailing error token", toks)
			}
		})
	}
}
