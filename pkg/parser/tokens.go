package parser

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType uint8

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals and names
	TokenString   // "hello"
	TokenNumber   // 123, 3.14, 1e-10
	TokenName     // fieldName, functionName, keywords
	TokenVariable // $var

	// Grouping symbols
	TokenBracketOpen  // [
	TokenBracketClose // ]
	TokenBraceOpen    // {
	TokenBraceClose   // }
	TokenParenOpen    // (
	TokenParenClose   // )

	// Basic symbols
	TokenDot       // .
	TokenComma     // ,
	TokenColon     // :
	TokenSemicolon // ;
	TokenPipe      // |
	TokenQuestion  // ?

	// Arithmetic operators
	TokenPlus  // +
	TokenMinus // -
	TokenMult  // *
	TokenDiv   // /
	TokenMod   // %

	// Comparison operators
	TokenEqual        // ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=

	// Alternative operator
	TokenAlt // //
)

// Token is one lexical token with its source position.
type Token struct {
	Type TokenType
	Text string // literal text for names/variables, decoded value for strings
	Num  float64
	Pos  int
}

// String renders the token for error messages.
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "end of query"
	case TokenString:
		return fmt.Sprintf("string %q", t.Text)
	case TokenNumber:
		return fmt.Sprintf("number %v", t.Num)
	case TokenVariable:
		return "$" + t.Text
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

// symbol1 maps single-character symbols to token types.
var symbol1 = map[byte]TokenType{
	'[': TokenBracketOpen,
	']': TokenBracketClose,
	'{': TokenBraceOpen,
	'}': TokenBraceClose,
	'(': TokenParenOpen,
	')': TokenParenClose,
	'.': TokenDot,
	',': TokenComma,
	':': TokenColon,
	';': TokenSemicolon,
	'|': TokenPipe,
	'?': TokenQuestion,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMult,
	'/': TokenDiv,
	'%': TokenMod,
	'<': TokenLess,
	'>': TokenGreater,
}

// symbol2 maps two-character symbols; checked before symbol1.
var symbol2 = map[string]TokenType{
	"==": TokenEqual,
	"!=": TokenNotEqual,
	"<=": TokenLessEqual,
	">=": TokenGreaterEqual,
	"//": TokenAlt,
}
