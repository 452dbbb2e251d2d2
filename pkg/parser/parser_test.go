package parser

import (
	"errors"
	"testing"

	"github.com/jayvdb/xq/pkg/types"
)

func parse(t *testing.T, query string) *types.Node {
	t.Helper()
	expr, err := Parse(query)
	if err != nil {
		t.Fatalf("Parse(%q): %v", query, err)
	}
	return expr.Root()
}

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name  string
		query string
		check func(t *testing.T, root *types.Node)
	}{
		{
			name:  "identity",
			query: `.`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeIdentity {
					t.Errorf("got %s, want identity", root.Type)
				}
			},
		},
		{
			name:  "field access desugars to index",
			query: `.foo`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeIndex {
					t.Fatalf("got %s, want index", root.Type)
				}
				if root.LHS.Type != types.NodeIdentity {
					t.Errorf("index base is %s, want identity", root.LHS.Type)
				}
				if !types.Equal(root.Key.Literal, types.String("foo")) {
					t.Errorf("index key is %s, want \"foo\"", root.Key.Literal)
				}
			},
		},
		{
			name:  "pipe is right-associative",
			query: `. | . | .`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodePipe {
					t.Fatalf("got %s, want pipe", root.Type)
				}
				if root.RHS.Type != types.NodePipe {
					t.Errorf("rhs is %s, want nested pipe", root.RHS.Type)
				}
			},
		},
		{
			name:  "comma binds tighter than pipe",
			query: `1, 2 | 3`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodePipe {
					t.Fatalf("got %s, want pipe at root", root.Type)
				}
				if root.LHS.Type != types.NodeComma {
					t.Errorf("pipe lhs is %s, want comma", root.LHS.Type)
				}
			},
		},
		{
			name:  "additive binds tighter than comparison",
			query: `1 + 2 < 4`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeBinary || root.Str != "<" {
					t.Fatalf("got %s %q, want binary <", root.Type, root.Str)
				}
				if root.LHS.Type != types.NodeBinary || root.LHS.Str != "+" {
					t.Errorf("lhs is %s %q, want binary +", root.LHS.Type, root.LHS.Str)
				}
			},
		},
		{
			name:  "multiplicative binds tighter than additive",
			query: `1 + 2 * 3`,
			check: func(t *testing.T, root *types.Node) {
				if root.Str != "+" {
					t.Fatalf("root op %q, want +", root.Str)
				}
				if root.RHS.Str != "*" {
					t.Errorf("rhs op %q, want *", root.RHS.Str)
				}
			},
		},
		{
			name:  "alternative below or",
			query: `false or 1 // 2`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeBinary || root.Str != "//" {
					t.Fatalf("got %s %q, want // at root", root.Type, root.Str)
				}
				if root.LHS.Str != "or" {
					t.Errorf("lhs op %q, want or", root.LHS.Str)
				}
			},
		},
		{
			name:  "unary minus",
			query: `-.x`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeUnary || root.Str != "-" {
					t.Fatalf("got %s %q, want unary -", root.Type, root.Str)
				}
				if root.RHS.Type != types.NodeIndex {
					t.Errorf("operand is %s, want index", root.RHS.Type)
				}
			},
		},
		{
			name:  "iterate suffix",
			query: `.items[]`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeIterate {
					t.Fatalf("got %s, want iterate", root.Type)
				}
				if root.LHS.Type != types.NodeIndex {
					t.Errorf("base is %s, want index", root.LHS.Type)
				}
			},
		},
		{
			name:  "slice with both bounds",
			query: `.[1:3]`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeSlice {
					t.Fatalf("got %s, want slice", root.Type)
				}
				if root.Start == nil || root.End == nil {
					t.Error("want both bounds present")
				}
			},
		},
		{
			name:  "slice with absent start",
			query: `.[:2]`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeSlice {
					t.Fatalf("got %s, want slice", root.Type)
				}
				if root.Start != nil || root.End == nil {
					t.Error("want absent start, present end")
				}
			},
		},
		{
			name:  "question suffix is a try",
			query: `.a?`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeTry {
					t.Fatalf("got %s, want try", root.Type)
				}
				if root.RHS != nil {
					t.Error("? has no catch handler")
				}
			},
		},
		{
			name:  "try catch",
			query: `try error catch .`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeTry {
					t.Fatalf("got %s, want try", root.Type)
				}
				if root.RHS == nil {
					t.Error("want catch handler")
				}
			},
		},
		{
			name:  "if without else",
			query: `if . then 1 end`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeIf {
					t.Fatalf("got %s, want if", root.Type)
				}
				if root.Else != nil {
					t.Error("want nil else branch")
				}
			},
		},
		{
			name:  "elif desugars to nested if",
			query: `if .a then 1 elif .b then 2 else 3 end`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeIf {
					t.Fatalf("got %s, want if", root.Type)
				}
				if root.Else == nil || root.Else.Type != types.NodeIf {
					t.Fatalf("else branch should be a nested if, got %v", root.Else)
				}
				if root.Else.Else == nil {
					t.Error("inner if should carry the final else")
				}
			},
		},
		{
			name:  "binding consumes rest of pipeline",
			query: `.a as $x | $x + 1`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeBind || root.Str != "x" {
					t.Fatalf("got %s %q, want bind of $x", root.Type, root.Str)
				}
				if root.RHS.Type != types.NodeBinary {
					t.Errorf("body is %s, want binary", root.RHS.Type)
				}
			},
		},
		{
			name:  "function definition with params",
			query: `def add(a; b): a + b; add(1; 2)`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeFuncDef || root.Str != "add" {
					t.Fatalf("got %s %q, want def add", root.Type, root.Str)
				}
				if len(root.Params) != 2 {
					t.Fatalf("got %d params, want 2", len(root.Params))
				}
				call := root.RHS
				if call.Type != types.NodeCall || len(call.Args) != 2 {
					t.Errorf("rest is %s with %d args, want call with 2", call.Type, len(call.Args))
				}
			},
		},
		{
			name:  "array construct",
			query: `[1, 2]`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeArray {
					t.Fatalf("got %s, want array", root.Type)
				}
				if root.LHS == nil || root.LHS.Type != types.NodeComma {
					t.Errorf("array body should be a comma chain, got %v", root.LHS)
				}
			},
		},
		{
			name:  "empty array construct",
			query: `[]`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeArray || root.LHS != nil {
					t.Errorf("got %s with body %v, want empty array", root.Type, root.LHS)
				}
			},
		},
		{
			name:  "object entries in source order",
			query: `{b: 1, "a": 2, ($k): 3}`,
			check: func(t *testing.T, root *types.Node) {
				if root.Type != types.NodeObject {
					t.Fatalf("got %s, want object", root.Type)
				}
				if len(root.Entries) != 3 {
					t.Fatalf("got %d entries, want 3", len(root.Entries))
				}
				if root.Entries[2].Key.Type != types.NodeVariable {
					t.Errorf("third key is %s, want variable expression", root.Entries[2].Key.Type)
				}
			},
		},
		{
			name:  "object shorthand",
			query: `{name, $v}`,
			check: func(t *testing.T, root *types.Node) {
				if len(root.Entries) != 2 {
					t.Fatalf("got %d entries, want 2", len(root.Entries))
				}
				if root.Entries[0].Value.Type != types.NodeIndex {
					t.Errorf("{name} value is %s, want field index", root.Entries[0].Value.Type)
				}
				if root.Entries[1].Value.Type != types.NodeVariable {
					t.Errorf("{$v} value is %s, want variable", root.Entries[1].Value.Type)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parse(t, tt.query))
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"empty query", ``},
		{"dangling pipe", `. |`},
		{"unclosed paren", `(1`},
		{"unclosed bracket", `.[1`},
		{"missing then", `if . end`},
		{"missing end", `if . then 1`},
		{"bind without pipe", `. as $x`},
		{"chained comparison", `1 < 2 < 3`},
		{"keyword as filter", `then`},
		{"def missing semicolon", `def f: 1`},
		{"lexer error surfaces", `"unterminated`},
		{"trailing garbage", `. )`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.query)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("got %T, want *ParseError", err)
			}
		})
	}
}

func TestExpressionKeepsSource(t *testing.T) {
	const query = `.a | .b`
	expr, err := Parse(query)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if expr.Source() != query {
		t.Errorf("got source %q, want %q", expr.Source(), query)
	}
}
