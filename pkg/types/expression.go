package types

// Expression is a compiled query.
//
// An Expression can be evaluated any number of times against different
// documents and is safe for concurrent use: both the program tree and the
// source string are read-only after compilation.
type Expression struct {
	root   *Node
	source string
}

// NewExpression wraps a program tree with its source text.
func NewExpression(root *Node, source string) *Expression {
	return &Expression{root: root, source: source}
}

// Root returns the program tree.
func (e *Expression) Root() *Node { return e.root }

// Source returns the original query text.
func (e *Expression) Source() string { return e.source }

// String returns the source text.
func (e *Expression) String() string { return e.source }
