package types

// NodeType identifies the kind of a program node.
type NodeType string

const (
	// NodeIdentity is `.`.
	NodeIdentity NodeType = "identity"
	// NodeLiteral is a constant (number, string, true, false, null).
	NodeLiteral NodeType = "literal"
	// NodeIndex is `base[key]`; `.foo` parses to an index with a literal
	// string key.
	NodeIndex NodeType = "index"
	// NodeSlice is `base[start:end]` with optional bounds.
	NodeSlice NodeType = "slice"
	// NodeIterate is `base[]`.
	NodeIterate NodeType = "iterate"
	// NodePipe is `lhs | rhs`.
	NodePipe NodeType = "pipe"
	// NodeComma is `lhs , rhs`.
	NodeComma NodeType = "comma"
	// NodeUnary is unary minus; Str holds the operator symbol.
	NodeUnary NodeType = "unary"
	// NodeBinary is a binary operator; Str holds the symbol. `and`, `or`
	// and `//` are binary nodes with short-circuit evaluation.
	NodeBinary NodeType = "binary"
	// NodeArray is `[expr]`, collecting the child's whole output stream.
	NodeArray NodeType = "array"
	// NodeObject is `{...}` construction over Entries.
	NodeObject NodeType = "object"
	// NodeIf is `if cond then a (elif ...)* (else b)? end`.
	NodeIf NodeType = "if"
	// NodeBind is `source as $name | body`.
	NodeBind NodeType = "bind"
	// NodeFuncDef is `def name(params): body; rest`.
	NodeFuncDef NodeType = "funcdef"
	// NodeCall is a function invocation, builtin or user-defined.
	NodeCall NodeType = "call"
	// NodeVariable is `$name`.
	NodeVariable NodeType = "variable"
	// NodeTry is `try body catch handler`; a nil handler swallows the error
	// and emits nothing, which is also the meaning of the `?` suffix.
	NodeTry NodeType = "try"
)

// ObjectEntry is one field of an object construction node. The parser
// desugars the `{name}`, `{"name"}` and `{$var}` shorthands, so Key and Value
// are always set.
type ObjectEntry struct {
	Key   *Node
	Value *Node
}

// Node is one node of a compiled program. Nodes are immutable once the
// parser returns them; the engine never writes to a Node.
type Node struct {
	Type NodeType
	Pos  int

	Str     string // operator symbol, field/variable/function name
	Literal Value  // NodeLiteral constant

	LHS *Node // base / left operand / guarded body / bind source
	RHS *Node // right operand / catch handler / bind body / funcdef rest

	Key        *Node // NodeIndex key
	Start, End *Node // NodeSlice bounds (either may be nil)

	Cond, Then, Else *Node // NodeIf; nil Else behaves as identity

	Params  []string      // NodeFuncDef formal parameter names
	Body    *Node         // NodeFuncDef body
	Args    []*Node       // NodeCall arguments
	Entries []ObjectEntry // NodeObject fields
}

// NewNode creates a node of the given type at a source position.
func NewNode(t NodeType, pos int) *Node {
	return &Node{Type: t, Pos: pos}
}

// String returns the node type name.
func (n *Node) String() string { return string(n.Type) }
