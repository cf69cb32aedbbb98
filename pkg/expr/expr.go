// Package expr implements the declarative expression language used by
// generated documents for dynamic properties, visibility conditions, and
// two-way bindings.
//
// Expressions arrive as untrusted JSON. Parse turns a raw value into a
// closed tagged-variant tree; Resolve evaluates a tree against a state
// snapshot, an optional repeat scope, and a registry of named pure
// functions. Resolution never panics or returns errors: malformed or
// unresolvable input yields nil with a warning, because generation output
// may reference anything.
package expr

// Expr is the closed set of expression variants. The resolver matches it
// exhaustively rather than duck-typing over raw JSON shapes.
type Expr interface {
	isExpr()
}

// Literal is a value that resolves to itself. Container literals are
// deep-resolved element-wise, since nested values may be expressions.
type Literal struct {
	Value any
}

// StateRef reads a path from the state document, e.g. {"$state": "/user/name"}.
type StateRef struct {
	Path string
}

// ItemRef reads a field of the current repeat item, e.g. {"$item": "name"}.
// An empty Field refers to the whole item.
type ItemRef struct {
	Field string
}

// IndexRef reads the current repeat index, e.g. {"$index": true}.
type IndexRef struct{}

// Computed invokes a named pure function with resolved arguments.
type Computed struct {
	Name string
	Args []Expr
}

// Cond is the ternary form {"$cond": c, "$then": a, "$else": b}.
type Cond struct {
	If   Expr
	Then Expr
	Else Expr
}

// And combines conditions; all must be truthy. An array in condition
// position is an implicit And.
type And struct {
	Conds []Expr
}

// Or combines conditions; any truthy member satisfies it.
type Or struct {
	Conds []Expr
}

// Not negates a condition, {"not": c}.
type Not struct {
	Cond Expr
}

// CompareOp names a comparison operator.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpNeq CompareOp = "neq"
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
)

// Compare is a binary comparison, e.g. {"gt": [{"$state": "/n"}, 3]}.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

// BindState is the two-way form {"$bindState": "/path"}. Resolve reads the
// current value; ResolveBindings exposes the write-back path.
type BindState struct {
	Path string
}

// BindItem is the two-way form {"$bindItem": "field"} bound relative to
// the current repeat item.
type BindItem struct {
	Field string
}

func (Literal) isExpr()   {}
func (StateRef) isExpr()  {}
func (ItemRef) isExpr()   {}
func (IndexRef) isExpr()  {}
func (Computed) isExpr()  {}
func (Cond) isExpr()      {}
func (And) isExpr()       {}
func (Or) isExpr()        {}
func (Not) isExpr()       {}
func (Compare) isExpr()   {}
func (BindState) isExpr() {}
func (BindItem) isExpr()  {}
