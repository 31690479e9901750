// Package filter parses and evaluates OData-style $filter expressions
// against JSON-shaped records.
package filter

import (
	"strconv"
	"strings"
)

// Expr is a node of a parsed filter. The set of implementations is closed:
// *Comparison, *Logical and *FunctionCall. Nodes are never mutated after Parse.
type Expr interface {
	exprNode()
	String() string
}

// CompareOp is one of the six comparison keywords
type CompareOp string

const (
	OpEq CompareOp = "eq"
	OpNe CompareOp = "ne"
	OpGt CompareOp = "gt"
	OpGe CompareOp = "ge"
	OpLt CompareOp = "lt"
	OpLe CompareOp = "le"
)

// LogicalOp is and, or or not
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
	OpNot LogicalOp = "not"
)

// Supported function names
const (
	FuncStartsWith  = "startswith"
	FuncEndsWith    = "endswith"
	FuncContains    = "contains"
	FuncSubstringOf = "substringof"
)

var functions = map[string]bool{
	FuncStartsWith:  true,
	FuncEndsWith:    true,
	FuncContains:    true,
	FuncSubstringOf: true,
}

// LiteralKind classifies a scalar literal
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralBool
	LiteralNull
)

// Literal is a scalar from the filter text. Raw keeps the source form so
// numbers can be compared as text against string properties.
type Literal struct {
	Kind LiteralKind
	Str  string
	Num  float64
	Bool bool
	Raw  string
}

func (l Literal) String() string {
	switch l.Kind {
	case LiteralString:
		return "'" + strings.ReplaceAll(l.Str, "'", "''") + "'"
	case LiteralNumber:
		return l.Raw
	case LiteralBool:
		return strconv.FormatBool(l.Bool)
	default:
		return "null"
	}
}

// text is the literal as a plain string, used by string functions and
// string comparisons
func (l Literal) text() string {
	switch l.Kind {
	case LiteralString:
		return l.Str
	case LiteralNull:
		return ""
	default:
		return l.String()
	}
}

// Comparison is `<path> <op> <literal>`
type Comparison struct {
	Path    string
	Op      CompareOp
	Literal Literal
}

// Logical combines operands with and/or; not has exactly one operand
type Logical struct {
	Op       LogicalOp
	Operands []Expr
}

// Arg is a function argument: a property path or a string literal
type Arg struct {
	Path    string
	Literal *Literal
}

func (a Arg) String() string {
	if a.Literal != nil {
		return a.Literal.String()
	}
	return a.Path
}

// FunctionCall is one of the whitelisted string predicates
type FunctionCall struct {
	Name string
	Args []Arg
}

func (*Comparison) exprNode()   {}
func (*Logical) exprNode()      {}
func (*FunctionCall) exprNode() {}

func (c *Comparison) String() string {
	return c.Path + " " + string(c.Op) + " " + c.Literal.String()
}

func (l *Logical) String() string {
	if l.Op == OpNot {
		return "not (" + l.Operands[0].String() + ")"
	}
	parts := make([]string, len(l.Operands))
	for i, op := range l.Operands {
		parts[i] = op.String()
	}
	return "(" + strings.Join(parts, " "+string(l.Op)+" ") + ")"
}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}
