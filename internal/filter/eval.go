package filter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// datePrefix decides whether a string comparison is treated as a timestamp
// comparison. It is a heuristic on the literal, not a typed contract.
var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Evaluate reports whether record satisfies expr. It never fails: paths that
// do not resolve are treated as absent.
func Evaluate(record Value, expr Expr) bool {
	switch e := expr.(type) {
	case *Comparison:
		return compare(record.Lookup(e.Path), e.Op, e.Literal)

	case *Logical:
		switch e.Op {
		case OpNot:
			return !Evaluate(record, e.Operands[0])
		case OpAnd:
			for _, op := range e.Operands {
				if !Evaluate(record, op) {
					return false
				}
			}
			return true
		case OpOr:
			for _, op := range e.Operands {
				if Evaluate(record, op) {
					return true
				}
			}
			return false
		}

	case *FunctionCall:
		return call(record, e)
	}
	return false
}

func compare(left Value, op CompareOp, lit Literal) bool {
	if lit.Kind == LiteralNull {
		switch op {
		case OpEq:
			return left.IsAbsent()
		case OpNe:
			return !left.IsAbsent()
		}
		return false
	}

	// Against a non-null literal an absent property only satisfies ne
	if left.IsAbsent() {
		return op == OpNe
	}

	switch left.kind {
	case KindNumber:
		right, ok := literalNumber(lit)
		if !ok {
			return op == OpNe
		}
		return ordered(cmpFloat(left.num, right), op)

	case KindString:
		if lit.Kind == LiteralString && datePrefix.MatchString(lit.Str) {
			lt, lok := parseDate(left.str)
			rt, rok := parseDate(lit.Str)
			if lok && rok {
				return ordered(lt.Compare(rt), op)
			}
		}
		return ordered(strings.Compare(left.str, lit.text()), op)

	case KindBool:
		right, ok := literalBool(lit)
		if !ok {
			return op == OpNe
		}
		switch op {
		case OpEq:
			return left.b == right
		case OpNe:
			return left.b != right
		}
		return false
	}

	// Objects and arrays never equal a scalar
	return op == OpNe
}

func literalNumber(lit Literal) (float64, bool) {
	switch lit.Kind {
	case LiteralNumber:
		return lit.Num, true
	case LiteralString:
		f, err := strconv.ParseFloat(strings.TrimSpace(lit.Str), 64)
		return f, err == nil
	}
	return 0, false
}

func literalBool(lit Literal) (bool, bool) {
	switch lit.Kind {
	case LiteralBool:
		return lit.Bool, true
	case LiteralString:
		b, err := strconv.ParseBool(lit.Str)
		return b, err == nil
	}
	return false, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func ordered(c int, op CompareOp) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	}
	return false
}

// call evaluates a string predicate. substringof takes the needle first.
func call(record Value, f *FunctionCall) bool {
	a, ok := argText(record, f.Args[0])
	if !ok {
		return false
	}
	b, ok := argText(record, f.Args[1])
	if !ok {
		return false
	}
	a, b = strings.ToLower(a), strings.ToLower(b)

	switch f.Name {
	case FuncStartsWith:
		return strings.HasPrefix(a, b)
	case FuncEndsWith:
		return strings.HasSuffix(a, b)
	case FuncContains:
		return strings.Contains(a, b)
	case FuncSubstringOf:
		return strings.Contains(b, a)
	}
	return false
}

func argText(record Value, arg Arg) (string, bool) {
	if arg.Literal != nil {
		return arg.Literal.text(), true
	}
	return record.Lookup(arg.Path).text()
}

// Filter is a compiled expression that can be matched against many records
type Filter struct {
	text string
	expr Expr
}

// Compile parses text once for repeated matching
func Compile(text string) (*Filter, error) {
	expr, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return &Filter{text: text, expr: expr}, nil
}

// Match converts record with FromAny and evaluates the filter against it.
// A nil filter matches everything.
func (f *Filter) Match(record any) bool {
	if f == nil {
		return true
	}
	return Evaluate(FromAny(record), f.expr)
}

func (f *Filter) Expr() Expr {
	return f.expr
}

func (f *Filter) String() string {
	return f.text
}
