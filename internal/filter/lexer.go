package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every parse failure
var ErrSyntax = errors.New("invalid filter syntax")

// SyntaxError reports where parsing failed
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d: %s", ErrSyntax.Error(), e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokComma
	tokString
	tokNumber
	tokBool
	tokNull
	tokCompare
	tokAnd
	tokOr
	tokNot
	tokIdent
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokBool:
		return "boolean"
	case tokNull:
		return "null"
	case tokCompare:
		return "comparison operator"
	case tokAnd:
		return "'and'"
	case tokOr:
		return "'or'"
	case tokNot:
		return "'not'"
	case tokIdent:
		return "identifier"
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	text string // identifier/keyword text or decoded string literal
	num  float64
	pos  int
}

// isoDate matches unquoted OData date and datetime literals
var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:\d{2})?)?`)

var compareOps = map[string]CompareOp{
	"eq": OpEq,
	"ne": OpNe,
	"gt": OpGt,
	"ge": OpGe,
	"lt": OpLt,
	"le": OpLe,
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '/' || c == '.'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// tokenize splits the filter text into tokens, ending with tokEOF
func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	for i < len(input) {
		c := input[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++

		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++

		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++

		case c == '\'':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(input) {
				if input[i] == '\'' {
					if i+1 < len(input) && input[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, &SyntaxError{Pos: start, Msg: "unterminated string literal"}
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String(), pos: start})

		case isDigit(c) || ((c == '-' || c == '+') && i+1 < len(input) && isDigit(input[i+1])):
			if m := isoDate.FindString(input[i:]); m != "" {
				tokens = append(tokens, token{kind: tokString, text: m, pos: i})
				i += len(m)
				continue
			}

			start := i
			i++
			for i < len(input) && isDigit(input[i]) {
				i++
			}
			if i < len(input) && input[i] == '.' {
				i++
				if i >= len(input) || !isDigit(input[i]) {
					return nil, &SyntaxError{Pos: i, Msg: "malformed number"}
				}
				for i < len(input) && isDigit(input[i]) {
					i++
				}
			}
			text := input[start:i]
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("malformed number %q", text)}
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: num, pos: start})

		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			word := input[start:i]
			lower := strings.ToLower(word)

			tok := token{kind: tokIdent, text: word, pos: start}
			if _, ok := compareOps[lower]; ok {
				tok = token{kind: tokCompare, text: lower, pos: start}
			} else {
				switch lower {
				case "and":
					tok.kind = tokAnd
				case "or":
					tok.kind = tokOr
				case "not":
					tok.kind = tokNot
				case "true", "false":
					tok.kind, tok.text = tokBool, lower
				case "null":
					tok.kind = tokNull
				}
			}
			tokens = append(tokens, tok)

		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}
