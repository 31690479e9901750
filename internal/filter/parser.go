package filter

import (
	"fmt"
	"strings"
)

// Parse compiles filter text into an expression tree.
//
// Precedence from weakest to strongest: or, and, not, primary. A primary is
// a comparison, a function call or a parenthesized expression.
func Parse(text string) (Expr, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 1 {
		return nil, &SyntaxError{Pos: 0, Msg: "empty filter"}
	}

	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.unexpected(tok, "end of input")
	}
	return expr, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) unexpected(tok token, want string) error {
	if tok.kind == tokEOF {
		return &SyntaxError{Pos: tok.pos, Msg: "missing " + want}
	}
	return &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("expected %s, got %s %q", want, tok.kind, tok.text)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, p.unexpected(tok, kind.String())
	}
	return tok, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: OpOr, Operands: []Expr{left, right}}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: OpAnd, Operands: []Expr{left, right}}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.peek().kind == tokNot {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Logical{Op: OpNot, Operands: []Expr{operand}}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()

	switch tok.kind {
	case tokLParen:
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return expr, nil

	case tokIdent:
		p.next()
		if p.peek().kind == tokLParen {
			return p.parseFunction(tok)
		}
		return p.parseComparison(tok)

	default:
		return nil, p.unexpected(tok, "expression")
	}
}

func (p *parser) parseComparison(ident token) (Expr, error) {
	opTok := p.next()
	if opTok.kind != tokCompare {
		return nil, p.unexpected(opTok, "comparison operator")
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}

	return &Comparison{Path: ident.text, Op: compareOps[opTok.text], Literal: lit}, nil
}

func (p *parser) parseLiteral() (Literal, error) {
	tok := p.next()
	switch tok.kind {
	case tokString:
		return Literal{Kind: LiteralString, Str: tok.text, Raw: tok.text}, nil
	case tokNumber:
		return Literal{Kind: LiteralNumber, Num: tok.num, Raw: tok.text}, nil
	case tokBool:
		return Literal{Kind: LiteralBool, Bool: tok.text == "true", Raw: tok.text}, nil
	case tokNull:
		return Literal{Kind: LiteralNull, Raw: "null"}, nil
	default:
		return Literal{}, p.unexpected(tok, "literal value")
	}
}

// parseFunction parses `name(arg, arg)`. A trailing `eq true|false` or
// `ne true|false` is folded into the call, as OData clients often send it.
func (p *parser) parseFunction(name token) (Expr, error) {
	fname := strings.ToLower(name.text)
	if !functions[fname] {
		return nil, &SyntaxError{Pos: name.pos, Msg: fmt.Sprintf("unknown function %q", name.text)}
	}

	p.next() // (

	var args []Arg
	for {
		tok := p.next()
		switch tok.kind {
		case tokIdent:
			args = append(args, Arg{Path: tok.text})
		case tokString:
			lit := Literal{Kind: LiteralString, Str: tok.text, Raw: tok.text}
			args = append(args, Arg{Literal: &lit})
		default:
			return nil, p.unexpected(tok, "function argument")
		}

		sep := p.next()
		if sep.kind == tokRParen {
			break
		}
		if sep.kind != tokComma {
			return nil, p.unexpected(sep, "',' or ')'")
		}
	}

	if len(args) != 2 {
		return nil, &SyntaxError{Pos: name.pos, Msg: fmt.Sprintf("%s expects 2 arguments, got %d", fname, len(args))}
	}

	var expr Expr = &FunctionCall{Name: fname, Args: args}

	if p.peek().kind == tokCompare {
		opTok := p.next()
		op := compareOps[opTok.text]
		if op != OpEq && op != OpNe {
			return nil, &SyntaxError{Pos: opTok.pos, Msg: "only eq and ne can follow a function call"}
		}
		lit, err := p.expect(tokBool)
		if err != nil {
			return nil, err
		}
		if (lit.text == "true") != (op == OpEq) {
			expr = &Logical{Op: OpNot, Operands: []Expr{expr}}
		}
	}

	return expr, nil
}
