package formula

import (
	"fmt"

	"leaguestats/pkg/catalog"
)

const (
	maxSourceLen = 4096
	maxDepth     = 128
)

// parser is a precedence-climbing recursive descent parser that type checks
// each node as it is built.
type parser struct {
	toks   []token
	i      int
	cat    *catalog.Catalog
	depth  int
	fields map[string]struct{}
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func unexpected(t token) *Error {
	if t.kind == tokEOF {
		return &Error{Pos: t.pos, Message: "unexpected end of formula"}
	}
	return &Error{Pos: t.pos, Token: t.text, Message: "unexpected token"}
}

func (p *parser) parse() (node, error) {
	n, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, unexpected(t)
	}
	if n.typ() != typeNumber {
		return nil, &Error{Pos: n.pos(), Message: "formula must produce a number, not a boolean"}
	}
	return n, nil
}

func (p *parser) ternary() (node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return nil, &Error{Pos: p.peek().pos, Message: "formula is nested too deeply"}
	}

	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokQuestion {
		return cond, nil
	}
	q := p.next()
	if cond.typ() != typeBool {
		return nil, &Error{Pos: q.pos, Token: "?", Message: "condition must be a comparison or boolean field"}
	}
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if t := p.next(); t.kind != tokColon {
		if t.kind == tokEOF {
			return nil, &Error{Pos: t.pos, Message: "missing ':' in conditional"}
		}
		return nil, &Error{Pos: t.pos, Token: t.text, Message: "expected ':'"}
	}
	els, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if then.typ() != els.typ() {
		return nil, &Error{Pos: els.pos(), Message: fmt.Sprintf("conditional branches differ: %s and %s", then.typ(), els.typ())}
	}
	return &conditional{cond: cond, then: then, els: els, at: cond.pos()}, nil
}

func (p *parser) or() (node, error) {
	l, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		op := p.next()
		r, err := p.and()
		if err != nil {
			return nil, err
		}
		if err := wantBool(op, l, r); err != nil {
			return nil, err
		}
		l = &binary{op: op.text, l: l, r: r, at: op.pos}
	}
	return l, nil
}

func (p *parser) and() (node, error) {
	l, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		op := p.next()
		r, err := p.comparison()
		if err != nil {
			return nil, err
		}
		if err := wantBool(op, l, r); err != nil {
			return nil, err
		}
		l = &binary{op: op.text, l: l, r: r, at: op.pos}
	}
	return l, nil
}

func (p *parser) comparison() (node, error) {
	l, err := p.additive()
	if err != nil {
		return nil, err
	}
	for p.isOp("==", "!=", "<", "<=", ">", ">=") {
		op := p.next()
		r, err := p.additive()
		if err != nil {
			return nil, err
		}
		if err := checkComparison(op, l, r); err != nil {
			return nil, err
		}
		l = &binary{op: op.text, l: l, r: r, at: op.pos}
	}
	return l, nil
}

func (p *parser) additive() (node, error) {
	l, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.next()
		r, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		if err := wantNumber(op, l, r); err != nil {
			return nil, err
		}
		l = &binary{op: op.text, l: l, r: r, at: op.pos}
	}
	return l, nil
}

func (p *parser) multiplicative() (node, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/") {
		op := p.next()
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		if err := wantNumber(op, l, r); err != nil {
			return nil, err
		}
		l = &binary{op: op.text, l: l, r: r, at: op.pos}
	}
	return l, nil
}

func (p *parser) unary() (node, error) {
	if !p.isOp("-", "!") {
		return p.primary()
	}
	op := p.next()
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return nil, &Error{Pos: op.pos, Message: "formula is nested too deeply"}
	}
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	if op.text == "-" {
		if err := wantNumber(op, x); err != nil {
			return nil, err
		}
		if lit, ok := x.(*numberLit); ok {
			return &numberLit{value: -lit.value, at: op.pos}, nil
		}
	} else if x.typ() != typeBool {
		return nil, &Error{Pos: op.pos, Token: "!", Message: "'!' needs a boolean operand"}
	}
	return &unary{op: op.text, x: x, at: op.pos}, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &numberLit{value: t.num, at: t.pos}, nil
	case tokIdent:
		f, ok := p.cat.Field(t.text)
		if !ok {
			return nil, &Error{Pos: t.pos, Token: t.text, Message: "unknown field"}
		}
		p.fields[f.Name] = struct{}{}
		vt := typeNumber
		if f.Kind == catalog.KindBoolean {
			vt = typeBool
		}
		return &fieldRef{name: f.Name, t: vt, at: t.pos}, nil
	case tokLParen:
		inner, err := p.ternary()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.kind != tokRParen {
			if closing.kind == tokEOF {
				return nil, &Error{Pos: t.pos, Token: "(", Message: "unclosed parenthesis"}
			}
			return nil, &Error{Pos: closing.pos, Token: closing.text, Message: "expected ')'"}
		}
		return inner, nil
	}
	return nil, unexpected(t)
}

func wantNumber(op token, operands ...node) error {
	for _, n := range operands {
		if n.typ() == typeNumber {
			continue
		}
		msg := fmt.Sprintf("'%s' needs numbers; compare boolean fields explicitly (== 1)", op.text)
		if f, ok := n.(*fieldRef); ok {
			return &Error{Pos: f.at, Token: f.name, Message: msg}
		}
		return &Error{Pos: op.pos, Token: op.text, Message: msg}
	}
	return nil
}

func wantBool(op token, operands ...node) error {
	for _, n := range operands {
		if n.typ() != typeBool {
			return &Error{Pos: op.pos, Token: op.text, Message: fmt.Sprintf("'%s' needs comparisons or boolean fields", op.text)}
		}
	}
	return nil
}

// checkComparison allows number against number, and boolean against boolean
// or the literal 0 or 1 with == and != only.
func checkComparison(op token, l, r node) error {
	lt, rt := l.typ(), r.typ()
	if lt == typeNumber && rt == typeNumber {
		return nil
	}
	if op.text != "==" && op.text != "!=" {
		return &Error{Pos: op.pos, Token: op.text, Message: "booleans can only be compared with == or !="}
	}
	lok := lt == typeBool || isBoolLiteral(l)
	rok := rt == typeBool || isBoolLiteral(r)
	if lok && rok {
		return nil
	}
	return &Error{Pos: op.pos, Token: op.text, Message: "a boolean can only be compared with another boolean, 0 or 1"}
}
