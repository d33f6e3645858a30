package formula

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type kind int

const (
	kindNumber kind = iota
	kindBool
)

func (k kind) String() string {
	if k == kindBool {
		return "condition"
	}
	return "number"
}

// parser is a recursive-descent parser. Precedence, lowest first:
// ternary, ||, &&, comparison, + -, * / %, unary, primary.
type parser struct {
	src      string
	toks     []token
	pos      int
	literals []decimal.Decimal
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Formula: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != k {
		return t, p.errorf(t, "expected %s, found %s", what, t)
	}
	return t, nil
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) parseTernary() (node, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokQuestion {
		return cond, nil
	}
	q := p.next()
	if cond.kind() != kindBool {
		return nil, p.errorf(q, "condition of ?: must be a comparison, found %s", cond.kind())
	}
	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, `":"`); err != nil {
		return nil, err
	}
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if then.kind() != els.kind() {
		return nil, p.errorf(q, "branches of ?: differ: %s and %s", then.kind(), els.kind())
	}
	return &ternaryNode{cond: cond, then: then, els: els}, nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		op := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if left.kind() != kindBool || right.kind() != kindBool {
			return nil, p.errorf(op, "operands of || must be conditions")
		}
		left = &logicNode{op: op.text, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		op := p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if left.kind() != kindBool || right.kind() != kindBool {
			return nil, p.errorf(op, "operands of && must be conditions")
		}
		left = &logicNode{op: op.text, left: left, right: right}
	}
	return left, nil
}

var comparisonOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokOp || !comparisonOps[t.text] {
		return left, nil
	}
	op := p.next()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if left.kind() != kindNumber || right.kind() != kindNumber {
		return nil, p.errorf(op, "operands of %s must be numbers", op.text)
	}
	if nt := p.peek(); nt.kind == tokOp && comparisonOps[nt.text] {
		return nil, p.errorf(nt, "comparisons cannot be chained")
	}
	for _, side := range []node{left, right} {
		if lit, ok := side.(*numberNode); ok {
			p.literals = append(p.literals, lit.v)
		}
	}
	return &compareNode{op: op.text, left: left, right: right}, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		if err := p.numeric(op, left, right); err != nil {
			return nil, err
		}
		left = &binaryNode{op: op.text, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if err := p.numeric(op, left, right); err != nil {
			return nil, err
		}
		left = &binaryNode{op: op.text, left: left, right: right}
	}
	return left, nil
}

func (p *parser) numeric(op token, operands ...node) error {
	for _, n := range operands {
		if n.kind() != kindNumber {
			return p.errorf(op, "operands of %s must be numbers", op.text)
		}
	}
	return nil
}

func (p *parser) parseUnary() (node, error) {
	switch {
	case p.isOp("-"), p.isOp("+"):
		op := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if err := p.numeric(op, operand); err != nil {
			return nil, err
		}
		if op.text == "+" {
			return operand, nil
		}
		return &negNode{operand: operand}, nil
	case p.isOp("!"):
		op := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if operand.kind() != kindBool {
			return nil, p.errorf(op, "operand of ! must be a condition")
		}
		return &notNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := decimal.NewFromString(t.text)
		if err != nil {
			return nil, p.errorf(t, "invalid number %q", t.text)
		}
		return &numberNode{v: v}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		if t.text != AmountVar {
			return nil, p.errorf(t, "unknown identifier %q (only %q is bound)", t.text, AmountVar)
		}
		return amountNode{}, nil
	case tokLParen:
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, `")"`); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, p.errorf(t, "unexpected %s", t)
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := functions[name.text]
	if !ok {
		return nil, p.errorf(name, "unknown function %q", name.text)
	}
	p.next() // (
	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if arg.kind() != kindNumber {
				return nil, p.errorf(name, "arguments of %s must be numbers", name.text)
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen, `")"`); err != nil {
		return nil, err
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, p.errorf(name, "%s takes %s, got %d", name.text, fn.arity(), len(args))
	}
	return &callNode{name: name.text, fn: fn, args: args}, nil
}
