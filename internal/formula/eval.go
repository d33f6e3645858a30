package formula

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// divisionScale bounds intermediate quotients; final results are rounded to
// currency precision afterwards.
const divisionScale = 16

var errDivisionByZero = errors.New("division by zero")

type value struct {
	num decimal.Decimal
	b   bool
}

type node interface {
	kind() kind
	eval(amount decimal.Decimal) (value, error)
}

type numberNode struct{ v decimal.Decimal }

func (n *numberNode) kind() kind                          { return kindNumber }
func (n *numberNode) eval(decimal.Decimal) (value, error) { return value{num: n.v}, nil }

type amountNode struct{}

func (amountNode) kind() kind                                 { return kindNumber }
func (amountNode) eval(amount decimal.Decimal) (value, error) { return value{num: amount}, nil }

type negNode struct{ operand node }

func (n *negNode) kind() kind { return kindNumber }
func (n *negNode) eval(amount decimal.Decimal) (value, error) {
	v, err := n.operand.eval(amount)
	if err != nil {
		return value{}, err
	}
	return value{num: v.num.Neg()}, nil
}

type notNode struct{ operand node }

func (n *notNode) kind() kind { return kindBool }
func (n *notNode) eval(amount decimal.Decimal) (value, error) {
	v, err := n.operand.eval(amount)
	if err != nil {
		return value{}, err
	}
	return value{b: !v.b}, nil
}

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) kind() kind { return kindNumber }
func (n *binaryNode) eval(amount decimal.Decimal) (value, error) {
	l, err := n.left.eval(amount)
	if err != nil {
		return value{}, err
	}
	r, err := n.right.eval(amount)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case "+":
		return value{num: l.num.Add(r.num)}, nil
	case "-":
		return value{num: l.num.Sub(r.num)}, nil
	case "*":
		return value{num: l.num.Mul(r.num)}, nil
	case "/":
		if r.num.IsZero() {
			return value{}, errDivisionByZero
		}
		return value{num: l.num.DivRound(r.num, divisionScale)}, nil
	case "%":
		if r.num.IsZero() {
			return value{}, errDivisionByZero
		}
		return value{num: l.num.Mod(r.num)}, nil
	}
	return value{}, fmt.Errorf("unknown operator %q", n.op)
}

type compareNode struct {
	op          string
	left, right node
}

func (n *compareNode) kind() kind { return kindBool }
func (n *compareNode) eval(amount decimal.Decimal) (value, error) {
	l, err := n.left.eval(amount)
	if err != nil {
		return value{}, err
	}
	r, err := n.right.eval(amount)
	if err != nil {
		return value{}, err
	}
	c := l.num.Cmp(r.num)
	switch n.op {
	case "<":
		return value{b: c < 0}, nil
	case "<=":
		return value{b: c <= 0}, nil
	case ">":
		return value{b: c > 0}, nil
	case ">=":
		return value{b: c >= 0}, nil
	case "==":
		return value{b: c == 0}, nil
	case "!=":
		return value{b: c != 0}, nil
	}
	return value{}, fmt.Errorf("unknown comparison %q", n.op)
}

type logicNode struct {
	op          string
	left, right node
}

func (n *logicNode) kind() kind { return kindBool }
func (n *logicNode) eval(amount decimal.Decimal) (value, error) {
	l, err := n.left.eval(amount)
	if err != nil {
		return value{}, err
	}
	if n.op == "&&" && !l.b {
		return value{b: false}, nil
	}
	if n.op == "||" && l.b {
		return value{b: true}, nil
	}
	return n.right.eval(amount)
}

type ternaryNode struct {
	cond, then, els node
}

func (n *ternaryNode) kind() kind { return n.then.kind() }
func (n *ternaryNode) eval(amount decimal.Decimal) (value, error) {
	c, err := n.cond.eval(amount)
	if err != nil {
		return value{}, err
	}
	if c.b {
		return n.then.eval(amount)
	}
	return n.els.eval(amount)
}

type function struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	apply            func(args []decimal.Decimal) (decimal.Decimal, error)
}

func (f function) arity() string {
	switch {
	case f.maxArgs < 0:
		return fmt.Sprintf("at least %d arguments", f.minArgs)
	case f.minArgs == f.maxArgs:
		return fmt.Sprintf("%d argument(s)", f.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", f.minArgs, f.maxArgs)
}

var functions = map[string]function{
	"min": {minArgs: 2, maxArgs: -1, apply: func(a []decimal.Decimal) (decimal.Decimal, error) {
		return decimal.Min(a[0], a[1:]...), nil
	}},
	"max": {minArgs: 2, maxArgs: -1, apply: func(a []decimal.Decimal) (decimal.Decimal, error) {
		return decimal.Max(a[0], a[1:]...), nil
	}},
	"abs":   {minArgs: 1, maxArgs: 1, apply: func(a []decimal.Decimal) (decimal.Decimal, error) { return a[0].Abs(), nil }},
	"floor": {minArgs: 1, maxArgs: 1, apply: func(a []decimal.Decimal) (decimal.Decimal, error) { return a[0].Floor(), nil }},
	"ceil":  {minArgs: 1, maxArgs: 1, apply: func(a []decimal.Decimal) (decimal.Decimal, error) { return a[0].Ceil(), nil }},
	"round": {minArgs: 1, maxArgs: 2, apply: func(a []decimal.Decimal) (decimal.Decimal, error) {
		places := int32(0)
		if len(a) == 2 {
			if !a[1].Equal(a[1].Truncate(0)) || a[1].IsNegative() || a[1].GreaterThan(decimal.NewFromInt(16)) {
				return decimal.Zero, fmt.Errorf("round: places must be an integer in 0..16, got %s", a[1])
			}
			places = int32(a[1].IntPart())
		}
		return a[0].Round(places), nil
	}},
}

type callNode struct {
	name string
	fn   function
	args []node
}

func (n *callNode) kind() kind { return kindNumber }
func (n *callNode) eval(amount decimal.Decimal) (value, error) {
	vals := make([]decimal.Decimal, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(amount)
		if err != nil {
			return value{}, err
		}
		vals[i] = v.num
	}
	out, err := n.fn.apply(vals)
	if err != nil {
		return value{}, err
	}
	return value{num: out}, nil
}
