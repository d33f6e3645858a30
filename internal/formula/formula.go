// Package formula evaluates journal template line formulas.
//
// A formula is a small expression over the single bound variable "amount":
//
//	amount * 0.11
//	amount > 5_000_000 ? amount * 0.02 : 0
//	amount - round(amount / 1.11 * 0.11, 2)
//
// Supported are + - * / %, unary minus, parentheses, comparisons,
// && || !, the ternary cond ? a : b, and the functions min, max, abs,
// floor, ceil and round. Formulas are type-checked when compiled, so a
// compiled formula can only fail at evaluation time on division by zero.
// Compiled formulas are immutable and safe for concurrent use.
package formula

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountVar is the only identifier a formula may reference.
const AmountVar = "amount"

// Formula is a compiled expression.
type Formula struct {
	src      string
	root     node
	literals []decimal.Decimal
}

// Compile parses and type-checks src.
func Compile(src string) (*Formula, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &SyntaxError{Formula: src, Msg: "formula is blank"}
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s after expression", t)
	}
	if root.kind() != kindNumber {
		return nil, &SyntaxError{Formula: src, Msg: "formula must produce a number, not a condition"}
	}
	return &Formula{src: src, root: root, literals: p.literals}, nil
}

// MustCompile is like Compile but panics on error. Intended for constants.
func MustCompile(src string) *Formula {
	f, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the source text.
func (f *Formula) String() string { return f.src }

// Thresholds returns the numeric literals compared against in conditions,
// the points where a formula's behavior can change.
func (f *Formula) Thresholds() []decimal.Decimal {
	out := make([]decimal.Decimal, len(f.literals))
	copy(out, f.literals)
	return out
}

// Eval evaluates the formula for amount without rounding. amount must be positive.
func (f *Formula) Eval(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("formula %q: amount must be positive, got %s", f.src, amount)
	}
	v, err := f.root.eval(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("formula %q: %w", f.src, err)
	}
	return v.num, nil
}

// EvalRounded evaluates the formula and rounds half away from zero to places.
func (f *Formula) EvalRounded(amount decimal.Decimal, places int32) (decimal.Decimal, error) {
	v, err := f.Eval(amount)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Round(places), nil
}

// Evaluate compiles src and evaluates it for amount, rounded to places.
func Evaluate(src string, amount decimal.Decimal, places int32) (decimal.Decimal, error) {
	f, err := Compile(src)
	if err != nil {
		return decimal.Zero, err
	}
	return f.EvalRounded(amount, places)
}
