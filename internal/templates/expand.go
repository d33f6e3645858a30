// Package templates validates journal templates and expands them into
// journal lines.
package templates

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/formula"
	"github.com/cleared-dev/ledger/internal/model"
)

// probeBase are the amounts every template must balance for at save time.
var probeBase = []int64{1, 100, 12_345, 1_000_000}

// Expand evaluates every line of jt for amount, rounded to places. Lines
// that evaluate to zero are dropped. The result carries account, side and
// amount only; callers stamp transaction fields.
func Expand(jt model.JournalTemplate, amount decimal.Decimal, places int32) ([]model.JournalEntry, error) {
	if !amount.IsPositive() {
		return nil, model.Invalid("transaction", "amount", "must be positive, got %s", amount)
	}

	lines := append([]model.TemplateLine(nil), jt.Lines...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Order < lines[j].Order })

	var (
		out           []model.JournalEntry
		debit, credit = decimal.Zero, decimal.Zero
	)
	for i, l := range lines {
		f, err := formula.Compile(l.Formula)
		if err != nil {
			return nil, model.Invalid("template", fmt.Sprintf("lines[%d].formula", i), "%v", err)
		}
		v, err := f.EvalRounded(amount, places)
		if err != nil {
			return nil, model.Invalid("template", fmt.Sprintf("lines[%d].formula", i), "%v", err)
		}
		if v.IsNegative() {
			return nil, model.Invalid("template", fmt.Sprintf("lines[%d].formula", i),
				"%q is negative (%s) for amount %s", l.Formula, v, amount)
		}
		if v.IsZero() {
			continue
		}

		e := model.JournalEntry{LineNo: len(out) + 1, AccountCode: l.AccountCode, Description: l.Description}
		if l.Side == model.SideDebit {
			e.Debit = v
			debit = debit.Add(v)
		} else {
			e.Credit = v
			credit = credit.Add(v)
		}
		out = append(out, e)
	}

	if !debit.Equal(credit) {
		return nil, &model.UnbalancedTemplateError{TemplateID: jt.ID, Amount: amount, Debit: debit, Credit: credit}
	}
	if len(out) == 0 {
		return nil, model.Invalid("template", "lines", "every line is zero for amount %s", amount)
	}
	return out, nil
}

// ProbeAmounts returns the amounts a template is checked against at save
// time: fixed whole amounts plus every condition threshold and its
// neighbours.
func ProbeAmounts(jt model.JournalTemplate) []decimal.Decimal {
	seen := make(map[string]bool)
	var out []decimal.Decimal
	add := func(d decimal.Decimal) {
		if !d.IsPositive() || seen[d.String()] {
			return
		}
		seen[d.String()] = true
		out = append(out, d)
	}

	for _, n := range probeBase {
		add(decimal.NewFromInt(n))
	}
	one := decimal.NewFromInt(1)
	for _, l := range jt.Lines {
		f, err := formula.Compile(l.Formula)
		if err != nil {
			continue
		}
		for _, t := range f.Thresholds() {
			add(t.Sub(one))
			add(t)
			add(t.Add(one))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// CheckBalanced expands jt at every probe amount.
func CheckBalanced(jt model.JournalTemplate, places int32) error {
	for _, amt := range ProbeAmounts(jt) {
		if _, err := Expand(jt, amt, places); err != nil {
			var unbalanced *model.UnbalancedTemplateError
			if errors.As(err, &unbalanced) {
				return err
			}
			return fmt.Errorf("probe amount %s: %w", amt, err)
		}
	}
	return nil
}
