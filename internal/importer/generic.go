package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// GenericParser reads a headed CSV with ISO dates. Columns are found by
// name: date and description are required; amounts come either from debit
// and credit columns or from a signed amount column. reference and balance
// are optional.
type GenericParser struct{}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

type genericColumns struct {
	date, desc, ref, debit, credit, amount, balance int
}

func locateColumns(header []string) (genericColumns, error) {
	cols := genericColumns{-1, -1, -1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			cols.date = i
		case "description":
			cols.desc = i
		case "reference":
			cols.ref = i
		case "debit":
			cols.debit = i
		case "credit":
			cols.credit = i
		case "amount":
			cols.amount = i
		case "balance":
			cols.balance = i
		}
	}
	if cols.date < 0 || cols.desc < 0 {
		return cols, fmt.Errorf("header needs date and description columns, got %v", header)
	}
	hasSplit := cols.debit >= 0 && cols.credit >= 0
	if hasSplit == (cols.amount >= 0) {
		return cols, fmt.Errorf("header needs either debit and credit columns or an amount column, got %v", header)
	}
	return cols, nil
}

// Parse reads the CSV and returns statement lines in date order.
func (p *GenericParser) Parse(r io.Reader) ([]model.BankStatementItem, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading generic CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	cols, err := locateColumns(records[0])
	if err != nil {
		return nil, err
	}

	var items []model.BankStatementItem
	for i, rec := range records[1:] {
		it, err := cols.parse(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		items = append(items, it)
	}
	sortByDate(items)
	return items, nil
}

func (c genericColumns) parse(rec []string) (model.BankStatementItem, error) {
	date, err := time.Parse(model.DateFormat, strings.TrimSpace(rec[c.date]))
	if err != nil {
		return model.BankStatementItem{}, fmt.Errorf("parsing date %q: %w", rec[c.date], err)
	}
	it := model.BankStatementItem{Date: date, Description: strings.TrimSpace(rec[c.desc])}
	if c.ref >= 0 {
		it.Reference = strings.TrimSpace(rec[c.ref])
	}

	if c.amount >= 0 {
		amount, err := decimal.NewFromString(strings.TrimSpace(rec[c.amount]))
		if err != nil {
			return model.BankStatementItem{}, fmt.Errorf("parsing amount %q: %w", rec[c.amount], err)
		}
		setSigned(&it, amount)
	} else {
		debit, err := parseOptional(rec[c.debit])
		if err != nil {
			return model.BankStatementItem{}, fmt.Errorf("parsing debit %q: %w", rec[c.debit], err)
		}
		credit, err := parseOptional(rec[c.credit])
		if err != nil {
			return model.BankStatementItem{}, fmt.Errorf("parsing credit %q: %w", rec[c.credit], err)
		}
		it.Debit, it.Credit = debit.Decimal, credit.Decimal
	}

	if c.balance >= 0 {
		it.RunningBalance, err = parseOptional(rec[c.balance])
		if err != nil {
			return model.BankStatementItem{}, fmt.Errorf("parsing balance %q: %w", rec[c.balance], err)
		}
	}
	return it, nil
}
