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

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColBalance = 5
	chaseColCheck   = 6
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns statement lines in date order.
// Negative amounts are withdrawals (debits).
func (p *ChaseParser) Parse(r io.Reader) ([]model.BankStatementItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var items []model.BankStatementItem
	for i, rec := range records[1:] {
		it, err := parseChaseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		items = append(items, it)
	}
	sortByDate(items)
	return items, nil
}

func parseChaseRow(rec []string) (model.BankStatementItem, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return model.BankStatementItem{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return model.BankStatementItem{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}

	balance, err := parseOptional(rec[chaseColBalance])
	if err != nil {
		return model.BankStatementItem{}, fmt.Errorf("parsing balance %q: %w", rec[chaseColBalance], err)
	}

	desc := rec[chaseColDesc]
	ref := strings.TrimSpace(rec[chaseColCheck])
	if ref == "" {
		ref = makeChaseRef(date, desc)
	}

	it := model.BankStatementItem{
		Date:           date,
		Description:    desc,
		Reference:      ref,
		RunningBalance: balance,
	}
	setSigned(&it, amount)
	return it, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUBPROS.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}
