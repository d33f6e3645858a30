package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// StatementParams is an already-parsed bank statement.
type StatementParams struct {
	AccountCode    string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	SourceFile     string
	// Lines carry date, description, reference, debit or credit and an
	// optional running balance. Ids, line numbers and match state are
	// assigned on import.
	Lines []model.BankStatementItem
}

// ValidateStatement checks a statement before import.
func ValidateStatement(p StatementParams) error {
	if p.AccountCode == "" {
		return model.Invalid("statement", "account_code", "required")
	}
	if p.PeriodStart.IsZero() || p.PeriodEnd.IsZero() {
		return model.Invalid("statement", "period", "start and end are required")
	}
	start, end := model.Day(p.PeriodStart), model.Day(p.PeriodEnd)
	if end.Before(start) {
		return model.Invalid("statement", "period", "end %s before start %s",
			end.Format(model.DateFormat), start.Format(model.DateFormat))
	}

	net := decimal.Zero
	for i, l := range p.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		d := model.Day(l.Date)
		if d.Before(start) || d.After(end) {
			return model.Invalid("statement", field, "date %s outside period", d.Format(model.DateFormat))
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return model.Invalid("statement", field, "negative amount")
		}
		if l.Debit.IsZero() == l.Credit.IsZero() {
			return model.Invalid("statement", field, "exactly one of debit and credit must be set")
		}
		net = net.Add(l.Signed())
	}

	if want := p.OpeningBalance.Add(net); !want.Equal(p.ClosingBalance) {
		return model.Invalid("statement", "closing_balance", "%s does not equal opening %s plus movements %s",
			p.ClosingBalance, p.OpeningBalance, net)
	}
	return nil
}

// ImportStatement validates and stores a statement with its items, all
// UNMATCHED.
func (s *Service) ImportStatement(ctx context.Context, p StatementParams) (model.BankStatement, error) {
	if err := ValidateStatement(p); err != nil {
		return model.BankStatement{}, err
	}

	st := model.BankStatement{
		ID:             id.New(id.PrefixStatement),
		AccountCode:    p.AccountCode,
		PeriodStart:    model.Day(p.PeriodStart),
		PeriodEnd:      model.Day(p.PeriodEnd),
		OpeningBalance: p.OpeningBalance,
		ClosingBalance: p.ClosingBalance,
		SourceFile:     p.SourceFile,
		ImportedAt:     s.now().UTC(),
	}
	for i, l := range p.Lines {
		l.ID = id.New(id.PrefixStatementItem)
		l.LineNo = i + 1
		l.Date = model.Day(l.Date)
		l.MatchStatus = model.MatchUnmatched
		l.MatchType = ""
		l.MatchedTransactionID = ""
		st.Items = append(st.Items, l)
	}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		acct, err := accounts.RequirePostable(tx, p.AccountCode)
		if err != nil {
			return err
		}
		if acct.Type != model.AccountTypeAsset {
			return model.Invalid("statement", "account_code", "%s is a %s account, not a bank account", acct.Code, acct.Type)
		}
		return tx.InsertStatement(st)
	})
	if err != nil {
		return model.BankStatement{}, err
	}

	s.log.Info("statement imported",
		zap.String("statement_id", st.ID),
		zap.String("account", st.AccountCode),
		zap.String("period_start", st.PeriodStart.Format(model.DateFormat)),
		zap.String("period_end", st.PeriodEnd.Format(model.DateFormat)),
		zap.Int("items", len(st.Items)))
	return st, nil
}

// Statement returns an imported statement with its items.
func (s *Service) Statement(ctx context.Context, statementID string) (model.BankStatement, error) {
	var st model.BankStatement
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		st, err = tx.Statement(statementID)
		return err
	})
	return st, err
}
