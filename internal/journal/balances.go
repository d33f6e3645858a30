package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

var postedOnly = []model.TransactionStatus{model.TransactionPosted}

// BalanceRow is one account's line in a trial balance.
type BalanceRow struct {
	Account model.Account
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	// Balance is signed by the account's normal side: positive means the
	// account holds a balance on its normal side.
	Balance decimal.Decimal
}

// TrialBalance lists every account with posted activity up to a date.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []BalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether total debits equal total credits.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

func normalBalance(a model.Account, debit, credit decimal.Decimal) decimal.Decimal {
	if a.NormalSide == model.SideCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// AccountBalance returns the balance of a leaf account from POSTED
// transactions dated on or before asOf, signed by its normal side. A zero
// asOf means all dates.
func (s *Service) AccountBalance(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.store.View(ctx, func(tx store.Tx) error {
		acct, err := tx.Account(code)
		if err != nil {
			return err
		}
		txns, err := tx.Transactions(store.TransactionFilter{AccountCode: code, To: asOf, Statuses: postedOnly})
		if err != nil {
			return err
		}
		debit, credit := decimal.Zero, decimal.Zero
		for _, txn := range txns {
			for _, l := range txn.Lines {
				if l.AccountCode == code {
					debit = debit.Add(l.Debit)
					credit = credit.Add(l.Credit)
				}
			}
		}
		bal = normalBalance(acct, debit, credit)
		return nil
	})
	return bal, err
}

// TrialBalance sums POSTED lines per account up to asOf, ordered by code.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	tb := TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	err := s.store.View(ctx, func(tx store.Tx) error {
		accts, err := tx.Accounts()
		if err != nil {
			return err
		}
		chart := accounts.NewChart(accts)

		txns, err := tx.Transactions(store.TransactionFilter{To: asOf, Statuses: postedOnly})
		if err != nil {
			return err
		}
		type sums struct{ debit, credit decimal.Decimal }
		totals := make(map[string]*sums)
		for _, txn := range txns {
			for _, l := range txn.Lines {
				t := totals[l.AccountCode]
				if t == nil {
					t = &sums{debit: decimal.Zero, credit: decimal.Zero}
					totals[l.AccountCode] = t
				}
				t.debit = t.debit.Add(l.Debit)
				t.credit = t.credit.Add(l.Credit)
			}
		}

		for _, a := range chart.All() {
			t := totals[a.Code]
			if t == nil {
				continue
			}
			tb.Rows = append(tb.Rows, BalanceRow{
				Account: a,
				Debit:   t.debit,
				Credit:  t.credit,
				Balance: normalBalance(a, t.debit, t.credit),
			})
			tb.TotalDebit = tb.TotalDebit.Add(t.debit)
			tb.TotalCredit = tb.TotalCredit.Add(t.credit)
		}
		return nil
	})
	return tb, err
}
