package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// Summary reports where a reconciliation stands.
//
// The adjusted bank balance is the statement closing balance plus the book
// effect of BOOK_ONLY transactions. The adjusted book balance is the book
// balance plus BANK_ONLY statement amounts, manual-match discrepancies and
// matched transactions the books date after the period end. Difference is
// adjusted bank minus adjusted book.
type Summary struct {
	ReconciliationID string
	Status           model.ReconciliationStatus

	BankBalance         decimal.Decimal
	BookBalance         decimal.Decimal
	AdjustedBankBalance decimal.Decimal
	AdjustedBookBalance decimal.Decimal
	Discrepancy         decimal.Decimal
	Difference          decimal.Decimal

	MatchedCount       int
	BankOnlyCount      int
	BookOnlyCount      int
	UnmatchedBankCount int
	UnmatchedBookCount int

	OutstandingItems        []string
	OutstandingTransactions []string
}

func (w *working) summarize() (Summary, error) {
	sum := Summary{
		ReconciliationID: w.rec.ID,
		Status:           w.rec.Status,
		BankBalance:      w.st.ClosingBalance,
		Discrepancy:      decimal.Zero,
	}

	book, err := bookBalance(w.tx, w.rec.AccountCode, w.rec.PeriodEnd)
	if err != nil {
		return Summary{}, err
	}
	sum.BookBalance = book

	bookOnly, bankOnly, lateBook := decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range w.rec.Items {
		switch r.Status {
		case model.MatchMatched:
			sum.MatchedCount++
			sum.Discrepancy = sum.Discrepancy.Add(r.Discrepancy)
			txn, err := w.transaction(r.TransactionID)
			if err != nil {
				return Summary{}, err
			}
			if txn.Date.After(w.rec.PeriodEnd) {
				lateBook = lateBook.Add(r.BookAmount)
			}
		case model.MatchBankOnly:
			sum.BankOnlyCount++
			bankOnly = bankOnly.Add(r.BankAmount)
		case model.MatchBookOnly:
			txn, err := w.transaction(r.TransactionID)
			if err != nil {
				return Summary{}, err
			}
			// Voided since marking: it no longer moves the book balance.
			if !txn.Counts() {
				continue
			}
			sum.BookOnlyCount++
			bookOnly = bookOnly.Add(r.BookAmount)
		}
	}

	for _, it := range w.st.Items {
		if i := w.rec.ItemFor(it.ID); i < 0 || !w.rec.Items[i].Status.Terminal() {
			sum.OutstandingItems = append(sum.OutstandingItems, it.ID)
		}
	}
	// Lookback candidates stay matchable but only period transactions block
	// completion: earlier ones already sit in the statement opening balance.
	open, err := w.openCandidates()
	if err != nil {
		return Summary{}, err
	}
	for _, c := range open {
		if w.inPeriod(c.Transaction.Date) {
			sum.OutstandingTransactions = append(sum.OutstandingTransactions, c.Transaction.ID)
		}
	}
	sum.UnmatchedBankCount = len(sum.OutstandingItems)
	sum.UnmatchedBookCount = len(sum.OutstandingTransactions)

	sum.AdjustedBankBalance = sum.BankBalance.Add(bookOnly)
	sum.AdjustedBookBalance = book.Add(bankOnly).Add(sum.Discrepancy).Add(lateBook)
	sum.Difference = sum.AdjustedBankBalance.Sub(sum.AdjustedBookBalance)
	return sum, nil
}
