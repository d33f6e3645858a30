package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionDraft  TransactionStatus = "DRAFT"
	TransactionPosted TransactionStatus = "POSTED"
	TransactionVoid   TransactionStatus = "VOID"
)

// Transaction is one business event and the journal lines it owns.
type Transaction struct {
	ID               string
	DocumentNumber   string // assigned at posting, never changed afterwards
	DocumentType     string
	TemplateID       string // empty for manual entries
	TemplateVersion  int
	Date             time.Time
	Amount           decimal.Decimal
	Description      string
	Status           TransactionStatus
	VoidReason       string
	VoidNotes        string
	VoidedAt         time.Time
	PostedAt         time.Time
	ReconciliationID string // set while matched by a bank reconciliation
	Lines            []JournalEntry
}

// JournalEntry is a single debit or credit line. Exactly one of Debit and
// Credit is nonzero.
type JournalEntry struct {
	TransactionID  string
	LineNo         int
	AccountCode    string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Date           time.Time
	DocumentNumber string
	Description    string
}

// Amount returns the nonzero side of the line.
func (e JournalEntry) Amount() decimal.Decimal {
	if !e.Debit.IsZero() {
		return e.Debit
	}
	return e.Credit
}

// Side returns the side carrying the line amount.
func (e JournalEntry) Side() Side {
	if !e.Debit.IsZero() {
		return SideDebit
	}
	return SideCredit
}

// Totals returns the debit and credit sums of the transaction lines.
func (t Transaction) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range t.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// CashEffect returns the net debit-minus-credit movement on accountCode.
func (t Transaction) CashEffect(accountCode string) decimal.Decimal {
	net := decimal.Zero
	for _, l := range t.Lines {
		if l.AccountCode != accountCode {
			continue
		}
		net = net.Add(l.Debit).Sub(l.Credit)
	}
	return net
}

// Touches reports whether any line references accountCode.
func (t Transaction) Touches(accountCode string) bool {
	for _, l := range t.Lines {
		if l.AccountCode == accountCode {
			return true
		}
	}
	return false
}

// Counts reports whether the transaction participates in balances.
func (t Transaction) Counts() bool {
	return t.Status == TransactionPosted
}
