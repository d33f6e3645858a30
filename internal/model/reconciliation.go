package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the lifecycle state of a bank reconciliation.
type ReconciliationStatus string

const (
	ReconciliationDraft      ReconciliationStatus = "DRAFT"
	ReconciliationInProgress ReconciliationStatus = "IN_PROGRESS"
	ReconciliationCompleted  ReconciliationStatus = "COMPLETED"
)

// BankReconciliation reconciles one statement against the books.
type BankReconciliation struct {
	ID          string
	StatementID string
	AccountCode string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      ReconciliationStatus
	BankBalance decimal.Decimal
	BookBalance decimal.Decimal
	Notes       string
	CreatedAt   time.Time
	CompletedAt time.Time
	Items       []ReconciliationItem
}

// ReconciliationItem pairs a statement item with a book transaction, or
// records that one side has no counterpart.
type ReconciliationItem struct {
	ID              string
	StatementItemID string // empty for BOOK_ONLY
	TransactionID   string // empty for BANK_ONLY
	Status          MatchStatus
	MatchType       MatchType
	BankAmount      decimal.Decimal
	BookAmount      decimal.Decimal
	Discrepancy     decimal.Decimal // BankAmount - BookAmount for manual pairs
	Notes           string
	CreatedAt       time.Time
}

// ItemFor returns the index of the record referencing the statement item, or -1.
func (r BankReconciliation) ItemFor(statementItemID string) int {
	for i, it := range r.Items {
		if it.StatementItemID == statementItemID && statementItemID != "" {
			return i
		}
	}
	return -1
}

// ItemForTransaction returns the index of the record referencing the transaction, or -1.
func (r BankReconciliation) ItemForTransaction(transactionID string) int {
	for i, it := range r.Items {
		if it.TransactionID == transactionID && transactionID != "" {
			return i
		}
	}
	return -1
}

// RemoveItem drops the record at index i.
func (r *BankReconciliation) RemoveItem(i int) {
	r.Items = append(r.Items[:i], r.Items[i+1:]...)
}
