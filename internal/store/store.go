// Package store defines the ledger persistence contract.
//
// Every core operation runs as one unit of work: Update for read-write work,
// View for reads. Update is atomic (all writes commit or none do) and holds
// exclusive access to every row it reads for update, so read-modify-write
// sequences such as sequence allocation cannot interleave.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/cleared-dev/ledger/internal/model"
)

// Store opens units of work against the ledger.
type Store interface {
	// Update runs fn in a read-write unit of work. If fn returns an error
	// nothing it wrote is kept.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn in a read-only unit of work.
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx is the set of reads and writes available inside a unit of work. Reads
// performed inside Update lock what they return until the unit ends.
type Tx interface {
	Account(code string) (model.Account, error)
	Accounts() ([]model.Account, error)
	PutAccount(a model.Account) error
	// AccountInUse reports whether any posted or void line references code.
	AccountInUse(code string) (bool, error)

	Template(id string) (model.JournalTemplate, error)
	Templates() ([]model.JournalTemplate, error)
	PutTemplate(t model.JournalTemplate) error

	// NextSequence increments and returns the counter for (docType, year),
	// creating it at 1 when absent.
	NextSequence(docType string, year int) (int64, error)
	// CurrentSequence returns the last number issued for (docType, year), or 0.
	CurrentSequence(docType string, year int) (int64, error)

	Transaction(id string) (model.Transaction, error)
	// InsertTransaction stores a transaction and its lines. A document
	// number already in use yields a *model.IntegrityError.
	InsertTransaction(t model.Transaction) error
	// UpdateTransaction rewrites the header of an existing transaction and,
	// while it is a draft, its lines.
	UpdateTransaction(t model.Transaction) error
	// DeleteTransaction removes a draft.
	DeleteTransaction(id string) error
	// Transactions returns transactions (with lines) matching the filter,
	// ordered by date then document number.
	Transactions(f TransactionFilter) ([]model.Transaction, error)

	Statement(id string) (model.BankStatement, error)
	InsertStatement(s model.BankStatement) error
	UpdateStatementItem(statementID string, item model.BankStatementItem) error

	Reconciliation(id string) (model.BankReconciliation, error)
	Reconciliations(statementID string) ([]model.BankReconciliation, error)
	InsertReconciliation(r model.BankReconciliation) error
	// UpdateReconciliation rewrites the header and replaces the items.
	UpdateReconciliation(r model.BankReconciliation) error
}

// TransactionFilter narrows Transactions. Zero fields do not filter.
type TransactionFilter struct {
	AccountCode string
	From        time.Time // inclusive
	To          time.Time // inclusive
	Statuses    []model.TransactionStatus
}

// Match reports whether t passes the filter.
func (f TransactionFilter) Match(t model.Transaction) bool {
	if !f.From.IsZero() && t.Date.Before(model.Day(f.From)) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(model.Day(f.To)) {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if t.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.AccountCode != "" && !t.Touches(f.AccountCode) {
		return false
	}
	return true
}

// SortTransactions orders transactions by date, then document number, then id.
func SortTransactions(ts []model.Transaction) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.DocumentNumber != b.DocumentNumber {
			return a.DocumentNumber < b.DocumentNumber
		}
		return a.ID < b.ID
	})
}
