package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// IncompleteReconciliationError is returned by Complete while statement
// items or book transactions are still open, or the adjusted balances
// disagree.
type IncompleteReconciliationError struct {
	ReconciliationID        string
	OutstandingItems        []string // statement item ids
	OutstandingTransactions []string // transaction ids
	Difference              decimal.Decimal
}

func (e *IncompleteReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation %q incomplete: %d statement items and %d transactions outstanding, difference %s",
		e.ReconciliationID, len(e.OutstandingItems), len(e.OutstandingTransactions), e.Difference.String())
}

func (e *IncompleteReconciliationError) Is(target error) bool { return target == model.ErrState }
