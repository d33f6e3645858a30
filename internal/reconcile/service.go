// Package reconcile matches imported bank statements against posted book
// transactions and closes the resulting bank reconciliations.
package reconcile

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Service runs reconciliations. Every operation is one store unit of work,
// so concurrent callers on the same reconciliation are serialized.
type Service struct {
	store store.Store
	log   *zap.Logger
	opts  Options
	now   func() time.Time
}

// NewService creates a reconciliation Service.
func NewService(s store.Store, log *zap.Logger, opts Options) *Service {
	return &Service{store: s, log: log, opts: opts, now: time.Now}
}

// CreateReconciliation opens a DRAFT reconciliation over a statement. A
// statement is reconciled at most once.
func (s *Service) CreateReconciliation(ctx context.Context, statementID, notes string) (model.BankReconciliation, error) {
	var rec model.BankReconciliation
	err := s.store.Update(ctx, func(tx store.Tx) error {
		st, err := tx.Statement(statementID)
		if err != nil {
			return err
		}
		existing, err := tx.Reconciliations(statementID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &model.StateError{Entity: "statement", ID: statementID,
				Current: "reconciled by " + existing[0].ID, Expected: "unreconciled"}
		}

		rec = model.BankReconciliation{
			ID:          id.New(id.PrefixReconciliation),
			StatementID: st.ID,
			AccountCode: st.AccountCode,
			PeriodStart: st.PeriodStart,
			PeriodEnd:   st.PeriodEnd,
			Status:      model.ReconciliationDraft,
			BankBalance: st.ClosingBalance,
			Notes:       notes,
			CreatedAt:   s.now().UTC(),
		}
		rec.BookBalance, err = bookBalance(tx, st.AccountCode, st.PeriodEnd)
		if err != nil {
			return err
		}
		return tx.InsertReconciliation(rec)
	})
	if err != nil {
		return model.BankReconciliation{}, err
	}

	s.log.Info("reconciliation created",
		zap.String("reconciliation_id", rec.ID),
		zap.String("statement_id", rec.StatementID),
		zap.String("account", rec.AccountCode))
	return rec, nil
}

// Get returns a reconciliation with its match records.
func (s *Service) Get(ctx context.Context, reconciliationID string) (model.BankReconciliation, error) {
	var rec model.BankReconciliation
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		rec, err = tx.Reconciliation(reconciliationID)
		return err
	})
	return rec, err
}

// List returns the reconciliations of a statement, or all of them when
// statementID is empty, oldest first.
func (s *Service) List(ctx context.Context, statementID string) ([]model.BankReconciliation, error) {
	var out []model.BankReconciliation
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Reconciliations(statementID)
		return err
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// AutoMatch pairs open statement items with unclaimed book transactions
// and returns the number of pairs made.
func (s *Service) AutoMatch(ctx context.Context, reconciliationID string) (int, error) {
	var pairs []Pair
	err := s.mutate(ctx, reconciliationID, func(w *working) error {
		cands, err := w.openCandidates()
		if err != nil {
			return err
		}
		var items []model.BankStatementItem
		for _, it := range w.st.Items {
			if w.rec.ItemFor(it.ID) < 0 {
				items = append(items, it)
			}
		}

		pairs = Match(items, cands, s.opts)
		for _, p := range pairs {
			if err := w.pair(p.ItemID, p.TransactionID, p.Type, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	counts := map[model.MatchType]int{}
	for _, p := range pairs {
		counts[p.Type]++
	}
	s.log.Info("auto-match finished",
		zap.String("reconciliation_id", reconciliationID),
		zap.Int("matched", len(pairs)),
		zap.Int("exact", counts[model.MatchExact]),
		zap.Int("fuzzy_date", counts[model.MatchFuzzyDate]),
		zap.Int("keyword", counts[model.MatchKeyword]))
	return len(pairs), nil
}

// ManualMatch pairs a statement item with a transaction, replacing any
// automatic pairing either side had. Amounts may differ; the difference is
// recorded as a discrepancy.
func (s *Service) ManualMatch(ctx context.Context, reconciliationID, itemID, transactionID, notes string) (model.ReconciliationItem, error) {
	var rec model.ReconciliationItem
	err := s.mutate(ctx, reconciliationID, func(w *working) error {
		if _, err := w.item(itemID); err != nil {
			return err
		}
		txn, err := w.candidate(transactionID)
		if err != nil {
			return err
		}

		if i := w.rec.ItemFor(itemID); i >= 0 {
			cur := w.rec.Items[i]
			if cur.Status != model.MatchMatched || !cur.MatchType.Automatic() {
				return &model.StateError{Entity: "statement item", ID: itemID,
					Current: describe(cur), Expected: "unmatched or auto-matched"}
			}
		}
		if i := w.rec.ItemForTransaction(txn.ID); i >= 0 {
			cur := w.rec.Items[i]
			if cur.Status != model.MatchMatched || !cur.MatchType.Automatic() {
				return &model.StateError{Entity: "transaction", ID: txn.ID,
					Current: describe(cur), Expected: "unmatched or auto-matched"}
			}
		}
		if err := w.release(w.rec.ItemFor(itemID)); err != nil {
			return err
		}
		if err := w.release(w.rec.ItemForTransaction(txn.ID)); err != nil {
			return err
		}

		if err := w.pair(itemID, txn.ID, model.MatchManual, notes); err != nil {
			return err
		}
		rec = w.rec.Items[len(w.rec.Items)-1]
		return nil
	})
	if err != nil {
		return model.ReconciliationItem{}, err
	}

	s.log.Info("manual match",
		zap.String("reconciliation_id", reconciliationID),
		zap.String("item_id", itemID),
		zap.String("transaction_id", transactionID),
		zap.String("discrepancy", rec.Discrepancy.String()))
	return rec, nil
}

// MarkBankOnly records that an open statement item has no book counterpart.
func (s *Service) MarkBankOnly(ctx context.Context, reconciliationID, itemID, notes string) error {
	err := s.mutate(ctx, reconciliationID, func(w *working) error {
		it, err := w.item(itemID)
		if err != nil {
			return err
		}
		if i := w.rec.ItemFor(itemID); i >= 0 {
			return &model.StateError{Entity: "statement item", ID: itemID,
				Current: describe(w.rec.Items[i]), Expected: string(model.MatchUnmatched)}
		}
		w.rec.Items = append(w.rec.Items, model.ReconciliationItem{
			ID:              id.New(id.PrefixReconItem),
			StatementItemID: itemID,
			Status:          model.MatchBankOnly,
			BankAmount:      it.Signed(),
			BookAmount:      decimal.Zero,
			Discrepancy:     decimal.Zero,
			Notes:           notes,
			CreatedAt:       w.now,
		})
		it.MatchStatus = model.MatchBankOnly
		it.MatchType = ""
		it.MatchedTransactionID = ""
		return w.setItem(it)
	})
	if err != nil {
		return err
	}
	s.log.Info("marked bank only", zap.String("reconciliation_id", reconciliationID), zap.String("item_id", itemID))
	return nil
}

// MarkBookOnly records that an open book transaction has no statement
// counterpart, such as an uncleared cheque. The transaction stays
// unclaimed for later statements.
func (s *Service) MarkBookOnly(ctx context.Context, reconciliationID, transactionID, notes string) error {
	err := s.mutate(ctx, reconciliationID, func(w *working) error {
		txn, err := w.candidate(transactionID)
		if err != nil {
			return err
		}
		if txn.Date.After(w.rec.PeriodEnd) {
			return model.Invalid("transaction", "date", "%s is after the period end %s",
				txn.Date.Format(model.DateFormat), w.rec.PeriodEnd.Format(model.DateFormat))
		}
		if i := w.rec.ItemForTransaction(txn.ID); i >= 0 {
			return &model.StateError{Entity: "transaction", ID: txn.ID,
				Current: describe(w.rec.Items[i]), Expected: string(model.MatchUnmatched)}
		}
		w.rec.Items = append(w.rec.Items, model.ReconciliationItem{
			ID:            id.New(id.PrefixReconItem),
			TransactionID: txn.ID,
			Status:        model.MatchBookOnly,
			BankAmount:    decimal.Zero,
			BookAmount:    txn.CashEffect(w.rec.AccountCode),
			Discrepancy:   decimal.Zero,
			Notes:         notes,
			CreatedAt:     w.now,
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("marked book only", zap.String("reconciliation_id", reconciliationID), zap.String("transaction_id", transactionID))
	return nil
}

// Unmatch reverts a statement item to UNMATCHED, releasing its
// transaction. Unmatching an open item is a no-op.
func (s *Service) Unmatch(ctx context.Context, reconciliationID, itemID string) error {
	return s.mutate(ctx, reconciliationID, func(w *working) error {
		if _, err := w.item(itemID); err != nil {
			return err
		}
		return w.release(w.rec.ItemFor(itemID))
	})
}

// UnmatchTransaction reverts whatever record references a transaction,
// including a BOOK_ONLY marking. It is a no-op for an open transaction.
func (s *Service) UnmatchTransaction(ctx context.Context, reconciliationID, transactionID string) error {
	return s.mutate(ctx, reconciliationID, func(w *working) error {
		return w.release(w.rec.ItemForTransaction(transactionID))
	})
}

// Complete closes an IN_PROGRESS reconciliation once every statement item
// and every book transaction dated in the period is terminal and the adjusted
// balances agree.
func (s *Service) Complete(ctx context.Context, reconciliationID string) (Summary, error) {
	var sum Summary
	err := s.store.Update(ctx, func(tx store.Tx) error {
		w, err := s.load(tx, reconciliationID)
		if err != nil {
			return err
		}
		if w.rec.Status != model.ReconciliationInProgress {
			return &model.StateError{Entity: "reconciliation", ID: w.rec.ID,
				Current: string(w.rec.Status), Expected: string(model.ReconciliationInProgress)}
		}

		sum, err = w.summarize()
		if err != nil {
			return err
		}
		if len(sum.OutstandingItems) > 0 || len(sum.OutstandingTransactions) > 0 || !sum.Difference.IsZero() {
			return &IncompleteReconciliationError{
				ReconciliationID:        w.rec.ID,
				OutstandingItems:        sum.OutstandingItems,
				OutstandingTransactions: sum.OutstandingTransactions,
				Difference:              sum.Difference,
			}
		}

		w.rec.Status = model.ReconciliationCompleted
		w.rec.CompletedAt = w.now
		w.rec.BookBalance = sum.BookBalance
		w.rec.BankBalance = sum.BankBalance
		sum.Status = w.rec.Status
		return tx.UpdateReconciliation(w.rec)
	})
	if err != nil {
		var inc *IncompleteReconciliationError
		if errors.As(err, &inc) {
			s.log.Warn("reconciliation incomplete",
				zap.String("reconciliation_id", reconciliationID),
				zap.Int("outstanding_items", len(inc.OutstandingItems)),
				zap.Int("outstanding_transactions", len(inc.OutstandingTransactions)),
				zap.String("difference", inc.Difference.String()))
		}
		return Summary{}, err
	}

	s.log.Info("reconciliation completed",
		zap.String("reconciliation_id", reconciliationID),
		zap.Int("matched", sum.MatchedCount),
		zap.String("bank_balance", sum.BankBalance.String()))
	return sum, nil
}

// Summary reports the balances and counts of a reconciliation.
func (s *Service) Summary(ctx context.Context, reconciliationID string) (Summary, error) {
	var sum Summary
	err := s.store.View(ctx, func(tx store.Tx) error {
		w, err := s.load(tx, reconciliationID)
		if err != nil {
			return err
		}
		sum, err = w.summarize()
		return err
	})
	return sum, err
}

// mutate runs fn against an open reconciliation and persists the result.
// The first change moves a DRAFT reconciliation to IN_PROGRESS.
func (s *Service) mutate(ctx context.Context, reconciliationID string, fn func(*working) error) error {
	return s.store.Update(ctx, func(tx store.Tx) error {
		w, err := s.load(tx, reconciliationID)
		if err != nil {
			return err
		}
		if w.rec.Status == model.ReconciliationCompleted {
			return &model.StateError{Entity: "reconciliation", ID: w.rec.ID,
				Current: string(w.rec.Status), Expected: "open"}
		}
		if err := fn(w); err != nil {
			return err
		}
		if w.rec.Status == model.ReconciliationDraft {
			w.rec.Status = model.ReconciliationInProgress
		}
		return w.flush()
	})
}

func describe(r model.ReconciliationItem) string {
	if r.MatchType != "" {
		return string(r.Status) + "/" + string(r.MatchType)
	}
	return string(r.Status)
}
