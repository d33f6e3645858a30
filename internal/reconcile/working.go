package reconcile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

var postedOnly = []model.TransactionStatus{model.TransactionPosted}

// working is the state of one reconciliation inside a unit of work. Changes
// accumulate here and are written by flush.
type working struct {
	tx   store.Tx
	opts Options
	now  time.Time

	rec model.BankReconciliation
	st  model.BankStatement

	window []model.Transaction
	loaded bool

	items map[string]model.BankStatementItem
	txns  map[string]model.Transaction
}

func (s *Service) load(tx store.Tx, reconciliationID string) (*working, error) {
	rec, err := tx.Reconciliation(reconciliationID)
	if err != nil {
		return nil, err
	}
	st, err := tx.Statement(rec.StatementID)
	if err != nil {
		return nil, err
	}
	return &working{
		tx:    tx,
		opts:  s.opts,
		now:   s.now().UTC(),
		rec:   rec,
		st:    st,
		items: make(map[string]model.BankStatementItem),
		txns:  make(map[string]model.Transaction),
	}, nil
}

func (w *working) item(itemID string) (model.BankStatementItem, error) {
	it, ok := w.st.Item(itemID)
	if !ok {
		return model.BankStatementItem{}, model.NotFound("statement item", itemID)
	}
	return it, nil
}

func (w *working) setItem(it model.BankStatementItem) error {
	for i := range w.st.Items {
		if w.st.Items[i].ID == it.ID {
			w.st.Items[i] = it
			w.items[it.ID] = it
			return nil
		}
	}
	return model.NotFound("statement item", it.ID)
}

func (w *working) transaction(txnID string) (model.Transaction, error) {
	if t, ok := w.txns[txnID]; ok {
		return t, nil
	}
	return w.tx.Transaction(txnID)
}

// candidate loads a transaction that may be paired or marked in this
// reconciliation.
func (w *working) candidate(txnID string) (model.Transaction, error) {
	txn, err := w.transaction(txnID)
	if err != nil {
		return model.Transaction{}, err
	}
	if !txn.Counts() {
		return model.Transaction{}, &model.StateError{Entity: "transaction", ID: txn.ID,
			Current: string(txn.Status), Expected: string(model.TransactionPosted)}
	}
	if !txn.Touches(w.rec.AccountCode) {
		return model.Transaction{}, model.Invalid("transaction", "lines", "%s does not touch account %s", txn.ID, w.rec.AccountCode)
	}
	if txn.ReconciliationID != "" && txn.ReconciliationID != w.rec.ID {
		return model.Transaction{}, &model.StateError{Entity: "transaction", ID: txn.ID,
			Current: "matched in " + txn.ReconciliationID, Expected: "unmatched"}
	}
	return txn, nil
}

func (w *working) inPeriod(d time.Time) bool {
	return !d.Before(w.rec.PeriodStart) && !d.After(w.rec.PeriodEnd)
}

func (w *working) windowStart() time.Time {
	return w.rec.PeriodStart.AddDate(0, 0, -w.opts.LookbackDays)
}

// scope returns the posted transactions on the reconciled account inside
// the candidate window that are unclaimed or claimed by this
// reconciliation.
func (w *working) scope() ([]model.Transaction, error) {
	if !w.loaded {
		txns, err := w.tx.Transactions(store.TransactionFilter{
			AccountCode: w.rec.AccountCode,
			From:        w.windowStart(),
			To:          w.rec.PeriodEnd.AddDate(0, 0, w.opts.FuzzyDateDays),
			Statuses:    postedOnly,
		})
		if err != nil {
			return nil, err
		}
		for _, t := range txns {
			if t.ReconciliationID == "" || t.ReconciliationID == w.rec.ID {
				w.window = append(w.window, t)
			}
		}
		w.loaded = true
	}

	out := make([]model.Transaction, len(w.window))
	for i, t := range w.window {
		if d, ok := w.txns[t.ID]; ok {
			t = d
		}
		out[i] = t
	}
	return out, nil
}

// openCandidates are scope transactions with no record in this
// reconciliation and a nonzero effect on the account.
func (w *working) openCandidates() ([]Candidate, error) {
	txns, err := w.scope()
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, t := range txns {
		if t.ReconciliationID != "" || w.rec.ItemForTransaction(t.ID) >= 0 {
			continue
		}
		eff := t.CashEffect(w.rec.AccountCode)
		if eff.IsZero() {
			continue
		}
		out = append(out, Candidate{Transaction: t, Effect: eff})
	}
	return out, nil
}

// pair records a MATCHED pairing and claims the transaction.
func (w *working) pair(itemID, txnID string, kind model.MatchType, notes string) error {
	it, err := w.item(itemID)
	if err != nil {
		return err
	}
	txn, err := w.candidate(txnID)
	if err != nil {
		return err
	}

	bank, book := it.Signed(), txn.CashEffect(w.rec.AccountCode)
	w.rec.Items = append(w.rec.Items, model.ReconciliationItem{
		ID:              id.New(id.PrefixReconItem),
		StatementItemID: it.ID,
		TransactionID:   txn.ID,
		Status:          model.MatchMatched,
		MatchType:       kind,
		BankAmount:      bank,
		BookAmount:      book,
		Discrepancy:     bank.Sub(book),
		Notes:           notes,
		CreatedAt:       w.now,
	})

	it.MatchStatus = model.MatchMatched
	it.MatchType = kind
	it.MatchedTransactionID = txn.ID
	if err := w.setItem(it); err != nil {
		return err
	}
	txn.ReconciliationID = w.rec.ID
	w.txns[txn.ID] = txn
	return nil
}

// release drops the record at index i, reopening its statement item and
// unclaiming its transaction. A negative index is a no-op.
func (w *working) release(i int) error {
	if i < 0 {
		return nil
	}
	r := w.rec.Items[i]
	w.rec.RemoveItem(i)

	if r.StatementItemID != "" {
		it, err := w.item(r.StatementItemID)
		if err != nil {
			return err
		}
		it.MatchStatus = model.MatchUnmatched
		it.MatchType = ""
		it.MatchedTransactionID = ""
		if err := w.setItem(it); err != nil {
			return err
		}
	}
	if r.Status == model.MatchMatched && r.TransactionID != "" {
		txn, err := w.transaction(r.TransactionID)
		if err != nil {
			return err
		}
		txn.ReconciliationID = ""
		w.txns[txn.ID] = txn
	}
	return nil
}

// flush writes the reconciliation, then touched statement items and
// transactions in id order.
func (w *working) flush() error {
	if err := w.tx.UpdateReconciliation(w.rec); err != nil {
		return err
	}

	itemIDs := make([]string, 0, len(w.items))
	for k := range w.items {
		itemIDs = append(itemIDs, k)
	}
	sort.Strings(itemIDs)
	for _, k := range itemIDs {
		if err := w.tx.UpdateStatementItem(w.st.ID, w.items[k]); err != nil {
			return err
		}
	}

	txnIDs := make([]string, 0, len(w.txns))
	for k := range w.txns {
		txnIDs = append(txnIDs, k)
	}
	sort.Strings(txnIDs)
	for _, k := range txnIDs {
		if err := w.tx.UpdateTransaction(w.txns[k]); err != nil {
			return err
		}
	}
	return nil
}

// bookBalance is the cumulative posted balance of the cash account on end.
func bookBalance(tx store.Tx, accountCode string, end time.Time) (decimal.Decimal, error) {
	txns, err := tx.Transactions(store.TransactionFilter{AccountCode: accountCode, To: end, Statuses: postedOnly})
	if err != nil {
		return decimal.Zero, err
	}
	bal := decimal.Zero
	for _, t := range txns {
		bal = bal.Add(t.CashEffect(accountCode))
	}
	return bal, nil
}
