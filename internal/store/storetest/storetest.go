// Package storetest is a conformance suite for store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Opener returns a fresh, empty store. It registers its own cleanup.
type Opener func(t *testing.T) store.Store

// Run exercises every store.Tx operation against stores from open.
func Run(t *testing.T, open Opener) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, open(t)) })
	t.Run("Templates", func(t *testing.T) { testTemplates(t, open(t)) })
	t.Run("Sequences", func(t *testing.T) { testSequences(t, open(t)) })
	t.Run("SequencesConcurrent", func(t *testing.T) { testSequencesConcurrent(t, open(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, open(t)) })
	t.Run("DuplicateDocumentNumber", func(t *testing.T) { testDuplicateDocumentNumber(t, open(t)) })
	t.Run("Drafts", func(t *testing.T) { testDrafts(t, open(t)) })
	t.Run("Statements", func(t *testing.T) { testStatements(t, open(t)) })
	t.Run("Reconciliations", func(t *testing.T) { testReconciliations(t, open(t)) })
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func update(t *testing.T, s store.Store, fn func(store.Tx) error) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), fn))
}

func view(t *testing.T, s store.Store, fn func(store.Tx) error) {
	t.Helper()
	require.NoError(t, s.View(context.Background(), fn))
}

func seedAccounts(t *testing.T, s store.Store) {
	t.Helper()
	update(t, s, func(tx store.Tx) error {
		for _, a := range []model.Account{
			{Code: "1", Name: "Assets", Type: model.AccountTypeAsset, NormalSide: model.SideDebit, Header: true, Active: true},
			{Code: "1.1", Name: "Cash", Type: model.AccountTypeAsset, NormalSide: model.SideDebit, Active: true},
			{Code: "4", Name: "Revenue", Type: model.AccountTypeRevenue, NormalSide: model.SideCredit, Active: true},
		} {
			if err := tx.PutAccount(a); err != nil {
				return err
			}
		}
		return nil
	})
}

func sampleTxn(id, docNum string, d time.Time, amount string, status model.TransactionStatus) model.Transaction {
	amt := dec(amount)
	return model.Transaction{
		ID:             id,
		DocumentNumber: docNum,
		DocumentType:   "CS",
		Date:           d,
		Amount:         amt,
		Description:    "sale " + id,
		Status:         status,
		Lines: []model.JournalEntry{
			{TransactionID: id, LineNo: 1, AccountCode: "1.1", Debit: amt, Date: d, DocumentNumber: docNum},
			{TransactionID: id, LineNo: 2, AccountCode: "4", Credit: amt, Date: d, DocumentNumber: docNum},
		},
	}
}

func testAccounts(t *testing.T, s store.Store) {
	seedAccounts(t, s)
	view(t, s, func(tx store.Tx) error {
		a, err := tx.Account("1.1")
		require.NoError(t, err)
		assert.Equal(t, "Cash", a.Name)
		assert.Equal(t, model.SideDebit, a.NormalSide)

		_, err = tx.Account("9.9")
		assert.True(t, errors.Is(err, model.ErrNotFound))

		all, err := tx.Accounts()
		require.NoError(t, err)
		assert.Len(t, all, 3)

		used, err := tx.AccountInUse("1.1")
		require.NoError(t, err)
		assert.False(t, used)
		return nil
	})

	update(t, s, func(tx store.Tx) error {
		a, err := tx.Account("1.1")
		require.NoError(t, err)
		a.Name = "Cash on hand"
		return tx.PutAccount(a)
	})
	view(t, s, func(tx store.Tx) error {
		a, err := tx.Account("1.1")
		require.NoError(t, err)
		assert.Equal(t, "Cash on hand", a.Name)
		return nil
	})
}

func testTemplates(t *testing.T, s store.Store) {
	seedAccounts(t, s)
	jt := model.JournalTemplate{
		ID: "tpl_1", Name: "Cash Sale", DocumentType: "CS", Active: true, Version: 1,
		Lines: []model.TemplateLine{
			{AccountCode: "1.1", Side: model.SideDebit, Formula: "amount", Order: 1},
			{AccountCode: "4", Side: model.SideCredit, Formula: "amount", Order: 2},
		},
	}
	update(t, s, func(tx store.Tx) error { return tx.PutTemplate(jt) })
	view(t, s, func(tx store.Tx) error {
		got, err := tx.Template("tpl_1")
		require.NoError(t, err)
		assert.Equal(t, "Cash Sale", got.Name)
		require.Len(t, got.Lines, 2)
		assert.Equal(t, "amount", got.Lines[1].Formula)
		assert.Equal(t, model.SideCredit, got.Lines[1].Side)

		_, err = tx.Template("nope")
		assert.True(t, errors.Is(err, model.ErrNotFound))

		all, err := tx.Templates()
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	})

	jt.Version = 2
	jt.Lines = jt.Lines[:1]
	update(t, s, func(tx store.Tx) error { return tx.PutTemplate(jt) })
	view(t, s, func(tx store.Tx) error {
		got, err := tx.Template("tpl_1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Len(t, got.Lines, 1)
		return nil
	})
}

func testSequences(t *testing.T, s store.Store) {
	var got []int64
	update(t, s, func(tx store.Tx) error {
		cur, err := tx.CurrentSequence("CS", 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(0), cur)
		for i := 0; i < 3; i++ {
			n, err := tx.NextSequence("CS", 2025)
			if err != nil {
				return err
			}
			got = append(got, n)
		}
		n, err := tx.NextSequence("CS", 2026)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "years are independent")
		n, err = tx.NextSequence("JV", 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "document types are independent")
		return nil
	})
	assert.Equal(t, []int64{1, 2, 3}, got)

	view(t, s, func(tx store.Tx) error {
		cur, err := tx.CurrentSequence("CS", 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(3), cur)
		return nil
	})
}

func testSequencesConcurrent(t *testing.T, s store.Store) {
	const n = 40
	var (
		mu  sync.Mutex
		got []int64
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var v int64
			err := s.Update(context.Background(), func(tx store.Tx) error {
				var err error
				v, err = tx.NextSequence("CS", 2025)
				return err
			})
			assert.NoError(t, err)
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, int64(i+1), v)
	}
}

func testRollback(t *testing.T, s store.Store) {
	seedAccounts(t, s)
	boom := errors.New("boom")
	err := s.Update(context.Background(), func(tx store.Tx) error {
		if _, err := tx.NextSequence("CS", 2025); err != nil {
			return err
		}
		if err := tx.InsertTransaction(sampleTxn("txn_rb", "CS-2025-000001", date(2025, 1, 5), "10", model.TransactionPosted)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	view(t, s, func(tx store.Tx) error {
		cur, err := tx.CurrentSequence("CS", 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(0), cur, "sequence increment rolled back")
		_, err = tx.Transaction("txn_rb")
		assert.True(t, errors.Is(err, model.ErrNotFound), "transaction rolled back")
		used, err := tx.AccountInUse("1.1")
		require.NoError(t, err)
		assert.False(t, used)
		return nil
	})
}

func testTransactions(t *testing.T, s store.Store) {
	seedAccounts(t, s)
	update(t, s, func(tx store.Tx) error {
		for _, txn := range []model.Transaction{
			sampleTxn("txn_b", "CS-2025-000002", date(2025, 1, 10), "20", model.TransactionPosted),
			sampleTxn("txn_a", "CS-2025-000001", date(2025, 1, 10), "10", model.TransactionPosted),
			sampleTxn("txn_c", "CS-2025-000003", date(2025, 2, 1), "30", model.TransactionPosted),
		} {
			if err := tx.InsertTransaction(txn); err != nil {
				return err
			}
		}
		return nil
	})

	view(t, s, func(tx store.Tx) error {
		got, err := tx.Transaction("txn_a")
		require.NoError(t, err)
		assert.Equal(t, "CS-2025-000001", got.DocumentNumber)
		require.Len(t, got.Lines, 2)
		assert.True(t, got.Lines[0].Debit.Equal(dec("10")))
		assert.True(t, got.Lines[1].Credit.Equal(dec("10")))
		assert.True(t, got.Date.Equal(date(2025, 1, 10)))

		all, err := tx.Transactions(store.TransactionFilter{AccountCode: "1.1"})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"txn_a", "txn_b", "txn_c"}, []string{all[0].ID, all[1].ID, all[2].ID})

		jan, err := tx.Transactions(store.TransactionFilter{From: date(2025, 1, 1), To: date(2025, 1, 31)})
		require.NoError(t, err)
		assert.Len(t, jan, 2)

		none, err := tx.Transactions(store.TransactionFilter{AccountCode: "9.9"})
		require.NoError(t, err)
		assert.Empty(t, none)

		used, err := tx.AccountInUse("4")
		require.NoError(t, err)
		assert.True(t, used)
		return nil
	})

	// Posted lines are immutable: an update carrying different lines keeps the originals.
	update(t, s, func(tx store.Tx) error {
		txn, err := tx.Transaction("txn_a")
		require.NoError(t, err)
		txn.Status = model.TransactionVoid
		txn.VoidReason = "duplicate"
		txn.Lines = nil
		return tx.UpdateTransaction(txn)
	})
	view(t, s, func(tx store.Tx) error {
		txn, err := tx.Transaction("txn_a")
		require.NoError(t, err)
		assert.Equal(t, model.TransactionVoid, txn.Status)
		assert.Equal(t, "duplicate", txn.VoidReason)
		assert.Len(t, txn.Lines, 2)

		posted, err := tx.Transactions(store.TransactionFilter{Statuses: []model.TransactionStatus{model.TransactionPosted}})
		require.NoError(t, err)
		assert.Len(t, posted, 2)
		return nil
	})

	err := s.Update(context.Background(), func(tx store.Tx) error {
		txn, err := tx.Transaction("txn_b")
		require.NoError(t, err)
		txn.DocumentNumber = "CS-2025-000099"
		return tx.UpdateTransaction(txn)
	})
	assert.True(t, errors.Is(err, model.ErrIntegrity), "document numbers never change")
}

func testDuplicateDocumentNumber(t *testing.T, s store.Store) {
	seedAccounts(t, s)
	update(t, s, func(tx store.Tx) error {
		return tx.InsertTransaction(sampleTxn("txn_1", "CS-2025-000001", date(2025, 1, 5), "10", model.TransactionPosted))
	})
	err := s.Update(context.Background(), func(tx store.Tx) error {
		return tx.InsertTransaction(sampleTxn("txn_2", "CS-2025-000001", date(2025, 1, 6), "11", model.TransactionPosted))
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrIntegrity))

	view(t, s, func(tx store.Tx) error {
		_, err := tx.Transaction("txn_2")
		assert.True(t, errors.Is(err, model.ErrNotFound))
		return nil
	})
}

func testDrafts(t *testing.T, s store.Store) {
	seedAccounts(t, s)
	draft := sampleTxn("txn_d", "", date(2025, 3, 1), "50", model.TransactionDraft)
	update(t, s, func(tx store.Tx) error { return tx.InsertTransaction(draft) })
	view(t, s, func(tx store.Tx) error {
		used, err := tx.AccountInUse("1.1")
		require.NoError(t, err)
		assert.False(t, used, "drafts do not freeze accounts")
		return nil
	})

	// Drafts may be rewritten, lines included.
	update(t, s, func(tx store.Tx) error {
		d := sampleTxn("txn_d", "", date(2025, 3, 1), "75", model.TransactionDraft)
		return tx.UpdateTransaction(d)
	})
	view(t, s, func(tx store.Tx) error {
		d, err := tx.Transaction("txn_d")
		require.NoError(t, err)
		assert.True(t, d.Lines[0].Debit.Equal(dec("75")))
		return nil
	})

	update(t, s, func(tx store.Tx) error { return tx.DeleteTransaction("txn_d") })
	view(t, s, func(tx store.Tx) error {
		_, err := tx.Transaction("txn_d")
		assert.True(t, errors.Is(err, model.ErrNotFound))
		return nil
	})

	update(t, s, func(tx store.Tx) error {
		return tx.InsertTransaction(sampleTxn("txn_p", "CS-2025-000007", date(2025, 3, 2), "5", model.TransactionPosted))
	})
	err := s.Update(context.Background(), func(tx store.Tx) error { return tx.DeleteTransaction("txn_p") })
	assert.True(t, errors.Is(err, model.ErrState), "posted transactions are never deleted")
}

func sampleStatement() model.BankStatement {
	return model.BankStatement{
		ID:             "stm_1",
		AccountCode:    "1.1",
		PeriodStart:    date(2025, 1, 1),
		PeriodEnd:      date(2025, 1, 31),
		OpeningBalance: dec("100"),
		ClosingBalance: dec("130"),
		SourceFile:     "jan.csv",
		Items: []model.BankStatementItem{
			{ID: "sti_1", LineNo: 1, Date: date(2025, 1, 5), Description: "DEPOSIT", Credit: dec("50"), MatchStatus: model.MatchUnmatched,
				RunningBalance: decimal.NewNullDecimal(dec("150"))},
			{ID: "sti_2", LineNo: 2, Date: date(2025, 1, 9), Description: "FEE", Debit: dec("20"), MatchStatus: model.MatchUnmatched},
		},
	}
}

func testStatements(t *testing.T, s store.Store) {
	seedAccounts(t, s)
	update(t, s, func(tx store.Tx) error { return tx.InsertStatement(sampleStatement()) })
	view(t, s, func(tx store.Tx) error {
		st, err := tx.Statement("stm_1")
		require.NoError(t, err)
		assert.True(t, st.ClosingBalance.Equal(dec("130")))
		require.Len(t, st.Items, 2)
		assert.Equal(t, 1, st.Items[0].LineNo)
		assert.True(t, st.Items[0].RunningBalance.Valid)
		assert.True(t, st.Items[0].RunningBalance.Decimal.Equal(dec("150")))
		assert.False(t, st.Items[1].RunningBalance.Valid)
		assert.True(t, st.Items[1].Signed().Equal(dec("-20")))
		return nil
	})

	update(t, s, func(tx store.Tx) error {
		st, err := tx.Statement("stm_1")
		require.NoError(t, err)
		item := st.Items[1]
		item.MatchStatus = model.MatchBankOnly
		return tx.UpdateStatementItem("stm_1", item)
	})
	view(t, s, func(tx store.Tx) error {
		st, err := tx.Statement("stm_1")
		require.NoError(t, err)
		assert.Equal(t, model.MatchUnmatched, st.Items[0].MatchStatus)
		assert.Equal(t, model.MatchBankOnly, st.Items[1].MatchStatus)
		return nil
	})

	err := s.Update(context.Background(), func(tx store.Tx) error {
		return tx.UpdateStatementItem("stm_1", model.BankStatementItem{ID: "sti_missing"})
	})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	err = s.View(context.Background(), func(tx store.Tx) error {
		_, err := tx.Statement("stm_missing")
		return err
	})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func testReconciliations(t *testing.T, s store.Store) {
	seedAccounts(t, s)
	update(t, s, func(tx store.Tx) error { return tx.InsertStatement(sampleStatement()) })
	rec := model.BankReconciliation{
		ID:          "rec_1",
		StatementID: "stm_1",
		AccountCode: "1.1",
		PeriodStart: date(2025, 1, 1),
		PeriodEnd:   date(2025, 1, 31),
		Status:      model.ReconciliationDraft,
		BankBalance: dec("130"),
		CreatedAt:   time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	update(t, s, func(tx store.Tx) error { return tx.InsertReconciliation(rec) })

	rec.Status = model.ReconciliationInProgress
	rec.Items = []model.ReconciliationItem{
		{ID: "rci_1", StatementItemID: "sti_2", Status: model.MatchBankOnly, BankAmount: dec("-20"), Notes: "fee",
			CreatedAt: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)},
	}
	update(t, s, func(tx store.Tx) error { return tx.UpdateReconciliation(rec) })

	view(t, s, func(tx store.Tx) error {
		got, err := tx.Reconciliation("rec_1")
		require.NoError(t, err)
		assert.Equal(t, model.ReconciliationInProgress, got.Status)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "fee", got.Items[0].Notes)
		assert.True(t, got.Items[0].BankAmount.Equal(dec("-20")))

		list, err := tx.Reconciliations("stm_1")
		require.NoError(t, err)
		assert.Len(t, list, 1)
		other, err := tx.Reconciliations("stm_other")
		require.NoError(t, err)
		assert.Empty(t, other)
		return nil
	})

	rec.Items = nil
	update(t, s, func(tx store.Tx) error { return tx.UpdateReconciliation(rec) })
	view(t, s, func(tx store.Tx) error {
		got, err := tx.Reconciliation("rec_1")
		require.NoError(t, err)
		assert.Empty(t, got.Items, "items are replaced, not merged")
		return nil
	})

	err := s.Update(context.Background(), func(tx store.Tx) error {
		return tx.UpdateReconciliation(model.BankReconciliation{ID: "rec_missing"})
	})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
