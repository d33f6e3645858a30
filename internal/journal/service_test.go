package journal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/boltstore"
	"github.com/cleared-dev/ledger/internal/templates"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store store.Store
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, accounts.NewService(s, zap.NewNop()).Import(ctx, accounts.DefaultChart("trading")))
	tsvc := templates.NewService(s, zap.NewNop(), 2)
	for _, jt := range templates.Defaults() {
		_, err := tsvc.Save(ctx, jt)
		require.NoError(t, err, "saving %s", jt.ID)
	}

	svc := NewService(s, zaptest.NewLogger(t), Options{Places: 2})
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	return &fixture{store: s, svc: svc}
}

func (f *fixture) currentSequence(t *testing.T, docType string, year int) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.store.View(context.Background(), func(tx store.Tx) error {
		var err error
		n, err = tx.CurrentSequence(docType, year)
		return err
	}))
	return n
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	txns, err := f.svc.List(context.Background(), store.TransactionFilter{})
	require.NoError(t, err)
	return len(txns)
}

func TestPostCashSale(t *testing.T) {
	f := newFixture(t)
	txn, err := f.svc.Post(context.Background(), PostParams{
		TemplateID:  templates.CashSale,
		Date:        date(2025, 1, 15),
		Amount:      dec("1000000"),
		Description: "Counter sales",
	})
	require.NoError(t, err)

	assert.Equal(t, "CS-2025-000001", txn.DocumentNumber)
	assert.Equal(t, model.TransactionPosted, txn.Status)
	assert.Equal(t, 1, txn.TemplateVersion)
	assert.False(t, txn.PostedAt.IsZero())
	require.Len(t, txn.Lines, 3)

	want := map[string][2]string{
		accounts.CodeCash:         {"1000000", "0"},
		accounts.CodeSalesRevenue: {"0", "890000"},
		accounts.CodeVATPayable:   {"0", "110000"},
	}
	for i, l := range txn.Lines {
		assert.Equal(t, i+1, l.LineNo)
		assert.Equal(t, "CS-2025-000001", l.DocumentNumber)
		assert.Equal(t, "Counter sales", l.Description)
		w, ok := want[l.AccountCode]
		require.True(t, ok, "unexpected account %s", l.AccountCode)
		assert.True(t, l.Debit.Equal(dec(w[0])), "%s debit %s", l.AccountCode, l.Debit)
		assert.True(t, l.Credit.Equal(dec(w[1])), "%s credit %s", l.AccountCode, l.Credit)
	}

	stored, err := f.svc.Get(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.DocumentNumber, stored.DocumentNumber)
	assert.Len(t, stored.Lines, 3)

	next, err := f.svc.Post(context.Background(), PostParams{TemplateID: templates.CashSale, Date: date(2025, 1, 16), Amount: dec("500")})
	require.NoError(t, err)
	assert.Equal(t, "CS-2025-000002", next.DocumentNumber)

	other, err := f.svc.Post(context.Background(), PostParams{TemplateID: templates.CashSale, Date: date(2026, 1, 2), Amount: dec("500")})
	require.NoError(t, err)
	assert.Equal(t, "CS-2026-000001", other.DocumentNumber, "numbering restarts each year")
}

func TestPostRejectsInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		p    PostParams
		want error
	}{
		{"no date", PostParams{TemplateID: templates.CashSale, Amount: dec("10")}, model.ErrValidation},
		{"zero amount", PostParams{TemplateID: templates.CashSale, Date: date(2025, 1, 1), Amount: decimal.Zero}, model.ErrValidation},
		{"negative amount", PostParams{TemplateID: templates.CashSale, Date: date(2025, 1, 1), Amount: dec("-1")}, model.ErrValidation},
		{"unknown template", PostParams{TemplateID: "nope", Date: date(2025, 1, 1), Amount: dec("10")}, model.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Post(ctx, tt.p)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.count(t))
}

func TestPostInactiveTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, templates.NewService(f.store, zap.NewNop(), 2).SetActive(ctx, templates.BankFee, false))

	_, err := f.svc.Post(ctx, PostParams{TemplateID: templates.BankFee, Date: date(2025, 1, 31), Amount: dec("6500")})
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Equal(t, int64(0), f.currentSequence(t, "BF", 2025))
}

func TestPostUnbalancedTemplateLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 0.445 and 0.055 both round up: credits 0.51 against a 0.50 debit.
	_, err := f.svc.Post(ctx, PostParams{TemplateID: templates.CashSale, Date: date(2025, 1, 15), Amount: dec("0.50")})
	var ute *model.UnbalancedTemplateError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, templates.CashSale, ute.TemplateID)
	assert.Equal(t, "0.51", ute.Credit.String())

	assert.Equal(t, 0, f.count(t))
	assert.Equal(t, int64(0), f.currentSequence(t, "CS", 2025))

	txn, err := f.svc.Post(ctx, PostParams{TemplateID: templates.CashSale, Date: date(2025, 1, 15), Amount: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, "CS-2025-000001", txn.DocumentNumber, "rejected post consumed no number")
}

func TestConcurrentPostsGetDistinctGapFreeNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 30
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			txn, err := f.svc.Post(ctx, PostParams{
				TemplateID: templates.BankFee,
				Date:       date(2025, 3, 1+i%28),
				Amount:     decimal.NewFromInt(int64(1000 + i)),
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, txn.DocumentNumber)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, numbers, n)
	sort.Strings(numbers)
	for i, num := range numbers {
		assert.Equal(t, fmt.Sprintf("BF-2025-%06d", i+1), num)
	}
	assert.Equal(t, int64(n), f.currentSequence(t, "BF", 2025))
}

func TestVoid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sale, err := f.svc.Post(ctx, PostParams{TemplateID: templates.CashSale, Date: date(2025, 1, 10), Amount: dec("1000")})
	require.NoError(t, err)
	fee, err := f.svc.Post(ctx, PostParams{TemplateID: templates.CashSale, Date: date(2025, 1, 20), Amount: dec("300")})
	require.NoError(t, err)

	before, err := f.svc.AccountBalance(ctx, accounts.CodeCash, date(2025, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, "1300", before.String())

	_, err = f.svc.Void(ctx, fee.ID, "  ", "")
	assert.True(t, errors.Is(err, model.ErrValidation), "reason required")

	voided, err := f.svc.Void(ctx, fee.ID, "duplicate", "entered twice")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionVoid, voided.Status)
	assert.Equal(t, "duplicate", voided.VoidReason)
	assert.False(t, voided.VoidedAt.IsZero())

	stored, err := f.svc.Get(ctx, fee.ID)
	require.NoError(t, err)
	assert.Equal(t, fee.DocumentNumber, stored.DocumentNumber)
	require.Len(t, stored.Lines, len(fee.Lines))
	for i := range fee.Lines {
		assert.True(t, fee.Lines[i].Debit.Equal(stored.Lines[i].Debit))
		assert.True(t, fee.Lines[i].Credit.Equal(stored.Lines[i].Credit))
	}

	after, err := f.svc.AccountBalance(ctx, accounts.CodeCash, date(2025, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, "1000", after.String())

	earlier, err := f.svc.AccountBalance(ctx, accounts.CodeCash, date(2025, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, "1000", earlier.String(), "balances before the voided date are unaffected")

	_, err = f.svc.Void(ctx, fee.ID, "again", "")
	var se *model.StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, string(model.TransactionVoid), se.Current)

	_, err = f.svc.Void(ctx, "txn_missing", "x", "")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	// A matched transaction cannot be voided.
	require.NoError(t, f.store.Update(ctx, func(tx store.Tx) error {
		txn, err := tx.Transaction(sale.ID)
		if err != nil {
			return err
		}
		txn.ReconciliationID = "rec_1"
		return tx.UpdateTransaction(txn)
	}))
	_, err = f.svc.Void(ctx, sale.ID, "mistake", "")
	assert.True(t, errors.Is(err, model.ErrState))
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateDraft(ctx, PostParams{TemplateID: templates.BankDeposit, Date: date(2025, 2, 3), Amount: dec("2500")})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionDraft, draft.Status)
	assert.Empty(t, draft.DocumentNumber)
	assert.Len(t, draft.Lines, 2)
	assert.Equal(t, int64(0), f.currentSequence(t, "BD", 2025))

	bal, err := f.svc.AccountBalance(ctx, accounts.CodeBank, time.Time{})
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "drafts do not count")

	_, err = f.svc.Void(ctx, draft.ID, "no", "")
	assert.True(t, errors.Is(err, model.ErrState))

	posted, err := f.svc.PostDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "BD-2025-000001", posted.DocumentNumber)
	assert.Equal(t, model.TransactionPosted, posted.Status)

	_, err = f.svc.PostDraft(ctx, draft.ID)
	assert.True(t, errors.Is(err, model.ErrState))
	assert.Error(t, f.svc.DeleteDraft(ctx, draft.ID), "posted transactions are never deleted")

	other, err := f.svc.CreateDraft(ctx, PostParams{TemplateID: templates.BankDeposit, Date: date(2025, 2, 4), Amount: dec("10")})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteDraft(ctx, other.ID))
	_, err = f.svc.Get(ctx, other.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestPostDraftUsesCurrentTemplateVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateDraft(ctx, PostParams{TemplateID: templates.BankFee, Date: date(2025, 2, 28), Amount: dec("6500")})
	require.NoError(t, err)
	assert.Equal(t, 1, draft.TemplateVersion)

	tsvc := templates.NewService(f.store, zap.NewNop(), 2)
	jt, err := tsvc.Get(ctx, templates.BankFee)
	require.NoError(t, err)
	jt.Lines[0].Description = "Monthly admin fee"
	_, err = tsvc.Save(ctx, jt)
	require.NoError(t, err)

	posted, err := f.svc.PostDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, posted.TemplateVersion)
}

func TestPostManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.svc.PostManual(ctx, ManualParams{
		Date:        date(2025, 1, 1),
		Description: "Opening balance",
		Lines: []ManualLine{
			{AccountCode: accounts.CodeBank, Debit: dec("25000000")},
			{AccountCode: accounts.CodeOwnerCapital, Credit: dec("25000000")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "JV-2025-000001", txn.DocumentNumber)
	assert.Equal(t, "25000000", txn.Amount.String())
	assert.Empty(t, txn.TemplateID)

	tests := []struct {
		name  string
		lines []ManualLine
	}{
		{"unbalanced", []ManualLine{
			{AccountCode: accounts.CodeBank, Debit: dec("10")},
			{AccountCode: accounts.CodeOwnerCapital, Credit: dec("9")},
		}},
		{"header account", []ManualLine{
			{AccountCode: "1.1", Debit: dec("10")},
			{AccountCode: accounts.CodeOwnerCapital, Credit: dec("10")},
		}},
		{"one line", []ManualLine{
			{AccountCode: accounts.CodeBank, Debit: dec("10")},
		}},
		{"sub-cent", []ManualLine{
			{AccountCode: accounts.CodeBank, Debit: dec("10.001")},
			{AccountCode: accounts.CodeOwnerCapital, Credit: dec("10.001")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PostManual(ctx, ManualParams{DocumentType: "ADJ", Date: date(2025, 1, 2), Lines: tt.lines})
			assert.True(t, errors.Is(err, model.ErrValidation), "got %v", err)
		})
	}
	assert.Equal(t, int64(0), f.currentSequence(t, "ADJ", 2025))
}

func TestTrialBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostManual(ctx, ManualParams{
		Date: date(2025, 1, 1),
		Lines: []ManualLine{
			{AccountCode: accounts.CodeBank, Debit: dec("1000000")},
			{AccountCode: accounts.CodeOwnerCapital, Credit: dec("1000000")},
		},
	})
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, PostParams{TemplateID: templates.CashSale, Date: date(2025, 1, 5), Amount: dec("200000")})
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, PostParams{TemplateID: templates.BankFee, Date: date(2025, 1, 31), Amount: dec("6500")})
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, PostParams{TemplateID: templates.BankFee, Date: date(2025, 2, 28), Amount: dec("6500")})
	require.NoError(t, err)

	tb, err := f.svc.TrialBalance(ctx, date(2025, 1, 31))
	require.NoError(t, err)
	assert.True(t, tb.Balanced())
	assert.Equal(t, "1206500", tb.TotalDebit.String())

	var codes []string
	balances := map[string]string{}
	for _, r := range tb.Rows {
		codes = append(codes, r.Account.Code)
		balances[r.Account.Code] = r.Balance.String()
	}
	assert.True(t, sort.SliceIsSorted(codes, func(i, j int) bool { return codes[i] < codes[j] }))
	assert.Equal(t, "993500", balances[accounts.CodeBank])
	assert.Equal(t, "200000", balances[accounts.CodeCash])
	assert.Equal(t, "178000", balances[accounts.CodeSalesRevenue])
	assert.Equal(t, "22000", balances[accounts.CodeVATPayable])
	assert.Equal(t, "6500", balances[accounts.CodeBankFees])
	assert.Equal(t, "1000000", balances[accounts.CodeOwnerCapital])
}
