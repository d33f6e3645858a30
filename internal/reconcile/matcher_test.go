package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func deposit(itemID string, d time.Time, amount int64, desc string) model.BankStatementItem {
	return model.BankStatementItem{ID: itemID, Date: d, Description: desc, Credit: decimal.NewFromInt(amount)}
}

func cand(txnID, docNum string, d time.Time, amount int64, desc string) Candidate {
	return Candidate{
		Transaction: model.Transaction{ID: txnID, DocumentNumber: docNum, Date: d, Description: desc},
		Effect:      decimal.NewFromInt(amount),
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("TRF/ACME-Corp inv 2025-001, ACME", 3)
	assert.Equal(t, map[string]struct{}{"trf": {}, "acme": {}, "corp": {}, "inv": {}, "2025": {}, "001": {}}, got)
	assert.Empty(t, Tokens("a b cd", 3))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Stationery World purchase", "Office supplies Stationery World", 2.0 / 3.0},
		{"ACME payment", "acme PAYMENT received", 1},
		{"ACME", "Globex", 0},
		{"", "anything", 0},
		{"ab", "ab", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Similarity(tt.a, tt.b, 3), 1e-9, "%q vs %q", tt.a, tt.b)
	}
}

func TestMatchPrefersExactOverFuzzy(t *testing.T) {
	items := []model.BankStatementItem{deposit("i1", day(1, 10), 100, "")}
	cands := []Candidate{
		cand("fuzzy", "BD-2025-000001", day(1, 9), 100, ""),
		cand("exact", "BD-2025-000002", day(1, 10), 100, ""),
	}
	pairs := Match(items, cands, DefaultOptions())
	require.Len(t, pairs, 1)
	assert.Equal(t, "exact", pairs[0].TransactionID)
	assert.Equal(t, model.MatchExact, pairs[0].Type)
}

func TestMatchRunsStrategiesAcrossAllItems(t *testing.T) {
	// i1 could take A on date tolerance, but A is i2's exact match.
	items := []model.BankStatementItem{
		deposit("i1", day(1, 10), 100, ""),
		deposit("i2", day(1, 11), 100, ""),
	}
	cands := []Candidate{
		cand("A", "BD-2025-000001", day(1, 11), 100, ""),
		cand("B", "BD-2025-000002", day(1, 13), 100, ""),
	}
	pairs := Match(items, cands, DefaultOptions())
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{ItemID: "i2", TransactionID: "A", Type: model.MatchExact, Score: 1}, pairs[0])
	assert.Equal(t, Pair{ItemID: "i1", TransactionID: "B", Type: model.MatchFuzzyDate, Score: 1}, pairs[1])
}

func TestMatchFuzzyTieBreaks(t *testing.T) {
	items := []model.BankStatementItem{deposit("i1", day(1, 10), 100, "")}

	closest := Match(items, []Candidate{
		cand("far", "BD-2025-000001", day(1, 7), 100, ""),
		cand("near", "BD-2025-000009", day(1, 12), 100, ""),
	}, DefaultOptions())
	require.Len(t, closest, 1)
	assert.Equal(t, "near", closest[0].TransactionID)

	lowest := Match(items, []Candidate{
		cand("second", "BD-2025-000002", day(1, 8), 100, ""),
		cand("first", "BD-2025-000001", day(1, 12), 100, ""),
	}, DefaultOptions())
	require.Len(t, lowest, 1)
	assert.Equal(t, "first", lowest[0].TransactionID)
}

func TestMatchRequiresSameSignedAmount(t *testing.T) {
	withdrawal := model.BankStatementItem{ID: "i1", Date: day(1, 10), Debit: decimal.NewFromInt(100)}
	pairs := Match([]model.BankStatementItem{withdrawal}, []Candidate{
		cand("in", "BD-2025-000001", day(1, 10), 100, ""),
		cand("late", "CP-2025-000001", day(1, 14), -100, ""),
	}, DefaultOptions())
	assert.Empty(t, pairs, "a deposit never matches a withdrawal and 4 days is outside tolerance")

	opts := DefaultOptions()
	opts.FuzzyDateDays = 5
	pairs = Match([]model.BankStatementItem{withdrawal}, []Candidate{
		cand("late", "CP-2025-000001", day(1, 14), -100, ""),
	}, opts)
	require.Len(t, pairs, 1)
	assert.Equal(t, model.MatchFuzzyDate, pairs[0].Type)
}

func TestMatchKeyword(t *testing.T) {
	items := []model.BankStatementItem{deposit("i1", day(1, 25), 500, "ACME CORP settlement")}

	pairs := Match(items, []Candidate{
		cand("other", "BD-2025-000001", day(1, 2), 500, "Globex retainer"),
		cand("weak", "BD-2025-000002", day(1, 3), 500, "ACME retainer fee january"),
		cand("strong", "BD-2025-000003", day(1, 4), 500, "Acme Corp settlement"),
	}, DefaultOptions())
	require.Len(t, pairs, 1)
	assert.Equal(t, "strong", pairs[0].TransactionID)
	assert.Equal(t, model.MatchKeyword, pairs[0].Type)
	assert.InDelta(t, 1.0, pairs[0].Score, 1e-9)

	pairs = Match(items, []Candidate{
		cand("unrelated", "BD-2025-000001", day(1, 2), 500, "Globex retainer"),
	}, DefaultOptions())
	assert.Empty(t, pairs)

	pairs = Match(items, []Candidate{
		cand("wrong amount", "BD-2025-000001", day(1, 2), 501, "ACME CORP settlement"),
	}, DefaultOptions())
	assert.Empty(t, pairs)
}

func TestMatchKeywordScoreBeforeDate(t *testing.T) {
	items := []model.BankStatementItem{deposit("i1", day(1, 25), 500, "ACME CORP settlement")}

	pairs := Match(items, []Candidate{
		cand("near", "BD-2025-000001", day(1, 20), 500, "ACME CORP retainer"),
		cand("far", "BD-2025-000002", day(1, 2), 500, "Acme Corp settlement"),
	}, DefaultOptions())
	require.Len(t, pairs, 1)
	assert.Equal(t, "far", pairs[0].TransactionID)

	pairs = Match(items, []Candidate{
		cand("older", "BD-2025-000001", day(1, 10), 500, "Acme Corp settlement"),
		cand("newer", "BD-2025-000002", day(1, 20), 500, "Acme Corp settlement"),
	}, DefaultOptions())
	require.Len(t, pairs, 1)
	assert.Equal(t, "newer", pairs[0].TransactionID, "equal scores fall back to the closest date")
}

func TestMatchKeywordUsesReferenceAndDocumentNumber(t *testing.T) {
	it := deposit("i1", day(1, 28), 500, "TRANSFER")
	it.Reference = "CS-2025-000042"
	pairs := Match([]model.BankStatementItem{it}, []Candidate{
		cand("t", "CS-2025-000042", day(1, 2), 500, "Counter sale"),
	}, DefaultOptions())
	require.Len(t, pairs, 1)
	assert.Equal(t, model.MatchKeyword, pairs[0].Type)
}

func TestMatchConsumesEachSideOnce(t *testing.T) {
	items := []model.BankStatementItem{
		deposit("i1", day(1, 10), 100, ""),
		deposit("i2", day(1, 10), 100, ""),
	}
	pairs := Match(items, []Candidate{cand("only", "BD-2025-000001", day(1, 10), 100, "")}, DefaultOptions())
	require.Len(t, pairs, 1)
	assert.Equal(t, "i1", pairs[0].ItemID)
}
