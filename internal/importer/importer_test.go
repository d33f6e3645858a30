package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
)

func readChase(t *testing.T) []model.BankStatementItem {
	t.Helper()
	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)

	p := &ChaseParser{}
	items, err := p.Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	return items
}

func TestChaseParser_Parse(t *testing.T) {
	items := readChase(t)
	assert.Len(t, items, 6)

	// First: GITHUB subscription, a withdrawal.
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", items[0].Description)
	assert.Equal(t, "4.00", items[0].Debit.StringFixed(2))
	assert.True(t, items[0].Credit.IsZero())
	assert.Equal(t, 2025, items[0].Date.Year())
	assert.Equal(t, 1, int(items[0].Date.Month()))
	assert.Equal(t, 3, items[0].Date.Day())
	assert.True(t, items[0].RunningBalance.Valid)
	assert.Equal(t, "4996.00", items[0].RunningBalance.Decimal.StringFixed(2))

	// Fourth: ACME income, a deposit.
	assert.Equal(t, "ACME CONSULTING INVOICE 1042", items[3].Description)
	assert.True(t, items[3].Debit.IsZero())
	assert.Equal(t, "3500.00", items[3].Credit.StringFixed(2))
}

func TestChaseParser_DateParsing(t *testing.T) {
	items := readChase(t)

	// Jan 22
	last := items[5]
	assert.Equal(t, 2025, last.Date.Year())
	assert.Equal(t, 1, int(last.Date.Month()))
	assert.Equal(t, 22, last.Date.Day())
}

func TestChaseParser_Sides(t *testing.T) {
	for _, it := range readChase(t) {
		if it.Description == "ACME CONSULTING INVOICE 1042" {
			assert.True(t, it.Signed().IsPositive())
		} else {
			assert.True(t, it.Signed().IsNegative(), "expected withdrawal for %s", it.Description)
		}
		assert.NotEqual(t, it.Debit.IsZero(), it.Credit.IsZero(), "exactly one side for %s", it.Description)
	}
}

func TestChaseParser_SortsByDate(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n" +
		"DEBIT,01/09/2025,later,-1.00,ACH_DEBIT,,\n" +
		"DEBIT,01/02/2025,earlier,-1.00,ACH_DEBIT,,\n"
	items, err := (&ChaseParser{}).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "earlier", items[0].Description)
	assert.False(t, items[0].RunningBalance.Valid)
}

func TestChaseParser_EmptyFile(t *testing.T) {
	p := &ChaseParser{}
	items, err := p.Parse(strings.NewReader("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"))
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestChaseParser_BadDate(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\nDEBIT,NOTADATE,desc,-4.00,ACH_DEBIT,100.00,\n"
	p := &ChaseParser{}
	_, err := p.Parse(strings.NewReader(csv))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing date")
}

func TestChaseParser_BadAmount(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\nDEBIT,01/03/2025,desc,NOTANUMBER,ACH_DEBIT,100.00,\n"
	p := &ChaseParser{}
	_, err := p.Parse(strings.NewReader(csv))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing amount")
}

func TestChaseParser_Format(t *testing.T) {
	p := &ChaseParser{}
	assert.Equal(t, "chase", p.Format())
}

func TestChaseParser_Reference(t *testing.T) {
	items := readChase(t)

	// Reference format: chase_YYYYMMDD_<prefix>, or the cheque number.
	assert.Equal(t, "chase_20250103_GITHUBPROS", items[0].Reference)
	assert.Equal(t, "1187", items[2].Reference)
}

func TestGenericParser_Parse(t *testing.T) {
	f, err := os.Open("../../testdata/generic_statement.csv")
	require.NoError(t, err)
	defer f.Close()

	items, err := (&GenericParser{}).Parse(f)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "INCOMING TRANSFER PT MAJU", items[0].Description)
	assert.Equal(t, "TRF-0105", items[0].Reference)
	assert.Equal(t, "2500000", items[0].Credit.String())
	assert.Equal(t, "1200000", items[2].Debit.String())
	assert.True(t, items[2].Credit.IsZero())

	opening, closing, err := Balances(items)
	require.NoError(t, err)
	assert.Equal(t, "10000000", opening.String())
	assert.Equal(t, "12035000", closing.String())

	start, end := Period(items)
	assert.Equal(t, "2025-01-05", start.Format(model.DateFormat))
	assert.Equal(t, "2025-01-31", end.Format(model.DateFormat))
}

func TestGenericParser_SignedAmountColumn(t *testing.T) {
	csv := "Date,Description,Amount\n2025-02-01,Refund,12.50\n2025-02-02,Card,-3\n"
	items, err := (&GenericParser{}).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "12.5", items[0].Credit.String())
	assert.Equal(t, "3", items[1].Debit.String())

	_, _, err = Balances(items)
	assert.ErrorIs(t, err, ErrNoRunningBalance)
}

func TestGenericParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"missing date column", "when,description,amount\nx,y,1\n", "date and description"},
		{"no amount columns", "date,description\n2025-01-01,y\n", "debit and credit"},
		{"both amount styles", "date,description,debit,credit,amount\n2025-01-01,y,,1,1\n", "debit and credit"},
		{"bad date", "date,description,amount\n01/02/2025,y,1\n", "parsing date"},
		{"bad amount", "date,description,amount\n2025-01-01,y,abc\n", "parsing amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&GenericParser{}).Parse(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBalances_Chase(t *testing.T) {
	opening, closing, err := Balances(readChase(t))
	require.NoError(t, err)
	assert.Equal(t, "5000.00", opening.StringFixed(2))
	assert.Equal(t, "8124.43", closing.StringFixed(2))
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	p := r.Get("chase")
	require.NotNil(t, p)
	assert.Equal(t, "chase", p.Format())
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	assert.NotNil(t, r.Get("Chase"))
	assert.NotNil(t, r.Get("CHASE"))
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("chase"))
	assert.NotNil(t, r.Get("generic"))
	assert.Equal(t, []string{"chase", "generic"}, r.Formats())
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "bank.csv", files[0].Name)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	processedDir := filepath.Join(importDir, "processed")
	require.NoError(t, os.MkdirAll(processedDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processedDir, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	err := MarkProcessed(dir, "bank.csv")
	require.NoError(t, err)

	// Source gone.
	_, err = os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))

	// Destination exists.
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}

func TestMarkProcessed_CreatesDir(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "a.csv"), []byte("data"), 0o644))

	err := MarkProcessed(dir, "a.csv")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "import", "processed"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
