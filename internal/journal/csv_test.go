package journal

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
)

func TestWriteEntries(t *testing.T) {
	txn := model.Transaction{
		ID:             "txn_1",
		DocumentNumber: "CS-2025-000001",
		Status:         model.TransactionPosted,
		Lines: []model.JournalEntry{
			{LineNo: 1, Date: jan15, AccountCode: "1.1.01", Debit: decimal.NewFromInt(1000), Description: "Sale, counter"},
			{LineNo: 2, Date: jan15, AccountCode: "4.1", Credit: decimal.NewFromInt(890)},
			{LineNo: 3, Date: jan15, AccountCode: "2.1.02", Credit: decimal.NewFromInt(110)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, []model.Transaction{txn}, 2))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, strings.Split(Header, ","), records[0])
	assert.Equal(t, []string{"CS-2025-000001", "2025-01-15", "txn_1", "POSTED", "1", "1.1.01", "Sale, counter", "1000.00", ""}, records[1])
	assert.Equal(t, "890.00", records[2][colCredit])
	assert.Equal(t, "", records[2][colDebit])
}

func TestReadManualLines(t *testing.T) {
	src := ManualHeader + "\n" +
		"1.1.02,2500000,,Opening bank balance\n" +
		"3.1,,2500000,\n"
	lines, err := ReadManualLines(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "1.1.02", lines[0].AccountCode)
	assert.True(t, lines[0].Debit.Equal(decimal.NewFromInt(2500000)))
	assert.True(t, lines[0].Credit.IsZero())
	assert.True(t, lines[1].Credit.Equal(decimal.NewFromInt(2500000)))

	_, err = ReadManualLines(strings.NewReader(ManualHeader + "\n1.1.02,abc,,\n"))
	assert.Error(t, err)

	_, err = ReadManualLines(strings.NewReader(ManualHeader + "\n1.1.02,1\n"))
	assert.Error(t, err, "wrong field count")
}
