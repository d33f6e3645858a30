package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDocumentNumber(t *testing.T) {
	tests := []struct {
		docType string
		year    int
		seq     int64
		want    string
	}{
		{"CS", 2025, 1, "CS-2025-000001"},
		{"JV", 2025, 999999, "JV-2025-999999"},
		{"BANK-FEE", 2026, 42, "BANK-FEE-2026-000042"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDocumentNumber(tt.docType, tt.year, tt.seq))
	}
}

func TestParseDocumentNumber(t *testing.T) {
	tests := []struct {
		input    string
		wantType string
		wantYear int
		wantSeq  int64
	}{
		{"CS-2025-000001", "CS", 2025, 1},
		{"JV-2024-000120", "JV", 2024, 120},
		{"BANK-FEE-2026-000042", "BANK-FEE", 2026, 42},
	}
	for _, tt := range tests {
		docType, year, seq, err := ParseDocumentNumber(tt.input)
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.wantType, docType)
		assert.Equal(t, tt.wantYear, year)
		assert.Equal(t, tt.wantSeq, seq)
	}
}

func TestParseDocumentNumber_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"CS",
		"2025-000001",
		"CS-xxxx-000001",
		"CS-2025-abc",
	}
	for _, input := range badInputs {
		_, _, _, err := ParseDocumentNumber(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestNew(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 1000; i++ {
		got := New(PrefixTransaction)
		require.True(t, strings.HasPrefix(got, "txn_"))
		assert.False(t, seen[got], "duplicate id %s", got)
		assert.Greater(t, got, prev, "ids are monotonic")
		seen[got] = true
		prev = got
	}
}
