package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/storetest"
)

// The suite needs a disposable database; every subtest truncates it.
const dsnEnv = "LEDGER_TEST_POSTGRES_DSN"

func openClean(t *testing.T) store.Store {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Pool().Exec(ctx, `TRUNCATE bank_reconciliation_items, bank_reconciliations, bank_statement_items,
		bank_statements, journal_entries, transactions, transaction_sequences, journal_template_lines,
		journal_templates, accounts CASCADE`)
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	if os.Getenv(dsnEnv) == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	storetest.Run(t, openClean)
}
