package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/storetest"
)

func openTemp(t *testing.T) store.Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, openTemp)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	err = s.Update(context.Background(), func(tx store.Tx) error {
		_, err := tx.NextSequence("CS", 2025)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	err = s.View(context.Background(), func(tx store.Tx) error {
		cur, err := tx.CurrentSequence("CS", 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(1), cur)
		return nil
	})
	require.NoError(t, err)
}

func TestCanceledContext(t *testing.T) {
	s := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Update(ctx, func(store.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	err = s.View(ctx, func(store.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
