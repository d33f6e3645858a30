package sequence

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/boltstore"
)

func newAllocator(t *testing.T) (*Allocator, store.Store) {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewAllocator(s, zaptest.NewLogger(t)), s
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		docType string
		year    int
		ok      bool
	}{
		{"CS", 2025, true},
		{"JV", 1999, true},
		{"BANK-FEE", 2026, true},
		{"cs", 2025, false},
		{"", 2025, false},
		{"CS-", 2025, false},
		{"CS 1", 2025, false},
		{"CS", 0, false},
		{"CS", 12025, false},
	}
	for _, tt := range tests {
		err := ValidateKey(tt.docType, tt.year)
		if tt.ok {
			assert.NoError(t, err, "%s/%d", tt.docType, tt.year)
		} else {
			assert.True(t, errors.Is(err, model.ErrValidation), "%s/%d", tt.docType, tt.year)
		}
	}
}

func TestAllocateStartsAtOne(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()

	cur, err := a.Current(ctx, "CS", 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)

	for want := int64(1); want <= 3; want++ {
		n, err := a.Allocate(ctx, "CS", 2025)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := a.Allocate(ctx, "CS", 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "new year restarts")

	cur, err = a.Current(ctx, "CS", 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur)
}

func TestAllocateConcurrent(t *testing.T) {
	a, _ := newAllocator(t)
	const n = 100

	var (
		mu  sync.Mutex
		got []int64
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := a.Allocate(context.Background(), "CS", 2025)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, got, n)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		assert.Equal(t, int64(i+1), v, "numbers are 1..N with no gaps or duplicates")
	}
}

func TestNextRollsBackWithUnitOfWork(t *testing.T) {
	a, s := newAllocator(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx store.Tx) error {
		num, seq, err := Next(tx, "CS", 2025)
		require.NoError(t, err)
		assert.Equal(t, "CS-2025-000001", num)
		assert.Equal(t, int64(1), seq)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := a.Allocate(ctx, "CS", 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "aborted allocation leaves no gap")
}

func TestAllocateRejectsBadKey(t *testing.T) {
	a, _ := newAllocator(t)
	_, err := a.Allocate(context.Background(), "bad type", 2025)
	assert.True(t, errors.Is(err, model.ErrValidation))
}
