package transfers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/infra/memory"
)

func potential(date string, amount float64, account string) *domain.Transaction {
	return &domain.Transaction{
		Date:              date,
		Description:       "Transfer",
		Amount:            amount,
		Type:              domain.TypeForAmount(amount),
		AccountName:       account,
		PotentialTransfer: true,
	}
}

type failingFinder struct{ err error }

func (f failingFinder) FindTransferCandidates(context.Context, float64, string) ([]*domain.Transaction, error) {
	return nil, f.err
}

func TestMatchInBatch(t *testing.T) {
	tests := []struct {
		name  string
		batch []*domain.Transaction
		want  map[int]int
	}{
		{
			name: "opposite amounts in different accounts",
			batch: []*domain.Transaction{
				potential("2025-01-16", 500, "BoA"),
				potential("2025-01-18", -500, "Fidelity"),
			},
			want: map[int]int{0: 1, 1: 0},
		},
		{
			name: "mixed date formats",
			batch: []*domain.Transaction{
				potential("16-Jan-2025", 500, "BoA"),
				potential("01/21/2025", -500, "Fidelity"),
			},
			want: map[int]int{0: 1, 1: 0},
		},
		{
			name: "six days apart",
			batch: []*domain.Transaction{
				potential("2025-01-16", 500, "BoA"),
				potential("2025-01-22", -500, "Fidelity"),
			},
			want: map[int]int{},
		},
		{
			name: "same account",
			batch: []*domain.Transaction{
				potential("2025-01-16", 500, "BoA"),
				potential("2025-01-16", -500, "BoA"),
			},
			want: map[int]int{},
		},
		{
			name: "same sign",
			batch: []*domain.Transaction{
				potential("2025-01-16", 500, "BoA"),
				potential("2025-01-16", 500, "Fidelity"),
			},
			want: map[int]int{},
		},
		{
			name: "unparseable date never matches",
			batch: []*domain.Transaction{
				potential("sometime", 500, "BoA"),
				potential("2025-01-16", -500, "Fidelity"),
			},
			want: map[int]int{},
		},
		{
			name: "partner not flagged",
			batch: []*domain.Transaction{
				potential("2025-01-16", 500, "BoA"),
				{Date: "2025-01-16", Amount: -500, AccountName: "Fidelity"},
			},
			want: map[int]int{},
		},
		{
			name: "first match wins",
			batch: []*domain.Transaction{
				potential("2025-01-10", -100, "Checking"),
				potential("2025-01-14", 100, "Savings"),
				potential("2025-01-10", 100, "Brokerage"),
			},
			want: map[int]int{0: 1, 1: 0},
		},
		{
			name: "each record pairs once",
			batch: []*domain.Transaction{
				potential("2025-01-10", -100, "Checking"),
				potential("2025-01-10", 100, "Savings"),
				potential("2025-01-10", -100, "Brokerage"),
				potential("2025-01-10", 100, "IRA"),
			},
			want: map[int]int{0: 1, 1: 0, 2: 3, 3: 2},
		},
		{
			name: "float representation drift",
			batch: []*domain.Transaction{
				potential("2025-01-10", 0.1+0.2, "Checking"),
				potential("2025-01-10", -0.3, "Savings"),
			},
			want: map[int]int{0: 1, 1: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(memory.NewStore(), 0)
			plan, err := m.Match(context.Background(), tt.batch)
			require.NoError(t, err)
			require.Len(t, plan.Partners, len(tt.batch))

			got := map[int]int{}
			for i, p := range plan.Partners {
				if p == nil {
					continue
				}
				require.True(t, p.InBatch())
				got[i] = p.Index
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), plan.Matched())
		})
	}
}

func TestMatchAgainstStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids, err := store.InsertMany(ctx, []*domain.Transaction{
		{Date: "2024-12-20", Amount: -600, AccountName: "Baxter"},
		{Date: "2025-01-05", Amount: -600, AccountName: "Fidelity Roth"},
		{Date: "2025-01-05", Amount: -600, AccountName: "Baxter"},
		{Date: "2025-01-07", Amount: -600, AccountName: "Chase"},
	})
	require.NoError(t, err)

	batch := []*domain.Transaction{
		potential("2025-01-06", 600, "Fidelity Roth"),
		potential("2025-01-06", 600, "Vanguard"),
		potential("2025-01-06", 600, "Schwab"),
	}
	plan, err := NewMatcher(store, DefaultWindowDays).Match(ctx, batch)
	require.NoError(t, err)

	require.NotNil(t, plan.Partners[0])
	assert.Equal(t, ids[2], plan.Partners[0].ID, "too old and same-account records are skipped")
	require.NotNil(t, plan.Partners[1])
	assert.Equal(t, ids[1], plan.Partners[1].ID)
	require.NotNil(t, plan.Partners[2])
	assert.Equal(t, ids[3], plan.Partners[2].ID, "candidates reserved by earlier records are skipped")
}

func TestMatchPrefersBatchMate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, err := store.InsertMany(ctx, []*domain.Transaction{
		{Date: "2025-01-05", Amount: -600, AccountName: "Baxter"},
	})
	require.NoError(t, err)

	batch := []*domain.Transaction{
		potential("2025-01-06", 600, "Fidelity Roth"),
		potential("2025-01-07", -600, "Checking"),
	}
	plan, err := NewMatcher(store, DefaultWindowDays).Match(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, &Partner{Index: 1}, plan.Partners[0])
	assert.Equal(t, &Partner{Index: 0}, plan.Partners[1])
}

func TestMatchDoesNotTouchNonCandidates(t *testing.T) {
	batch := []*domain.Transaction{
		{Date: "2025-01-16", Amount: 500, AccountName: "BoA", Description: "Deposit"},
		potential("2025-01-16", -500, "Fidelity"),
		{Date: "bad", Amount: -500, AccountName: "Chase"},
		potential("2025-01-17", 500, "Ally"),
	}
	before := make([]*domain.Transaction, len(batch))
	for i, tx := range batch {
		before[i] = tx.Clone()
	}

	plan, err := NewMatcher(memory.NewStore(), 0).Match(context.Background(), batch)
	require.NoError(t, err)

	assert.Nil(t, plan.Partners[0])
	assert.Nil(t, plan.Partners[2])
	for i := range batch {
		assert.Equal(t, before[i], batch[i])
	}
}

func TestMatchStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := NewMatcher(failingFinder{err: boom}, 0).Match(context.Background(), []*domain.Transaction{
		potential("2025-01-16", 500, "BoA"),
	})
	assert.ErrorIs(t, err, boom)
}

func TestMatchSkipsStoreWhenNothingFlagged(t *testing.T) {
	plan, err := NewMatcher(failingFinder{err: errors.New("unused")}, 0).Match(context.Background(), []*domain.Transaction{
		{Date: "2025-01-16", Amount: 500, AccountName: "BoA"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Matched())
}
