package postgres

import (
	"context"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ledger"
)

func TestBuildListQuery(t *testing.T) {
	floor := -10.0
	query, args := buildListQuery(ledger.Filter{
		Account:            "Chase",
		DescriptionPattern: "coffee",
		MinAmount:          &floor,
		TransfersOnly:      true,
		Limit:              5,
	})

	assert.Contains(t, query, "account_name = $1")
	assert.Contains(t, query, "description ~* $2")
	assert.Contains(t, query, "amount >= $3")
	assert.Contains(t, query, "AND is_transfer")
	assert.Contains(t, query, "ORDER BY seq DESC LIMIT $4")
	assert.Equal(t, []interface{}{"Chase", "coffee", -10.0, 5}, args)

	query, args = buildListQuery(ledger.Filter{})
	assert.NotContains(t, query, "WHERE")
	assert.Equal(t, []interface{}{ledger.DefaultListLimit}, args)
}

func TestNew_ConnectionFailure(t *testing.T) {
	_, err := New(context.Background(), Config{
		Host:     "nonexistent-host",
		Database: "fintrack",
		User:     "fintrack",
		Password: "password",
	}, zerolog.Nop())
	assert.Error(t, err)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("TEST_POSTGRES_HOST not set, skipping integration test")
	}
	port, _ := strconv.Atoi(os.Getenv("TEST_POSTGRES_PORT"))
	s, err := New(context.Background(), Config{
		Host:     os.Getenv("TEST_POSTGRES_HOST"),
		Port:     port,
		Database: os.Getenv("TEST_POSTGRES_DB"),
		User:     os.Getenv("TEST_POSTGRES_USER"),
		Password: os.Getenv("TEST_POSTGRES_PASSWORD"),
	}, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.DeleteAll(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	merchant := "Fidelity"

	ids, err := s.InsertMany(ctx, []*domain.Transaction{
		{Date: "2025-01-05", Description: "EFT", Amount: -600, Type: domain.TypeExpense, AccountName: "Baxter"},
		{Date: "2025-01-06", Description: "Contribution", Amount: 600, Type: domain.TypeIncome, AccountName: "Fidelity Roth", Merchant: &merchant, PotentialTransfer: true},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	got, err := s.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 600.0, got.Amount)
	assert.Equal(t, "Fidelity", *got.Merchant)
	assert.True(t, got.PotentialTransfer)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	candidates, err := s.FindTransferCandidates(ctx, -600, "Fidelity Roth")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, ids[0], candidates[0].ID)

	ok, err := s.ClaimLink(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ClaimLink(ctx, ids[0], "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.ClaimLink(ctx, "missing", ids[1])
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	require.NoError(t, s.SetLink(ctx, ids[1], ids[0]))
	transfers, err := s.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Len(t, transfers, 2)

	require.NoError(t, s.ClearLink(ctx, ids[0]))
	got, err = s.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, got.LinkedTxID)

	n, err := s.UpdateCategoryByKeyword(ctx, "contrib", "Investments")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := s.List(ctx, ledger.Filter{Category: "Investments"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ids[1], list[0].ID)
}

func TestStoreConcurrentClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids, err := s.InsertMany(ctx, []*domain.Transaction{
		{Date: "2025-01-05", Description: "EFT", Amount: -600, Type: domain.TypeExpense, AccountName: "Baxter"},
	})
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.ClaimLink(ctx, ids[0], strconv.Itoa(i))
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
