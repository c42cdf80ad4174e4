package bigquery

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ledger"
)

func TestRowConversion(t *testing.T) {
	merchant := "Fidelity"
	tx := &domain.Transaction{
		Date:              "2025-01-06",
		Description:       "Roth contribution",
		Amount:            600.1,
		Type:              domain.TypeIncome,
		Category:          "Investments",
		Merchant:          &merchant,
		AccountName:       "Fidelity Roth",
		PotentialTransfer: true,
	}
	tx.LinkTo("partner")

	created := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	row := toRow(tx, "id-1", created, 3)

	assert.Equal(t, "id-1", row.ID)
	assert.Equal(t, 0, row.Amount.Cmp(big.NewRat(60010, 100)))
	assert.Equal(t, bigquery.NullString{StringVal: "Fidelity", Valid: true}, row.Merchant)
	assert.Equal(t, bigquery.NullString{StringVal: "partner", Valid: true}, row.LinkedTxID)
	assert.Equal(t, int64(3), row.BatchPos)
	assert.Equal(t, created, row.CreatedTS)

	back := row.toTransaction()
	assert.Equal(t, "id-1", back.ID)
	assert.Equal(t, 600.1, back.Amount)
	assert.Equal(t, "partner", back.PartnerID())
	assert.True(t, back.IsTransfer)
	assert.Equal(t, "Fidelity", *back.Merchant)
}

func TestRowConversion_Nulls(t *testing.T) {
	row := toRow(&domain.Transaction{Description: "Coffee", Amount: -4.5, Type: domain.TypeExpense}, "id-2", time.Now(), 0)
	assert.False(t, row.Merchant.Valid)
	assert.False(t, row.LinkedTxID.Valid)

	back := row.toTransaction()
	assert.Nil(t, back.Merchant)
	assert.Nil(t, back.LinkedTxID)
	assert.Equal(t, -4.5, back.Amount)
}

func TestNumericRoundsToCents(t *testing.T) {
	tests := []struct {
		in   float64
		want *big.Rat
	}{
		{500, big.NewRat(500, 1)},
		{-0.1 - 0.2, big.NewRat(-30, 100)},
		{12.345, big.NewRat(1235, 100)},
		{-12.345, big.NewRat(-1235, 100)},
	}
	for _, tt := range tests {
		got := numeric(tt.in)
		if got.Cmp(tt.want) != 0 {
			t.Errorf("numeric(%v) = %s, want %s", tt.in, got.RatString(), tt.want.RatString())
		}
	}
}

func TestBuildListQuery(t *testing.T) {
	table := tableRef("proj", "finance")
	assert.Equal(t, "`proj.finance.transactions`", table)

	ceiling := 100.0
	sql, params := buildListQuery(table, ledger.Filter{
		Category:           "Groceries",
		DescriptionPattern: "whole foods",
		MaxAmount:          &ceiling,
		TransfersOnly:      true,
	})

	assert.Contains(t, sql, "FROM `proj.finance.transactions` WHERE category = @category")
	assert.Contains(t, sql, "REGEXP_CONTAINS(description, @pattern)")
	assert.Contains(t, sql, "amount <= @max_amount")
	assert.Contains(t, sql, "AND is_transfer")
	assert.Contains(t, sql, "ORDER BY created_ts DESC, batch_pos DESC LIMIT @limit")

	require.Len(t, params, 4)
	assert.Equal(t, "(?i)whole foods", params[1].Value)
	assert.Equal(t, "limit", params[3].Name)
	assert.Equal(t, ledger.DefaultListLimit, params[3].Value)
}

// Runs against a real dataset; the transactions table must already be migrated.
func TestRepositoryIntegration(t *testing.T) {
	project := os.Getenv("TEST_BIGQUERY_PROJECT")
	if project == "" {
		t.Skip("TEST_BIGQUERY_PROJECT not set, skipping integration test")
	}
	dataset := os.Getenv("TEST_BIGQUERY_DATASET")
	if dataset == "" {
		dataset = "finance_test"
	}

	ctx := context.Background()
	repo, err := NewTransactionRepository(ctx, project, dataset)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.DeleteAll(ctx)
	require.NoError(t, err)

	ids, err := repo.InsertMany(ctx, []*domain.Transaction{
		{Date: "2025-01-05", Description: "EFT", Amount: -600, Type: domain.TypeExpense, AccountName: "Baxter"},
		{Date: "2025-01-06", Description: "Contribution", Amount: 600, Type: domain.TypeIncome, AccountName: "Fidelity Roth", PotentialTransfer: true},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	candidates, err := repo.FindTransferCandidates(ctx, -600, "Fidelity Roth")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, ids[0], candidates[0].ID)

	ok, err := repo.ClaimLink(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ClaimLink(ctx, ids[0], "other")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.ClearLink(ctx, ids[0]))
	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
