package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fintrack/internal/domain"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n[]\n```", `[]`},
		{"chatter", "Here you go:\n[{\"a\":1}]\nHope this helps", `[{"a":1}]`},
		{"no array", "sorry", "sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw, "[", "]"))
		})
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *Command
	}{
		{"command", `{"vendor_keyword": "Uber", "new_category": "Transport"}`, &Command{VendorKeyword: "Uber", NewCategory: "Transport"}},
		{"fenced", "```json\n{\"vendor_keyword\": \"Walmart\", \"new_category\": \"Groceries\"}\n```", &Command{VendorKeyword: "Walmart", NewCategory: "Groceries"}},
		{"null", "null", nil},
		{"null with chatter", "The answer is null.", nil},
		{"garbage", "{not json}", nil},
		{"missing category", `{"vendor_keyword": "Uber"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeCommand(tt.raw))
		})
	}
}

func TestToTransactions(t *testing.T) {
	records, err := decodeRecords(`[
		{"date": "2025-01-16", "description": "Transfer to Fidelity", "amount": -500, "type": "expense",
		 "category": "Transfer", "merchant": null, "account_name": "BoA Checking", "is_transfer": false, "potential_transfer": true},
		{"date": "01/17/2025", "description": "Coffee", "amount": "4.50", "merchant": "Starbucks"},
		{"date": "2025-01-18", "description": "Payment to Credit Card", "amount": -200, "type": "weird", "is_transfer": true},
		{"date": "2025-01-18", "amount": 12},
		{"date": "2025-01-18", "description": "Bad amount", "amount": "lots"},
		"not an object"
	]`)
	require.NoError(t, err)

	txs := toTransactions(context.Background(), records)
	require.Len(t, txs, 3)

	assert.Equal(t, "2025-01-16", txs[0].Date)
	assert.Equal(t, -500.0, txs[0].Amount)
	assert.Equal(t, domain.TypeExpense, txs[0].Type)
	assert.Equal(t, "BoA Checking", txs[0].AccountName)
	assert.Nil(t, txs[0].Merchant)
	assert.True(t, txs[0].PotentialTransfer)
	assert.False(t, txs[0].IsTransfer)
	assert.Nil(t, txs[0].LinkedTxID)

	assert.Equal(t, 4.5, txs[1].Amount)
	assert.Equal(t, domain.TypeIncome, txs[1].Type)
	assert.Equal(t, domain.UnknownAccount, txs[1].AccountName)
	require.NotNil(t, txs[1].Merchant)
	assert.Equal(t, "Starbucks", *txs[1].Merchant)
	assert.False(t, txs[1].PotentialTransfer)

	assert.Equal(t, domain.TypeExpense, txs[2].Type, "invalid type is derived from the sign")
	assert.True(t, txs[2].PotentialTransfer, "model transfer hint becomes a candidate flag")
	assert.False(t, txs[2].IsTransfer)
}

func TestDecodeRecordsMalformed(t *testing.T) {
	_, err := decodeRecords("I could not find any transactions")
	assert.Error(t, err)
}
