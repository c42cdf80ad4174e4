package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/fintrack/internal/domain"
)

const transactionsTable = "transactions"

// TransactionRow mirrors one row of finance.transactions.
type TransactionRow struct {
	ID string `bigquery:"id"` // REQUIRED

	Date        string   `bigquery:"date"`        // REQUIRED STRING, as extracted
	Description string   `bigquery:"description"` // REQUIRED
	Amount      *big.Rat `bigquery:"amount"`      // REQUIRED NUMERIC
	Type        string   `bigquery:"type"`        // REQUIRED
	Category    string   `bigquery:"category"`

	Merchant    bigquery.NullString `bigquery:"merchant"` // NULLABLE
	AccountName string              `bigquery:"account_name"`

	IsTransfer        bool                `bigquery:"is_transfer"`
	PotentialTransfer bool                `bigquery:"potential_transfer"`
	LinkedTxID        bigquery.NullString `bigquery:"linked_tx_id"` // NULLABLE

	// CreatedTS and BatchPos give rows a stable insertion order.
	CreatedTS time.Time              `bigquery:"created_ts"`
	BatchPos  int64                  `bigquery:"batch_pos"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// toRow converts a domain transaction for insertion.
func toRow(t *domain.Transaction, id string, created time.Time, pos int) *TransactionRow {
	row := &TransactionRow{
		ID:                id,
		Date:              t.Date,
		Description:       t.Description,
		Amount:            numeric(t.Amount),
		Type:              string(t.Type),
		Category:          t.Category,
		AccountName:       t.AccountName,
		IsTransfer:        t.IsTransfer,
		PotentialTransfer: t.PotentialTransfer,
		CreatedTS:         created,
		BatchPos:          int64(pos),
	}
	if t.Merchant != nil {
		row.Merchant = bigquery.NullString{StringVal: *t.Merchant, Valid: true}
	}
	if t.LinkedTxID != nil {
		row.LinkedTxID = bigquery.NullString{StringVal: *t.LinkedTxID, Valid: true}
	}
	return row
}

// toTransaction converts a row read back from BigQuery.
func (r *TransactionRow) toTransaction() *domain.Transaction {
	t := &domain.Transaction{
		ID:                r.ID,
		Date:              r.Date,
		Description:       r.Description,
		Type:              domain.TxType(r.Type),
		Category:          r.Category,
		AccountName:       r.AccountName,
		IsTransfer:        r.IsTransfer,
		PotentialTransfer: r.PotentialTransfer,
	}
	if r.Amount != nil {
		t.Amount, _ = r.Amount.Float64()
	}
	if r.Merchant.Valid {
		m := r.Merchant.StringVal
		t.Merchant = &m
	}
	if r.LinkedTxID.Valid {
		l := r.LinkedTxID.StringVal
		t.LinkedTxID = &l
	}
	return t
}

// numeric rounds to cents, the scale of the amount column.
func numeric(amount float64) *big.Rat {
	return decimal.NewFromFloat(amount).Round(2).Rat()
}
