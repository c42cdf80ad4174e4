package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ledger"
)

const selectColumns = `id, date, description, amount, type, category, merchant, account_name,
	is_transfer, potential_transfer, linked_tx_id, created_ts, batch_pos, updated_ts`

const orderAsc = "ORDER BY created_ts, batch_pos"

// InsertTransactionsWithClient writes txs in one DML statement so the batch lands atomically.
// IDs are generated client-side and returned in input order.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, table string, txs []*domain.Transaction) ([]string, error) {
	if len(txs) == 0 {
		return []string{}, nil
	}

	created := time.Now().UTC()
	ids := make([]string, len(txs))
	values := make([]string, len(txs))
	var params []bigquery.QueryParameter

	for i, t := range txs {
		ids[i] = uuid.NewString()
		row := toRow(t, ids[i], created, i)

		names := []string{"id", "date", "description", "amount", "type", "category", "merchant",
			"account_name", "is_transfer", "potential_transfer", "linked_tx_id", "created_ts", "batch_pos"}
		vals := []interface{}{row.ID, row.Date, row.Description, row.Amount, row.Type, row.Category, row.Merchant,
			row.AccountName, row.IsTransfer, row.PotentialTransfer, row.LinkedTxID, row.CreatedTS, row.BatchPos}

		placeholders := make([]string, len(names))
		for j, name := range names {
			p := fmt.Sprintf("%s_%d", name, i)
			placeholders[j] = "@" + p
			params = append(params, bigquery.QueryParameter{Name: p, Value: vals[j]})
		}
		values[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			id, date, description, amount, type, category, merchant, account_name,
			is_transfer, potential_transfer, linked_tx_id, created_ts, batch_pos
		)
		VALUES %s
	`, table, strings.Join(values, ",\n")))
	q.Parameters = params

	if _, err := runDML(ctx, q); err != nil {
		return nil, fmt.Errorf("InsertTransactions: %w", err)
	}
	return ids, nil
}

// GetTransactionWithClient fetches one row by id.
func GetTransactionWithClient(ctx context.Context, client *bigquery.Client, table, id string) (*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`SELECT %s FROM %s WHERE id = @id LIMIT 1`, selectColumns, table))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("GetTransaction: %s: %w", id, ledger.ErrNotFound)
	}
	return txs[0], nil
}

// ListTransactionsWithClient returns filtered rows, newest first.
func ListTransactionsWithClient(ctx context.Context, client *bigquery.Client, table string, filter ledger.Filter) ([]*domain.Transaction, error) {
	sql, params := buildListQuery(table, filter)
	q := client.Query(sql)
	q.Parameters = params

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txs, nil
}

func buildListQuery(table string, filter ledger.Filter) (string, []bigquery.QueryParameter) {
	var where []string
	var params []bigquery.QueryParameter
	add := func(cond, name string, value interface{}) {
		where = append(where, cond)
		params = append(params, bigquery.QueryParameter{Name: name, Value: value})
	}

	if filter.Account != "" {
		add("account_name = @account", "account", filter.Account)
	}
	if filter.Category != "" {
		add("category = @category", "category", filter.Category)
	}
	if filter.DescriptionPattern != "" {
		add("REGEXP_CONTAINS(description, @pattern)", "pattern", "(?i)"+filter.DescriptionPattern)
	}
	if filter.MinAmount != nil {
		add("amount >= @min_amount", "min_amount", numeric(*filter.MinAmount))
	}
	if filter.MaxAmount != nil {
		add("amount <= @max_amount", "max_amount", numeric(*filter.MaxAmount))
	}
	if filter.TransfersOnly {
		where = append(where, "is_transfer")
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", selectColumns, table)
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY created_ts DESC, batch_pos DESC LIMIT @limit"
	params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.EffectiveLimit()})
	return sql, params
}

// FindTransferCandidatesWithClient returns unlinked rows with the given amount outside excludeAccount,
// in insertion order.
func FindTransferCandidatesWithClient(ctx context.Context, client *bigquery.Client, table string, amount float64, excludeAccount string) ([]*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE linked_tx_id IS NULL
		  AND account_name != @account
		  AND ABS(amount - @amount) < NUMERIC '0.005'
		%s
	`, selectColumns, table, orderAsc))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account", Value: excludeAccount},
		{Name: "amount", Value: numeric(amount)},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindTransferCandidates: %w", err)
	}
	return txs, nil
}

// ListTransfersWithClient returns every row flagged as a transfer.
func ListTransfersWithClient(ctx context.Context, client *bigquery.Client, table string) ([]*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`SELECT %s FROM %s WHERE is_transfer %s`, selectColumns, table, orderAsc))

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListTransfers: %w", err)
	}
	return txs, nil
}

// SetLinkWithClient points id at partnerID unconditionally.
func SetLinkWithClient(ctx context.Context, client *bigquery.Client, table, id, partnerID string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET is_transfer = TRUE, linked_tx_id = @partner_id, updated_ts = CURRENT_TIMESTAMP()
		WHERE id = @id
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "partner_id", Value: partnerID},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("SetLink: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("SetLink: %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// ClaimLinkWithClient links id to partnerID only while id is unlinked. BigQuery serializes
// mutating DML on a table, so of two racing claims at most one affects a row.
func ClaimLinkWithClient(ctx context.Context, client *bigquery.Client, table, id, partnerID string) (bool, error) {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET is_transfer = TRUE, linked_tx_id = @partner_id, updated_ts = CURRENT_TIMESTAMP()
		WHERE id = @id AND linked_tx_id IS NULL
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "partner_id", Value: partnerID},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("ClaimLink: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	if _, err := GetTransactionWithClient(ctx, client, table, id); err != nil {
		return false, fmt.Errorf("ClaimLink: %w", err)
	}
	return false, nil
}

// ClearLinkWithClient clears both transfer fields on id.
func ClearLinkWithClient(ctx context.Context, client *bigquery.Client, table, id string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET is_transfer = FALSE, linked_tx_id = NULL, updated_ts = CURRENT_TIMESTAMP()
		WHERE id = @id
	`, table))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("ClearLink: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ClearLink: %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// UpdateCategoryByKeywordWithClient recategorizes rows whose description contains keyword.
func UpdateCategoryByKeywordWithClient(ctx context.Context, client *bigquery.Client, table, keyword, category string) (int64, error) {
	if keyword == "" {
		return 0, nil
	}
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET category = @category, updated_ts = CURRENT_TIMESTAMP()
		WHERE STRPOS(LOWER(description), LOWER(@keyword)) > 0
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "keyword", Value: keyword},
		{Name: "category", Value: category},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("UpdateCategoryByKeyword: %w", err)
	}
	return n, nil
}

// DeleteAllTransactionsWithClient clears the table.
func DeleteAllTransactionsWithClient(ctx context.Context, client *bigquery.Client, table string) (int64, error) {
	q := client.Query(fmt.Sprintf(`DELETE FROM %s WHERE TRUE`, table))

	n, err := runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("DeleteAllTransactions: %w", err)
	}
	return n, nil
}

// runDML runs q to completion and reports the number of rows it changed.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}

func readTransactions(ctx context.Context, q *bigquery.Query) ([]*domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	var result []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		result = append(result, row.toTransaction())
	}
	return result, nil
}
