// Package bigquery implements ledger.Repository on a BigQuery dataset.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ledger"
)

// TransactionRepository is the BigQuery ledger.Repository. It holds a shared client
// to avoid creating a new connection for each operation.
type TransactionRepository struct {
	client *bigquery.Client
	table  string
}

// NewTransactionRepository connects to projectID. The transactions table is expected to
// exist in datasetID; cmd/migrate creates it.
func NewTransactionRepository(ctx context.Context, projectID, datasetID string) (*TransactionRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRepository: creating client: %w", err)
	}
	return NewTransactionRepositoryWithClient(client, datasetID), nil
}

// NewTransactionRepositoryWithClient wraps an existing client.
func NewTransactionRepositoryWithClient(client *bigquery.Client, datasetID string) *TransactionRepository {
	return &TransactionRepository{
		client: client,
		table:  tableRef(client.Project(), datasetID),
	}
}

func tableRef(projectID, datasetID string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, transactionsTable)
}

// Close closes the BigQuery client connection.
func (r *TransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *TransactionRepository) InsertMany(ctx context.Context, txs []*domain.Transaction) ([]string, error) {
	return InsertTransactionsWithClient(ctx, r.client, r.table, txs)
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return GetTransactionWithClient(ctx, r.client, r.table, id)
}

func (r *TransactionRepository) List(ctx context.Context, filter ledger.Filter) ([]*domain.Transaction, error) {
	return ListTransactionsWithClient(ctx, r.client, r.table, filter)
}

func (r *TransactionRepository) FindTransferCandidates(ctx context.Context, amount float64, excludeAccount string) ([]*domain.Transaction, error) {
	return FindTransferCandidatesWithClient(ctx, r.client, r.table, amount, excludeAccount)
}

func (r *TransactionRepository) ListTransfers(ctx context.Context) ([]*domain.Transaction, error) {
	return ListTransfersWithClient(ctx, r.client, r.table)
}

func (r *TransactionRepository) SetLink(ctx context.Context, id, partnerID string) error {
	return SetLinkWithClient(ctx, r.client, r.table, id, partnerID)
}

func (r *TransactionRepository) ClaimLink(ctx context.Context, id, partnerID string) (bool, error) {
	return ClaimLinkWithClient(ctx, r.client, r.table, id, partnerID)
}

func (r *TransactionRepository) ClearLink(ctx context.Context, id string) error {
	return ClearLinkWithClient(ctx, r.client, r.table, id)
}

func (r *TransactionRepository) UpdateCategoryByKeyword(ctx context.Context, keyword, category string) (int64, error) {
	return UpdateCategoryByKeywordWithClient(ctx, r.client, r.table, keyword, category)
}

func (r *TransactionRepository) DeleteAll(ctx context.Context) (int64, error) {
	return DeleteAllTransactionsWithClient(ctx, r.client, r.table)
}

var _ ledger.Repository = (*TransactionRepository)(nil)
