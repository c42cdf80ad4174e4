package notionsync

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ledger"
)

// NotionService is the part of the Notion API the sync uses.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	// DeletePage archives the page; Notion has no hard delete.
	DeletePage(ctx context.Context, pageID string) error
}

// LedgerSource lists the transactions to export. ledger.Repository satisfies it.
type LedgerSource interface {
	List(ctx context.Context, filter ledger.Filter) ([]*domain.Transaction, error)
}

var _ NotionService = (*NotionClient)(nil)
