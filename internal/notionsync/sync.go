package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/fintrack/internal/ledger"
	"github.com/dvloznov/fintrack/internal/logger"
)

const (
	// BatchSize defines the number of transactions to process in a single batch
	BatchSize = 100

	// ExportLimit caps how many ledger rows one sync reads.
	ExportLimit = 100000
)

// Options narrows a sync run.
type Options struct {
	Account string // only this account; empty means all
	DryRun  bool
}

// Result counts what a sync did, or would do in a dry run.
type Result struct {
	Created  int
	Updated  int
	Skipped  int
	Archived int
	Failed   int
}

// SyncTransactions mirrors the ledger into a Notion database:
//  1. Pages whose Transaction ID is missing or no longer in the ledger are archived.
//  2. Transactions without a page get one.
//  3. Existing pages are only touched when the transfer link changed.
//
// Per-page failures are logged and counted; the run continues.
func SyncTransactions(ctx context.Context, source LedgerSource, notionClient NotionService, notionDBID string, opts Options) (*Result, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Str("account", opts.Account).
		Bool("dry_run", opts.DryRun).
		Msg("Starting transaction sync to Notion")

	transactions, err := source.List(ctx, ledger.Filter{Account: opts.Account, Limit: ExportLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	log.Info().Int("transaction_count", len(transactions)).Msg("Retrieved transactions from ledger")

	valid := make(map[string]bool, len(transactions))
	for _, tx := range transactions {
		valid[tx.ID] = true
	}

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("failed to query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	res := &Result{}
	existing := make(map[string]notionapi.Page)
	for _, page := range notionPages {
		txID := extractTransactionID(page)
		if txID != "" && valid[txID] {
			existing[txID] = page
			continue
		}

		// A filtered run only owns pages of its own account.
		if opts.Account != "" && txID != "" {
			continue
		}

		pageLog := log.With().Str("transaction_id", txID).Str("page_id", string(page.ID)).Logger()
		if opts.DryRun {
			pageLog.Info().Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			pageLog.Warn().Err(err).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		pageLog.Info().Msg("Archived stale Notion page")
		res.Archived++
	}

	for i := 0; i < len(transactions); i += BatchSize {
		end := i + BatchSize
		if end > len(transactions) {
			end = len(transactions)
		}

		batch := transactions[i:end]
		log.Debug().
			Int("batch_start", i).
			Int("batch_end", end).
			Msg("Processing batch")

		for _, tx := range batch {
			txLog := log.With().Str("transaction_id", tx.ID).Logger()

			page, ok := existing[tx.ID]
			if ok && extractLinkedID(page) == tx.PartnerID() {
				res.Skipped++
				continue
			}

			if opts.DryRun {
				if ok {
					txLog.Info().Str("page_id", string(page.ID)).Msg("[DRY RUN] Would update transfer link on Notion page")
					res.Updated++
				} else {
					txLog.Info().Msg("[DRY RUN] Would create new Notion page")
					res.Created++
				}
				continue
			}

			props := TransactionToNotionProperties(tx)

			if ok {
				if _, err := notionClient.UpdatePage(ctx, string(page.ID), props); err != nil {
					txLog.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
					res.Failed++
					continue
				}
				txLog.Info().Str("page_id", string(page.ID)).Msg("Updated Notion page")
				res.Updated++
				continue
			}

			created, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				txLog.Warn().Err(err).Msg("Failed to create Notion page")
				res.Failed++
				continue
			}
			txLog.Info().Str("page_id", string(created.ID)).Msg("Created Notion page")
			res.Created++
		}
	}

	log.Info().
		Int("archived", res.Archived).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int("total", len(transactions)).
		Msg("Transaction sync completed")

	return res, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
