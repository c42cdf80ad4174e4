package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/fintrack/internal/bootstrap"
	"github.com/dvloznov/fintrack/internal/config"
	"github.com/dvloznov/fintrack/internal/logger"
	"github.com/dvloznov/fintrack/internal/notionsync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})

	notionToken := flag.String("notion-token", cfg.Notion.Token, "Notion API token (defaults to NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.Notion.DatabaseID, "Notion database ID (defaults to NOTION_DB_ID)")
	account := flag.String("account", "", "Only sync this account")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token or NOTION_TOKEN is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id or NOTION_DB_ID is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := bootstrap.OpenRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open ledger store")
	}
	defer repo.Close()

	notionClient := notionsync.NewNotionClient(*notionToken)

	res, err := notionsync.SyncTransactions(ctx, repo, notionClient, *notionDBID, notionsync.Options{
		Account: *account,
		DryRun:  *dryRun,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d unchanged, %d failed.\n",
		res.Created, res.Updated, res.Archived, res.Skipped, res.Failed)
}
