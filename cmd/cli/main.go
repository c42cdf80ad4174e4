package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fintrack/internal/bootstrap"
	"github.com/dvloznov/fintrack/internal/config"
	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/gcsuploader"
	"github.com/dvloznov/fintrack/internal/ledger"
	"github.com/dvloznov/fintrack/internal/logger"
	"github.com/dvloznov/fintrack/internal/transfers"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})

	switch os.Args[1] {
	case "ingest":
		runIngest(cfg, log)
	case "list":
		runList(cfg, log)
	case "transfers":
		runTransfers(cfg, log)
	case "link":
		runLink(cfg, log)
	case "unlink":
		runUnlink(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("fintrack CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest     Extract, link and store a statement from a local file or GCS")
	fmt.Println("  list       List stored transactions")
	fmt.Println("  transfers  List linked transfer pairs")
	fmt.Println("  link       Link two stored transactions as a transfer")
	fmt.Println("  unlink     Remove the transfer link from a transaction and its partner")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openRepo opens the configured store or exits.
func openRepo(ctx context.Context, cfg config.Config, log zerolog.Logger) ledger.Repository {
	repo, err := bootstrap.OpenRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open ledger store")
	}
	return repo
}

func runIngest(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a local statement (.csv, .xlsx, .pdf, .txt)")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of a previously archived statement")
	fs.Parse(os.Args[2:])

	if (*filePath == "") == (*gcsURI == "") {
		log.Fatal().Msg("Usage: cli ingest -file PATH | -gcs-uri gs://bucket/object")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var (
		filename string
		content  []byte
		err      error
	)
	if *gcsURI != "" {
		filename = gcsuploader.ExtractFilenameFromGCSURI(*gcsURI)
		content, err = gcsuploader.FetchFromGCS(ctx, *gcsURI)
	} else {
		filename = filepath.Base(*filePath)
		content, err = os.ReadFile(*filePath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read statement")
	}

	repo := openRepo(ctx, cfg, log)
	defer repo.Close()

	extractor, err := bootstrap.NewExtractor(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction provider")
	}

	// Files fetched from GCS are already archived.
	var archiver *gcsuploader.Archiver
	if *gcsURI == "" {
		archiver, err = bootstrap.NewArchiver(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create upload archiver")
		}
		if archiver != nil {
			defer archiver.Close()
		}
	}

	ingestor := bootstrap.NewIngestor(repo, extractor, archiver, cfg)

	log.Info().Str("filename", filename).Int("bytes", len(content)).Msg("Starting ingestion")

	txs, err := ingestor.Ingest(ctx, filename, content)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingested %d transaction(s) from %s.\n", len(txs), filename)
	printTransactions(txs)
}

func runList(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	account := fs.String("account", "", "Only this account")
	category := fs.String("category", "", "Only this category")
	pattern := fs.String("q", "", "Case-insensitive description pattern")
	transfersOnly := fs.Bool("transfers", false, "Only linked transfers")
	limit := fs.Int("limit", ledger.DefaultListLimit, "Maximum rows")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	repo := openRepo(ctx, cfg, log)
	defer repo.Close()

	txs, err := repo.List(ctx, ledger.Filter{
		Account:            *account,
		Category:           *category,
		DescriptionPattern: *pattern,
		TransfersOnly:      *transfersOnly,
		Limit:              *limit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}

	fmt.Printf("\n=== Transactions (%d) ===\n", len(txs))
	printTransactions(txs)
}

func runTransfers(cfg config.Config, log zerolog.Logger) {
	ctx := logger.WithContext(context.Background(), log)
	repo := openRepo(ctx, cfg, log)
	defer repo.Close()

	pairs, err := transfers.NewLinker(repo).Pairs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transfers")
	}

	fmt.Printf("\n=== Transfers (%d) ===\n", len(pairs))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FROM\tTO\tAMOUNT\tOUT DATE\tIN DATE\tOUT ID\tIN ID")
	for _, p := range pairs {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			p.Source.AccountName, p.Target.AccountName, p.Target.Amount,
			p.Source.Date, p.Target.Date, p.Source.ID, p.Target.ID)
	}
	w.Flush()
}

func runLink(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	a := fs.String("a", "", "First transaction ID")
	b := fs.String("b", "", "Second transaction ID")
	fs.Parse(os.Args[2:])

	if *a == "" || *b == "" {
		log.Fatal().Msg("Usage: cli link -a ID -b ID")
	}

	ctx := logger.WithContext(context.Background(), log)
	repo := openRepo(ctx, cfg, log)
	defer repo.Close()

	if err := transfers.NewLinker(repo).Link(ctx, *a, *b); err != nil {
		log.Fatal().Err(err).Msg("Link failed")
	}
	fmt.Printf("Linked %s <-> %s\n", *a, *b)
}

func runUnlink(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("unlink", flag.ExitOnError)
	id := fs.String("id", "", "Transaction ID")
	fs.Parse(os.Args[2:])

	if *id == "" {
		log.Fatal().Msg("Usage: cli unlink -id ID")
	}

	ctx := logger.WithContext(context.Background(), log)
	repo := openRepo(ctx, cfg, log)
	defer repo.Close()

	if err := transfers.NewLinker(repo).Unlink(ctx, *id); err != nil {
		log.Fatal().Err(err).Msg("Unlink failed")
	}
	fmt.Printf("Unlinked %s\n", *id)
}

func printTransactions(txs []*domain.Transaction) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tACCOUNT\tAMOUNT\tCATEGORY\tDESCRIPTION\tLINKED")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			tx.Date, tx.AccountName, tx.Amount, tx.Category, tx.Description, tx.PartnerID())
	}
	w.Flush()
}
