package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/fintrack/internal/api/handlers"
	"github.com/dvloznov/fintrack/internal/api/middleware"
	"github.com/dvloznov/fintrack/internal/bootstrap"
	"github.com/dvloznov/fintrack/internal/chat"
	"github.com/dvloznov/fintrack/internal/config"
	"github.com/dvloznov/fintrack/internal/jobs"
	"github.com/dvloznov/fintrack/internal/jobs/inmemory"
	"github.com/dvloznov/fintrack/internal/logger"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file to load before the environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	ctx := logger.WithContext(context.Background(), log)

	repo, err := bootstrap.OpenRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open ledger store")
	}
	defer repo.Close()

	extractor, err := bootstrap.NewExtractor(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction provider")
	}

	archiver, err := bootstrap.NewArchiver(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create upload archiver")
	}
	if archiver == nil {
		log.Warn().Msg("No GCS bucket configured - uploads will not be archived")
	} else {
		defer archiver.Close()
	}

	ingestor := bootstrap.NewIngestor(repo, extractor, archiver, cfg)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.Options{BufferSize: 100}, jobStore, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.IngestJob) error {
		jobLog := log.With().Str("job_id", job.JobID).Logger()
		txs, err := ingestor.Ingest(logger.WithContext(ctx, jobLog), job.Filename, job.Content)
		if err != nil {
			return err
		}
		job.Count = len(txs)
		job.TransactionIDs = make([]string, len(txs))
		for i, tx := range txs {
			job.TransactionIDs[i] = tx.ID
		}
		return nil
	}

	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	router := handlers.NewRouter(handlers.Routes{
		Upload:       handlers.NewUploadHandler(ingestor, jobQueue, cfg.MaxUploadBytes, log),
		Transactions: handlers.NewTransactionsHandler(repo, log),
		Transfers:    handlers.NewTransfersHandler(ingestor.Linker(), log),
		Chat:         handlers.NewChatHandler(chat.NewService(repo, extractor), log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(router),
			),
		),
	)

	port := strconv.Itoa(cfg.Port)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLM.ExtractTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Str("store", cfg.StoreBackend).Str("llm", cfg.LLM.Type).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
