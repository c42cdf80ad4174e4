// Package bootstrap builds the long-lived dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fintrack/internal/config"
	"github.com/dvloznov/fintrack/internal/extract"
	"github.com/dvloznov/fintrack/internal/gcsuploader"
	infraBQ "github.com/dvloznov/fintrack/internal/infra/bigquery"
	"github.com/dvloznov/fintrack/internal/infra/memory"
	"github.com/dvloznov/fintrack/internal/infra/postgres"
	"github.com/dvloznov/fintrack/internal/ingest"
	"github.com/dvloznov/fintrack/internal/ledger"
	"github.com/dvloznov/fintrack/internal/pipeline"
)

// OpenRepository connects the ledger store selected by cfg.StoreBackend.
func OpenRepository(ctx context.Context, cfg config.Config, log zerolog.Logger) (ledger.Repository, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory ledger, data is lost on exit")
		return memory.NewStore(), nil
	case config.StorePostgres:
		store, err := postgres.New(ctx, postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
		}, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreBigQuery:
		repo, err := infraBQ.NewTransactionRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, err
		}
		log.Info().Str("project", cfg.BigQuery.Project).Str("dataset", cfg.BigQuery.Dataset).Msg("using BigQuery ledger")
		return repo, nil
	default:
		return nil, fmt.Errorf("OpenRepository: unknown store backend %q", cfg.StoreBackend)
	}
}

// NewExtractor builds the model provider selected by cfg.LLM.Type.
func NewExtractor(ctx context.Context, cfg config.Config) (extract.Extractor, error) {
	return extract.New(ctx, extract.Options{
		Type:         cfg.LLM.Type,
		GeminiAPIKey: cfg.LLM.GeminiAPIKey,
		GeminiModel:  cfg.LLM.GeminiModel,
		OllamaURL:    cfg.LLM.OllamaURL,
		OllamaModel:  cfg.LLM.OllamaModel,
		HTTPTimeout:  cfg.LLM.ExtractTimeout,
	})
}

// NewArchiver returns nil when no bucket is configured.
func NewArchiver(ctx context.Context, cfg config.Config) (*gcsuploader.Archiver, error) {
	if cfg.GCSBucket == "" {
		return nil, nil
	}
	return gcsuploader.NewArchiver(ctx, cfg.GCSBucket)
}

// PipelineOptions maps cfg onto the ingestion pipeline.
func PipelineOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		Read: ingest.Options{
			TextLimit: cfg.Ingest.TextSampleLimit,
			RowLimit:  cfg.Ingest.TableRowLimit,
		},
		ExtractTimeout: cfg.LLM.ExtractTimeout,
		WindowDays:     cfg.TransferWindowDays,
	}
}

// NewIngestor wires the pipeline. A nil archiver disables archiving.
func NewIngestor(repo ledger.Repository, extractor extract.Extractor, archiver *gcsuploader.Archiver, cfg config.Config) *pipeline.Ingestor {
	var a pipeline.Archiver
	if archiver != nil {
		a = archiver
	}
	return pipeline.NewIngestor(repo, extractor, a, PipelineOptions(cfg))
}
