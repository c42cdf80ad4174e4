// Package pipeline orchestrates statement ingestion: read the upload, extract
// transactions, match transfers, then persist and link them.
package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/extract"
	"github.com/dvloznov/fintrack/internal/ingest"
	"github.com/dvloznov/fintrack/internal/ledger"
	"github.com/dvloznov/fintrack/internal/logger"
	"github.com/dvloznov/fintrack/internal/transfers"
)

// Options tunes an Ingestor.
type Options struct {
	Read           ingest.Options
	ExtractTimeout time.Duration
	WindowDays     int
	LinkerOptions  []transfers.LinkerOption
}

// Ingestor runs the statement ingestion pipeline against one store.
type Ingestor struct {
	repo      ledger.Repository
	extractor extract.Extractor
	archiver  Archiver
	opts      Options
	linker    *transfers.Linker
	matcher   *transfers.Matcher
}

// NewIngestor wires the pipeline. archiver may be nil to skip archiving.
func NewIngestor(repo ledger.Repository, extractor extract.Extractor, archiver Archiver, opts Options) *Ingestor {
	return &Ingestor{
		repo:      repo,
		extractor: extractor,
		archiver:  archiver,
		opts:      opts,
		linker:    transfers.NewLinker(repo, opts.LinkerOptions...),
		matcher:   transfers.NewMatcher(repo, opts.WindowDays),
	}
}

// Linker exposes the linker for manual link and unlink operations on the same store.
func (in *Ingestor) Linker() *transfers.Linker {
	return in.linker
}

// Ingest processes one uploaded file and returns the persisted records with their final
// ids and links.
func (in *Ingestor) Ingest(ctx context.Context, filename string, content []byte) ([]*domain.Transaction, error) {
	state := &PipelineState{Filename: filename, Content: content}
	if err := in.newPipeline().Execute(ctx, state); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("filename", filename).
		Str("archive_uri", state.ArchiveURI).
		Int("count", len(state.Persisted)).
		Int("matched", state.Plan.Matched()).
		Msg("statement ingested")
	return state.Persisted, nil
}

// newPipeline builds the five-step ingestion pipeline.
func (in *Ingestor) newPipeline() *Pipeline {
	return NewPipeline(
		&ReadUploadStep{Options: in.opts.Read},
		&ArchiveUploadStep{Archiver: in.archiver},
		&ExtractStep{Extractor: in.extractor, Timeout: in.opts.ExtractTimeout},
		&MatchTransfersStep{Matcher: in.matcher},
		&PersistLinksStep{Linker: in.linker},
	)
}
