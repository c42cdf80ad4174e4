package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/extract"
	"github.com/dvloznov/fintrack/internal/ingest"
	"github.com/dvloznov/fintrack/internal/logger"
	"github.com/dvloznov/fintrack/internal/transfers"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Filename string
	Content  []byte

	Text         string
	ArchiveURI   string
	Transactions []*domain.Transaction
	Plan         *transfers.Plan
	Persisted    []*domain.Transaction
}

// ReadUploadStep turns the uploaded file into text for the model.
type ReadUploadStep struct {
	Options ingest.Options
}

func (s *ReadUploadStep) Name() string { return "read_upload" }

func (s *ReadUploadStep) Execute(ctx context.Context, state *PipelineState) error {
	text, err := ingest.ToText(state.Filename, state.Content, s.Options)
	if err != nil {
		return err
	}
	state.Text = text
	return nil
}

// ArchiveUploadStep keeps a copy of the raw upload. Failures are logged and do not stop
// ingestion.
type ArchiveUploadStep struct {
	Archiver Archiver
}

func (s *ArchiveUploadStep) Name() string { return "archive_upload" }

func (s *ArchiveUploadStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Archiver == nil {
		return nil
	}
	uri, err := s.Archiver.Archive(ctx, state.Filename, state.Content)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("filename", state.Filename).Msg("archiving upload failed")
		return nil
	}
	state.ArchiveURI = uri
	return nil
}

// ExtractStep asks the model for the transactions in the text, bounded by Timeout.
type ExtractStep struct {
	Extractor extract.Extractor
	Timeout   time.Duration
}

func (s *ExtractStep) Name() string { return "extract" }

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	extractCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	txs, err := s.Extractor.Extract(extractCtx, state.Text)
	if err != nil {
		if errors.Is(extractCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: timed out after %s", extract.ErrExtractionFailed, s.Timeout)
		}
		return err
	}
	state.Transactions = txs
	return nil
}

// MatchTransfersStep plans transfer links for the extracted batch.
type MatchTransfersStep struct {
	Matcher *transfers.Matcher
}

func (s *MatchTransfersStep) Name() string { return "match_transfers" }

func (s *MatchTransfersStep) Execute(ctx context.Context, state *PipelineState) error {
	plan, err := s.Matcher.Match(ctx, state.Transactions)
	if err != nil {
		return err
	}
	state.Plan = plan
	return nil
}

// PersistLinksStep writes the batch and resolves its links.
type PersistLinksStep struct {
	Linker *transfers.Linker
}

func (s *PersistLinksStep) Name() string { return "persist_links" }

func (s *PersistLinksStep) Execute(ctx context.Context, state *PipelineState) error {
	persisted, err := s.Linker.Persist(ctx, state.Transactions, state.Plan)
	if err != nil {
		return err
	}
	state.Persisted = persisted
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially. The first failing step aborts the run.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		log.Debug().Int("step", i+1).Str("name", step.Name()).Msg("pipeline step completed")
	}
	return nil
}
