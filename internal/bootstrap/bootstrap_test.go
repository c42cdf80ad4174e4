package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fintrack/internal/config"
	"github.com/dvloznov/fintrack/internal/infra/memory"
)

func TestOpenRepository_Memory(t *testing.T) {
	repo, err := OpenRepository(context.Background(), config.Default(), zerolog.Nop())
	require.NoError(t, err)
	_, ok := repo.(*memory.Store)
	assert.True(t, ok)
}

func TestOpenRepository_Unknown(t *testing.T) {
	cfg := config.Default()
	cfg.StoreBackend = "mongo"
	_, err := OpenRepository(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewArchiver_Disabled(t *testing.T) {
	a, err := NewArchiver(context.Background(), config.Default())
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestPipelineOptions(t *testing.T) {
	cfg := config.Default()
	cfg.TransferWindowDays = 3
	cfg.Ingest.TableRowLimit = 10

	opts := PipelineOptions(cfg)
	assert.Equal(t, 3, opts.WindowDays)
	assert.Equal(t, 10, opts.Read.RowLimit)
	assert.Equal(t, 5000, opts.Read.TextLimit)
	assert.Equal(t, 60*time.Second, opts.ExtractTimeout)
}

func TestNewExtractor_Local(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Type = "LOCAL"
	ex, err := NewExtractor(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, ex)
}
